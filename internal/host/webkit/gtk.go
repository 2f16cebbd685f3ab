//go:build webkit_cgo

package webkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/diamondburned/gotk4-webkitgtk/pkg/javascriptcore/v6"
	wk "github.com/diamondburned/gotk4-webkitgtk/pkg/webkit/v6"
	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
)

// GTKWindow is a GTK 4 window with a single WebKitGTK 6 view.
type GTKWindow struct {
	window *gtk.Window
	view   *wk.WebView
	ucm    *wk.UserContentManager
	loop   *glib.MainLoop

	// script-message-received handlers by message handler name
	signals map[string]coreglib.SignalHandle
}

var _ Window = (*GTKWindow)(nil)

// NewGTKWindow initializes GTK and builds the window. Call it from the
// locked main thread, which must also call Run.
func NewGTKWindow(title string, width, height int, debug bool) (*GTKWindow, error) {
	gtk.Init()

	view := wk.NewWebView()
	if view == nil {
		return nil, errors.New("webkitgtk: failed to create web view")
	}
	if settings := view.Settings(); settings != nil {
		settings.SetEnableDeveloperExtras(debug)
	}
	ucm := view.UserContentManager()
	if ucm == nil {
		return nil, errors.New("webkitgtk: user content manager is nil")
	}

	window := gtk.NewWindow()
	window.SetTitle(title)
	window.SetDefaultSize(width, height)
	window.SetChild(view)

	w := &GTKWindow{
		window:  window,
		view:    view,
		ucm:     ucm,
		loop:    glib.NewMainLoop(nil, false),
		signals: make(map[string]coreglib.SignalHandle),
	}
	window.ConnectCloseRequest(func() bool {
		w.loop.Quit()
		return false
	})
	return w, nil
}

// AddUserScript injects source at document start in the top frame.
func (w *GTKWindow) AddUserScript(source string) {
	w.ucm.AddScript(wk.NewUserScript(
		source,
		wk.UserContentInjectTopFrame,
		wk.UserScriptInjectAtDocumentStart,
		nil,
		nil,
	))
}

// RegisterScriptMessageHandler exposes window.webkit.messageHandlers[name]
// in the main world. The signal is connected before registering.
func (w *GTKWindow) RegisterScriptMessageHandler(name string, received func(body string)) error {
	if _, exists := w.signals[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	handle := w.ucm.Connect("script-message-received::"+name, func(_ *wk.UserContentManager, value *javascriptcore.Value) {
		received(valueString(value))
	})
	if !w.ucm.RegisterScriptMessageHandler(name, "") {
		w.ucm.HandlerDisconnect(handle)
		return fmt.Errorf("webkitgtk refused handler %q", name)
	}
	w.signals[name] = handle
	return nil
}

// UnregisterScriptMessageHandler removes name and disconnects its signal.
func (w *GTKWindow) UnregisterScriptMessageHandler(name string) {
	handle, ok := w.signals[name]
	if !ok {
		return
	}
	delete(w.signals, name)
	w.ucm.UnregisterScriptMessageHandler(name, "")
	w.ucm.HandlerDisconnect(handle)
}

// EvaluateJavascript runs script in the main world of the current page.
func (w *GTKWindow) EvaluateJavascript(script string, done func(result string, err error)) {
	var callback gio.AsyncReadyCallback
	if done != nil {
		callback = func(res gio.AsyncResulter) {
			value, err := w.view.EvaluateJavascriptFinish(res)
			if err != nil {
				done("", err)
				return
			}
			done(valueString(value), nil)
		}
	}
	w.view.EvaluateJavascript(context.Background(), script, -1, "", "", callback)
}

// OnDecidePolicy asks decide about navigation actions. Other decisions keep
// WebKit's default handling.
func (w *GTKWindow) OnDecidePolicy(decide func(uri string) bool) {
	w.view.ConnectDecidePolicy(func(decision wk.PolicyDecisioner, typ wk.PolicyDecisionType) bool {
		if typ != wk.PolicyDecisionTypeNavigationAction {
			return false
		}
		nav, ok := decision.(*wk.NavigationPolicyDecision)
		if !ok {
			return false
		}
		action := nav.NavigationAction()
		if action == nil || action.Request() == nil {
			return false
		}
		if decide(action.Request().URI()) {
			return false
		}
		nav.Ignore()
		return true
	})
}

func (w *GTKWindow) OnLoadChanged(changed func(event LoadEvent, uri string)) {
	w.view.ConnectLoadChanged(func(event wk.LoadEvent) {
		changed(loadEvent(event), w.view.URI())
	})
}

func (w *GTKWindow) OnLoadFailed(failed func(uri string, err error)) {
	w.view.ConnectLoadFailed(func(_ wk.LoadEvent, failingURI string, err error) bool {
		failed(failingURI, err)
		return false
	})
}

// IdleAdd runs fn once when the main loop is idle.
func (w *GTKWindow) IdleAdd(fn func()) {
	glib.IdleAdd(func() bool {
		fn()
		return false
	})
}

func (w *GTKWindow) LoadURI(uri string) {
	w.view.LoadURI(uri)
}

func (w *GTKWindow) LoadHTML(content, baseURI string) {
	w.view.LoadHTML(content, baseURI)
}

// Run shows the window and blocks until it is closed or terminated.
func (w *GTKWindow) Run() {
	w.window.Present()
	w.loop.Run()
}

// Terminate stops the main loop. Main thread only.
func (w *GTKWindow) Terminate() {
	w.loop.Quit()
}

func (w *GTKWindow) Destroy() {
	w.window.Destroy()
}

func loadEvent(event wk.LoadEvent) LoadEvent {
	switch event {
	case wk.LoadStarted:
		return LoadStarted
	case wk.LoadRedirected:
		return LoadRedirected
	case wk.LoadCommitted:
		return LoadCommitted
	default:
		return LoadFinished
	}
}

func valueString(value *javascriptcore.Value) string {
	if value == nil || value.IsUndefined() || value.IsNull() {
		return ""
	}
	return value.String()
}
