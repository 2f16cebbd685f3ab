// Package webkit attaches the bridge to a WebKitGTK web view.
//
// Script messages arrive through the user content manager's
// script-message-received::NAME signal, so the page posts to a real
// window.webkit.messageHandlers[NAME]. The view's decide-policy,
// load-changed and load-failed signals drive the navigation callbacks,
// which covers navigations the page starts itself.
//
// The GTK implementation of View lives behind the webkit_cgo build tag.
package webkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bnema/jsbridge/internal/logging"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

// LoadEvent mirrors WebKitLoadEvent.
type LoadEvent int

const (
	LoadStarted LoadEvent = iota
	LoadRedirected
	LoadCommitted
	LoadFinished
)

func (e LoadEvent) String() string {
	switch e {
	case LoadStarted:
		return "started"
	case LoadRedirected:
		return "redirected"
	case LoadCommitted:
		return "committed"
	case LoadFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// View is the part of a WebKitGTK web view the host drives. Every method
// and every signal callback runs on the GTK main thread.
type View interface {
	// AddUserScript injects source at document start in the top frame.
	AddUserScript(source string)
	RegisterScriptMessageHandler(name string, received func(body string)) error
	UnregisterScriptMessageHandler(name string)
	// EvaluateJavascript reports the script's completion value as a string.
	// done may be nil.
	EvaluateJavascript(script string, done func(result string, err error))
	// OnDecidePolicy is asked about every navigation action; returning
	// false ignores it.
	OnDecidePolicy(decide func(uri string) bool)
	OnLoadChanged(changed func(event LoadEvent, uri string))
	OnLoadFailed(failed func(uri string, err error))
	// IdleAdd runs fn once on the main loop.
	IdleAdd(fn func())
	LoadURI(uri string)
	LoadHTML(content, baseURI string)
}

// Window is a GTK window holding one web view.
type Window interface {
	View
	Run()
	Terminate()
	Destroy()
}

// Host adapts a WebKitGTK view to jsbridge.ScriptMessageHost.
type Host struct {
	view View
	log  zerolog.Logger

	mu       sync.Mutex
	handlers map[string]jsbridge.ModernWebViewEvents
}

var _ jsbridge.ScriptMessageHost = (*Host)(nil)

// New connects the host to the view's navigation signals.
func New(ctx context.Context, view View) (*Host, error) {
	if view == nil {
		return nil, errors.New("web view is nil")
	}
	h := &Host{
		view:     view,
		log:      logging.FromContext(ctx).With().Str("component", "webkit-host").Logger(),
		handlers: make(map[string]jsbridge.ModernWebViewEvents),
	}
	view.OnDecidePolicy(h.decidePolicy)
	view.OnLoadChanged(h.loadChanged)
	view.OnLoadFailed(h.loadFailed)
	return h, nil
}

// InjectScript adds source as a document-start user script.
func (h *Host) InjectScript(source string) error {
	h.view.AddUserScript(source)
	return nil
}

// EvaluateScript evaluates source on a later turn of the main loop.
func (h *Host) EvaluateScript(source string, done func(result string, err error)) {
	h.view.IdleAdd(func() {
		h.view.EvaluateJavascript(source, done)
	})
}

// Dispatch runs fn on the GTK main thread.
func (h *Host) Dispatch(fn func()) {
	h.view.IdleAdd(fn)
}

// AddScriptMessageHandler registers name with the user content manager.
func (h *Host) AddScriptMessageHandler(name string, events jsbridge.ModernWebViewEvents) error {
	if name == "" {
		return errors.New("script message handler name is empty")
	}

	h.mu.Lock()
	if _, exists := h.handlers[name]; exists {
		h.mu.Unlock()
		return fmt.Errorf("script message handler %q already registered", name)
	}
	h.handlers[name] = events
	h.mu.Unlock()

	if err := h.view.RegisterScriptMessageHandler(name, func(body string) {
		h.post(name, body)
	}); err != nil {
		h.mu.Lock()
		delete(h.handlers, name)
		h.mu.Unlock()
		return fmt.Errorf("register script message handler %q: %w", name, err)
	}
	return nil
}

// RemoveScriptMessageHandler unregisters name. Call it on the main thread.
func (h *Host) RemoveScriptMessageHandler(name string) {
	h.mu.Lock()
	_, ok := h.handlers[name]
	delete(h.handlers, name)
	h.mu.Unlock()
	if ok {
		h.view.UnregisterScriptMessageHandler(name)
	}
}

// Navigate loads uri. WebKit reports the navigation itself.
func (h *Host) Navigate(uri string) {
	h.view.IdleAdd(func() { h.view.LoadURI(uri) })
}

// SetHTML loads an inline document.
func (h *Host) SetHTML(html string) {
	h.view.IdleAdd(func() { h.view.LoadHTML(html, "") })
}

func (h *Host) events() []jsbridge.ModernWebViewEvents {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]jsbridge.ModernWebViewEvents, 0, len(h.handlers))
	for _, ev := range h.handlers {
		events = append(events, ev)
	}
	return events
}

// decidePolicy allows a navigation only if every handler allows it. All
// handlers are asked, since the bridge acts on the commands it consumes.
func (h *Host) decidePolicy(uri string) bool {
	allow := true
	for _, ev := range h.events() {
		if !ev.DecidePolicyForNavigation(uri) {
			allow = false
		}
	}
	if !allow {
		h.log.Debug().Str("uri", uri).Msg("navigation ignored")
	}
	return allow
}

func (h *Host) loadChanged(event LoadEvent, uri string) {
	h.log.Trace().Str("uri", uri).Stringer("event", event).Msg("load changed")
	switch event {
	case LoadStarted:
		for _, ev := range h.events() {
			ev.DidStartNavigation(uri)
		}
	case LoadFinished:
		for _, ev := range h.events() {
			ev.DidFinishNavigation(uri)
		}
	}
}

func (h *Host) loadFailed(uri string, err error) {
	h.log.Debug().Err(err).Str("uri", uri).Msg("load failed")
	for _, ev := range h.events() {
		ev.DidFailNavigation(uri, err)
	}
}

func (h *Host) post(name, body string) {
	h.mu.Lock()
	events, ok := h.handlers[name]
	h.mu.Unlock()
	if !ok {
		h.log.Debug().Str("handler", name).Msg("script message to removed handler")
		return
	}
	events.DidReceiveScriptMessage(name, body)
}
