// Package webview attaches the bridge to a native window created with
// webview_go.
//
// webview_go has no script message channel of its own, so the host builds
// one from bound functions: each handler name gets a binding, exposed to the
// page as window.__wvjbChannels[name].postMessage. Evaluation results come
// back through a second binding.
//
// webview_go reports no navigation events, so only loads started through
// Navigate and SetHTML reset the bridge. After a link click or a reload the
// new document announces itself as usual, but a batch flushed while the old
// document unloads is lost. Use the webkit host where page-initiated
// navigations matter.
package webview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"github.com/bnema/jsbridge/internal/logging"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

const (
	evalResultBinding = "__wvjbEvalResult"
	postBindingPrefix = "__wvjbPost_"
)

// View is the part of webview.WebView the host drives.
type View interface {
	Init(js string)
	Eval(js string)
	Bind(name string, f interface{}) error
	Dispatch(f func())
	Navigate(url string)
	SetHtml(html string)
}

// Window is a native window whose run loop the caller drives.
// webview.WebView satisfies it.
type Window interface {
	View
	Run()
	Terminate()
	Destroy()
}

// Host adapts a webview_go window to jsbridge.ScriptMessageHost.
type Host struct {
	view View
	log  zerolog.Logger

	evalSeq atomic.Uint64
	evals   *xsync.Map[string, func(string, error)]

	mu       sync.Mutex
	handlers map[string]jsbridge.ModernWebViewEvents
	bound    map[string]bool
}

var _ jsbridge.ScriptMessageHost = (*Host)(nil)

// New binds the evaluation result channel into view. Call it before the
// first navigation.
func New(ctx context.Context, view View) (*Host, error) {
	if view == nil {
		return nil, errors.New("webview is nil")
	}
	h := &Host{
		view:     view,
		log:      logging.FromContext(ctx).With().Str("component", "webview-host").Logger(),
		evals:    xsync.NewMap[string, func(string, error)](),
		handlers: make(map[string]jsbridge.ModernWebViewEvents),
		bound:    make(map[string]bool),
	}
	if err := view.Bind(evalResultBinding, h.evalResult); err != nil {
		return nil, fmt.Errorf("bind %s: %w", evalResultBinding, err)
	}
	return h, nil
}

// InjectScript runs source at the start of every page.
func (h *Host) InjectScript(source string) error {
	h.view.Init(source)
	return nil
}

// EvaluateScript evaluates source with indirect eval, so the result is the
// completion value of the whole script.
func (h *Host) EvaluateScript(source string, done func(result string, err error)) {
	if done == nil {
		h.view.Dispatch(func() { h.view.Eval(source) })
		return
	}

	id := strconv.FormatUint(h.evalSeq.Add(1), 10)
	script, err := evalScript(id, source)
	if err != nil {
		h.view.Dispatch(func() { done("", err) })
		return
	}
	h.evals.Store(id, done)
	h.view.Dispatch(func() { h.view.Eval(script) })
}

// Dispatch runs fn on the UI thread.
func (h *Host) Dispatch(fn func()) {
	h.view.Dispatch(fn)
}

// AddScriptMessageHandler binds a post function for name and exposes it as
// window.__wvjbChannels[name].
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
	needsBinding := !h.bound[name]
	h.bound[name] = true
	h.mu.Unlock()

	if !needsBinding {
		return nil
	}

	binding := postBindingPrefix + strconv.Itoa(len(h.bound))
	if err := h.view.Bind(binding, func(body string) {
		h.post(name, body)
	}); err != nil {
		h.mu.Lock()
		delete(h.handlers, name)
		delete(h.bound, name)
		h.mu.Unlock()
		return fmt.Errorf("bind %s: %w", binding, err)
	}

	shim, err := channelShim(name, binding)
	if err != nil {
		return err
	}
	h.view.Init(shim)
	return nil
}

// RemoveScriptMessageHandler stops delivering posts to name. The binding
// stays in place and ignores further posts.
func (h *Host) RemoveScriptMessageHandler(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, name)
}

// Navigate loads url and reports the navigation start.
func (h *Host) Navigate(url string) {
	h.view.Dispatch(func() {
		h.navigationStarted(url)
		h.view.Navigate(url)
	})
}

// SetHTML loads an inline document and reports the navigation start.
func (h *Host) SetHTML(html string) {
	h.view.Dispatch(func() {
		h.navigationStarted("about:blank")
		h.view.SetHtml(html)
	})
}

func (h *Host) navigationStarted(url string) {
	h.mu.Lock()
	events := make([]jsbridge.ModernWebViewEvents, 0, len(h.handlers))
	for _, ev := range h.handlers {
		events = append(events, ev)
	}
	h.mu.Unlock()

	for _, ev := range events {
		ev.DidStartNavigation(url)
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

func (h *Host) evalResult(id, result, errMsg string) {
	done, ok := h.evals.LoadAndDelete(id)
	if !ok {
		h.log.Debug().Str("eval_id", id).Msg("result for unknown evaluation")
		return
	}
	if errMsg != "" {
		done("", errors.New(errMsg))
		return
	}
	done(result, nil)
}

func evalScript(id, source string) (string, error) {
	idLit, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	srcLit, err := json.Marshal(source)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		`(function(){var id=%[1]s;try{var r=(0,eval)(%[2]s);`+
			`window.%[3]s(id,r===undefined||r===null?"":String(r),"");}`+
			`catch(e){window.%[3]s(id,"",String(e&&e.message||e));}})();`,
		idLit, srcLit, evalResultBinding,
	), nil
}

func channelShim(name, binding string) (string, error) {
	nameLit, err := json.Marshal(name)
	if err != nil {
		return "", fmt.Errorf("encode handler name: %w", err)
	}
	return fmt.Sprintf(
		`(function(){var c=window.__wvjbChannels=window.__wvjbChannels||{};`+
			`c[%[1]s]={postMessage:function(body){return window.%[2]s(String(body));}};})();`,
		nameLit, binding,
	), nil
}
