// Package jsvm hosts a headless page in the sobek JavaScript engine.
//
// The host mimics a modern webview: scripts added with InjectScript run at
// the start of every document, window.webkit.messageHandlers delivers script
// messages, and every callback into Go happens on the loop goroutine driven
// by Run or RunUntilIdle.
package jsvm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/grafana/sobek"
	"github.com/rs/zerolog"

	"github.com/bnema/jsbridge/internal/logging"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("jsvm: host closed")

// Host is a single headless page.
type Host struct {
	log zerolog.Logger

	mu       sync.Mutex
	jobs     []func()
	scripts  []string
	handlers map[string]jsbridge.ModernWebViewEvents

	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	timers    atomic.Int64

	// Owned by the loop goroutine.
	vm      *sobek.Runtime
	url     string
	timerID int
	pending map[int]func() bool
}

var _ jsbridge.ScriptMessageHost = (*Host)(nil)

// New creates a host with an empty document.
func New(ctx context.Context) *Host {
	return &Host{
		log:      logging.FromContext(ctx).With().Str("component", "jsvm-host").Logger(),
		handlers: make(map[string]jsbridge.ModernWebViewEvents),
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
		pending:  make(map[int]func() bool),
	}
}

// InjectScript adds source to the scripts run at the start of every
// document loaded afterwards.
func (h *Host) InjectScript(source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts = append(h.scripts, source)
	return nil
}

// EvaluateScript evaluates source in the current document on a later turn.
func (h *Host) EvaluateScript(source string, done func(result string, err error)) {
	h.Dispatch(func() {
		result, err := h.evaluate(source)
		if done != nil {
			done(result, err)
		}
	})
}

// Dispatch queues fn for a later turn of the loop.
func (h *Host) Dispatch(fn func()) {
	h.mu.Lock()
	h.jobs = append(h.jobs, fn)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// AddScriptMessageHandler exposes window.webkit.messageHandlers[name].
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

	h.Dispatch(func() {
		if h.vm != nil {
			h.installMessageHandler(h.vm, name)
		}
	})
	return nil
}

// RemoveScriptMessageHandler stops delivering messages posted to name.
func (h *Host) RemoveScriptMessageHandler(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, name)
}

// Load replaces the current document with a new one running source, after
// the injected scripts.
func (h *Host) Load(url, source string) {
	h.Dispatch(func() {
		h.load(url, source)
	})
}

// URL returns the address of the current document. Loop goroutine only.
func (h *Host) URL() string {
	return h.url
}

// Run drives the loop until ctx is done or the host is closed.
func (h *Host) Run(ctx context.Context) error {
	for {
		h.runJobs()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.closed:
			return ErrClosed
		case <-h.wake:
		}
	}
}

// RunUntilIdle drives the loop until no job is queued and no timer is
// pending.
func (h *Host) RunUntilIdle(ctx context.Context) error {
	for {
		h.runJobs()
		if h.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.closed:
			return ErrClosed
		case <-h.wake:
		}
	}
}

// Close stops the loop. Queued jobs are dropped.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)
		h.mu.Lock()
		h.jobs = nil
		h.mu.Unlock()
	})
}

func (h *Host) idle() bool {
	if h.timers.Load() > 0 {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.jobs) == 0
}

func (h *Host) runJobs() {
	for {
		h.mu.Lock()
		if len(h.jobs) == 0 {
			h.mu.Unlock()
			return
		}
		fn := h.jobs[0]
		h.jobs = h.jobs[1:]
		h.mu.Unlock()

		h.runJob(fn)
	}
}

func (h *Host) runJob(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("loop job panicked")
		}
	}()
	fn()
}

func (h *Host) load(url, source string) {
	events := h.events()
	for _, ev := range events {
		ev.DidStartNavigation(url)
	}

	h.cancelTimers()
	h.vm = h.newRuntime()
	h.url = url

	h.mu.Lock()
	scripts := append([]string(nil), h.scripts...)
	h.mu.Unlock()

	for i, script := range scripts {
		if _, err := h.vm.RunScript(fmt.Sprintf("injected-%d.js", i), script); err != nil {
			h.log.Warn().Err(err).Int("script", i).Msg("injected script failed")
		}
	}

	if _, err := h.vm.RunScript(url, source); err != nil {
		h.log.Warn().Err(err).Str("url", url).Msg("page script failed")
		for _, ev := range events {
			ev.DidFailNavigation(url, err)
		}
		return
	}
	for _, ev := range events {
		ev.DidFinishNavigation(url)
	}
}

func (h *Host) evaluate(source string) (string, error) {
	if h.vm == nil {
		return "", errors.New("no document loaded")
	}
	v, err := h.vm.RunString(source)
	if err != nil {
		return "", err
	}
	if v == nil || sobek.IsUndefined(v) || sobek.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
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

func (h *Host) postMessage(name, body string) {
	h.mu.Lock()
	events, ok := h.handlers[name]
	h.mu.Unlock()
	if !ok {
		h.log.Debug().Str("handler", name).Msg("script message to removed handler")
		return
	}
	h.Dispatch(func() {
		events.DidReceiveScriptMessage(name, body)
	})
}
