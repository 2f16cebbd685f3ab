// Package remote serves a page to any browser and attaches the bridge to it
// over HTTP.
//
// The browser acts as a legacy webview: every request is reported to the
// navigation delegate, bridge notifications arrive as iframe requests under
// the bridge path prefix, and scripts are evaluated over a websocket the
// page opens back to the host.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"github.com/bnema/jsbridge/internal/logging"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

const (
	endpointPrefix = "/__jsbridge__/"
	evalPath       = endpointPrefix + "ws"
	tokenParam     = "t"
	writeTimeout   = 10 * time.Second
)

var (
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("remote: host closed")
	// ErrDisconnected is reported for evaluations whose page went away.
	ErrDisconnected = errors.New("remote: page disconnected")
)

// Option configures a Host.
type Option func(*Host)

// WithBridgePrefix sets the path prefix of bridge notification requests.
// It must match the bridge's path prefix.
func WithBridgePrefix(prefix string) Option {
	return func(h *Host) {
		if prefix != "" {
			h.bridgePrefix = prefix
		}
	}
}

type evalFrame struct {
	ID     string `json:"id"`
	Script string `json:"script"`
}

type evalReply struct {
	ID     string `json:"id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

type queuedEval struct {
	frame evalFrame
	done  func(string, error)
}

type inflightEval struct {
	conn *websocket.Conn
	done func(string, error)
}

// Host serves pages from an fs.FS to one browser page at a time.
type Host struct {
	log          zerolog.Logger
	pages        fs.FS
	bridgePrefix string
	tokens       *tokenIssuer
	upgrader     websocket.Upgrader

	mu       sync.Mutex
	jobs     []func()
	scripts  []string
	delegate jsbridge.LegacyWebViewEvents

	connMu   sync.Mutex
	conn     *websocket.Conn
	backlog  []queuedEval
	inflight *xsync.Map[string, inflightEval]
	evalSeq  atomic.Uint64

	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

var _ jsbridge.NavigationHost = (*Host)(nil)

// New creates a host serving pages. HTML files get the injected scripts at
// the start of their head.
func New(ctx context.Context, pages fs.FS, opts ...Option) (*Host, error) {
	if pages == nil {
		return nil, errors.New("remote: pages are nil")
	}
	tokens, err := newTokenIssuer()
	if err != nil {
		return nil, fmt.Errorf("create channel token: %w", err)
	}

	h := &Host{
		log:          logging.FromContext(ctx).With().Str("component", "remote-host").Logger(),
		pages:        pages,
		bridgePrefix: jsbridge.DefaultPathPrefix,
		tokens:       tokens,
		inflight:     xsync.NewMap[string, inflightEval](),
		wake:         make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// InjectScript adds source to the scripts inlined into every page.
func (h *Host) InjectScript(source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts = append(h.scripts, source)
	return nil
}

// SetNavigationDelegate sets the receiver of navigation events.
func (h *Host) SetNavigationDelegate(events jsbridge.LegacyWebViewEvents) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.delegate = events
}

// EvaluateScript sends source to the connected page. Without a page, the
// evaluation waits for the next connection.
func (h *Host) EvaluateScript(source string, done func(result string, err error)) {
	frame := evalFrame{
		ID:     strconv.FormatUint(h.evalSeq.Add(1), 10),
		Script: source,
	}

	h.connMu.Lock()
	conn := h.conn
	if conn == nil {
		h.backlog = append(h.backlog, queuedEval{frame: frame, done: done})
		h.connMu.Unlock()
		return
	}
	err := h.writeLocked(conn, frame, done)
	h.connMu.Unlock()

	if err != nil {
		h.failEval(frame.ID, err)
	}
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

// Close stops the loop and disconnects the page.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)

		h.mu.Lock()
		h.jobs = nil
		h.mu.Unlock()

		h.connMu.Lock()
		conn := h.conn
		h.conn = nil
		h.backlog = nil
		h.connMu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
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

func (h *Host) navigationDelegate() jsbridge.LegacyWebViewEvents {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.delegate
}

func (h *Host) injectedScripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.scripts...)
}

// shouldStartLoad asks the delegate on the loop and waits for the answer.
func (h *Host) shouldStartLoad(ctx context.Context, url string) (bool, error) {
	answer := make(chan bool, 1)
	h.Dispatch(func() {
		d := h.navigationDelegate()
		if d == nil {
			answer <- true
			return
		}
		answer <- d.ShouldStartLoad(url)
	})

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-h.closed:
		return false, ErrClosed
	}
}

func (h *Host) didStartLoad(url string) {
	h.Dispatch(func() {
		if d := h.navigationDelegate(); d != nil {
			d.DidStartLoad(url)
		}
	})
}

func (h *Host) didFinishLoad(url string) {
	h.Dispatch(func() {
		if d := h.navigationDelegate(); d != nil {
			d.DidFinishLoad(url)
		}
	})
}

func (h *Host) didFailLoad(url string, err error) {
	h.Dispatch(func() {
		if d := h.navigationDelegate(); d != nil {
			d.DidFailLoad(url, err)
		}
	})
}

// writeLocked sends frame on conn. Caller holds connMu.
func (h *Host) writeLocked(conn *websocket.Conn, frame evalFrame, done func(string, error)) error {
	if done != nil {
		h.inflight.Store(frame.ID, inflightEval{conn: conn, done: done})
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

// attach makes conn the page connection and sends the waiting evaluations.
func (h *Host) attach(conn *websocket.Conn) {
	h.connMu.Lock()
	previous := h.conn
	h.conn = conn
	backlog := h.backlog
	h.backlog = nil

	var failed []queuedEval
	var failure error
	for i, q := range backlog {
		if err := h.writeLocked(conn, q.frame, q.done); err != nil {
			h.inflight.Delete(q.frame.ID)
			failure = err
			failed = backlog[i:]
			break
		}
	}
	h.connMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	for _, q := range failed {
		if done := q.done; done != nil {
			h.Dispatch(func() { done("", failure) })
		}
	}
}

// detach forgets conn and fails the evaluations still waiting on it.
func (h *Host) detach(conn *websocket.Conn) {
	h.connMu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.connMu.Unlock()

	h.inflight.Range(func(id string, e inflightEval) bool {
		if e.conn == conn {
			h.failEval(id, ErrDisconnected)
		}
		return true
	})
}

func (h *Host) resolveEval(reply evalReply) {
	e, ok := h.inflight.LoadAndDelete(reply.ID)
	if !ok {
		return
	}
	h.Dispatch(func() {
		if reply.Error != "" {
			e.done("", errors.New(reply.Error))
			return
		}
		e.done(reply.Result, nil)
	})
}

func (h *Host) failEval(id string, err error) {
	e, ok := h.inflight.LoadAndDelete(id)
	if !ok {
		return
	}
	h.Dispatch(func() { e.done("", err) })
}
