// Package jsbridge is a bidirectional messaging bridge between a Go host and
// the script engine of a webview it owns.
//
// The bridge injects a bootstrap script into every page. Both sides keep a
// registry of named handlers and a table of callbacks waiting for responses.
// The script side signals "queue has message" through the host's
// notification channel and the bridge pulls the queue in one batch.
package jsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"github.com/bnema/jsbridge/internal/logging"
)

const consumedResponseMemory = 256

// ResponseCallback receives the payload of the response to a call.
type ResponseCallback func(responseData json.RawMessage)

// Responder answers the message a handler was invoked for. Only the first
// call has effect.
type Responder func(responseData any)

// Handler handles a message from the script side.
type Handler func(data json.RawMessage, respond Responder)

// Bridge is the native half of the messaging channel of one webview.
type Bridge struct {
	host      Host
	opts      options
	bootstrap string
	log       zerolog.Logger

	defaultHandler Handler
	handlers       *xsync.Map[string, Handler]
	pending        *xsync.Map[string, ResponseCallback]
	consumed       *lru.Cache[string, struct{}]

	legacy *legacyEvents
	modern *modernEvents

	mu             sync.Mutex
	state          State
	queue          []Message
	flushScheduled bool
	closed         chan struct{}
}

// New attaches a bridge to host and injects the bootstrap script.
// handler receives script messages that name no handler; it may be nil.
// Hosts implementing ScriptMessageHost are attached through their script
// message channel, NavigationHost through navigation interception.
func New(ctx context.Context, host Host, handler Handler, opts ...Option) (*Bridge, error) {
	if host == nil {
		return nil, ErrNilHost
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	source, err := loadBootstrap(o.bundle)
	if err != nil {
		return nil, err
	}
	bootstrap, err := renderBootstrap(source, bootstrapConfig{
		Scheme:         o.scheme,
		PathPrefix:     o.pathPrefix,
		MessageHandler: o.messageHandlerName,
		FailSoft:       o.missingHandler == MissingHandlerFailSoft,
	})
	if err != nil {
		return nil, err
	}

	consumed, err := lru.New[string, struct{}](consumedResponseMemory)
	if err != nil {
		return nil, fmt.Errorf("create response memory: %w", err)
	}

	b := &Bridge{
		host:           host,
		opts:           o,
		bootstrap:      bootstrap,
		log:            logging.FromContext(ctx).With().Str("component", "jsbridge").Logger(),
		defaultHandler: handler,
		handlers:       xsync.NewMap[string, Handler](),
		pending:        xsync.NewMap[string, ResponseCallback](),
		consumed:       consumed,
		state:          StateUninitialized,
		closed:         make(chan struct{}),
	}

	attached := false
	if smh, ok := host.(ScriptMessageHost); ok {
		b.modern = &modernEvents{b: b, next: o.modernDelegate}
		if err := smh.AddScriptMessageHandler(o.messageHandlerName, b.modern); err != nil {
			return nil, fmt.Errorf("register script message handler %q: %w", o.messageHandlerName, err)
		}
		attached = true
	}
	if nh, ok := host.(NavigationHost); ok {
		b.legacy = &legacyEvents{b: b, next: o.legacyDelegate}
		nh.SetNavigationDelegate(b.legacy)
		attached = true
	}
	if !attached {
		return nil, ErrUnsupportedHost
	}

	if err := host.InjectScript(b.bootstrap); err != nil {
		b.detach()
		return nil, fmt.Errorf("inject bootstrap script: %w", err)
	}

	b.mu.Lock()
	b.state = StateBootstrappingInjected
	b.mu.Unlock()

	b.log.Debug().
		Bool("modern", b.modern != nil).
		Bool("legacy", b.legacy != nil).
		Int("bootstrap_len", len(b.bootstrap)).
		Msg("bridge attached")

	return b, nil
}

// State returns the channel state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RegisterHandler registers handler under name. A later registration under
// the same name replaces the earlier one.
func (b *Bridge) RegisterHandler(name string, handler Handler) {
	if name == "" || handler == nil {
		b.traceEvent(warnLevel).Str("handler", name).Msg("ignoring handler registration without name or function")
		return
	}
	b.handlers.Store(name, handler)
}

// RemoveHandler unregisters the handler named name.
func (b *Bridge) RemoveHandler(name string) {
	b.handlers.Delete(name)
}

// Send sends data to the script side's default handler. cb, if not nil,
// receives the response.
func (b *Bridge) Send(data any, cb ResponseCallback) {
	_, _ = b.enqueue("", data, cb)
}

// CallHandler invokes the script handler named name with data. cb, if not
// nil, receives the response.
func (b *Bridge) CallHandler(name string, data any, cb ResponseCallback) {
	_, _ = b.enqueue(name, data, cb)
}

// Call invokes the script handler named name and waits for its response.
// It must not be called from the host loop, which delivers the response.
func (b *Bridge) Call(ctx context.Context, name string, data any) (json.RawMessage, error) {
	result := make(chan json.RawMessage, 1)
	id, err := b.enqueue(name, data, func(resp json.RawMessage) {
		result <- resp
	})
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-result:
		return resp, nil
	case <-ctx.Done():
		b.pending.Delete(id)
		return nil, ctx.Err()
	case <-b.closed:
		return nil, ErrClosed
	}
}

// Close tears the channel down. Pending response callbacks are discarded
// without being invoked; later sends and responder calls do nothing.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.state == StateTornDown {
		b.mu.Unlock()
		return
	}
	b.state = StateTornDown
	dropped := len(b.queue)
	b.queue = nil
	discarded := b.pending.Size()
	b.pending.Clear()
	close(b.closed)
	b.mu.Unlock()

	b.detach()

	b.log.Debug().
		Int("dropped_messages", dropped).
		Int("discarded_callbacks", discarded).
		Msg("bridge torn down")
}

func (b *Bridge) detach() {
	if b.modern != nil {
		if smh, ok := b.host.(ScriptMessageHost); ok {
			smh.RemoveScriptMessageHandler(b.opts.messageHandlerName)
		}
	}
	if b.legacy != nil {
		if nh, ok := b.host.(NavigationHost); ok {
			nh.SetNavigationDelegate(b.legacy.next)
		}
	}
}

func (b *Bridge) enqueue(handlerName string, data any, cb ResponseCallback) (string, error) {
	payload, err := marshalPayload(data)
	if err != nil {
		b.traceEvent(warnLevel).Err(err).Str("handler", handlerName).Msg("dropping message with unencodable data")
		return "", err
	}

	msg := Message{HandlerName: handlerName, Data: payload}
	if cb != nil {
		msg.CallbackID = newCallbackID()
	}
	if !b.queueMessage(msg, cb) {
		return "", ErrClosed
	}
	return msg.CallbackID, nil
}

// queueMessage appends msg to the outbound queue and registers cb under its
// callback id. The flush runs on a later host turn, once the page is ready.
func (b *Bridge) queueMessage(msg Message, cb ResponseCallback) bool {
	b.mu.Lock()
	if b.state == StateTornDown {
		b.mu.Unlock()
		b.traceEvent(zerolog.DebugLevel).Str("handler", msg.HandlerName).Msg("dropping message sent after teardown")
		return false
	}
	if cb != nil {
		b.pending.Store(msg.CallbackID, cb)
	}
	b.queue = append(b.queue, msg)
	schedule := b.scheduleFlushLocked()
	b.mu.Unlock()

	if schedule {
		b.host.Dispatch(b.flush)
	}
	return true
}

// scheduleFlushLocked reports whether the caller must dispatch a flush.
func (b *Bridge) scheduleFlushLocked() bool {
	if b.state != StateReady || b.flushScheduled || len(b.queue) == 0 {
		return false
	}
	b.flushScheduled = true
	return true
}

func (b *Bridge) flush() {
	b.mu.Lock()
	b.flushScheduled = false
	if b.state != StateReady || len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	literal, err := encodeBatch(batch)
	if err != nil {
		b.traceEvent(zerolog.ErrorLevel).Err(err).Int("count", len(batch)).Msg("dropping outbound batch")
		return
	}
	for _, msg := range batch {
		b.traceMessage("send", msg)
	}

	b.host.EvaluateScript(fmt.Sprintf(handleMessageCall, literal), func(_ string, err error) {
		if err != nil {
			b.traceEvent(warnLevel).Err(err).Int("count", len(batch)).Msg("delivering batch to script failed")
		}
	})
}

// handleBridgeURL reports whether rawURL addresses the bridge, acting on the
// command it carries.
func (b *Bridge) handleBridgeURL(rawURL string) bool {
	command, ok := b.bridgeCommand(rawURL)
	if !ok {
		return false
	}

	switch command {
	case BridgeLoaded:
		b.markReady()
	case QueueHasMessage:
		// Only an installed bootstrap queues messages, so a lost
		// __BRIDGE_LOADED__ must not hold the outbound queue back.
		if b.State() == StateBootstrappingInjected {
			b.markReady()
		}
		b.fetchQueue()
	default:
		b.traceEvent(warnLevel).Str("url", rawURL).Msg("unknown bridge command")
	}
	return true
}

func (b *Bridge) bridgeCommand(rawURL string) (string, bool) {
	if rest, ok := strings.CutPrefix(rawURL, b.opts.scheme+"://"); ok {
		return trimCommand(rest), true
	}
	if b.opts.pathPrefix == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if rest, ok := strings.CutPrefix(u.Path, b.opts.pathPrefix); ok {
		return trimCommand(rest), true
	}
	return "", false
}

func trimCommand(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i]
	}
	return s
}

func (b *Bridge) markReady() {
	b.mu.Lock()
	if b.state == StateTornDown {
		b.mu.Unlock()
		return
	}
	again := b.state == StateReady
	b.state = StateReady
	queued := len(b.queue)
	schedule := b.scheduleFlushLocked()
	b.mu.Unlock()

	b.log.Debug().Int("queued", queued).Bool("again", again).Msg("script side ready")
	if schedule {
		b.host.Dispatch(b.flush)
	}
}

// navigationStarted waits for the next document to announce itself before
// delivering anything else.
func (b *Bridge) navigationStarted(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateReady {
		b.state = StateBootstrappingInjected
		b.log.Debug().Str("url", url).Msg("navigation started, waiting for bootstrap")
	}
}

// reinjectAfterLoad installs the bootstrap after a load finishes, for
// legacy hosts that cannot inject at document start. An already installed
// script announces itself again instead of reinstalling.
func (b *Bridge) reinjectAfterLoad() {
	state := b.State()
	if state == StateTornDown || state == StateReady {
		return
	}
	b.host.EvaluateScript(b.bootstrap, func(_ string, err error) {
		if err != nil {
			b.traceEvent(warnLevel).Err(err).Msg("injecting bootstrap after load failed")
		}
	})
}

func (b *Bridge) fetchQueue() {
	if b.State() == StateTornDown {
		return
	}
	b.host.EvaluateScript(fetchQueueScript, func(result string, err error) {
		if err != nil {
			b.traceEvent(warnLevel).Err(err).Msg("fetching script queue failed")
			return
		}
		b.dispatchBatch(result)
	})
}
