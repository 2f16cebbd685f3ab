package jsbridge

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// dispatchBatch handles a fetched queue in order. A malformed entry is
// dropped without stalling the rest of the batch.
func (b *Bridge) dispatchBatch(raw string) {
	messages, err := decodeBatch(raw, func(index int, err error) {
		b.traceEvent(warnLevel).Err(err).Int("index", index).Msg("dropping malformed message")
	})
	if err != nil {
		b.traceEvent(warnLevel).Err(err).Str("batch", truncate(raw)).Msg("dropping unparseable message batch")
		return
	}

	for _, msg := range messages {
		if b.State() == StateTornDown {
			return
		}
		b.traceMessage("receive", msg)
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg Message) {
	if msg.IsResponse() {
		b.resolve(msg)
		return
	}

	respond := b.responderFor(msg)
	name := msg.HandlerName
	handler := b.defaultHandler
	if name != "" {
		handler, _ = b.handlers.Load(name)
	}
	if handler == nil {
		b.handleMissing(msg, respond)
		return
	}
	b.invoke(name, func() { handler(msg.Data, respond) })
}

// resolve consumes the pending callback the response answers.
func (b *Bridge) resolve(msg Message) {
	cb, ok := b.pending.LoadAndDelete(msg.ResponseID)
	if !ok {
		reason := "unknown"
		if b.consumed.Contains(msg.ResponseID) {
			reason = "duplicate"
		}
		b.traceEvent(zerolog.DebugLevel).
			Str("response_id", msg.ResponseID).
			Str("reason", reason).
			Msg("dropping response without pending callback")
		return
	}
	b.consumed.Add(msg.ResponseID, struct{}{})
	b.invoke("response:"+msg.ResponseID, func() { cb(msg.ResponseData) })
}

// responderFor returns the one-shot responder for msg. Messages without a
// callback id expect no answer and get a responder that does nothing.
func (b *Bridge) responderFor(msg Message) Responder {
	callbackID := msg.CallbackID
	if callbackID == "" {
		return func(any) {}
	}

	var used atomic.Bool
	return func(responseData any) {
		if !used.CompareAndSwap(false, true) {
			b.traceEvent(zerolog.DebugLevel).Str("callback_id", callbackID).Msg("ignoring repeated response")
			return
		}
		payload, err := marshalResponse(responseData)
		if err != nil {
			b.traceEvent(warnLevel).Err(err).Str("callback_id", callbackID).Msg("dropping unencodable response")
			return
		}
		b.queueMessage(Message{ResponseID: callbackID, ResponseData: payload}, nil)
	}
}

func (b *Bridge) handleMissing(msg Message, respond Responder) {
	b.traceEvent(warnLevel).
		Str("handler", msg.HandlerName).
		Str("policy", string(b.opts.missingHandler)).
		Msg("no handler for message from script")
	if b.opts.missingHandler == MissingHandlerFailSoft {
		respond(nil)
	}
}

// invoke runs fn, absorbing panics so one handler cannot stall the channel.
func (b *Bridge) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.traceEvent(zerolog.ErrorLevel).Str("handler", name).Interface("panic", r).Msg("handler panicked")
		}
	}()
	fn()
}

