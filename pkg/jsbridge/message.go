package jsbridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Protocol constants shared with the bootstrap script.
const (
	// DefaultScheme is the custom URL scheme the script side notifies through.
	DefaultScheme = "wvjbscheme"
	// DefaultPathPrefix addresses the bridge on hosts that intercept
	// same-origin requests instead of a custom scheme.
	DefaultPathPrefix = "/__wvjb__/"
	// DefaultMessageHandlerName is the script message handler name
	// registered on modern hosts.
	DefaultMessageHandlerName = "wvjb"

	// QueueHasMessage tells the native side to pull the script queue.
	QueueHasMessage = "__WVJB_QUEUE_MESSAGE__"
	// BridgeLoaded tells the native side the bootstrap finished installing.
	BridgeLoaded = "__BRIDGE_LOADED__"

	fetchQueueScript  = "WebViewJavascriptBridge._fetchQueue();"
	handleMessageCall = "WebViewJavascriptBridge._handleMessageFromNative(%s);"
)

// Message is the JSON envelope exchanged with the script side.
// A call expecting an answer carries CallbackID; the answer carries the
// same value in ResponseID.
type Message struct {
	CallbackID   string          `json:"callbackId,omitempty" jsonschema:"description=Set on calls that expect a response"`
	HandlerName  string          `json:"handlerName,omitempty" jsonschema:"description=Name of the handler to invoke on the receiving side"`
	Data         json.RawMessage `json:"data,omitempty" jsonschema:"description=Opaque payload"`
	ResponseID   string          `json:"responseId,omitempty" jsonschema:"description=CallbackID of the call this message answers"`
	ResponseData json.RawMessage `json:"responseData,omitempty" jsonschema:"description=Payload of the response"`
}

// IsResponse reports whether m answers an earlier call.
func (m Message) IsResponse() bool {
	return m.ResponseID != ""
}

var errNullEntry = errors.New("null message entry")

// decodeBatch parses a fetched script queue. An unparseable batch is an
// error; individual malformed entries are passed to skip and left out.
func decodeBatch(raw string, skip func(index int, err error)) ([]Message, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decode message batch: %w", err)
	}

	messages := make([]Message, 0, len(entries))
	for i, entry := range entries {
		if bytes.Equal(bytes.TrimSpace(entry), []byte("null")) {
			if skip != nil {
				skip(i, errNullEntry)
			}
			continue
		}
		var msg Message
		if err := json.Unmarshal(entry, &msg); err != nil {
			if skip != nil {
				skip(i, err)
			}
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// encodeBatch serializes messages into a script string literal holding the
// JSON array. encoding/json escapes U+2028 and U+2029, so the literal is
// valid script source.
func encodeBatch(messages []Message) (string, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encode message batch: %w", err)
	}
	literal, err := json.Marshal(string(payload))
	if err != nil {
		return "", fmt.Errorf("quote message batch: %w", err)
	}
	return string(literal), nil
}

// marshalPayload converts caller data into raw JSON. nil stays absent.
func marshalPayload(v any) (json.RawMessage, error) {
	switch data := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if data == nil {
			return nil, nil
		}
		if !json.Valid(data) {
			return nil, errors.New("raw payload is not valid JSON")
		}
		return data, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// marshalResponse is marshalPayload with an explicit null for nil, so the
// script side always sees a responseData value.
func marshalResponse(v any) (json.RawMessage, error) {
	data, err := marshalPayload(v)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return json.RawMessage("null"), nil
	}
	return data, nil
}

func newCallbackID() string {
	return "go_cb_" + uuid.NewString()
}
