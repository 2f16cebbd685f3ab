package jsbridge

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// baseHost records scripts and runs loop turns only when a test drains it.
type baseHost struct {
	mu          sync.Mutex
	injected    []string
	evaluated   []string
	turns       []func()
	scriptQueue []string
}

// fakeHost is a modern host.
type fakeHost struct {
	baseHost
	events      ModernWebViewEvents
	handlerName string
	removed     bool
}

func (h *baseHost) InjectScript(source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.injected = append(h.injected, source)
	return nil
}

func (h *baseHost) EvaluateScript(source string, done func(string, error)) {
	h.mu.Lock()
	h.evaluated = append(h.evaluated, source)
	result := ""
	if source == fetchQueueScript && len(h.scriptQueue) > 0 {
		result = h.scriptQueue[0]
		h.scriptQueue = h.scriptQueue[1:]
	}
	h.mu.Unlock()
	if done != nil {
		h.Dispatch(func() { done(result, nil) })
	}
}

func (h *baseHost) Dispatch(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, fn)
}

func (h *fakeHost) AddScriptMessageHandler(name string, events ModernWebViewEvents) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlerName = name
	h.events = events
	return nil
}

func (h *fakeHost) RemoveScriptMessageHandler(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = true
}

// drain runs queued turns, including turns queued while draining.
func (h *baseHost) drain() {
	for {
		h.mu.Lock()
		if len(h.turns) == 0 {
			h.mu.Unlock()
			return
		}
		fn := h.turns[0]
		h.turns = h.turns[1:]
		h.mu.Unlock()
		fn()
	}
}

func (h *fakeHost) post(command string) {
	h.mu.Lock()
	events, name := h.events, h.handlerName
	h.mu.Unlock()
	events.DidReceiveScriptMessage(name, DefaultScheme+"://"+command)
	h.drain()
}

func (h *fakeHost) ready() {
	h.post(BridgeLoaded)
}

// receive makes the script side hand batch to the native side.
func (h *fakeHost) receive(batch string) {
	h.queueBatch(batch)
	h.post(QueueHasMessage)
}

func (h *baseHost) queueBatch(batch string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scriptQueue = append(h.scriptQueue, batch)
}

// delivered decodes every batch evaluated into the page so far.
func (h *baseHost) delivered(t *testing.T) []Message {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := strings.SplitN(handleMessageCall, "%s", 2)[0]
	var out []Message
	for _, src := range h.evaluated {
		literal, ok := strings.CutPrefix(src, prefix)
		if !ok {
			continue
		}
		literal = strings.TrimSuffix(literal, ");")
		var batch string
		require.NoError(t, json.Unmarshal([]byte(literal), &batch))
		var messages []Message
		require.NoError(t, json.Unmarshal([]byte(batch), &messages))
		out = append(out, messages...)
	}
	return out
}

func (h *baseHost) deliveredCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	prefix := strings.SplitN(handleMessageCall, "%s", 2)[0]
	n := 0
	for _, src := range h.evaluated {
		if strings.HasPrefix(src, prefix) {
			n++
		}
	}
	return n
}

// legacyHost is a host that only reports navigations.
type legacyHost struct {
	baseHost
	delegate LegacyWebViewEvents
}

func (h *legacyHost) SetNavigationDelegate(events LegacyWebViewEvents) {
	h.delegate = events
}

// bareHost has no notification channel at all.
type bareHost struct{}

func (bareHost) InjectScript(string) error                   { return nil }
func (bareHost) EvaluateScript(string, func(string, error)) {}
func (bareHost) Dispatch(func())                             {}

type mockModernDelegate struct {
	mock.Mock
}

func (m *mockModernDelegate) DidReceiveScriptMessage(name, body string) {
	m.Called(name, body)
}

func (m *mockModernDelegate) DecidePolicyForNavigation(url string) bool {
	return m.Called(url).Bool(0)
}

func (m *mockModernDelegate) DidStartNavigation(url string) {
	m.Called(url)
}

func (m *mockModernDelegate) DidFinishNavigation(url string) {
	m.Called(url)
}

func (m *mockModernDelegate) DidFailNavigation(url string, err error) {
	m.Called(url, err)
}

type mockLegacyDelegate struct {
	mock.Mock
}

func (m *mockLegacyDelegate) ShouldStartLoad(url string) bool {
	return m.Called(url).Bool(0)
}

func (m *mockLegacyDelegate) DidStartLoad(url string) {
	m.Called(url)
}

func (m *mockLegacyDelegate) DidFinishLoad(url string) {
	m.Called(url)
}

func (m *mockLegacyDelegate) DidFailLoad(url string, err error) {
	m.Called(url, err)
}
