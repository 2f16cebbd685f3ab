package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/internal/config"
	"github.com/bnema/jsbridge/internal/host/webkit"
	"github.com/bnema/jsbridge/internal/host/webview"
)

func testApp() *App {
	return &App{
		Config: config.DefaultConfig(),
		Log:    zerolog.Nop(),
		Theme:  styles.NewTheme(),
	}
}

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.js")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o600))
	return path
}

// syncBuffer is written from the host loop and read from the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunScriptCallsHandlers(t *testing.T) {
	path := writeScript(t, `
WebViewJavascriptBridge.callHandler('print', 'hi');
WebViewJavascriptBridge.callHandler('echo', { n: 1 }, function(r) {
	WebViewJavascriptBridge.callHandler('print', 'echoed ' + r.n);
});
WebViewJavascriptBridge.send('ping', function(r) {
	WebViewJavascriptBridge.callHandler('print', 'default got ' + r.received);
});
`)

	var out bytes.Buffer
	err := runScript(context.Background(), testApp(), path, 5*time.Second, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "hi")
	assert.Contains(t, out.String(), "echoed 1")
	assert.Contains(t, out.String(), "default got ping")
	assert.Contains(t, out.String(), "script.js")
}

func TestRunScriptReportsFailure(t *testing.T) {
	path := writeScript(t, `throw new Error('boom');`)

	err := runScript(context.Background(), testApp(), path, 5*time.Second, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunScriptTimesOut(t *testing.T) {
	path := writeScript(t, `setTimeout(function tick() { setTimeout(tick, 5); }, 5);`)

	err := runScript(context.Background(), testApp(), path, 100*time.Millisecond, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still running")
}

func TestRunScriptMissingFile(t *testing.T) {
	err := runScript(context.Background(), testApp(), filepath.Join(t.TempDir(), "absent.js"), time.Second, io.Discard)
	assert.ErrorContains(t, err, "read script")
}

type fakeWindow struct {
	inits     []string
	bindings  map[string]interface{}
	turns     []func()
	pages     []string
	destroyed bool
	mu        sync.Mutex
}

func (w *fakeWindow) Init(js string) { w.inits = append(w.inits, js) }
func (w *fakeWindow) Eval(string)   {}

func (w *fakeWindow) Bind(name string, f interface{}) error {
	if w.bindings == nil {
		w.bindings = make(map[string]interface{})
	}
	w.bindings[name] = f
	return nil
}

func (w *fakeWindow) Dispatch(f func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = append(w.turns, f)
}

func (w *fakeWindow) Navigate(url string) { w.pages = append(w.pages, url) }
func (w *fakeWindow) SetHtml(html string) { w.pages = append(w.pages, html) }
func (w *fakeWindow) Terminate()          {}
func (w *fakeWindow) Destroy()            { w.destroyed = true }

// Run drains the dispatched turns, then returns as if the window closed.
func (w *fakeWindow) Run() {
	for {
		w.mu.Lock()
		if len(w.turns) == 0 {
			w.mu.Unlock()
			return
		}
		fn := w.turns[0]
		w.turns = w.turns[1:]
		w.mu.Unlock()
		fn()
	}
}

func TestOpenWindowShowsDemoPage(t *testing.T) {
	win := &fakeWindow{}
	var opened WindowOptions
	factory := func(opts WindowOptions) webview.Window {
		opened = opts
		return win
	}

	err := openWindow(context.Background(), testApp(), factory, "", io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "jsbridge", opened.Title)
	assert.Equal(t, 960, opened.Width)
	require.Len(t, win.inits, 2)
	assert.Contains(t, win.inits[1], "WebViewJavascriptBridge")
	require.Len(t, win.pages, 1)
	assert.Contains(t, win.pages[0], "setupWebViewJavascriptBridge")
	assert.True(t, win.destroyed)
}

func TestOpenWindowNavigatesToURL(t *testing.T) {
	win := &fakeWindow{}
	factory := func(WindowOptions) webview.Window { return win }

	err := openWindow(context.Background(), testApp(), factory, "https://example.test/", io.Discard)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.test/"}, win.pages)
}

type fakeWebKitWindow struct {
	mu           sync.Mutex
	scripts      []string
	handlers     []string
	unregistered []string
	turns        []func()
	loads        []string
	destroyed    bool
}

func (w *fakeWebKitWindow) AddUserScript(source string) { w.scripts = append(w.scripts, source) }

func (w *fakeWebKitWindow) RegisterScriptMessageHandler(name string, _ func(string)) error {
	w.handlers = append(w.handlers, name)
	return nil
}

func (w *fakeWebKitWindow) UnregisterScriptMessageHandler(name string) {
	w.unregistered = append(w.unregistered, name)
}

func (w *fakeWebKitWindow) EvaluateJavascript(_ string, done func(string, error)) {
	if done != nil {
		w.IdleAdd(func() { done("", nil) })
	}
}

func (w *fakeWebKitWindow) OnDecidePolicy(func(string) bool)             {}
func (w *fakeWebKitWindow) OnLoadChanged(func(webkit.LoadEvent, string)) {}
func (w *fakeWebKitWindow) OnLoadFailed(func(string, error))             {}
func (w *fakeWebKitWindow) LoadURI(uri string)                           { w.loads = append(w.loads, uri) }
func (w *fakeWebKitWindow) LoadHTML(content, _ string)                   { w.loads = append(w.loads, content) }
func (w *fakeWebKitWindow) Terminate()                                   {}
func (w *fakeWebKitWindow) Destroy()                                     { w.destroyed = true }

func (w *fakeWebKitWindow) IdleAdd(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = append(w.turns, fn)
}

// Run drains the idle callbacks, then returns as if the window closed.
func (w *fakeWebKitWindow) Run() {
	for {
		w.mu.Lock()
		if len(w.turns) == 0 {
			w.mu.Unlock()
			return
		}
		fn := w.turns[0]
		w.turns = w.turns[1:]
		w.mu.Unlock()
		fn()
	}
}

func TestOpenWebKitWindowShowsDemoPage(t *testing.T) {
	win := &fakeWebKitWindow{}
	var opened WindowOptions
	factory := func(opts WindowOptions) (webkit.Window, error) {
		opened = opts
		return win, nil
	}

	err := openWebKitWindow(context.Background(), testApp(), factory, "", io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "jsbridge", opened.Title)
	require.Len(t, win.scripts, 1)
	assert.Contains(t, win.scripts[0], "WebViewJavascriptBridge")
	assert.Equal(t, []string{"wvjb"}, win.handlers)
	require.Len(t, win.loads, 1)
	assert.Contains(t, win.loads[0], "setupWebViewJavascriptBridge")
	assert.Equal(t, []string{"wvjb"}, win.unregistered, "closing the bridge unregisters its handler")
	assert.True(t, win.destroyed)
}

func TestOpenWebKitWindowReportsFactoryError(t *testing.T) {
	factory := func(WindowOptions) (webkit.Window, error) {
		return nil, errors.New("no display")
	}

	err := openWebKitWindow(context.Background(), testApp(), factory, "https://example.test/", io.Discard)
	assert.ErrorContains(t, err, "no display")
}

func TestServeDemoPage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- serve(ctx, testApp(), ln, "", false, &out) }()

	url := "http://" + ln.Addr().String() + "/"
	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		body = string(data)
		return true
	}, 5*time.Second, 20*time.Millisecond)

	assert.Contains(t, body, "window.__wvjbConfig")
	assert.Contains(t, body, "setupWebViewJavascriptBridge")
	assert.Contains(t, out.String(), url)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeNeedsPathPrefix(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := testApp()
	app.Config.Bridge.PathPrefix = ""

	err = serve(context.Background(), app, ln, "", false, io.Discard)
	assert.ErrorContains(t, err, "path_prefix")
}

func TestPrintSchema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printSchema(&out, false))
	assert.True(t, json.Valid(out.Bytes()))
	assert.Contains(t, out.String(), "bridge")

	out.Reset()
	require.NoError(t, printSchema(&out, true))
	assert.Contains(t, out.String(), "callbackId")
}

func TestDemoPagesContainIndex(t *testing.T) {
	pages, err := demoPages()
	require.NoError(t, err)

	html, err := demoHTML()
	require.NoError(t, err)

	f, err := pages.Open("index.html")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.True(t, strings.Contains(html, "registerHandler('greet'"))
}
