package jsvm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/jsbridge/pkg/jsbridge"
)

const echoPage = `
WebViewJavascriptBridge.registerHandler('echo', function(data, respond) {
	respond(data);
});
`

// dropFirstAnnouncement swallows the first __BRIDGE_LOADED__ the page posts.
const dropFirstAnnouncement = `
(function() {
	var channel = window.webkit.messageHandlers.wvjb;
	var post = channel.postMessage;
	var dropped = false;
	channel.postMessage = function(body) {
		if (!dropped && String(body).indexOf('__BRIDGE_LOADED__') >= 0) {
			dropped = true;
			return;
		}
		post(body);
	};
})();
`

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newPage(t *testing.T, handler jsbridge.Handler, opts ...jsbridge.Option) (*Host, *jsbridge.Bridge) {
	t.Helper()
	ctx := testContext(t)
	host := New(ctx)
	t.Cleanup(host.Close)

	b, err := jsbridge.New(ctx, host, handler, opts...)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return host, b
}

// evaluate returns the string result of source in the current document.
func evaluate(t *testing.T, host *Host, source string) string {
	t.Helper()
	var result string
	var evalErr error
	host.EvaluateScript(source, func(r string, err error) {
		result, evalErr = r, err
	})
	require.NoError(t, host.RunUntilIdle(testContext(t)))
	require.NoError(t, evalErr)
	return result
}

func TestNativeCallsScriptEcho(t *testing.T) {
	host, b := newPage(t, nil)

	var responses []json.RawMessage
	b.CallHandler("echo", "hi", func(resp json.RawMessage) {
		responses = append(responses, resp)
	})

	host.Load("about:echo", echoPage)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.Equal(t, jsbridge.StateReady, b.State())
	require.Len(t, responses, 1)
	assert.JSONEq(t, `"hi"`, string(responses[0]))
}

func TestScriptCallsNativeEcho(t *testing.T) {
	host, b := newPage(t, nil)
	b.RegisterHandler("echo", func(data json.RawMessage, respond jsbridge.Responder) {
		respond(data)
	})

	host.Load("about:caller", `
		window.responses = [];
		WebViewJavascriptBridge.callHandler('echo', {greeting: 'hi'}, function(resp) {
			window.responses.push(resp);
		});
	`)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.JSONEq(t, `[{"greeting":"hi"}]`, evaluate(t, host, "JSON.stringify(window.responses)"))
}

func TestMessagesSentBeforeLoadKeepOrder(t *testing.T) {
	host, b := newPage(t, nil)
	for i := range 4 {
		b.CallHandler("record", i, nil)
	}

	host.Load("about:order", `
		window.seen = [];
		WebViewJavascriptBridge.registerHandler('record', function(data) {
			window.seen.push(data);
		});
	`)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.JSONEq(t, `[0,1,2,3]`, evaluate(t, host, "JSON.stringify(window.seen)"))
}

func TestScriptMissingHandlerFailsSoft(t *testing.T) {
	host, b := newPage(t, nil)

	var responses []json.RawMessage
	b.CallHandler("nope", nil, func(resp json.RawMessage) {
		responses = append(responses, resp)
	})
	host.Load("about:blank", "")
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	require.Len(t, responses, 1)
	assert.Equal(t, "null", string(responses[0]))
}

func TestSendWithoutCallbackIgnoresScriptReply(t *testing.T) {
	host, b := newPage(t, nil)

	host.Load("about:default", `
		WebViewJavascriptBridge.init(function(data, respond) {
			window.got = data;
			respond('ignored');
		});
	`)
	b.Send(map[string]int{"x": 1}, nil)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.JSONEq(t, `{"x":1}`, evaluate(t, host, "JSON.stringify(window.got)"))
}

func TestScriptDefaultSendReachesNativeDefaultHandler(t *testing.T) {
	var got []json.RawMessage
	host, _ := newPage(t, func(data json.RawMessage, respond jsbridge.Responder) {
		got = append(got, data)
		respond("pong")
	})

	host.Load("about:send", `
		WebViewJavascriptBridge.send('ping', function(resp) { window.reply = resp; });
	`)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	require.Len(t, got, 1)
	assert.JSONEq(t, `"ping"`, string(got[0]))
	assert.Equal(t, "pong", evaluate(t, host, "window.reply"))
}

func TestNavigationReannouncesBridge(t *testing.T) {
	host, b := newPage(t, nil)
	host.Load("about:first", echoPage)
	require.NoError(t, host.RunUntilIdle(testContext(t)))
	require.Equal(t, jsbridge.StateReady, b.State())

	var responses []json.RawMessage
	host.Load("about:second", echoPage)
	b.CallHandler("echo", 2, func(resp json.RawMessage) {
		responses = append(responses, resp)
	})
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.Equal(t, "about:second", host.URL())
	require.Len(t, responses, 1)
	assert.JSONEq(t, `2`, string(responses[0]))
}

func TestCloseDiscardsPendingCallbacks(t *testing.T) {
	host, b := newPage(t, nil)
	host.Load("about:slow", `
		WebViewJavascriptBridge.registerHandler('slow', function(data, respond) {
			setTimeout(function() { respond('late'); }, 20);
		});
	`)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	fired := 0
	b.CallHandler("slow", nil, func(json.RawMessage) { fired++ })
	b.CallHandler("slow", nil, func(json.RawMessage) { fired++ })

	// Deliver the calls, then tear down before the timers answer.
	host.runJobs()
	b.Close()
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.Zero(t, fired)
}

func TestCallFromAnotherGoroutine(t *testing.T) {
	host, b := newPage(t, nil)
	host.Load("about:echo", echoPage)

	ctx := testContext(t)
	loopCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = host.Run(loopCtx) }()

	resp, err := b.Call(ctx, "echo", []string{"a", "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(resp))
}

func TestEvaluateReportsExceptions(t *testing.T) {
	host, _ := newPage(t, nil)
	host.Load("about:blank", "")

	var evalErr error
	host.EvaluateScript("throw new Error('bad')", func(_ string, err error) { evalErr = err })
	require.NoError(t, host.RunUntilIdle(testContext(t)))
	require.Error(t, evalErr)
	assert.Contains(t, evalErr.Error(), "bad")
}

func TestTimersRunAndCancel(t *testing.T) {
	host, _ := newPage(t, nil)
	host.Load("about:timers", `
		window.order = [];
		setTimeout(function() { window.order.push('b'); }, 10);
		setTimeout(function() { window.order.push('a'); }, 0);
		var id = setTimeout(function() { window.order.push('never'); }, 5);
		clearTimeout(id);
	`)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.JSONEq(t, `["a","b"]`, evaluate(t, host, "JSON.stringify(window.order)"))
}

func TestDuplicateScriptMessageHandlerRejected(t *testing.T) {
	host := New(testContext(t))
	_, err := jsbridge.New(testContext(t), host, nil)
	require.NoError(t, err)

	_, err = jsbridge.New(testContext(t), host, nil)
	assert.Error(t, err, "one bridge per view")
}

func newLossyPage(t *testing.T) (*Host, *jsbridge.Bridge) {
	t.Helper()
	ctx := testContext(t)
	host := New(ctx)
	t.Cleanup(host.Close)
	require.NoError(t, host.InjectScript(dropFirstAnnouncement))

	b, err := jsbridge.New(ctx, host, nil)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return host, b
}

func TestScriptCallAnsweredWhenAnnouncementIsLost(t *testing.T) {
	host, b := newLossyPage(t)
	b.RegisterHandler("echo", func(data json.RawMessage, respond jsbridge.Responder) {
		respond(data)
	})

	host.Load("about:lossy", `
		WebViewJavascriptBridge.callHandler('echo', 'hi', function(resp) { window.reply = resp; });
	`)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.Equal(t, jsbridge.StateReady, b.State())
	assert.Equal(t, "hi", evaluate(t, host, "window.reply"))
}

func TestReevaluatedBootstrapAnnouncesAgain(t *testing.T) {
	host, b := newLossyPage(t)
	host.Load("about:quiet", "")
	require.NoError(t, host.RunUntilIdle(testContext(t)))
	require.Equal(t, jsbridge.StateBootstrappingInjected, b.State())

	host.EvaluateScript(jsbridge.EmbeddedBootstrap(), nil)
	require.NoError(t, host.RunUntilIdle(testContext(t)))

	assert.Equal(t, jsbridge.StateReady, b.State())
	assert.Equal(t, "object", evaluate(t, host, "typeof WebViewJavascriptBridge"))
}
