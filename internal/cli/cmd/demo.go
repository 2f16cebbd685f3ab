package cmd

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

//go:embed demo
var demoFiles embed.FS

func demoPages() (fs.FS, error) {
	return fs.Sub(demoFiles, "demo")
}

func demoHTML() (string, error) {
	data, err := demoFiles.ReadFile("demo/index.html")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// demoDefaultHandler answers messages sent without a handler name.
func demoDefaultHandler(out io.Writer, r *styles.BridgeRenderer) jsbridge.Handler {
	return func(data json.RawMessage, respond jsbridge.Responder) {
		fmt.Fprintln(out, r.RenderCall("", data))
		respond(map[string]json.RawMessage{"received": data})
	}
}

// registerDemoHandlers installs the handlers the demo page and scripts call.
func registerDemoHandlers(b *jsbridge.Bridge, out io.Writer, r *styles.BridgeRenderer) {
	b.RegisterHandler("echo", func(data json.RawMessage, respond jsbridge.Responder) {
		fmt.Fprintln(out, r.RenderCall("echo", data))
		respond(data)
	})
	b.RegisterHandler("time", func(_ json.RawMessage, respond jsbridge.Responder) {
		respond(time.Now().Format(time.RFC3339))
	})
	b.RegisterHandler("print", func(data json.RawMessage, respond jsbridge.Responder) {
		fmt.Fprintln(out, r.RenderPrint(data))
		respond(nil)
	})
}

// greetPage calls the page's greet handler. The call waits for the page to
// load the bridge.
func greetPage(b *jsbridge.Bridge, out io.Writer, r *styles.BridgeRenderer) {
	b.CallHandler("greet", "hello from Go", func(resp json.RawMessage) {
		fmt.Fprintln(out, r.RenderResponse("greet", resp))
	})
}
