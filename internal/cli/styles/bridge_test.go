package styles_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bnema/jsbridge/internal/cli/styles"
)

func TestBridgeRenderer_RenderCall(t *testing.T) {
	r := styles.NewBridgeRenderer(styles.NewTheme())

	out := r.RenderCall("echo", json.RawMessage(`{"n":1}`))
	require.Contains(t, out, "echo")
	require.Contains(t, out, `{"n":1}`)

	out = r.RenderCall("", nil)
	require.Contains(t, out, "(default)")
	require.Contains(t, out, "null")
}

func TestBridgeRenderer_TruncatesLongPayloads(t *testing.T) {
	r := styles.NewBridgeRenderer(styles.NewTheme())

	long := json.RawMessage(`"` + strings.Repeat("x", 500) + `"`)
	out := r.RenderResponse("greet", long)
	require.Contains(t, out, "…")
	require.NotContains(t, out, strings.Repeat("x", 200))
}

func TestBridgeRenderer_RenderPrint(t *testing.T) {
	r := styles.NewBridgeRenderer(styles.NewTheme())

	require.Contains(t, r.RenderPrint(json.RawMessage(`"hello"`)), "hello")
	require.Contains(t, r.RenderPrint(json.RawMessage(`[1,2]`)), "[1,2]")
}

func TestBridgeRenderer_RenderScriptDone(t *testing.T) {
	r := styles.NewBridgeRenderer(styles.NewTheme())

	out := r.RenderScriptDone("demo.js", 1500*time.Millisecond)
	require.Contains(t, out, "demo.js")
	require.Contains(t, out, "1.5s")
}
