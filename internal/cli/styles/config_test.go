package styles_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/internal/config"
)

func TestConfigRenderer_RenderConfigInfo(t *testing.T) {
	r := styles.NewConfigRenderer(styles.NewTheme())

	out := r.RenderConfigInfo("/tmp/jsbridge/config.json", config.DefaultConfig())
	require.Contains(t, out, "config.json")
	require.Contains(t, out, "bridge.missing_handler")
	require.Contains(t, out, "fail-soft")
	require.Contains(t, out, "960x720")
}

func TestConfigRenderer_RenderDefaultsWithoutFile(t *testing.T) {
	r := styles.NewConfigRenderer(styles.NewTheme())

	out := r.RenderConfigInfo("", config.DefaultConfig())
	require.Contains(t, out, "(defaults)")
}

func TestConfigRenderer_RenderError(t *testing.T) {
	r := styles.NewConfigRenderer(styles.NewTheme())

	out := r.RenderError(errors.New("bad config"))
	require.Contains(t, out, "bad config")
}
