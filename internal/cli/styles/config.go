package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/jsbridge/internal/config"
)

// ConfigRenderer renders config status messages with styled output.
type ConfigRenderer struct {
	theme *Theme
}

// NewConfigRenderer creates a new config renderer with the given theme.
func NewConfigRenderer(theme *Theme) *ConfigRenderer {
	return &ConfigRenderer{theme: theme}
}

// RenderConfigInfo renders the config file path and the effective settings.
func (r *ConfigRenderer) RenderConfigInfo(path string, cfg *config.Config) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Accent)
	if path == "" {
		path = "(defaults)"
	}

	rows := [][2]string{
		{"logging.level", cfg.Logging.Level},
		{"logging.format", cfg.Logging.Format},
		{"logging.trace", fmt.Sprintf("%t", cfg.Logging.Trace)},
		{"bridge.scheme", cfg.Bridge.Scheme},
		{"bridge.path_prefix", cfg.Bridge.PathPrefix},
		{"bridge.message_handler", cfg.Bridge.MessageHandler},
		{"bridge.missing_handler", cfg.Bridge.MissingHandler},
		{"bridge.bundle_dir", cfg.Bridge.BundleDir},
		{"window.size", fmt.Sprintf("%dx%d", cfg.Window.Width, cfg.Window.Height)},
		{"window.engine", cfg.Window.Engine},
		{"remote.listen", cfg.Remote.Listen},
		{"remote.pages_dir", cfg.Remote.PagesDir},
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row[0]))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n  %s Config %s\n\n", iconStyle.Render(IconConfig), r.theme.Subtle.Render(path)))
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = r.theme.Subtle.Render("-")
		}
		sb.WriteString(fmt.Sprintf("    %s  %s\n",
			r.theme.Highlight.Render(fmt.Sprintf("%-*s", width, row[0])),
			value,
		))
	}
	return sb.String()
}

// RenderSchemaWritten renders the success message after writing a schema.
func (r *ConfigRenderer) RenderSchemaWritten(path string) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Success)
	return fmt.Sprintf("\n  %s Schema written to %s\n", iconStyle.Render(IconCheck), r.theme.Subtle.Render(path))
}

// RenderError renders an error message.
func (r *ConfigRenderer) RenderError(err error) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Error)
	return fmt.Sprintf("\n  %s %s\n", iconStyle.Render(IconX), r.theme.ErrorStyle.Render(err.Error()))
}
