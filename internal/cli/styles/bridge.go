package styles

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const maxPayloadWidth = 120

// BridgeRenderer renders bridge activity for the CLI.
type BridgeRenderer struct {
	theme *Theme
}

// NewBridgeRenderer creates a new bridge renderer with the given theme.
func NewBridgeRenderer(theme *Theme) *BridgeRenderer {
	return &BridgeRenderer{theme: theme}
}

// RenderCall renders a call received from the page.
func (r *BridgeRenderer) RenderCall(handler string, data json.RawMessage) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Accent)
	if handler == "" {
		handler = "(default)"
	}
	return fmt.Sprintf("  %s %s %s",
		iconStyle.Render(IconArrowLeft),
		r.theme.Highlight.Render(handler),
		r.theme.Subtle.Render(payload(data)),
	)
}

// RenderResponse renders a response the page sent back to a native call.
func (r *BridgeRenderer) RenderResponse(handler string, data json.RawMessage) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Success)
	return fmt.Sprintf("  %s %s %s",
		iconStyle.Render(IconArrow),
		r.theme.Highlight.Render(handler),
		r.theme.Subtle.Render(payload(data)),
	)
}

// RenderPrint renders a value the page asked to print.
func (r *BridgeRenderer) RenderPrint(data json.RawMessage) string {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		text = payload(data)
	}
	return "  " + r.theme.Title.Render(text)
}

// RenderServing renders the address a page is served on.
func (r *BridgeRenderer) RenderServing(url string) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Accent)
	return fmt.Sprintf("\n  %s Serving %s\n  %s\n",
		iconStyle.Render(IconGlobe),
		r.theme.Highlight.Render(url),
		r.theme.Subtle.Render("Press Ctrl+C to stop"),
	)
}

// RenderScriptDone renders the end of a script run.
func (r *BridgeRenderer) RenderScriptDone(path string, elapsed time.Duration) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Success)
	return fmt.Sprintf("\n  %s %s %s\n",
		iconStyle.Render(IconCheck),
		r.theme.Title.Render(path),
		r.theme.Badge.Render(elapsed.Round(time.Millisecond).String()),
	)
}

// RenderError renders an error message.
func (r *BridgeRenderer) RenderError(err error) string {
	iconStyle := lipgloss.NewStyle().Foreground(r.theme.Error)
	return fmt.Sprintf("\n  %s %s\n", iconStyle.Render(IconX), r.theme.ErrorStyle.Render(err.Error()))
}

func payload(data json.RawMessage) string {
	if len(data) == 0 {
		return "null"
	}
	s := string(data)
	if len(s) > maxPayloadWidth {
		return s[:maxPayloadWidth] + "…"
	}
	return s
}
