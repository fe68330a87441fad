package tui

import (
	"html"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
)

// plain strips every HTML tag from survey copy; consent text may carry
// links meant for a browser.
var plain = bluemonday.StrictPolicy()

// sanitize returns s with markup removed and entities decoded.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(plain.Sanitize(s)))
}

// renderMarkdownWidth renders markdown constrained to a column width.
// Falls back to the raw input if rendering fails.
func renderMarkdownWidth(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	// Glamour pads with blank lines; trim for inline use
	return strings.Trim(out, "\n")
}
