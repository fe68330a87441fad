package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/wizard/pkg/engine"
)

// keyMap holds all TUI key bindings.
type keyMap struct {
	Advance key.Binding
	Back    key.Binding
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Consent key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Advance: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "next"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "shift+tab"),
		key.WithHelp("esc", "back"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "x"),
		key.WithHelp("space", "select"),
	),
	Consent: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "consent"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// matchKey checks if a key message matches a key.Binding.
func matchKey(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}

func hint(k, desc string) string {
	return keyStyle.Render(k) + keyDescStyle.Render(":"+desc)
}

// keyBarText renders the key hints that apply to the current step.
func keyBarText(snap engine.Snapshot) string {
	d := snap.Step
	var parts []string
	switch {
	case snap.Complete:
		return hint("enter", "finish") + "  " + hint("ctrl+c", "quit")
	case d.Kind.Choice():
		parts = append(parts, hint("↑↓", "move"), hint("1-9", "quick"))
		if d.Kind.Multi() {
			parts = append(parts, hint("space", "toggle"), hint("enter", "next"))
		} else {
			parts = append(parts, hint("enter", "choose"))
		}
	case d.Kind == engine.KindEmail:
		parts = append(parts, hint("enter", "next"))
		if d.ConsentAnswerKey != "" {
			parts = append(parts, hint("tab", "consent"))
		}
	case d.Kind == engine.KindLoading:
	default:
		parts = append(parts, hint("enter", "next"))
	}
	if snap.CanGoBack && d.Kind != engine.KindLoading {
		parts = append(parts, hint("esc", "back"))
	}
	parts = append(parts, hint("ctrl+c", "quit"))

	return strings.Join(parts, "  ")
}
