package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/wizard/pkg/engine"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newModel(t *testing.T) (Model, *engine.ManualClock) {
	t.Helper()
	reg, err := engine.LoadFile("../../testdata/surveys/checkup.yaml")
	if err != nil {
		t.Fatal(err)
	}
	clock := engine.NewManualClock(epoch)
	sess, err := engine.New(reg, engine.Config{Clock: clock})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Close() })
	return NewModel(sess, nil), clock
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func enter() tea.Msg { return tea.KeyMsg{Type: tea.KeyEnter} }

func runes(s string) tea.Msg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func wantStep(t *testing.T, m Model, id string) {
	t.Helper()
	if got := m.Snapshot().Step.ID; got != id {
		t.Fatalf("step = %q, want %q", got, id)
	}
}

func TestModelWalksCheckup(t *testing.T) {
	m, clock := newModel(t)
	wantStep(t, m, "welcome")

	m = send(t, m, enter())
	wantStep(t, m, "age")

	m = send(t, m, runes("34"))
	if got := m.Snapshot().Answers["age"]; got != "34" {
		t.Fatalf("age = %v, want 34", got)
	}
	m = send(t, m, enter())
	wantStep(t, m, "section-basics")

	clock.Advance(1800 * time.Millisecond)
	m = send(t, m, changedMsg{})
	wantStep(t, m, "sleep-goal")
	if v := m.Snapshot().ViewedSections; len(v) != 1 || v[0] != "basics" {
		t.Errorf("viewed sections = %v", v)
	}

	m = send(t, m, runes("1"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if got, _ := m.Snapshot().Answers["goals"].([]string); len(got) != 1 || got[0] != "none" {
		t.Fatalf("goals = %v, want [none]", got)
	}
	m = send(t, m, runes("1"))
	m = send(t, m, enter())
	wantStep(t, m, "sluggish")

	m = send(t, m, runes("1"))
	wantStep(t, m, "sluggish")
	clock.Advance(250 * time.Millisecond)
	m = send(t, m, changedMsg{})
	wantStep(t, m, "email")

	m = send(t, m, runes("ada@example.com"))
	m = send(t, m, enter())
	wantStep(t, m, "email")
	if !strings.Contains(m.View(), engine.ConsentMessage) {
		t.Errorf("consent error not shown:\n%s", m.View())
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.Snapshot().Answers["consent"] != true {
		t.Fatal("consent not toggled")
	}
	m = send(t, m, enter())
	wantStep(t, m, "loading")
	if !strings.Contains(m.View(), "Preparing your results") {
		t.Error("loading view missing")
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	wantStep(t, m, "loading")

	clock.Advance(2 * time.Second)
	m = send(t, m, changedMsg{})
	wantStep(t, m, "results")
	view := m.View()
	for _, want := range []string{"Your results are ready.", "ada@example.com", "sleep"} {
		if !strings.Contains(view, want) {
			t.Errorf("results view missing %q", want)
		}
	}

	next, cmd := m.Update(enter())
	if !next.(Model).Finished() || cmd == nil {
		t.Error("enter on results should finish and quit")
	}
}

func TestModelBack(t *testing.T) {
	m, _ := newModel(t)
	m = send(t, m, enter())
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	wantStep(t, m, "welcome")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	wantStep(t, m, "welcome")
}

func TestModelRestoresTextAnswer(t *testing.T) {
	m, _ := newModel(t)
	m = send(t, m, enter())
	m = send(t, m, runes("41"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = send(t, m, enter())
	wantStep(t, m, "age")
	if got := m.input.Value(); got != "41" {
		t.Errorf("input = %q, want restored answer 41", got)
	}
}

func TestModelValidationError(t *testing.T) {
	m, _ := newModel(t)
	m = send(t, m, enter())
	m = send(t, m, runes("5"))
	m = send(t, m, enter())
	wantStep(t, m, "age")
	if !strings.Contains(m.View(), "Please enter a valid age.") {
		t.Errorf("validation message not shown:\n%s", m.View())
	}
}

func TestModelQuit(t *testing.T) {
	m, _ := newModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestSanitize(t *testing.T) {
	in := `I have read the <a href="/privacy-policy">Privacy Policy</a> &amp; agree.`
	if got := sanitize(in); got != "I have read the Privacy Policy & agree." {
		t.Errorf("sanitize = %q", got)
	}
}

func TestSectionStrip(t *testing.T) {
	sections := []engine.Section{{ID: "a", Title: "Alpha"}, {ID: "b", Title: "Beta"}, {ID: "c"}}
	got := sectionStrip(sections, "b", []string{"a", "b"})
	for _, want := range []string{GlyphViewed + " Alpha", GlyphCurrent + " Beta", GlyphPending + " c"} {
		if !strings.Contains(got, want) {
			t.Errorf("strip %q missing %q", got, want)
		}
	}
	if sectionStrip(nil, "", nil) != "" {
		t.Error("empty strip should render nothing")
	}
}

func TestProgressBar(t *testing.T) {
	if progressBar(engine.Progress{Position: 0, Total: 4}, 40) != "" {
		t.Error("uncounted step should render no bar")
	}
	bar := progressBar(engine.Progress{Position: 2, Total: 4}, 40)
	if !strings.HasSuffix(bar, " 2/4") {
		t.Errorf("bar = %q", bar)
	}
	if strings.Count(bar, "━") != strings.Count(bar, "─") {
		t.Errorf("half-way bar not balanced: %q", bar)
	}
}

func TestFormatAnswer(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{[]string{"a", "b"}, "a, b"},
		{[]string{}, "(none)"},
		{true, "yes"},
		{float64(3), "3"},
		{"x", "x"},
	}
	for _, tt := range tests {
		if got := formatAnswer(tt.in); got != tt.want {
			t.Errorf("formatAnswer(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
