package tui

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/wizard/pkg/engine"
	"github.com/ormasoftchile/wizard/pkg/trace"
)

// --- Tea messages ---

// changedMsg signals that the session state changed outside a key press,
// typically because a timer fired.
type changedMsg struct{}

// errMsg wraps a session operation error.
type errMsg struct{ err error }

// --- Model ---

// Model is the top-level Bubble Tea model for the TUI.
type Model struct {
	session *engine.Session
	changes <-chan struct{}

	snap    engine.Snapshot
	stepID  string // step the widgets below were prepared for
	cursor  int
	input   textinput.Model
	spinner spinner.Model

	fatalErr string
	finished bool // the user confirmed the results screen

	width  int
	height int
}

// Config holds the parameters needed to launch the TUI.
type Config struct {
	Registry *engine.Registry
	Logger   *slog.Logger
	Trace    *trace.Writer
}

// Run starts a session on cfg.Registry and runs the Bubble Tea program
// until the user quits. It returns the final snapshot.
func Run(cfg Config) (engine.Snapshot, error) {
	changes := make(chan struct{}, 1)
	sess, err := engine.New(cfg.Registry, engine.Config{
		Logger:   cfg.Logger,
		Trace:    cfg.Trace,
		OnChange: func(engine.Snapshot) { signal(changes) },
	})
	if err != nil {
		return engine.Snapshot{}, err
	}
	defer sess.Close()

	p := tea.NewProgram(NewModel(sess, changes), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return sess.Snapshot(), err
	}
	return sess.Snapshot(), nil
}

// signal records a pending change without blocking; one pending signal is
// enough since the model always re-reads the latest snapshot.
func signal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// NewModel builds the model for an already started session. changes may
// be nil when nothing outside the model mutates the session.
func NewModel(sess *engine.Session, changes <-chan struct{}) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	in := textinput.New()
	in.Prompt = "› "
	in.CharLimit = 256

	m := Model{
		session: sess,
		changes: changes,
		input:   in,
		spinner: sp,
		width:   80,
	}
	m.refresh(sess.Snapshot())
	return m
}

// Init returns the initial commands: start the spinner and wait for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), textinput.Blink)
}

// listen waits for the next out-of-band session change.
func (m Model) listen() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-12)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case changedMsg:
		m.refresh(m.session.Snapshot())
		return m, m.listen()

	case errMsg:
		m.fatalErr = msg.err.Error()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh adopts snap and resets the step widgets when the step changed.
func (m *Model) refresh(snap engine.Snapshot) {
	m.snap = snap
	if snap.Step.ID == m.stepID {
		return
	}
	m.stepID = snap.Step.ID
	m.cursor = 0

	d := snap.Step
	m.input.Reset()
	m.input.Blur()
	m.input.Placeholder = d.Placeholder
	if d.Kind == engine.KindShortText || d.Kind == engine.KindEmail {
		if s, ok := snap.Answers[d.AnswerKey].(string); ok {
			m.input.SetValue(s)
		}
		m.input.Focus()
	}
	if d.Kind.Choice() {
		if id, ok := snap.Answers[d.AnswerKey].(string); ok {
			for i, o := range d.Options {
				if o.ID == id {
					m.cursor = i
				}
			}
		}
	}
}

// apply records the outcome of a session operation.
func (m Model) apply(snap engine.Snapshot, err error) (tea.Model, tea.Cmd) {
	m.refresh(snap)
	if err != nil {
		m.fatalErr = err.Error()
	}
	return m, nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if matchKey(msg, keys.Quit) {
		return m, tea.Quit
	}

	d := m.snap.Step
	if m.snap.Complete {
		if matchKey(msg, keys.Advance) || msg.String() == "q" {
			m.finished = true
			return m, tea.Quit
		}
		return m, nil
	}

	if matchKey(msg, keys.Back) {
		if m.snap.CanGoBack && d.Kind != engine.KindLoading {
			return m.apply(m.session.Retreat())
		}
		return m, nil
	}

	switch {
	case d.Kind.Choice():
		return m.handleChoiceKey(msg)
	case d.Kind == engine.KindShortText || d.Kind == engine.KindEmail:
		return m.handleTextKey(msg)
	case d.Kind == engine.KindLoading:
		return m, nil
	}

	if matchKey(msg, keys.Advance) {
		return m.apply(m.session.Advance())
	}
	return m, nil
}

func (m Model) handleChoiceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.snap.Step
	switch {
	case matchKey(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case matchKey(msg, keys.Down):
		if m.cursor < len(d.Options)-1 {
			m.cursor++
		}
		return m, nil
	case matchKey(msg, keys.Toggle):
		return m.apply(m.session.Select(d.Options[m.cursor].ID))
	case matchKey(msg, keys.Advance):
		if d.Kind.Multi() {
			return m.apply(m.session.Advance())
		}
		return m.choose(m.cursor)
	}

	// 1-9 quick select
	if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		i := int(s[0] - '1')
		if i < len(d.Options) {
			m.cursor = i
			if d.Kind.Multi() {
				return m.apply(m.session.Select(d.Options[i].ID))
			}
			return m.choose(i)
		}
	}
	return m, nil
}

// choose selects option i on a single-selection step. Auto-advance steps
// move on when their timer fires; others advance immediately.
func (m Model) choose(i int) (tea.Model, tea.Cmd) {
	d := m.snap.Step
	snap, err := m.session.Select(d.Options[i].ID)
	if err != nil || d.AutoAdvance {
		return m.apply(snap, err)
	}
	return m.apply(m.session.Advance())
}

func (m Model) handleTextKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.snap.Step
	switch {
	case matchKey(msg, keys.Advance):
		return m.apply(m.session.Advance())
	case d.ConsentAnswerKey != "" && matchKey(msg, keys.Consent):
		return m.apply(m.session.ToggleConsent(""))
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		snap, err := m.session.Answer(d.AnswerKey, engine.TextValue(v))
		m.snap = snap
		if err != nil {
			m.fatalErr = err.Error()
		}
	}
	return m, cmd
}

// Snapshot returns the state the model last rendered.
func (m Model) Snapshot() engine.Snapshot { return m.snap }

// Finished reports whether the user confirmed the results screen.
func (m Model) Finished() bool { return m.finished }

// --- View ---

// View renders the whole screen.
func (m Model) View() string {
	if m.fatalErr != "" {
		return errorStyle.Render("Error: "+m.fatalErr) + "\n"
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	inner := max(20, width-8)

	var b strings.Builder
	b.WriteString(m.header(inner) + "\n")
	if bar := progressBar(m.snap.Progress, inner); bar != "" {
		b.WriteString(" " + bar + "\n")
	}
	b.WriteString("\n")

	var body string
	if m.snap.Complete {
		body = m.resultsView(inner)
	} else {
		body = m.stepView(inner)
	}
	b.WriteString(panelBorder.Width(inner).Render(body) + "\n")
	b.WriteString(keyBarStyle.Render(keyBarText(m.snap)) + "\n")
	return b.String()
}

func (m Model) header(width int) string {
	meta := m.session.Registry().Meta()
	title := meta.Title
	if title == "" {
		title = meta.Name
	}
	left := headerStyle.Render(title)
	strip := sectionStrip(meta.Sections, m.snap.Section, m.snap.ViewedSections)
	gap := width - lipgloss.Width(left) - lipgloss.Width(strip)
	if strip == "" || gap < 2 {
		if strip == "" {
			return left
		}
		return left + "\n " + strip
	}
	return left + strings.Repeat(" ", gap) + strip
}

func (m Model) stepView(width int) string {
	d := m.snap.Step
	var b strings.Builder

	if d.Prompt != "" {
		b.WriteString(promptStyle.Render(d.Prompt) + "\n")
	}
	if d.Subtext != "" {
		b.WriteString(subtextStyle.Render(renderMarkdownWidth(d.Subtext, width-4)) + "\n")
	}
	b.WriteString("\n")

	switch {
	case d.Kind == engine.KindLoading:
		b.WriteString(m.spinner.View() + " Preparing your results...\n")
	case d.Kind.Choice():
		b.WriteString(m.optionsView())
	case d.Kind == engine.KindShortText || d.Kind == engine.KindEmail:
		b.WriteString(m.input.View() + "\n")
		if d.ConsentAnswerKey != "" {
			box := GlyphEmpty
			if v, _ := m.snap.Answers[d.ConsentAnswerKey].(bool); v {
				box = GlyphChecked
			}
			text := sanitize(d.ConsentText)
			if text == "" {
				text = "I agree to the terms."
			}
			b.WriteString("\n" + box + " " + subtextStyle.Width(width-4).Render(text) + "\n")
		}
	}

	if m.snap.Error != "" {
		b.WriteString("\n" + errorStyle.Render(m.snap.Error) + "\n")
	}
	if d.ButtonText != "" && !d.Kind.Transient() {
		style := keyStyle
		if m.snap.NextDisabled {
			style = keyDescStyle
		}
		b.WriteString("\n" + style.Render("[ "+d.ButtonText+" ]") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) optionsView() string {
	d := m.snap.Step
	chosen := chosenOptions(m.snap.Answers[d.AnswerKey])

	var b strings.Builder
	for i, o := range d.Options {
		label := o.Label
		if label == "" {
			label = o.ID
		}
		mark := GlyphPending
		if d.Kind.Multi() {
			mark = GlyphEmpty
		}
		style := optionNormal
		if chosen[o.ID] {
			style = optionChosen
			mark = GlyphSelected
			if d.Kind.Multi() {
				mark = GlyphChecked
			}
		}
		cursor := "  "
		if i == m.cursor {
			cursor = GlyphCurrent + " "
			if !chosen[o.ID] {
				style = optionCursor
			}
		}
		num := "  "
		if i < 9 {
			num = fmt.Sprintf("%d ", i+1)
		}
		b.WriteString(cursor + keyDescStyle.Render(num) + style.Render(mark+" "+label) + "\n")
	}
	return b.String()
}

func chosenOptions(v any) map[string]bool {
	out := make(map[string]bool)
	switch x := v.(type) {
	case string:
		out[x] = true
	case []string:
		for _, id := range x {
			out[id] = true
		}
	}
	return out
}

func (m Model) resultsView(width int) string {
	d := m.snap.Step
	prompt := d.Prompt
	if prompt == "" {
		prompt = "Your results are ready."
	}

	var b strings.Builder
	b.WriteString(completeBannerStyle.Render(prompt) + "\n\n")

	names := make([]string, 0, len(m.snap.Answers))
	for k := range m.snap.Answers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		b.WriteString(answerLabelStyle.Render(k) + "  " + formatAnswer(m.snap.Answers[k]) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatAnswer renders an answer value for display.
func formatAnswer(v any) string {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return "(none)"
		}
		return strings.Join(x, ", ")
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case float64:
		return fmt.Sprintf("%g", x)
	}
	return fmt.Sprintf("%v", v)
}
