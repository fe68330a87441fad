// Package prompt runs a survey as a sequence of line-oriented terminal
// prompts. It is the fallback presentation for terminals where the
// full-screen TUI is unavailable, and for piping answers in scripts.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ormasoftchile/wizard/pkg/engine"
	"github.com/ormasoftchile/wizard/pkg/trace"
)

// BackCommand typed into a text prompt returns to the previous step.
const BackCommand = "/back"

const backLabel = "← Back"

// Config configures Run.
type Config struct {
	Logger *slog.Logger
	Trace  *trace.Writer

	// Pause is called with the delay of every timer the session waits on.
	// Nil means time.Sleep.
	Pause func(time.Duration)
}

// Run drives a session on reg through d until the results step is reached.
// Timers run on a manual clock that is moved forward after each pause, so a
// prompt blocked on input never races a timer.
func Run(ctx context.Context, reg *engine.Registry, d Driver, cfg Config) (engine.Snapshot, error) {
	clock := engine.NewManualClock(time.Now())
	sess, err := engine.New(reg, engine.Config{Clock: clock, Logger: cfg.Logger, Trace: cfg.Trace})
	if err != nil {
		return engine.Snapshot{}, err
	}
	defer sess.Close()

	w := &wizard{sess: sess, clock: clock, driver: d, pause: cfg.Pause}
	if w.pause == nil {
		w.pause = time.Sleep
	}
	return w.run(ctx)
}

type wizard struct {
	sess   *engine.Session
	clock  *engine.ManualClock
	driver Driver
	pause  func(time.Duration)

	shown string // last step whose text was printed
}

func (w *wizard) run(ctx context.Context) (engine.Snapshot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return w.sess.Snapshot(), err
		}
		snap := w.sess.Snapshot()
		if snap.Complete {
			return snap, w.driver.Info(ctx, resultsText(snap))
		}
		if err := w.step(ctx, snap); err != nil {
			return w.sess.Snapshot(), fmt.Errorf("step %q: %w", snap.Step.ID, err)
		}
	}
}

func (w *wizard) step(ctx context.Context, snap engine.Snapshot) error {
	s := snap.Step
	if snap.Pending {
		if err := w.show(ctx, snap); err != nil {
			return err
		}
		w.pause(snap.PendingDelay)
		w.clock.Advance(snap.PendingDelay)
		return nil
	}

	switch s.Kind {
	case engine.KindWelcome, engine.KindInfo, engine.KindSectionHeader, engine.KindLoading:
		if err := w.show(ctx, snap); err != nil {
			return err
		}
		return w.advance(ctx)
	case engine.KindShortText, engine.KindEmail:
		return w.text(ctx, snap)
	case engine.KindSingleChoice, engine.KindBinaryChoice:
		return w.single(ctx, snap)
	case engine.KindMultiChoice, engine.KindCheckboxGroup:
		return w.multi(ctx, snap)
	}
	return fmt.Errorf("unsupported step kind %q", s.Kind)
}

// show prints the text of a step without input, once per visit.
func (w *wizard) show(ctx context.Context, snap engine.Snapshot) error {
	if w.shown == snap.Step.ID {
		return nil
	}
	w.shown = snap.Step.ID
	switch snap.Step.Kind {
	case engine.KindWelcome, engine.KindInfo, engine.KindSectionHeader, engine.KindLoading:
	default:
		return nil
	}
	text := snap.Step.Prompt
	switch {
	case snap.Step.Kind == engine.KindSectionHeader:
		text = "§ " + text
	case snap.Step.Kind == engine.KindLoading && text == "":
		text = "Calculating your results…"
	}
	if snap.Step.Subtext != "" {
		text += "\n" + snap.Step.Subtext
	}
	if text == "" {
		return nil
	}
	return w.driver.Info(ctx, text)
}

func (w *wizard) advance(ctx context.Context) error {
	snap, err := w.sess.Advance()
	if err != nil {
		return err
	}
	if snap.Error != "" {
		return w.driver.Info(ctx, "✗ "+snap.Error)
	}
	return nil
}

func (w *wizard) retreat() error {
	w.shown = ""
	_, err := w.sess.Retreat()
	return err
}

func (w *wizard) text(ctx context.Context, snap engine.Snapshot) error {
	s := snap.Step
	current, _ := snap.Answers[s.AnswerKey].(string)
	help := s.Subtext
	if snap.CanGoBack {
		help = strings.TrimSpace(help + " Type " + BackCommand + " to go back.")
	}
	value, err := w.driver.Input(ctx, InputConfig{
		Message: label(snap),
		Default: current,
		Help:    help,
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(value) == BackCommand && snap.CanGoBack {
		return w.retreat()
	}
	if _, err := w.sess.Answer(s.AnswerKey, engine.TextValue(strings.TrimSpace(value))); err != nil {
		return err
	}

	if s.ConsentAnswerKey != "" {
		agreed, _ := snap.Answers[s.ConsentAnswerKey].(bool)
		msg := s.ConsentText
		if msg == "" {
			msg = "Do you agree to the terms?"
		}
		want, err := w.driver.Confirm(ctx, ConfirmConfig{Message: msg, Default: agreed})
		if err != nil {
			return err
		}
		if want != agreed {
			if _, err := w.sess.ToggleConsent(""); err != nil {
				return err
			}
		}
	}
	return w.advance(ctx)
}

func (w *wizard) single(ctx context.Context, snap engine.Snapshot) error {
	s := snap.Step
	labels := optionLabels(s.Options)
	if snap.CanGoBack {
		labels = append(labels, backLabel)
	}
	current, _ := snap.Answers[s.AnswerKey].(string)
	def := -1
	for i, o := range s.Options {
		if o.ID == current {
			def = i
		}
	}

	idx, err := w.driver.Select(ctx, SelectConfig{Message: label(snap), Options: labels, DefaultIndex: def, Help: s.Subtext})
	if err != nil {
		return err
	}
	switch {
	case idx == len(s.Options) && snap.CanGoBack:
		return w.retreat()
	case idx < 0 || idx >= len(s.Options):
		return fmt.Errorf("selection %d out of range", idx)
	}

	next, err := w.sess.Select(s.Options[idx].ID)
	if err != nil {
		return err
	}
	if next.Pending {
		return nil
	}
	return w.advance(ctx)
}

// multi reconciles the selection the user submitted with the stored set.
// Deselections are applied first so exclusive options settle the same way
// they would under individual toggles.
func (w *wizard) multi(ctx context.Context, snap engine.Snapshot) error {
	s := snap.Step
	selected, _ := snap.Answers[s.AnswerKey].([]string)
	var defaults []int
	for i, o := range s.Options {
		if slices.Contains(selected, o.ID) {
			defaults = append(defaults, i)
		}
	}

	picked, err := w.driver.MultiSelect(ctx, SelectConfig{Message: label(snap), Options: optionLabels(s.Options), Defaults: defaults, Help: s.Subtext})
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(picked))
	for _, i := range picked {
		if i >= 0 && i < len(s.Options) {
			want[s.Options[i].ID] = true
		}
	}

	for _, id := range selected {
		if !want[id] {
			if _, err := w.sess.Select(id); err != nil {
				return err
			}
		}
	}
	for _, o := range s.Options {
		if !want[o.ID] {
			continue
		}
		cur, _ := w.sess.Snapshot().Answers[s.AnswerKey].([]string)
		if !slices.Contains(cur, o.ID) {
			if _, err := w.sess.Select(o.ID); err != nil {
				return err
			}
		}
	}
	return w.advance(ctx)
}

func label(snap engine.Snapshot) string {
	if p := snap.Progress; p.Position > 0 {
		return fmt.Sprintf("[%d/%d] %s", p.Position, p.Total, snap.Step.Prompt)
	}
	return snap.Step.Prompt
}

func optionLabels(opts []engine.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Label
		if out[i] == "" {
			out[i] = o.ID
		}
	}
	return out
}

func resultsText(snap engine.Snapshot) string {
	var b strings.Builder
	title := snap.Step.Prompt
	if title == "" {
		title = "Your answers"
	}
	b.WriteString("★ " + title)
	keys := make([]string, 0, len(snap.Answers))
	for k := range snap.Answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, formatAnswer(snap.Answers[k]))
	}
	return b.String()
}

func formatAnswer(v any) string {
	switch x := v.(type) {
	case []string:
		return strings.Join(x, ", ")
	case bool:
		if x {
			return "yes"
		}
		return "no"
	}
	return fmt.Sprint(v)
}
