package debugger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ormasoftchile/wizard/pkg/engine"
	"github.com/ormasoftchile/wizard/pkg/eval"
	wtesting "github.com/ormasoftchile/wizard/pkg/testing"
)

// handleNext validates the current step and advances.
func (d *Debugger) handleNext() error {
	before := d.session.Snapshot().Step.ID
	snap, err := d.session.Advance()
	if err != nil {
		return err
	}
	d.rec.Advance()
	switch {
	case snap.Error != "":
		fmt.Fprintf(d.output, "  ✗ %s: %s\n", before, snap.Error)
	case snap.Step.ID == before:
		fmt.Fprintf(d.output, "  · stayed on %s\n", before)
	default:
		fmt.Fprintf(d.output, "  ✓ %s → %s\n", before, snap.Step.ID)
	}
	return nil
}

// handleBack retreats to the previous eligible step.
func (d *Debugger) handleBack() error {
	before := d.session.Snapshot().Step.ID
	snap, err := d.session.Retreat()
	if err != nil {
		return err
	}
	d.rec.Retreat()
	if snap.Step.ID == before {
		fmt.Fprintf(d.output, "  · already at the first step\n")
		return nil
	}
	fmt.Fprintf(d.output, "  ← %s → %s\n", before, snap.Step.ID)
	return nil
}

// handleAnswer stores a text answer under key, or the current step's key.
func (d *Debugger) handleAnswer(key, value string) error {
	named := key
	if key == "" {
		key = d.session.Snapshot().Step.AnswerKey
		if key == "" {
			return fmt.Errorf("step %q takes no text answer", d.session.Snapshot().Step.ID)
		}
	}
	var v engine.Value = engine.TextValue(value)
	var recorded any = value
	if kind, ok := d.reg.KeyKind(key); ok && kind == engine.ValueBool {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s holds booleans: %w", key, err)
		}
		v, recorded = engine.BoolValue(b), b
	}
	snap, err := d.session.Answer(key, v)
	if err != nil {
		return err
	}
	d.rec.Answer(named, recorded)
	fmt.Fprintf(d.output, "  %s = %s\n", key, formatValue(snap.Answers[key]))
	if snap.Pending {
		fmt.Fprintf(d.output, "  ⏱ %s timer armed\n", snap.PendingReason)
	}
	return nil
}

// handleSelect selects one or more options on the current step.
func (d *Debugger) handleSelect(ids []string) error {
	if len(ids) == 0 {
		fmt.Fprintf(d.output, "Usage: select <option> [option...]\n")
		return nil
	}
	var snap engine.Snapshot
	for _, id := range ids {
		var err error
		if snap, err = d.session.Select(id); err != nil {
			return err
		}
		d.rec.Select(id)
	}
	key := snap.Step.AnswerKey
	fmt.Fprintf(d.output, "  %s = %s\n", key, formatValue(snap.Answers[key]))
	if snap.Pending {
		fmt.Fprintf(d.output, "  ⏱ %s timer armed\n", snap.PendingReason)
	}
	return nil
}

// handleConsent toggles the consent checkbox, or a named boolean key.
func (d *Debugger) handleConsent(args []string) error {
	key := ""
	if len(args) > 0 {
		key = args[0]
	}
	snap, err := d.session.ToggleConsent(key)
	if err != nil {
		return err
	}
	if key == "" {
		key = snap.Step.ConsentAnswerKey
		checked, _ := snap.Answers[key].(bool)
		d.rec.Consent(checked)
	} else {
		d.rec.Answer(key, snap.Answers[key])
	}
	fmt.Fprintf(d.output, "  %s = %s\n", key, formatValue(snap.Answers[key]))
	return nil
}

// handleWait moves the session clock forward, firing due timers. Without
// an argument it waits exactly as long as the pending timer needs.
func (d *Debugger) handleWait(args []string) error {
	var dur time.Duration
	if len(args) == 0 {
		snap := d.session.Snapshot()
		if !snap.Pending {
			fmt.Fprintf(d.output, "  no timer pending\n")
			return nil
		}
		dur = snap.PendingDelay
	} else {
		var err error
		if dur, err = time.ParseDuration(args[0]); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		if dur < 0 {
			return fmt.Errorf("wait: negative duration %s", dur)
		}
	}
	before := d.session.Snapshot().Step.ID
	d.clock.Advance(dur)
	d.rec.Wait(dur)
	after := d.session.Snapshot().Step.ID
	if after != before {
		fmt.Fprintf(d.output, "  ⏱ %s elapsed: %s → %s\n", dur, before, after)
	} else {
		fmt.Fprintf(d.output, "  ⏱ %s elapsed\n", dur)
	}
	return nil
}

// handleTimers shows the pending timer, if any.
func (d *Debugger) handleTimers() {
	snap := d.session.Snapshot()
	if !snap.Pending {
		fmt.Fprintf(d.output, "No timer pending.\n")
		return
	}
	fmt.Fprintf(d.output, "  %s timer pending on %s, armed for %s\n", snap.PendingReason, snap.Step.ID, snap.PendingDelay)
}

// handleState prints the current step.
func (d *Debugger) handleState() {
	snap := d.session.Snapshot()
	s := snap.Step
	fmt.Fprintf(d.output, "Step %s [%s]", s.ID, s.Kind)
	if snap.Progress.Position > 0 {
		fmt.Fprintf(d.output, " %d/%d", snap.Progress.Position, snap.Progress.Total)
	}
	if snap.Section != "" {
		fmt.Fprintf(d.output, " section=%s", snap.Section)
	}
	fmt.Fprintln(d.output)
	if s.Prompt != "" {
		fmt.Fprintf(d.output, "  %s\n", s.Prompt)
	}
	for i, o := range s.Options {
		label := o.Label
		if label == "" {
			label = o.ID
		}
		excl := ""
		if o.Exclusive {
			excl = " (exclusive)"
		}
		fmt.Fprintf(d.output, "  %d. %s: %s%s\n", i+1, o.ID, label, excl)
	}
	if s.AnswerKey != "" {
		fmt.Fprintf(d.output, "  answer %s = %s\n", s.AnswerKey, formatValue(snap.Answers[s.AnswerKey]))
	}
	if s.ConsentAnswerKey != "" {
		fmt.Fprintf(d.output, "  consent %s = %s\n", s.ConsentAnswerKey, formatValue(snap.Answers[s.ConsentAnswerKey]))
	}
	if snap.Error != "" {
		fmt.Fprintf(d.output, "  error: %s\n", snap.Error)
	}
	if snap.Pending {
		fmt.Fprintf(d.output, "  ⏱ %s timer pending\n", snap.PendingReason)
	}
	if snap.Complete {
		fmt.Fprintf(d.output, "  ★ survey complete\n")
	}
}

// handlePrint displays answers, or the snapshot as JSON.
func (d *Debugger) handlePrint(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintf(d.output, "Usage: print answers|snapshot\n")
		return
	}
	snap := d.session.Snapshot()
	switch parts[1] {
	case "answers":
		if len(snap.Answers) == 0 {
			fmt.Fprintf(d.output, "No answers recorded.\n")
			return
		}
		keys := make([]string, 0, len(snap.Answers))
		for k := range snap.Answers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(d.output, "  %s = %s\n", k, formatValue(snap.Answers[k]))
		}
	case "snapshot":
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Fprintf(d.output, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(d.output, "%s\n", data)
	default:
		fmt.Fprintf(d.output, "Unknown print target: %q. Use 'answers' or 'snapshot'.\n", parts[1])
	}
}

// handleHistory shows the steps shown so far.
func (d *Debugger) handleHistory() {
	visited := d.rec.Visited()
	if len(visited) == 0 {
		fmt.Fprintf(d.output, "No steps shown yet.\n")
		return
	}
	for i, id := range visited {
		fmt.Fprintf(d.output, "  [%d] %s\n", i, id)
	}
}

// handleSteps lists every step with its current eligibility.
func (d *Debugger) handleSteps() {
	snap := d.session.Snapshot()
	for i, s := range d.reg.Steps() {
		mark := " "
		switch {
		case i == snap.Index:
			mark = "▸"
		case s.Condition != nil && !s.Condition(snap.Answers):
			mark = "⏭"
		}
		fmt.Fprintf(d.output, "  %s %2d %-20s %s\n", mark, i, s.ID, s.Kind)
	}
}

// handleEval evaluates an expression against the current answers, the way
// step conditions see them.
func (d *Debugger) handleEval(src string) {
	if src == "" {
		fmt.Fprintf(d.output, "Usage: eval <expression>\n")
		return
	}
	p, err := eval.Compile(src)
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	ok, err := p.Eval(eval.ConditionEnv(d.session.Snapshot().Answers))
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(d.output, "  %t\n", ok)
}

// handleSave writes the recorded session as a test scenario.
func (d *Debugger) handleSave(path string) error {
	if path == "" {
		fmt.Fprintf(d.output, "Usage: save <scenario.yaml>\n")
		return nil
	}
	desc := fmt.Sprintf("Recorded in the debugger on %s.", d.reg.Meta().Name)
	sc := d.rec.Scenario(desc, d.session.Snapshot())
	if err := wtesting.WriteScenario(path, sc); err != nil {
		return err
	}
	fmt.Fprintf(d.output, "  saved %d actions to %s\n", len(sc.Actions), path)
	return nil
}

// handleHelp prints available commands.
func (d *Debugger) handleHelp() {
	fmt.Fprintf(d.output, `Commands:
  next, n                  Validate the current step and advance
  back, b                  Go back to the previous eligible step
  answer, a <text>         Answer the current step
  set <key> <value>        Store a value under any answer key
  select, s <id> [id...]   Select options on the current step
  consent, c [key]         Toggle the consent checkbox
  wait, w [duration]       Move the clock forward (default: until timers fire)
  timers, t                Show the pending timer
  state, st                Show the current step
  print, p answers         Show all answers
  print, p snapshot        Dump the session snapshot as JSON
  history, h               Show the steps shown so far
  steps, ls                List steps and which are skipped
  eval, e <expression>     Evaluate a condition against the answers
  save <scenario.yaml>     Save the session so far as a test scenario
  help, ?                  Show this help
  quit, q                  Exit the debugger
`)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "(unset)"
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	case string:
		return strconv.Quote(x)
	}
	return fmt.Sprintf("%v", v)
}
