package testing

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/wizard/pkg/engine"
)

// Recorder captures a live session as a replayable scenario: the actions
// applied to it and the steps and messages it showed in response. Feed
// Observe from the session's OnChange hook and log each successful action.
type Recorder struct {
	observer
	actions []Action
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Observe records what a session snapshot shows.
func (r *Recorder) Observe(snap engine.Snapshot) { r.observe(snap) }

// Visited returns the step IDs shown so far, consecutive repeats collapsed.
func (r *Recorder) Visited() []string { return slices.Clone(r.visited) }

// Actions returns the recorded actions in order.
func (r *Recorder) Actions() []Action { return slices.Clone(r.actions) }

// Answer logs an answer. An empty key means the current step's answer key.
func (r *Recorder) Answer(key string, value any) {
	r.actions = append(r.actions, Action{Answer: value, Key: key})
}

// Select logs one option selection.
func (r *Recorder) Select(optionID string) {
	r.actions = append(r.actions, Action{Select: optionID})
}

// Consent logs the consent checkbox state after a toggle.
func (r *Recorder) Consent(checked bool) {
	r.actions = append(r.actions, Action{Consent: &checked})
}

// Advance logs an advance.
func (r *Recorder) Advance() { r.actions = append(r.actions, Action{Advance: true}) }

// Retreat logs a retreat.
func (r *Recorder) Retreat() { r.actions = append(r.actions, Action{Retreat: true}) }

// Wait logs a clock movement.
func (r *Recorder) Wait(d time.Duration) {
	r.actions = append(r.actions, Action{Wait: d.String()})
}

// Scenario builds a scenario that replays the recorded actions and
// expects the run to end the way final shows.
func (r *Recorder) Scenario(description string, final engine.Snapshot) *Scenario {
	sc := &Scenario{
		Description: description,
		Actions:     r.Actions(),
		Expect:      Expect{FinalStep: final.Step.ID},
	}
	for _, msg := range r.errors {
		sc.Expect.ExpectedErrors = append(sc.Expect.ExpectedErrors, literal(msg))
	}
	for _, id := range r.visited {
		if !slices.Contains(sc.Expect.MustReach, id) {
			sc.Expect.MustReach = append(sc.Expect.MustReach, id)
		}
	}
	if len(final.Answers) > 0 {
		sc.Expect.ExpectedAnswers = make(map[string]string, len(final.Answers))
		for k, v := range final.Answers {
			sc.Expect.ExpectedAnswers[k] = literal(formatAnswer(v))
		}
	}
	if final.Progress.Total > 0 {
		sc.Expect.ExpectedPosition = fmt.Sprintf("%d/%d", final.Progress.Position, final.Progress.Total)
	}
	return sc
}

// literal returns an expectation that matches s exactly, anchoring it as
// a regex when s would otherwise read as a pattern or comparison.
func literal(s string) string {
	special := len(s) >= 2 && s[0] == '/' && s[len(s)-1] == '/'
	for _, op := range []string{">=", "<=", "!=", "==", ">", "<"} {
		special = special || strings.HasPrefix(s, op)
	}
	if !special {
		return s
	}
	return "/^" + regexp.QuoteMeta(s) + "$/"
}

// MarshalYAML writes advance and retreat in their bare form.
func (a Action) MarshalYAML() (any, error) {
	switch a.Verb() {
	case "advance":
		return "advance", nil
	case "retreat":
		return "retreat", nil
	}
	type plain Action
	return plain(a), nil
}

// WriteScenario writes sc as YAML to path.
func WriteScenario(path string, sc *Scenario) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}
