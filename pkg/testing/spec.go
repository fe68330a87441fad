// Package testing defines the scenario schema, assertion evaluator and
// scenario runner for scripted survey walkthroughs.
package testing

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted walkthrough of a survey: actions applied in
// order to a fresh session, then the expectations checked against the
// observed run. All expectation fields are optional.
type Scenario struct {
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"        json:"tags,omitempty"`
	Actions     []Action `yaml:"actions"               json:"actions"`
	Expect      Expect   `yaml:"expect,omitempty"      json:"expect,omitempty"`
}

// Expect lists the assertions evaluated after the last action.
type Expect struct {
	MustReach        []string          `yaml:"must_reach,omitempty"        json:"must_reach,omitempty"`
	MustNotReach     []string          `yaml:"must_not_reach,omitempty"    json:"must_not_reach,omitempty"`
	FinalStep        string            `yaml:"final_step,omitempty"        json:"final_step,omitempty"`
	ExpectedAnswers  map[string]string `yaml:"expected_answers,omitempty"  json:"expected_answers,omitempty"`
	ExpectedErrors   []string          `yaml:"expected_errors,omitempty"   json:"expected_errors,omitempty"`
	ExpectedPosition string            `yaml:"expected_position,omitempty" json:"expected_position,omitempty"` // "3/18"
}

// Action is a single user interaction or clock movement. Exactly one of
// its fields is set. The bare scalars "advance" and "retreat" are
// accepted as shorthand.
type Action struct {
	Answer  any    `yaml:"answer,omitempty"  json:"answer,omitempty"`
	Key     string `yaml:"key,omitempty"     json:"key,omitempty"` // defaults to the current step's answer key
	Select  string `yaml:"select,omitempty"  json:"select,omitempty"`
	Consent *bool  `yaml:"consent,omitempty" json:"consent,omitempty"`
	Advance bool   `yaml:"advance,omitempty" json:"advance,omitempty"`
	Retreat bool   `yaml:"retreat,omitempty" json:"retreat,omitempty"`
	Wait    string `yaml:"wait,omitempty"    json:"wait,omitempty"`
}

// UnmarshalYAML accepts either a mapping or one of the bare verbs.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch node.Value {
		case "advance":
			*a = Action{Advance: true}
		case "retreat":
			*a = Action{Retreat: true}
		default:
			return fmt.Errorf("line %d: unknown action %q", node.Line, node.Value)
		}
		return nil
	}
	type plain Action
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*a = Action(p)
	if err := a.check(); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// Verb names the action: answer, select, consent, advance, retreat or wait.
func (a Action) Verb() string {
	switch {
	case a.Answer != nil:
		return "answer"
	case a.Select != "":
		return "select"
	case a.Consent != nil:
		return "consent"
	case a.Advance:
		return "advance"
	case a.Retreat:
		return "retreat"
	case a.Wait != "":
		return "wait"
	}
	return ""
}

// WaitDuration parses the wait field.
func (a Action) WaitDuration() (time.Duration, error) {
	d, err := time.ParseDuration(a.Wait)
	if err != nil {
		return 0, fmt.Errorf("wait %q: %w", a.Wait, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("wait %q: negative duration", a.Wait)
	}
	return d, nil
}

func (a Action) check() error {
	var set []string
	if a.Answer != nil {
		set = append(set, "answer")
	}
	if a.Select != "" {
		set = append(set, "select")
	}
	if a.Consent != nil {
		set = append(set, "consent")
	}
	if a.Advance {
		set = append(set, "advance")
	}
	if a.Retreat {
		set = append(set, "retreat")
	}
	if a.Wait != "" {
		set = append(set, "wait")
		if _, err := a.WaitDuration(); err != nil {
			return err
		}
	}
	switch len(set) {
	case 0:
		return fmt.Errorf("empty action")
	case 1:
	default:
		return fmt.Errorf("action sets %s; want exactly one", strings.Join(set, " and "))
	}
	if a.Key != "" && a.Answer == nil {
		return fmt.Errorf("key is only meaningful on answer actions")
	}
	return nil
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a Scenario from raw YAML bytes with strict
// unknown-field rejection.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Actions) == 0 {
		return nil, fmt.Errorf("parse scenario: no actions")
	}
	return &sc, nil
}
