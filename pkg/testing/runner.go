package testing

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/wizard/pkg/engine"
	"github.com/ormasoftchile/wizard/pkg/schema"
	"github.com/ormasoftchile/wizard/pkg/trace"
)

// epoch is the start time of every scenario clock, so traces are stable.
var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Runner discovers and executes scenarios for a survey.
type Runner struct {
	Project  *schema.Project // nil: scenarios live next to the survey
	Logger   *slog.Logger
	TraceDir string // when set, each scenario writes a JSONL trace here
}

// ScenarioInfo describes a discovered scenario file.
type ScenarioInfo struct {
	Name string // file name without extension
	Path string
}

// DiscoverScenarios finds every scenario for a survey by convention:
// <scenarios-dir>/<survey-name>/*.yaml
func DiscoverScenarios(project *schema.Project, surveyPath string) ([]ScenarioInfo, error) {
	dir := project.ScenarioDirFor(surveyPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // no scenarios directory, not an error
		}
		return nil, fmt.Errorf("read scenarios directory: %w", err)
	}

	var scenarios []ScenarioInfo
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		scenarios = append(scenarios, ScenarioInfo{
			Name: strings.TrimSuffix(entry.Name(), ext),
			Path: filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(scenarios, func(i, j int) bool { return scenarios[i].Name < scenarios[j].Name })
	return scenarios, nil
}

// RunAll executes every scenario for a survey.
func (r *Runner) RunAll(surveyPath string, failFast bool) (*TestOutput, error) {
	reg, err := loadRegistry(surveyPath, r.logger())
	if err != nil {
		return nil, err
	}
	scenarios, err := DiscoverScenarios(r.Project, surveyPath)
	if err != nil {
		return nil, err
	}

	output := &TestOutput{Survey: reg.Meta().Name}
	for _, info := range scenarios {
		result := r.runScenario(reg, info)
		output.Scenarios = append(output.Scenarios, result)

		switch result.Status {
		case "passed":
			output.Summary.Passed++
		case "failed":
			output.Summary.Failed++
		case "error":
			output.Summary.Errors++
		}
		output.Summary.Total++

		if failFast && result.Status != "passed" {
			break
		}
	}
	return output, nil
}

// RunScenario executes a single named scenario for a survey.
func (r *Runner) RunScenario(surveyPath, scenarioName string) (*TestResult, error) {
	reg, err := loadRegistry(surveyPath, r.logger())
	if err != nil {
		return nil, err
	}
	scenarios, err := DiscoverScenarios(r.Project, surveyPath)
	if err != nil {
		return nil, err
	}
	for _, info := range scenarios {
		if info.Name == scenarioName {
			result := r.runScenario(reg, info)
			return &result, nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", scenarioName)
}

// Execute drives a fresh session on reg through the scenario's actions.
// The session runs on a manual clock; only wait actions move time.
func (r *Runner) Execute(reg *engine.Registry, sc *Scenario, tw *trace.Writer) (*RunResult, error) {
	clock := engine.NewManualClock(epoch)
	obs := &observer{}
	sess, err := engine.New(reg, engine.Config{
		Clock:    clock,
		Logger:   r.logger(),
		Trace:    tw,
		OnChange: obs.observe,
	})
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	obs.observe(sess.Snapshot())

	for i, a := range sc.Actions {
		if err := apply(sess, clock, a); err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i+1, a.Verb(), err)
		}
	}

	final := sess.Snapshot()
	return &RunResult{
		FinalStep: final.Step.ID,
		Visited:   obs.visited,
		Answers:   final.Answers,
		Errors:    obs.errors,
		Progress:  final.Progress,
		Complete:  final.Complete,
	}, nil
}

func (r *Runner) runScenario(reg *engine.Registry, info ScenarioInfo) TestResult {
	start := time.Now()
	result := TestResult{
		SurveyName:   reg.Meta().Name,
		ScenarioName: info.Name,
		ScenarioPath: info.Path,
	}
	finish := func(status, errMsg string) TestResult {
		result.Status = status
		result.Error = errMsg
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	sc, err := LoadScenario(info.Path)
	if err != nil {
		return finish("error", err.Error())
	}

	tw, err := r.openTrace(reg.Meta().Name, info.Name)
	if err != nil {
		return finish("error", err.Error())
	}
	defer tw.Close()

	run, err := r.Execute(reg, sc, tw)
	if err != nil {
		return finish("error", err.Error())
	}

	result.Assertions = Evaluate(sc.Expect, run)
	if HasFailures(result.Assertions) {
		return finish("failed", "")
	}
	return finish("passed", "")
}

func (r *Runner) openTrace(survey, scenario string) (*trace.Writer, error) {
	if r.TraceDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.TraceDir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	path := filepath.Join(r.TraceDir, survey+"-"+scenario+".jsonl")
	return trace.NewFileWriter(path, uuid.NewString())
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger.With("component", "scenario")
	}
	return slog.New(slog.DiscardHandler)
}

// apply performs one action against the session.
func apply(sess *engine.Session, clock *engine.ManualClock, a Action) error {
	switch a.Verb() {
	case "answer":
		key := a.Key
		if key == "" {
			key = sess.Snapshot().Step.AnswerKey
		}
		if key == "" {
			return fmt.Errorf("step %q: %w", sess.Snapshot().Step.ID, engine.ErrNoAnswerKey)
		}
		v, err := toValue(a.Answer)
		if err != nil {
			return err
		}
		_, err = sess.Answer(key, v)
		return err
	case "select":
		_, err := sess.Select(a.Select)
		return err
	case "consent":
		snap := sess.Snapshot()
		current, _ := snap.Answers[snap.Step.ConsentAnswerKey].(bool)
		if current == *a.Consent {
			return nil
		}
		_, err := sess.ToggleConsent("")
		return err
	case "advance":
		_, err := sess.Advance()
		return err
	case "retreat":
		_, err := sess.Retreat()
		return err
	case "wait":
		d, err := a.WaitDuration()
		if err != nil {
			return err
		}
		clock.Advance(d)
		return nil
	}
	return fmt.Errorf("empty action")
}

// toValue converts a YAML scalar into an answer value.
func toValue(v any) (engine.Value, error) {
	switch x := v.(type) {
	case string:
		return engine.TextValue(x), nil
	case int:
		return engine.NumberValue(float64(x)), nil
	case float64:
		return engine.NumberValue(x), nil
	case bool:
		return engine.BoolValue(x), nil
	}
	return nil, fmt.Errorf("unsupported answer value %v (%T); set answers change through select", v, v)
}

// observer collects the steps and validation messages a session shows.
type observer struct {
	visited []string
	errors  []string
}

func (o *observer) observe(snap engine.Snapshot) {
	if n := len(o.visited); n == 0 || o.visited[n-1] != snap.Step.ID {
		o.visited = append(o.visited, snap.Step.ID)
	}
	if snap.Error == "" {
		return
	}
	if n := len(o.errors); n == 0 || o.errors[n-1] != snap.Error {
		o.errors = append(o.errors, snap.Error)
	}
}

// loadRegistry validates a survey file and compiles it. Warnings do not
// block execution.
func loadRegistry(path string, logger *slog.Logger) (*engine.Registry, error) {
	s, errs := schema.ValidateFile(path)
	for _, e := range errs {
		if e.Severity == "error" {
			return nil, fmt.Errorf("survey validation failed: %s", e.Error())
		}
	}
	return engine.Compile(s, engine.WithLogger(logger))
}
