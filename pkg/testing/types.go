package testing

import "github.com/ormasoftchile/wizard/pkg/engine"

// TestResult captures the outcome of running one scenario.
type TestResult struct {
	SurveyName   string            `json:"survey_name"`
	ScenarioName string            `json:"scenario_name"`
	ScenarioPath string            `json:"scenario_path"`
	Status       string            `json:"status"` // passed, failed, error
	DurationMs   int64             `json:"duration_ms"`
	Assertions   []AssertionResult `json:"assertions"`
	Error        string            `json:"error,omitempty"`
}

// AssertionResult is the outcome of a single assertion check.
type AssertionResult struct {
	Type     string `json:"type"`          // must_reach, must_not_reach, final_step, expected_answer, expected_error, expected_position
	Key      string `json:"key,omitempty"` // step ID or answer key
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// TestSummary aggregates results across scenarios.
type TestSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// TestOutput is the top-level JSON structure for wizard test --json.
type TestOutput struct {
	Survey    string       `json:"survey"`
	Scenarios []TestResult `json:"scenarios"`
	Summary   TestSummary  `json:"summary"`
}

// RunResult holds what was observed while driving a session through a
// scenario, used as input to the assertion evaluator.
type RunResult struct {
	FinalStep string          // step the cursor rested on after the last action
	Visited   []string        // step IDs in the order they were shown, consecutive repeats collapsed
	Answers   map[string]any  // final answer snapshot
	Errors    []string        // every validation message shown, in order
	Progress  engine.Progress // progress at the final step
	Complete  bool
}
