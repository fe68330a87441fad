package testing

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Evaluate runs every expectation of a scenario against a RunResult and
// returns the individual assertion results. Omitted fields produce no
// assertions.
func Evaluate(exp Expect, run *RunResult) []AssertionResult {
	var results []AssertionResult

	for _, stepID := range exp.MustReach {
		results = append(results, evalMustReach(stepID, run.Visited))
	}

	for _, stepID := range exp.MustNotReach {
		results = append(results, evalMustNotReach(stepID, run.Visited))
	}

	if exp.FinalStep != "" {
		results = append(results, evalFinalStep(exp.FinalStep, run.FinalStep))
	}

	keys := make([]string, 0, len(exp.ExpectedAnswers))
	for k := range exp.ExpectedAnswers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		results = append(results, evalAnswer(key, exp.ExpectedAnswers[key], run.Answers))
	}

	for _, msg := range exp.ExpectedErrors {
		results = append(results, evalError(msg, run.Errors))
	}

	if exp.ExpectedPosition != "" {
		actual := fmt.Sprintf("%d/%d", run.Progress.Position, run.Progress.Total)
		results = append(results, evalPosition(exp.ExpectedPosition, actual))
	}

	return results
}

// HasFailures returns true if any assertion in the slice failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func evalMustReach(stepID string, visited []string) AssertionResult {
	if slices.Contains(visited, stepID) {
		return AssertionResult{Type: "must_reach", Key: stepID, Passed: true}
	}
	return AssertionResult{
		Type:    "must_reach",
		Key:     stepID,
		Passed:  false,
		Message: fmt.Sprintf("step %q was not visited", stepID),
	}
}

func evalMustNotReach(stepID string, visited []string) AssertionResult {
	if slices.Contains(visited, stepID) {
		return AssertionResult{
			Type:    "must_not_reach",
			Key:     stepID,
			Passed:  false,
			Message: fmt.Sprintf("step %q was visited but should not have been", stepID),
		}
	}
	return AssertionResult{Type: "must_not_reach", Key: stepID, Passed: true}
}

func evalFinalStep(expected, actual string) AssertionResult {
	passed := expected == actual
	msg := ""
	if !passed {
		msg = fmt.Sprintf("expected to finish on %q, finished on %q", expected, actual)
	}
	return AssertionResult{
		Type:     "final_step",
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

func evalAnswer(key, expected string, answers map[string]any) AssertionResult {
	v, exists := answers[key]
	if !exists {
		return AssertionResult{
			Type:     "expected_answer",
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  fmt.Sprintf("answer %q not found", key),
		}
	}

	actual := formatAnswer(v)
	passed, msg := compareValue(expected, actual)
	return AssertionResult{
		Type:     "expected_answer",
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

func evalError(expected string, shown []string) AssertionResult {
	for _, s := range shown {
		if ok, _ := compareValue(expected, s); ok {
			return AssertionResult{Type: "expected_error", Expected: expected, Actual: s, Passed: true}
		}
	}
	return AssertionResult{
		Type:     "expected_error",
		Expected: expected,
		Passed:   false,
		Message:  fmt.Sprintf("validation message %q was never shown", expected),
	}
}

func evalPosition(expected, actual string) AssertionResult {
	passed := strings.ReplaceAll(expected, " ", "") == actual
	msg := ""
	if !passed {
		msg = fmt.Sprintf("expected position %s, got %s", expected, actual)
	}
	return AssertionResult{
		Type:     "expected_position",
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

// formatAnswer renders a snapshot value: sets as comma-joined option IDs,
// everything else in its default format.
func formatAnswer(v any) string {
	switch x := v.(type) {
	case []string:
		return strings.Join(x, ",")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// compareValue determines if an actual string satisfies an expected assertion.
// Supports three forms:
//   - Regex:   "/pattern/"
//   - Numeric: ">0", "<100", ">=1", "<=50", "==0", "!=0"
//   - Exact:   any other string (literal equality)
func compareValue(expected, actual string) (bool, string) {
	if len(expected) >= 2 && expected[0] == '/' && expected[len(expected)-1] == '/' {
		pattern := expected[1 : len(expected)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid regex %q: %v", pattern, err)
		}
		if re.MatchString(actual) {
			return true, ""
		}
		return false, fmt.Sprintf("value %q does not match pattern %s", actual, expected)
	}

	for _, op := range []string{">=", "<=", "!=", "==", ">", "<"} {
		if strings.HasPrefix(expected, op) {
			threshold := strings.TrimSpace(expected[len(op):])
			return compareNumeric(op, threshold, actual)
		}
	}

	if expected == actual {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q, got %q", expected, actual)
}

func compareNumeric(op, threshold, actual string) (bool, string) {
	tVal, tErr := strconv.ParseFloat(threshold, 64)
	aVal, aErr := strconv.ParseFloat(actual, 64)
	if tErr != nil || aErr != nil {
		return false, fmt.Sprintf("numeric comparison %s%s failed: cannot parse %q or %q as number", op, threshold, actual, threshold)
	}

	var passed bool
	switch op {
	case ">":
		passed = aVal > tVal
	case "<":
		passed = aVal < tVal
	case ">=":
		passed = aVal >= tVal
	case "<=":
		passed = aVal <= tVal
	case "==":
		passed = aVal == tVal
	case "!=":
		passed = aVal != tVal
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s%s, got %q", op, threshold, actual)
}
