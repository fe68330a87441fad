package debugger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/wizard/pkg/engine"
	wtesting "github.com/ormasoftchile/wizard/pkg/testing"
)

func newTestDebugger(t *testing.T) (*Debugger, *bytes.Buffer) {
	t.Helper()
	reg, err := engine.LoadFile("../../testdata/surveys/checkup.yaml")
	if err != nil {
		t.Fatalf("load survey: %v", err)
	}
	d, err := New(reg, nil, nil)
	if err != nil {
		t.Fatalf("new debugger: %v", err)
	}
	t.Cleanup(func() { d.Session().Close() })
	var buf bytes.Buffer
	d.SetOutput(&buf)
	return d, &buf
}

// run executes each line and returns the combined output.
func run(t *testing.T, d *Debugger, buf *bytes.Buffer, lines ...string) string {
	t.Helper()
	buf.Reset()
	for _, line := range lines {
		if d.Execute(line) {
			t.Fatalf("%q quit the debugger", line)
		}
	}
	return buf.String()
}

// TestDebuggerCommandHelp verifies help output lists all commands.
func TestDebuggerCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	d := &Debugger{output: &buf}
	d.handleHelp()
	out := buf.String()
	for _, cmd := range []string{"next", "back", "answer", "set", "select", "consent", "wait", "timers", "state", "print", "history", "steps", "eval", "save", "help", "quit"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

func TestDebuggerWalkthrough(t *testing.T) {
	d, buf := newTestDebugger(t)

	if got := d.buildPrompt(); got != "wizard[welcome]> " {
		t.Errorf("prompt = %q", got)
	}

	out := run(t, d, buf, "next")
	if !strings.Contains(out, "welcome → age") {
		t.Errorf("next output = %q", out)
	}
	if got := d.buildPrompt(); got != "wizard[1/4 | age]> " {
		t.Errorf("prompt = %q", got)
	}

	out = run(t, d, buf, "answer 30", "next")
	if !strings.Contains(out, `age = "30"`) || !strings.Contains(out, "age → section-basics") {
		t.Errorf("answer/next output = %q", out)
	}

	out = run(t, d, buf, "timers")
	if !strings.Contains(out, "pending on section-basics") {
		t.Errorf("timers output = %q", out)
	}
	out = run(t, d, buf, "wait")
	if !strings.Contains(out, "section-basics → sleep-goal") {
		t.Errorf("wait output = %q", out)
	}

	out = run(t, d, buf, "select sleep", "next")
	if !strings.Contains(out, "goals = [sleep]") || !strings.Contains(out, "sleep-goal → sluggish") {
		t.Errorf("select output = %q", out)
	}

	out = run(t, d, buf, "select yes")
	if !strings.Contains(out, "select timer armed") {
		t.Errorf("auto-advance select output = %q", out)
	}
	out = run(t, d, buf, "wait")
	if !strings.Contains(out, "sluggish → email") {
		t.Errorf("wait output = %q", out)
	}

	out = run(t, d, buf, "answer me@example.com", "next")
	if !strings.Contains(out, "✗ email") {
		t.Errorf("expected consent block, got %q", out)
	}

	out = run(t, d, buf, "consent", "next")
	if !strings.Contains(out, "consent = true") || !strings.Contains(out, "email → loading") {
		t.Errorf("consent output = %q", out)
	}

	out = run(t, d, buf, "wait 2s")
	if !strings.Contains(out, "loading → results") {
		t.Errorf("loading wait output = %q", out)
	}
	if got := d.buildPrompt(); got != "wizard[done]> " {
		t.Errorf("prompt = %q", got)
	}

	out = run(t, d, buf, "history")
	want := []string{"welcome", "age", "section-basics", "sleep-goal", "sluggish", "email", "loading", "results"}
	for i, id := range want {
		if !strings.Contains(out, "["+string(rune('0'+i))+"] "+id) {
			t.Errorf("history missing [%d] %s:\n%s", i, id, out)
		}
	}
}

func TestDebuggerBack(t *testing.T) {
	d, buf := newTestDebugger(t)

	out := run(t, d, buf, "back")
	if !strings.Contains(out, "already at the first step") {
		t.Errorf("back on welcome = %q", out)
	}

	out = run(t, d, buf, "next", "back")
	if !strings.Contains(out, "age → welcome") {
		t.Errorf("back output = %q", out)
	}
}

func TestDebuggerValidationError(t *testing.T) {
	d, buf := newTestDebugger(t)
	out := run(t, d, buf, "next", "answer 5", "next")
	if !strings.Contains(out, "✗ age: Please enter a valid age.") {
		t.Errorf("output = %q", out)
	}
	out = run(t, d, buf, "state")
	if !strings.Contains(out, "error: Please enter a valid age.") {
		t.Errorf("state output = %q", out)
	}
}

func TestDebuggerSetAndPrint(t *testing.T) {
	d, buf := newTestDebugger(t)

	out := run(t, d, buf, "print answers")
	if !strings.Contains(out, "No answers recorded.") {
		t.Errorf("empty answers = %q", out)
	}

	out = run(t, d, buf, "set consent true", "set age 42", "print answers")
	if !strings.Contains(out, "consent = true") || !strings.Contains(out, `age = "42"`) {
		t.Errorf("print answers = %q", out)
	}

	out = run(t, d, buf, "set consent maybe")
	if !strings.Contains(out, "Error: consent holds booleans") {
		t.Errorf("bad bool = %q", out)
	}

	out = run(t, d, buf, "print snapshot")
	if !strings.Contains(out, `"index": 0`) {
		t.Errorf("snapshot dump = %q", out)
	}
}

func TestDebuggerEvalAndSteps(t *testing.T) {
	d, buf := newTestDebugger(t)

	out := run(t, d, buf, "steps")
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, " sluggish ") && !strings.Contains(line, "⏭") {
			t.Errorf("sluggish should be marked skipped: %q", line)
		}
		if strings.Contains(line, " welcome ") && !strings.Contains(line, "▸") {
			t.Errorf("welcome should be marked current: %q", line)
		}
	}

	out = run(t, d, buf, `eval includes(goals, "sleep")`)
	if strings.TrimSpace(out) != "false" {
		t.Errorf("eval before answer = %q", out)
	}

	out = run(t, d, buf, "eval (((")
	if !strings.Contains(out, "Error:") {
		t.Errorf("eval of bad expression = %q", out)
	}
}

func TestDebuggerErrors(t *testing.T) {
	d, buf := newTestDebugger(t)

	tests := []struct {
		line string
		want string
	}{
		{"answer hello", "takes no text answer"},
		{"select nope", "Error:"},
		{"select", "Usage: select"},
		{"set age", "Usage: set"},
		{"wait soon", "Error: wait:"},
		{"wait -1s", "negative duration"},
		{"wait", "no timer pending"},
		{"print", "Usage: print"},
		{"print vars", "Unknown print target"},
		{"frobnicate", `Unknown command: "frobnicate"`},
		{"timers", "No timer pending."},
	}
	for _, tt := range tests {
		out := run(t, d, buf, tt.line)
		if !strings.Contains(out, tt.want) {
			t.Errorf("%q: output %q, want %q", tt.line, out, tt.want)
		}
	}
}

func TestDebuggerQuit(t *testing.T) {
	d, buf := newTestDebugger(t)
	if d.Execute("") {
		t.Error("empty line should not quit")
	}
	if !d.Execute("q") {
		t.Error("q should quit")
	}
	if !strings.Contains(buf.String(), "Exiting debugger.") {
		t.Errorf("quit output = %q", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "(unset)"},
		{"a", `"a"`},
		{[]string{"x", "y"}, "[x, y]"},
		{true, "true"},
		{float64(3), "3"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDebuggerSaveScenario(t *testing.T) {
	d, buf := newTestDebugger(t)
	path := filepath.Join(t.TempDir(), "recorded.yaml")

	out := run(t, d, buf,
		"next", "answer 5", "next", "answer 30", "next", "wait",
		"select sleep", "next", "select yes", "wait",
		"answer me@example.com", "next", "consent", "next", "wait",
		"save "+path)
	if !strings.Contains(out, "saved 15 actions to "+path) {
		t.Fatalf("save output = %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "- advance") {
		t.Errorf("scenario should use bare advance verbs:\n%s", data)
	}

	sc, err := wtesting.LoadScenario(path)
	if err != nil {
		t.Fatalf("load saved scenario: %v", err)
	}
	if sc.Expect.FinalStep != "results" {
		t.Errorf("final_step = %q", sc.Expect.FinalStep)
	}
	if len(sc.Expect.ExpectedErrors) != 2 {
		t.Errorf("expected_errors = %v, want age and consent messages", sc.Expect.ExpectedErrors)
	}

	replay, err := (&wtesting.Runner{}).Execute(d.reg, sc, nil)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for _, a := range wtesting.Evaluate(sc.Expect, replay) {
		if !a.Passed {
			t.Errorf("replayed assertion %s %s failed: %s", a.Type, a.Key, a.Message)
		}
	}
}

func TestDebuggerSaveUsage(t *testing.T) {
	d, buf := newTestDebugger(t)
	if out := run(t, d, buf, "save"); !strings.Contains(out, "Usage: save") {
		t.Errorf("save output = %q", out)
	}
}
