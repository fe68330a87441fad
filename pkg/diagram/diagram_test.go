package diagram

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/wizard/pkg/schema"
)

func intPtr(n int) *int { return &n }

func checkup() *schema.Survey {
	return &schema.Survey{
		APIVersion: schema.APIVersion,
		Meta: schema.Meta{
			Name:     "checkup",
			Title:    "Quick checkup",
			Sections: []schema.Section{{ID: "basics", Title: "Basics"}},
		},
		Steps: []schema.Step{
			{ID: "welcome", Kind: schema.KindWelcome, Prompt: "A short checkup."},
			{ID: "age", Kind: schema.KindShortText, Prompt: "How old are you?", AnswerKey: "age"},
			{ID: "section-basics", Kind: schema.KindSectionHeader, Section: "basics", AutoAdvanceDelayMs: intPtr(1800)},
			{ID: "sleep-goal", Kind: schema.KindMultiChoice, AnswerKey: "goals"},
			{ID: "sluggish", Kind: schema.KindBinaryChoice, AnswerKey: "sluggish", Condition: `includes(goals, "sleep")`},
			{ID: "email", Kind: schema.KindEmail, AnswerKey: "email"},
			{ID: "loading", Kind: schema.KindLoading},
			{ID: "results", Kind: schema.KindResults},
		},
	}
}

func TestGenerateMermaid_LinearFlow(t *testing.T) {
	out, err := Generate(checkup(), FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"flowchart TD",
		"START([Start]) --> welcome",
		"welcome --> age",
		"age --> section_basics",
		`welcome(["welcome: A short checkup."])`,
		`sleep_goal{{"sleep-goal<br/>→ goals"}}`,
		`loading(("loading"))`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
}

func TestGenerateMermaid_ConditionalSkip(t *testing.T) {
	out, err := Generate(checkup(), FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `sleep_goal -->|"includes(goals, #quot;sleep#quot;)"| sluggish`) {
		t.Errorf("missing condition edge, got:\n%s", out)
	}
	if !strings.Contains(out, `sleep_goal -.->|"skip"| email`) {
		t.Errorf("missing skip edge, got:\n%s", out)
	}
	if strings.Contains(out, "age -.->") {
		t.Error("unconditional step got a skip edge")
	}
}

func TestGenerateMermaid_LoadingAndStyles(t *testing.T) {
	out, err := Generate(checkup(), FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `loading -->|"after 2000ms"| results`) {
		t.Errorf("missing timed loading edge, got:\n%s", out)
	}
	if !strings.Contains(out, "style results fill:#0d6") {
		t.Error("missing results style")
	}
}

func TestGenerateMermaid_Subgraphs(t *testing.T) {
	out, err := Generate(checkup(), FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	start := strings.Index(out, `subgraph section_basics ["Basics"]`)
	if start < 0 {
		t.Fatalf("missing section subgraph, got:\n%s", out)
	}
	body := out[start:]
	end := strings.Index(body, "    end\n")
	if end < 0 {
		t.Fatal("unterminated subgraph")
	}
	body = body[:end]
	for _, id := range []string{"section_basics", "sleep_goal", "sluggish", "email"} {
		if !strings.Contains(body, "        "+id) {
			t.Errorf("%s not inside the section subgraph", id)
		}
	}
	if strings.Contains(body, "        loading") || strings.Contains(body, "        age") {
		t.Error("step outside the section placed in subgraph")
	}
}

func TestGenerateMermaid_Escaping(t *testing.T) {
	s := checkup()
	s.Steps[1].Prompt = `What's your "real" age?`
	out, _ := Generate(s, FormatMermaid)
	if !strings.Contains(out, "What#apos;s your #quot;real#quot; age?") {
		t.Errorf("prompt not escaped, got:\n%s", out)
	}
}

func TestGenerateASCII(t *testing.T) {
	out, err := Generate(checkup(), FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Quick checkup", "§ Basics", "◇ if includes(goals", "→ goals", "⏱ 1800ms", "⏱ 2000ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
	if strings.Count(out, "┌") != len(checkup().Steps) {
		t.Errorf("boxes = %d, want %d", strings.Count(out, "┌"), len(checkup().Steps))
	}
}

func TestGenerateASCII_Alignment(t *testing.T) {
	s := checkup()
	s.Steps[1].Prompt = "一个很长的问题，用来测试宽字符的对齐情况"
	out, _ := Generate(s, FormatASCII)

	width := -1
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "│" || (!strings.HasPrefix(trimmed, "│") && !strings.HasPrefix(trimmed, "┌") && !strings.HasPrefix(trimmed, "║")) {
			continue
		}
		w := runewidth.StringWidth(line)
		if width < 0 {
			width = w
		}
		if w != width {
			t.Errorf("line width %d, want %d: %q", w, width, line)
		}
	}
}

func TestGenerateASCII_EmptyAndUntitled(t *testing.T) {
	out, _ := Generate(&schema.Survey{}, FormatASCII)
	if out != "Survey (empty)\n" {
		t.Errorf("empty = %q", out)
	}
	s := checkup()
	s.Meta.Title = ""
	out, _ = Generate(s, FormatASCII)
	if !strings.Contains(out, "checkup") {
		t.Error("name fallback missing")
	}
}

func TestGenerate_Errors(t *testing.T) {
	if _, err := Generate(nil, FormatMermaid); err == nil {
		t.Error("expected error for nil survey")
	}
	if _, err := Generate(checkup(), Format("svg")); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	got := truncate("a much longer string than allowed", 10)
	if runewidth.StringWidth(got) > 10 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate long = %q", got)
	}
}
