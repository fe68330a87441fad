package schema

import (
	"path/filepath"
	"strings"
	"testing"
)

func intPtr(n int) *int { return &n }

// baseSurvey returns a small survey that passes every domain rule.
func baseSurvey() *Survey {
	return &Survey{
		APIVersion: APIVersion,
		Meta: Meta{
			Name:     "base",
			Sections: []Section{{ID: "basics", Title: "Basics"}},
		},
		Steps: []Step{
			{ID: "welcome", Kind: KindWelcome},
			{ID: "age", Kind: KindShortText, AnswerKey: "age", Validate: "number(value) > 10"},
			{ID: "header", Kind: KindSectionHeader, Section: "basics", AutoAdvanceDelayMs: intPtr(1800)},
			{ID: "goals", Kind: KindMultiChoice, AnswerKey: "goals", Options: []Option{{ID: "sleep"}, {ID: "none", Exclusive: true}}},
			{ID: "sluggish", Kind: KindBinaryChoice, AnswerKey: "sluggish", AutoAdvance: true, Condition: `includes(goals, "sleep")`},
			{ID: "email", Kind: KindEmail, AnswerKey: "email", ConsentAnswerKey: "consent", Validate: "isEmail(value)"},
			{ID: "loading", Kind: KindLoading},
			{ID: "results", Kind: KindResults},
		},
	}
}

func errorsOnly(errs []*ValidationError) []*ValidationError {
	var out []*ValidationError
	for _, e := range errs {
		if e.Severity == "error" {
			out = append(out, e)
		}
	}
	return out
}

func TestValidateDomain_Base(t *testing.T) {
	if errs := ValidateDomain(baseSurvey()); len(errs) != 0 {
		t.Errorf("unexpected findings: %v", errs)
	}
}

func TestValidate_BaseIncludesSemantic(t *testing.T) {
	if errs := Validate(baseSurvey()); len(errs) != 0 {
		t.Errorf("unexpected findings: %v", errs)
	}
}

func TestValidateDomain_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Survey)
		path   string
		want   string
	}{
		{"api version", func(s *Survey) { s.APIVersion = "runbook/v0" }, "apiVersion", "unrecognized"},
		{"duplicate id", func(s *Survey) { s.Steps[1].ID = "welcome" }, "steps[1].id", "duplicate step ID"},
		{"empty id", func(s *Survey) { s.Steps[1].ID = "" }, "steps[1].id", "must not be empty"},
		{"unknown kind", func(s *Survey) { s.Steps[1].Kind = "slider" }, "steps[1].kind", "unknown step kind"},
		{"missing answer key", func(s *Survey) { s.Steps[1].AnswerKey = "" }, "steps[1].answer_key", "requires an answer_key"},
		{"answer key on welcome", func(s *Survey) { s.Steps[0].AnswerKey = "x" }, "steps[0].answer_key", "must not declare"},
		{"choice without options", func(s *Survey) { s.Steps[3].Options = nil }, "steps[3].options", "requires options"},
		{"options on text", func(s *Survey) { s.Steps[1].Options = []Option{{ID: "a"}} }, "steps[1].options", "must not declare options"},
		{"duplicate option", func(s *Survey) {
			s.Steps[3].Options = append(s.Steps[3].Options, Option{ID: "sleep"})
		}, "steps[3].options[2].id", "duplicate option ID"},
		{"auto advance on multi", func(s *Survey) { s.Steps[3].AutoAdvance = true }, "steps[3].auto_advance", "auto_advance"},
		{"delay on choice", func(s *Survey) { s.Steps[3].AutoAdvanceDelayMs = intPtr(100) }, "steps[3].auto_advance_delay_ms", "not supported"},
		{"consent off email", func(s *Survey) { s.Steps[1].ConsentAnswerKey = "c" }, "steps[1].consent_answer_key", "only supported on email"},
		{"consent equals answer key", func(s *Survey) { s.Steps[5].ConsentAnswerKey = "email" }, "steps[5].consent_answer_key", "must differ"},
		{"key kind conflict", func(s *Survey) { s.Steps[4].AnswerKey = "goals" }, "steps[4].answer_key", "answer key \"goals\""},
		{"unknown section", func(s *Survey) { s.Steps[2].Section = "diet" }, "steps[2].section", "not declared"},
		{"bad condition", func(s *Survey) { s.Steps[4].Condition = "includes(goals," }, "steps[4].condition", "compile"},
		{"bad validator", func(s *Survey) { s.Steps[1].Validate = "value >" }, "steps[1].validate", "compile"},
		{"validator on info", func(s *Survey) { s.Steps[2].Validate = "true" }, "steps[2].validate", "no answer"},
		{"conditional results", func(s *Survey) { s.Steps[7].Condition = "true" }, "steps[7].condition", "must not be conditional"},
		{"no loading", func(s *Survey) { s.Steps = append(s.Steps[:6], s.Steps[7]) }, "steps", "exactly one loading"},
		{"negative delay", func(s *Survey) { s.Meta.LoadingDelayMs = -1 }, "meta.loading_delay_ms", "negative"},
		{"bad redaction", func(s *Survey) { s.Meta.Redact = []RedactionRule{{Pattern: "("}} }, "meta.redact[0].pattern", "missing closing )"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSurvey()
			tt.mutate(s)
			errs := errorsOnly(ValidateDomain(s))
			found := false
			for _, e := range errs {
				if e.Path == tt.path && strings.Contains(e.Message, tt.want) {
					found = true
				}
				if e.Phase != "domain" {
					t.Errorf("phase = %q, want domain", e.Phase)
				}
			}
			if !found {
				t.Errorf("expected %s error containing %q, got: %v", tt.path, tt.want, errs)
			}
		})
	}
}

func TestValidateDomain_Warnings(t *testing.T) {
	s := baseSurvey()
	s.Steps[2].AutoAdvanceDelayMs = nil
	s.Steps[0], s.Steps[1] = s.Steps[1], s.Steps[0]

	errs := ValidateDomain(s)
	if HasErrors(errs) {
		t.Fatalf("warnings reported as errors: %v", errs)
	}
	if len(errs) != 2 {
		t.Errorf("warnings = %d, want 2: %v", len(errs), errs)
	}
}

func TestValidateSemantic_RejectsUnknownKind(t *testing.T) {
	s := baseSurvey()
	s.Steps[1].Kind = "slider"
	errs := validateSemantic(s)
	if len(errs) == 0 {
		t.Fatal("expected semantic error for unknown kind")
	}
	if errs[0].Phase != "semantic" {
		t.Errorf("phase = %q", errs[0].Phase)
	}
}

func TestValidateFile_Fixtures(t *testing.T) {
	files, _ := filepath.Glob("../../testdata/surveys/*.yaml")
	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			s, errs := ValidateFile(f)
			if s == nil {
				t.Fatalf("ValidateFile returned no survey: %v", errs)
			}
			if HasErrors(errs) {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestValidateFile_Structural(t *testing.T) {
	s, errs := ValidateFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if s != nil {
		t.Error("expected nil survey")
	}
	if len(errs) != 1 || errs[0].Phase != "structural" {
		t.Errorf("errs = %v, want one structural error", errs)
	}
}

func TestValidationError_Error(t *testing.T) {
	e := &ValidationError{Phase: "domain", Path: "steps[1].id", Message: "duplicate"}
	if got := e.Error(); got != "[domain] steps[1].id: duplicate" {
		t.Errorf("Error() = %q", got)
	}
}
