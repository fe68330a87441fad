package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/wizard/pkg/eval"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "steps[3].options")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether errs contains at least one error-severity entry.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a survey file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Survey, []*ValidationError) {
	s, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return s, Validate(s)
}

// Validate runs the semantic and domain phases on an already decoded survey.
func Validate(s *Survey) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(s)...)
	all = append(all, ValidateDomain(s)...)
	if len(all) == 0 {
		return nil
	}
	return all
}

func semanticError(format string, args ...any) []*ValidationError {
	return []*ValidationError{{
		Phase:    "semantic",
		Message:  fmt.Sprintf(format, args...),
		Severity: "error",
	}}
}

// validateSemantic validates the survey against the generated JSON Schema.
func validateSemantic(s *Survey) []*ValidationError {
	data, err := json.Marshal(s)
	if err != nil {
		return semanticError("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semanticError("generate schema: %v", err)
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semanticError("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("survey-v0.json", schemaDoc); err != nil {
		return semanticError("add schema resource: %v", err)
	}
	sch, err := c.Compile("survey-v0.json")
	if err != nil {
		return semanticError("compile schema: %v", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return semanticError("unmarshal document: %v", err)
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semanticError("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

func domainErr(path, format string, args ...any) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"}
}

func domainWarn(path, format string, args ...any) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: fmt.Sprintf(format, args...), Severity: "warning"}
}

// answerKind classifies the value a step stores under its answer key.
func answerKind(kind string) string {
	switch {
	case MultiKind(kind):
		return "set"
	case AnswersKind(kind):
		return "text"
	}
	return ""
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(s *Survey) []*ValidationError {
	var errs []*ValidationError

	if s.APIVersion != APIVersion {
		errs = append(errs, domainErr("apiVersion", "unrecognized apiVersion %q, expected %q", s.APIVersion, APIVersion))
	}
	if s.Meta.LoadingDelayMs < 0 {
		errs = append(errs, domainErr("meta.loading_delay_ms", "must not be negative"))
	}
	if s.Meta.SelectDelayMs < 0 {
		errs = append(errs, domainErr("meta.select_delay_ms", "must not be negative"))
	}

	for i, r := range s.Meta.Redact {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			errs = append(errs, domainErr(fmt.Sprintf("meta.redact[%d].pattern", i), "%v", err))
		}
	}

	sections := make(map[string]bool, len(s.Meta.Sections))
	for i, sec := range s.Meta.Sections {
		if sections[sec.ID] {
			errs = append(errs, domainErr(fmt.Sprintf("meta.sections[%d].id", i), "duplicate section ID %q", sec.ID))
		}
		sections[sec.ID] = true
	}

	if len(s.Steps) == 0 {
		return append(errs, domainErr("steps", "survey must contain at least one step"))
	}

	seen := make(map[string]int)
	keyKinds := make(map[string]string) // answer key -> "text" | "set" | "bool"
	keyOwner := make(map[string]string)
	counts := make(map[string]int)

	claimKey := func(path, key, kind, stepID string) {
		if prev, ok := keyKinds[key]; ok && prev != kind {
			errs = append(errs, domainErr(path, "answer key %q holds %s values here but %s values in step %q", key, kind, prev, keyOwner[key]))
			return
		}
		keyKinds[key] = kind
		if _, ok := keyOwner[key]; !ok {
			keyOwner[key] = stepID
		}
	}

	for i, step := range s.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		counts[step.Kind]++

		if step.ID == "" {
			errs = append(errs, domainErr(path+".id", "step ID must not be empty"))
		} else if prev, ok := seen[step.ID]; ok {
			errs = append(errs, domainErr(path+".id", "duplicate step ID %q (first at steps[%d])", step.ID, prev))
		} else {
			seen[step.ID] = i
		}

		if !knownKind(step.Kind) {
			errs = append(errs, domainErr(path+".kind", "unknown step kind %q", step.Kind))
			continue
		}

		errs = append(errs, validateStepFields(path, step)...)

		if step.AnswerKey != "" && AnswersKind(step.Kind) {
			claimKey(path+".answer_key", step.AnswerKey, answerKind(step.Kind), step.ID)
		}
		if step.ConsentAnswerKey != "" {
			claimKey(path+".consent_answer_key", step.ConsentAnswerKey, "bool", step.ID)
			if step.ConsentAnswerKey == step.AnswerKey {
				errs = append(errs, domainErr(path+".consent_answer_key", "consent key must differ from the answer key"))
			}
		}

		if step.Section != "" && len(sections) > 0 && !sections[step.Section] {
			errs = append(errs, domainErr(path+".section", "section %q is not declared in meta.sections", step.Section))
		}

		if step.Condition != "" {
			if _, err := eval.Compile(step.Condition); err != nil {
				errs = append(errs, domainErr(path+".condition", "%v", err))
			}
		}
		if step.Validate != "" {
			if _, err := eval.Compile(step.Validate); err != nil {
				errs = append(errs, domainErr(path+".validate", "%v", err))
			}
		}
	}

	for _, kind := range []string{KindLoading, KindResults} {
		switch n := counts[kind]; {
		case n == 0:
			errs = append(errs, domainErr("steps", "survey must contain exactly one %s step, found none", kind))
		case n > 1:
			errs = append(errs, domainErr("steps", "survey must contain exactly one %s step, found %d", kind, n))
		}
	}

	if first := s.Steps[0]; first.Kind != KindWelcome {
		errs = append(errs, domainWarn("steps[0].kind", "first step is %q; surveys normally open with a welcome step", first.Kind))
	}
	if last := s.Steps[len(s.Steps)-1]; last.Kind != KindResults {
		errs = append(errs, domainWarn(fmt.Sprintf("steps[%d].kind", len(s.Steps)-1), "last step is %q; steps after results are unreachable", last.Kind))
	}

	return errs
}

func knownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// validateStepFields checks the kind-specific field rules for one step.
func validateStepFields(path string, s Step) []*ValidationError {
	var errs []*ValidationError

	answers := AnswersKind(s.Kind)
	switch {
	case answers && s.AnswerKey == "":
		errs = append(errs, domainErr(path+".answer_key", "%s step requires an answer_key", s.Kind))
	case !answers && s.AnswerKey != "":
		errs = append(errs, domainErr(path+".answer_key", "%s step must not declare an answer_key", s.Kind))
	}

	if ChoiceKind(s.Kind) {
		if len(s.Options) == 0 && s.Kind != KindBinaryChoice {
			errs = append(errs, domainErr(path+".options", "%s step requires options", s.Kind))
		}
		ids := make(map[string]bool, len(s.Options))
		for j, opt := range s.Options {
			op := fmt.Sprintf("%s.options[%d]", path, j)
			if opt.ID == "" {
				errs = append(errs, domainErr(op+".id", "option ID must not be empty"))
				continue
			}
			if ids[opt.ID] {
				errs = append(errs, domainErr(op+".id", "duplicate option ID %q", opt.ID))
			}
			ids[opt.ID] = true
			if opt.Exclusive && !MultiKind(s.Kind) {
				errs = append(errs, domainWarn(op+".exclusive", "exclusive has no effect on %s steps", s.Kind))
			}
		}
	} else if len(s.Options) > 0 {
		errs = append(errs, domainErr(path+".options", "%s step must not declare options", s.Kind))
	}

	if s.AutoAdvance {
		switch s.Kind {
		case KindSingleChoice, KindBinaryChoice, KindShortText:
		default:
			errs = append(errs, domainErr(path+".auto_advance", "auto_advance is only meaningful where a single action determines the answer, not on %s steps", s.Kind))
		}
	}

	if s.AutoAdvanceDelayMs != nil {
		switch s.Kind {
		case KindInfo, KindSectionHeader, KindLoading:
			if *s.AutoAdvanceDelayMs < 0 {
				errs = append(errs, domainErr(path+".auto_advance_delay_ms", "must not be negative"))
			}
		default:
			errs = append(errs, domainErr(path+".auto_advance_delay_ms", "timed advance is not supported on %s steps", s.Kind))
		}
	} else if s.Kind == KindInfo || s.Kind == KindSectionHeader {
		errs = append(errs, domainWarn(path, "%s step without auto_advance_delay_ms waits for an explicit advance", s.Kind))
	}

	if s.ConsentAnswerKey != "" && s.Kind != KindEmail {
		errs = append(errs, domainErr(path+".consent_answer_key", "consent gating is only supported on email steps"))
	}

	if (s.Kind == KindLoading || s.Kind == KindResults) && s.Condition != "" {
		errs = append(errs, domainErr(path+".condition", "%s step must not be conditional", s.Kind))
	}

	if !answers && s.Validate != "" {
		errs = append(errs, domainErr(path+".validate", "%s step has no answer to validate", s.Kind))
	}

	return errs
}
