package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ormasoftchile/wizard/pkg/eval"
	"github.com/ormasoftchile/wizard/pkg/governance"
	"github.com/ormasoftchile/wizard/pkg/schema"
)

// CompileOption configures Compile and LoadFile.
type CompileOption func(*compileConfig)

type compileConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger that receives expression evaluation failures.
// Without it they are discarded.
func WithLogger(l *slog.Logger) CompileOption {
	return func(c *compileConfig) { c.logger = l }
}

// Compile turns a decoded survey document into a registry. Condition and
// validate expressions are compiled up front; at run time an expression
// that fails to evaluate counts as false and is logged at debug level.
func Compile(s *schema.Survey, opts ...CompileOption) (*Registry, error) {
	var cc compileConfig
	for _, o := range opts {
		o(&cc)
	}
	if cc.logger == nil {
		cc.logger = slog.New(slog.DiscardHandler)
	}
	if s == nil {
		return nil, fmt.Errorf("compile survey: %w: nil survey", ErrInvalidRegistry)
	}

	steps := make([]Descriptor, 0, len(s.Steps))
	for i, st := range s.Steps {
		d := Descriptor{
			ID:                st.ID,
			Kind:              Kind(st.Kind),
			Prompt:            st.Prompt,
			Subtext:           st.Subtext,
			Section:           st.Section,
			AnswerKey:         st.AnswerKey,
			ValidationMessage: st.ValidationMessage,
			AutoAdvance:       st.AutoAdvance,
			ConsentAnswerKey:  st.ConsentAnswerKey,
			ConsentText:       st.ConsentText,
			Placeholder:       st.Placeholder,
			ButtonText:        st.ButtonText,
			InputType:         st.InputType,
			Columns:           st.Columns,
		}
		for _, o := range st.Options {
			d.Options = append(d.Options, Option{ID: o.ID, Label: o.Label, Exclusive: o.Exclusive})
		}
		if st.AutoAdvanceDelayMs != nil {
			d.AutoAdvanceDelay = time.Duration(*st.AutoAdvanceDelayMs) * time.Millisecond
		}

		if st.Condition != "" {
			p, err := eval.Compile(st.Condition)
			if err != nil {
				return nil, fmt.Errorf("compile survey: %w: steps[%d] (%s) condition: %w", ErrInvalidRegistry, i, st.ID, err)
			}
			d.Condition = conditionFunc(cc.logger, st.ID, p)
		}
		if st.Validate != "" {
			p, err := eval.Compile(st.Validate)
			if err != nil {
				return nil, fmt.Errorf("compile survey: %w: steps[%d] (%s) validate: %w", ErrInvalidRegistry, i, st.ID, err)
			}
			d.Validate = validatorFunc(cc.logger, st.ID, p)
		}
		steps = append(steps, d)
	}

	meta := Meta{
		Name:         s.Meta.Name,
		Title:        s.Meta.Title,
		Description:  s.Meta.Description,
		LoadingDelay: time.Duration(s.Meta.LoadingDelayMs) * time.Millisecond,
		SelectDelay:  time.Duration(s.Meta.SelectDelayMs) * time.Millisecond,
	}
	for _, sec := range s.Meta.Sections {
		meta.Sections = append(meta.Sections, Section{ID: sec.ID, Title: sec.Title})
	}
	rules, err := governance.CompileRedactionRules(s.Meta.Redact)
	if err != nil {
		return nil, fmt.Errorf("compile survey: %w: redact: %w", ErrInvalidRegistry, err)
	}
	meta.Redact = governance.Redactor(rules)
	return NewRegistry(steps, WithMeta(meta))
}

// LoadFile reads, validates and compiles a survey file.
func LoadFile(path string, opts ...CompileOption) (*Registry, error) {
	s, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity == "error" {
				return nil, fmt.Errorf("%s: %w", path, e)
			}
		}
	}
	return Compile(s, opts...)
}

func conditionFunc(log *slog.Logger, stepID string, p *eval.Predicate) func(map[string]any) bool {
	return func(answers map[string]any) bool {
		ok, err := p.Eval(eval.ConditionEnv(answers))
		if err != nil {
			log.Debug("condition evaluation failed", "step", stepID, "error", err)
			return false
		}
		return ok
	}
}

func validatorFunc(log *slog.Logger, stepID string, p *eval.Predicate) func(any, map[string]any) bool {
	return func(value any, answers map[string]any) bool {
		ok, err := p.Eval(eval.ValidatorEnv(value, answers))
		if err != nil {
			log.Debug("validator evaluation failed", "step", stepID, "error", err)
			return false
		}
		return ok
	}
}
