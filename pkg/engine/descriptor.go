// Package engine implements survey navigation and state: the step registry,
// the answer store, validation, eligibility scanning, progress, the
// auto-advance scheduler and the session controller that ties them together.
package engine

import (
	"slices"
	"time"
)

// Kind is the variant tag of a step.
type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindShortText     Kind = "short-text"
	KindInfo          Kind = "info"
	KindSectionHeader Kind = "section-header"
	KindSingleChoice  Kind = "single-choice"
	KindMultiChoice   Kind = "multi-choice"
	KindCheckboxGroup Kind = "checkbox-group"
	KindBinaryChoice  Kind = "binary-choice"
	KindEmail         Kind = "email"
	KindLoading       Kind = "loading"
	KindResults       Kind = "results"
)

// Valid reports whether k is one of the known step kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindWelcome, KindShortText, KindInfo, KindSectionHeader,
		KindSingleChoice, KindMultiChoice, KindCheckboxGroup, KindBinaryChoice,
		KindEmail, KindLoading, KindResults:
		return true
	}
	return false
}

// Answers reports whether steps of this kind collect an answer.
func (k Kind) Answers() bool {
	switch k {
	case KindShortText, KindSingleChoice, KindMultiChoice, KindCheckboxGroup, KindBinaryChoice, KindEmail:
		return true
	}
	return false
}

// Choice reports whether steps of this kind present options.
func (k Kind) Choice() bool {
	switch k {
	case KindSingleChoice, KindMultiChoice, KindCheckboxGroup, KindBinaryChoice:
		return true
	}
	return false
}

// Multi reports whether steps of this kind collect a set of option IDs.
func (k Kind) Multi() bool {
	return k == KindMultiChoice || k == KindCheckboxGroup
}

// Transient reports whether steps of this kind are shown briefly and carry no input.
func (k Kind) Transient() bool {
	return k == KindInfo || k == KindSectionHeader
}

// Terminal reports whether steps of this kind close the session. There is
// no way back from them.
func (k Kind) Terminal() bool {
	return k == KindLoading || k == KindResults
}

// Option is one selectable answer of a choice step.
type Option struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	Exclusive bool   `json:"exclusive,omitempty"`
}

// Descriptor describes one step. Descriptors are immutable once a Registry
// has been built from them.
type Descriptor struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Prompt  string   `json:"prompt,omitempty"`
	Subtext string   `json:"subtext,omitempty"`
	Section string   `json:"section,omitempty"`
	Options []Option `json:"options,omitempty"`

	// AnswerKey is empty for welcome, info, section-header, loading and results.
	AnswerKey string `json:"answer_key,omitempty"`

	// Validate is nil for steps that accept any answer.
	Validate          func(value any, answers map[string]any) bool `json:"-"`
	ValidationMessage string                                       `json:"validation_message,omitempty"`

	// Condition is nil for steps that are always eligible.
	Condition func(answers map[string]any) bool `json:"-"`

	AutoAdvance      bool          `json:"auto_advance,omitempty"`
	AutoAdvanceDelay time.Duration `json:"auto_advance_delay,omitempty"`

	// ConsentAnswerKey names a boolean answer that must be true before the
	// step can be left forward.
	ConsentAnswerKey string `json:"consent_answer_key,omitempty"`
	ConsentText      string `json:"consent_text,omitempty"`

	Placeholder string `json:"placeholder,omitempty"`
	ButtonText  string `json:"button_text,omitempty"`
	InputType   string `json:"input_type,omitempty"`
	Columns     int    `json:"columns,omitempty"`
}

// clone returns d with its own copy of Options.
func (d Descriptor) clone() Descriptor {
	d.Options = slices.Clone(d.Options)
	return d
}

// Option returns the option with the given ID.
func (d Descriptor) Option(id string) (Option, bool) {
	for _, o := range d.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Conditional reports whether the step has a display condition.
func (d Descriptor) Conditional() bool { return d.Condition != nil }

// Section groups steps under a heading shown in the section strip.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
