// Package schema defines the Go struct types for the survey YAML schema
// and provides strict YAML parsing.
package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// APIVersion is the only survey document version understood by this module.
const APIVersion = "survey/v0"

// Step kinds.
const (
	KindWelcome       = "welcome"
	KindShortText     = "short-text"
	KindInfo          = "info"
	KindSectionHeader = "section-header"
	KindSingleChoice  = "single-choice"
	KindMultiChoice   = "multi-choice"
	KindCheckboxGroup = "checkbox-group"
	KindBinaryChoice  = "binary-choice"
	KindEmail         = "email"
	KindLoading       = "loading"
	KindResults       = "results"
)

// Kinds lists every step kind in declaration order.
var Kinds = []string{
	KindWelcome, KindShortText, KindInfo, KindSectionHeader,
	KindSingleChoice, KindMultiChoice, KindCheckboxGroup, KindBinaryChoice,
	KindEmail, KindLoading, KindResults,
}

// Survey is the top-level document describing a questionnaire.
type Survey struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion" jsonschema:"required,enum=survey/v0"`
	Meta       Meta   `yaml:"meta"       json:"meta"       jsonschema:"required"`
	Steps      []Step `yaml:"steps"      json:"steps"      jsonschema:"required,minItems=2"`
}

// Meta contains survey metadata and timing defaults.
type Meta struct {
	Name           string    `yaml:"name"                       json:"name"        jsonschema:"required"`
	Title          string    `yaml:"title,omitempty"            json:"title,omitempty"`
	Description    string    `yaml:"description,omitempty"      json:"description,omitempty"`
	LoadingDelayMs int       `yaml:"loading_delay_ms,omitempty" json:"loading_delay_ms,omitempty" jsonschema:"minimum=0"`
	SelectDelayMs  int       `yaml:"select_delay_ms,omitempty"  json:"select_delay_ms,omitempty"  jsonschema:"minimum=0"`
	Sections       []Section `yaml:"sections,omitempty"         json:"sections,omitempty"`

	// Redact rules rewrite answer text before it reaches traces and logs.
	Redact []RedactionRule `yaml:"redact,omitempty" json:"redact,omitempty"`
}

// RedactionRule replaces every match of Pattern (RE2 syntax) with Replace.
type RedactionRule struct {
	Pattern string `yaml:"pattern"           json:"pattern"           jsonschema:"required"`
	Replace string `yaml:"replace,omitempty" json:"replace,omitempty"`
}

// Section groups consecutive steps under a heading shown in the section strip.
type Section struct {
	ID    string `yaml:"id"    json:"id"    jsonschema:"required"`
	Title string `yaml:"title" json:"title" jsonschema:"required"`
}

// Step is a single questionnaire step. Condition and Validate are expr-lang
// expressions compiled when the survey is turned into a registry.
type Step struct {
	ID                 string   `yaml:"id"                              json:"id"                              jsonschema:"required"`
	Kind               string   `yaml:"kind"                            json:"kind"                            jsonschema:"required,enum=welcome,enum=short-text,enum=info,enum=section-header,enum=single-choice,enum=multi-choice,enum=checkbox-group,enum=binary-choice,enum=email,enum=loading,enum=results"`
	Prompt             string   `yaml:"prompt,omitempty"                json:"prompt,omitempty"`
	Subtext            string   `yaml:"subtext,omitempty"               json:"subtext,omitempty"`
	Section            string   `yaml:"section,omitempty"               json:"section,omitempty"`
	AnswerKey          string   `yaml:"answer_key,omitempty"            json:"answer_key,omitempty"`
	Options            []Option `yaml:"options,omitempty"               json:"options,omitempty"`
	Validate           string   `yaml:"validate,omitempty"              json:"validate,omitempty"`
	ValidationMessage  string   `yaml:"validation_message,omitempty"    json:"validation_message,omitempty"`
	Condition          string   `yaml:"condition,omitempty"             json:"condition,omitempty"`
	AutoAdvance        bool     `yaml:"auto_advance,omitempty"          json:"auto_advance,omitempty"`
	AutoAdvanceDelayMs *int     `yaml:"auto_advance_delay_ms,omitempty" json:"auto_advance_delay_ms,omitempty" jsonschema:"minimum=0"`
	ConsentAnswerKey   string   `yaml:"consent_answer_key,omitempty"    json:"consent_answer_key,omitempty"`
	ConsentText        string   `yaml:"consent_text,omitempty"          json:"consent_text,omitempty"`
	Placeholder        string   `yaml:"placeholder,omitempty"           json:"placeholder,omitempty"`
	InputType          string   `yaml:"input_type,omitempty"            json:"input_type,omitempty" jsonschema:"enum=text,enum=number"`
	ButtonText         string   `yaml:"button_text,omitempty"           json:"button_text,omitempty"`
	Columns            int      `yaml:"columns,omitempty"               json:"columns,omitempty" jsonschema:"minimum=0,maximum=6"`
}

// Option is a single selectable option of a choice step.
type Option struct {
	ID        string `yaml:"id"                  json:"id"        jsonschema:"required"`
	Label     string `yaml:"label,omitempty"     json:"label,omitempty"`
	Exclusive bool   `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`
}

// AnswersKind reports whether steps of the given kind collect an answer.
func AnswersKind(kind string) bool {
	switch kind {
	case KindShortText, KindSingleChoice, KindMultiChoice, KindCheckboxGroup, KindBinaryChoice, KindEmail:
		return true
	}
	return false
}

// ChoiceKind reports whether steps of the given kind present options.
func ChoiceKind(kind string) bool {
	switch kind {
	case KindSingleChoice, KindMultiChoice, KindCheckboxGroup, KindBinaryChoice:
		return true
	}
	return false
}

// MultiKind reports whether steps of the given kind collect a set of options.
func MultiKind(kind string) bool {
	return kind == KindMultiChoice || kind == KindCheckboxGroup
}

// LoadFile reads and parses a survey YAML file with strict unknown-field
// rejection (yaml.v3 KnownFields). Returns the parsed Survey or an error.
func LoadFile(path string) (*Survey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open survey: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a survey from an io.Reader with strict unknown-field rejection.
func Load(r io.Reader) (*Survey, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Survey
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode survey: %w", err)
	}
	return &s, nil
}
