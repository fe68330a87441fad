package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrInvalidRegistry wraps every registry construction failure.
	ErrInvalidRegistry = errors.New("invalid step registry")
	// ErrMissingTerminal reports a registry without its loading or results step.
	ErrMissingTerminal = errors.New("missing terminal step")
)

// Default timings applied when neither the survey nor the session config sets them.
const (
	DefaultLoadingDelay  = 2000 * time.Millisecond
	DefaultSelectDelay   = 250 * time.Millisecond
	DefaultDebounceDelay = 800 * time.Millisecond
)

// Meta carries survey-level metadata and timing defaults.
type Meta struct {
	Name         string
	Title        string
	Description  string
	Sections     []Section
	LoadingDelay time.Duration
	SelectDelay  time.Duration

	// Redact rewrites answer text recorded in traces. Nil records answers as given.
	Redact func(string) string
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*Registry)

// WithMeta attaches survey metadata to the registry.
func WithMeta(m Meta) RegistryOption {
	return func(r *Registry) {
		m.Sections = slices.Clone(m.Sections)
		r.meta = m
	}
}

// Registry is an ordered, immutable catalog of step descriptors. Registry
// order is traversal order.
type Registry struct {
	steps    []Descriptor
	byID     map[string]int
	keyKinds map[string]ValueKind
	progress map[string]int
	meta     Meta
}

// defaultBinaryOptions are used by binary-choice steps that declare none.
var defaultBinaryOptions = []Option{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}}

// NewRegistry validates steps and builds a registry from a copy of them.
// All violations are reported together; each wraps ErrInvalidRegistry, and
// a missing loading or results step additionally wraps ErrMissingTerminal.
func NewRegistry(steps []Descriptor, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		steps:    make([]Descriptor, len(steps)),
		byID:     make(map[string]int, len(steps)),
		keyKinds: make(map[string]ValueKind),
	}
	for _, opt := range opts {
		opt(r)
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidRegistry, fmt.Sprintf(format, args...)))
	}
	claim := func(stepID, key string, kind ValueKind) {
		if prev, ok := r.keyKinds[key]; ok && prev != kind {
			fail("step %q: answer key %q holds %s values but was declared %s", stepID, key, kind, prev)
			return
		}
		r.keyKinds[key] = kind
	}

	for i, d := range steps {
		d.Options = slices.Clone(d.Options)
		if d.Kind == KindBinaryChoice && len(d.Options) == 0 {
			d.Options = slices.Clone(defaultBinaryOptions)
		}
		r.steps[i] = d

		if d.ID == "" {
			fail("steps[%d]: empty id", i)
		} else if prev, dup := r.byID[d.ID]; dup {
			fail("step %q: duplicate id (first at index %d)", d.ID, prev)
		} else {
			r.byID[d.ID] = i
		}
		if !d.Kind.Valid() {
			fail("step %q: unknown kind %q", d.ID, d.Kind)
			continue
		}

		if d.Kind.Answers() != (d.AnswerKey != "") {
			if d.AnswerKey == "" {
				fail("step %q: %s step needs an answer key", d.ID, d.Kind)
			} else {
				fail("step %q: %s step cannot carry an answer key", d.ID, d.Kind)
			}
		}
		if d.Kind.Choice() && len(d.Options) == 0 {
			fail("step %q: %s step needs options", d.ID, d.Kind)
		}
		if !d.Kind.Choice() && len(d.Options) > 0 {
			fail("step %q: %s step cannot carry options", d.ID, d.Kind)
		}
		seen := make(map[string]bool, len(d.Options))
		for _, o := range d.Options {
			if o.ID == "" || seen[o.ID] {
				fail("step %q: empty or duplicate option id %q", d.ID, o.ID)
			}
			seen[o.ID] = true
		}

		if d.AutoAdvance {
			single := (d.Kind == KindSingleChoice || d.Kind == KindBinaryChoice) && len(d.Options) > 0
			if !single && d.Kind != KindShortText {
				fail("step %q: auto-advance requires a single-selection or short-text step", d.ID)
			}
		}
		if d.AutoAdvanceDelay < 0 {
			fail("step %q: negative auto-advance delay", d.ID)
		}
		if d.ConsentAnswerKey != "" {
			if d.Kind != KindEmail {
				fail("step %q: consent is only supported on email steps", d.ID)
			}
			if d.ConsentAnswerKey == d.AnswerKey {
				fail("step %q: consent key must differ from the answer key", d.ID)
			}
			claim(d.ID, d.ConsentAnswerKey, ValueBool)
		}
		if d.AnswerKey != "" && d.Kind.Answers() {
			kind := ValueScalar
			if d.Kind.Multi() {
				kind = ValueSet
			}
			claim(d.ID, d.AnswerKey, kind)
		}
	}

	for _, k := range []Kind{KindLoading, KindResults} {
		switch n := r.countKind(k); {
		case n == 0:
			errs = append(errs, fmt.Errorf("%w: %w: no %s step", ErrInvalidRegistry, ErrMissingTerminal, k))
		case n > 1:
			fail("%d %s steps, want exactly one", n, k)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	r.buildProgress()
	return r, nil
}

func (r *Registry) countKind(k Kind) int {
	n := 0
	for _, d := range r.steps {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Len returns the number of steps.
func (r *Registry) Len() int { return len(r.steps) }

// Get returns a copy of the descriptor at index i. It panics if i is out of range.
func (r *Registry) Get(i int) Descriptor { return r.steps[i].clone() }

// Steps returns a copy of every descriptor in traversal order.
func (r *Registry) Steps() []Descriptor {
	out := make([]Descriptor, len(r.steps))
	for i, d := range r.steps {
		out[i] = d.clone()
	}
	return out
}

// IndexOf returns the index of the step with the given ID.
func (r *Registry) IndexOf(id string) (int, bool) {
	i, ok := r.byID[id]
	return i, ok
}

// IndexOfKind returns the index of the first step of kind k.
func (r *Registry) IndexOfKind(k Kind) (int, bool) {
	for i, d := range r.steps {
		if d.Kind == k {
			return i, true
		}
	}
	return 0, false
}

// KeyKind returns the value kind an answer key holds.
func (r *Registry) KeyKind(key string) (ValueKind, bool) {
	k, ok := r.keyKinds[key]
	return k, ok
}

// Meta returns the survey metadata.
func (r *Registry) Meta() Meta { return r.meta }

// SectionOf returns the section active at index: the nearest section
// declared at or before it. Welcome, loading and results belong to none.
func (r *Registry) SectionOf(index int) string {
	switch r.steps[index].Kind {
	case KindWelcome, KindLoading, KindResults:
		return ""
	}
	for i := index; i >= 0; i-- {
		if s := r.steps[i].Section; s != "" {
			return s
		}
	}
	return ""
}
