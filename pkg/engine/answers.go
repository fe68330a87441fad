package engine

import (
	"slices"
	"strconv"
	"strings"
)

// ValueKind classifies the values an answer key may hold.
type ValueKind int

const (
	ValueScalar ValueKind = iota + 1 // text or number
	ValueBool
	ValueSet
)

func (k ValueKind) String() string {
	switch k {
	case ValueScalar:
		return "scalar"
	case ValueBool:
		return "boolean"
	case ValueSet:
		return "set"
	}
	return "unknown"
}

// Value is a typed answer. The concrete types are TextValue, NumberValue,
// BoolValue and SetValue.
type Value interface {
	Kind() ValueKind
	// Any returns the plain Go value seen by conditions and validators.
	Any() any
	String() string
}

// TextValue is a free-form or single-choice answer.
type TextValue string

// NumberValue is a numeric answer.
type NumberValue float64

// BoolValue is a boolean answer, e.g. consent.
type BoolValue bool

// SetValue is an ordered set of selected option IDs.
type SetValue []string

func (TextValue) Kind() ValueKind   { return ValueScalar }
func (NumberValue) Kind() ValueKind { return ValueScalar }
func (BoolValue) Kind() ValueKind   { return ValueBool }
func (SetValue) Kind() ValueKind    { return ValueSet }

func (v TextValue) Any() any   { return string(v) }
func (v NumberValue) Any() any { return float64(v) }
func (v BoolValue) Any() any   { return bool(v) }
func (v SetValue) Any() any    { return slices.Clone([]string(v)) }

func (v TextValue) String() string   { return string(v) }
func (v NumberValue) String() string { return strconv.FormatFloat(float64(v), 'f', -1, 64) }
func (v BoolValue) String() string   { return strconv.FormatBool(bool(v)) }
func (v SetValue) String() string    { return "[" + strings.Join(v, ", ") + "]" }

// Contains reports whether id is selected.
func (v SetValue) Contains(id string) bool { return slices.Contains(v, id) }

// Store maps answer keys to values. It performs no validation and is not
// safe for concurrent use; a Session owns exactly one Store.
type Store struct {
	values map[string]Value
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]Value)}
}

// SetScalar replaces the value under key.
func (s *Store) SetScalar(key string, v Value) {
	s.values[key] = v
}

// SetBoolean sets a boolean answer.
func (s *Store) SetBoolean(key string, b bool) {
	s.values[key] = BoolValue(b)
}

// ToggleBoolean flips a boolean answer (absent counts as false) and returns the new value.
func (s *Store) ToggleBoolean(key string) bool {
	cur, _ := s.values[key].(BoolValue)
	s.values[key] = !cur
	return bool(!cur)
}

// ToggleMulti toggles optionID in the set under key, honouring exclusivity
// as declared by options. An exclusive option replaces the whole set when
// selected and empties it when deselected. A non-exclusive option first
// removes every selected exclusive option, then toggles its own membership.
func (s *Store) ToggleMulti(key, optionID string, options []Option) SetValue {
	cur, _ := s.values[key].(SetValue)

	exclusive := make(map[string]bool)
	for _, o := range options {
		if o.Exclusive {
			exclusive[o.ID] = true
		}
	}

	var next SetValue
	if exclusive[optionID] {
		if cur.Contains(optionID) {
			next = SetValue{}
		} else {
			next = SetValue{optionID}
		}
	} else {
		next = make(SetValue, 0, len(cur)+1)
		for _, id := range cur {
			if !exclusive[id] {
				next = append(next, id)
			}
		}
		if i := slices.Index(next, optionID); i >= 0 {
			next = slices.Delete(next, i, i+1)
		} else {
			next = append(next, optionID)
		}
	}

	s.values[key] = next
	return slices.Clone(next)
}

// Get returns the value under key.
func (s *Store) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of answered keys.
func (s *Store) Len() int { return len(s.values) }

// Snapshot returns a copy of the store as plain Go values, suitable for
// predicates and outbound state.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v.Any()
	}
	return out
}
