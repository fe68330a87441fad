package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var dietOptions = []Option{
	{ID: "dr_dairy"},
	{ID: "dr_gluten"},
	{ID: "dr_paleo"},
	{ID: "dr_none", Exclusive: true},
}

func setOf(t *testing.T, s *Store, key string) SetValue {
	t.Helper()
	v, ok := s.Get(key)
	if !ok {
		return nil
	}
	set, ok := v.(SetValue)
	if !ok {
		t.Fatalf("%s holds %T, want SetValue", key, v)
	}
	return set
}

func TestStore_SetScalarReplaces(t *testing.T) {
	s := NewStore()
	s.SetScalar("age", TextValue("5"))
	s.SetScalar("age", TextValue("25"))
	v, ok := s.Get("age")
	if !ok || v != TextValue("25") {
		t.Errorf("age = %v, %v; want 25", v, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_ToggleBoolean(t *testing.T) {
	s := NewStore()
	if got := s.ToggleBoolean("consent"); !got {
		t.Error("first toggle of absent key should yield true")
	}
	if got := s.ToggleBoolean("consent"); got {
		t.Error("second toggle should yield false")
	}
	s.SetBoolean("consent", true)
	if v, _ := s.Get("consent"); v != BoolValue(true) {
		t.Errorf("consent = %v, want true", v)
	}
}

func TestStore_ToggleMulti_DoubleToggleIsIdentity(t *testing.T) {
	starts := []SetValue{nil, {}, {"dr_dairy"}, {"dr_gluten", "dr_paleo"}}
	for _, start := range starts {
		for _, opt := range []string{"dr_dairy", "dr_gluten", "dr_paleo"} {
			s := NewStore()
			if start != nil {
				s.values["diet"] = start
			}
			s.ToggleMulti("diet", opt, dietOptions)
			s.ToggleMulti("diet", opt, dietOptions)
			got := setOf(t, s, "diet")
			want := start
			if want == nil {
				want = SetValue{}
			}
			if diff := cmp.Diff([]string(want), []string(got)); diff != "" && !(len(want) == 0 && len(got) == 0) {
				t.Errorf("start=%v toggle %s twice: (-want +got)\n%s", start, opt, diff)
			}
		}
	}
}

func TestStore_ToggleMulti_Exclusive(t *testing.T) {
	s := NewStore()
	s.ToggleMulti("diet", "dr_dairy", dietOptions)
	s.ToggleMulti("diet", "dr_gluten", dietOptions)

	got := s.ToggleMulti("diet", "dr_none", dietOptions)
	if diff := cmp.Diff(SetValue{"dr_none"}, got); diff != "" {
		t.Errorf("selecting exclusive (-want +got)\n%s", diff)
	}

	got = s.ToggleMulti("diet", "dr_none", dietOptions)
	if len(got) != 0 {
		t.Errorf("deselecting exclusive = %v, want empty", got)
	}
}

func TestStore_ToggleMulti_NonExclusiveStripsExclusive(t *testing.T) {
	s := NewStore()
	s.ToggleMulti("diet", "dr_none", dietOptions)
	got := s.ToggleMulti("diet", "dr_paleo", dietOptions)
	if diff := cmp.Diff(SetValue{"dr_paleo"}, got); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func TestStore_ToggleMulti_PreservesOrder(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"dr_paleo", "dr_dairy", "dr_gluten"} {
		s.ToggleMulti("diet", id, dietOptions)
	}
	s.ToggleMulti("diet", "dr_dairy", dietOptions)
	if diff := cmp.Diff(SetValue{"dr_paleo", "dr_gluten"}, setOf(t, s, "diet")); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.ToggleMulti("diet", "dr_dairy", dietOptions)
	s.SetScalar("age", NumberValue(25))

	snap := s.Snapshot()
	snap["diet"].([]string)[0] = "mutated"
	snap["age"] = "mutated"

	if setOf(t, s, "diet")[0] != "dr_dairy" {
		t.Error("store set changed through snapshot")
	}
	if v, _ := s.Get("age"); v != NumberValue(25) {
		t.Errorf("age = %v, want 25", v)
	}
}

func TestValue_Any(t *testing.T) {
	tests := []struct {
		v    Value
		want any
		kind ValueKind
	}{
		{TextValue("x"), "x", ValueScalar},
		{NumberValue(2.5), 2.5, ValueScalar},
		{BoolValue(true), true, ValueBool},
	}
	for _, tt := range tests {
		if tt.v.Any() != tt.want {
			t.Errorf("%T.Any() = %v, want %v", tt.v, tt.v.Any(), tt.want)
		}
		if tt.v.Kind() != tt.kind {
			t.Errorf("%T.Kind() = %v, want %v", tt.v, tt.v.Kind(), tt.kind)
		}
	}
	if got := (SetValue{"a", "b"}).String(); got != "[a, b]" {
		t.Errorf("SetValue.String() = %q", got)
	}
	if got := NumberValue(25).String(); got != "25" {
		t.Errorf("NumberValue.String() = %q", got)
	}
}
