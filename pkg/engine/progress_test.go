package engine

import "testing"

func TestProgress_Subset(t *testing.T) {
	reg := mustRegistry(t, testSteps())
	if reg.ProgressTotal() != 4 {
		t.Fatalf("ProgressTotal() = %d, want 4 (age, goals, sluggish, email)", reg.ProgressTotal())
	}

	want := map[string]int{
		"welcome":  0,
		"age":      1,
		"header":   0,
		"goals":    2,
		"sluggish": 3,
		"email":    4,
		"loading":  0,
		"results":  0,
	}
	for i := 0; i < reg.Len(); i++ {
		d := reg.Get(i)
		if got := reg.Position(d); got != want[d.ID] {
			t.Errorf("Position(%s) = %d, want %d", d.ID, got, want[d.ID])
		}
	}
}

func TestProgress_UnknownStep(t *testing.T) {
	reg := mustRegistry(t, testSteps())
	if got := reg.Position(Descriptor{ID: "ghost", Kind: KindShortText}); got != 0 {
		t.Errorf("Position(ghost) = %d, want 0", got)
	}
}

func TestProgress_MonotonicForward(t *testing.T) {
	reg := mustRegistry(t, testSteps())
	for _, answers := range []map[string]any{
		{"goals": []string{"sleep"}},
		{"goals": []string{"focus"}},
	} {
		last := 0
		i := 0
		for {
			d := reg.Get(i)
			if countsTowardProgress(d.Kind) {
				pos := reg.Position(d)
				if pos < last {
					t.Errorf("position dropped from %d to %d at %s", last, pos, d.ID)
				}
				last = pos
			}
			next, ok := FindEligible(reg, answers, i, +1)
			if !ok {
				break
			}
			i = next
		}
	}
}

func TestProgress_Pair(t *testing.T) {
	reg := mustRegistry(t, testSteps())
	p := reg.Progress(reg.Get(5))
	if p != (Progress{Position: 4, Total: 4}) {
		t.Errorf("Progress(email) = %+v", p)
	}
}
