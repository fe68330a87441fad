package engine

// Direction is the direction of the last cursor move.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// MarshalText encodes the direction as "forward" or "backward".
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FindEligible scans the registry from from+step in the direction of step
// (+1 or -1) and returns the first index whose condition is absent or holds
// against answers. It reports false when the scan leaves the registry.
// Conditions are evaluated on every call.
func FindEligible(reg *Registry, answers map[string]any, from, step int) (int, bool) {
	if step == 0 {
		return 0, false
	}
	for i := from + step; i >= 0 && i < reg.Len(); i += step {
		d := reg.steps[i]
		if d.Condition == nil || d.Condition(answers) {
			return i, true
		}
	}
	return 0, false
}

// CanGoBack reports whether an eligible step exists before index.
func CanGoBack(reg *Registry, answers map[string]any, index int) bool {
	_, ok := FindEligible(reg, answers, index, -1)
	return ok
}
