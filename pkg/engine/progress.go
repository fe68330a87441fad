package engine

// Progress is the position of the current step within the progress subset.
// Position is 1-based; 0 means the step is not counted.
type Progress struct {
	Position int `json:"position"`
	Total    int `json:"total"`
}

// countsTowardProgress reports whether steps of kind k belong to the progress subset.
func countsTowardProgress(k Kind) bool {
	switch k {
	case KindWelcome, KindLoading, KindResults, KindInfo, KindSectionHeader:
		return false
	}
	return true
}

// buildProgress indexes the progress subset. Conditional steps are
// included so the total does not change as answers change.
func (r *Registry) buildProgress() {
	r.progress = make(map[string]int)
	for _, d := range r.steps {
		if countsTowardProgress(d.Kind) {
			r.progress[d.ID] = len(r.progress)
		}
	}
}

// Position returns 0 for welcome, loading and results steps and for steps
// outside the subset, otherwise one plus the step's index in the subset.
func (r *Registry) Position(d Descriptor) int {
	switch d.Kind {
	case KindWelcome, KindLoading, KindResults:
		return 0
	}
	i, ok := r.progress[d.ID]
	if !ok {
		return 0
	}
	return i + 1
}

// ProgressTotal returns the size of the progress subset.
func (r *Registry) ProgressTotal() int { return len(r.progress) }

// Progress returns the position and total for d.
func (r *Registry) Progress(d Descriptor) Progress {
	return Progress{Position: r.Position(d), Total: r.ProgressTotal()}
}
