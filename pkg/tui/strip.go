package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ormasoftchile/wizard/pkg/engine"
)

// sectionStrip renders the section names with their viewed state.
func sectionStrip(sections []engine.Section, current string, viewed []string) string {
	if len(sections) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		title := s.Title
		if title == "" {
			title = s.ID
		}
		switch {
		case s.ID == current:
			parts = append(parts, sectionCurrent.Render(GlyphCurrent+" "+title))
		case slices.Contains(viewed, s.ID):
			parts = append(parts, sectionViewed.Render(GlyphViewed+" "+title))
		default:
			parts = append(parts, sectionPending.Render(GlyphPending+" "+title))
		}
	}
	return strings.Join(parts, "  ")
}

// progressBar renders position/total as a bar. Steps outside the progress
// subset render nothing.
func progressBar(p engine.Progress, width int) string {
	if p.Position == 0 || p.Total == 0 {
		return ""
	}
	label := fmt.Sprintf(" %d/%d", p.Position, p.Total)
	barWidth := max(10, width-len(label))
	filled := barWidth * p.Position / p.Total
	return progressFilled.Render(strings.Repeat("━", filled)) +
		progressEmpty.Render(strings.Repeat("─", barWidth-filled)) +
		label
}
