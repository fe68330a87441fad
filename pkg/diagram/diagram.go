// Package diagram generates visual diagrams from parsed surveys.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/wizard/pkg/schema"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a parsed survey.
func Generate(s *schema.Survey, format Format) (string, error) {
	if s == nil {
		return "", fmt.Errorf("nil survey")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(s), nil
	case FormatASCII:
		return generateASCII(s), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(s *schema.Survey) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	steps := collectSteps(s)
	if len(steps) == 0 {
		return b.String()
	}

	b.WriteString("    START([Start]) --> " + safeID(steps[0].id) + "\n")

	// Node definitions, grouped into one subgraph per run of a section.
	titles := sectionTitles(s)
	for i := 0; i < len(steps); {
		sec := steps[i].section
		if sec == "" {
			b.WriteString("    " + nodeDefinition(steps[i]) + "\n")
			i++
			continue
		}
		title := titles[sec]
		if title == "" {
			title = sec
		}
		fmt.Fprintf(&b, "    subgraph %s [\"%s\"]\n", safeID("section_"+sec), escMermaid(title))
		for ; i < len(steps) && steps[i].section == sec; i++ {
			b.WriteString("        " + nodeDefinition(steps[i]) + "\n")
		}
		b.WriteString("    end\n")
	}

	// Edges. A conditional step is entered on its condition; the dashed
	// edge is the path taken when it does not hold.
	for i := 0; i < len(steps)-1; i++ {
		from, to := steps[i], steps[i+1]
		switch {
		case from.kind == schema.KindLoading:
			fmt.Fprintf(&b, "    %s -->|\"after %s\"| %s\n", safeID(from.id), from.delay, safeID(to.id))
		case to.condition != "":
			fmt.Fprintf(&b, "    %s -->|\"%s\"| %s\n", safeID(from.id), escMermaid(truncate(to.condition, 30)), safeID(to.id))
		default:
			fmt.Fprintf(&b, "    %s --> %s\n", safeID(from.id), safeID(to.id))
		}
		if to.condition != "" {
			if skip := nextUnconditional(steps, i+1); skip >= 0 {
				fmt.Fprintf(&b, "    %s -.->|\"skip\"| %s\n", safeID(from.id), safeID(steps[skip].id))
			}
		}
	}

	for _, st := range steps {
		if style := kindStyle(st.kind); style != "" {
			fmt.Fprintf(&b, "    style %s %s\n", safeID(st.id), style)
		}
	}

	return b.String()
}

// nextUnconditional returns the index of the first step after i that has
// no condition, or -1.
func nextUnconditional(steps []diagramStep, i int) int {
	for j := i + 1; j < len(steps); j++ {
		if steps[j].condition == "" {
			return j
		}
	}
	return -1
}

func kindStyle(kind string) string {
	switch kind {
	case schema.KindResults:
		return "fill:#0d6,stroke:#0a5,color:#fff"
	case schema.KindLoading:
		return "fill:#07a,stroke:#058,color:#fff"
	case schema.KindEmail:
		return "fill:#1a3a4a,stroke:#0af"
	default:
		return ""
	}
}

// --- ASCII ---

func generateASCII(s *schema.Survey) string {
	var b strings.Builder

	name := s.Meta.Title
	if name == "" {
		name = s.Meta.Name
	}
	if name == "" {
		name = "Survey"
	}

	steps := collectSteps(s)
	if len(steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Compute uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(steps, name)
	connCol := indent + 1 + boxWidth/2 // +1 accounts for the └/┌ border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	titles := sectionTitles(s)
	current := ""
	for i, st := range steps {
		if st.section != "" && st.section != current {
			title := titles[st.section]
			if title == "" {
				title = st.section
			}
			b.WriteString(pad + "§ " + title + "\n")
			b.WriteString(connPad + "│\n")
		}
		current = st.section

		writeASCIIStep(&b, st, indent, boxWidth)
		if i < len(steps)-1 {
			b.WriteString(connPad + "│\n")
		}
	}

	return b.String()
}

// computeUniformBoxWidth returns the widest interior width needed
// across all steps and the header name.
func computeUniformBoxWidth(steps []diagramStep, name string) int {
	w := 22

	if nameWidth := runewidth.StringWidth(name) + 4; nameWidth > w {
		w = nameWidth
	}
	for _, st := range steps {
		for _, line := range boxLines(st) {
			if lw := runewidth.StringWidth(line); lw > w {
				w = lw
			}
		}
	}
	return w
}

// boxLines returns the interior lines of a step box.
func boxLines(st diagramStep) []string {
	lines := []string{fmt.Sprintf(" %s %s ", kindIcon(st.kind), st.label())}
	if st.condition != "" {
		lines = append(lines, " ◇ if "+truncate(st.condition, 40)+" ")
	}
	if st.answerKey != "" {
		lines = append(lines, " → "+st.answerKey+" ")
	}
	if st.delay != "" {
		lines = append(lines, " ⏱ "+st.delay+" ")
	}
	return lines
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func writeASCIIStep(b *strings.Builder, st diagramStep, indent, boxWidth int) {
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	for _, line := range boxLines(st) {
		lw := runewidth.StringWidth(line)
		b.WriteString(pad + "│" + line + strings.Repeat(" ", boxWidth-lw) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func kindIcon(kind string) string {
	switch kind {
	case schema.KindWelcome:
		return "▶"
	case schema.KindShortText:
		return "✎"
	case schema.KindInfo:
		return "i"
	case schema.KindSectionHeader:
		return "§"
	case schema.KindSingleChoice, schema.KindBinaryChoice:
		return "◉"
	case schema.KindMultiChoice, schema.KindCheckboxGroup:
		return "☑"
	case schema.KindEmail:
		return "@"
	case schema.KindLoading:
		return "…"
	case schema.KindResults:
		return "★"
	default:
		return "○"
	}
}

// --- step collection ---

type diagramStep struct {
	id        string
	kind      string
	prompt    string
	section   string
	answerKey string
	condition string
	delay     string
}

func (d diagramStep) label() string {
	if d.prompt == "" {
		return d.id
	}
	return d.id + ": " + truncate(d.prompt, 40)
}

// collectSteps flattens the survey into diagram steps, resolving the
// section each step belongs to the same way the section strip does.
func collectSteps(s *schema.Survey) []diagramStep {
	var result []diagramStep
	section := ""
	for _, st := range s.Steps {
		if st.Section != "" {
			section = st.Section
		}
		ds := diagramStep{
			id:        st.ID,
			kind:      st.Kind,
			prompt:    strings.TrimSpace(st.Prompt),
			section:   section,
			answerKey: st.AnswerKey,
			condition: st.Condition,
		}
		switch st.Kind {
		case schema.KindWelcome, schema.KindLoading, schema.KindResults:
			ds.section = ""
		}
		if st.AutoAdvanceDelayMs != nil {
			ds.delay = fmt.Sprintf("%dms", *st.AutoAdvanceDelayMs)
		} else if st.Kind == schema.KindLoading {
			ms := s.Meta.LoadingDelayMs
			if ms == 0 {
				ms = 2000
			}
			ds.delay = fmt.Sprintf("%dms", ms)
		}
		result = append(result, ds)
	}
	return result
}

func sectionTitles(s *schema.Survey) map[string]string {
	titles := make(map[string]string, len(s.Meta.Sections))
	for _, sec := range s.Meta.Sections {
		titles[sec.ID] = sec.Title
	}
	return titles
}

// --- string helpers ---

func nodeDefinition(st diagramStep) string {
	id := safeID(st.id)
	text := escMermaid(st.label())
	if st.answerKey != "" {
		text += "<br/>→ " + escMermaid(st.answerKey)
	}

	switch st.kind {
	case schema.KindWelcome, schema.KindResults:
		return fmt.Sprintf(`%s(["%s"])`, id, text)
	case schema.KindSingleChoice, schema.KindMultiChoice, schema.KindCheckboxGroup, schema.KindBinaryChoice:
		return fmt.Sprintf(`%s{{"%s"}}`, id, text)
	case schema.KindInfo, schema.KindSectionHeader:
		return fmt.Sprintf(`%s[/"%s"/]`, id, text)
	case schema.KindLoading:
		return fmt.Sprintf(`%s(("%s"))`, id, text)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, text)
	}
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}
