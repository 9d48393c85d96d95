// Package diagram renders process graphs as Mermaid flowcharts, for sharing
// a credentialing flow outside the editor canvas.
package diagram

import (
	"fmt"
	"strings"

	"github.com/credativa/procflow/pkg/schema"
)

// RenderMermaid renders a process graph as a Mermaid flowchart string.
// Step shapes follow kind (start/terminal circles, condition diamond, loop
// subroutine) and branch edges carry their resolved labels and colors, so
// the export matches what the editor canvas shows.
func RenderMermaid(g *schema.ProcessGraph) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if g.Name != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", g.Name))
	}

	for i := range g.Steps {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidStepDef(&g.Steps[i])))
	}

	for i := range g.Connections {
		c := &g.Connections[i]
		label := ""
		if c.Label != "" {
			label = fmt.Sprintf("|%q|", c.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(c.SourceStepID), label, mermaidSafeID(c.TargetStepID)))
	}

	// Branch edges keep their canvas colors; linkStyle indexes follow
	// connection order.
	for i := range g.Connections {
		color := g.Connections[i].Style.Color
		if color == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("    linkStyle %d stroke:%s\n", i, color))
	}

	return b.String()
}

// mermaidStepDef returns a Mermaid node definition with the shape for the
// step's kind.
func mermaidStepDef(s *schema.Step) string {
	id := mermaidSafeID(s.ID)
	label := firstLine(s.Label)
	if label == "" {
		label = string(s.Kind)
	}

	switch s.Kind {
	case schema.StepKindStart, schema.StepKindTerminal:
		return fmt.Sprintf("%s((%q))", id, label)
	case schema.StepKindCondition:
		return fmt.Sprintf("%s{%q}", id, label)
	case schema.StepKindLoop:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case schema.StepKindWebhook, schema.StepKindHTTPCall:
		return fmt.Sprintf("%s([%q])", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a step ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
