package validation

import (
	"fmt"
	"strings"

	graphlib "github.com/dominikbraun/graph"

	"github.com/credativa/procflow/pkg/schema"
)

// validateTopology performs whole-graph analysis: start-step multiplicity,
// terminal existence, orphan steps, and start-to-terminal reachability.
// Reachability requires only that *some* terminal is reachable; unreachable
// side branches surface through the orphan check, not here.
func validateTopology(g *schema.ProcessGraph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	var starts []*schema.Step
	terminals := 0
	for i := range g.Steps {
		switch g.Steps[i].Kind {
		case schema.StepKindStart:
			starts = append(starts, &g.Steps[i])
		case schema.StepKindTerminal:
			terminals++
		}
	}

	// Check 2: exactly one start step.
	switch len(starts) {
	case 1:
	case 0:
		result.AddError(schema.ErrCodeValidation, "graph has no start step")
	default:
		labels := make([]string, len(starts))
		for i, s := range starts {
			labels[i] = stepName(s)
		}
		result.AddError(schema.ErrCodeValidation,
			fmt.Sprintf("graph has %d start steps (%s); exactly one is required",
				len(starts), strings.Join(labels, ", ")))
	}

	// Check 4: at least one terminal step.
	if terminals == 0 {
		result.AddError(schema.ErrCodeValidation, "graph has no terminal step")
	}

	// Check 5: every non-start step must appear as a connection endpoint.
	endpoints := make(map[string]struct{}, len(g.Connections)*2)
	for i := range g.Connections {
		endpoints[g.Connections[i].SourceStepID] = struct{}{}
		endpoints[g.Connections[i].TargetStepID] = struct{}{}
	}
	for i := range g.Steps {
		s := &g.Steps[i]
		if s.Kind == schema.StepKindStart {
			continue
		}
		if _, ok := endpoints[s.ID]; !ok {
			result.AddStepError(s.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %q is not connected to the flow", stepName(s)))
		}
	}

	// Check 6: a forward traversal from the start step must reach a terminal
	// step. Skipped when checks 2 or 4 already failed — the traversal would
	// be meaningless.
	if len(starts) == 1 && terminals > 0 {
		if !terminalReachable(g, starts[0].ID) {
			result.AddStepError(starts[0].ID, schema.ErrCodeValidation,
				"no terminal step is reachable from the start step")
		}
	}

	return result
}

// terminalReachable runs a cycle-safe depth-first traversal from the start
// step and reports whether any terminal step is visited.
func terminalReachable(g *schema.ProcessGraph, startID string) bool {
	kinds := make(map[string]schema.StepKind, len(g.Steps))
	dg := graphlib.New(graphlib.StringHash, graphlib.Directed())
	for i := range g.Steps {
		kinds[g.Steps[i].ID] = g.Steps[i].Kind
		_ = dg.AddVertex(g.Steps[i].ID)
	}
	// Parallel branches (yes/no to the same target) collapse to one edge;
	// reachability is unaffected.
	for i := range g.Connections {
		_ = dg.AddEdge(g.Connections[i].SourceStepID, g.Connections[i].TargetStepID)
	}

	reached := false
	_ = graphlib.DFS(dg, startID, func(id string) bool {
		if kinds[id] == schema.StepKindTerminal {
			reached = true
			return true // stop traversal
		}
		return false
	})
	return reached
}

// stepName returns the step's label, falling back to its id for messages.
func stepName(s *schema.Step) string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}
