package validation

import (
	"github.com/robfig/cron/v3"

	"github.com/credativa/procflow/internal/expressions"
	"github.com/credativa/procflow/pkg/schema"
)

// Validator is the correctness gate a process graph must pass before
// submission to the execution engine.
type Validator interface {
	Validate(g *schema.ProcessGraph) (*schema.ValidationResult, error)
	ValidateSubmission(input map[string]any, formSchema []byte) error
}

// GraphValidator inspects a full process graph and produces an ordered list
// of findings. Malformed graphs are the expected case and are reported as
// findings, never as errors; the error return is reserved for hard faults —
// storage records that violate invariants the graph model guarantees
// (dangling connection endpoints, duplicate ids). Those indicate a model or
// storage bug, not an authoring mistake.
type GraphValidator struct {
	jsonSchema *JSONSchemaValidator
	cronParser cron.Parser

	celEngine  *expressions.CELEngine
	exprEngine *expressions.ExprEngine
	jqEngine   *expressions.GoJQEngine
}

// NewGraphValidator creates a GraphValidator with all expression engines and
// the storage-record schema pre-compiled.
func NewGraphValidator() (*GraphValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	celEng, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &GraphValidator{
		jsonSchema: jsv,
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		celEngine:  celEng,
		exprEngine: expressions.NewExprEngine(),
		jqEngine:   expressions.NewGoJQEngine(),
	}, nil
}

// Validate runs the full pipeline. Checks, in order:
//
//  1. non-empty graph
//  2. exactly one start step
//  3. start trigger completeness
//  4. at least one terminal step
//  5. no orphan steps
//  6. a terminal step is reachable from the start step
//  7. per-step configuration completeness (registry predicate, branch
//     exclusivity, expression syntax)
//
// Structural schema violations on the record shape short-circuit the rest;
// integrity violations (dangling endpoints, duplicate ids) abort with an
// INTERNAL_FAULT error.
func (gv *GraphValidator) Validate(g *schema.ProcessGraph) (*schema.ValidationResult, error) {
	if g == nil {
		return nil, schema.NewError(schema.ErrCodeInternalFault, "process graph is nil")
	}

	result := validateStructural(gv.jsonSchema, g)
	if !result.Valid() {
		return result, nil
	}

	if err := checkIntegrity(g); err != nil {
		return nil, err
	}

	// Check 1: a graph with zero steps has exactly this one problem.
	if len(g.Steps) == 0 {
		result.AddError(schema.ErrCodeValidation, "graph has no steps")
		return result, nil
	}

	result.Merge(validateTopology(g))
	result.Merge(gv.validateTrigger(g))
	result.Merge(gv.validateSteps(g))

	if g.Name == "" {
		result.AddError(schema.ErrCodeValidation, "graph name is empty")
	}

	return result, nil
}

// ValidateSubmission validates sample form-submission data against a form
// template's JSON Schema. Used by the editor's form preview.
func (gv *GraphValidator) ValidateSubmission(input map[string]any, formSchema []byte) error {
	return gv.jsonSchema.ValidateInput(input, formSchema)
}

// checkIntegrity verifies the invariants the graph model contract
// guarantees. A violation here is a defect in the model or the storage
// layer and is surfaced as a hard fault, distinct from findings.
func checkIntegrity(g *schema.ProcessGraph) error {
	stepIDs := make(map[string]struct{}, len(g.Steps))
	for i := range g.Steps {
		id := g.Steps[i].ID
		if _, dup := stepIDs[id]; dup {
			return schema.NewErrorf(schema.ErrCodeInternalFault, "duplicate step id %q", id)
		}
		stepIDs[id] = struct{}{}
	}

	connIDs := make(map[string]struct{}, len(g.Connections))
	for i := range g.Connections {
		c := &g.Connections[i]
		if _, dup := connIDs[c.ID]; dup {
			return schema.NewErrorf(schema.ErrCodeInternalFault, "duplicate connection id %q", c.ID)
		}
		connIDs[c.ID] = struct{}{}

		if _, ok := stepIDs[c.SourceStepID]; !ok {
			return schema.NewErrorf(schema.ErrCodeInternalFault,
				"connection %q references non-existent source step %q", c.ID, c.SourceStepID)
		}
		if _, ok := stepIDs[c.TargetStepID]; !ok {
			return schema.NewErrorf(schema.ErrCodeInternalFault,
				"connection %q references non-existent target step %q", c.ID, c.TargetStepID)
		}
	}
	return nil
}

var _ Validator = (*GraphValidator)(nil)
