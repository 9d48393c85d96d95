package validation

import (
	"fmt"
	"strings"

	"github.com/credativa/procflow/internal/expressions"
	"github.com/credativa/procflow/internal/registry"
	"github.com/credativa/procflow/pkg/schema"
)

// validateTrigger checks the start step's trigger declaration (check 3).
// No trigger at all is a warning — the process will require manual
// invocation. A trigger of a recognized subtype must carry that subtype's
// required fields; each missing field is a separate error.
func (gv *GraphValidator) validateTrigger(g *schema.ProcessGraph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	start := g.StartStep()
	if start == nil {
		return result
	}

	trigger, err := schema.DecodeTrigger(start.Config)
	if err != nil {
		result.AddStepError(start.ID, schema.ErrCodeValidation,
			fmt.Sprintf("step %q has a malformed trigger configuration", stepName(start)))
		return result
	}

	if trigger == nil || trigger.Type == schema.TriggerNone {
		result.AddStepWarning(start.ID, schema.ErrCodeValidation,
			fmt.Sprintf("step %q declares no trigger; the process will require manual invocation", stepName(start)))
		return result
	}

	switch trigger.Type {
	case schema.TriggerStorageEvent:
		if trigger.Table == "" {
			result.AddStepError(start.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %q storage-event trigger is missing required field %q", stepName(start), "table"))
		}
		if trigger.Event == "" {
			result.AddStepError(start.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %q storage-event trigger is missing required field %q", stepName(start), "event"))
		}
	case schema.TriggerWebhook:
		if trigger.URL == "" {
			result.AddStepError(start.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %q webhook trigger is missing required field %q", stepName(start), "url"))
		}
	case schema.TriggerSchedule:
		if trigger.Cron == "" {
			result.AddStepError(start.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %q schedule trigger is missing required field %q", stepName(start), "cron"))
		} else if _, err := gv.cronParser.Parse(trigger.Cron); err != nil {
			result.AddStepError(start.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %q schedule trigger has an invalid cron expression %q: %s", stepName(start), trigger.Cron, err))
		}
	default:
		result.AddStepError(start.ID, schema.ErrCodeValidation,
			fmt.Sprintf("step %q has an unknown trigger type %q", stepName(start), trigger.Type))
	}

	return result
}

// validateSteps performs per-step configuration completeness (check 7):
// labels, the registry's required-fields predicate, branch exclusivity on
// decision steps, and syntax checks on authored expressions.
func (gv *GraphValidator) validateSteps(g *schema.ProcessGraph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	outgoing := make(map[string][]*schema.Connection, len(g.Steps))
	for i := range g.Connections {
		c := &g.Connections[i]
		outgoing[c.SourceStepID] = append(outgoing[c.SourceStepID], c)
	}

	for i := range g.Steps {
		s := &g.Steps[i]

		if s.Label == "" {
			result.AddStepError(s.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %s has an empty label", s.ID))
		}

		d, err := registry.Describe(s.Kind)
		if err != nil {
			// Structural stage already rejects unknown kinds; defensive only.
			result.AddStepError(s.ID, schema.ErrCodeUnknownKind,
				fmt.Sprintf("step %q has unknown kind %q", stepName(s), s.Kind))
			continue
		}

		for _, field := range d.MissingFields(s.Config) {
			result.AddStepError(s.ID, schema.ErrCodeValidation,
				fmt.Sprintf("step %q is missing required field %q", stepName(s), field))
		}

		if d.Branching() {
			gv.validateBranches(s, outgoing[s.ID], result)
		}

		gv.validateExpressions(s, result)
		validateMarkers(s, result)
	}

	return result
}

// validateBranches enforces branch exclusivity on a decision step's
// outgoing connections. The model rejects duplicates at draw time; records
// authored elsewhere are caught here as findings.
func (gv *GraphValidator) validateBranches(s *schema.Step, outgoing []*schema.Connection, result *schema.ValidationResult) {
	seen := make(map[schema.BranchKey]string, len(outgoing))
	for _, c := range outgoing {
		if c.BranchKey == nil {
			result.AddConnectionError(c.ID, schema.ErrCodeValidation,
				fmt.Sprintf("connection out of decision step %q has no branch key", stepName(s)))
			continue
		}
		if prev, dup := seen[*c.BranchKey]; dup {
			result.AddConnectionError(c.ID, schema.ErrCodeDuplicateBranch,
				fmt.Sprintf("decision step %q has two connections for branch %q (%s, %s)",
					stepName(s), *c.BranchKey, prev, c.ID))
			continue
		}
		seen[*c.BranchKey] = c.ID
	}
}

// validateExpressions syntax-checks any machine-evaluable expressions a step
// declares: condition expressions (CEL or Expr) and jq extract paths.
func (gv *GraphValidator) validateExpressions(s *schema.Step, result *schema.ValidationResult) {
	switch s.Kind {
	case schema.StepKindCondition:
		var cfg schema.ConditionConfig
		if err := schema.DecodeConfig(s.Config, &cfg); err != nil || cfg.Expression == "" {
			return
		}
		engine := expressions.ForLanguage(cfg.Language, gv.celEngine, gv.exprEngine)
		if err := engine.Check(cfg.Expression); err != nil {
			result.AddStepError(s.ID, schema.ErrCodeExpression,
				fmt.Sprintf("step %q has an invalid %s expression: %s", stepName(s), engine.Name(), flowMessage(err)))
		}

	case schema.StepKindHTTPCall:
		var cfg schema.HTTPConfig
		if err := schema.DecodeConfig(s.Config, &cfg); err != nil || cfg.Extract == "" {
			return
		}
		if err := gv.jqEngine.Check(cfg.Extract); err != nil {
			result.AddStepError(s.ID, schema.ErrCodeExpression,
				fmt.Sprintf("step %q has an invalid extract path: %s", stepName(s), flowMessage(err)))
		}

	case schema.StepKindWebhook:
		var cfg schema.WebhookConfig
		if err := schema.DecodeConfig(s.Config, &cfg); err != nil || cfg.Extract == "" {
			return
		}
		if err := gv.jqEngine.Check(cfg.Extract); err != nil {
			result.AddStepError(s.ID, schema.ErrCodeExpression,
				fmt.Sprintf("step %q has an invalid extract path: %s", stepName(s), flowMessage(err)))
		}
	}
}

// validateMarkers flags unclosed ${{ interpolation markers in string config
// values. The execution engine resolves the markers; an unclosed one would
// pass through as literal text.
func validateMarkers(s *schema.Step, result *schema.ValidationResult) {
	var walk func(v any) bool
	walk = func(v any) bool {
		switch t := v.(type) {
		case string:
			return hasUnclosedMarker(t)
		case map[string]any:
			for _, e := range t {
				if walk(e) {
					return true
				}
			}
		case []any:
			for _, e := range t {
				if walk(e) {
					return true
				}
			}
		}
		return false
	}

	if walk(s.Config) {
		result.AddStepError(s.ID, schema.ErrCodeValidation,
			fmt.Sprintf("step %q has an unclosed ${{ marker in its configuration", stepName(s)))
	}
}

// hasUnclosedMarker reports whether s contains a "${{" without a matching "}}".
func hasUnclosedMarker(s string) bool {
	for {
		idx := strings.Index(s, "${{")
		if idx == -1 {
			return false
		}
		end := strings.Index(s[idx+3:], "}}")
		if end == -1 {
			return true
		}
		s = s[idx+3+end+2:]
	}
}

// flowMessage extracts the message from a FlowError, falling back to
// Error().
func flowMessage(err error) string {
	if fe, ok := err.(*schema.FlowError); ok {
		return fe.Message
	}
	return err.Error()
}
