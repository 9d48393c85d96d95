package registry

import (
	"github.com/google/uuid"

	"github.com/credativa/procflow/pkg/schema"
)

// Category groups step kinds for the editor's palette.
type Category string

const (
	CategoryControl      Category = "control"
	CategoryCollection   Category = "collection"
	CategoryDecision     Category = "decision"
	CategoryIntegration  Category = "integration"
	CategoryData         Category = "data"
	CategoryNotification Category = "notification"
)

// Descriptor describes one step kind: its display metadata, the default
// config a fresh step starts with, and the required-fields predicate the
// validator applies. Descriptors are read-only process-wide state.
type Descriptor struct {
	Kind        schema.StepKind
	DisplayName string
	Category    Category

	// RequiredConfigFields documents the config fields the predicate checks.
	// Either/or requirements appear as a single "a or b" entry.
	RequiredConfigFields []string

	// BranchKeys lists the named outcomes of a decision-bearing kind, in the
	// order the editor renders their handles. Empty for single-outflow kinds.
	BranchKeys []schema.BranchKey

	defaultConfig func() map[string]any
	missingFields func(cfg map[string]any) []string
}

// Branching reports whether connections out of this kind carry branch keys.
func (d *Descriptor) Branching() bool { return len(d.BranchKeys) > 0 }

// Terminal reports whether steps of this kind require no outgoing connection.
func (d *Descriptor) Terminal() bool { return d.Kind == schema.StepKindTerminal }

// DefaultConfig returns a fresh copy of the kind's default config.
func (d *Descriptor) DefaultConfig() map[string]any {
	if d.defaultConfig == nil {
		return map[string]any{}
	}
	return d.defaultConfig()
}

// MissingFields returns the names of required config fields that are absent
// or empty in cfg. A nil cfg reports every required field.
func (d *Descriptor) MissingFields(cfg map[string]any) []string {
	if d.missingFields == nil {
		return nil
	}
	return d.missingFields(cfg)
}

// Describe returns the descriptor for a step kind.
// Fails with an UNKNOWN_KIND error if kind is not in the closed set.
func Describe(kind schema.StepKind) (*Descriptor, error) {
	d, ok := catalog[kind]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownKind, "unknown step kind %q", kind)
	}
	return d, nil
}

// Instantiate produces a new step of the given kind at the given position,
// with a fresh id and the kind's default config. It never mutates existing
// state.
func Instantiate(kind schema.StepKind, pos schema.Position) (*schema.Step, error) {
	d, err := Describe(kind)
	if err != nil {
		return nil, err
	}
	return &schema.Step{
		ID:       uuid.NewString(),
		Kind:     kind,
		Label:    d.DisplayName,
		Config:   d.DefaultConfig(),
		Position: pos,
	}, nil
}

// catalog is populated once at init and never mutated afterwards, which keeps
// validation exhaustive and enumerable.
var catalog = map[schema.StepKind]*Descriptor{
	schema.StepKindStart: {
		Kind:        schema.StepKindStart,
		DisplayName: "Início",
		Category:    CategoryControl,
	},
	schema.StepKindTerminal: {
		Kind:        schema.StepKindTerminal,
		DisplayName: "Fim",
		Category:    CategoryControl,
	},
	schema.StepKindForm: {
		Kind:                 schema.StepKindForm,
		DisplayName:          "Formulário",
		Category:             CategoryCollection,
		RequiredConfigFields: []string{"template_id or fields"},
		missingFields: func(cfg map[string]any) []string {
			if hasString(cfg, "template_id") || hasList(cfg, "fields") {
				return nil
			}
			return []string{"template_id or fields"}
		},
	},
	schema.StepKindApproval: {
		Kind:                 schema.StepKindApproval,
		DisplayName:          "Aprovação",
		Category:             CategoryDecision,
		RequiredConfigFields: []string{"reviewers"},
		defaultConfig: func() map[string]any {
			return map[string]any{"reviewers": []any{}, "mode": "any"}
		},
		missingFields: requireLists("reviewers"),
	},
	schema.StepKindCondition: {
		Kind:                 schema.StepKindCondition,
		DisplayName:          "Condição",
		Category:             CategoryDecision,
		RequiredConfigFields: []string{"question"},
		BranchKeys:           []schema.BranchKey{schema.BranchYes, schema.BranchNo},
		defaultConfig: func() map[string]any {
			return map[string]any{"question": "", "language": "cel"}
		},
		missingFields: requireStrings("question"),
	},
	schema.StepKindSignature: {
		Kind:                 schema.StepKindSignature,
		DisplayName:          "Assinatura",
		Category:             CategoryCollection,
		RequiredConfigFields: []string{"signers"},
		defaultConfig: func() map[string]any {
			return map[string]any{"signers": []any{}}
		},
		missingFields: requireLists("signers"),
	},
	schema.StepKindHTTPCall: {
		Kind:                 schema.StepKindHTTPCall,
		DisplayName:          "Chamada HTTP",
		Category:             CategoryIntegration,
		RequiredConfigFields: []string{"url", "method"},
		defaultConfig: func() map[string]any {
			return map[string]any{"url": "", "method": "GET"}
		},
		missingFields: requireStrings("url", "method"),
	},
	schema.StepKindWebhook: {
		Kind:                 schema.StepKindWebhook,
		DisplayName:          "Webhook",
		Category:             CategoryIntegration,
		RequiredConfigFields: []string{"url"},
		defaultConfig: func() map[string]any {
			return map[string]any{"url": ""}
		},
		missingFields: requireStrings("url"),
	},
	schema.StepKindDatabaseOp: {
		Kind:                 schema.StepKindDatabaseOp,
		DisplayName:          "Operação de Banco",
		Category:             CategoryData,
		RequiredConfigFields: []string{"table", "operation"},
		defaultConfig: func() map[string]any {
			return map[string]any{"table": "", "operation": "insert"}
		},
		missingFields: requireStrings("table", "operation"),
	},
	schema.StepKindFunction: {
		Kind:                 schema.StepKindFunction,
		DisplayName:          "Função",
		Category:             CategoryIntegration,
		RequiredConfigFields: []string{"handler"},
		defaultConfig: func() map[string]any {
			return map[string]any{"handler": ""}
		},
		missingFields: requireStrings("handler"),
	},
	schema.StepKindLoop: {
		Kind:                 schema.StepKindLoop,
		DisplayName:          "Repetição",
		Category:             CategoryControl,
		RequiredConfigFields: []string{"over or condition"},
		defaultConfig: func() map[string]any {
			return map[string]any{"mode": "for_each"}
		},
		missingFields: func(cfg map[string]any) []string {
			if hasString(cfg, "over") || hasString(cfg, "condition") {
				return nil
			}
			return []string{"over or condition"}
		},
	},
	schema.StepKindEmail: {
		Kind:                 schema.StepKindEmail,
		DisplayName:          "E-mail",
		Category:             CategoryNotification,
		RequiredConfigFields: []string{"to", "subject"},
		defaultConfig: func() map[string]any {
			return map[string]any{"to": []any{}, "subject": ""}
		},
		missingFields: func(cfg map[string]any) []string {
			var missing []string
			if !hasList(cfg, "to") {
				missing = append(missing, "to")
			}
			if !hasString(cfg, "subject") {
				missing = append(missing, "subject")
			}
			return missing
		},
	},
}

// requireStrings builds a predicate requiring each key to hold a non-empty
// string.
func requireStrings(keys ...string) func(map[string]any) []string {
	return func(cfg map[string]any) []string {
		var missing []string
		for _, k := range keys {
			if !hasString(cfg, k) {
				missing = append(missing, k)
			}
		}
		return missing
	}
}

// requireLists builds a predicate requiring each key to hold a non-empty list.
func requireLists(keys ...string) func(map[string]any) []string {
	return func(cfg map[string]any) []string {
		var missing []string
		for _, k := range keys {
			if !hasList(cfg, k) {
				missing = append(missing, k)
			}
		}
		return missing
	}
}

// hasString reports whether cfg[key] holds a non-empty string.
func hasString(cfg map[string]any, key string) bool {
	if cfg == nil {
		return false
	}
	s, ok := cfg[key].(string)
	return ok && s != ""
}

// hasList reports whether cfg[key] holds a non-empty list. Config maps come
// from JSON ([]any) or from typed editor code ([]string), so both are
// accepted.
func hasList(cfg map[string]any, key string) bool {
	if cfg == nil {
		return false
	}
	switch v := cfg[key].(type) {
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case []schema.FormField:
		return len(v) > 0
	case []map[string]any:
		return len(v) > 0
	default:
		return false
	}
}
