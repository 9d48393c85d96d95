package schema

import "encoding/json"

// Per-kind config payloads. Steps store config as a loose map so the editor
// can merge partial updates without knowing the shape; these structs are the
// typed views the validator and renderers decode into.

// FormConfig configures a form-collection step. Either TemplateID references
// an externally managed form template, or Fields defines the form inline.
type FormConfig struct {
	TemplateID string      `json:"template_id,omitempty"`
	Fields     []FormField `json:"fields,omitempty"`
}

// FormField is one inline form field definition.
type FormField struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Type     string `json:"type,omitempty"` // text, number, date, file, select
	Required bool   `json:"required,omitempty"`
}

// ApprovalConfig configures an approval gate. Reviewers are opaque identity
// ids; permission checks belong to the authorization subsystem.
type ApprovalConfig struct {
	Reviewers []string `json:"reviewers"`
	Mode      string   `json:"mode,omitempty"` // any | all (default: any)
}

// ConditionConfig configures a decision step. Question is the human-facing
// boolean question shown to the author and reviewer. Expression is an
// optional machine-evaluable form of the same question; Language selects the
// engine that evaluates it (cel or expr). Only syntax is checked locally —
// evaluation semantics belong to the execution engine.
type ConditionConfig struct {
	Question   string `json:"question"`
	Language   string `json:"language,omitempty"` // cel | expr (default: cel)
	Expression string `json:"expression,omitempty"`
}

// SignatureConfig configures a signature-request step.
type SignatureConfig struct {
	Signers            []string `json:"signers"`
	Provider           string   `json:"provider,omitempty"`
	DocumentTemplateID string   `json:"document_template_id,omitempty"`
}

// HTTPConfig configures an outbound HTTP call step. Extract is an optional jq
// expression applied to the response body by the execution engine.
type HTTPConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
	Extract string            `json:"extract,omitempty"`
}

// WebhookConfig configures an inbound-wait webhook step.
type WebhookConfig struct {
	URL     string `json:"url"`
	Extract string `json:"extract,omitempty"`
}

// DatabaseConfig configures a database mutation step.
type DatabaseConfig struct {
	Table     string         `json:"table"`
	Operation string         `json:"operation"` // insert | update | delete
	Values    map[string]any `json:"values,omitempty"`
}

// FunctionConfig configures a serverless-function invocation step.
type FunctionConfig struct {
	Handler string         `json:"handler"`
	Args    map[string]any `json:"args,omitempty"`
}

// LoopConfig configures a loop step. Over produces the iterable; Condition is
// a while/until expression. One of the two must be present.
type LoopConfig struct {
	Over      string `json:"over,omitempty"`
	Condition string `json:"condition,omitempty"`
	Mode      string `json:"mode,omitempty"` // for_each | while | until
	MaxIter   int    `json:"max_iter,omitempty"`
}

// EmailConfig configures an email notification step.
type EmailConfig struct {
	To         []string `json:"to"`
	Subject    string   `json:"subject"`
	TemplateID string   `json:"template_id,omitempty"`
	Body       string   `json:"body,omitempty"`
}

// DecodeConfig decodes a step's loose config map into a typed config struct
// by round-tripping through JSON. Unknown keys are ignored.
func DecodeConfig(cfg map[string]any, out any) error {
	if cfg == nil {
		return nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return NewError(ErrCodeValidation, "encode step config").WithCause(err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return NewError(ErrCodeValidation, "decode step config").WithCause(err)
	}
	return nil
}

// DecodeTrigger extracts and decodes the trigger declaration from a start
// step's config. Returns nil when no trigger is declared.
func DecodeTrigger(cfg map[string]any) (*TriggerConfig, error) {
	raw, ok := cfg["trigger"]
	if !ok || raw == nil {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, NewError(ErrCodeValidation, "encode trigger config").WithCause(err)
	}
	var tc TriggerConfig
	if err := json.Unmarshal(b, &tc); err != nil {
		return nil, NewError(ErrCodeValidation, "decode trigger config").WithCause(err)
	}
	return &tc, nil
}
