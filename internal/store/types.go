package store

import (
	"encoding/json"
	"time"

	"github.com/credativa/procflow/pkg/schema"
)

// GraphStatus is the editorial lifecycle state of a stored process graph.
type GraphStatus string

const (
	// GraphStatusDraft means the graph is still being authored.
	GraphStatusDraft GraphStatus = "draft"
	// GraphStatusPublished means the graph passed validation and was
	// submitted at least once; advancement is owned by the execution engine.
	GraphStatusPublished GraphStatus = "published"
)

// GraphRecord is the persisted representation of a process graph.
type GraphRecord struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Status      GraphStatus         `json:"status"`
	Definition  schema.ProcessGraph `json:"definition"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
}

// Execution is the local bookkeeping row for a submitted graph. The engine
// owns the authoritative state; this row caches the last inspected values.
type Execution struct {
	Ref           string                 `json:"ref"`
	GraphID       string                 `json:"graph_id"`
	Status        schema.ExecutionStatus `json:"status"`
	CurrentStepID string                 `json:"current_step_id,omitempty"`
	SubmittedAt   time.Time              `json:"submitted_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ScheduledRun is a cron-triggered automatic submission of a published graph.
type ScheduledRun struct {
	ID             string     `json:"id"`
	GraphID        string     `json:"graph_id"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus  string     `json:"last_run_status,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// FormTemplate is a reusable form definition referenced by form steps via
// template_id. FormSchema is an optional JSON Schema for submission data.
type FormTemplate struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Fields      []schema.FormField `json:"fields,omitempty"`
	FormSchema  json.RawMessage    `json:"form_schema,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// --- Filter and update types ---

// GraphFilter specifies criteria for listing graphs.
type GraphFilter struct {
	Status *GraphStatus `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// GraphUpdate specifies mutable fields of a stored graph.
type GraphUpdate struct {
	Name        *string              `json:"name,omitempty"`
	Status      *GraphStatus         `json:"status,omitempty"`
	Definition  *schema.ProcessGraph `json:"definition,omitempty"`
	PublishedAt *time.Time           `json:"published_at,omitempty"`
}

// ExecutionFilter specifies criteria for listing executions.
type ExecutionFilter struct {
	GraphID string                  `json:"graph_id,omitempty"`
	Status  *schema.ExecutionStatus `json:"status,omitempty"`
	Limit   int                     `json:"limit,omitempty"`
}

// ExecutionUpdate specifies mutable fields of an execution row.
type ExecutionUpdate struct {
	Status        *schema.ExecutionStatus `json:"status,omitempty"`
	CurrentStepID *string                 `json:"current_step_id,omitempty"`
}

// ScheduledRunUpdate specifies mutable fields of a scheduled run.
type ScheduledRunUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// ScheduledRunFilter specifies criteria for listing scheduled runs.
type ScheduledRunFilter struct {
	Enabled *bool  `json:"enabled,omitempty"`
	GraphID string `json:"graph_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// TemplateFilter specifies criteria for listing form templates.
type TemplateFilter struct {
	Name  string `json:"name,omitempty"`
	Limit int    `json:"limit,omitempty"`
}
