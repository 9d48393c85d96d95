package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Process graphs
	CreateGraph(ctx context.Context, rec *GraphRecord) error
	GetGraph(ctx context.Context, id string) (*GraphRecord, error)
	UpdateGraph(ctx context.Context, id string, update GraphUpdate) error
	ListGraphs(ctx context.Context, filter GraphFilter) ([]*GraphRecord, error)
	DeleteGraph(ctx context.Context, id string) error

	// Executions (local bookkeeping for engine submissions)
	CreateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, ref string) (*Execution, error)
	UpdateExecution(ctx context.Context, ref string, update ExecutionUpdate) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)

	// Scheduled runs
	CreateScheduledRun(ctx context.Context, run *ScheduledRun) error
	GetScheduledRun(ctx context.Context, id string) (*ScheduledRun, error)
	UpdateScheduledRun(ctx context.Context, id string, update ScheduledRunUpdate) error
	ListScheduledRuns(ctx context.Context, filter ScheduledRunFilter) ([]*ScheduledRun, error)
	DeleteScheduledRun(ctx context.Context, id string) error

	// Form templates
	StoreTemplate(ctx context.Context, tpl *FormTemplate) error
	GetTemplate(ctx context.Context, id string) (*FormTemplate, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]*FormTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
