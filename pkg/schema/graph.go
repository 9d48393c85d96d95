package schema

// StepKind identifies one of the closed set of step types a process graph
// may contain. The set is fixed at compile time; there is no runtime
// registration of new kinds.
type StepKind string

const (
	StepKindStart      StepKind = "start"
	StepKindTerminal   StepKind = "terminal"
	StepKindForm       StepKind = "form"
	StepKindApproval   StepKind = "approval"
	StepKindCondition  StepKind = "condition"
	StepKindSignature  StepKind = "signature"
	StepKindHTTPCall   StepKind = "http_call"
	StepKindWebhook    StepKind = "webhook"
	StepKindDatabaseOp StepKind = "database_op"
	StepKindFunction   StepKind = "function"
	StepKindLoop       StepKind = "loop"
	StepKindEmail      StepKind = "email"
)

// AllStepKinds lists every kind in the catalog, in display order.
var AllStepKinds = []StepKind{
	StepKindStart, StepKindTerminal, StepKindForm, StepKindApproval,
	StepKindCondition, StepKindSignature, StepKindHTTPCall, StepKindWebhook,
	StepKindDatabaseOp, StepKindFunction, StepKindLoop, StepKindEmail,
}

// Position holds free-form editor layout coordinates. Presentational only;
// it never affects graph semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BranchKey names the outcome a connection carries out of a decision step.
type BranchKey string

const (
	BranchYes BranchKey = "yes"
	BranchNo  BranchKey = "no"
)

// Step is a single typed unit of work in a process graph.
// Kind is immutable once created; changing it requires delete + recreate.
type Step struct {
	ID       string         `json:"id"`
	Kind     StepKind       `json:"kind"`
	Label    string         `json:"label"`
	Config   map[string]any `json:"config,omitempty"`
	Position Position       `json:"position"`
}

// ConnectionStyle is the visual styling of a connection. It is a pure
// projection of the branch key, recomputed on every connect and on hydrate,
// and is never persisted.
type ConnectionStyle struct {
	Color string `json:"color"`
}

// Connection is a directed edge between two steps. BranchKey is present only
// when the source step kind supports multiple named outcomes. Label and Style
// are derived from BranchKey; BranchKey is the sole source of truth.
type Connection struct {
	ID           string     `json:"id"`
	SourceStepID string     `json:"source_step_id"`
	TargetStepID string     `json:"target_step_id"`
	BranchKey    *BranchKey `json:"branch_key,omitempty"`

	Label string          `json:"-"`
	Style ConnectionStyle `json:"-"`
}

// ProcessGraph is the storage record for a whole process graph: the shape
// consumed by the execution engine and produced by the persistence adapter.
// Editor-only state (selection, viewport) never enters this record.
type ProcessGraph struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Steps       []Step       `json:"steps"`
	Connections []Connection `json:"connections"`
}

// StepByID returns the step with the given id, or nil.
func (g *ProcessGraph) StepByID(id string) *Step {
	for i := range g.Steps {
		if g.Steps[i].ID == id {
			return &g.Steps[i]
		}
	}
	return nil
}

// StartStep returns the first step of kind start, or nil.
func (g *ProcessGraph) StartStep() *Step {
	for i := range g.Steps {
		if g.Steps[i].Kind == StepKindStart {
			return &g.Steps[i]
		}
	}
	return nil
}

// TriggerType identifies how a published process graph is started.
type TriggerType string

const (
	// TriggerNone means the process is started manually.
	TriggerNone         TriggerType = ""
	TriggerStorageEvent TriggerType = "storage_event"
	TriggerWebhook      TriggerType = "webhook"
	TriggerSchedule     TriggerType = "schedule"
)

// TriggerConfig is the start step's trigger declaration, stored under the
// "trigger" key of the start step's config.
type TriggerConfig struct {
	Type  TriggerType `json:"type,omitempty"`
	Table string      `json:"table,omitempty"` // storage_event: target table
	Event string      `json:"event,omitempty"` // storage_event: insert | update | delete
	URL   string      `json:"url,omitempty"`   // webhook: callback URL
	Cron  string      `json:"cron,omitempty"`  // schedule: cron expression
}
