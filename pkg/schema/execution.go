package schema

// ExecutionStatus is the coarse execution state reported by the external
// engine. The editor only displays it; all advancement is engine-owned.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// ExecutionState is the read-only poll result for a submitted graph.
// CurrentStepID correlates against the step ids submitted in the storage
// record, which is why the persistence adapter must preserve ids verbatim.
type ExecutionState struct {
	Status        ExecutionStatus `json:"status"`
	CurrentStepID string          `json:"current_step_id,omitempty"`
}

// Editor event types published to the streaming hub on each successful
// model mutation or lifecycle action.
const (
	EventStepAdded         = "step_added"
	EventStepRemoved       = "step_removed"
	EventStepMoved         = "step_moved"
	EventStepRenamed       = "step_renamed"
	EventStepConfigUpdated = "step_config_updated"

	EventConnectionAdded   = "connection_added"
	EventConnectionRemoved = "connection_removed"

	EventGraphRenamed   = "graph_renamed"
	EventGraphValidated = "graph_validated"
	EventGraphSubmitted = "graph_submitted"
)
