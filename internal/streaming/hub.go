package streaming

import "context"

// EditorEvent is a real-time event emitted by the graph model on each
// successful mutation or lifecycle action, so editor panels re-render
// without polling.
type EditorEvent struct {
	GraphID      string `json:"graph_id"`
	StepID       string `json:"step_id,omitempty"`
	ConnectionID string `json:"connection_id,omitempty"`
	EventType    string `json:"event_type"`
	Payload      any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	GraphID    string   `json:"graph_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for editor events.
type EventHub interface {
	Publish(ctx context.Context, event EditorEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan EditorEvent, func(), error)
}
