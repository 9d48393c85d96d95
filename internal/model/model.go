package model

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/credativa/procflow/internal/registry"
	"github.com/credativa/procflow/internal/streaming"
	"github.com/credativa/procflow/pkg/schema"
)

// Graph is the authoritative in-memory process graph held by one editing
// session. Every mutation either fully applies or is fully rejected; readers
// never observe partial edge/step states. A single author owns the graph;
// the mutex only guards against a UI goroutine snapshotting mid-edit.
type Graph struct {
	mu sync.Mutex

	id   string
	name string

	steps     map[string]*schema.Step
	stepOrder []string

	conns     map[string]*schema.Connection
	connOrder []string

	hub    streaming.EventHub
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithHub attaches an event hub; every successful mutation publishes an
// editor event to it.
func WithHub(hub streaming.EventHub) Option {
	return func(g *Graph) { g.hub = hub }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// New creates an empty graph for a new process. One start step is
// auto-inserted, per the editor contract.
func New(name string, opts ...Option) *Graph {
	g := &Graph{
		id:     uuid.NewString(),
		name:   name,
		steps:  make(map[string]*schema.Step),
		conns:  make(map[string]*schema.Connection),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	start, _ := registry.Instantiate(schema.StepKindStart, schema.Position{X: 80, Y: 80})
	g.steps[start.ID] = start
	g.stepOrder = append(g.stepOrder, start.ID)
	return g
}

// Hydrate rebuilds a graph from a persisted storage record, recomputing the
// derived display attributes on every connection. A record whose connections
// reference missing steps indicates storage corruption and is rejected with
// an INTERNAL_FAULT error rather than a finding.
func Hydrate(record *schema.ProcessGraph, opts ...Option) (*Graph, error) {
	if record == nil {
		return nil, schema.NewError(schema.ErrCodeInternalFault, "nil storage record")
	}

	g := &Graph{
		id:     record.ID,
		name:   record.Name,
		steps:  make(map[string]*schema.Step, len(record.Steps)),
		conns:  make(map[string]*schema.Connection, len(record.Connections)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.id == "" {
		g.id = uuid.NewString()
	}

	for i := range record.Steps {
		s := record.Steps[i]
		if _, dup := g.steps[s.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeInternalFault, "duplicate step id %q in storage record", s.ID)
		}
		cp := s
		cp.Config = copyConfig(s.Config)
		g.steps[cp.ID] = &cp
		g.stepOrder = append(g.stepOrder, cp.ID)
	}

	for i := range record.Connections {
		c := record.Connections[i]
		if _, dup := g.conns[c.ID]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeInternalFault, "duplicate connection id %q in storage record", c.ID)
		}
		if _, ok := g.steps[c.SourceStepID]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInternalFault,
				"connection %q references missing source step %q", c.ID, c.SourceStepID)
		}
		if _, ok := g.steps[c.TargetStepID]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInternalFault,
				"connection %q references missing target step %q", c.ID, c.TargetStepID)
		}
		cp := c
		Decorate(&cp)
		g.conns[cp.ID] = &cp
		g.connOrder = append(g.connOrder, cp.ID)
	}

	return g, nil
}

// ID returns the graph id.
func (g *Graph) ID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id
}

// Name returns the author-assigned graph name.
func (g *Graph) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.name
}

// Rename sets the graph name. Emptiness is flagged by the validator at
// submit time, not here.
func (g *Graph) Rename(name string) {
	g.mu.Lock()
	g.name = name
	g.mu.Unlock()
	g.publish(schema.EventGraphRenamed, "", "")
}

// AddStep instantiates a step of the given kind at the given position.
// Adding a second start step is rejected with a PROTECTED_STEP error so the
// single-start invariant holds at every point of an editing session.
func (g *Graph) AddStep(kind schema.StepKind, pos schema.Position) (string, error) {
	g.mu.Lock()
	if kind == schema.StepKindStart && g.countStarts() > 0 {
		g.mu.Unlock()
		return "", schema.NewError(schema.ErrCodeProtectedStep, "graph already has a start step")
	}

	step, err := registry.Instantiate(kind, pos)
	if err != nil {
		g.mu.Unlock()
		return "", err
	}
	g.steps[step.ID] = step
	g.stepOrder = append(g.stepOrder, step.ID)
	g.mu.Unlock()

	g.publish(schema.EventStepAdded, step.ID, "")
	return step.ID, nil
}

// RemoveStep removes a step and cascades removal of every connection that
// references it. Removing the sole start step is rejected.
func (g *Graph) RemoveStep(stepID string) error {
	g.mu.Lock()
	step, ok := g.steps[stepID]
	if !ok {
		g.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodeUnknownStep, "step %q does not exist", stepID).WithStep(stepID)
	}
	if step.Kind == schema.StepKindStart && g.countStarts() == 1 {
		g.mu.Unlock()
		return schema.NewError(schema.ErrCodeProtectedStep, "the start step cannot be removed").WithStep(stepID)
	}

	var cascaded []string
	for _, id := range g.connOrder {
		c := g.conns[id]
		if c.SourceStepID == stepID || c.TargetStepID == stepID {
			cascaded = append(cascaded, id)
		}
	}
	for _, id := range cascaded {
		delete(g.conns, id)
	}
	g.connOrder = without(g.connOrder, cascaded...)

	delete(g.steps, stepID)
	g.stepOrder = without(g.stepOrder, stepID)
	g.mu.Unlock()

	for _, id := range cascaded {
		g.publish(schema.EventConnectionRemoved, "", id)
	}
	g.publish(schema.EventStepRemoved, stepID, "")
	return nil
}

// MoveStep updates a step's layout position. Presentational only.
func (g *Graph) MoveStep(stepID string, pos schema.Position) error {
	g.mu.Lock()
	step, ok := g.steps[stepID]
	if !ok {
		g.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodeUnknownStep, "step %q does not exist", stepID).WithStep(stepID)
	}
	step.Position = pos
	g.mu.Unlock()

	g.publish(schema.EventStepMoved, stepID, "")
	return nil
}

// RenameStep updates a step's human-readable label.
func (g *Graph) RenameStep(stepID, label string) error {
	g.mu.Lock()
	step, ok := g.steps[stepID]
	if !ok {
		g.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodeUnknownStep, "step %q does not exist", stepID).WithStep(stepID)
	}
	step.Label = label
	g.mu.Unlock()

	g.publish(schema.EventStepRenamed, stepID, "")
	return nil
}

// UpdateStepConfig shallow-merges partial into the step's config. Shape is
// not validated here; that is the validator's job at submit time.
func (g *Graph) UpdateStepConfig(stepID string, partial map[string]any) error {
	g.mu.Lock()
	step, ok := g.steps[stepID]
	if !ok {
		g.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodeUnknownStep, "step %q does not exist", stepID).WithStep(stepID)
	}
	if step.Config == nil {
		step.Config = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		step.Config[k] = v
	}
	g.mu.Unlock()

	g.publish(schema.EventStepConfigUpdated, stepID, "")
	return nil
}

// AddConnection draws a connection from sourceID to targetID out of the
// given handle. The handle is resolved to a branch key by the branch
// resolver; a second connection reusing a branch key already taken from the
// same source fails with DUPLICATE_BRANCH and leaves the graph unchanged.
func (g *Graph) AddConnection(sourceID, targetID, handle string) (string, error) {
	g.mu.Lock()
	source, ok := g.steps[sourceID]
	if !ok {
		g.mu.Unlock()
		return "", schema.NewErrorf(schema.ErrCodeUnknownStep, "source step %q does not exist", sourceID).WithStep(sourceID)
	}
	if _, ok := g.steps[targetID]; !ok {
		g.mu.Unlock()
		return "", schema.NewErrorf(schema.ErrCodeUnknownStep, "target step %q does not exist", targetID).WithStep(targetID)
	}

	branch, err := ResolveBranch(source.Kind, handle)
	if err != nil {
		g.mu.Unlock()
		return "", err
	}

	if branch.Key != nil {
		for _, id := range g.connOrder {
			c := g.conns[id]
			if c.SourceStepID == sourceID && c.BranchKey != nil && *c.BranchKey == *branch.Key {
				g.mu.Unlock()
				return "", schema.NewErrorf(schema.ErrCodeDuplicateBranch,
					"step %q already has an outgoing connection for branch %q", sourceID, *branch.Key).
					WithStep(sourceID)
			}
		}
	}

	conn := &schema.Connection{
		ID:           uuid.NewString(),
		SourceStepID: sourceID,
		TargetStepID: targetID,
		BranchKey:    branch.Key,
		Label:        branch.Label,
		Style:        branch.Style,
	}
	g.conns[conn.ID] = conn
	g.connOrder = append(g.connOrder, conn.ID)
	g.mu.Unlock()

	g.publish(schema.EventConnectionAdded, "", conn.ID)
	return conn.ID, nil
}

// RemoveConnection removes a connection by id.
func (g *Graph) RemoveConnection(connectionID string) error {
	g.mu.Lock()
	if _, ok := g.conns[connectionID]; !ok {
		g.mu.Unlock()
		return schema.NewErrorf(schema.ErrCodeNotFound, "connection %q does not exist", connectionID)
	}
	delete(g.conns, connectionID)
	g.connOrder = without(g.connOrder, connectionID)
	g.mu.Unlock()

	g.publish(schema.EventConnectionRemoved, "", connectionID)
	return nil
}

// Step returns a copy of the step with the given id.
func (g *Graph) Step(stepID string) (schema.Step, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	step, ok := g.steps[stepID]
	if !ok {
		return schema.Step{}, false
	}
	cp := *step
	cp.Config = copyConfig(step.Config)
	return cp, true
}

// Snapshot returns a deep copy of the graph as a storage record, with steps
// and connections in insertion order and derived attributes freshly
// recomputed.
func (g *Graph) Snapshot() *schema.ProcessGraph {
	g.mu.Lock()
	defer g.mu.Unlock()

	record := &schema.ProcessGraph{
		ID:          g.id,
		Name:        g.name,
		Steps:       make([]schema.Step, 0, len(g.stepOrder)),
		Connections: make([]schema.Connection, 0, len(g.connOrder)),
	}
	for _, id := range g.stepOrder {
		s := *g.steps[id]
		s.Config = copyConfig(g.steps[id].Config)
		record.Steps = append(record.Steps, s)
	}
	for _, id := range g.connOrder {
		c := *g.conns[id]
		Decorate(&c)
		record.Connections = append(record.Connections, c)
	}
	return record
}

// countStarts must be called with the mutex held.
func (g *Graph) countStarts() int {
	n := 0
	for _, s := range g.steps {
		if s.Kind == schema.StepKindStart {
			n++
		}
	}
	return n
}

// publish emits an editor event to the attached hub, if any.
func (g *Graph) publish(eventType, stepID, connectionID string) {
	if g.hub == nil {
		return
	}
	err := g.hub.Publish(context.Background(), streaming.EditorEvent{
		GraphID:      g.id,
		StepID:       stepID,
		ConnectionID: connectionID,
		EventType:    eventType,
	})
	if err != nil {
		g.logger.Warn("publish editor event failed",
			slog.String("graph_id", g.id),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// without returns order with the given ids removed, preserving order.
func without(order []string, ids ...string) []string {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := order[:0]
	for _, id := range order {
		if _, skip := drop[id]; !skip {
			out = append(out, id)
		}
	}
	return out
}

// copyConfig deep-copies a config map. Values are JSON-shaped (maps, slices,
// scalars) plus the typed slices the registry accepts for list fields, so a
// recursive copy over those shapes is sufficient.
func copyConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyConfig(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []schema.FormField:
		out := make([]schema.FormField, len(t))
		copy(out, t)
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = copyConfig(e)
		}
		return out
	default:
		return v
	}
}
