package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/credativa/procflow/internal/logging"
	"github.com/credativa/procflow/internal/store"
	"github.com/credativa/procflow/internal/streaming"
	"github.com/credativa/procflow/internal/validation"
	"github.com/credativa/procflow/pkg/schema"
)

// defaultSubmitTimeout bounds how long a submission may wait on the engine.
const defaultSubmitTimeout = 15 * time.Second

// Bridge connects the editor to the external execution engine. Submission is
// gated on validation: a graph with error findings never leaves the editor.
// Inspection is strictly read-only from the editor's point of view; the
// engine owns all advancement and the bridge only mirrors what it reports.
type Bridge struct {
	store     store.Store
	validator validation.Validator
	engine    Engine

	hub           streaming.EventHub
	logger        *slog.Logger
	submitTimeout time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithHub sets the event hub submissions are announced on.
func WithHub(hub streaming.EventHub) Option {
	return func(b *Bridge) { b.hub = hub }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithSubmitTimeout overrides the submission deadline.
func WithSubmitTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.submitTimeout = d }
}

// New creates a Bridge.
func New(st store.Store, validator validation.Validator, engine Engine, opts ...Option) *Bridge {
	b := &Bridge{
		store:         st,
		validator:     validator,
		engine:        engine,
		logger:        slog.Default(),
		submitTimeout: defaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit validates the stored graph and hands its storage record to the
// engine. A graph with error findings is rejected with VALIDATION_REQUIRED
// and the findings attached; warnings alone do not block. When the engine
// call times out, nothing is recorded locally — the idempotency key on the
// wire makes a retried submission safe.
//
// The first successful submission promotes the graph from draft to
// published.
func (b *Bridge) Submit(ctx context.Context, graphID string) (string, error) {
	ctx = logging.WithGraphID(ctx, graphID)
	log := logging.LogWith(ctx, b.logger)

	rec, err := b.store.GetGraph(ctx, graphID)
	if err != nil {
		return "", err
	}

	result, err := b.validator.Validate(&rec.Definition)
	if err != nil {
		return "", err
	}
	b.publish(ctx, streaming.EditorEvent{
		GraphID:   graphID,
		EventType: schema.EventGraphValidated,
		Payload: map[string]any{
			"error_count":   len(result.Errors),
			"warning_count": len(result.Warnings),
		},
	})
	if !result.Valid() {
		return "", schema.NewErrorf(schema.ErrCodeValidationRequired,
			"graph %q has %d validation errors; fix them before submitting", rec.Name, len(result.Errors)).
			WithDetails(map[string]any{"errors": result.Errors, "warnings": result.Warnings})
	}

	record, err := store.Serialize(&rec.Definition)
	if err != nil {
		return "", err
	}

	sctx, cancel := context.WithTimeout(ctx, b.submitTimeout)
	defer cancel()

	ref, err := b.engine.Submit(sctx, record)
	if err != nil {
		log.Error("graph submission failed", "error", err)
		return "", err
	}

	now := time.Now().UTC()
	exec := &store.Execution{
		Ref:         ref,
		GraphID:     graphID,
		Status:      schema.ExecutionPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := b.store.CreateExecution(ctx, exec); err != nil {
		return "", schema.NewError(schema.ErrCodeStore, "failed to record execution").WithCause(err)
	}

	if rec.Status != store.GraphStatusPublished {
		published := store.GraphStatusPublished
		update := store.GraphUpdate{Status: &published, PublishedAt: &now}
		if err := b.store.UpdateGraph(ctx, graphID, update); err != nil {
			log.Warn("failed to mark graph published", "error", err)
		}
	}

	b.publish(ctx, streaming.EditorEvent{
		GraphID:   graphID,
		EventType: schema.EventGraphSubmitted,
		Payload:   map[string]any{"execution_ref": ref},
	})

	log.Info("graph submitted", "execution_ref", ref)
	return ref, nil
}

// Inspect polls the engine for an execution's current state and mirrors it
// into the local bookkeeping row. The engine owns advancement; the bridge
// only guards against impossible regressions (a completed execution going
// back to running), which it logs as an internal fault and ignores, keeping
// the last trusted state.
func (b *Bridge) Inspect(ctx context.Context, ref string) (*schema.ExecutionState, error) {
	ctx = logging.WithExecutionRef(ctx, ref)
	log := logging.LogWith(ctx, b.logger)

	exec, err := b.store.GetExecution(ctx, ref)
	if err != nil {
		return nil, err
	}

	state, err := b.engine.Inspect(ctx, ref)
	if err != nil {
		return nil, err
	}

	if state.Status != exec.Status && !validStatusTransition(exec.Status, state.Status) {
		log.Error("engine reported impossible status transition",
			"code", schema.ErrCodeInternalFault,
			"from", string(exec.Status),
			"to", string(state.Status),
		)
		return &schema.ExecutionState{Status: exec.Status, CurrentStepID: exec.CurrentStepID}, nil
	}

	if state.Status != exec.Status || state.CurrentStepID != exec.CurrentStepID {
		update := store.ExecutionUpdate{Status: &state.Status, CurrentStepID: &state.CurrentStepID}
		if err := b.store.UpdateExecution(ctx, ref, update); err != nil {
			log.Warn("failed to mirror execution state", "error", err)
		}
	}

	return state, nil
}

// publish emits an editor event; a nil hub drops it.
func (b *Bridge) publish(ctx context.Context, event streaming.EditorEvent) {
	if b.hub == nil {
		return
	}
	_ = b.hub.Publish(ctx, event)
}

// validStatusTransitions defines the allowed forward movements of an
// execution's status. Terminal statuses admit nothing.
var validStatusTransitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.ExecutionPending:   {schema.ExecutionRunning, schema.ExecutionCompleted, schema.ExecutionFailed},
	schema.ExecutionRunning:   {schema.ExecutionCompleted, schema.ExecutionFailed},
	schema.ExecutionCompleted: {},
	schema.ExecutionFailed:    {},
}

func validStatusTransition(from, to schema.ExecutionStatus) bool {
	for _, a := range validStatusTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}
