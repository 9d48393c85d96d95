package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credativa/procflow/internal/store"
	"github.com/credativa/procflow/internal/streaming"
	"github.com/credativa/procflow/internal/validation"
	"github.com/credativa/procflow/pkg/schema"
)

// fakeStore implements only the Store methods the bridge touches; everything
// else panics through the embedded nil interface.
type fakeStore struct {
	store.Store

	graphs      map[string]*store.GraphRecord
	executions  map[string]*store.Execution
	graphUpdate *store.GraphUpdate
	execUpdate  *store.ExecutionUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		graphs:     make(map[string]*store.GraphRecord),
		executions: make(map[string]*store.Execution),
	}
}

func (f *fakeStore) GetGraph(_ context.Context, id string) (*store.GraphRecord, error) {
	rec, ok := f.graphs[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "process_graph %q not found", id)
	}
	return rec, nil
}

func (f *fakeStore) UpdateGraph(_ context.Context, id string, update store.GraphUpdate) error {
	rec, ok := f.graphs[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "process_graph %q not found", id)
	}
	f.graphUpdate = &update
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.PublishedAt != nil {
		rec.PublishedAt = update.PublishedAt
	}
	return nil
}

func (f *fakeStore) CreateExecution(_ context.Context, exec *store.Execution) error {
	f.executions[exec.Ref] = exec
	return nil
}

func (f *fakeStore) GetExecution(_ context.Context, ref string) (*store.Execution, error) {
	exec, ok := f.executions[ref]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "execution %q not found", ref)
	}
	return exec, nil
}

func (f *fakeStore) UpdateExecution(_ context.Context, ref string, update store.ExecutionUpdate) error {
	exec, ok := f.executions[ref]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "execution %q not found", ref)
	}
	f.execUpdate = &update
	if update.Status != nil {
		exec.Status = *update.Status
	}
	if update.CurrentStepID != nil {
		exec.CurrentStepID = *update.CurrentStepID
	}
	return nil
}

type fakeEngine struct {
	ref        string
	submitErr  error
	submits    int
	state      *schema.ExecutionState
	inspectErr error
}

func (f *fakeEngine) Submit(_ context.Context, _ []byte) (string, error) {
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.ref, nil
}

func (f *fakeEngine) Inspect(_ context.Context, _ string) (*schema.ExecutionState, error) {
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	return f.state, nil
}

func validGraph() schema.ProcessGraph {
	return schema.ProcessGraph{
		ID:   "g1",
		Name: "Credenciamento",
		Steps: []schema.Step{
			{ID: "s1", Kind: schema.StepKindStart, Label: "Início"},
			{ID: "s2", Kind: schema.StepKindTerminal, Label: "Fim"},
		},
		Connections: []schema.Connection{
			{ID: "c1", SourceStepID: "s1", TargetStepID: "s2"},
		},
	}
}

func newTestBridge(t *testing.T, st store.Store, eng Engine, opts ...Option) *Bridge {
	t.Helper()
	v, err := validation.NewGraphValidator()
	require.NoError(t, err)
	return New(st, v, eng, opts...)
}

func TestSubmitValidGraph(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &store.GraphRecord{ID: "g1", Name: "Credenciamento", Status: store.GraphStatusDraft, Definition: validGraph()}
	eng := &fakeEngine{ref: "exec-1"}
	hub := streaming.NewMemoryHub()

	b := newTestBridge(t, st, eng, WithHub(hub))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := hub.Subscribe(ctx, streaming.EventFilter{GraphID: "g1"})
	require.NoError(t, err)

	ref, err := b.Submit(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", ref)

	// A pending execution row was recorded.
	exec, ok := st.executions["exec-1"]
	require.True(t, ok)
	assert.Equal(t, schema.ExecutionPending, exec.Status)
	assert.Equal(t, "g1", exec.GraphID)

	// First submission promotes the draft.
	assert.Equal(t, store.GraphStatusPublished, st.graphs["g1"].Status)
	require.NotNil(t, st.graphs["g1"].PublishedAt)

	// Validation is announced first, then the submission.
	ev := receiveEvent(t, events)
	assert.Equal(t, schema.EventGraphValidated, ev.EventType)
	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, payload["error_count"])

	ev = receiveEvent(t, events)
	assert.Equal(t, schema.EventGraphSubmitted, ev.EventType)
}

func receiveEvent(t *testing.T, ch <-chan streaming.EditorEvent) streaming.EditorEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for editor event")
		return streaming.EditorEvent{}
	}
}

func TestSubmitInvalidGraphNeverReachesEngine(t *testing.T) {
	g := validGraph()
	g.Steps = append(g.Steps, schema.Step{ID: "s3", Kind: schema.StepKindStart, Label: "Segundo Início"})

	st := newFakeStore()
	st.graphs["g1"] = &store.GraphRecord{ID: "g1", Name: "Credenciamento", Definition: g}
	eng := &fakeEngine{ref: "exec-1"}
	hub := streaming.NewMemoryHub()

	b := newTestBridge(t, st, eng, WithHub(hub))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := hub.Subscribe(ctx, streaming.EventFilter{GraphID: "g1"})
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), "g1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidationRequired, schema.CodeOf(err))
	assert.Zero(t, eng.submits)
	assert.Empty(t, st.executions)

	var flowErr *schema.FlowError
	require.True(t, errors.As(err, &flowErr))
	assert.NotEmpty(t, flowErr.Details["errors"])

	// The failed pass is still announced, with its finding counts.
	ev := receiveEvent(t, events)
	assert.Equal(t, schema.EventGraphValidated, ev.EventType)
	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, payload["error_count"])
}

func TestSubmitWarningsDoNotBlock(t *testing.T) {
	// validGraph has no trigger declared, which is a warning only.
	st := newFakeStore()
	st.graphs["g1"] = &store.GraphRecord{ID: "g1", Name: "Credenciamento", Definition: validGraph()}
	eng := &fakeEngine{ref: "exec-1"}

	b := newTestBridge(t, st, eng)

	ref, err := b.Submit(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", ref)
}

func TestSubmitEngineFailureRecordsNothing(t *testing.T) {
	st := newFakeStore()
	st.graphs["g1"] = &store.GraphRecord{ID: "g1", Name: "Credenciamento", Status: store.GraphStatusDraft, Definition: validGraph()}
	eng := &fakeEngine{submitErr: schema.NewError(schema.ErrCodeEngine, "engine down")}

	b := newTestBridge(t, st, eng)

	_, err := b.Submit(context.Background(), "g1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeEngine, schema.CodeOf(err))
	assert.Empty(t, st.executions)
	assert.Equal(t, store.GraphStatusDraft, st.graphs["g1"].Status)
}

func TestSubmitUnknownGraph(t *testing.T) {
	b := newTestBridge(t, newFakeStore(), &fakeEngine{})

	_, err := b.Submit(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestSubmitAlreadyPublishedStaysPublished(t *testing.T) {
	published := time.Now().UTC()
	st := newFakeStore()
	st.graphs["g1"] = &store.GraphRecord{
		ID: "g1", Name: "Credenciamento", Status: store.GraphStatusPublished,
		PublishedAt: &published, Definition: validGraph(),
	}
	eng := &fakeEngine{ref: "exec-2"}

	b := newTestBridge(t, st, eng)

	_, err := b.Submit(context.Background(), "g1")
	require.NoError(t, err)
	assert.Nil(t, st.graphUpdate, "published graph must not be touched again")
}

func TestInspectMirrorsState(t *testing.T) {
	st := newFakeStore()
	st.executions["exec-1"] = &store.Execution{Ref: "exec-1", GraphID: "g1", Status: schema.ExecutionPending}
	eng := &fakeEngine{state: &schema.ExecutionState{Status: schema.ExecutionRunning, CurrentStepID: "s2"}}

	b := newTestBridge(t, st, eng)

	state, err := b.Inspect(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionRunning, state.Status)
	assert.Equal(t, "s2", state.CurrentStepID)

	assert.Equal(t, schema.ExecutionRunning, st.executions["exec-1"].Status)
	assert.Equal(t, "s2", st.executions["exec-1"].CurrentStepID)
}

func TestInspectIgnoresStatusRegression(t *testing.T) {
	st := newFakeStore()
	st.executions["exec-1"] = &store.Execution{Ref: "exec-1", GraphID: "g1", Status: schema.ExecutionCompleted, CurrentStepID: "s2"}
	eng := &fakeEngine{state: &schema.ExecutionState{Status: schema.ExecutionRunning, CurrentStepID: "s1"}}

	b := newTestBridge(t, st, eng)

	state, err := b.Inspect(context.Background(), "exec-1")
	require.NoError(t, err)

	// The stored state stays authoritative; the regression is dropped.
	assert.Equal(t, schema.ExecutionCompleted, state.Status)
	assert.Equal(t, "s2", state.CurrentStepID)
	assert.Nil(t, st.execUpdate)
}

func TestInspectUnchangedStateSkipsWrite(t *testing.T) {
	st := newFakeStore()
	st.executions["exec-1"] = &store.Execution{Ref: "exec-1", GraphID: "g1", Status: schema.ExecutionRunning, CurrentStepID: "s1"}
	eng := &fakeEngine{state: &schema.ExecutionState{Status: schema.ExecutionRunning, CurrentStepID: "s1"}}

	b := newTestBridge(t, st, eng)

	_, err := b.Inspect(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Nil(t, st.execUpdate)
}

func TestInspectUnknownExecution(t *testing.T) {
	b := newTestBridge(t, newFakeStore(), &fakeEngine{})

	_, err := b.Inspect(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestConditionBranchingScenario(t *testing.T) {
	yes, no := schema.BranchYes, schema.BranchNo
	g := schema.ProcessGraph{
		ID:   "g1",
		Name: "Credenciamento Médico",
		Steps: []schema.Step{
			{ID: "s-start", Kind: schema.StepKindStart, Label: "Início"},
			{ID: "s-form", Kind: schema.StepKindForm, Label: "Dados do Profissional",
				Config: map[string]any{"template_id": "tpl-dados-pessoais"}},
			{ID: "s-cond", Kind: schema.StepKindCondition, Label: "Documentos OK?",
				Config: map[string]any{"question": "Documentos completos?"}},
			{ID: "s-aprovado", Kind: schema.StepKindTerminal, Label: "Aprovado"},
			{ID: "s-reprovado", Kind: schema.StepKindTerminal, Label: "Reprovado"},
		},
		Connections: []schema.Connection{
			{ID: "c1", SourceStepID: "s-start", TargetStepID: "s-form"},
			{ID: "c2", SourceStepID: "s-form", TargetStepID: "s-cond"},
			{ID: "c3", SourceStepID: "s-cond", TargetStepID: "s-aprovado", BranchKey: &yes},
			{ID: "c4", SourceStepID: "s-cond", TargetStepID: "s-reprovado", BranchKey: &no},
		},
	}

	st := newFakeStore()
	st.graphs["g1"] = &store.GraphRecord{ID: "g1", Name: g.Name, Definition: g}
	eng := &fakeEngine{ref: "exec-1"}
	b := newTestBridge(t, st, eng)

	// The decision graph validates cleanly and is accepted by the engine.
	ref, err := b.Submit(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, 1, eng.submits)

	// The engine advances along the yes branch; inspect reports the
	// yes-branch terminal as the current step and the row mirrors it.
	eng.state = &schema.ExecutionState{Status: schema.ExecutionRunning, CurrentStepID: "s-aprovado"}

	state, err := b.Inspect(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionRunning, state.Status)
	assert.Equal(t, "s-aprovado", state.CurrentStepID)
	assert.Equal(t, "s-aprovado", st.executions[ref].CurrentStepID)
}

func TestValidStatusTransitions(t *testing.T) {
	assert.True(t, validStatusTransition(schema.ExecutionPending, schema.ExecutionRunning))
	assert.True(t, validStatusTransition(schema.ExecutionPending, schema.ExecutionFailed))
	assert.True(t, validStatusTransition(schema.ExecutionRunning, schema.ExecutionCompleted))
	assert.False(t, validStatusTransition(schema.ExecutionCompleted, schema.ExecutionRunning))
	assert.False(t, validStatusTransition(schema.ExecutionFailed, schema.ExecutionPending))
}
