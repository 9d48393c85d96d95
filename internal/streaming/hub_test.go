package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, ch <-chan EditorEvent) EditorEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return EditorEvent{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan EditorEvent) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_added", StepID: "s1"}))

	ev := receiveOne(t, ch)
	assert.Equal(t, "g1", ev.GraphID)
	assert.Equal(t, "step_added", ev.EventType)
	assert.Equal(t, "s1", ev.StepID)
}

func TestFilterByGraphID(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{GraphID: "g1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g2", EventType: "step_added"}))
	assertNoEvent(t, ch)

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_added"}))
	ev := receiveOne(t, ch)
	assert.Equal(t, "g1", ev.GraphID)
}

func TestFilterByEventTypes(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{EventTypes: []string{"graph_submitted"}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_added"}))
	assertNoEvent(t, ch)

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "graph_submitted"}))
	ev := receiveOne(t, ch)
	assert.Equal(t, "graph_submitted", ev.EventType)
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_added"}))
	assertNoEvent(t, ch)
}

func TestPublishWithCancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hub.Publish(ctx, EditorEvent{GraphID: "g1"})
	require.Error(t, err)

	_, _, err = hub.Subscribe(ctx, EventFilter{})
	require.Error(t, err)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// Publish must not block even when the subscriber never reads.
	for i := 0; i < defaultChannelBuffer+10; i++ {
		require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_moved"}))
	}

	assert.Len(t, ch, defaultChannelBuffer)
}

func TestAllGraphsSubscriberSeesEveryGraph(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	all, cancelAll, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancelAll()
	only, cancelOnly, err := hub.Subscribe(ctx, EventFilter{GraphID: "g1"})
	require.NoError(t, err)
	defer cancelOnly()

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_added"}))
	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g2", EventType: "step_removed"}))

	assert.Equal(t, "g1", receiveOne(t, all).GraphID)
	assert.Equal(t, "g2", receiveOne(t, all).GraphID)

	assert.Equal(t, "g1", receiveOne(t, only).GraphID)
	assertNoEvent(t, only)
}

func TestWithBuffer(t *testing.T) {
	hub := NewMemoryHub(WithBuffer(1))
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_added"}))
	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_moved"}))

	// Only the first event fits; the overflow is dropped, not blocked on.
	assert.Equal(t, "step_added", receiveOne(t, ch).EventType)
	assertNoEvent(t, ch)
}

func TestMultipleSubscribers(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, hub.Publish(ctx, EditorEvent{GraphID: "g1", EventType: "step_added"}))

	assert.Equal(t, "step_added", receiveOne(t, ch1).EventType)
	assert.Equal(t, "step_added", receiveOne(t, ch2).EventType)
}
