package streaming

import (
	"context"
	"sync"
)

const defaultChannelBuffer = 64

// panelSub is one subscribed editor panel: its delivery channel and the set
// of event types it renders (empty set means all).
type panelSub struct {
	ch    chan EditorEvent
	types map[string]struct{}
}

// MemoryHub fans editor events out in process. Panels are indexed by the
// graph they watch, so a portal with many graphs open only walks the panels
// of the graph that actually mutated; the "" bucket holds panels watching
// every graph. Delivery is non-blocking: a panel that stops draining its
// channel loses events instead of stalling the mutation that produced them,
// and re-renders from a fresh Snapshot when it resumes.
type MemoryHub struct {
	mu     sync.Mutex
	seq    uint64
	panels map[string]map[uint64]*panelSub // graph id -> subscriber id -> panel
	buffer int
}

// HubOption configures a MemoryHub.
type HubOption func(*MemoryHub)

// WithBuffer sets the per-panel channel buffer.
func WithBuffer(n int) HubOption {
	return func(h *MemoryHub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewMemoryHub creates a new MemoryHub.
func NewMemoryHub(opts ...HubOption) *MemoryHub {
	h := &MemoryHub{
		panels: make(map[string]map[uint64]*panelSub),
		buffer: defaultChannelBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish delivers an event to the panels watching its graph and to the
// panels watching all graphs.
func (h *MemoryHub) Publish(ctx context.Context, event EditorEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	deliver(h.panels[event.GraphID], event)
	if event.GraphID != "" {
		deliver(h.panels[""], event)
	}
	return nil
}

func deliver(panels map[uint64]*panelSub, event EditorEvent) {
	for _, p := range panels {
		if len(p.types) > 0 {
			if _, ok := p.types[event.EventType]; !ok {
				continue
			}
		}
		select {
		case p.ch <- event:
		default:
			// panel stopped draining; it re-syncs on resume
		}
	}
}

// Subscribe registers a panel for the graph named in the filter ("" for all
// graphs), optionally narrowed to specific event types. Returns the delivery
// channel and a cancel function that deregisters the panel.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan EditorEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p := &panelSub{ch: make(chan EditorEvent, h.buffer)}
	if len(filter.EventTypes) > 0 {
		p.types = make(map[string]struct{}, len(filter.EventTypes))
		for _, t := range filter.EventTypes {
			p.types[t] = struct{}{}
		}
	}

	h.mu.Lock()
	h.seq++
	id := h.seq
	bucket := h.panels[filter.GraphID]
	if bucket == nil {
		bucket = make(map[uint64]*panelSub)
		h.panels[filter.GraphID] = bucket
	}
	bucket[id] = p
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if bucket := h.panels[filter.GraphID]; bucket != nil {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(h.panels, filter.GraphID)
			}
		}
		h.mu.Unlock()
	}

	return p.ch, cancel, nil
}
