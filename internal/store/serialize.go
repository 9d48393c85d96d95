package store

import (
	"encoding/json"

	"github.com/credativa/procflow/internal/model"
	"github.com/credativa/procflow/pkg/schema"
)

// Serialize encodes a process graph for storage. Derived connection
// attributes (label, style) are excluded from the encoding; they are pure
// projections of the branch key and are recomputed on load. Persisting only
// the semantic fields keeps records stable when display conventions change.
func Serialize(g *schema.ProcessGraph) ([]byte, error) {
	if g == nil {
		return nil, schema.NewError(schema.ErrCodeInternalFault, "process graph is nil")
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "failed to serialize process graph").WithCause(err)
	}
	return data, nil
}

// Deserialize decodes a stored process graph and recomputes every
// connection's derived decorations, so a serialize/deserialize round trip
// yields a graph equivalent to the original including its visuals.
func Deserialize(data []byte) (*schema.ProcessGraph, error) {
	var g schema.ProcessGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "failed to deserialize process graph").WithCause(err)
	}
	for i := range g.Connections {
		model.Decorate(&g.Connections[i])
	}
	return &g, nil
}
