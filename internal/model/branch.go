package model

import (
	"github.com/credativa/procflow/internal/registry"
	"github.com/credativa/procflow/pkg/schema"
)

// Edge colors. Affirming and negating outcomes get distinct colors so the
// author can tell branches apart at a glance; everything else is neutral.
const (
	affirmColor  = "#16a34a"
	negateColor  = "#dc2626"
	neutralColor = "#64748b"
)

// Branch is the resolved outcome of drawing a connection out of a source
// step handle: the semantic branch key plus its display projection.
type Branch struct {
	Key   *schema.BranchKey
	Label string
	Style schema.ConnectionStyle
}

// ResolveBranch maps a source step kind and the handle chosen at
// connection-draw time to a branch. It is a pure function with no hidden
// state: re-deriving branches from a persisted graph always reproduces the
// original visualization.
//
// For the condition kind, handle "yes" affirms and "no" negates. Every other
// kind takes an empty handle and yields a neutral, key-less branch.
func ResolveBranch(kind schema.StepKind, handle string) (Branch, error) {
	d, err := registry.Describe(kind)
	if err != nil {
		return Branch{}, err
	}

	if !d.Branching() {
		if handle != "" {
			return Branch{}, schema.NewErrorf(schema.ErrCodeValidation,
				"step kind %q has a single outflow; handle %q not allowed", kind, handle)
		}
		return Branch{Style: schema.ConnectionStyle{Color: neutralColor}}, nil
	}

	key := schema.BranchKey(handle)
	for _, bk := range d.BranchKeys {
		if bk == key {
			return branchFor(key), nil
		}
	}
	return Branch{}, schema.NewErrorf(schema.ErrCodeValidation,
		"unknown branch handle %q for step kind %q", handle, kind)
}

// branchFor is the projection from branch key to display attributes.
func branchFor(key schema.BranchKey) Branch {
	k := key
	switch key {
	case schema.BranchYes:
		return Branch{Key: &k, Label: "✓ Sim", Style: schema.ConnectionStyle{Color: affirmColor}}
	case schema.BranchNo:
		return Branch{Key: &k, Label: "✗ Não", Style: schema.ConnectionStyle{Color: negateColor}}
	default:
		return Branch{Key: &k, Label: string(key), Style: schema.ConnectionStyle{Color: neutralColor}}
	}
}

// Decorate recomputes a connection's derived label and style from its branch
// key. Called after every mutation touching the connection, on hydrate, and
// on deserialization so visual state can never diverge from semantic state.
func Decorate(c *schema.Connection) {
	if c.BranchKey == nil {
		c.Label = ""
		c.Style = schema.ConnectionStyle{Color: neutralColor}
		return
	}
	b := branchFor(*c.BranchKey)
	c.Label = b.Label
	c.Style = b.Style
}
