package pedigree

import (
	"context"
	"errors"
	"math"

	"milk-herd-backend/internal/model"
)

// RootShare is the genetic contribution of the pedigree root, in percent.
const RootShare = 100.0

// Depth limits callers clamp requested pedigree depths to.
const (
	MinDepth = 1
	MaxDepth = 6
)

// Node is one animal in a pedigree tree. Share is its genetic contribution to
// the root, halved per generation along each branch.
type Node struct {
	ID     int64   `json:"id"`
	EarTag string  `json:"ear_tag"`
	Name   string  `json:"name"`
	Breed  string  `json:"breed"`
	Share  float64 `json:"share"`
	Sire   *Node   `json:"sire"`
	Dam    *Node   `json:"dam"`
}

// Builder materialises pedigree trees.
type Builder struct {
	reg Registry
}

// NewBuilder creates a Builder.
func NewBuilder(reg Registry) *Builder {
	return &Builder{reg: reg}
}

// Build returns the pedigree of a with depth levels, a at 100%.
func (b *Builder) Build(ctx context.Context, a *model.Animal, depth int) (*Node, error) {
	return b.BuildWithShare(ctx, a, depth, RootShare)
}

// BuildWithShare returns nil for a nil animal or depth <= 0. Depth is obeyed
// as given; callers clamp it with ClampDepth. Shared ancestors reached along
// several paths are not merged.
func (b *Builder) BuildWithShare(ctx context.Context, a *model.Animal, depth int, share float64) (*Node, error) {
	if a == nil || depth <= 0 {
		return nil, nil
	}
	node := &Node{
		ID:     a.ID,
		EarTag: a.EarTag,
		Name:   a.Name,
		Breed:  a.Breed,
		Share:  roundShare(share),
	}

	var err error
	if node.Sire, err = b.parent(ctx, a.SireID, depth-1, share/2); err != nil {
		return nil, err
	}
	if node.Dam, err = b.parent(ctx, a.DamID, depth-1, share/2); err != nil {
		return nil, err
	}
	return node, nil
}

func (b *Builder) parent(ctx context.Context, id *int64, depth int, share float64) (*Node, error) {
	if id == nil || depth <= 0 {
		return nil, nil
	}
	p, err := b.reg.GetAnimal(ctx, *id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b.BuildWithShare(ctx, p, depth, share)
}

// ClampDepth clamps depth to [MinDepth, limit]. limit itself never exceeds
// MaxDepth.
func ClampDepth(depth, limit int) int {
	if limit < MinDepth {
		limit = MinDepth
	}
	if limit > MaxDepth {
		limit = MaxDepth
	}
	if depth < MinDepth {
		return MinDepth
	}
	if depth > limit {
		return limit
	}
	return depth
}

// roundShare rounds to one decimal place, ties to even.
func roundShare(share float64) float64 {
	return math.RoundToEven(share*10) / 10
}
