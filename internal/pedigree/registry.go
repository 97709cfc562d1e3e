// Package pedigree interprets animal records linked by sire and dam edges as a
// family graph. It guards parent writes against ancestry cycles, classifies
// sibling relationships and materialises depth-bounded pedigree trees.
//
// Nothing here holds state of its own; every query goes through a Registry.
package pedigree

import (
	"context"
	"errors"

	"milk-herd-backend/internal/model"
)

// ErrNotFound is returned by a Registry when an id does not resolve.
var ErrNotFound = errors.New("animal not found")

// Registry is the read side of the animal store.
type Registry interface {
	GetAnimal(ctx context.Context, id int64) (*model.Animal, error)
	// ListChildrenOf returns animals whose sire or dam is id.
	ListChildrenOf(ctx context.Context, id int64) ([]model.Animal, error)
	// ListByParentPair returns animals with exactly this sire and dam; a nil
	// id matches a missing edge.
	ListByParentPair(ctx context.Context, sireID, damID *int64) ([]model.Animal, error)
	// ListByAnyParent returns animals sharing the sire or the dam. Nil ids
	// are ignored.
	ListByAnyParent(ctx context.Context, sireID, damID *int64) ([]model.Animal, error)
}
