package pedigree

import (
	"context"
	"sort"
	"time"

	"milk-herd-backend/internal/model"
)

// Classifier answers sibling and offspring queries against a Registry.
type Classifier struct {
	reg Registry
}

// NewClassifier creates a Classifier.
func NewClassifier(reg Registry) *Classifier {
	return &Classifier{reg: reg}
}

// FullSiblings returns animals other than a with the same sire and dam. An
// animal with no recorded parents has no determinable full siblings.
func (c *Classifier) FullSiblings(ctx context.Context, a *model.Animal) ([]model.Animal, error) {
	if a.SireID == nil && a.DamID == nil {
		return nil, nil
	}
	candidates, err := c.reg.ListByParentPair(ctx, a.SireID, a.DamID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Animal, 0, len(candidates))
	for _, s := range candidates {
		if s.ID == a.ID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// HalfSiblings returns animals sharing the sire or the dam with a, excluding a
// and every full sibling.
func (c *Classifier) HalfSiblings(ctx context.Context, a *model.Animal) ([]model.Animal, error) {
	if a.SireID == nil && a.DamID == nil {
		return nil, nil
	}
	candidates, err := c.reg.ListByAnyParent(ctx, a.SireID, a.DamID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Animal, 0, len(candidates))
	for i := range candidates {
		s := &candidates[i]
		if s.ID == a.ID || s.SameParents(a) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

// Children returns animals that have a as sire or dam, sorted for display.
func (c *Classifier) Children(ctx context.Context, a *model.Animal) ([]model.Animal, error) {
	children, err := c.reg.ListChildrenOf(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	SortByBirth(children)
	return children, nil
}

// SortByBirth orders animals by date of birth, then ear tag. Animals without a
// date of birth go last.
func SortByBirth(animals []model.Animal) {
	sort.SliceStable(animals, func(i, j int) bool {
		bi, bj := animals[i].DateOfBirth, animals[j].DateOfBirth
		switch {
		case bi == nil && bj != nil:
			return false
		case bi != nil && bj == nil:
			return true
		case bi != nil && bj != nil:
			ti, tj := time.Time(*bi), time.Time(*bj)
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
		}
		return animals[i].EarTag < animals[j].EarTag
	})
}
