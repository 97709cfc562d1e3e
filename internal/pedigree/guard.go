package pedigree

import (
	"context"
	"errors"
	"fmt"

	"milk-herd-backend/internal/model"
)

// DefaultCycleCheckDepth is how many generations the guard walks upward.
const DefaultCycleCheckDepth = 6

// Guard validates parent assignments before they are committed.
type Guard struct {
	reg      Registry
	maxDepth int
}

// NewGuard creates a guard walking at most maxDepth generations.
func NewGuard(reg Registry, maxDepth int) *Guard {
	if maxDepth <= 0 {
		maxDepth = DefaultCycleCheckDepth
	}
	return &Guard{reg: reg, maxDepth: maxDepth}
}

// Validate checks a proposed sire/dam for animalID. animalID 0 denotes an
// animal that is not stored yet; such an animal cannot close a cycle, so only
// existence and sex are checked. A nil error means the edges may be committed.
// Rejections are *Rejection; any other error comes from the registry.
func (g *Guard) Validate(ctx context.Context, animalID int64, sireID, damID *int64) error {
	if animalID != 0 {
		if sireID != nil && *sireID == animalID {
			return &Rejection{Reason: ReasonSelfParent, Role: RoleSire, ParentID: animalID}
		}
		if damID != nil && *damID == animalID {
			return &Rejection{Reason: ReasonSelfParent, Role: RoleDam, ParentID: animalID}
		}
	}

	sire, err := g.resolve(ctx, RoleSire, sireID)
	if err != nil {
		return err
	}
	dam, err := g.resolve(ctx, RoleDam, damID)
	if err != nil {
		return err
	}

	if sire != nil && sire.Sex != model.SexMale {
		return &Rejection{Reason: ReasonWrongSex, Role: RoleSire, ParentID: sire.ID}
	}
	if dam != nil && dam.Sex != model.SexFemale {
		return &Rejection{Reason: ReasonWrongSex, Role: RoleDam, ParentID: dam.ID}
	}

	if animalID == 0 {
		return nil
	}
	for _, p := range []struct {
		role Role
		id   *int64
	}{{RoleSire, sireID}, {RoleDam, damID}} {
		if p.id == nil {
			continue
		}
		cycle, err := g.reachesAncestor(ctx, *p.id, animalID)
		if err != nil {
			return err
		}
		if cycle {
			return &Rejection{Reason: ReasonAncestryCycle, Role: p.role, ParentID: *p.id}
		}
	}
	return nil
}

func (g *Guard) resolve(ctx context.Context, role Role, id *int64) (*model.Animal, error) {
	if id == nil {
		return nil, nil
	}
	a, err := g.reg.GetAnimal(ctx, *id)
	if errors.Is(err, ErrNotFound) {
		return nil, &Rejection{Reason: ReasonUnknownParent, Role: role, ParentID: *id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %d: %w", role, *id, err)
	}
	return a, nil
}

// reachesAncestor walks committed edges breadth-first from start and reports
// whether target is met within maxDepth generations. The seen set keeps
// already-malformed data from looping.
func (g *Guard) reachesAncestor(ctx context.Context, start, target int64) (bool, error) {
	seen := make(map[int64]struct{})
	current := []int64{start}
	for depth := 0; len(current) > 0 && depth < g.maxDepth; depth++ {
		var next []int64
		for _, id := range current {
			if id == target {
				return true, nil
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			a, err := g.reg.GetAnimal(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return false, fmt.Errorf("failed to load ancestor %d: %w", id, err)
			}
			if a.SireID != nil {
				next = append(next, *a.SireID)
			}
			if a.DamID != nil {
				next = append(next, *a.DamID)
			}
		}
		current = next
	}
	return false, nil
}
