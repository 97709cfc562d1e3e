package pedigree

import (
	"context"
	"sort"

	"milk-herd-backend/internal/model"
)

// memRegistry is a map-backed Registry for unit tests.
type memRegistry struct {
	animals map[int64]model.Animal
	lookups int
	failID  int64
	failErr error
}

func newMemRegistry(animals ...model.Animal) *memRegistry {
	r := &memRegistry{animals: make(map[int64]model.Animal)}
	for _, a := range animals {
		r.animals[a.ID] = a
	}
	return r
}

func (r *memRegistry) put(a model.Animal) { r.animals[a.ID] = a }

func (r *memRegistry) GetAnimal(_ context.Context, id int64) (*model.Animal, error) {
	r.lookups++
	if r.failErr != nil && id == r.failID {
		return nil, r.failErr
	}
	a, ok := r.animals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *memRegistry) ListChildrenOf(_ context.Context, id int64) ([]model.Animal, error) {
	return r.filter(func(a model.Animal) bool {
		return (a.SireID != nil && *a.SireID == id) || (a.DamID != nil && *a.DamID == id)
	}), nil
}

func (r *memRegistry) ListByParentPair(_ context.Context, sireID, damID *int64) ([]model.Animal, error) {
	probe := model.Animal{SireID: sireID, DamID: damID}
	return r.filter(func(a model.Animal) bool { return probe.SameParents(&a) }), nil
}

func (r *memRegistry) ListByAnyParent(_ context.Context, sireID, damID *int64) ([]model.Animal, error) {
	return r.filter(func(a model.Animal) bool {
		return (sireID != nil && a.SireID != nil && *a.SireID == *sireID) ||
			(damID != nil && a.DamID != nil && *a.DamID == *damID)
	}), nil
}

func (r *memRegistry) filter(keep func(model.Animal) bool) []model.Animal {
	var out []model.Animal
	for _, a := range r.animals {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func id(v int64) *int64 { return &v }

func bull(i int64, tag string) model.Animal {
	return model.Animal{ID: i, EarTag: tag, Sex: model.SexMale, IsAlive: true}
}

func cow(i int64, tag string) model.Animal {
	return model.Animal{ID: i, EarTag: tag, Sex: model.SexFemale, IsAlive: true}
}
