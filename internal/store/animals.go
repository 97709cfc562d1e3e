package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"milk-herd-backend/internal/metrics"
	"milk-herd-backend/internal/model"
	"milk-herd-backend/internal/parse"
	"milk-herd-backend/internal/pedigree"
)

// animalColumns are written by UpdateAnimal.
var animalColumns = []string{"ear_tag", "name", "sex", "breed", "date_of_birth", "sire_id", "dam_id", "is_alive", "notes", "updated_at"}

// FindByEarTag looks an animal up by its normalised ear tag.
func (s *gormStore) FindByEarTag(ctx context.Context, tag string) (*model.Animal, error) {
	normal, err := parse.EarTag(tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var a model.Animal
	if err := s.db.WithContext(ctx).Where("ear_tag = ?", normal).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pedigree.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find ear tag %q: %w", normal, err)
	}
	return &a, nil
}

// ListAnimals returns one page of animals matching the filter.
func (s *gormStore) ListAnimals(ctx context.Context, filter AnimalFilter) (AnimalPage, error) {
	q := s.db.WithContext(ctx).Model(&model.Animal{})
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(ear_tag) LIKE ? OR LOWER(name) LIKE ? OR LOWER(breed) LIKE ?", like, like, like)
	}
	if filter.Sex.Valid() {
		q = q.Where("sex = ?", filter.Sex)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return AnimalPage{}, fmt.Errorf("failed to count animals: %w", err)
	}

	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	pages := int((total + int64(size) - 1) / int64(size))
	if pages < 1 {
		pages = 1
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	order, ok := orderColumns[filter.Order]
	if !ok {
		order = orderColumns[DefaultOrder]
	}

	var animals []model.Animal
	if err := q.Order(order).Order("id").
		Offset((page - 1) * size).Limit(size).
		Find(&animals).Error; err != nil {
		return AnimalPage{}, fmt.Errorf("failed to list animals: %w", err)
	}

	return AnimalPage{Animals: animals, Total: total, Page: page, PageSize: size, Pages: pages}, nil
}

// CreateAnimal registers a new animal. Its parents must exist and have the
// right sex; a new animal cannot close a cycle.
func (s *gormStore) CreateAnimal(ctx context.Context, a *model.Animal) error {
	if err := normaliseAnimal(a); err != nil {
		return err
	}

	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	return s.edgeTx(ctx, func(tx *gorm.DB) error {
		a.ID = 0
		txs := s.withTx(tx)
		if err := txs.validate(ctx, 0, a.SireID, a.DamID); err != nil {
			return err
		}
		if err := txs.ensureUniqueEarTag(ctx, a.EarTag, 0); err != nil {
			return err
		}
		if err := tx.Omit("Sire", "Dam", "MilkRecords").Create(a).Error; err != nil {
			return translateError(err)
		}
		log.Printf("Registered animal %d (%s)", a.ID, a.EarTag)
		return nil
	})
}

// UpdateAnimal overwrites an animal's attributes and parent edges. The new
// edges pass the guard inside the same transaction as the write, and a sex
// change is refused while the animal is recorded as a parent in a role the new
// sex cannot fill.
func (s *gormStore) UpdateAnimal(ctx context.Context, a *model.Animal) error {
	if a.ID == 0 {
		return fmt.Errorf("%w: animal id is required", ErrInvalidInput)
	}
	if err := normaliseAnimal(a); err != nil {
		return err
	}

	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	return s.edgeTx(ctx, func(tx *gorm.DB) error {
		txs := s.withTx(tx)
		current, err := txs.GetAnimal(ctx, a.ID)
		if err != nil {
			return err
		}
		if current.Sex != a.Sex {
			if err := txs.ensureParentRolesKept(ctx, a.ID, a.Sex); err != nil {
				return err
			}
		}
		if err := txs.validate(ctx, a.ID, a.SireID, a.DamID); err != nil {
			return err
		}
		if err := txs.ensureUniqueEarTag(ctx, a.EarTag, a.ID); err != nil {
			return err
		}
		if err := tx.Model(&model.Animal{ID: a.ID}).Select(animalColumns).Updates(a).Error; err != nil {
			return translateError(err)
		}
		return tx.First(a, a.ID).Error
	})
}

// ValidateParents runs the guard without writing anything.
func (s *gormStore) ValidateParents(ctx context.Context, id int64, sireID, damID *int64) error {
	if id != 0 {
		if _, err := s.GetAnimal(ctx, id); err != nil {
			return err
		}
	}
	return s.validate(ctx, id, sireID, damID)
}

// CommitParentEdges sets an animal's sire and dam after the guard accepts them.
func (s *gormStore) CommitParentEdges(ctx context.Context, id int64, sireID, damID *int64) error {
	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	return s.edgeTx(ctx, func(tx *gorm.DB) error {
		txs := s.withTx(tx)
		if _, err := txs.GetAnimal(ctx, id); err != nil {
			return err
		}
		if err := txs.validate(ctx, id, sireID, damID); err != nil {
			return err
		}
		if err := tx.Model(&model.Animal{}).Where("id = ?", id).
			Updates(map[string]any{"sire_id": sireID, "dam_id": damID}).Error; err != nil {
			return fmt.Errorf("failed to commit parent edges for animal %d: %w", id, err)
		}
		return nil
	})
}

// DeleteAnimal hard-deletes an animal. Children keep existing with the edge
// nulled; milk records and push follows are removed with it.
func (s *gormStore) DeleteAnimal(ctx context.Context, id int64) error {
	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.withTx(tx).GetAnimal(ctx, id); err != nil {
			return err
		}
		if err := tx.Model(&model.Animal{}).Where("sire_id = ?", id).Update("sire_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach sired offspring of %d: %w", id, err)
		}
		if err := tx.Model(&model.Animal{}).Where("dam_id = ?", id).Update("dam_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach dam offspring of %d: %w", id, err)
		}
		if err := tx.Where("animal_id = ?", id).Delete(&model.MilkRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete milk records of %d: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM subscription_animal_mapping WHERE animal_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete push follows of %d: %w", id, err)
		}
		if err := tx.Delete(&model.Animal{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete animal %d: %w", id, err)
		}
		log.Printf("Deleted animal %d", id)
		return nil
	})
}

func (s *gormStore) validate(ctx context.Context, id int64, sireID, damID *int64) error {
	err := pedigree.NewGuard(s, s.cycleDepth).Validate(ctx, id, sireID, damID)
	metrics.ObserveValidation(err)
	return err
}

func (s *gormStore) ensureUniqueEarTag(ctx context.Context, tag string, selfID int64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Animal{}).
		Where("ear_tag = ? AND id <> ?", tag, selfID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check ear tag %q: %w", tag, err)
	}
	if count > 0 {
		return ErrDuplicateEarTag
	}
	return nil
}

func normaliseAnimal(a *model.Animal) error {
	tag, err := parse.EarTag(a.EarTag)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	a.EarTag = tag
	a.Name = strings.TrimSpace(a.Name)
	a.Breed = strings.TrimSpace(a.Breed)
	if a.Sex == "" {
		a.Sex = model.SexUnknown
	}
	if !a.Sex.Valid() {
		return fmt.Errorf("%w: unknown sex %q", ErrInvalidInput, a.Sex)
	}
	return nil
}

// ensureParentRolesKept rejects sex for animal id when it is still the sire
// or dam of another animal and the new sex no longer fits that role.
func (s *gormStore) ensureParentRolesKept(ctx context.Context, id int64, sex model.Sex) error {
	roles := []struct {
		role   pedigree.Role
		column string
		sex    model.Sex
	}{
		{pedigree.RoleSire, "sire_id", model.SexMale},
		{pedigree.RoleDam, "dam_id", model.SexFemale},
	}
	for _, r := range roles {
		if sex == r.sex {
			continue
		}
		var offspring int64
		if err := s.db.WithContext(ctx).Model(&model.Animal{}).Where(r.column+" = ?", id).Count(&offspring).Error; err != nil {
			return fmt.Errorf("failed to count offspring of %d: %w", id, err)
		}
		if offspring > 0 {
			return &pedigree.Rejection{Reason: pedigree.ReasonWrongSex, Role: r.role, ParentID: id}
		}
	}
	return nil
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEarTag
	}
	return err
}
