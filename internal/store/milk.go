package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"milk-herd-backend/internal/model"
)

var maxLiters = decimal.NewFromFloat(MaxLiters)

// GetMilkRecord loads one milk record.
func (s *gormStore) GetMilkRecord(ctx context.Context, id int64) (*model.MilkRecord, error) {
	var r model.MilkRecord
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilkRecordNotFound
		}
		return nil, fmt.Errorf("failed to load milk record %d: %w", id, err)
	}
	return &r, nil
}

// ListMilkRecords returns an animal's yields, newest first.
func (s *gormStore) ListMilkRecords(ctx context.Context, animalID int64) ([]model.MilkRecord, error) {
	var records []model.MilkRecord
	if err := s.db.WithContext(ctx).
		Where("animal_id = ?", animalID).
		Order("date DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list milk records of %d: %w", animalID, err)
	}
	return records, nil
}

// CreateMilkRecord stores a yield. There is at most one record per animal and day.
func (s *gormStore) CreateMilkRecord(ctx context.Context, r *model.MilkRecord) error {
	if err := normaliseMilkRecord(r); err != nil {
		return err
	}
	r.ID = 0
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txs := s.withTx(tx)
		if _, err := txs.GetAnimal(ctx, r.AnimalID); err != nil {
			return err
		}
		if err := txs.ensureUniqueMilkDay(ctx, r); err != nil {
			return err
		}
		if err := tx.Omit("Animal").Create(r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateMilkRecord
			}
			return fmt.Errorf("failed to create milk record: %w", err)
		}
		return nil
	})
}

// UpdateMilkRecord overwrites a stored yield.
func (s *gormStore) UpdateMilkRecord(ctx context.Context, r *model.MilkRecord) error {
	if err := normaliseMilkRecord(r); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txs := s.withTx(tx)
		if _, err := txs.GetMilkRecord(ctx, r.ID); err != nil {
			return err
		}
		if _, err := txs.GetAnimal(ctx, r.AnimalID); err != nil {
			return err
		}
		if err := txs.ensureUniqueMilkDay(ctx, r); err != nil {
			return err
		}
		if err := tx.Model(&model.MilkRecord{ID: r.ID}).
			Select("animal_id", "date", "liters", "notes", "updated_at").
			Updates(r).Error; err != nil {
			return fmt.Errorf("failed to update milk record %d: %w", r.ID, err)
		}
		return tx.First(r, r.ID).Error
	})
}

// DeleteMilkRecord removes one yield.
func (s *gormStore) DeleteMilkRecord(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.MilkRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete milk record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMilkRecordNotFound
	}
	return nil
}

// UpsertMilkRecords writes a batch of yields, replacing liters and notes of
// records that already exist for the same animal and day.
func (s *gormStore) UpsertMilkRecords(ctx context.Context, records []model.MilkRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for i := range records {
		if err := normaliseMilkRecord(&records[i]); err != nil {
			return 0, err
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Animal").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "animal_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"liters", "notes", "updated_at"}),
		}).Create(&records).Error
	})
	if err != nil {
		return 0, fmt.Errorf("batch upsert milk records failed: %w", err)
	}
	return len(records), nil
}

func (s *gormStore) ensureUniqueMilkDay(ctx context.Context, r *model.MilkRecord) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.MilkRecord{}).
		Where("animal_id = ? AND date = ? AND id <> ?", r.AnimalID, r.Date, r.ID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check milk record uniqueness: %w", err)
	}
	if count > 0 {
		return ErrDuplicateMilkRecord
	}
	return nil
}

func normaliseMilkRecord(r *model.MilkRecord) error {
	if r.AnimalID == 0 {
		return fmt.Errorf("%w: animal is required", ErrInvalidInput)
	}
	if time.Time(r.Date).IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	r.Date = model.NewDate(time.Time(r.Date))
	r.Liters = r.Liters.Round(model.LitersPrecision)
	if r.Liters.IsNegative() {
		return fmt.Errorf("%w: liters must not be negative", ErrInvalidInput)
	}
	if r.Liters.GreaterThan(maxLiters) {
		return fmt.Errorf("%w: liters must not exceed %.2f", ErrInvalidInput, MaxLiters)
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}
