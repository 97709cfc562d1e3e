package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"milk-herd-backend/internal/model"
)

const dateLayout = "2006-01-02"

// HerdStats counts animals by sex; anything not F or M counts as unknown.
func (s *gormStore) HerdStats(ctx context.Context) (HerdStats, error) {
	type sexRow struct {
		Sex   model.Sex
		Count int64
	}
	var rows []sexRow
	if err := s.db.WithContext(ctx).
		Model(&model.Animal{}).
		Select("sex, COUNT(*) as count").
		Group("sex").
		Scan(&rows).Error; err != nil {
		return HerdStats{}, fmt.Errorf("failed to count animals by sex: %w", err)
	}

	var stats HerdStats
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Sex {
		case model.SexFemale:
			stats.Females = r.Count
		case model.SexMale:
			stats.Males = r.Count
		}
	}
	stats.Unknown = stats.Total - stats.Females - stats.Males
	return stats, nil
}

// MilkSeries returns herd totals for every day in [from, to], zero-filled.
func (s *gormStore) MilkSeries(ctx context.Context, from, to time.Time) ([]DailyYield, error) {
	start, end := time.Time(model.NewDate(from)), time.Time(model.NewDate(to))
	if end.Before(start) {
		return []DailyYield{}, nil
	}

	type dayRow struct {
		Date  datatypes.Date
		Total decimal.Decimal
	}
	var rows []dayRow
	if err := s.db.WithContext(ctx).
		Model(&model.MilkRecord{}).
		Select("date, SUM(liters) as total").
		Where("date BETWEEN ? AND ?", model.NewDate(start), model.NewDate(end)).
		Group("date").
		Order("date").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to sum milk yields: %w", err)
	}

	totals := make(map[string]float64, len(rows))
	for _, r := range rows {
		totals[time.Time(r.Date).UTC().Format(dateLayout)] = r.Total.InexactFloat64()
	}

	series := make([]DailyYield, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		series = append(series, DailyYield{Date: key, Liters: totals[key]})
	}
	return series, nil
}

// TopBreeds returns the n most common non-empty breeds.
func (s *gormStore) TopBreeds(ctx context.Context, n int) ([]BreedCount, error) {
	var rows []BreedCount
	if err := s.db.WithContext(ctx).
		Model(&model.Animal{}).
		Select("breed, COUNT(*) as count").
		Where("breed <> ''").
		Group("breed").
		Order("count DESC").Order("breed").
		Limit(n).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count breeds: %w", err)
	}
	return rows, nil
}
