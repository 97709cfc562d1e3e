package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"milk-herd-backend/internal/model"
	"milk-herd-backend/internal/pedigree"
)

// Store defines the interface for all database operations.
type Store interface {
	pedigree.Registry

	FindByEarTag(ctx context.Context, tag string) (*model.Animal, error)
	ListAnimals(ctx context.Context, filter AnimalFilter) (AnimalPage, error)
	CreateAnimal(ctx context.Context, a *model.Animal) error
	UpdateAnimal(ctx context.Context, a *model.Animal) error
	DeleteAnimal(ctx context.Context, id int64) error
	ValidateParents(ctx context.Context, id int64, sireID, damID *int64) error
	CommitParentEdges(ctx context.Context, id int64, sireID, damID *int64) error

	GetMilkRecord(ctx context.Context, id int64) (*model.MilkRecord, error)
	ListMilkRecords(ctx context.Context, animalID int64) ([]model.MilkRecord, error)
	CreateMilkRecord(ctx context.Context, r *model.MilkRecord) error
	UpdateMilkRecord(ctx context.Context, r *model.MilkRecord) error
	DeleteMilkRecord(ctx context.Context, id int64) error
	UpsertMilkRecords(ctx context.Context, records []model.MilkRecord) (int, error)

	HerdStats(ctx context.Context) (HerdStats, error)
	MilkSeries(ctx context.Context, from, to time.Time) ([]DailyYield, error)
	TopBreeds(ctx context.Context, n int) ([]BreedCount, error)

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db         *gorm.DB
	cycleDepth int
	// edgeMu serialises validate-then-commit of parent edges.
	edgeMu *sync.Mutex
}

// Option configures a gormStore.
type Option func(*gormStore)

// WithCycleCheckDepth sets how many generations the parent guard walks.
func WithCycleCheckDepth(depth int) Option {
	return func(s *gormStore) {
		if depth > 0 {
			s.cycleDepth = depth
		}
	}
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{
		db:         db,
		cycleDepth: pedigree.DefaultCycleCheckDepth,
		edgeMu:     &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// withTx returns a store bound to tx, used as the guard's registry so that
// validation reads the same snapshot the commit writes to.
func (s *gormStore) withTx(tx *gorm.DB) *gormStore {
	return &gormStore{db: tx, cycleDepth: s.cycleDepth, edgeMu: s.edgeMu}
}

// serializationFailure is the postgres SQLSTATE for a serializable
// transaction that lost a conflict.
const serializationFailure = "40001"

// edgeTx runs fn in a parent-edge transaction. A serialization failure is
// retried once; a second one is reported as ErrConcurrentUpdate.
func (s *gormStore) edgeTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn, s.txOptions()...)
		if !isSerializationFailure(err) {
			return err
		}
		log.Printf("Parent-edge transaction hit a serialization failure (attempt %d): %v", attempt, err)
	}
	return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

// txOptions asks postgres for serializable isolation on parent-edge writes.
// SQLite transactions are already serialised.
func (s *gormStore) txOptions() []*sql.TxOptions {
	if s.db.Dialector != nil && s.db.Dialector.Name() == "postgres" {
		return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	return nil
}

// GetAnimal loads one animal by id.
func (s *gormStore) GetAnimal(ctx context.Context, id int64) (*model.Animal, error) {
	var a model.Animal
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pedigree.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load animal %d: %w", id, err)
	}
	return &a, nil
}

// ListChildrenOf returns animals that have id as sire or dam.
func (s *gormStore) ListChildrenOf(ctx context.Context, id int64) ([]model.Animal, error) {
	var children []model.Animal
	if err := s.db.WithContext(ctx).
		Where("sire_id = ? OR dam_id = ?", id, id).
		Order("date_of_birth").Order("ear_tag").
		Find(&children).Error; err != nil {
		return nil, fmt.Errorf("failed to list children of %d: %w", id, err)
	}
	return children, nil
}

// ListByParentPair returns animals with exactly this sire and dam.
func (s *gormStore) ListByParentPair(ctx context.Context, sireID, damID *int64) ([]model.Animal, error) {
	q := s.db.WithContext(ctx)
	if sireID == nil {
		q = q.Where("sire_id IS NULL")
	} else {
		q = q.Where("sire_id = ?", *sireID)
	}
	if damID == nil {
		q = q.Where("dam_id IS NULL")
	} else {
		q = q.Where("dam_id = ?", *damID)
	}

	var animals []model.Animal
	if err := q.Order("ear_tag").Find(&animals).Error; err != nil {
		return nil, fmt.Errorf("failed to list animals by parent pair: %w", err)
	}
	return animals, nil
}

// ListByAnyParent returns animals sharing the given sire or dam.
func (s *gormStore) ListByAnyParent(ctx context.Context, sireID, damID *int64) ([]model.Animal, error) {
	var conds []string
	var args []any
	if sireID != nil {
		conds = append(conds, "sire_id = ?")
		args = append(args, *sireID)
	}
	if damID != nil {
		conds = append(conds, "dam_id = ?")
		args = append(args, *damID)
	}
	if len(conds) == 0 {
		return nil, nil
	}

	var animals []model.Animal
	if err := s.db.WithContext(ctx).
		Where(strings.Join(conds, " OR "), args...).
		Order("ear_tag").
		Find(&animals).Error; err != nil {
		return nil, fmt.Errorf("failed to list animals by parent: %w", err)
	}
	return animals, nil
}
