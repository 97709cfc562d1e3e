package model

import (
	"time"

	"gorm.io/datatypes"
)

// Sex is the recorded sex of an animal.
type Sex string

const (
	SexFemale  Sex = "F"
	SexMale    Sex = "M"
	SexUnknown Sex = "U"
)

// Valid reports whether s is one of the known codes.
func (s Sex) Valid() bool {
	switch s {
	case SexFemale, SexMale, SexUnknown:
		return true
	}
	return false
}

// Animal is a single herd member. Sire and dam are weak references by id.
type Animal struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	EarTag      string          `gorm:"uniqueIndex;size:50;not null" json:"ear_tag"`
	Name        string          `gorm:"size:100" json:"name"`
	Sex         Sex             `gorm:"size:1;not null;index" json:"sex"`
	Breed       string          `gorm:"size:100;index" json:"breed"`
	DateOfBirth *datatypes.Date `json:"date_of_birth"`
	SireID      *int64          `gorm:"index" json:"sire_id"`
	DamID       *int64          `gorm:"index" json:"dam_id"`
	IsAlive     bool            `gorm:"not null" json:"is_alive"`
	Notes       string          `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Associations
	Sire        *Animal      `gorm:"foreignKey:SireID;constraint:OnDelete:SET NULL" json:"-"`
	Dam         *Animal      `gorm:"foreignKey:DamID;constraint:OnDelete:SET NULL" json:"-"`
	MilkRecords []MilkRecord `gorm:"foreignKey:AnimalID;constraint:OnDelete:CASCADE" json:"-"`
}

// DisplayName is the name when one is set, the ear tag otherwise.
func (a *Animal) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.EarTag
}

// AgeDays returns whole days between the date of birth and today. ok is false
// when no date of birth is recorded.
func (a *Animal) AgeDays(today time.Time) (days int, ok bool) {
	if a.DateOfBirth == nil {
		return 0, false
	}
	y, m, d := time.Time(*a.DateOfBirth).Date()
	born := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ty, tm, td := today.Date()
	now := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(now.Sub(born).Hours() / 24), true
}

// SameParents reports whether both animals have identical sire and dam edges,
// treating two missing edges as equal.
func (a *Animal) SameParents(other *Animal) bool {
	return sameRef(a.SireID, other.SireID) && sameRef(a.DamID, other.DamID)
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NewDate truncates t to a calendar date in UTC.
func NewDate(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// DatePtr is NewDate returning a pointer, for optional columns.
func DatePtr(t time.Time) *datatypes.Date {
	d := NewDate(t)
	return &d
}
