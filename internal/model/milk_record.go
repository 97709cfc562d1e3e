package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LitersPrecision is the number of decimal places stored for yields.
const LitersPrecision = 2

// MilkRecord is one day's yield for an animal. (animal_id, date) is unique.
type MilkRecord struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	AnimalID  int64           `gorm:"not null;uniqueIndex:idx_milk_animal_date" json:"animal"`
	Date      datatypes.Date  `gorm:"not null;uniqueIndex:idx_milk_animal_date;index" json:"date"`
	Liters    decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"liters"`
	Notes     string          `gorm:"size:255" json:"notes"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`

	// Associations
	Animal *Animal `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
