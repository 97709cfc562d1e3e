package store

import (
	"errors"

	"milk-herd-backend/internal/model"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateEarTag     = errors.New("ear tag already registered")
	ErrDuplicateMilkRecord = errors.New("milk record already exists for this animal and date")
	ErrMilkRecordNotFound  = errors.New("milk record not found")
	ErrConcurrentUpdate    = errors.New("herd graph changed concurrently, retry the request")
)

// MaxLiters is the largest yield a decimal(6,2) column holds.
const MaxLiters = 9999.99

// AnimalFilter selects a page of animals.
type AnimalFilter struct {
	Query    string
	Sex      model.Sex
	Order    string
	Page     int
	PageSize int
}

// AnimalPage is one page of ListAnimals.
type AnimalPage struct {
	Animals  []model.Animal
	Total    int64
	Page     int
	PageSize int
	Pages    int
}

// HerdStats counts animals by sex.
type HerdStats struct {
	Total   int64 `json:"total"`
	Females int64 `json:"females"`
	Males   int64 `json:"males"`
	Unknown int64 `json:"unknown"`
}

// DailyYield is the herd total for one day.
type DailyYield struct {
	Date   string  `json:"date"`
	Liters float64 `json:"liters"`
}

// BreedCount is the number of animals of one breed.
type BreedCount struct {
	Breed string `json:"breed"`
	Count int64  `json:"count"`
}

// orderColumns whitelists the sort keys accepted by ListAnimals.
var orderColumns = map[string]string{
	"ear_tag":        "ear_tag",
	"name":           "name",
	"breed":          "breed",
	"date_of_birth":  "date_of_birth",
	"-date_of_birth": "date_of_birth DESC",
}

// DefaultOrder is used when AnimalFilter.Order is not whitelisted.
const DefaultOrder = "ear_tag"
