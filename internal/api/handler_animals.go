package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"milk-herd-backend/internal/model"
	"milk-herd-backend/internal/pedigree"
	"milk-herd-backend/internal/store"
)

const dateLayout = "2006-01-02"

type animalRequest struct {
	EarTag      string  `json:"ear_tag" binding:"required"`
	Name        string  `json:"name" binding:"max=100"`
	Sex         string  `json:"sex" binding:"omitempty,oneof=F M U"`
	Breed       string  `json:"breed" binding:"max=100"`
	DateOfBirth *string `json:"date_of_birth"`
	SireID      *int64  `json:"sire_id"`
	DamID       *int64  `json:"dam_id"`
	IsAlive     *bool   `json:"is_alive"`
	Notes       string  `json:"notes"`
}

// apply copies the request onto a. An omitted is_alive keeps a's value.
func (r *animalRequest) apply(a *model.Animal) error {
	a.EarTag = r.EarTag
	a.Name = r.Name
	a.Sex = model.Sex(r.Sex)
	a.Breed = r.Breed
	a.SireID = r.SireID
	a.DamID = r.DamID
	a.Notes = r.Notes
	if r.IsAlive != nil {
		a.IsAlive = *r.IsAlive
	}

	a.DateOfBirth = nil
	if r.DateOfBirth != nil && *r.DateOfBirth != "" {
		t, err := time.Parse(dateLayout, *r.DateOfBirth)
		if err != nil {
			return fmt.Errorf("date_of_birth must be YYYY-MM-DD: %w", err)
		}
		a.DateOfBirth = model.DatePtr(t)
	}
	return nil
}

// AnimalResponse is the API view of an animal.
type AnimalResponse struct {
	ID          int64     `json:"id"`
	EarTag      string    `json:"ear_tag"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Sex         model.Sex `json:"sex"`
	Breed       string    `json:"breed"`
	DateOfBirth *string   `json:"date_of_birth"`
	AgeDays     *int      `json:"age_days"`
	SireID      *int64    `json:"sire_id"`
	DamID       *int64    `json:"dam_id"`
	IsAlive     bool      `json:"is_alive"`
	Notes       string    `json:"notes"`
}

// AnimalDetailResponse adds parents and siblings to AnimalResponse.
type AnimalDetailResponse struct {
	AnimalResponse
	Sire         *pedigree.Summary  `json:"sire"`
	Dam          *pedigree.Summary  `json:"dam"`
	FullSiblings []pedigree.Summary `json:"full_siblings"`
	HalfSiblings []pedigree.Summary `json:"half_siblings"`
}

// AnimalListResponse is one page of animals.
type AnimalListResponse struct {
	Items    []AnimalResponse `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Pages    int              `json:"pages"`
}

func (h *Handler) animalResponse(a *model.Animal) AnimalResponse {
	resp := AnimalResponse{
		ID:          a.ID,
		EarTag:      a.EarTag,
		Name:        a.Name,
		DisplayName: a.DisplayName(),
		Sex:         a.Sex,
		Breed:       a.Breed,
		SireID:      a.SireID,
		DamID:       a.DamID,
		IsAlive:     a.IsAlive,
		Notes:       a.Notes,
	}
	if a.DateOfBirth != nil {
		dob := time.Time(*a.DateOfBirth).Format(dateLayout)
		resp.DateOfBirth = &dob
	}
	if days, ok := a.AgeDays(h.now().UTC()); ok {
		resp.AgeDays = &days
	}
	return resp
}

// summary resolves a parent reference; a dangling id yields nil.
func (h *Handler) summary(ctx context.Context, id *int64) (*pedigree.Summary, error) {
	if id == nil {
		return nil, nil
	}
	p, err := h.store.GetAnimal(ctx, *id)
	if errors.Is(err, pedigree.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pedigree.Summary{ID: p.ID, EarTag: p.EarTag, Name: p.Name}, nil
}

// ListAnimals handles GET /api/animals.
func (h *Handler) ListAnimals(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, err := strconv.Atoi(c.Query("page_size"))
	if err != nil || size <= 0 {
		size = h.cfg.Reports.PageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	result, err := h.store.ListAnimals(c.Request.Context(), store.AnimalFilter{
		Query:    c.Query("q"),
		Sex:      model.Sex(c.Query("sex")),
		Order:    c.Query("order"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]AnimalResponse, 0, len(result.Animals))
	for i := range result.Animals {
		items = append(items, h.animalResponse(&result.Animals[i]))
	}
	c.JSON(http.StatusOK, AnimalListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		Pages:    result.Pages,
	})
}

// CreateAnimal handles POST /api/animals.
func (h *Handler) CreateAnimal(c *gin.Context) {
	var req animalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a := model.Animal{IsAlive: true}
	if err := req.apply(&a); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.store.CreateAnimal(c.Request.Context(), &a); err != nil {
		respondError(c, err)
		return
	}

	if h.notifier != nil && (a.SireID != nil || a.DamID != nil) {
		if !h.notifier.Dispatch(a.ID) {
			log.Printf("Offspring notification for animal %d was dropped", a.ID)
		}
	}
	c.JSON(http.StatusCreated, h.animalResponse(&a))
}

// GetAnimal handles GET /api/animals/:id.
func (h *Handler) GetAnimal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	a, err := h.store.GetAnimal(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := AnimalDetailResponse{AnimalResponse: h.animalResponse(a)}
	if resp.Sire, err = h.summary(ctx, a.SireID); err != nil {
		respondError(c, err)
		return
	}
	if resp.Dam, err = h.summary(ctx, a.DamID); err != nil {
		respondError(c, err)
		return
	}
	full, err := h.classifier.FullSiblings(ctx, a)
	if err != nil {
		respondError(c, err)
		return
	}
	half, err := h.classifier.HalfSiblings(ctx, a)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.FullSiblings = pedigree.Summarize(full)
	resp.HalfSiblings = pedigree.Summarize(half)

	c.JSON(http.StatusOK, resp)
}

// UpdateAnimal handles PUT /api/animals/:id.
func (h *Handler) UpdateAnimal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req animalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	a, err := h.store.GetAnimal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := req.apply(a); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.store.UpdateAnimal(c.Request.Context(), a); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.animalResponse(a))
}

// DeleteAnimal handles DELETE /api/animals/:id.
func (h *Handler) DeleteAnimal(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteAnimal(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
