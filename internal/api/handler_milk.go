package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"milk-herd-backend/internal/model"
)

type milkRecordRequest struct {
	AnimalID int64           `json:"animal" binding:"required"`
	Date     string          `json:"date" binding:"required"`
	Liters   decimal.Decimal `json:"liters"`
	Notes    string          `json:"notes" binding:"max=255"`
}

func (r *milkRecordRequest) record() (model.MilkRecord, error) {
	day, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return model.MilkRecord{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return model.MilkRecord{
		AnimalID: r.AnimalID,
		Date:     model.NewDate(day),
		Liters:   r.Liters,
		Notes:    r.Notes,
	}, nil
}

// MilkRecordResponse is the API view of a milk record. Liters is a
// two-decimal string.
type MilkRecordResponse struct {
	ID       int64           `json:"id"`
	AnimalID int64           `json:"animal"`
	Date     string          `json:"date"`
	Liters   decimal.Decimal `json:"liters"`
	Notes    string          `json:"notes"`
}

func milkRecordResponse(r *model.MilkRecord) MilkRecordResponse {
	return MilkRecordResponse{
		ID:       r.ID,
		AnimalID: r.AnimalID,
		Date:     time.Time(r.Date).Format(dateLayout),
		Liters:   r.Liters.Round(model.LitersPrecision),
		Notes:    r.Notes,
	}
}

// ListAnimalMilk handles GET /api/animals/:id/milk, newest first.
func (h *Handler) ListAnimalMilk(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetAnimal(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	records, err := h.store.ListMilkRecords(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]MilkRecordResponse, 0, len(records))
	for i := range records {
		resp = append(resp, milkRecordResponse(&records[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateMilkRecord handles POST /api/milk-records.
func (h *Handler) CreateMilkRecord(c *gin.Context) {
	var req milkRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := req.record()
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.store.CreateMilkRecord(c.Request.Context(), &r); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, milkRecordResponse(&r))
}

// UpdateMilkRecord handles PUT /api/milk-records/:id.
func (h *Handler) UpdateMilkRecord(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req milkRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := req.record()
	if err != nil {
		badRequest(c, err)
		return
	}
	r.ID = id
	if err := h.store.UpdateMilkRecord(c.Request.Context(), &r); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, milkRecordResponse(&r))
}

// DeleteMilkRecord handles DELETE /api/milk-records/:id.
func (h *Handler) DeleteMilkRecord(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteMilkRecord(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
