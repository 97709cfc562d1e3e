package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"milk-herd-backend/internal/store"
)

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	Herd       store.HerdStats    `json:"herd"`
	WindowDays int                `json:"window_days"`
	Milk       []store.DailyYield `json:"milk"`
	TopBreeds  []store.BreedCount `json:"top_breeds"`
}

// GetStats handles GET /api/stats: sex counts, daily milk totals over the
// window ending today, and the most common breeds.
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	herd, err := h.store.HerdStats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	window := h.cfg.Reports.MilkWindowDays
	today := h.now().UTC()
	milk, err := h.store.MilkSeries(ctx, today.AddDate(0, 0, -(window-1)), today)
	if err != nil {
		respondError(c, err)
		return
	}

	breeds, err := h.store.TopBreeds(ctx, h.cfg.Reports.TopBreeds)
	if err != nil {
		respondError(c, err)
		return
	}
	if breeds == nil {
		breeds = []store.BreedCount{}
	}

	c.JSON(http.StatusOK, StatsResponse{Herd: herd, WindowDays: window, Milk: milk, TopBreeds: breeds})
}
