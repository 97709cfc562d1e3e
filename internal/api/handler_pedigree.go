package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"milk-herd-backend/internal/metrics"
	"milk-herd-backend/internal/pedigree"
)

type parentsRequest struct {
	SireID *int64 `json:"sire_id"`
	DamID  *int64 `json:"dam_id"`
}

// SiblingsResponse splits an animal's siblings by kind.
type SiblingsResponse struct {
	Full []pedigree.Summary `json:"full"`
	Half []pedigree.Summary `json:"half"`
}

// PedigreeResponse wraps a pedigree tree with the depth actually used.
type PedigreeResponse struct {
	Depth int            `json:"depth"`
	Tree  *pedigree.Node `json:"tree"`
}

// SetParents handles PUT /api/animals/:id/parents. A null or missing id
// clears that edge.
func (h *Handler) SetParents(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req parentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.store.CommitParentEdges(ctx, id, req.SireID, req.DamID); err != nil {
		respondError(c, err)
		return
	}
	a, err := h.store.GetAnimal(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.animalResponse(a))
}

// ValidateParents handles POST /api/animals/:id/parents/validate. Nothing is
// written.
func (h *Handler) ValidateParents(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req parentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.store.ValidateParents(c.Request.Context(), id, req.SireID, req.DamID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetChildren handles GET /api/animals/:id/children, oldest first.
func (h *Handler) GetChildren(c *gin.Context) {
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
	children, err := h.classifier.Children(ctx, a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pedigree.Summarize(children))
}

// GetSiblings handles GET /api/animals/:id/siblings.
func (h *Handler) GetSiblings(c *gin.Context) {
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
	c.JSON(http.StatusOK, SiblingsResponse{Full: pedigree.Summarize(full), Half: pedigree.Summarize(half)})
}

// GetPedigree handles GET /api/animals/:id/pedigree?depth=N. A missing or
// non-numeric depth uses the configured default; any depth is clamped to
// [1, max_depth].
func (h *Handler) GetPedigree(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	depth, err := strconv.Atoi(c.Query("depth"))
	if err != nil {
		depth = h.cfg.Pedigree.DefaultDepth
	}
	depth = pedigree.ClampDepth(depth, h.cfg.Pedigree.MaxDepth)

	ctx := c.Request.Context()
	a, err := h.store.GetAnimal(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	start := time.Now()
	tree, err := h.builder.Build(ctx, a, depth)
	metrics.ObservePedigreeBuild(strconv.Itoa(depth), time.Since(start))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, PedigreeResponse{Depth: depth, Tree: tree})
}
