package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"milk-herd-backend/config"
	"milk-herd-backend/internal/mw"
	"milk-herd-backend/internal/pedigree"
	"milk-herd-backend/internal/store"
)

// maxPageSize caps the page_size query parameter.
const maxPageSize = 100

// OffspringNotifier is told about animals registered with a sire or dam.
type OffspringNotifier interface {
	Dispatch(calfID int64) bool
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	classifier *pedigree.Classifier
	builder    *pedigree.Builder
	cfg        config.Config
	webpush    *webpush.Options
	notifier   OffspringNotifier
	now        func() time.Time
}

// NewHandler creates a new API handler. cfg may be nil, in which case the
// defaults apply; notifier may be nil when push is not configured.
func NewHandler(s store.Store, cfg *config.Config, webpushOptions *webpush.Options, notifier OffspringNotifier) *Handler {
	var c config.Config
	if cfg != nil {
		c = *cfg
	}
	c.ApplyDefaults()

	return &Handler{
		store:      s,
		classifier: pedigree.NewClassifier(s),
		builder:    pedigree.NewBuilder(s),
		cfg:        c,
		webpush:    webpushOptions,
		notifier:   notifier,
		now:        time.Now,
	}
}

// idParam reads a positive integer path parameter, answering 400 otherwise.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "detail": err.Error()})
}

// respondError maps domain and storage errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	if rej, ok := pedigree.AsRejection(err); ok {
		body := gin.H{"error": rej.Error(), "reason": rej.Reason}
		if rej.Role != "" {
			body["role"] = rej.Role
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}

	switch {
	case errors.Is(err, pedigree.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "animal not found"})
	case errors.Is(err, store.ErrMilkRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicateEarTag), errors.Is(err, store.ErrDuplicateMilkRecord),
		errors.Is(err, store.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("request %s failed: %v", mw.GetRequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
