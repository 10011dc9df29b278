// Package httpapi is the thin HTTP layer over the ingestion pipeline
// and the record query surface.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
	"github.com/Err-Tools/error-remediation-pipeline/internal/store"
)

// Ingestor runs the ingestion pipeline for one payload.
type Ingestor interface {
	Ingest(ctx context.Context, payload events.ErrorPayload) (*store.ErrorEvent, error)
}

// Records is the read side of the record store.
type Records interface {
	List(ctx context.Context) ([]store.ErrorEvent, error)
	GetByID(ctx context.Context, id uint) (*store.ErrorEvent, error)
}

type Handler struct {
	ingestor Ingestor
	records  Records
	log      *zap.Logger
}

func NewHandler(ingestor Ingestor, records Records, log *zap.Logger) *Handler {
	return &Handler{
		ingestor: ingestor,
		records:  records,
		log:      log,
	}
}

// NewRouter assembles the gin engine with middleware and routes. The
// record query endpoints require the admin API key; ingestion does not.
func NewRouter(h *Handler, adminKey string, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(RequestID(), Logger(log), gin.Recovery())

	engine.GET("/health", h.health)
	engine.POST("/api/logs/error", h.receiveError)

	admin := engine.Group("/api/errors", AdminKey(adminKey))
	admin.GET("", h.listErrors)
	admin.GET("/:id", h.getError)

	return engine
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// receiveError accepts a raw error event, runs it through the
// ingestion pipeline and returns the assigned record id. A broker
// outage does not fail the request; only a persistence failure does.
func (h *Handler) receiveError(c *gin.Context) {
	var payload events.ErrorPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	event, err := h.ingestor.Ingest(c.Request.Context(), payload)
	if err != nil {
		h.log.Error("ingestion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal ingestion error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok", "id": event.ID})
}

func (h *Handler) listErrors(c *gin.Context) {
	list, err := h.records.List(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list error events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list error events"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) getError(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	event, err := h.records.GetByID(c.Request.Context(), uint(id))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "error event not found"})
		return
	}
	if err != nil {
		h.log.Error("failed to fetch error event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch error event"})
		return
	}

	c.JSON(http.StatusOK, event)
}
