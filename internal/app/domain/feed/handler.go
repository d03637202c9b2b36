package feed

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/middleware"
	"github.com/swipedeck/swipedeck/internal/app/models"
)

const (
	defaultBatchLimit = 20
	maxBatchLimit     = 50
	defaultRadius     = 100.0
)

// Handler exposes the feed endpoints. Production mode strips error detail
// from 500 responses.
type Handler struct {
	logger     *zap.Logger
	service    Service
	production bool
}

func NewHandler(service Service, production bool, logger *zap.Logger) *Handler {
	return &Handler{
		logger:     logger,
		service:    service,
		production: production,
	}
}

// Batch handles GET /api/events/batch.
func (h *Handler) Batch(c *gin.Context) {
	limit := parseIntQuery(c.Query("limit"), defaultBatchLimit, 1, maxBatchLimit)
	center := models.ParseLocationOrDefault(c.Query("location"))
	radius := parseFloatQuery(c.Query("radius"), defaultRadius)
	filter := c.Query("filter")

	userID := middleware.UserIDFrom(c)
	evs, err := h.service.BatchFetch(c.Request.Context(), userID, center, radius, filter, limit)
	if err != nil {
		h.internalError(c, "Failed to assemble batch feed", err)
		return
	}
	c.JSON(http.StatusOK, evs)
}

// Random handles GET /api/events/random. An exhausted geography is a 200
// with a message body, not an error, so the client can tell it apart from
// a failure.
func (h *Handler) Random(c *gin.Context) {
	center := models.ParseLocationOrDefault(c.Query("location"))
	radius := parseFloatQuery(c.Query("radius"), defaultRadius)
	filter := c.Query("filter")

	userID := middleware.UserIDFrom(c)
	ev, err := h.service.RandomFetch(c.Request.Context(), userID, center, radius, filter)
	if err != nil {
		if errors.Is(err, models.ErrNoEventsInRadius) {
			c.JSON(http.StatusOK, gin.H{"message": "no events within radius"})
			return
		}
		h.internalError(c, "Failed to fetch random event", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// UnreadCount handles GET /api/events/unread-count.
func (h *Handler) UnreadCount(c *gin.Context) {
	center := models.ParseLocationOrDefault(c.Query("location"))
	radius := parseFloatQuery(c.Query("radius"), defaultRadius)
	maxDaysOld := parseIntQuery(c.Query("maxDaysOld"), 0, 0, 365)

	userID := middleware.UserIDFrom(c)
	count, err := h.service.UnreadCount(c.Request.Context(), userID, center, radius, maxDaysOld)
	if err != nil {
		h.internalError(c, "Failed to count unread events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// GetEvent handles GET /api/event/:id.
func (h *Handler) GetEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	userID := middleware.UserIDFrom(c)
	ev, err := h.service.GetEvent(c.Request.Context(), eventID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.internalError(c, "Failed to load event", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) internalError(c *gin.Context, logMsg string, err error) {
	h.logger.Error(logMsg, zap.Error(err))
	if h.production {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "detail": err.Error()})
}

func parseIntQuery(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return def
	}
	return v
}

func parseFloatQuery(raw string, def float64) float64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
