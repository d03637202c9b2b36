package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/domain/events"
	"github.com/swipedeck/swipedeck/internal/app/middleware"
	"github.com/swipedeck/swipedeck/internal/app/models"
)

// Handler exposes the interaction endpoints: the swipe actions, the
// attending toggle, unsave, and the saved/archived/history listings.
type Handler struct {
	logger    *zap.Logger
	service   Service
	eventRepo events.Repository
}

func NewHandler(service Service, eventRepo events.Repository, logger *zap.Logger) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		eventRepo: eventRepo,
	}
}

type actionRequest struct {
	ID int64 `json:"id" binding:"required"`
}

// Save handles POST /api/events/save.
func (h *Handler) Save(c *gin.Context) { h.recordFromBody(c, models.ActionSaved) }

// Archive handles POST /api/events/archive.
func (h *Handler) Archive(c *gin.Context) { h.recordFromBody(c, models.ActionArchived) }

// Share handles POST /api/events/share.
func (h *Handler) Share(c *gin.Context) { h.recordFromBody(c, models.ActionShared) }

// Opened handles POST /api/events/opened.
func (h *Handler) Opened(c *gin.Context) { h.recordFromBody(c, models.ActionOpened) }

func (h *Handler) recordFromBody(c *gin.Context, action models.ActionType) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	userID := middleware.UserIDFrom(c)
	if _, err := h.service.RecordAction(c.Request.Context(), userID, req.ID, action); err != nil {
		h.writeError(c, err, "Failed to record action", action)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Attending handles POST /api/events/attending/:id. The response carries
// the post-toggle attending state.
func (h *Handler) Attending(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid event id"})
		return
	}

	userID := middleware.UserIDFrom(c)
	status, err := h.service.RecordAction(c.Request.Context(), userID, eventID, models.ActionAttending)
	if err != nil {
		h.writeError(c, err, "Failed to toggle attending", models.ActionAttending)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attending": status.Attending})
}

// Unsave handles POST /api/event/:id/unsave.
func (h *Handler) Unsave(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid event id"})
		return
	}

	userID := middleware.UserIDFrom(c)
	status, err := h.service.Unsave(c.Request.Context(), userID, eventID)
	if err != nil {
		h.writeError(c, err, "Failed to unsave event", models.ActionUnsaved)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Event unsaved successfully",
		"data": gin.H{
			"eventId":             status.EventID,
			"userId":              status.UserID,
			"saved":               status.Saved,
			"lastInteractionDate": status.LastInteractionDate,
		},
	})
}

// Saved handles GET /api/events/saved.
func (h *Handler) Saved(c *gin.Context) { h.listByStatus(c, events.ListSaved) }

// Archived handles GET /api/events/archived.
func (h *Handler) Archived(c *gin.Context) { h.listByStatus(c, events.ListArchived) }

// History handles GET /api/events/history.
func (h *Handler) History(c *gin.Context) { h.listByStatus(c, events.ListHistory) }

func (h *Handler) listByStatus(c *gin.Context, list events.StatusList) {
	limit := parseIntDefault(c.Query("limit"), 20, 1, 100)
	offset := parseIntDefault(c.Query("offset"), 0, 0, 1<<30)

	userID := middleware.UserIDFrom(c)
	items, total, err := h.eventRepo.ListByStatus(c.Request.Context(), userID, list, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list events by status", zap.String("list", string(list)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}
	if items == nil {
		items = []models.Event{}
	}

	c.JSON(http.StatusOK, gin.H{
		"events": items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) writeError(c *gin.Context, err error, logMsg string, action models.ActionType) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "event not found"})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		h.logger.Error(logMsg, zap.String("action", string(action)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}

func parseIntDefault(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return def
	}
	return v
}
