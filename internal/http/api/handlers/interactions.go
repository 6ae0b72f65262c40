package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/miky-rola/signals-backend/internal/http/api/query"
	"github.com/miky-rola/signals-backend/internal/models"
)

// interactionOrderingFields is the ordering allow-list for interactions.
var interactionOrderingFields = map[string]bool{
	"status":     true,
	"pnl":        true,
	"exit_price": true,
	"created_at": true,
}

// InteractionHandler manages user responses to signals.
type InteractionHandler struct {
	db *gorm.DB
}

// NewInteractionHandler constructs an InteractionHandler.
func NewInteractionHandler(db *gorm.DB) *InteractionHandler {
	return &InteractionHandler{db: db}
}

// interactionRequest defines the request body for interaction creation and
// updates.
type interactionRequest struct {
	SignalID     *uint64  `json:"signal"`
	Status       string   `json:"status"`
	Notes        *string  `json:"notes"`
	PositionSize *int     `json:"position_size"`
	PNL          *float64 `json:"pnl"`
	ExitPrice    *float64 `json:"exit_price"`
}

// Create records the caller's response to a signal. A second interaction for
// the same (user, signal) pair is rejected.
func (h *InteractionHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	var body interactionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	if body.SignalID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing signal"})
		return
	}
	status := models.InteractionStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if !models.ValidInteractionStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "status must be one of taken, watching, passed"})
		return
	}

	ctx := c.Request.Context()
	var signal models.Signal
	if errFind := h.db.WithContext(ctx).First(&signal, *body.SignalID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "signal does not exist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}

	var existing int64
	if errCount := h.db.WithContext(ctx).Model(&models.UserInteraction{}).
		Where("user_id = ? AND signal_id = ?", user.ID, signal.ID).
		Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "interaction already exists for this signal"})
		return
	}

	row := models.UserInteraction{
		UserID:       user.ID,
		SignalID:     signal.ID,
		Status:       status,
		PositionSize: body.PositionSize,
		PNL:          body.PNL,
		ExitPrice:    body.ExitPrice,
	}
	if body.Notes != nil {
		row.Notes = *body.Notes
	}
	if errCreate := h.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		// The unique index backstops the pre-check under concurrent requests.
		c.JSON(http.StatusBadRequest, gin.H{"detail": "interaction already exists for this signal"})
		return
	}
	c.JSON(http.StatusCreated, serializeInteraction(row))
}

// List returns the caller's interactions with pagination and ordering. Staff
// see all interactions.
func (h *InteractionHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.UserInteraction{})
	if !user.IsStaff {
		q = q.Where("user_id = ?", user.ID)
	}
	if raw := strings.TrimSpace(c.Query("signal")); raw != "" {
		signalID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid signal"})
			return
		}
		q = q.Where("signal_id = ?", signalID)
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.InteractionStatus(strings.ToLower(raw))
		if !models.ValidInteractionStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "status must be one of taken, watching, passed"})
			return
		}
		q = q.Where("status = ?", status)
	}
	q = query.ApplyOrdering(q, c.Query("ordering"), interactionOrderingFields)

	var rows []models.UserInteraction
	page, errPage := query.Paginate(c, q, &rows)
	if errPage != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "list interactions failed"})
		return
	}

	out := make([]interactionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeInteraction(row))
	}
	page.Results = out
	c.JSON(http.StatusOK, page)
}

// ListByUser returns every interaction recorded by the given user, newest
// first. Restricted to the caller or staff.
func (h *InteractionHandler) ListByUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return
	}
	if id != user.ID && !user.IsStaff {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}

	var rows []models.UserInteraction
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", id).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "list interactions failed"})
		return
	}
	out := make([]interactionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeInteraction(row))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns an interaction by ID.
func (h *InteractionHandler) Get(c *gin.Context) {
	row, ok := h.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeInteraction(row))
}

// Update modifies an interaction. The (user, signal) pair is immutable.
func (h *InteractionHandler) Update(c *gin.Context) {
	row, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var body interactionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Status != "" {
		status := models.InteractionStatus(strings.ToLower(strings.TrimSpace(body.Status)))
		if !models.ValidInteractionStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "status must be one of taken, watching, passed"})
			return
		}
		updates["status"] = status
	}
	if body.Notes != nil {
		updates["notes"] = *body.Notes
	}
	if body.PositionSize != nil {
		updates["position_size"] = *body.PositionSize
	}
	if body.PNL != nil {
		updates["pnl"] = *body.PNL
	}
	if body.ExitPrice != nil {
		updates["exit_price"] = *body.ExitPrice
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.UserInteraction{}).
		Where("id = ?", row.ID).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}

	var updated models.UserInteraction
	if errFind := h.db.WithContext(c.Request.Context()).First(&updated, row.ID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	c.JSON(http.StatusOK, serializeInteraction(updated))
}

// Delete removes an interaction.
func (h *InteractionHandler) Delete(c *gin.Context) {
	row, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.UserInteraction{}, row.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// loadOwned loads the interaction in the path and enforces owner-or-staff
// access. On failure it writes the response and returns ok=false.
func (h *InteractionHandler) loadOwned(c *gin.Context) (models.UserInteraction, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return models.UserInteraction{}, false
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return models.UserInteraction{}, false
	}

	var row models.UserInteraction
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return models.UserInteraction{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return models.UserInteraction{}, false
	}
	if row.UserID != user.ID && !user.IsStaff {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return models.UserInteraction{}, false
	}
	return row, true
}
