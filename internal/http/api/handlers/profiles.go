package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/miky-rola/signals-backend/internal/models"
)

// Risk tolerance bounds.
const (
	riskToleranceMin = 1
	riskToleranceMax = 10
)

// ProfileHandler manages trading-preference profiles. A profile is visible
// and mutable only to its owner or staff.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// profileRequest defines the request body for profile creation and updates.
type profileRequest struct {
	RiskTolerance           *int              `json:"risk_tolerance"`
	PreferredStrategies     []string          `json:"preferred_strategies"`
	NotificationPreferences map[string]string `json:"notification_preferences"`
}

// Create creates the caller's profile.
func (h *ProfileHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	var body profileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	if body.RiskTolerance == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing risk_tolerance"})
		return
	}
	if *body.RiskTolerance < riskToleranceMin || *body.RiskTolerance > riskToleranceMax {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "risk_tolerance must be between 1 and 10"})
		return
	}

	profile := models.Profile{
		UserID:                  user.ID,
		RiskTolerance:           *body.RiskTolerance,
		PreferredStrategies:     marshalJSONField(body.PreferredStrategies, "[]"),
		NotificationPreferences: marshalJSONField(body.NotificationPreferences, "{}"),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&profile).Error; errCreate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "profile already exists for this user"})
		return
	}
	c.JSON(http.StatusCreated, serializeProfile(profile))
}

// List returns the profiles visible to the caller.
func (h *ProfileHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.Profile{})
	if !user.IsStaff {
		q = q.Where("user_id = ?", user.ID)
	}

	var rows []models.Profile
	if errFind := q.Order("created_at ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "list profiles failed"})
		return
	}
	out := make([]profileResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeProfile(row))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns a profile by ID.
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, ok := h.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeProfile(profile))
}

// Update modifies a profile.
func (h *ProfileHandler) Update(c *gin.Context) {
	profile, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var body profileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.RiskTolerance != nil {
		if *body.RiskTolerance < riskToleranceMin || *body.RiskTolerance > riskToleranceMax {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "risk_tolerance must be between 1 and 10"})
			return
		}
		updates["risk_tolerance"] = *body.RiskTolerance
	}
	if body.PreferredStrategies != nil {
		updates["preferred_strategies"] = marshalJSONField(body.PreferredStrategies, "[]")
	}
	if body.NotificationPreferences != nil {
		updates["notification_preferences"] = marshalJSONField(body.NotificationPreferences, "{}")
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Profile{}).
		Where("id = ?", profile.ID).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}

	var row models.Profile
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, profile.ID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	c.JSON(http.StatusOK, serializeProfile(row))
}

// Delete removes a profile.
func (h *ProfileHandler) Delete(c *gin.Context) {
	profile, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.Profile{}, profile.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// loadOwned loads the profile in the path and enforces owner-or-staff
// access. On failure it writes the response and returns ok=false.
func (h *ProfileHandler) loadOwned(c *gin.Context) (models.Profile, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return models.Profile{}, false
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return models.Profile{}, false
	}

	var profile models.Profile
	if errFind := h.db.WithContext(c.Request.Context()).First(&profile, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return models.Profile{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return models.Profile{}, false
	}
	if profile.UserID != user.ID && !user.IsStaff {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return models.Profile{}, false
	}
	return profile, true
}

// marshalJSONField serializes a field value, falling back to a JSON literal.
func marshalJSONField(value any, fallback string) datatypes.JSON {
	data, errMarshal := json.Marshal(value)
	if errMarshal != nil || value == nil {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(data)
}
