package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/miky-rola/signals-backend/internal/models"
	"github.com/miky-rola/signals-backend/internal/validate"
)

// UserHandler manages user account endpoints. Regular users only ever see
// their own record; the listing is scoped to the caller.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// List returns the accounts visible to the caller.
func (h *UserHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if !user.IsStaff {
		q = q.Where("id = ?", user.ID)
	}

	var rows []models.User
	if errFind := q.Order("created_at ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "list users failed"})
		return
	}
	out := make([]userResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeUser(row))
	}
	c.JSON(http.StatusOK, out)
}

// Me returns the authenticated user's own record.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, serializeUser(user))
}

// Get returns a user by ID, restricted to the caller or staff.
func (h *UserHandler) Get(c *gin.Context) {
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

	var row models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	c.JSON(http.StatusOK, serializeUser(row))
}

// updateUserRequest defines the request body for user updates.
type updateUserRequest struct {
	Username *string `json:"username"`
}

// Update modifies the caller's own account.
func (h *UserHandler) Update(c *gin.Context) {
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

	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Username != nil {
		username := strings.TrimSpace(*body.Username)
		if errUsername := validate.Username(username); errUsername != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": errUsername.Error()})
			return
		}
		updates["username"] = username
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}

	var row models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	c.JSON(http.StatusOK, serializeUser(row))
}

// Delete soft-deletes an account. The row stays for audit; the flags keep the
// user from signing in again.
func (h *UserHandler) Delete(c *gin.Context) {
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

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"deleted": true, "is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
