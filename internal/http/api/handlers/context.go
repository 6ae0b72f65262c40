package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/miky-rola/signals-backend/internal/models"
)

// contextUserKey is the gin context key holding the authenticated user.
const contextUserKey = "authUser"

// SetCurrentUser stores the authenticated user on the request context.
func SetCurrentUser(c *gin.Context, user models.User) {
	c.Set(contextUserKey, user)
}

// currentUser returns the authenticated user from the request context.
func currentUser(c *gin.Context) (models.User, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := value.(models.User)
	return user, ok
}
