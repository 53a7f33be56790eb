package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storefront/internal/entities"
)

// Context keys for the gate's outcome.
const (
	ContextKeyUserID = "auth_user_id"
	ContextKeyRole   = "auth_role"
)

func setIdentity(c *gin.Context, id Identity) {
	c.Set(ContextKeyUserID, id.UserID)
	c.Set(ContextKeyRole, id.Role)
}

// GetUserID returns the authenticated user's ID, or 0 for anonymous requests.
func GetUserID(c *gin.Context) uint {
	if id, ok := c.Get(ContextKeyUserID); ok {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

// GetRole returns the authenticated user's role, or "" for anonymous requests.
func GetRole(c *gin.Context) entities.Role {
	if r, ok := c.Get(ContextKeyRole); ok {
		if role, ok := r.(entities.Role); ok {
			return role
		}
	}
	return ""
}

// GetIdentity returns both values set by the gate.
func GetIdentity(c *gin.Context) Identity {
	return Identity{UserID: GetUserID(c), Role: GetRole(c)}
}
