package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"healthcare-appointment-server/internal/ledger"
	"healthcare-appointment-server/internal/models"
	"healthcare-appointment-server/internal/utils"
)

const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
	ctxUserRole  = "userRole"
)

// AuthMiddleware creates a middleware for JWT authentication.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], secret)
		if err != nil {
			utils.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		// Set user information in context for downstream handlers
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserRole, claims.Role)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetUserIDFromContext returns the authenticated subject id.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// GetUserRoleFromContext returns the authenticated role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}

// ActorFromContext builds the ledger actor for the authenticated caller.
func ActorFromContext(c *gin.Context) (ledger.Actor, bool) {
	id, ok := GetUserIDFromContext(c)
	if !ok {
		return ledger.Actor{}, false
	}
	role, ok := GetUserRoleFromContext(c)
	if !ok {
		return ledger.Actor{}, false
	}
	return ledger.Actor{ID: id, Role: role}, true
}

// IsSelfOrAdmin reports whether the caller is an admin or the account id.
func IsSelfOrAdmin(c *gin.Context, id string) bool {
	actor, ok := ActorFromContext(c)
	if !ok {
		return false
	}
	return actor.Role == models.RoleAdmin || actor.ID == id
}
