package middleware

import (
	"net/http"
	"strings"

	"gasly-backend/models"
	"gasly-backend/utils"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// CurrentRole returns the role stored by AuthMiddleware.
func CurrentRole(c *gin.Context) models.Role {
	role, _ := c.Get("user_role")
	r, _ := role.(models.Role)
	return r
}

func requireRole(message string, allowed func(models.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed(CurrentRole(c)) {
			c.JSON(http.StatusForbidden, gin.H{"error": message})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminMiddleware admits admin and master_admin.
func AdminMiddleware() gin.HandlerFunc {
	return requireRole("Admin access required", models.Role.IsStaff)
}

// MasterAdminMiddleware admits master_admin only.
func MasterAdminMiddleware() gin.HandlerFunc {
	return requireRole("Master admin access required", models.Role.CanModifyPolicy)
}

func RiderMiddleware() gin.HandlerFunc {
	return requireRole("Rider access required", func(r models.Role) bool {
		return r == models.RoleRider
	})
}

func CustomerMiddleware() gin.HandlerFunc {
	return requireRole("Customer access required", func(r models.Role) bool {
		return r == models.RoleCustomer
	})
}
