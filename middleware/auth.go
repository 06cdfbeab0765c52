package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware validates the Bearer token and loads the admin
// record into the context under "admin".
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.LogError("Missing Authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login for access"})
			c.Abort()
			return
		}

		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
		adminID, err := utils.ValidateAdminToken(tokenString)
		if err != nil {
			utils.LogError("Invalid admin token: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login for access"})
			c.Abort()
			return
		}

		var admin models.Admin
		if err := config.DB.First(&admin, adminID).Error; err != nil {
			utils.LogError("Admin not found for token: %d", adminID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login for access"})
			c.Abort()
			return
		}
		if !admin.IsActive {
			utils.LogError("Blocked admin %d attempted access", adminID)
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
			c.Abort()
			return
		}

		c.Set("admin", admin)
		c.Next()
	}
}

// CronAuthMiddleware guards scheduler endpoints with a shared secret
// passed in the X-Cron-Secret header.
func CronAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := os.Getenv("CRON_SECRET")
		if secret == "" {
			utils.LogError("CRON_SECRET not configured, rejecting cron request")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not configured"})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Cron-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			utils.LogError("Cron request with invalid secret")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid cron secret"})
			c.Abort()
			return
		}

		c.Next()
	}
}
