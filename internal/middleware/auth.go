package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole must run after UserAuth; it rejects callers whose token role and
// stored account role are both unlisted. An admin-listed vendor keeps vendor access.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		accountRole := c.GetString(ContextAccountRole)
		for _, r := range allowedRoles {
			if role == r || accountRole == r {
				c.Next()
				return
			}
		}

		log.Printf("[AUTH] [ERROR] role %q not allowed on %s", role, c.FullPath())
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
	}
}
