package middlewares

import (
	"net/http"

	"github.com/dukaflow/retailer_backend/tier"
	"github.com/gin-gonic/gin"
)

// RequireFeature gates a route on the session's plan. A denied request gets a
// 403 with the upgrade redirect and never reaches the handler.
func RequireFeature(f tier.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "not authenticated"})
			return
		}
		d := tier.Decide(sess.Tier, f)
		if !d.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success":  false,
				"error":    "upgrade required",
				"redirect": d.RedirectTo,
			})
			return
		}
		c.Next()
	}
}
