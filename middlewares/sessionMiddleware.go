package middlewares

import (
	"net/http"
	"strings"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// SessionMiddleware verifies the bearer (or "token" header) session token and
// binds the resulting Session to the request context. Requests without a token
// pass through unauthenticated; routes that need one add RequireSession.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			c.Next()
			return
		}

		parsed, err := utils.JwtValidate(token)
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": utils.ErrNotAuthenticated.Error()})
			return
		}
		claims, ok := parsed.Claims.(*utils.JwtCustomClaim)
		if !ok || strings.TrimSpace(claims.RetailerId) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": utils.ErrNotAuthenticated.Error()})
			return
		}

		sess := appctx.Session{
			ID:         claims.Id,
			RetailerId: claims.RetailerId,
			UserId:     claims.UserId,
			Tier:       tier.Parse(claims.Tier),
		}
		c.Request = c.Request.WithContext(sess.Bind(c.Request.Context()))
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireSession aborts with 401 before any handler runs when no valid session is bound.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := SessionFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": utils.ErrNotAuthenticated.Error()})
			return
		}
		c.Next()
	}
}

func SessionFrom(c *gin.Context) (appctx.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return appctx.Session{}, false
	}
	sess, ok := v.(appctx.Session)
	return sess, ok && sess.Valid()
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(r.Header.Get("token"))
}
