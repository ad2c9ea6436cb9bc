package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const CorrelationHeader = "x-correlation-id"

// CorrelationId generates (or propagates) a correlation id once per request.
func CorrelationId() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(CorrelationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header(CorrelationHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// ErrorLogger logs only requests that collected gin errors.
func ErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

// WindowCounter increments a fixed-window counter and returns the new count.
type WindowCounter func(ctx context.Context, key string, window time.Duration) (int64, error)

type RateLimiter struct {
	incr   WindowCounter
	limit  int64
	window time.Duration
}

func NewRateLimiter(incr WindowCounter, limit int64, window time.Duration) *RateLimiter {
	if incr == nil {
		incr = config.IncrRedisWindow
	}
	return &RateLimiter{incr: incr, limit: limit, window: window}
}

// RateLimiterFromEnv reads RATE_LIMIT_MAX_REQUESTS and RATE_LIMIT_WINDOW_SECONDS.
func RateLimiterFromEnv() *RateLimiter {
	limit := config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
	if limit <= 0 {
		limit = 600
	}
	windowSec := config.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
	if windowSec <= 0 {
		windowSec = 60
	}
	return NewRateLimiter(config.IncrRedisWindow, int64(limit), time.Duration(windowSec)*time.Second)
}

// Middleware limits per retailer when a session is bound, per client IP otherwise.
// Counter errors let the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:ip:" + c.ClientIP()
		if sess, ok := SessionFrom(c); ok {
			key = "ratelimit:retailer:" + sess.RetailerId
		}

		count, err := rl.incr(c.Request.Context(), key, rl.window)
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}
		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
