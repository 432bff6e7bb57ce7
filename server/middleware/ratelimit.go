package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/resilience"
)

// RateLimit rejects requests with 429 while rl has no tokens. Long-lived
// streams count once, when they connect.
func RateLimit(rl *resilience.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow() {
			appErr := errors.RateLimited(rl.Rate())
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Next()
	}
}
