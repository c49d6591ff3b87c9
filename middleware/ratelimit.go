package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"furnistore/apperr"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/ratelimit"
)

// RateLimit counts requests per scope, caller and client IP. A limiter error
// lets the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, m *metrics.Metrics, r *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := "anon"
		if p, ok := CurrentPrincipal(c); ok {
			caller = "user:" + p.UserID.Hex()
		}
		key := scope + ":" + caller + ":" + c.ClientIP()

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logging.FromContext(c.Request.Context(), r.Log).Warn("rate limiter error", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		if !res.Allowed {
			retry := int(time.Until(res.ResetAt).Seconds()) + 1
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			m.ObserveRateLimited(scope)
			r.Fail(c, apperr.RateLimited())
			return
		}
		c.Next()
	}
}
