package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/estimate-export-api/internal/service"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
	"github.com/noah-isme/estimate-export-api/pkg/logger"
	"github.com/noah-isme/estimate-export-api/pkg/ratelimit"
	"github.com/noah-isme/estimate-export-api/pkg/response"
)

const rateLimitMessage = "Too many requests. Please try again later."

// RateLimit enforces the category quota per authenticated caller. It must run after JWT.
// A limiter failure rejects the request.
func RateLimit(limiter ratelimit.Limiter, category string, metrics *service.MetricsService, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		result, err := limiter.Check(c.Request.Context(), claims.UserID, category)
		if err != nil {
			logger.WithRequest(log, c).Error("rate limit check failed", zap.String("category", category), zap.Error(err))
			response.Abort(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if !result.Success {
			metrics.RecordRateLimited(category)
			retryAfter := result.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
			response.Abort(c, appErrors.ErrRateLimited.WithExtra(map[string]interface{}{
				"message":   rateLimitMessage,
				"limit":     result.Limit,
				"remaining": result.Remaining,
				"reset":     result.Reset,
			}))
			return
		}

		c.Next()
	}
}
