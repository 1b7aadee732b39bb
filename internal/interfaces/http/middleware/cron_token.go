package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/erp/erli-connector/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

const (
	// CronTokenHeader carries the cron token
	CronTokenHeader = "X-Cron-Token"
	// CronTokenQuery is the query parameter accepted by shared-hosting cron schedulers
	CronTokenQuery = "token"
)

// CronToken guards the cron endpoints. The token is read from the
// X-Cron-Token header or the token query parameter and compared in constant
// time. With no configured token every request is refused.
func CronToken(token string) gin.HandlerFunc {
	expected := []byte(token)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeNotConfigured, "Cron token is not configured", GetRequestID(c)))
			return
		}

		given := c.GetHeader(CronTokenHeader)
		if given == "" {
			given = c.Query(CronTokenQuery)
		}
		if subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Invalid cron token", GetRequestID(c)))
			return
		}
		c.Next()
	}
}
