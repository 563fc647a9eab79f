// internal/middleware/recovery_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"syscall"

	xerrors "subscription-service/internal/pkg/errors"
	"subscription-service/internal/pkg/metrics"
	"subscription-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware converts a handler panic into the 500 envelope and
// counts it by route template. http.ErrAbortHandler is re-raised for net/http.
func RecoveryMiddleware(logger *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			route := routeOf(c)
			if m != nil {
				m.HTTPPanics.WithLabelValues(c.Request.Method, route).Inc()
			}

			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.String("request_id", c.GetString(ctxRequestID)),
			}
			if userID, ok := GetUserID(c); ok {
				fields = append(fields, zap.Int64("user_id", userID))
			}

			// Nobody is left to read a reply
			if err, ok := rec.(error); ok && clientGone(err) {
				logger.Warn("client went away mid-response", fields...)
				c.Abort()
				return
			}

			logger.Error("panic recovered", append(fields, zap.Stack("stack"))...)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, http.StatusInternalServerError, xerrors.ErrInternal.Error(), nil)
		}()
		c.Next()
	}
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
