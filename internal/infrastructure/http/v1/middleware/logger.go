package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taxledger/pkg/logger"
)

// Logger middleware puts log into the request context and logs each
// request with timing and status. Server errors are logged at error level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		kv := []any{
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			kv = append(kv, "error", errs)
		}

		l := log.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			l.Errorw("http request", kv...)
			return
		}
		l.Infow("http request", kv...)
	}
}
