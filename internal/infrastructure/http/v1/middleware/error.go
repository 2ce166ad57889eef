package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxledger/internal/core/apperror"
	"taxledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		status := http.StatusInternalServerError
		var body gin.H

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			status = appErr.HTTPStatus
			body = gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error",
				"error", err,
			)
			body = gin.H{
				"code":    apperror.CodeInternal,
				"message": "Internal server error",
				"details": map[string]any{
					"request_id": c.GetString("request_id"),
				},
			}
		}

		settleIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

// settleIdempotency records the outcome for the key this request holds.
// Client errors replay as-is; server errors release the key so a retry
// can run again.
func settleIdempotency(c *gin.Context, status int, body gin.H) {
	key, store, ok := acquiredKey(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		if err := store.ReleaseKey(ctx, key); err != nil {
			logger.Warn(ctx, "release idempotency key", "key", key, "error", err)
		}
		return
	}
	if err := store.FailKey(ctx, key, status, "application/json", body); err != nil {
		logger.Warn(ctx, "fail idempotency key", "key", key, "error", err)
	}
}
