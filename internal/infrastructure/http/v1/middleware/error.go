package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"lpgstock/internal/core/apperror"
	"lpgstock/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}
		RenderError(c, c.Errors.Last().Err)
	}
}

// RenderError writes err as {code, message, details} and, when the request
// holds an idempotency key, stores that exact response as the key's outcome.
func RenderError(c *gin.Context, err error) {
	status, body := errorBody(c, err)

	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		logger.Error(c.Request.Context(), "marshal error response", "error", marshalErr)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	FailIdempotency(c, status, payload)
	c.Data(status, jsonContentType, payload)
	c.Abort()
}

func errorBody(c *gin.Context, err error) (int, gin.H) {
	ctx := c.Request.Context()

	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(ctx, "request error",
				"code", appErr.Code,
				"message", appErr.Message,
				"cause", appErr.Err,
			)
		} else {
			logger.Debug(ctx, "request rejected", "code", appErr.Code, "message", appErr.Message)
		}
		details := appErr.Details
		if details == nil {
			details = map[string]any{}
		}
		return appErr.HTTPStatus, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": details,
		}
	}

	logger.Error(ctx, "unhandled error", "error", err)
	return http.StatusInternalServerError, gin.H{
		"code":    apperror.CodeInternal,
		"message": "Internal server error",
		"details": map[string]any{
			"request_id": c.GetString("request_id"),
		},
	}
}
