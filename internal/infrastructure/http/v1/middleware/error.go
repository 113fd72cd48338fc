package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fireblue/internal/core/apperror"
	"fireblue/pkg/logger"
)

// ErrorResponse is the single error envelope of the API.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error registered with c.Error.
// Handlers never write error bodies themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, c.Errors.Last().Err)
	}
}

// writeError logs err and writes its envelope. Errors that are not an
// AppError, and every 5xx, reach the client as a bare message plus the
// request id; the cause is only logged.
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "unhandled error", "error", err)
		appErr = apperror.NewInternal(err)
	}

	details := appErr.Details
	switch {
	case appErr.HTTPStatus >= http.StatusInternalServerError:
		if ok {
			logger.Error(ctx, "request failed", "code", appErr.Code, "cause", appErr.Err)
		}
		details = map[string]any{"request_id": c.GetString("request_id")}
	case appErr.Err != nil:
		logger.Warn(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
	}

	c.AbortWithStatusJSON(appErr.HTTPStatus, ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: details,
	})
}
