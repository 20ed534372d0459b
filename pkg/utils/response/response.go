package response

import (
	"net/http"

	"codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorBody is the envelope for failed API calls. Callers can always
// distinguish "your input was wrong" from "the judging system failed"
// by the HTTP status and code.
type ErrorBody struct {
	Success bool             `json:"success"`
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Error   string           `json:"error,omitempty"`
	Details map[string]any   `json:"details,omitempty"`
}

// OK writes the payload as-is with status 200.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Error writes a structured error response, logging it with context.
func Error(c *gin.Context, err error) {
	appErr := errors.GetError(err)

	logger.Error(c.Request.Context(), "request failed",
		zap.Int("code", int(appErr.Code)),
		zap.String("message", appErr.Error()),
	)

	body := ErrorBody{
		Success: false,
		Code:    appErr.Code,
		Message: appErr.Code.Message(),
		Details: appErr.Details,
	}
	if appErr.Error() != appErr.Code.Message() {
		body.Error = appErr.Error()
	}
	c.JSON(appErr.Code.HTTPStatus(), body)
}

// ErrorWithCode writes an error response for a bare code.
func ErrorWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	if message == "" {
		message = code.Message()
	}
	logger.Error(c.Request.Context(), "request failed",
		zap.Int("code", int(code)),
		zap.String("message", message),
	)
	c.JSON(code.HTTPStatus(), ErrorBody{Success: false, Code: code, Message: message})
}
