package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type JSONResponse struct {
	Status    bool                   `json:"status"`
	Message   string                 `json:"message"`
	ErrorCode string                 `json:"error_code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Data      interface{}            `json:"data,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondAppError writes a typed service failure. Untyped errors become 500s.
func RespondAppError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		ErrLogger().Errorf("unhandled error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		RespondError(c, http.StatusInternalServerError, err)
		return
	}

	status := HTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		ErrLogger().WithField("code", appErr.Code).Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, appErr)
	}

	details := appErr.Details
	if appErr.Code == CodeConnection {
		if details == nil {
			details = map[string]interface{}{}
		}
		details["retryable"] = true
	}

	c.JSON(status, JSONResponse{
		Status:    false,
		Message:   appErr.Message,
		ErrorCode: appErr.Code,
		Details:   details,
	})
}
