package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "ota-fleet-manager/pkg/errors"
)

// APIResponse is the envelope returned by every endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    appErrors.CodeInternal,
			Message: message,
		},
	})
}

// AppErrorResponse maps an application error to its HTTP status and renders
// the envelope with the stable error code.
func AppErrorResponse(c *gin.Context, err error) {
	code := appErrors.CodeOf(err)
	c.JSON(statusForCode(code), APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: err.Error(),
		},
	})
}

func statusForCode(code string) int {
	switch code {
	case appErrors.CodeNotFound, appErrors.CodeUnknownDevice:
		return http.StatusNotFound
	case appErrors.CodeDuplicateDeviceID,
		appErrors.CodeDuplicateVersion,
		appErrors.CodeFirmwareInUse,
		appErrors.CodeHasActiveRollout,
		appErrors.CodeRolloutAlreadyActive:
		return http.StatusConflict
	case appErrors.CodeInvalidTransition,
		appErrors.CodeNonMonotonicProgress,
		appErrors.CodeCancelled,
		appErrors.CodeValidationError:
		return http.StatusBadRequest
	case appErrors.CodeDownloadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
