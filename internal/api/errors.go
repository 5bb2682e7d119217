package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/apperrors"
	"github.com/rongwang/library-server/internal/models"
)

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindValidation:    http.StatusBadRequest,
	apperrors.KindAuth:          http.StatusUnauthorized,
	apperrors.KindAuthorization: http.StatusForbidden,
	apperrors.KindNotFound:      http.StatusNotFound,
	apperrors.KindConflict:      http.StatusConflict,
	apperrors.KindUnavailable:   http.StatusServiceUnavailable,
}

// statusFor returns the HTTP status of an error
func statusFor(err error) int {
	if status, ok := statusByKind[apperrors.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorResponse builds the body for err. Unclassified errors are not echoed
// to the client.
func errorResponse(err error) models.ErrorResponse {
	appErr, ok := apperrors.As(err)
	if !ok {
		return models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		}
	}

	return models.ErrorResponse{
		Status:     "error",
		Code:       string(appErr.Kind),
		Message:    appErr.Message,
		Violations: appErr.Violations,
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, errorResponse(err))
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    string(apperrors.KindValidation),
		Message: message,
	})
}
