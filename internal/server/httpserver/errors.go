package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/gin-gonic/gin"
)

// statusFor maps a service error to an HTTP status and a message that is
// safe to show. Unknown errors are never echoed.
func statusFor(err error) (int, string) {
	var verr *common.ValidationError

	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, common.ErrInvalidCredentials.Error()
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Reason
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, common.ErrUsernameTaken):
		return http.StatusConflict, common.ErrUsernameTaken.Error()
	case errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict, common.ErrEmailTaken.Error()
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, common.ErrSelfDelete):
		return http.StatusForbidden, common.ErrSelfDelete.Error()
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError renders err as a JSON error body and logs server-side failures.
func (s *Server) writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		requestLogger(c, s.logger).Error(c.Request.Context(), "request failed", "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
