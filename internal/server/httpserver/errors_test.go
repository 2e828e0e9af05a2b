package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{common.ErrInvalidCredentials, http.StatusUnauthorized, "incorrect username or password"},
		{common.NewValidationError("passwords do not match"), http.StatusBadRequest, "passwords do not match"},
		{common.ErrUsernameTaken, http.StatusConflict, "username already taken"},
		{common.ErrEmailTaken, http.StatusConflict, "email already registered"},
		{common.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
		{common.ErrTokenExpired, http.StatusUnauthorized, "invalid token"},
		{common.ErrSelfDelete, http.StatusForbidden, "cannot delete the account you are signed in with"},
		{common.ErrForbidden, http.StatusForbidden, "forbidden"},
		{common.ErrorNotFound, http.StatusNotFound, "not found"},
		{fmt.Errorf("%w: dial tcp: refused", common.ErrStoreUnavailable), http.StatusInternalServerError, "internal server error"},
		{errors.New("pq: secret detail"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, msg := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}
