package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeConflict, http.StatusConflict},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestError_IsMatchesCode(t *testing.T) {
	err := NotFoundf("session %s not found", "spot-1")

	assert.True(t, Is(err, ErrNotFound))
	assert.True(t, Is(err, ErrSessionNotFound))
	assert.False(t, Is(err, ErrValidation))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Wrap(cause, CodeUnavailable, "emby unreachable")

	assert.Equal(t, "emby unreachable: dial tcp: refused", err.Error())
	assert.Equal(t, cause, Unwrap(err))
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
}

func TestError_WithDetails(t *testing.T) {
	base := Validation("invalid input")
	withDetails := base.WithDetails(map[string]string{"action": "is required"})

	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"action": "is required"}, withDetails.Details)
	assert.True(t, Is(withDetails, ErrValidation))
}
