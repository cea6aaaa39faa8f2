package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/spotlightapp/spotlight-server/internal/errors"
	"github.com/spotlightapp/spotlight-server/internal/validation"
)

type inputRequest struct {
	Action string `json:"action" validate:"required,oneof=next prev goto"`
	Index  int    `json:"index" validate:"gte=0"`
	Color  string `json:"color" validate:"csscolor"`
}

func TestValidator_Success(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(inputRequest{Action: "next", Color: "#000000"}))
	assert.NoError(t, v.Validate(inputRequest{Action: "goto", Index: 3, Color: "hsl(200, 50%, 40%)"}))
}

func TestValidator_Errors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       inputRequest
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing action",
			req:       inputRequest{},
			wantField: "action",
			wantMsg:   "is required",
		},
		{
			name:      "unknown action",
			req:       inputRequest{Action: "jump"},
			wantField: "action",
			wantMsg:   "must be one of: next prev goto",
		},
		{
			name:      "negative index",
			req:       inputRequest{Action: "goto", Index: -1},
			wantField: "index",
			wantMsg:   "must be greater than or equal to 0",
		},
		{
			name:      "bad color",
			req:       inputRequest{Action: "next", Color: "#12"},
			wantField: "color",
			wantMsg:   "must be a hex color or CSS color function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}
