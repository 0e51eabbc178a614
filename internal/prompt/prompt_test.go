package prompt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-safety-eval/backend/internal/timectx"
)

func TestEmbeddedPolicyIsValid(t *testing.T) {
	require.NoError(t, ValidateSystem())
	assert.Contains(t, System(), "FSSAI")
}

func TestValidateReportsMissingMarkers(t *testing.T) {
	tests := []struct {
		name    string
		remove  string
		message string
	}{
		{"section", "RESPONSE FORMAT", `section "RESPONSE FORMAT"`},
		{"decision", "SAFE_WITH_ADVISORY", `decision type "SAFE_WITH_ADVISORY"`},
		{"risk level", "VERY_LOW", `risk level "VERY_LOW"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text := strings.ReplaceAll(System(), tc.remove, "")
			err := Validate(text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPolicy))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestValidateRejectsEmptyPolicy(t *testing.T) {
	assert.ErrorIs(t, Validate("   "), ErrInvalidPolicy)
}

func TestBuildUserEmbedsTimeContext(t *testing.T) {
	now := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	tc, err := timectx.Build("2024-01-01T10:00:00Z", "2024-01-01T10:30:00Z", now, nil)
	require.NoError(t, err)

	text := BuildUser(tc, "2024-01-01T10:00:00Z", "2024-01-01T10:30:00Z")
	assert.Contains(t, text, "- Preparation Time: 2024-01-01T10:00:00Z")
	assert.Contains(t, text, "- Packaging Time: 2024-01-01T10:30:00Z")
	assert.Contains(t, text, "- Current Time: 2024-01-01T14:30:00Z")
	assert.Contains(t, text, "- Hours since preparation: 4.5 hours")
	assert.Contains(t, text, "- Hours since packaging: 4.0 hours")
	assert.Contains(t, text, "Respond with ONLY a valid JSON object")
}
