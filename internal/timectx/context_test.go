package timectx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildElapsedHours(t *testing.T) {
	now := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	tc, err := Build("2024-01-01T10:00:00Z", "2024-01-01T10:30:00Z", now, nil)
	require.NoError(t, err)

	assert.InDelta(t, 4.5, tc.HoursSincePreparation, 1e-9)
	assert.InDelta(t, 4.0, tc.HoursSincePackaging, 1e-9)
	assert.Equal(t, "4.5", FormatHours(tc.HoursSincePreparation))
	assert.Equal(t, "4.0", FormatHours(tc.HoursSincePackaging))
	assert.True(t, tc.Now.Equal(now))
}

func TestParseFormats(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	tests := []struct {
		name  string
		value string
		loc   *time.Location
		want  time.Time
	}{
		{"utc suffix", "2024-01-01T10:00:00Z", nil, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"offset", "2024-01-01T15:30:00+05:30", nil, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"fractional", "2024-01-01T10:00:00.250Z", nil, time.Date(2024, 1, 1, 10, 0, 0, 250000000, time.UTC)},
		{"no seconds", "2024-01-01T10:00Z", nil, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"datetime-local", "2024-01-01T15:30", ist, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"space separator", "2024-01-01 10:00:00", nil, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse("preparation", tc.value, tc.loc)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestBuildRejectsMalformedTimestamps(t *testing.T) {
	now := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		prep  string
		pkg   string
		field string
	}{
		{"garbage preparation", "yesterday", "2024-01-01T10:30:00Z", "preparation"},
		{"empty packaging", "2024-01-01T10:00:00Z", "", "packaging"},
		{"date only", "2024-01-01", "2024-01-01T10:30:00Z", "preparation"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.prep, tc.pkg, now, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTimestampParse))

			var parseErr *TimestampParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tc.field, parseErr.Field)
		})
	}
}
