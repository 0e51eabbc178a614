package timectx

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimestampParse is matched by every TimestampParseError.
var ErrTimestampParse = errors.New("timestamp parse error")

// TimestampParseError reports an input timestamp that is not an extended
// ISO-8601 date-time.
type TimestampParseError struct {
	Field string
	Value string
	Err   error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("invalid %s timestamp %q: %v", e.Field, e.Value, e.Err)
}

func (e *TimestampParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTimestampParse) match any parse failure.
func (e *TimestampParseError) Is(target error) bool { return target == ErrTimestampParse }

// Context carries the elapsed-time figures embedded into the prompt.
type Context struct {
	Preparation           time.Time
	Packaging             time.Time
	Now                   time.Time
	HoursSincePreparation float64
	HoursSincePackaging   float64
}

// zoned layouts carry their own offset; local layouts are read in the caller's location.
var (
	zonedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00"}
	localLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02T15:04"}
)

// Parse reads an extended ISO-8601 timestamp. A trailing "Z" means UTC;
// values without a zone are interpreted in loc (UTC when loc is nil).
func Parse(field, value string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, &TimestampParseError{Field: field, Value: value, Err: errors.New("empty value")}
	}
	if loc == nil {
		loc = time.UTC
	}
	// Accept the space separator allowed by ISO-8601 profiles.
	if len(trimmed) > 10 && trimmed[10] == ' ' {
		trimmed = trimmed[:10] + "T" + trimmed[11:]
	}
	var lastErr error
	for _, layout := range zonedLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	for _, layout := range localLayouts {
		parsed, err := time.ParseInLocation(layout, trimmed, loc)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, &TimestampParseError{Field: field, Value: value, Err: lastErr}
}

// Build derives the hours elapsed since preparation and packaging relative to now.
func Build(preparation, packaging string, now time.Time, loc *time.Location) (Context, error) {
	prep, err := Parse("preparation", preparation, loc)
	if err != nil {
		return Context{}, err
	}
	pkg, err := Parse("packaging", packaging, loc)
	if err != nil {
		return Context{}, err
	}
	return Context{
		Preparation:           prep,
		Packaging:             pkg,
		Now:                   now,
		HoursSincePreparation: now.Sub(prep).Hours(),
		HoursSincePackaging:   now.Sub(pkg).Hours(),
	}, nil
}

// FormatHours renders an hour figure with one decimal place.
func FormatHours(hours float64) string {
	return fmt.Sprintf("%.1f", hours)
}
