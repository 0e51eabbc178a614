package ai

import (
	"context"
	"strings"
)

type modelChain struct {
	primary  Model
	fallback Model
}

// WithFallback returns a model that first tries the primary implementation and
// falls back to the provided model when the primary is unavailable, fails, or
// produces a blank reply.
func WithFallback(primary, fallback Model) Model {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &modelChain{primary: primary, fallback: fallback}
}

func (c *modelChain) Enabled() bool {
	if c == nil {
		return false
	}
	if c.primary != nil && c.primary.Enabled() {
		return true
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return true
	}
	return false
}

func (c *modelChain) Generate(ctx context.Context, req Request) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	var primaryErr error
	if c.primary != nil && c.primary.Enabled() {
		text, err := c.primary.Generate(ctx, req)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		primaryErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Generate(ctx, req)
	}
	if primaryErr != nil {
		return "", primaryErr
	}
	return "", ErrDisabled
}
