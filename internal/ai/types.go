package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Model is the upstream multimodal model: one request in, raw reply text out.
type Model interface {
	Enabled() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a single image-plus-instructions call.
type Request struct {
	SystemInstruction string
	Prompt            string
	Image             []byte
	MIMEType          string
	Sampling          Sampling
}

// Sampling configures generation. Zero values fall back to DefaultSampling.
type Sampling struct {
	Temperature      float32
	TopP             float32
	MaxOutputTokens  int32
	ResponseMIMEType string
}

// DefaultSampling is deterministic-leaning and asks for JSON output.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:      0.1,
		TopP:             0.95,
		MaxOutputTokens:  2048,
		ResponseMIMEType: "application/json",
	}
}

func (s Sampling) withDefaults() Sampling {
	def := DefaultSampling()
	if s.Temperature <= 0 {
		s.Temperature = def.Temperature
	}
	if s.TopP <= 0 || s.TopP > 1 {
		s.TopP = def.TopP
	}
	if s.MaxOutputTokens <= 0 {
		s.MaxOutputTokens = def.MaxOutputTokens
	}
	if s.ResponseMIMEType == "" {
		s.ResponseMIMEType = def.ResponseMIMEType
	}
	return s
}

var (
	ErrDisabled      = errors.New("ai model disabled")
	ErrEmptyResponse = errors.New("model returned empty response")
)

// UpstreamError wraps transport, auth, quota and timeout failures of the
// model call. StatusCode is zero when no HTTP status was received.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Transient reports whether a retry may succeed. A per-attempt deadline
// counts as transient; the caller checks its own context before retrying.
func (e *UpstreamError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.StatusCode == 0 && errors.Is(e.Err, context.DeadlineExceeded)
}

// IsTransient reports whether err is an UpstreamError worth retrying.
func IsTransient(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Transient()
	}
	return false
}
