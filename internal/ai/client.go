package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Config holds Gemini configuration parameters.
type Config struct {
	APIKey        string
	Model         string
	FallbackModel string
	BaseURL       string
	Timeout       time.Duration
	Sampling      Sampling
}

// GeminiClient implements Model against the Gemini API.
type GeminiClient struct {
	client   *genai.Client
	model    string
	sampling Sampling
}

const defaultModel = "gemini-2.5-flash"

// NewGeminiClient constructs a client if the supplied configuration is valid.
func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrDisabled
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{
		client:   client,
		model:    model,
		sampling: cfg.Sampling.withDefaults(),
	}, nil
}

// NewModel builds the primary client and, when a fallback model name is
// configured, chains a second client behind it.
func NewModel(cfg Config) (Model, error) {
	primary, err := NewGeminiClient(cfg)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.FallbackModel) == "" || strings.TrimSpace(cfg.FallbackModel) == primary.model {
		return primary, nil
	}
	fallbackCfg := cfg
	fallbackCfg.Model = cfg.FallbackModel
	fallback, err := NewGeminiClient(fallbackCfg)
	if err != nil {
		return nil, fmt.Errorf("fallback model: %w", err)
	}
	return WithFallback(primary, fallback), nil
}

// Name returns the model identifier used for calls.
func (c *GeminiClient) Name() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Enabled reports whether the client can make outbound calls.
func (c *GeminiClient) Enabled() bool {
	return c != nil && c.client != nil
}

// Generate sends the instruction and image in a single user turn and
// returns the model's text reply.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	sampling := req.Sampling
	if sampling == (Sampling{}) {
		sampling = c.sampling
	}
	sampling = sampling.withDefaults()

	mimeType := strings.TrimSpace(req.MIMEType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Image, mimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(sampling.Temperature),
		TopP:             genai.Ptr(sampling.TopP),
		MaxOutputTokens:  sampling.MaxOutputTokens,
		ResponseMIMEType: sampling.ResponseMIMEType,
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", wrapUpstream(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &UpstreamError{Err: ErrEmptyResponse}
	}
	return text, nil
}

func wrapUpstream(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.Code, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &UpstreamError{Err: fmt.Errorf("deadline exceeded: %w", err)}
	}
	return &UpstreamError{Err: err}
}
