package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"food-safety-eval/backend/internal/ai"
)

// Config is the full runtime configuration shared by the server and the CLI.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	Gemini   GeminiConfig `yaml:"gemini"`
	Store    StoreConfig  `yaml:"store"`
	Timezone string       `yaml:"timezone"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

// GeminiConfig configures the upstream model and its retry policy.
type GeminiConfig struct {
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	FallbackModel   string        `yaml:"fallback_model"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Temperature     float32       `yaml:"temperature"`
	TopP            float32       `yaml:"top_p"`
	MaxOutputTokens int32         `yaml:"max_output_tokens"`
}

// StoreConfig configures the audit log.
type StoreConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sampling := ai.DefaultSampling()
	return &Config{
		Server: ServerConfig{
			Port:           "5000",
			AllowedOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			MaxUploadMB:    10,
		},
		Gemini: GeminiConfig{
			Model:           "gemini-2.5-flash",
			Timeout:         60 * time.Second,
			MaxAttempts:     2,
			Temperature:     sampling.Temperature,
			TopP:            sampling.TopP,
			MaxOutputTokens: sampling.MaxOutputTokens,
		},
		Store: StoreConfig{
			Path: "data/food-safety.db",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and then environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.WithField("path", path).Warn("config file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// FromEnv loads the file named by FOODSAFE_CONFIG, if any, plus environment overrides.
func FromEnv() (*Config, error) {
	return Load(os.Getenv("FOODSAFE_CONFIG"))
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		c.Gemini.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); v != "" {
		c.Gemini.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_FALLBACK_MODEL")); v != "" {
		c.Gemini.FallbackModel = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")); v != "" {
		c.Gemini.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Gemini.Timeout = d
		} else {
			logrus.WithError(err).Warn("ignoring invalid GEMINI_TIMEOUT")
		}
	}
	if v := strings.TrimSpace(os.Getenv("GEMINI_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gemini.MaxAttempts = n
		} else {
			logrus.WithError(err).Warn("ignoring invalid GEMINI_MAX_ATTEMPTS")
		}
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("FOODSAFE_ALLOWED_ORIGINS")); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("FOODSAFE_MAX_UPLOAD_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MaxUploadMB = n
		} else {
			logrus.WithError(err).Warn("ignoring invalid FOODSAFE_MAX_UPLOAD_MB")
		}
	}
	if v := strings.TrimSpace(os.Getenv("FOODSAFE_DB_PATH")); v != "" {
		c.Store.Path = v
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("FOODSAFE_DISABLE_AUDIT")), "true") {
		c.Store.Disabled = true
	}
	if v := strings.TrimSpace(os.Getenv("FOODSAFE_TIMEZONE")); v != "" {
		c.Timezone = v
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d MB", c.Server.MaxUploadMB)
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini model is required")
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("gemini timeout must be positive, got %s", c.Gemini.Timeout)
	}
	if c.Gemini.MaxAttempts < 1 {
		return fmt.Errorf("gemini max attempts must be at least 1, got %d", c.Gemini.MaxAttempts)
	}
	if c.Gemini.TopP < 0 || c.Gemini.TopP > 1 {
		return fmt.Errorf("gemini top_p must be within [0,1], got %v", c.Gemini.TopP)
	}
	if !c.Store.Disabled && strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store path is required unless the audit log is disabled")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the zone used for timestamps without an offset.
// An empty timezone means UTC.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// MaxUploadBytes converts the upload limit to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// AIConfig maps the Gemini section onto the client configuration.
func (c *Config) AIConfig() ai.Config {
	return ai.Config{
		APIKey:        c.Gemini.APIKey,
		Model:         c.Gemini.Model,
		FallbackModel: c.Gemini.FallbackModel,
		BaseURL:       c.Gemini.BaseURL,
		Timeout:       c.Gemini.Timeout,
		Sampling: ai.Sampling{
			Temperature:      c.Gemini.Temperature,
			TopP:             c.Gemini.TopP,
			MaxOutputTokens:  c.Gemini.MaxOutputTokens,
			ResponseMIMEType: ai.DefaultSampling().ResponseMIMEType,
		},
	}
}

// Sampling returns the generation parameters with defaults applied.
func (c *Config) Sampling() ai.Sampling {
	return c.AIConfig().Sampling
}
