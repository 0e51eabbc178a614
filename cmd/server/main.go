package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"food-safety-eval/backend/internal/ai"
	"food-safety-eval/backend/internal/analyzer"
	"food-safety-eval/backend/internal/api"
	"food-safety-eval/backend/internal/config"
	"food-safety-eval/backend/internal/prompt"
)

func main() {
	if err := prompt.ValidateSystem(); err != nil {
		logrus.Fatalf("validate system prompt: %v", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		logrus.Fatalf("resolve timezone: %v", err)
	}

	if !cfg.Store.Disabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}

	model, err := ai.NewModel(cfg.AIConfig())
	switch {
	case errors.Is(err, ai.ErrDisabled):
		logrus.Warn("GEMINI_API_KEY not configured; every analysis will return the safe-default verdict")
	case err != nil:
		logrus.Fatalf("create gemini client: %v", err)
	default:
		logrus.WithFields(logrus.Fields{
			"model":    cfg.Gemini.Model,
			"fallback": cfg.Gemini.FallbackModel,
			"timeout":  cfg.Gemini.Timeout,
			"attempts": cfg.Gemini.MaxAttempts,
		}).Info("gemini model configured")
	}

	foodAnalyzer := analyzer.New(model,
		analyzer.WithLocation(loc),
		analyzer.WithSampling(cfg.Sampling()),
		analyzer.WithCallTimeout(cfg.Gemini.Timeout),
		analyzer.WithRetry(cfg.Gemini.MaxAttempts, 0, 0),
	)

	server, err := api.NewServer(api.Config{
		Analyzer:       foodAnalyzer,
		DBPath:         cfg.Store.Path,
		DisableAudit:   cfg.Store.Disabled,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		SilentDB:       true,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	logrus.WithField("origins", cfg.Server.AllowedOrigins).Infof("starting food-safety analyzer on :%s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
