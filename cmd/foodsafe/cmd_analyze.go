package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"food-safety-eval/backend/internal/ai"
	"food-safety-eval/backend/internal/analyzer"
	"food-safety-eval/backend/internal/prompt"
	"food-safety-eval/backend/internal/store"
	"food-safety-eval/backend/internal/verdict"
)

var analyzeFlags struct {
	preparation string
	packaging   string
	dbPath      string
	parallel    int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze --prep TIME --pkg TIME IMAGE...",
	Short: "Analyse one or more food photos",
	Long: `Analyse food photos for donation safety and print one JSON result per image.

All images share the same preparation and packaging timestamps. Images are
analysed concurrently; every image yields a verdict, and failures surface as
the fail-safe DISCARD verdict with "error": true.

Usage:
  foodsafe analyze --prep 2024-01-01T10:00 --pkg 2024-01-01T10:30 rice.jpg
  foodsafe analyze --prep ... --pkg ... --db data/food-safety.db *.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.preparation, "prep", "", "Preparation timestamp (ISO-8601)")
	f.StringVar(&analyzeFlags.packaging, "pkg", "", "Packaging timestamp (ISO-8601)")
	f.StringVar(&analyzeFlags.dbPath, "db", "", "Append results to this audit database")
	f.IntVarP(&analyzeFlags.parallel, "parallel", "p", 4, "Maximum concurrent analyses")
}

// analyzeResult is one line of CLI output.
type analyzeResult struct {
	Image     string          `json:"image"`
	Verdict   verdict.Verdict `json:"verdict"`
	Stage     string          `json:"stage,omitempty"`
	Attempts  int             `json:"attempts"`
	LatencyMs int64           `json:"latency_ms"`
}

type imageJob struct {
	path     string
	mimeType string
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	preparation := strings.TrimSpace(analyzeFlags.preparation)
	packaging := strings.TrimSpace(analyzeFlags.packaging)
	if preparation == "" || packaging == "" {
		return errors.New("--prep and --pkg are required")
	}

	jobs := make([]imageJob, 0, len(args))
	for _, path := range args {
		mimeType, ok := analyzer.MIMETypeFor(path)
		if !ok {
			return fmt.Errorf("%s: unsupported image type (allowed: png, jpg, jpeg, gif, webp)", path)
		}
		jobs = append(jobs, imageJob{path: path, mimeType: mimeType})
	}

	if err := prompt.ValidateSystem(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	model, err := ai.NewModel(cfg.AIConfig())
	if err != nil && !errors.Is(err, ai.ErrDisabled) {
		return fmt.Errorf("create gemini client: %w", err)
	}
	if errors.Is(err, ai.ErrDisabled) {
		logrus.Warn("GEMINI_API_KEY not configured; results will be safe-default verdicts")
	}
	foodAnalyzer := analyzer.New(model,
		analyzer.WithLocation(loc),
		analyzer.WithSampling(cfg.Sampling()),
		analyzer.WithCallTimeout(cfg.Gemini.Timeout),
		analyzer.WithRetry(cfg.Gemini.MaxAttempts, 0, 0),
	)

	var db *store.Database
	if dbPath := strings.TrimSpace(analyzeFlags.dbPath); dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		db, err = store.Open(dbPath, true)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	parallel := analyzeFlags.parallel
	if parallel < 1 {
		parallel = 1
	}

	results := make([]analyzeResult, len(jobs))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(parallel)
	for i, job := range jobs {
		g.Go(func() error {
			image, err := os.ReadFile(job.path)
			if err != nil {
				return fmt.Errorf("read %s: %w", job.path, err)
			}
			v, report := foodAnalyzer.AnalyzeWithReport(ctx, analyzer.Input{
				Image:           image,
				PreparationTime: preparation,
				PackageTime:     packaging,
				MIMEType:        job.mimeType,
			})
			results[i] = analyzeResult{
				Image:     job.path,
				Verdict:   v,
				Stage:     string(report.Stage),
				Attempts:  report.Attempts,
				LatencyMs: report.LatencyMs,
			}
			if db != nil {
				record := store.RecordFromVerdict(store.RecordInput{
					ImageFilename:    filepath.Base(job.path),
					PreparationTime:  preparation,
					PackageTime:      packaging,
					Stage:            report.Stage,
					ProcessingTimeMs: report.LatencyMs,
				}, v)
				if err := db.AppendAnalysis(record); err != nil {
					logrus.WithError(err).WithField("image", job.path).Warn("append audit record")
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
