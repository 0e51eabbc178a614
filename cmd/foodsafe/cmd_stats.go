package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"food-safety-eval/backend/internal/store"
)

var statsFlags struct {
	dbPath  string
	history int
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print audit log statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	f := statsCmd.Flags()
	f.StringVar(&statsFlags.dbPath, "db", "", "Audit database path (default: configured store path)")
	f.IntVar(&statsFlags.history, "history", 0, "Also print the N most recent records")
}

type statsOutput struct {
	Statistics store.Stats            `json:"statistics"`
	History    []store.AnalysisRecord `json:"history,omitempty"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	dbPath := strings.TrimSpace(statsFlags.dbPath)
	if dbPath == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dbPath = cfg.Store.Path
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("audit database %s: %w", dbPath, err)
	}

	db, err := store.Open(dbPath, true)
	if err != nil {
		return err
	}
	defer db.Close()

	var out statsOutput
	if out.Statistics, err = db.Statistics(); err != nil {
		return err
	}
	if statsFlags.history > 0 {
		if out.History, err = db.RecentAnalyses(statsFlags.history); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
