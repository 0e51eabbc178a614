package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"food-safety-eval/backend/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "foodsafe",
	Short: "Food donation safety analysis from the command line",
	Long: "foodsafe analyses food photos for donation safety using the same\n" +
		"evaluation policy and verdict rules as the HTTP service.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", os.Getenv("FOODSAFE_CONFIG"), "YAML config file (default: $FOODSAFE_CONFIG)")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(checkPromptCmd)
	rootCmd.Version = version
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
