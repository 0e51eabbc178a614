package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"food-safety-eval/backend/internal/prompt"
)

var checkPromptFlags struct {
	file string
}

var checkPromptCmd = &cobra.Command{
	Use:   "check-prompt",
	Short: "Validate the evaluation policy against the required checklist",
	Long: `Check that the evaluation policy names every pipeline section, decision
type and risk level the verdict schema depends on. Without --file the
embedded policy is checked.`,
	Args: cobra.NoArgs,
	RunE: runCheckPrompt,
}

func init() {
	checkPromptCmd.Flags().StringVar(&checkPromptFlags.file, "file", "", "Policy text file to check instead of the embedded one")
}

func runCheckPrompt(cmd *cobra.Command, _ []string) error {
	source := "embedded policy"
	text := prompt.System()
	if path := strings.TrimSpace(checkPromptFlags.file); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read policy: %w", err)
		}
		source = path
		text = string(data)
	}
	if err := prompt.Validate(text); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s OK (%d characters)\n", source, len(text))
	return nil
}
