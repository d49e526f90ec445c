// Command investigator decides whether repositories need re-analysis,
// runs analysis steps with prompt-level caching, and assembles the final
// analysis document.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archhub/investigator/internal/steps"
	"github.com/archhub/investigator/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "investigator",
	Short: "Repository analysis with staleness-aware caching",
	Long: `investigator re-analyzes source repositories with an LLM and skips
work that is already done: whole repositories whose state and prompt
versions are unchanged, and individual steps whose output is cached for
the current commit and prompt version.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	dbPath     string
	stepsPath  string
	promptsDir string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "store database path (default .investigator/investigator.db)")
	rootCmd.PersistentFlags().StringVar(&stepsPath, "steps", "prompts/steps.yaml", "step configuration file")
	rootCmd.PersistentFlags().StringVar(&promptsDir, "prompts", "prompts", "directory of per-step prompt files")
}

func openStore(cmd *cobra.Command) (storage.Store, error) {
	cfg := storage.DefaultConfig()
	if dbPath != "" {
		cfg.Path = dbPath
	}
	return storage.NewStore(cmd.Context(), cfg)
}

func loadStepConfig() (*steps.Config, error) {
	return steps.Load(stepsPath)
}

// loadPrompts reads one prompt file per configured step from the prompts
// directory (<step name>.md). Missing files for optional steps are fine.
func loadPrompts(cfg *steps.Config) (map[string]string, error) {
	prompts := make(map[string]string, len(cfg.ProcessingOrder))
	for _, step := range cfg.ProcessingOrder {
		path := filepath.Join(promptsDir, step.Name+".md")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) && !step.Required {
				continue
			}
			return nil, fmt.Errorf("failed to read prompt for step %s: %w", step.Name, err)
		}
		prompts[step.Name] = string(data)
	}
	return prompts, nil
}

// repoNameFromPath derives the repository name used as the metadata key.
func repoNameFromPath(repoPath string) string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return filepath.Base(repoPath)
	}
	return strings.TrimSuffix(filepath.Base(abs), ".git")
}
