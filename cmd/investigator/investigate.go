package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/archhub/investigator/internal/ai"
	"github.com/archhub/investigator/internal/git"
	"github.com/archhub/investigator/internal/investigate"
)

var investigateCmd = &cobra.Command{
	Use:   "investigate <repo-path> [repo-path...]",
	Short: "Run a full investigation for one or more repositories",
	Long: `Run the analysis steps for each repository, reusing cached step
outputs where the commit and prompt version match, and write the combined
analysis document.

Repositories whose state and prompt versions are unchanged are skipped
entirely unless --force is given.

Examples:
  # Investigate one repository
  investigator investigate ./work/myrepo

  # Investigate several repositories, at most 4 at a time
  investigator investigate ./work/* --parallel 4

  # Re-run even when nothing changed
  investigator investigate ./work/myrepo --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		parallel, _ := cmd.Flags().GetInt("parallel")
		ttlDays, _ := cmd.Flags().GetInt("ttl-days")
		outDir, _ := cmd.Flags().GetString("out")
		model, _ := cmd.Flags().GetString("model")
		ctx := cmd.Context()

		cfg, err := loadStepConfig()
		if err != nil {
			return err
		}
		prompts, err := loadPrompts(cfg)
		if err != nil {
			return err
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		analyzer, err := ai.NewClient(ai.ClientConfig{Model: model, RequestsPerSecond: 1})
		if err != nil {
			return err
		}

		g, err := git.NewGit(ctx)
		if err != nil {
			return err
		}

		engine := investigate.NewEngine(store, analyzer, cfg)

		// Repositories fan out in bounded parallel; each run stays
		// sequential internally.
		group, groupCtx := errgroup.WithContext(ctx)
		if parallel < 1 {
			parallel = 1
		}
		group.SetLimit(parallel)

		for _, repoPath := range args {
			group.Go(func() error {
				state, err := g.GetRepositoryState(groupCtx, repoPath)
				if err != nil {
					return err
				}

				result, err := engine.Run(groupCtx, investigate.Options{
					RepoName: repoNameFromPath(repoPath),
					State:    *state,
					Prompts:  prompts,
					Force:    force,
					TTLDays:  ttlDays,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", repoPath, err)
				}

				printRunResult(repoPath, result)
				if result.Skipped || outDir == "" {
					return nil
				}
				outPath := filepath.Join(outDir, repoNameFromPath(repoPath)+".md")
				if err := os.MkdirAll(outDir, 0755); err != nil {
					return err
				}
				return os.WriteFile(outPath, []byte(result.Document), 0644)
			})
		}

		return group.Wait()
	},
}

func printRunResult(repoPath string, result *investigate.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	name := repoNameFromPath(repoPath)
	if result.Skipped {
		fmt.Printf("%s %s: skipped (%s)\n", green("✓"), cyan(name), result.Decision.Reason)
		return
	}
	fmt.Printf("%s %s: investigated (%d cached, %d fresh)\n",
		green("✓"), cyan(name), result.CachedSteps, result.FreshSteps)
	if result.MetadataSave.Status != "success" {
		fmt.Printf("  %s %s\n", yellow("⚠"), result.MetadataSave.Message)
	}
}

func init() {
	investigateCmd.Flags().Bool("force", false, "investigate even when nothing changed")
	investigateCmd.Flags().Int("parallel", 1, "maximum repositories investigated concurrently")
	investigateCmd.Flags().Int("ttl-days", 0, "TTL for cache entries and metadata (default 90)")
	investigateCmd.Flags().String("out", "", "directory to write final documents to")
	investigateCmd.Flags().String("model", "", "analysis model override")
	rootCmd.AddCommand(investigateCmd)
}
