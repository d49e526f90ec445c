package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/archhub/investigator/internal/git"
	"github.com/archhub/investigator/internal/promptver"
	"github.com/archhub/investigator/internal/staleness"
	"github.com/archhub/investigator/internal/types"
)

var decideCmd = &cobra.Command{
	Use:   "decide <repo-path>",
	Short: "Report whether a repository needs re-investigation",
	Long: `Check the repository's current commit, branch, and prompt versions
against the last recorded investigation and report the decision without
running any analysis.

Examples:
  # Decide for a checked-out repository
  investigator decide ./work/myrepo

  # Decide without prompt-version checking
  investigator decide ./work/myrepo --no-prompts`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noPrompts, _ := cmd.Flags().GetBool("no-prompts")
		ctx := cmd.Context()
		repoPath := args[0]

		g, err := git.NewGit(ctx)
		if err != nil {
			return err
		}
		state, err := g.GetRepositoryState(ctx, repoPath)
		if err != nil {
			return err
		}

		var versions map[string]string
		if !noPrompts {
			cfg, err := loadStepConfig()
			if err != nil {
				return err
			}
			prompts, err := loadPrompts(cfg)
			if err != nil {
				return err
			}
			versions, err = promptver.TrackVersions(prompts)
			if err != nil {
				return err
			}
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		engine := staleness.NewEngine(store)
		decision := engine.Decide(ctx, repoNameFromPath(repoPath), *state, versions)
		printDecision(decision)
		return nil
	},
}

func printDecision(d types.InvestigationDecision) {
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	if d.NeedsInvestigation {
		fmt.Printf("%s Investigation needed\n", yellow("⚠"))
	} else {
		fmt.Printf("%s Up to date\n", green("✓"))
	}
	fmt.Printf("  Reason: %s\n", d.Reason)
	fmt.Printf("  Branch: %s\n", d.BranchName)
	fmt.Printf("  Commit: %s\n", types.ShortCommit(d.LatestCommit))
	if last := d.LastInvestigation; last != nil {
		fmt.Printf("  Last investigated: %s (commit %s)\n",
			last.AnalysisTimestamp.Format("2006-01-02 15:04:05"),
			types.ShortCommit(last.CommitID))
	} else {
		fmt.Fprintln(os.Stdout, "  Last investigated: never")
	}
}

func init() {
	decideCmd.Flags().Bool("no-prompts", false, "skip the prompt-version check")
	rootCmd.AddCommand(decideCmd)
}
