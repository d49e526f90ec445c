package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/archhub/investigator/internal/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the metadata/cache store",
	Long: `Run a write-read-delete round trip against the store and report
whether it is healthy, degraded, or down. Exits non-zero when the store
is down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		report := health.CheckStore(cmd.Context(), store)

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		switch report.Status {
		case health.StatusHealthy:
			fmt.Printf("%s store healthy (%v)\n", green("✓"), report.Latency)
		case health.StatusDegraded:
			fmt.Printf("%s store degraded: %s (%v)\n", yellow("⚠"), report.Message, report.Latency)
		default:
			fmt.Printf("%s store down: %s\n", red("✗"), report.Message)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
