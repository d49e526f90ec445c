package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/archhub/investigator/internal/promptcache"
	"github.com/archhub/investigator/internal/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the prompt result cache",
}

var cacheCheckCmd = &cobra.Command{
	Use:   "check <repo-name> <step-name> <commit>",
	Short: "Check whether a step's output is cached for a commit",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		showContent, _ := cmd.Flags().GetBool("content")

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		cache := promptcache.New(store)
		result := cache.Check(cmd.Context(), args[0], args[1], args[2], version)

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		if result.NeedsAnalysis {
			fmt.Printf("%s %s\n", yellow("miss"), result.Reason)
		} else {
			fmt.Printf("%s %s\n", green("hit"), result.Reason)
			fmt.Printf("  Key: %s\n", result.CachedResultKey)
			if result.CacheTimestamp != nil {
				fmt.Printf("  Cached: %s\n", result.CacheTimestamp.Format("2006-01-02 15:04:05"))
			}
			if showContent {
				fmt.Println()
				fmt.Println(result.CachedResult)
			}
		}
		return nil
	},
}

var cacheSaveCmd = &cobra.Command{
	Use:   "save <repo-name> <step-name> <commit> <content-file>",
	Short: "Cache a step's output for a commit",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")
		ttlDays, _ := cmd.Flags().GetInt("ttl-days")

		content, err := os.ReadFile(args[3])
		if err != nil {
			return fmt.Errorf("failed to read content file: %w", err)
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		cache := promptcache.New(store)
		result := cache.Save(cmd.Context(), args[0], args[1], args[2], string(content), version, ttlDays)
		if result.Status != types.SaveStatusSuccess {
			return fmt.Errorf("%s", result.Message)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s\n", green("✓"), result.Message)
		fmt.Printf("  Key: %s\n", result.CacheKey)
		return nil
	},
}

func init() {
	cacheCheckCmd.Flags().String("version", "1", "prompt version")
	cacheCheckCmd.Flags().Bool("content", false, "print the cached content on a hit")
	cacheSaveCmd.Flags().String("version", "1", "prompt version")
	cacheSaveCmd.Flags().Int("ttl-days", 0, "TTL in days (default 90)")
	cacheCmd.AddCommand(cacheCheckCmd)
	cacheCmd.AddCommand(cacheSaveCmd)
	rootCmd.AddCommand(cacheCmd)
}
