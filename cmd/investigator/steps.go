package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/archhub/investigator/internal/promptver"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List the configured analysis steps and their prompt versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadStepConfig()
		if err != nil {
			return err
		}
		prompts, err := loadPrompts(cfg)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		dim := color.New(color.Faint).SprintFunc()

		for _, step := range cfg.ProcessingOrder {
			version := "-"
			if content, ok := prompts[step.Name]; ok {
				v, err := promptver.Extract(content)
				if err != nil {
					return err
				}
				version = "v" + v
			}

			required := "optional"
			if step.Required {
				required = "required"
			}
			fmt.Printf("%s %s (%s)\n", cyan(step.Name), version, required)
			if step.Description != "" {
				fmt.Printf("  %s\n", step.Description)
			}
			if len(step.ContextDependencies) > 0 {
				fmt.Printf("  %s\n", dim("depends on: "+strings.Join(step.ContextDependencies, ", ")))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}
