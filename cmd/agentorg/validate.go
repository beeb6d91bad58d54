package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var orgPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an organization file for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadOrg(orgPath)
			if err != nil {
				return err
			}
			flat, _ := cfg.Flatten()
			issues := cfg.Validate()
			if len(issues) == 0 {
				printStatus(out, "✓", fmt.Sprintf("%s: %d workers, %d environments, %d SOPs", cfg.Name, len(flat), len(cfg.Environments), len(cfg.SOPs)), okColor)
				return nil
			}
			for _, issue := range issues {
				printStatus(out, "✗", issue.String(), failColor)
			}
			return fmt.Errorf("%d configuration issues", len(issues))
		},
	}
	cmd.Flags().StringVar(&orgPath, "org", "", "Organization file (YAML); the built-in publishing house when empty")
	return cmd
}
