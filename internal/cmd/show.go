package cmd

import "github.com/spf13/cobra"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Inspect project state",
	Long:  `show reports a project's current status after a refresh: per-action counts, per-directory classification, and the configured cluster/launcher registry.`,
}

func init() {
	rootCmd.AddCommand(showCmd)
}
