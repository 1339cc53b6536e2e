package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowhpc/row/pkg/project"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [directories...]",
	Short: "Administratively reset store state",
	Long: `clean resets selected store state directly, without a scheduler round
trip: --completed un-marks directories complete, --submitted forgets
recorded job ids, and --directory purges state for directories no longer
present under the workspace root. It refuses while the active cluster
still has pending submissions.`,
	RunE: runClean,
}

var (
	cleanActions       []string
	cleanCompletedFlag bool
	cleanSubmittedFlag bool
	cleanDirectoryFlag bool
)

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringArrayVar(&cleanActions, "action", nil, "action name pattern to clean (repeatable, default: every action)")
	cleanCmd.Flags().BoolVar(&cleanCompletedFlag, "completed", false, "un-mark selected directories complete")
	cleanCmd.Flags().BoolVar(&cleanSubmittedFlag, "submitted", false, "forget selected directories' recorded job ids")
	cleanCmd.Flags().BoolVar(&cleanDirectoryFlag, "directory", false, "purge state for directories no longer present under the workspace root")
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	proj, err := openProject()
	if err != nil {
		return exitError(ExitError, err)
	}

	actionNames, err := matchActionNames(cleanActions, proj.Workflow.ActionNames())
	if err != nil {
		return exitError(ExitError, fmt.Errorf("invalid --action pattern: %w", err))
	}

	cleanOpts := project.CleanOptions{
		Completed: cleanCompletedFlag,
		Submitted: cleanSubmittedFlag,
		Directory: cleanDirectoryFlag,
	}
	if err := proj.Clean(ctx, cleanOpts, actionNames, args); err != nil {
		return exitError(ExitError, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "clean complete")
	return nil
}
