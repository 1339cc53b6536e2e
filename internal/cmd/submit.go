package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowhpc/row/internal/rowlog"
	"github.com/rowhpc/row/pkg/project"
)

var submitCmd = &cobra.Command{
	Use:   "submit [directories...]",
	Short: "Refresh state and submit eligible directories",
	Long: `submit refreshes store state (merging completion staging, polling the
active cluster, re-discovering the workspace), then forms submission
groups for every matching action in declaration order and submits them to
the active cluster, one group at a time. A group's job id is recorded and
persisted immediately on success.`,
	RunE: runSubmit,
}

var (
	submitActions []string
	submitDryRun  bool
	submitLimit   int
)

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringArrayVar(&submitActions, "action", nil, "action name pattern to submit (repeatable, default: every action)")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "render job scripts without submitting them")
	submitCmd.Flags().IntVarP(&submitLimit, "n", "n", 0, "submit at most N directories total")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	proj, err := openProject()
	if err != nil {
		return exitError(ExitError, err)
	}

	actionNames, err := matchActionNames(submitActions, proj.Workflow.ActionNames())
	if err != nil {
		return exitError(ExitError, fmt.Errorf("invalid --action pattern: %w", err))
	}

	confirmFn := confirm
	if submitDryRun {
		confirmFn = func(summary string) (bool, error) { return true, nil }
	}

	result, err := proj.Submit(ctx, project.SubmitOptions{
		ActionNames: actionNames,
		Directories: args,
		NLimit:      submitLimit,
		DryRun:      submitDryRun,
		Confirm:     confirmFn,
		Logf: func(format string, fargs ...any) {
			fmt.Fprintf(cmd.OutOrStdout(), format+"\n", fargs...)
		},
	})
	if err != nil {
		rowlog.Logger.Error("submit failed", zap.Error(err))
		return exitError(schedulerExitCode(err), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "submitted %d directory(ies) in %d group(s)\n", result.Submitted, result.Groups)
	return nil
}
