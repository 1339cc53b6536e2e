package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowhpc/row/internal/rowlog"
	"github.com/rowhpc/row/pkg/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directories...]",
	Short: "Check product files and record completion, without refreshing",
	Long: `scan checks every matching action's product files against the given
directories (default: every workspace directory) and appends one
completion staging file per action that has any complete directory.
Unlike submit and show, scan never
refreshes or locks the project: it only ever appends, so concurrent scan
invocations from many compute nodes are safe.`,
	RunE: runScan,
}

var scanActions []string

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringArrayVar(&scanActions, "action", nil, "action name pattern to scan (repeatable, default: every action with products)")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	proj, err := openProject()
	if err != nil {
		return exitError(ExitError, err)
	}

	actionNames, err := matchActionNames(scanActions, proj.Workflow.ActionNames())
	if err != nil {
		return exitError(ExitError, fmt.Errorf("invalid --action pattern: %w", err))
	}

	concurrency := 8
	if opts != nil && opts.IOThreads > 0 {
		concurrency = opts.IOThreads
	}
	sc := scanner.New(scanner.Config{Concurrency: concurrency})

	logErr := func(directory string, err error) {
		rowlog.Logger.Warn("scan: skipped directory", zap.String("directory", directory), zap.Error(err))
	}

	result, err := proj.Scan(ctx, actionNames, args, sc, logErr)
	if err != nil {
		return exitError(ExitError, err)
	}

	for _, name := range actionNames {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d directory(ies) complete\n", name, len(result[name]))
	}
	return nil
}
