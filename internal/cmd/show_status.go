package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rowhpc/row/pkg/project"
)

var showStatusCmd = &cobra.Command{
	Use:   "status [directories...]",
	Short: "Refresh and report per-action status counts",
	RunE:  runShowStatus,
}

var (
	showStatusActions   []string
	showStatusAll       bool
	showStatusCompleted bool
	showStatusSubmitted bool
	showStatusEligible  bool
	showStatusWaiting   bool
	showStatusNoHeader  bool
)

func init() {
	showCmd.AddCommand(showStatusCmd)
	showStatusCmd.Flags().StringArrayVar(&showStatusActions, "action", nil, "action name pattern (repeatable, default: every action)")
	showStatusCmd.Flags().BoolVar(&showStatusAll, "all", false, "also list every (action, directory) pair")
	showStatusCmd.Flags().BoolVar(&showStatusCompleted, "completed", false, "restrict the --all listing to Completed pairs")
	showStatusCmd.Flags().BoolVar(&showStatusSubmitted, "submitted", false, "restrict the --all listing to Submitted pairs")
	showStatusCmd.Flags().BoolVar(&showStatusEligible, "eligible", false, "restrict the --all listing to Eligible pairs")
	showStatusCmd.Flags().BoolVar(&showStatusWaiting, "waiting", false, "restrict the --all listing to Waiting pairs")
	showStatusCmd.Flags().BoolVar(&showStatusNoHeader, "no-header", false, "omit header rows")
}

func runShowStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	proj, err := openProject()
	if err != nil {
		return exitError(ExitError, err)
	}

	actionNames, err := matchActionNames(showStatusActions, proj.Workflow.ActionNames())
	if err != nil {
		return exitError(ExitError, fmt.Errorf("invalid --action pattern: %w", err))
	}

	report, err := proj.Status(ctx, actionNames, args)
	if err != nil {
		return exitError(ExitError, err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if !showStatusNoHeader {
		fmt.Fprintln(w, "ACTION\tCOMPLETED\tSUBMITTED\tELIGIBLE\tWAITING\tCPU_HOURS\tGPU_HOURS")
	}
	for _, name := range actionNames {
		counts, ok := report.PerAction[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f\t%.1f\n",
			name, counts.Completed, counts.Submitted, counts.Eligible, counts.Waiting,
			counts.Cost.CPUHours, counts.Cost.GPUHours)
	}
	_ = w.Flush()

	if showStatusAll {
		return printStatusPairs(cmd, report, actionNames, statusFilter())
	}
	return nil
}

// statusFilter returns the single project.Status the --completed/
// --submitted/--eligible/--waiting flags select, or nil when none (or
// more than one) is set, meaning "every status".
func statusFilter() *project.Status {
	set := 0
	var s project.Status
	if showStatusCompleted {
		set++
		s = project.Completed
	}
	if showStatusSubmitted {
		set++
		s = project.Submitted
	}
	if showStatusEligible {
		set++
		s = project.Eligible
	}
	if showStatusWaiting {
		set++
		s = project.Waiting
	}
	if set != 1 {
		return nil
	}
	return &s
}

func printStatusPairs(cmd *cobra.Command, report *project.StatusReport, actionNames []string, filter *project.Status) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if !showStatusNoHeader {
		fmt.Fprintln(w, "ACTION\tDIRECTORY\tSTATUS")
	}
	for _, name := range actionNames {
		pairs, ok := report.PerPair[name]
		if !ok {
			continue
		}
		directories := make([]string, 0, len(pairs))
		for d := range pairs {
			directories = append(directories, d)
		}
		sort.Strings(directories)
		for _, d := range directories {
			status := pairs[d]
			if filter != nil && status != *filter {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, d, colorStatus(status))
		}
	}
	return w.Flush()
}
