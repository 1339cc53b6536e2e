package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rowhpc/row/pkg/group"
	"github.com/rowhpc/row/pkg/jsonvalue"
	"github.com/rowhpc/row/pkg/project"
)

var showDirectoriesCmd = &cobra.Command{
	Use:   "directories [directories...]",
	Short: "Refresh and list the groups an action's directories form",
	Long: `directories runs action's group-formation pipeline (include filter, sort,
split by sort key, cap to maximum_size) over the given directories
(default: every workspace directory), restricted to a single status when
one of --completed/--submitted/--eligible/--waiting is given.`,
	RunE: runShowDirectories,
}

var (
	showDirActions        []string
	showDirValues         []string
	showDirShort           bool
	showDirNGroups         int
	showDirCompleted       bool
	showDirSubmitted       bool
	showDirEligible        bool
	showDirWaiting         bool
	showDirNoSeparateGroups bool
)

func init() {
	showCmd.AddCommand(showDirectoriesCmd)
	showDirectoriesCmd.Flags().StringArrayVar(&showDirActions, "action", nil, "action name pattern (repeatable, default: every action)")
	showDirectoriesCmd.Flags().StringArrayVar(&showDirValues, "value", nil, "JSON pointer to print alongside each directory (repeatable)")
	showDirectoriesCmd.Flags().BoolVar(&showDirShort, "short", false, "print only directory names")
	showDirectoriesCmd.Flags().IntVar(&showDirNGroups, "n-groups", 0, "print at most N groups per action (0 means unlimited)")
	showDirectoriesCmd.Flags().BoolVar(&showDirCompleted, "completed", false, "restrict to Completed directories")
	showDirectoriesCmd.Flags().BoolVar(&showDirSubmitted, "submitted", false, "restrict to Submitted directories")
	showDirectoriesCmd.Flags().BoolVar(&showDirEligible, "eligible", false, "restrict to Eligible directories")
	showDirectoriesCmd.Flags().BoolVar(&showDirWaiting, "waiting", false, "restrict to Waiting directories")
	showDirectoriesCmd.Flags().BoolVar(&showDirNoSeparateGroups, "no-separate-groups", false, "flatten every group into one continuous list")
}

func runShowDirectories(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	proj, err := openProject()
	if err != nil {
		return exitError(ExitError, err)
	}

	actionNames, err := matchActionNames(showDirActions, proj.Workflow.ActionNames())
	if err != nil {
		return exitError(ExitError, fmt.Errorf("invalid --action pattern: %w", err))
	}

	report, err := proj.Status(ctx, actionNames, args)
	if err != nil {
		return exitError(ExitError, err)
	}

	values := func(d string) any { return proj.Values.Value(d) }
	filter := dirStatusFilter()

	out := cmd.OutOrStdout()
	for _, name := range actionNames {
		pairs := report.PerPair[name]
		candidates := make([]string, 0, len(pairs))
		for _, d := range report.Directories {
			status, ok := pairs[d]
			if !ok {
				continue
			}
			if filter != nil && status != *filter {
				continue
			}
			candidates = append(candidates, d)
		}

		for _, variant := range proj.Workflow.Variants(name) {
			groups, err := group.Pipeline(variant, candidates, values)
			if err != nil {
				return exitError(ExitError, fmt.Errorf("action %q: %w", name, err))
			}
			if showDirNGroups > 0 && len(groups) > showDirNGroups {
				groups = groups[:showDirNGroups]
			}
			printDirectoryGroups(out, name, groups, values)
		}
	}
	return nil
}

func dirStatusFilter() *project.Status {
	set := 0
	var s project.Status
	if showDirCompleted {
		set++
		s = project.Completed
	}
	if showDirSubmitted {
		set++
		s = project.Submitted
	}
	if showDirEligible {
		set++
		s = project.Eligible
	}
	if showDirWaiting {
		set++
		s = project.Waiting
	}
	if set != 1 {
		return nil
	}
	return &s
}

func printDirectoryGroups(out io.Writer, action string, groups []group.Group, values func(string) any) {
	flat := showDirNoSeparateGroups || showDirShort
	for i, g := range groups {
		if !flat {
			fmt.Fprintf(out, "# %s group %d (%d directories)\n", action, i, len(g))
		}
		for _, d := range g {
			if showDirShort {
				fmt.Fprintf(out, "%s\n", d)
				continue
			}
			line := d
			for _, pointer := range showDirValues {
				v, err := jsonvalue.Lookup(values(d), pointer)
				if err != nil {
					line += fmt.Sprintf("\t<error: %v>", err)
					continue
				}
				line += fmt.Sprintf("\t%v", v)
			}
			fmt.Fprintf(out, "%s\t%s\n", action, line)
		}
	}
}
