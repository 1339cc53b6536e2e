package cmd

import (
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rowhpc/row/pkg/cluster"
)

var showLaunchersCmd = &cobra.Command{
	Use:   "launchers",
	Short: "List configured launchers",
	RunE:  runShowLaunchers,
}

var (
	showLaunchersAll   bool
	showLaunchersShort bool
)

func init() {
	showCmd.AddCommand(showLaunchersCmd)
	showLaunchersCmd.Flags().BoolVar(&showLaunchersAll, "all", false, "include every per-cluster settings entry")
	showLaunchersCmd.Flags().BoolVar(&showLaunchersShort, "short", false, "print only launcher names")
}

func runShowLaunchers(cmd *cobra.Command, args []string) error {
	dir, err := configDir()
	if err != nil {
		return exitError(ExitError, err)
	}
	launchers, err := cluster.LoadLaunchers(filepath.Join(dir, "launchers.toml"))
	if err != nil {
		return exitError(ExitError, fmt.Errorf("load launchers.toml: %w", err))
	}

	names := make([]string, 0, len(launchers))
	for name := range launchers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	if showLaunchersShort {
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCLUSTERS")
	for _, name := range names {
		l := launchers[name]
		clusters := make([]string, 0, len(l.PerCluster))
		for c := range l.PerCluster {
			clusters = append(clusters, c)
		}
		sort.Strings(clusters)
		fmt.Fprintf(w, "%s\t%d\n", name, len(clusters))
		if showLaunchersAll {
			for _, c := range clusters {
				s := l.PerCluster[c]
				fmt.Fprintf(w, "  %s\t%s\n", c, s.Executable)
			}
		}
	}
	return w.Flush()
}
