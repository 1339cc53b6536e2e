package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rowhpc/row/pkg/cluster"
)

var showClusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "List configured clusters",
	RunE:  runShowCluster,
}

var (
	showClusterAll   bool
	showClusterShort bool
)

func init() {
	showCmd.AddCommand(showClusterCmd)
	showClusterCmd.Flags().BoolVar(&showClusterAll, "all", false, "include every partition's constraints")
	showClusterCmd.Flags().BoolVar(&showClusterShort, "short", false, "print only cluster names")
}

func runShowCluster(cmd *cobra.Command, args []string) error {
	dir, err := configDir()
	if err != nil {
		return exitError(ExitError, err)
	}
	registry, err := cluster.LoadRegistry(filepath.Join(dir, "clusters.toml"))
	if err != nil {
		return exitError(ExitError, fmt.Errorf("load clusters.toml: %w", err))
	}

	active, activeErr := registry.Active(opts.Cluster)

	out := cmd.OutOrStdout()
	if showClusterShort {
		for _, c := range registry.Clusters {
			fmt.Fprintln(out, c.Name)
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCHEDULER\tPARTITIONS\tACTIVE")
	for _, c := range registry.Clusters {
		isActive := activeErr == nil && active.Name == c.Name
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\n", c.Name, c.Scheduler, len(c.Partitions), isActive)
	}
	_ = w.Flush()

	if showClusterAll {
		return printPartitions(out, registry)
	}
	return nil
}

func printPartitions(out io.Writer, registry *cluster.Registry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLUSTER\tPARTITION\tMAX_CPUS\tMIN_GPUS\tMAX_GPUS\tPREVENT_AUTO")
	for _, c := range registry.Clusters {
		for _, p := range c.Partitions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
				c.Name, p.Name, intPtrString(p.MaximumCPUsPerJob), intPtrString(p.MinimumGPUsPerJob), intPtrString(p.MaximumGPUsPerJob), p.PreventAutoSelect)
		}
	}
	return w.Flush()
}

func intPtrString(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
