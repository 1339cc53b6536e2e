package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rowhpc/row/pkg/cluster"
	"github.com/rowhpc/row/pkg/project"
	"github.com/rowhpc/row/pkg/scheduler"
	"github.com/rowhpc/row/pkg/scheduler/shell"
	"github.com/rowhpc/row/pkg/scheduler/slurm"
)

// configDir returns $HOME/.config/row, the directory spec.md §6 fixes for
// clusters.toml and launchers.toml.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "row"), nil
}

// openProject loads the cluster/launcher registry and opens the project
// rooted at projectDir, wiring a scheduler factory that picks slurm or
// shell per the active cluster's `scheduler` field.
func openProject() (*project.Project, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	registry, err := cluster.LoadRegistry(filepath.Join(dir, "clusters.toml"))
	if err != nil {
		return nil, fmt.Errorf("load clusters.toml: %w", err)
	}
	launchers, err := cluster.LoadLaunchers(filepath.Join(dir, "launchers.toml"))
	if err != nil {
		return nil, fmt.Errorf("load launchers.toml: %w", err)
	}

	root, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	concurrency := 8
	if opts != nil && opts.IOThreads > 0 {
		concurrency = opts.IOThreads
	}
	clusterName := ""
	if opts != nil {
		clusterName = opts.Cluster
	}

	return project.Open(root, registry, launchers, clusterName, schedulerFactory(root), concurrency)
}

// schedulerFactory returns a project.SchedulerFactory that writes
// synthesized job scripts under root/.row/scripts and dispatches to the
// slurm or shell backend according to the cluster's `scheduler` field.
func schedulerFactory(root string) project.SchedulerFactory {
	return func(c *cluster.Cluster, launchers map[string]cluster.Launcher) (*scheduler.Scheduler, error) {
		scriptDir := filepath.Join(root, ".row", "scripts")
		if err := os.MkdirAll(scriptDir, 0o755); err != nil {
			return nil, fmt.Errorf("create script directory: %w", err)
		}

		switch c.Scheduler {
		case "slurm":
			return slurm.New(c, launchers, scriptDir), nil
		case "shell", "":
			return shell.New(launchers, scriptDir, os.Stdout, os.Stderr), nil
		default:
			return nil, fmt.Errorf("cluster %q: unknown scheduler kind %q", c.Name, c.Scheduler)
		}
	}
}

// schedulerExitCode maps a scheduler error to the CLI exit code spec.md
// §6 assigns it: a shell-backend rejection is the submitted command's own
// non-zero exit (ExitScriptError); any other backend's rejection is the
// scheduler subprocess itself refusing the request (ExitSchedulerError).
func schedulerExitCode(err error) int {
	var rejected *scheduler.RejectedError
	if errors.As(err, &rejected) {
		if rejected.Scheduler == "shell" {
			return ExitScriptError
		}
		return ExitSchedulerError
	}
	return ExitError
}
