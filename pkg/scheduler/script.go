package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rowhpc/row/pkg/cluster"
	"github.com/rowhpc/row/pkg/workflow"
)

// BuildScript synthesizes the bash script body common to every scheduler
// backend: environment variable exports, the directories array, a trap
// that scans products from the compute node on exit, and the
// launcher-prefixed command(s). preamble carries scheduler-specific
// directives (SLURM's #SBATCH lines; empty for shell) and is written
// first, immediately after the shebang.
func BuildScript(preamble string, action workflow.Action, directories []string, values map[string]any, workspacePath, clusterName string, launchers map[string]cluster.Launcher) (string, error) {
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	if preamble != "" {
		b.WriteString(preamble)
	}
	b.WriteString("set -u\n")

	writeEnvExports(&b, action, clusterName, len(directories))

	b.WriteString("directories=(")
	for i, d := range directories {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%q", d)
	}
	b.WriteString(")\n")

	fmt.Fprintf(&b, "trap 'printf \"%%s\\n\" \"${directories[@]}\" | row scan --action %s' EXIT\n", shellQuote(action.Name))

	prefix, err := cluster.ExpandCommand("", action.Launchers, launchers, clusterName, action.Resources, len(directories))
	if err != nil {
		return "", err
	}
	prefix = strings.TrimSuffix(prefix, " ")

	switch {
	case UsesDirectories(action.Command):
		cmd := strings.ReplaceAll(action.Command, "{directories}", `"${directories[@]}"`)
		cmd = strings.ReplaceAll(cmd, "{workspace_path}", workspacePath)
		fmt.Fprintf(&b, "%s%s || { >&2 echo \"%s failed\"; exit 2; }\n", prefix, cmd, action.Name)

	case UsesDirectory(action.Command):
		for _, d := range directories {
			expanded, err := ExpandCommand(action.Command, d, workspacePath, values[d])
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%s%s || { >&2 echo \"%s failed on %s\"; exit 2; }\n", prefix, expanded, action.Name, d)
		}

	default:
		fmt.Fprintf(&b, "%s%s || { >&2 echo \"%s failed\"; exit 2; }\n", prefix, action.Command, action.Name)
	}

	return b.String(), nil
}

func writeEnvExports(b *strings.Builder, action workflow.Action, clusterName string, nDirectories int) {
	fmt.Fprintf(b, "export ACTION_CLUSTER=%s\n", shellQuote(clusterName))
	fmt.Fprintf(b, "export ACTION_NAME=%s\n", shellQuote(action.Name))
	fmt.Fprintf(b, "export ACTION_PROCESSES=%s\n", strconv.Itoa(cluster.TotalProcesses(action.Resources, nDirectories)))
	fmt.Fprintf(b, "export ACTION_WALLTIME_IN_MINUTES=%s\n", strconv.FormatInt((cluster.TotalWalltimeSeconds(action.Resources, nDirectories)+59)/60, 10))
	if action.Resources.Processes.Scope == workflow.PerDirectory {
		fmt.Fprintf(b, "export ACTION_PROCESSES_PER_DIRECTORY=%s\n", strconv.FormatInt(action.Resources.Processes.Count, 10))
	}
	if action.Resources.ThreadsPerProcess > 0 {
		fmt.Fprintf(b, "export ACTION_THREADS_PER_PROCESS=%s\n", strconv.Itoa(action.Resources.ThreadsPerProcess))
	}
	if action.Resources.GpusPerProcess != nil {
		fmt.Fprintf(b, "export ACTION_GPUS_PER_PROCESS=%s\n", strconv.Itoa(*action.Resources.GpusPerProcess))
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
