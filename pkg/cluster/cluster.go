// Package cluster holds the ordered cluster/launcher registry: active
// cluster identification, partition auto-selection, and launcher prefix
// expansion.
package cluster

import (
	"fmt"
	"os"

	"github.com/rowhpc/row/pkg/workflow"
)

// Identify selects, at most, one of two matching strategies for a
// cluster: either an unconditional catch-all, or an environment-variable
// equality check.
type Identify struct {
	Always        bool
	ByEnvironment *EnvMatch
}

// EnvMatch matches when the named environment variable equals Value.
type EnvMatch struct {
	Var   string
	Value string
}

func (id Identify) matches() bool {
	switch {
	case id.Always:
		return true
	case id.ByEnvironment != nil:
		return os.Getenv(id.ByEnvironment.Var) == id.ByEnvironment.Value
	default:
		return false
	}
}

// Partition is one named slice of a cluster's resources with the
// constraints SLURM partition auto-selection checks in order.
type Partition struct {
	Name string

	PreventAutoSelect bool

	MaximumCPUsPerJob   *int
	RequireCPUsMultiple *int
	WarnCPUsMultiple    *int
	CPUsPerNode         *int
	MemoryPerCPU        string

	MinimumGPUsPerJob   *int
	MaximumGPUsPerJob   *int
	RequireGPUsMultiple *int
	WarnGPUsMultiple    *int
	GPUsPerNode         *int
	MemoryPerGPU        string

	AccountSuffix string
}

// Cluster is one scheduler target: a name, an identification rule, a
// scheduler kind, and an ordered partition list.
type Cluster struct {
	Name       string
	Identify   Identify
	Scheduler  string // "slurm" or "shell"
	Partitions []Partition

	// SubmitOptions are cluster-wide SBATCH directives applied before any
	// action-specific submit_options, so actions can override them.
	SubmitOptions []string
}

// Registry is the ordered list of configured clusters (user-defined
// first, built-ins after, by construction of whoever builds the
// Registry).
type Registry struct {
	Clusters []Cluster
}

// ActiveClusterError reports that no cluster matched selection.
type ActiveClusterError struct {
	Requested string
}

func (e *ActiveClusterError) Error() string {
	if e.Requested != "" {
		return fmt.Sprintf("no cluster named %q is configured", e.Requested)
	}
	return "no cluster's identify clause matched; set ROW_CLUSTER or add an `always = true` cluster"
}

// Active selects the active cluster: requestedName, if non-empty, picks
// the first cluster with that name; otherwise the first cluster whose
// Identify clause matches (an `always = true` cluster acts as a catch-all
// and ends the search).
func (r *Registry) Active(requestedName string) (*Cluster, error) {
	if requestedName != "" {
		for i := range r.Clusters {
			if r.Clusters[i].Name == requestedName {
				return &r.Clusters[i], nil
			}
		}
		return nil, &ActiveClusterError{Requested: requestedName}
	}
	for i := range r.Clusters {
		if r.Clusters[i].Identify.matches() {
			return &r.Clusters[i], nil
		}
	}
	return nil, &ActiveClusterError{}
}

// ByName returns the cluster with the given name, if any.
func (r *Registry) ByName(name string) (*Cluster, bool) {
	for i := range r.Clusters {
		if r.Clusters[i].Name == name {
			return &r.Clusters[i], true
		}
	}
	return nil, false
}

// Launcher is a configurable command prefix (MPI, OpenMP, ...) that
// expands based on requested resources. Per-cluster overrides fall back
// to the "default" entry when absent.
type Launcher struct {
	Name string

	// PerCluster maps a cluster name (or "default") to this launcher's
	// settings for that cluster.
	PerCluster map[string]LauncherSettings
}

// LauncherSettings is one launcher's behavior for a single cluster (or
// the "default" fallback).
type LauncherSettings struct {
	Executable string

	ProcessesFlag          string // prefix, e.g. "-n "
	ThreadsPerProcessFlag  string // e.g. "-c "
	GpusPerProcessFlag     string // e.g. "--gpus-per-task="
}

// SettingsFor returns the settings to use for this launcher on the given
// cluster: the cluster-specific entry if present, else "default".
func (l Launcher) SettingsFor(clusterName string) (LauncherSettings, bool) {
	if s, ok := l.PerCluster[clusterName]; ok {
		return s, true
	}
	s, ok := l.PerCluster["default"]
	return s, ok
}

// ExpandCommand prefixes command with every named launcher's expansion,
// in list order, using the resource request to fill in each launcher's
// numeric flags.
func ExpandCommand(command string, launcherNames []string, launchers map[string]Launcher, clusterName string, res workflow.Resources, nDirectories int) (string, error) {
	prefix := ""
	for _, name := range launcherNames {
		launcher, ok := launchers[name]
		if !ok {
			return "", fmt.Errorf("launcher %q is not defined", name)
		}
		settings, ok := launcher.SettingsFor(clusterName)
		if !ok {
			return "", fmt.Errorf("launcher %q has no settings for cluster %q or \"default\"", name, clusterName)
		}

		part := settings.Executable
		if settings.ProcessesFlag != "" {
			part += " " + settings.ProcessesFlag + itoa(TotalProcesses(res, nDirectories))
		}
		if settings.ThreadsPerProcessFlag != "" && res.ThreadsPerProcess > 0 {
			part += " " + settings.ThreadsPerProcessFlag + itoa(res.ThreadsPerProcess)
		}
		if settings.GpusPerProcessFlag != "" && res.GpusPerProcess != nil {
			part += " " + settings.GpusPerProcessFlag + itoa(*res.GpusPerProcess)
		}
		prefix += part + " "
	}
	return prefix + command, nil
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

// TotalProcesses computes the process count for a group of nDirectories,
// honoring the per-submission/per-directory scope.
func TotalProcesses(res workflow.Resources, nDirectories int) int {
	if res.Processes.Scope == workflow.PerDirectory {
		return int(res.Processes.Count) * nDirectories
	}
	return int(res.Processes.Count)
}

// TotalWalltimeSeconds computes the walltime for a group of nDirectories,
// honoring the per-submission/per-directory scope.
func TotalWalltimeSeconds(res workflow.Resources, nDirectories int) int64 {
	if res.Walltime.Scope == workflow.PerDirectory {
		return res.Walltime.Count * int64(nDirectories)
	}
	return res.Walltime.Count
}

// TotalCPUs computes total_processes * threads_per_process, defaulting
// threads_per_process to 1 for totaling when unset.
func TotalCPUs(res workflow.Resources, nDirectories int) int {
	threads := res.ThreadsPerProcess
	if threads <= 0 {
		threads = 1
	}
	return TotalProcesses(res, nDirectories) * threads
}

// TotalGPUs computes total_processes * gpus_per_process, or zero when the
// action requests no GPUs.
func TotalGPUs(res workflow.Resources, nDirectories int) int {
	if res.GpusPerProcess == nil {
		return 0
	}
	return TotalProcesses(res, nDirectories) * *res.GpusPerProcess
}
