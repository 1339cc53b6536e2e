package cluster

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type rawClustersFile struct {
	Cluster []rawCluster `toml:"cluster"`
}

type rawCluster struct {
	Name          string         `toml:"name"`
	Identify      rawIdentify    `toml:"identify"`
	Scheduler     string         `toml:"scheduler"`
	Partition     []rawPartition `toml:"partition"`
	SubmitOptions []string       `toml:"submit_options"`
}

type rawIdentify struct {
	Always bool `toml:"always"`
	// ByEnvironment is [VAR, VALUE] when set.
	ByEnvironment []string `toml:"by_environment"`
}

type rawPartition struct {
	Name                  string `toml:"name"`
	PreventAutoSelect     bool   `toml:"prevent_auto_select"`
	MaximumCPUsPerJob     *int   `toml:"maximum_cpus_per_job"`
	RequireCPUsMultipleOf *int   `toml:"require_cpus_multiple_of"`
	WarnCPUsNotMultipleOf *int   `toml:"warn_cpus_not_multiple_of"`
	CPUsPerNode           *int   `toml:"cpus_per_node"`
	MemoryPerCPU          string `toml:"memory_per_cpu"`
	MinimumGPUsPerJob     *int   `toml:"minimum_gpus_per_job"`
	MaximumGPUsPerJob     *int   `toml:"maximum_gpus_per_job"`
	RequireGPUsMultipleOf *int   `toml:"require_gpus_multiple_of"`
	WarnGPUsNotMultipleOf *int   `toml:"warn_gpus_not_multiple_of"`
	GPUsPerNode           *int   `toml:"gpus_per_node"`
	MemoryPerGPU          string `toml:"memory_per_gpu"`
	AccountSuffix         string `toml:"account_suffix"`
}

// LoadRegistry reads clusters.toml at path into a Registry, preserving
// file order — Active() trusts that order (user-defined clusters first,
// any catch-all last). A missing file yields an empty Registry, so a
// project with no configured clusters still loads (it simply has no
// active cluster until one is added).
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return LoadRegistryBytes(data, path)
}

// LoadRegistryBytes parses clusters.toml content already in memory. path
// is used only for error messages.
func LoadRegistryBytes(data []byte, path string) (*Registry, error) {
	var raw rawClustersFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	reg := &Registry{Clusters: make([]Cluster, 0, len(raw.Cluster))}
	for _, rc := range raw.Cluster {
		if rc.Name == "" {
			return nil, fmt.Errorf("parse %s: cluster entry has no name", path)
		}

		c := Cluster{
			Name:          rc.Name,
			Scheduler:     rc.Scheduler,
			SubmitOptions: rc.SubmitOptions,
			Identify:      Identify{Always: rc.Identify.Always},
		}
		if len(rc.Identify.ByEnvironment) == 2 {
			c.Identify.ByEnvironment = &EnvMatch{Var: rc.Identify.ByEnvironment[0], Value: rc.Identify.ByEnvironment[1]}
		} else if len(rc.Identify.ByEnvironment) != 0 {
			return nil, fmt.Errorf("parse %s: cluster %q: identify.by_environment must have exactly 2 elements [VAR, VALUE]", path, rc.Name)
		}

		for _, rp := range rc.Partition {
			c.Partitions = append(c.Partitions, Partition{
				Name:                rp.Name,
				PreventAutoSelect:   rp.PreventAutoSelect,
				MaximumCPUsPerJob:   rp.MaximumCPUsPerJob,
				RequireCPUsMultiple: rp.RequireCPUsMultipleOf,
				WarnCPUsMultiple:    rp.WarnCPUsNotMultipleOf,
				CPUsPerNode:         rp.CPUsPerNode,
				MemoryPerCPU:        rp.MemoryPerCPU,
				MinimumGPUsPerJob:   rp.MinimumGPUsPerJob,
				MaximumGPUsPerJob:   rp.MaximumGPUsPerJob,
				RequireGPUsMultiple: rp.RequireGPUsMultipleOf,
				WarnGPUsMultiple:    rp.WarnGPUsNotMultipleOf,
				GPUsPerNode:         rp.GPUsPerNode,
				MemoryPerGPU:        rp.MemoryPerGPU,
				AccountSuffix:       rp.AccountSuffix,
			})
		}
		reg.Clusters = append(reg.Clusters, c)
	}
	return reg, nil
}

// rawLauncherSettings mirrors one `[<launcher>.<cluster_or_default>]`
// table: executable plus the three numeric-flag prefixes.
type rawLauncherSettings struct {
	Executable        string `toml:"executable"`
	Processes         string `toml:"processes"`
	ThreadsPerProcess string `toml:"threads_per_process"`
	GpusPerProcess    string `toml:"gpus_per_process"`
}

// LoadLaunchers reads launchers.toml at path into a launcher-name ->
// Launcher map. A missing file yields an empty map.
func LoadLaunchers(path string) (map[string]Launcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Launcher{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return LoadLaunchersBytes(data, path)
}

// LoadLaunchersBytes parses launchers.toml content already in memory.
// path is used only for error messages.
func LoadLaunchersBytes(data []byte, path string) (map[string]Launcher, error) {
	var raw map[string]map[string]rawLauncherSettings
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[string]Launcher, len(raw))
	for name, perCluster := range raw {
		l := Launcher{Name: name, PerCluster: make(map[string]LauncherSettings, len(perCluster))}
		for clusterOrDefault, s := range perCluster {
			l.PerCluster[clusterOrDefault] = LauncherSettings{
				Executable:            s.Executable,
				ProcessesFlag:         s.Processes,
				ThreadsPerProcessFlag: s.ThreadsPerProcess,
				GpusPerProcessFlag:    s.GpusPerProcess,
			}
		}
		out[name] = l
	}
	return out, nil
}
