package cluster

import (
	"testing"

	"github.com/rowhpc/row/pkg/workflow"
)

func intPtr(n int) *int { return &n }

func testPartitions() []Partition {
	// Non-GPU partitions set MaximumGPUsPerJob: 0 so a GPU-requesting job
	// is never routed to a CPU-only partition — the convention
	// clusters.toml must follow (see DESIGN.md).
	return []Partition{
		{Name: "shared", MaximumCPUsPerJob: intPtr(127), MaximumGPUsPerJob: intPtr(0)},
		{Name: "wholenode", RequireCPUsMultiple: intPtr(128), MaximumGPUsPerJob: intPtr(0)},
		{Name: "gpu", MinimumGPUsPerJob: intPtr(1)},
	}
}

func submissionResources(processes int, gpus *int) workflow.Resources {
	return workflow.Resources{
		Processes:      workflow.ScopedCount{Scope: workflow.PerSubmission, Count: int64(processes)},
		GpusPerProcess: gpus,
		Walltime:       workflow.ScopedCount{Scope: workflow.PerSubmission, Count: 3600},
	}
}

func TestFindPartitionScenario(t *testing.T) {
	partitions := testPartitions()

	cases := []struct {
		processes int
		gpus      *int
		want      string
		wantErr   bool
	}{
		{processes: 1, gpus: nil, want: "shared"},
		{processes: 128, gpus: nil, want: "wholenode"},
		{processes: 1, gpus: intPtr(1), want: "gpu"},
		{processes: 100, gpus: nil, want: "shared"},
		{processes: 129, gpus: nil, wantErr: true},
	}

	for _, c := range cases {
		p, _, err := FindPartition(partitions, "", submissionResources(c.processes, c.gpus), 1)
		if c.wantErr {
			if err == nil {
				t.Errorf("processes=%d gpus=%v: want error, got partition %q", c.processes, c.gpus, p.Name)
			}
			continue
		}
		if err != nil {
			t.Errorf("processes=%d gpus=%v: unexpected error %v", c.processes, c.gpus, err)
			continue
		}
		if p.Name != c.want {
			t.Errorf("processes=%d gpus=%v: got %q, want %q", c.processes, c.gpus, p.Name, c.want)
		}
	}
}

func TestActiveClusterExplicitName(t *testing.T) {
	r := &Registry{Clusters: []Cluster{{Name: "frontera"}, {Name: "stampede"}}}
	c, err := r.Active("stampede")
	if err != nil {
		t.Fatalf("Active() error: %v", err)
	}
	if c.Name != "stampede" {
		t.Fatalf("Active() = %q, want stampede", c.Name)
	}
}

func TestActiveClusterByEnvironment(t *testing.T) {
	t.Setenv("ROW_TEST_CLUSTER_VAR", "yes")
	r := &Registry{Clusters: []Cluster{
		{Name: "a", Identify: Identify{ByEnvironment: &EnvMatch{Var: "ROW_TEST_CLUSTER_VAR", Value: "no"}}},
		{Name: "b", Identify: Identify{ByEnvironment: &EnvMatch{Var: "ROW_TEST_CLUSTER_VAR", Value: "yes"}}},
		{Name: "catchall", Identify: Identify{Always: true}},
	}}
	c, err := r.Active("")
	if err != nil {
		t.Fatalf("Active() error: %v", err)
	}
	if c.Name != "b" {
		t.Fatalf("Active() = %q, want b", c.Name)
	}
}

func TestActiveClusterFallsBackToCatchAll(t *testing.T) {
	r := &Registry{Clusters: []Cluster{
		{Name: "a", Identify: Identify{ByEnvironment: &EnvMatch{Var: "ROW_TEST_CLUSTER_VAR_2", Value: "never"}}},
		{Name: "catchall", Identify: Identify{Always: true}},
	}}
	c, err := r.Active("")
	if err != nil {
		t.Fatalf("Active() error: %v", err)
	}
	if c.Name != "catchall" {
		t.Fatalf("Active() = %q, want catchall", c.Name)
	}
}
