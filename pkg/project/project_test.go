package project

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rowhpc/row/pkg/cluster"
	"github.com/rowhpc/row/pkg/scanner"
	"github.com/rowhpc/row/pkg/scheduler"
	"github.com/rowhpc/row/pkg/scheduler/shell"
)

const helloWorkflow = `
[workspace]
path = "workspace"

[[action]]
name = "hello"
command = "touch {workspace_path}/{directory}/done.txt"
products = ["done.txt"]
`

func newShellProject(t *testing.T, workflowTOML string, directories ...string) (*Project, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "workflow.toml"), []byte(workflowTOML), 0o644); err != nil {
		t.Fatal(err)
	}

	workspace := filepath.Join(root, "workspace")
	for _, d := range directories {
		if err := os.MkdirAll(filepath.Join(workspace, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	registry := &cluster.Registry{Clusters: []cluster.Cluster{
		{Name: "local", Scheduler: "shell", Identify: cluster.Identify{Always: true}},
	}}

	var out bytes.Buffer
	scriptDir := filepath.Join(root, "scripts")
	factory := func(c *cluster.Cluster, launchers map[string]cluster.Launcher) (*scheduler.Scheduler, error) {
		return shell.New(launchers, scriptDir, &out, &out), nil
	}

	p, err := Open(root, registry, nil, "", factory, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p, &out
}

func TestRefreshDiscoversDirectories(t *testing.T) {
	p, _ := newShellProject(t, helloWorkflow, "dir0", "dir1")

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	dirs := p.Values.Directories()
	if len(dirs) != 2 {
		t.Fatalf("Directories() = %v, want 2 entries", dirs)
	}
}

func TestStatusEligibleBeforeSubmitCompletedAfter(t *testing.T) {
	p, _ := newShellProject(t, helloWorkflow, "dir0")

	report, err := p.Status(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	counts := report.PerAction["hello"]
	if counts.Eligible != 1 || counts.Completed != 0 {
		t.Fatalf("counts before submit = %+v, want 1 eligible, 0 completed", counts)
	}

	result, err := p.Submit(context.Background(), SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Submitted != 1 || result.Groups != 1 {
		t.Fatalf("SubmitResult = %+v, want 1 submitted, 1 group", result)
	}

	// The shell scheduler runs synchronously and leaves no queue, so the
	// real compute-node trap (`row scan`) is what would normally notice the
	// product; stand in for it directly, the way the trap would on a real
	// cluster.
	if _, err := p.Scan(context.Background(), nil, nil, scanner.New(scanner.Config{}), nil); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	report, err = p.Status(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Status after submit: %v", err)
	}
	counts = report.PerAction["hello"]
	if counts.Completed != 1 {
		t.Fatalf("counts after submit+scan+refresh = %+v, want 1 completed", counts)
	}
}

func TestSubmitSkipsAlreadyCompletedDirectory(t *testing.T) {
	p, _ := newShellProject(t, helloWorkflow, "dir0")

	if _, err := p.Submit(context.Background(), SubmitOptions{}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := p.Scan(context.Background(), nil, nil, scanner.New(scanner.Config{}), nil); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	result, err := p.Submit(context.Background(), SubmitOptions{})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if result.Submitted != 0 {
		t.Fatalf("second Submit resubmitted %d directories, want 0 (already completed)", result.Submitted)
	}
}

func TestCleanRefusesWithPendingSubmissions(t *testing.T) {
	p, _ := newShellProject(t, helloWorkflow, "dir0")

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := p.Submissions.Record("local", "hello", "dir0", "123"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	err := p.Clean(context.Background(), CleanOptions{Completed: true}, nil, nil)
	if err == nil {
		t.Fatal("Clean: want error, got nil")
	}
	if _, ok := err.(*HasPendingSubmissionsError); !ok {
		t.Fatalf("Clean error type = %T, want *HasPendingSubmissionsError", err)
	}
}

func TestCleanDirectoryPurgesRemovedDirectory(t *testing.T) {
	p, _ := newShellProject(t, helloWorkflow, "dir0", "dir1")
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := p.Completions.AddStaging("hello", []string{"dir0"}); err != nil {
		t.Fatalf("AddStaging: %v", err)
	}
	if err := p.Completions.Refresh(); err != nil {
		t.Fatalf("Completions.Refresh: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(p.WorkspacePath(), "dir0")); err != nil {
		t.Fatal(err)
	}
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh after removal: %v", err)
	}

	if err := p.Clean(context.Background(), CleanOptions{Directory: true}, nil, nil); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if p.Completions.IsComplete("hello", "dir0") {
		t.Fatal("IsComplete(dir0) = true after removal + clean --directory, want false")
	}
}
