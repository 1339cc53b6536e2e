package shell

import (
	"bytes"
	"context"
	"testing"

	"github.com/rowhpc/row/pkg/scheduler"
	"github.com/rowhpc/row/pkg/workflow"
)

func TestSubmitRunsCommandAndReturnsSentinel(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	sched := New(nil, dir, &stdout, &stderr)

	req := scheduler.SubmitRequest{
		Action:        workflow.Action{Name: "hello", Command: `echo "Hello, {directory}!"`},
		Directories:   []string{"dir0"},
		WorkspacePath: "/workspace",
	}

	outcome, err := sched.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if outcome.JobID != AbsentJobID {
		t.Fatalf("JobID = %q, want %q", outcome.JobID, AbsentJobID)
	}
}

func TestSubmitDryRunReturnsPreview(t *testing.T) {
	dir := t.TempDir()
	sched := New(nil, dir, nil, nil)

	req := scheduler.SubmitRequest{
		Action:        workflow.Action{Name: "hello", Command: `echo "Hello, {directory}!"`},
		Directories:   []string{"dir0"},
		WorkspacePath: "/workspace",
		DryRun:        true,
	}

	outcome, err := sched.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if outcome.Preview == "" {
		t.Fatal("expected a non-empty script preview")
	}
	if outcome.JobID != "" {
		t.Fatalf("dry run should not return a job id, got %q", outcome.JobID)
	}
}

func TestPollAlwaysReportsAbsent(t *testing.T) {
	sched := New(nil, t.TempDir(), nil, nil)
	active, err := sched.Poll(context.Background(), []string{AbsentJobID, "other"})
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("Poll() = %v, want empty", active)
	}
}
