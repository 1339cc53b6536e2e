// Package scheduler defines the minimal capability interface every
// cluster scheduler backend implements, and the script-synthesis logic
// shared by all of them. Concrete backends live in scheduler/slurm and
// scheduler/shell.
package scheduler

import (
	"context"

	"github.com/rowhpc/row/pkg/cluster"
	"github.com/rowhpc/row/pkg/workflow"
)

// SubmitRequest is everything a backend needs to synthesize and submit
// one job for one group.
type SubmitRequest struct {
	Action        workflow.Action
	Directories   []string
	Resources     workflow.Resources
	WorkspacePath string
	Values        map[string]any // directory -> cached JSON value, for command expansion
	DryRun        bool
}

// SubmitOutcome is the result of a successful Submit call: either a real
// job id, or — for a dry run — the rendered script preview. Warnings
// carries any non-fatal partition-selection notes (e.g.
// warn_*_not_multiple_of mismatches) for the caller to log.
type SubmitOutcome struct {
	JobID    string
	Preview  string
	Warnings []cluster.Warning
}

// Scheduler is the capability interface the project/status engine drives.
// Adding a new backend requires no change to callers of this interface.
type Scheduler struct {
	Submit            func(ctx context.Context, req SubmitRequest) (SubmitOutcome, error)
	Poll              func(ctx context.Context, jobIDs []string) (active map[string]struct{}, err error)
	DescribePartition func(res workflow.Resources, forcedPartition string, nDirectories int) (*cluster.Partition, []cluster.Warning, error)
}

// RejectedError wraps a non-zero exit (or unparseable output) from the
// scheduler subprocess.
type RejectedError struct {
	Scheduler string
	Message   string
}

func (e *RejectedError) Error() string {
	return e.Scheduler + ": " + e.Message
}
