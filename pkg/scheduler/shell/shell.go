// Package shell implements scheduler.Scheduler by running the synthesized
// script synchronously in-process — no queueing, no cluster, no
// partitions. It exists so a workflow can be exercised (and its action
// graph, products, and staging-file discipline validated) on a laptop or
// a login node with no scheduler at all.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/rowhpc/row/pkg/cluster"
	"github.com/rowhpc/row/pkg/scheduler"
	"github.com/rowhpc/row/pkg/workflow"
)

// AbsentJobID is the sentinel job id recorded for every shell submission.
// Poll always reports it absent, so a shell-submitted directory becomes
// Eligible again at the very next refresh unless a scan (such as the
// script's exit trap running `row scan`) has recorded it complete, in
// which case it is Completed — see spec.md §8 scenario 1. Refresh itself
// never checks product files.
const AbsentJobID = "shell"

// New returns a scheduler.Scheduler that runs scripts synchronously via
// bash, streaming output to stdout/stderr.
func New(launchers map[string]cluster.Launcher, scriptDir string, stdout, stderr io.Writer) *scheduler.Scheduler {
	b := &backend{launchers: launchers, scriptDir: scriptDir, stdout: stdout, stderr: stderr}
	return &scheduler.Scheduler{
		Submit:            b.submit,
		Poll:              b.poll,
		DescribePartition: b.describePartition,
	}
}

type backend struct {
	launchers      map[string]cluster.Launcher
	scriptDir      string
	stdout, stderr io.Writer
}

func (b *backend) submit(ctx context.Context, req scheduler.SubmitRequest) (scheduler.SubmitOutcome, error) {
	script, err := scheduler.BuildScript("", req.Action, req.Directories, req.Values, req.WorkspacePath, "shell", b.launchers)
	if err != nil {
		return scheduler.SubmitOutcome{}, err
	}

	if req.DryRun {
		return scheduler.SubmitOutcome{Preview: script}, nil
	}

	scriptPath, err := b.writeScript(req.Action.Name, script)
	if err != nil {
		return scheduler.SubmitOutcome{}, err
	}
	defer func() { _ = os.Remove(scriptPath) }()

	cmd := exec.CommandContext(ctx, "bash", scriptPath)
	cmd.Stdout = b.stdout
	cmd.Stderr = b.stderr
	if err := cmd.Run(); err != nil {
		return scheduler.SubmitOutcome{}, &scheduler.RejectedError{Scheduler: "shell", Message: err.Error()}
	}

	return scheduler.SubmitOutcome{JobID: AbsentJobID}, nil
}

// poll always reports every job id absent: the shell scheduler keeps no
// queue, so nothing it submitted is ever still "running" by the time
// poll is called.
func (b *backend) poll(ctx context.Context, jobIDs []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (b *backend) describePartition(res workflow.Resources, forcedPartition string, nDirectories int) (*cluster.Partition, []cluster.Warning, error) {
	return &cluster.Partition{Name: "shell"}, nil, nil
}

func (b *backend) writeScript(actionName, script string) (string, error) {
	if err := os.MkdirAll(b.scriptDir, 0o755); err != nil {
		return "", fmt.Errorf("create script dir: %w", err)
	}
	f, err := os.CreateTemp(b.scriptDir, "row-"+actionName+"-*.sh")
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(script); err != nil {
		return "", fmt.Errorf("write script file: %w", err)
	}
	if err := f.Chmod(0o755); err != nil {
		return "", fmt.Errorf("chmod script file: %w", err)
	}
	return f.Name(), nil
}
