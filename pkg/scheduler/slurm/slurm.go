// Package slurm implements scheduler.Scheduler against a SLURM cluster's
// sbatch/squeue binaries: job-script synthesis with SBATCH directives,
// partition auto-selection, and job-id parsing.
package slurm

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rowhpc/row/pkg/cluster"
	"github.com/rowhpc/row/pkg/scheduler"
	"github.com/rowhpc/row/pkg/workflow"
)

// New returns a scheduler.Scheduler that submits and polls jobs on c via
// sbatch/squeue. scriptDir is where synthesized job scripts are written
// before being handed to sbatch; it is not cleaned up automatically, so
// operators can inspect a failed submission's script.
func New(c *cluster.Cluster, launchers map[string]cluster.Launcher, scriptDir string) *scheduler.Scheduler {
	b := &backend{
		cluster:       c,
		launchers:     launchers,
		scriptDir:     scriptDir,
		submitLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		pollLimiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	return &scheduler.Scheduler{
		Submit:            b.submit,
		Poll:              b.poll,
		DescribePartition: b.describePartition,
	}
}

// backend holds the state one cluster's SLURM scheduler needs across
// calls: which partitions and launchers it has, and the rate limiters
// that keep row from hammering sbatch/squeue on shared login nodes.
type backend struct {
	cluster       *cluster.Cluster
	launchers     map[string]cluster.Launcher
	scriptDir     string
	submitLimiter *rate.Limiter
	pollLimiter   *rate.Limiter
}

func (b *backend) describePartition(res workflow.Resources, forcedPartition string, nDirectories int) (*cluster.Partition, []cluster.Warning, error) {
	return cluster.FindPartition(b.cluster.Partitions, forcedPartition, res, nDirectories)
}

func (b *backend) submit(ctx context.Context, req scheduler.SubmitRequest) (scheduler.SubmitOutcome, error) {
	forced := req.Action.SubmitOptions[b.cluster.Name].Partition
	partition, warnings, err := b.describePartition(req.Resources, forced, len(req.Directories))
	if err != nil {
		return scheduler.SubmitOutcome{}, err
	}

	preamble := b.preamble(req, partition)
	script, err := scheduler.BuildScript(preamble, req.Action, req.Directories, req.Values, req.WorkspacePath, b.cluster.Name, b.launchers)
	if err != nil {
		return scheduler.SubmitOutcome{}, err
	}

	if req.DryRun {
		return scheduler.SubmitOutcome{Preview: script, Warnings: warnings}, nil
	}

	if err := b.submitLimiter.Wait(ctx); err != nil {
		return scheduler.SubmitOutcome{}, err
	}

	scriptPath, err := b.writeScript(req.Action.Name, script)
	if err != nil {
		return scheduler.SubmitOutcome{}, err
	}

	out, err := exec.CommandContext(ctx, "sbatch", scriptPath).CombinedOutput()
	if err != nil {
		return scheduler.SubmitOutcome{}, &scheduler.RejectedError{
			Scheduler: "slurm",
			Message:   fmt.Sprintf("sbatch %s: %v: %s", scriptPath, err, strings.TrimSpace(string(out))),
		}
	}

	jobID, err := parseJobID(string(out))
	if err != nil {
		return scheduler.SubmitOutcome{}, &scheduler.RejectedError{
			Scheduler: "slurm",
			Message:   fmt.Sprintf("could not parse job id from sbatch output %q: %v", strings.TrimSpace(string(out)), err),
		}
	}

	return scheduler.SubmitOutcome{JobID: jobID, Warnings: warnings}, nil
}

func (b *backend) poll(ctx context.Context, jobIDs []string) (map[string]struct{}, error) {
	active := make(map[string]struct{}, len(jobIDs))
	if len(jobIDs) == 0 {
		return active, nil
	}
	if err := b.pollLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	args := []string{"--noheader", "--format=%i", "--jobs=" + strings.Join(jobIDs, ",")}
	out, err := exec.CommandContext(ctx, "squeue", args...).Output()
	if err != nil {
		return nil, &scheduler.RejectedError{Scheduler: "slurm", Message: fmt.Sprintf("squeue: %v", err)}
	}

	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id != "" {
			active[id] = struct{}{}
		}
	}
	return active, nil
}

// preamble synthesizes the #SBATCH directive block: job name, partition,
// node/task/cpu/gpu counts, walltime, account (with the partition's
// account_suffix appended), memory-per-cpu/gpu, the cluster's own
// SubmitOptions directives, then the action's custom directives, then its
// setup script.
func (b *backend) preamble(req scheduler.SubmitRequest, partition *cluster.Partition) string {
	opts := req.Action.SubmitOptions[b.cluster.Name]
	n := len(req.Directories)

	var out strings.Builder
	fmt.Fprintf(&out, "#SBATCH --job-name=%s\n", req.Action.Name)
	fmt.Fprintf(&out, "#SBATCH --partition=%s\n", partition.Name)

	totalCPUs := cluster.TotalCPUs(req.Resources, n)
	totalGPUs := cluster.TotalGPUs(req.Resources, n)

	switch {
	case partition.CPUsPerNode != nil && *partition.CPUsPerNode > 0:
		fmt.Fprintf(&out, "#SBATCH --nodes=%d\n", cluster.NodeCount(totalCPUs, *partition.CPUsPerNode))
	case partition.GPUsPerNode != nil && *partition.GPUsPerNode > 0:
		fmt.Fprintf(&out, "#SBATCH --nodes=%d\n", cluster.NodeCount(totalGPUs, *partition.GPUsPerNode))
	}

	fmt.Fprintf(&out, "#SBATCH --ntasks=%d\n", cluster.TotalProcesses(req.Resources, n))
	if req.Resources.ThreadsPerProcess > 0 {
		fmt.Fprintf(&out, "#SBATCH --cpus-per-task=%d\n", req.Resources.ThreadsPerProcess)
	}
	if totalGPUs > 0 {
		fmt.Fprintf(&out, "#SBATCH --gpus=%d\n", totalGPUs)
	}
	fmt.Fprintf(&out, "#SBATCH --time=%s\n", formatWalltime(cluster.TotalWalltimeSeconds(req.Resources, n)))

	account := opts.Account
	if account != "" && partition.AccountSuffix != "" {
		account += partition.AccountSuffix
	}
	if account != "" {
		fmt.Fprintf(&out, "#SBATCH --account=%s\n", account)
	}
	if partition.MemoryPerCPU != "" {
		fmt.Fprintf(&out, "#SBATCH --mem-per-cpu=%s\n", partition.MemoryPerCPU)
	}
	if partition.MemoryPerGPU != "" {
		fmt.Fprintf(&out, "#SBATCH --mem-per-gpu=%s\n", partition.MemoryPerGPU)
	}

	for _, directive := range b.cluster.SubmitOptions {
		fmt.Fprintf(&out, "%s\n", directive)
	}
	for _, directive := range opts.Custom {
		fmt.Fprintf(&out, "%s\n", directive)
	}

	if opts.Setup != "" {
		out.WriteString(opts.Setup)
		if !strings.HasSuffix(opts.Setup, "\n") {
			out.WriteString("\n")
		}
	}

	return out.String()
}

// formatWalltime renders seconds as SLURM's HH:MM:00, rounding up to the
// nearest minute and floored at one minute.
func formatWalltime(seconds int64) string {
	minutes := (seconds + 59) / 60
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
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

var jobIDPattern = regexp.MustCompile(`(?i)submitted batch job (\d+)`)

func parseJobID(sbatchOutput string) (string, error) {
	m := jobIDPattern.FindStringSubmatch(sbatchOutput)
	if m == nil {
		return "", fmt.Errorf("no job id found in sbatch output")
	}
	return m[1], nil
}
