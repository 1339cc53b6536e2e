// Package project orchestrates a single project's workflow, its three
// persistent stores, the cluster/launcher registry, and a scheduler
// backend into the refresh/status/submit/clean operations the CLI
// drives. It owns its collaborators rather than taking an interface per
// collaborator, the same shape the teacher's crawl orchestrator uses for
// its fetcher/store/rate-limiter trio.
package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rowhpc/row/pkg/cluster"
	"github.com/rowhpc/row/pkg/completionstore"
	"github.com/rowhpc/row/pkg/group"
	"github.com/rowhpc/row/pkg/lockfile"
	"github.com/rowhpc/row/pkg/scanner"
	"github.com/rowhpc/row/pkg/scheduler"
	"github.com/rowhpc/row/pkg/submissionstore"
	"github.com/rowhpc/row/pkg/valuestore"
	"github.com/rowhpc/row/pkg/workflow"
)

const stateDirName = ".row"

// SchedulerFactory builds the scheduler.Scheduler for one cluster. The CLI
// supplies this so Project never imports a concrete backend
// (scheduler/slurm, scheduler/shell) directly.
type SchedulerFactory func(c *cluster.Cluster, launchers map[string]cluster.Launcher) (*scheduler.Scheduler, error)

// Project owns a project's workflow, the three persistent stores, the
// cluster/launcher registry, and the advisory lock that makes refresh,
// submit, and clean mutually exclusive.
type Project struct {
	root          string
	workspacePath string

	Workflow  *workflow.Workflow
	Registry  *cluster.Registry
	Launchers map[string]cluster.Launcher

	Values      *valuestore.Store
	Completions *completionstore.Store
	Submissions *submissionstore.Store

	lock *lockfile.Lock

	schedulerFactory SchedulerFactory
	concurrency      int
	clusterName      string // ROW_CLUSTER override, or "" for auto-identify
}

// Open loads a project's workflow and stores from disk under root. The
// cluster registry and launcher map are supplied by the caller (loaded
// from clusters.toml/launchers.toml), since their location is a CLI/config
// concern, not a project one.
func Open(root string, registry *cluster.Registry, launchers map[string]cluster.Launcher, clusterName string, factory SchedulerFactory, concurrency int) (*Project, error) {
	wf, err := workflow.LoadWorkflow(filepath.Join(root, "workflow.toml"))
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(root, stateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	values, err := valuestore.Load(filepath.Join(stateDir, "values.json"))
	if err != nil {
		return nil, err
	}
	completions, err := completionstore.Load(stateDir)
	if err != nil {
		return nil, err
	}
	submissions, err := submissionstore.Load(stateDir)
	if err != nil {
		return nil, err
	}

	workspacePath := wf.Workspace.Path
	if !filepath.IsAbs(workspacePath) {
		workspacePath = filepath.Join(root, workspacePath)
	}

	return &Project{
		root:             root,
		workspacePath:    workspacePath,
		Workflow:         wf,
		Registry:         registry,
		Launchers:        launchers,
		Values:           values,
		Completions:      completions,
		Submissions:      submissions,
		lock:             lockfile.New(filepath.Join(stateDir, "lock")),
		schedulerFactory: factory,
		concurrency:      concurrency,
		clusterName:      clusterName,
	}, nil
}

// Root returns the project directory (the one containing workflow.toml).
func (p *Project) Root() string { return p.root }

// WorkspacePath returns the absolute workspace root.
func (p *Project) WorkspacePath() string { return p.workspacePath }

// StateDir returns the project's .row directory.
func (p *Project) StateDir() string { return filepath.Join(p.root, stateDirName) }

func (p *Project) activeCluster() (*cluster.Cluster, error) {
	return p.Registry.Active(p.clusterName)
}

func (p *Project) schedulerFor(c *cluster.Cluster) (*scheduler.Scheduler, error) {
	return p.schedulerFactory(c, p.Launchers)
}

// Refresh merges completion staging, polls the active cluster's scheduler
// for its tracked job ids and prunes entries it no longer recognizes,
// rediscovers workspace directories (purging completion/submission state
// for any that vanished), and refreshes the value cache. It holds the
// advisory lock for its duration.
func (p *Project) Refresh(ctx context.Context) error {
	if err := p.lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = p.lock.Release() }()
	return p.refreshLocked(ctx)
}

func (p *Project) refreshLocked(ctx context.Context) error {
	if err := p.Completions.Refresh(); err != nil {
		return fmt.Errorf("merge completion staging: %w", err)
	}

	activeCluster, err := p.activeCluster()
	if err != nil {
		return err
	}
	sched, err := p.schedulerFor(activeCluster)
	if err != nil {
		return err
	}

	jobIDs := p.Submissions.JobIDsFor(activeCluster.Name)
	active, err := sched.Poll(ctx, jobIDs)
	if err != nil {
		return fmt.Errorf("poll scheduler: %w", err)
	}
	if err := p.Submissions.PruneAbsent(activeCluster.Name, active); err != nil {
		return fmt.Errorf("prune submissions: %w", err)
	}

	before := toSet(p.Values.Directories())
	if _, err := p.Values.Refresh(p.workspacePath, p.Workflow.Workspace.ValueFile, p.concurrency, p.Workflow.Workspace.Ignore...); err != nil {
		return fmt.Errorf("refresh value cache: %w", err)
	}
	after := toSet(p.Values.Directories())

	for d := range before {
		if _, ok := after[d]; ok {
			continue
		}
		if err := p.Completions.ForgetDirectory(d); err != nil {
			return fmt.Errorf("purge completion state for removed directory %s: %w", d, err)
		}
		if err := p.Submissions.ForgetDirectory(d); err != nil {
			return fmt.Errorf("purge submission state for removed directory %s: %w", d, err)
		}
	}

	if err := p.Values.Save(); err != nil {
		return fmt.Errorf("save value cache: %w", err)
	}
	return nil
}

func toSet(xs []string) map[string]struct{} {
	out := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}

// Status is the four-way classification a (action, directory) pair falls
// into, in the priority order spec.md §4.6 defines.
type Status int

const (
	Completed Status = iota
	Submitted
	Eligible
	Waiting
)

// String renders the lowercase name used by `show status` and logs.
func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Submitted:
		return "submitted"
	case Eligible:
		return "eligible"
	default:
		return "waiting"
	}
}

// StatusOf classifies one (action, directory) pair against the current
// (already-refreshed) store state.
func (p *Project) StatusOf(action workflow.Action, directory string) Status {
	if p.Completions.IsComplete(action.Name, directory) {
		return Completed
	}
	if p.Submissions.SubmittedAnyCluster(action.Name, directory) {
		return Submitted
	}
	for _, prev := range action.PreviousActions {
		if !p.Completions.IsComplete(prev, directory) {
			return Waiting
		}
	}
	return Eligible
}

// StatusCounts tallies one action's directories by status, plus the
// estimated CPU/GPU-hour cost of everything not yet Completed.
type StatusCounts struct {
	Completed, Submitted, Eligible, Waiting int
	Cost                                    workflow.ResourceCost
}

// StatusReport is the aggregate Status produces.
type StatusReport struct {
	Directories []string
	PerAction   map[string]StatusCounts
	PerPair     map[string]map[string]Status // action -> directory -> status
}

// Status runs Refresh, then classifies every (action, directory) pair
// selected by actionNames x directories (empty actionNames means every
// action; empty directories means every workspace directory).
func (p *Project) Status(ctx context.Context, actionNames, directories []string) (*StatusReport, error) {
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}
	return p.statusNoRefresh(actionNames, directories), nil
}

func (p *Project) statusNoRefresh(actionNames, directories []string) *StatusReport {
	if len(actionNames) == 0 {
		actionNames = p.Workflow.ActionNames()
	}
	if len(directories) == 0 {
		directories = p.Values.Directories()
	}
	sort.Strings(directories)

	report := &StatusReport{
		Directories: directories,
		PerAction:   make(map[string]StatusCounts, len(actionNames)),
		PerPair:     make(map[string]map[string]Status, len(actionNames)),
	}

	for _, name := range actionNames {
		action, ok := p.Workflow.ActionByName(name)
		if !ok {
			continue
		}
		counts := StatusCounts{}
		pairs := make(map[string]Status, len(directories))
		for _, d := range directories {
			status := p.StatusOf(action, d)
			pairs[d] = status
			switch status {
			case Completed:
				counts.Completed++
			case Submitted:
				counts.Submitted++
				counts.Cost.Add(directoryCost(action))
			case Eligible:
				counts.Eligible++
				counts.Cost.Add(directoryCost(action))
			case Waiting:
				counts.Waiting++
				counts.Cost.Add(directoryCost(action))
			}
		}
		report.PerAction[name] = counts
		report.PerPair[name] = pairs
	}
	return report
}

// directoryCost estimates one directory's share of action's resource
// request, using the configured counts as-is rather than trying to guess
// a real group's size (which isn't known until submission groups are
// actually formed).
func directoryCost(action workflow.Action) workflow.ResourceCost {
	hours := float64(action.Resources.Walltime.Count) / 3600
	threads := action.Resources.ThreadsPerProcess
	if threads <= 0 {
		threads = 1
	}
	processes := float64(action.Resources.Processes.Count)

	if action.Resources.GpusPerProcess != nil {
		return workflow.ResourceCost{GPUHours: hours * processes * float64(*action.Resources.GpusPerProcess)}
	}
	return workflow.ResourceCost{CPUHours: hours * processes * float64(threads)}
}

// storeChecker adapts the two stores to group.EligibilityChecker.
type storeChecker struct {
	completions *completionstore.Store
	submissions *submissionstore.Store
}

func (c storeChecker) IsComplete(action, directory string) bool {
	return c.completions.IsComplete(action, directory)
}

func (c storeChecker) SubmittedAnyCluster(action, directory string) bool {
	return c.submissions.SubmittedAnyCluster(action, directory)
}

// SubmitOptions configures one Submit call.
type SubmitOptions struct {
	ActionNames []string // empty means every action, in declaration order
	Directories []string // empty means the whole workspace
	NLimit      int       // 0 means unlimited
	DryRun      bool

	// Confirm is called once per action/variant with a human-readable
	// summary of what is about to be submitted; returning false skips every
	// group of that action/variant without touching prior actions'
	// already-recorded submissions. A
	// nil Confirm auto-confirms everything (the --yes / ROW_YES path).
	Confirm func(summary string) (bool, error)

	// Logf receives progress and warning lines for the caller to render.
	// A nil Logf discards them.
	Logf func(format string, args ...any)
}

// SubmitResult tallies what one Submit call accomplished.
type SubmitResult struct {
	Submitted int // directories successfully submitted, across all actions
	Groups    int // groups successfully submitted
}

// Submit runs Refresh, then for each selected action (in declaration
// order) forms submission groups, confirms, and submits them one at a
// time via the active cluster's scheduler. A group's job id is recorded
// and persisted immediately on success (bounding the crash-loss window to
// one group); a scheduler failure stops the remaining sequence but leaves
// every prior recorded submission intact.
func (p *Project) Submit(ctx context.Context, opts SubmitOptions) (*SubmitResult, error) {
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}

	if err := p.lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() { _ = p.lock.Release() }()

	activeCluster, err := p.activeCluster()
	if err != nil {
		return nil, err
	}
	sched, err := p.schedulerFor(activeCluster)
	if err != nil {
		return nil, err
	}

	actionNames := opts.ActionNames
	if len(actionNames) == 0 {
		actionNames = p.Workflow.ActionNames()
	}

	allDirectories := p.Values.Directories()
	sort.Strings(allDirectories)
	candidates := opts.Directories
	if len(candidates) == 0 {
		candidates = allDirectories
	}

	checker := storeChecker{completions: p.Completions, submissions: p.Submissions}
	values := func(d string) any { return p.Values.Value(d) }

	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	result := &SubmitResult{}
	for _, name := range actionNames {
		if opts.NLimit > 0 && result.Submitted >= opts.NLimit {
			break
		}

		for _, variant := range p.Workflow.Variants(name) {
			groups, err := group.SubmissionGroups(variant, candidates, allDirectories, values, checker)
			if err != nil {
				return result, fmt.Errorf("action %q: form submission groups: %w", name, err)
			}
			if len(groups) == 0 {
				continue
			}

			if opts.Confirm != nil {
				ok, err := opts.Confirm(submitSummary(variant, groups))
				if err != nil {
					return result, err
				}
				if !ok {
					continue
				}
			}

			for _, g := range groups {
				if opts.NLimit > 0 && result.Submitted >= opts.NLimit {
					break
				}
				if opts.NLimit > 0 && result.Submitted+len(g) > opts.NLimit {
					if variant.Group.SubmitWhole {
						break
					}
					g = g[:opts.NLimit-result.Submitted]
				}

				req := scheduler.SubmitRequest{
					Action:        variant,
					Directories:   g,
					Resources:     variant.Resources,
					WorkspacePath: p.workspacePath,
					Values:        valuesFor(g, values),
					DryRun:        opts.DryRun,
				}

				outcome, err := sched.Submit(ctx, req)
				if err != nil {
					return result, fmt.Errorf("action %q: submit group %v: %w", name, []string(g), err)
				}
				for _, w := range outcome.Warnings {
					logf("warning: partition %s: %s", w.Partition, w.Message)
				}

				if opts.DryRun {
					logf("%s", outcome.Preview)
					continue
				}

				for _, d := range g {
					if err := p.Submissions.Record(activeCluster.Name, name, d, outcome.JobID); err != nil {
						return result, fmt.Errorf("record submission: %w", err)
					}
				}
				result.Submitted += len(g)
				result.Groups++
				logf("submitted %s on %d directories (job %s)", name, len(g), outcome.JobID)
			}
		}
	}

	return result, nil
}

func valuesFor(directories group.Group, values group.Values) map[string]any {
	out := make(map[string]any, len(directories))
	for _, d := range directories {
		out[d] = values(d)
	}
	return out
}

func submitSummary(action workflow.Action, groups []group.Group) string {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	return fmt.Sprintf("%s: %d group(s), %d directory(ies)", action.Name, len(groups), total)
}

// Scan runs sc against this project's workspace and completion store
// directly, bypassing the advisory lock entirely: scan only ever appends
// staging files, so it is exempt from the single-writer discipline the
// other operations need (spec.md §4.8).
func (p *Project) Scan(ctx context.Context, actionNames, directories []string, sc *scanner.Scanner, logErr func(directory string, err error)) (map[string][]string, error) {
	if len(actionNames) == 0 {
		actionNames = p.Workflow.ActionNames()
	}
	if len(directories) == 0 {
		directories = p.Values.Directories()
	}

	result := make(map[string][]string, len(actionNames))
	for _, name := range actionNames {
		action, ok := p.Workflow.ActionByName(name)
		if !ok || len(action.Products) == 0 {
			continue
		}
		requests := make([]scanner.Request, len(directories))
		for i, d := range directories {
			requests[i] = scanner.Request{Directory: d, Products: action.Products}
		}
		complete, err := sc.ScanProducts(ctx, p.workspacePath, name, requests, p.Completions, logErr)
		if err != nil {
			return result, err
		}
		result[name] = complete
	}
	return result, nil
}

// HasPendingSubmissionsError reports that Clean was refused because the
// active cluster still has job ids it hasn't been told are finished.
type HasPendingSubmissionsError struct {
	Count int
}

func (e *HasPendingSubmissionsError) Error() string {
	return fmt.Sprintf("%d submission(s) are still active on the active cluster; refresh until they complete or cancel them before clean", e.Count)
}

// CleanOptions selects which stores Clean resets.
type CleanOptions struct {
	Completed bool
	Submitted bool

	// Directory purges completion/submission state for any directory no
	// longer present under the workspace root, and clears every unabsorbed
	// completion staging file (so a concurrent scan process can't resurrect
	// a directory's completion record via a staging file written just
	// before this purge — see DESIGN.md's open-question decision).
	Directory bool
}

// Clean administratively resets selected stores, restricted to
// actionNames x directories when given (empty means every action or every
// directory, matching Status's convention). It refuses when the active
// cluster still has pending submissions.
func (p *Project) Clean(ctx context.Context, opts CleanOptions, actionNames, directories []string) error {
	if err := p.lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = p.lock.Release() }()

	activeCluster, err := p.activeCluster()
	if err != nil {
		return err
	}
	if pending := len(p.Submissions.JobIDsFor(activeCluster.Name)); pending > 0 {
		return &HasPendingSubmissionsError{Count: pending}
	}

	if len(actionNames) == 0 {
		actionNames = p.Workflow.ActionNames()
	}
	if len(directories) == 0 {
		directories = p.Values.Directories()
	}

	if opts.Completed {
		for _, name := range actionNames {
			if err := p.Completions.Uncomplete(name, directories); err != nil {
				return fmt.Errorf("clean completed: %w", err)
			}
		}
	}

	if opts.Submitted {
		for _, name := range actionNames {
			for _, d := range directories {
				if err := p.Submissions.Forget(activeCluster.Name, name, d); err != nil {
					return fmt.Errorf("clean submitted: %w", err)
				}
			}
		}
	}

	if opts.Directory {
		if err := p.cleanRemovedDirectories(); err != nil {
			return err
		}
	}

	return nil
}

func (p *Project) cleanRemovedDirectories() error {
	present, err := os.ReadDir(p.workspacePath)
	if err != nil {
		return fmt.Errorf("read workspace: %w", err)
	}
	presentSet := make(map[string]struct{}, len(present))
	for _, c := range present {
		if c.IsDir() {
			presentSet[c.Name()] = struct{}{}
		}
	}

	for _, d := range p.Values.Directories() {
		if _, ok := presentSet[d]; ok {
			continue
		}
		if err := p.Completions.ForgetDirectory(d); err != nil {
			return err
		}
		if err := p.Submissions.ForgetDirectory(d); err != nil {
			return err
		}
	}

	return p.Completions.ClearStaging()
}
