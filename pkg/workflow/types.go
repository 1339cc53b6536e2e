// Package workflow parses, normalizes, and validates the declarative
// workflow.toml that describes a project's workspace, actions, and
// cluster-facing resource requests.
package workflow

import "github.com/rowhpc/row/pkg/jsonvalue"

// Workflow is the normalized, fully-inherited workflow definition for a
// project. LoadWorkflow returns a Workflow whose actions have already had
// default/from inheritance resolved and same-named variants checked for
// agreement (they stay separate entries); callers never see the raw TOML
// shape.
type Workflow struct {
	Workspace Workspace `json:"workspace"`
	Default   Defaults  `json:"default,omitempty"`
	Action    []Action  `json:"action"`
}

// Workspace locates the directories this project operates over and the
// per-directory value file, if any.
type Workspace struct {
	// Path is the workspace root, relative to the project directory unless
	// absolute. Defaults to "workspace".
	Path string `json:"path,omitempty"`

	// ValueFile is the filename (not path) read from each directory and
	// parsed as JSON. A directory missing this file has a null value.
	ValueFile string `json:"value_file,omitempty"`

	// Ignore is an ordered list of doublestar glob patterns matched against
	// workspace child names; a matching child is never treated as a
	// directory of the project (e.g. ".row", "*.tmp").
	Ignore []string `json:"ignore,omitempty"`
}

// Defaults is the shape of the `[default.action]` table, the last-resort
// layer of action field inheritance. LoadWorkflow folds that table into
// every action and leaves Workflow.Default zero.
type Defaults struct {
	Action Action `json:"action,omitempty"`
}

// Action is a named unit of work: a command template applied to
// directories, its dependency and product bookkeeping, per-cluster submit
// options, resource request, and grouping rules.
//
// Multiple Action entries may share a Name: they are variants of one
// logical action, valid only when Products, PreviousActions, Launchers,
// and Resources are identical and their Group.Include predicates select
// disjoint directory sets. LoadWorkflow checks that the shared fields
// agree (disjointness is not checked) and does not merge variants: they
// remain distinct group profiles under the same name (see
// Workflow.Variants).
type Action struct {
	Name string `json:"name"`

	// Command is the shell command template. Recognizes {directory},
	// {directories}, {workspace_path}, {} (whole value as JSON), and
	// {<json-pointer>} substitutions.
	Command string `json:"command,omitempty"`

	// Products is the ordered list of filenames whose presence in a
	// directory marks this action complete there. Empty means the action
	// has no completion signal: scan skips it, so it is never recorded
	// Completed.
	Products []string `json:"products,omitempty"`

	// PreviousActions names actions that must be Completed for a directory
	// before this action is Eligible there.
	PreviousActions []string `json:"previous_actions,omitempty"`

	// Launchers is the ordered list of launcher names (resolved against
	// launchers.toml) prefixed onto the synthesized command.
	Launchers []string `json:"launchers,omitempty"`

	Resources Resources `json:"resources,omitempty"`

	// SubmitOptions is keyed by cluster name; a cluster absent here submits
	// with no account, no setup script, no custom flags, and auto-selected
	// partition.
	SubmitOptions map[string]SubmitOptions `json:"submit_options,omitempty"`

	Group Group `json:"group,omitempty"`

	// From names another action this one inherits unset fields from. The
	// inheritance chain is resolved once at load time; self → From →
	// Defaults.Action, first non-empty field wins at each level.
	From string `json:"from,omitempty"`
}

// SubmitOptions carries cluster-specific submission parameters for one
// action.
type SubmitOptions struct {
	Account string `json:"account,omitempty"`

	// Setup is a shell snippet sourced before the command, e.g. module
	// loads or environment activation.
	Setup string `json:"setup,omitempty"`

	// Custom is a list of verbatim scheduler directives (e.g.
	// "#SBATCH --exclusive") appended to the script preamble.
	Custom []string `json:"custom,omitempty"`

	// Partition forces partition selection, bypassing describe_partition's
	// constraint search.
	Partition string `json:"partition,omitempty"`
}

// ProcessScope distinguishes whether a resource count is given once per
// submission (the whole group) or once per directory in the group.
type ProcessScope int

const (
	// ScopeUnset means the field was never set; callers should apply the
	// scope-specific default instead of trusting Count.
	ScopeUnset ProcessScope = iota
	PerSubmission
	PerDirectory
)

// ScopedCount is a resource quantity tagged with whether it applies once
// per submission or once per directory in the group. It is the Go
// rendering of the mutually-exclusive per_submission/per_directory pair
// that appears in workflow.toml for both processes and walltime.
type ScopedCount struct {
	Scope ProcessScope
	// Count holds the process count for Processes, or the duration in
	// seconds for Walltime.
	Count int64
}

// Resources is an action's resource request. Processes and Walltime are
// each mutually-exclusive per-submission/per-directory quantities;
// ThreadsPerProcess and GpusPerProcess are flat per-process counts with no
// per-submission/per-directory distinction.
type Resources struct {
	// Processes defaults to {PerSubmission, 1} when unset.
	Processes ScopedCount `json:"processes,omitempty"`

	// ThreadsPerProcess defaults to 1 for totaling when unset (zero value).
	ThreadsPerProcess int `json:"threads_per_process,omitempty"`

	// GpusPerProcess being present (even zero) distinguishes a GPU action
	// from a CPU one for cost accounting; nil means "not a GPU action".
	GpusPerProcess *int `json:"gpus_per_process,omitempty"`

	// Walltime defaults to {PerDirectory, 3600} (one hour) when unset.
	Walltime ScopedCount `json:"walltime,omitempty"`
}

// Condition is one `[pointer, op, operand]` include/sort test.
type Condition struct {
	Pointer string
	Op      jsonvalue.Op
	Operand any
}

// IncludeEntry is one element of a Group's include array: a single
// Condition, an All list whose elements must all hold (AND), or an Any
// list where any one condition holding is enough (OR). The include array
// as a whole matches a directory if any entry matches (OR).
type IncludeEntry struct {
	// Condition is set when this entry is a bare [pointer, op, operand]
	// triple. Mutually exclusive with All and Any.
	Condition *Condition

	// All is set when this entry is an `all = [...]` list of elements that
	// must every hold. Each element is itself a bare condition or a nested
	// `any = [...]` block, letting `all` express AND-of-(condition-or-OR).
	All []AllElement

	// Any is set when this entry is a top-level `any = [...]` list of
	// conditions where any one holding is enough. Equivalent to listing
	// the same conditions as separate top-level include entries; provided
	// for symmetry with the nested form inside All.
	Any []Condition
}

// AllElement is one element of an All list: either a bare condition, or a
// nested `any = [...]` block expressing OR within the enclosing AND.
type AllElement struct {
	Condition *Condition
	Any       []Condition
}

// Group is an action's grouping specification: which directories it
// applies to, how they are ordered, and how they are partitioned into
// jobs.
type Group struct {
	Include []IncludeEntry `json:"include,omitempty"`

	// SortBy is the ordered list of JSON pointers forming the sort-key
	// tuple, applied after the mandatory sort by directory name.
	SortBy []string `json:"sort_by,omitempty"`

	ReverseSort     bool `json:"reverse_sort,omitempty"`
	SplitBySortKey  bool `json:"split_by_sort_key,omitempty"`

	// MaximumSize caps group size; zero means unbounded.
	MaximumSize int `json:"maximum_size,omitempty"`

	// SubmitWhole requires every submission group to exactly match a group
	// that the pre-eligibility pipeline would have produced over the full
	// include set, or the submission fails with a NotWhole error.
	SubmitWhole bool `json:"submit_whole,omitempty"`
}

// ResourceCost is an estimated CPU/GPU-hour cost, accumulated across
// Submitted, Eligible, and Waiting directories for status reporting.
type ResourceCost struct {
	CPUHours float64
	GPUHours float64
}

// Add accumulates other into c in place.
func (c *ResourceCost) Add(other ResourceCost) {
	c.CPUHours += other.CPUHours
	c.GPUHours += other.GPUHours
}

// IsZero reports whether the cost carries neither CPU nor GPU hours.
func (c ResourceCost) IsZero() bool {
	return c.CPUHours == 0 && c.GPUHours == 0
}
