package workflow

import (
	"fmt"
	"time"

	"github.com/rowhpc/row/pkg/jsonvalue"
)

// normalize converts a decoded rawWorkflow into a Workflow: each action
// resolves self → from → default.action (first non-empty field wins), then
// the whole action set is checked for previous_actions references and
// same-named-variant agreement.
func normalize(raw *rawWorkflow) (*Workflow, error) {
	if raw.Default.Action.From != "" {
		return nil, &WorkflowConsistencyError{Reason: "default.action must not set from"}
	}

	source := make([]rawAction, len(raw.Action))
	copy(source, raw.Action)

	actions := make([]Action, 0, len(raw.Action))
	for i := range raw.Action {
		a := raw.Action[i]

		if a.From != "" {
			idx := -1
			for j, cand := range source {
				if cand.Name == a.From {
					idx = j
					break
				}
			}
			if idx == -1 {
				return nil, &WorkflowConsistencyError{
					Reason: fmt.Sprintf("action %q: from %q not found", a.Name, a.From),
				}
			}
			if source[idx].From != "" {
				return nil, &WorkflowConsistencyError{
					Reason: fmt.Sprintf("action %q: from-chain through %q may not itself set from (only one level of from is resolved)", a.Name, a.From),
				}
			}
			resolveRawAction(&a, &source[idx])
		}
		resolveRawAction(&a, &raw.Default.Action)

		if a.Name == "" {
			return nil, &WorkflowConsistencyError{Reason: fmt.Sprintf("action at index %d has no name", i)}
		}
		if a.Command == "" {
			return nil, &WorkflowConsistencyError{Reason: fmt.Sprintf("action %q has no command", a.Name)}
		}

		conv, err := convertAction(a)
		if err != nil {
			return nil, err
		}
		actions = append(actions, conv)
	}

	if err := checkActionConsistency(actions); err != nil {
		return nil, err
	}

	return &Workflow{
		Workspace: convertWorkspace(raw.Workspace),
		Action:    actions,
	}, nil
}

// resolveRawAction fills every zero-valued field of a from the
// corresponding field of template, in place. Mirrors the field-by-field,
// first-non-empty-wins resolution: resources and group are resolved field
// by field as well, and submit_options is merged per cluster name.
func resolveRawAction(a *rawAction, template *rawAction) {
	if a.Command == "" {
		a.Command = template.Command
	}
	if a.Launchers == nil {
		a.Launchers = template.Launchers
	}
	if a.PreviousActions == nil {
		a.PreviousActions = template.PreviousActions
	}
	if a.Products == nil {
		a.Products = template.Products
	}

	resolveRawResources(&a.Resources, &template.Resources)
	resolveRawGroup(&a.Group, &template.Group)

	if a.SubmitOptions == nil && len(template.SubmitOptions) > 0 {
		a.SubmitOptions = make(map[string]rawSubmitOpts, len(template.SubmitOptions))
	}
	for cluster, templateOpts := range template.SubmitOptions {
		opts, ok := a.SubmitOptions[cluster]
		if !ok {
			a.SubmitOptions[cluster] = templateOpts
			continue
		}
		if opts.Account == "" {
			opts.Account = templateOpts.Account
		}
		if opts.Setup == "" {
			opts.Setup = templateOpts.Setup
		}
		if opts.Partition == "" {
			opts.Partition = templateOpts.Partition
		}
		if len(opts.Custom) == 0 {
			opts.Custom = templateOpts.Custom
		}
		a.SubmitOptions[cluster] = opts
	}
}

func resolveRawResources(r *rawResources, template *rawResources) {
	if r.ProcessesPerSubmission == 0 && r.ProcessesPerDirectory == 0 {
		r.ProcessesPerSubmission = template.ProcessesPerSubmission
		r.ProcessesPerDirectory = template.ProcessesPerDirectory
	}
	if r.ThreadsPerProcess == 0 {
		r.ThreadsPerProcess = template.ThreadsPerProcess
	}
	if r.GpusPerProcess == nil {
		r.GpusPerProcess = template.GpusPerProcess
	}
	if r.WalltimePerSubmission == "" && r.WalltimePerDirectory == "" {
		r.WalltimePerSubmission = template.WalltimePerSubmission
		r.WalltimePerDirectory = template.WalltimePerDirectory
	}
}

func resolveRawGroup(g *rawGroup, template *rawGroup) {
	if g.Include == nil {
		g.Include = template.Include
	}
	if g.SortBy == nil {
		g.SortBy = template.SortBy
	}
	if !g.ReverseSort {
		g.ReverseSort = template.ReverseSort
	}
	if !g.SplitBySortKey {
		g.SplitBySortKey = template.SplitBySortKey
	}
	if g.MaximumSize == 0 {
		g.MaximumSize = template.MaximumSize
	}
	if !g.SubmitWhole {
		g.SubmitWhole = template.SubmitWhole
	}
}

func convertWorkspace(r rawWorkspace) Workspace {
	w := Workspace{Path: r.Path, ValueFile: r.ValueFile, Ignore: r.Ignore}
	if w.Path == "" {
		w.Path = "workspace"
	}
	return w
}

func convertAction(r rawAction) (Action, error) {
	group, err := convertGroup(r.Group)
	if err != nil {
		return Action{}, fmt.Errorf("action %q: %w", r.Name, err)
	}

	resources, err := convertResources(r.Resources)
	if err != nil {
		return Action{}, fmt.Errorf("action %q: %w", r.Name, err)
	}

	var submitOpts map[string]SubmitOptions
	if len(r.SubmitOptions) > 0 {
		submitOpts = make(map[string]SubmitOptions, len(r.SubmitOptions))
		for cluster, o := range r.SubmitOptions {
			submitOpts[cluster] = SubmitOptions{
				Account:   o.Account,
				Setup:     o.Setup,
				Custom:    o.Custom,
				Partition: o.Partition,
			}
		}
	}

	return Action{
		Name:            r.Name,
		Command:         r.Command,
		Products:        r.Products,
		PreviousActions: r.PreviousActions,
		Launchers:       r.Launchers,
		Resources:       resources,
		SubmitOptions:   submitOpts,
		Group:           group,
		From:            r.From,
	}, nil
}

func convertResources(r rawResources) (Resources, error) {
	res := Resources{
		ThreadsPerProcess: r.ThreadsPerProcess,
		GpusPerProcess:    r.GpusPerProcess,
	}

	switch {
	case r.ProcessesPerSubmission > 0 && r.ProcessesPerDirectory > 0:
		return Resources{}, fmt.Errorf("processes_per_submission and processes_per_directory are mutually exclusive")
	case r.ProcessesPerDirectory > 0:
		res.Processes = ScopedCount{Scope: PerDirectory, Count: int64(r.ProcessesPerDirectory)}
	case r.ProcessesPerSubmission > 0:
		res.Processes = ScopedCount{Scope: PerSubmission, Count: int64(r.ProcessesPerSubmission)}
	default:
		res.Processes = ScopedCount{Scope: PerSubmission, Count: 1}
	}

	switch {
	case r.WalltimePerSubmission != "" && r.WalltimePerDirectory != "":
		return Resources{}, fmt.Errorf("walltime_per_submission and walltime_per_directory are mutually exclusive")
	case r.WalltimePerDirectory != "":
		d, err := time.ParseDuration(r.WalltimePerDirectory)
		if err != nil {
			return Resources{}, fmt.Errorf("walltime_per_directory: %w", err)
		}
		res.Walltime = ScopedCount{Scope: PerDirectory, Count: int64(d.Seconds())}
	case r.WalltimePerSubmission != "":
		d, err := time.ParseDuration(r.WalltimePerSubmission)
		if err != nil {
			return Resources{}, fmt.Errorf("walltime_per_submission: %w", err)
		}
		res.Walltime = ScopedCount{Scope: PerSubmission, Count: int64(d.Seconds())}
	default:
		res.Walltime = ScopedCount{Scope: PerDirectory, Count: 3600}
	}

	return res, nil
}

func convertGroup(r rawGroup) (Group, error) {
	entries := make([]IncludeEntry, 0, len(r.Include))
	for _, e := range r.Include {
		set := boolCount(e.Condition != nil, e.All != nil, e.Any != nil)
		switch {
		case set > 1:
			return Group{}, fmt.Errorf("include entry may set only one of condition, all, any")
		case e.Condition != nil:
			c, err := convertCondition(e.Condition)
			if err != nil {
				return Group{}, err
			}
			entries = append(entries, IncludeEntry{Condition: &c})
		case e.All != nil:
			all, err := convertAllElements(e.All)
			if err != nil {
				return Group{}, err
			}
			entries = append(entries, IncludeEntry{All: all})
		case e.Any != nil:
			any, err := convertConditions(e.Any)
			if err != nil {
				return Group{}, err
			}
			entries = append(entries, IncludeEntry{Any: any})
		default:
			return Group{}, fmt.Errorf("include entry must set condition, all, or any")
		}
	}

	return Group{
		Include:        entries,
		SortBy:         r.SortBy,
		ReverseSort:    r.ReverseSort,
		SplitBySortKey: r.SplitBySortKey,
		MaximumSize:    r.MaximumSize,
		SubmitWhole:    r.SubmitWhole,
	}, nil
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func convertConditions(raws [][]any) ([]Condition, error) {
	out := make([]Condition, 0, len(raws))
	for _, raw := range raws {
		c, err := convertCondition(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// convertAllElements disambiguates each element of an `all = [...]` list:
// a bare condition decodes as []any (from the [pointer, op, operand]
// TOML array), a nested any-block decodes as map[string]any with an
// "any" key.
func convertAllElements(raws []any) ([]AllElement, error) {
	out := make([]AllElement, 0, len(raws))
	for _, raw := range raws {
		switch v := raw.(type) {
		case []any:
			c, err := convertCondition(v)
			if err != nil {
				return nil, err
			}
			out = append(out, AllElement{Condition: &c})
		case map[string]any:
			anyRaw, ok := v["any"]
			if !ok {
				return nil, fmt.Errorf("all element table must set any")
			}
			anyList, ok := anyRaw.([]any)
			if !ok {
				return nil, fmt.Errorf("all element any must be a list of conditions")
			}
			conditions := make([]Condition, 0, len(anyList))
			for _, a := range anyList {
				condRaw, ok := a.([]any)
				if !ok {
					return nil, fmt.Errorf("all element any entries must be [pointer, op, operand] conditions")
				}
				c, err := convertCondition(condRaw)
				if err != nil {
					return nil, err
				}
				conditions = append(conditions, c)
			}
			out = append(out, AllElement{Any: conditions})
		default:
			return nil, fmt.Errorf("all element must be a condition array or an any table")
		}
	}
	return out, nil
}

func convertCondition(raw []any) (Condition, error) {
	if len(raw) != 3 {
		return Condition{}, fmt.Errorf("condition must have exactly 3 elements, got %d", len(raw))
	}
	pointer, ok := raw[0].(string)
	if !ok {
		return Condition{}, fmt.Errorf("condition pointer must be a string")
	}
	opStr, ok := raw[1].(string)
	if !ok {
		return Condition{}, fmt.Errorf("condition operator must be a string")
	}
	op := jsonvalue.Op(opStr)
	switch op {
	case jsonvalue.OpLess, jsonvalue.OpLessOrEqual, jsonvalue.OpEqual, jsonvalue.OpGreaterOrEqual, jsonvalue.OpGreater:
	default:
		return Condition{}, fmt.Errorf("unknown comparison operator %q", opStr)
	}
	return Condition{Pointer: pointer, Op: op, Operand: normalizeTOMLValue(raw[2])}, nil
}

// normalizeTOMLValue recursively converts a go-toml/v2 decoded value (which
// uses int64 for integers) into the same shape encoding/json would produce
// (float64 for all numbers), so operands compare correctly against values
// read from the workspace's JSON value files via pkg/jsonvalue.
func normalizeTOMLValue(v any) any {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeTOMLValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeTOMLValue(e)
		}
		return out
	default:
		return v
	}
}
