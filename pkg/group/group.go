// Package group filters, sorts, and partitions a set of directories into
// the ordered groups a scheduler submits as jobs, per the pipeline
// spec.md §4.7 defines: filter by include predicate, sort, split by equal
// sort key, cap to a maximum size. SubmissionGroups layers the
// eligibility filter and submit_whole check on top for the project
// engine's submit path.
package group

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rowhpc/row/pkg/jsonvalue"
	"github.com/rowhpc/row/pkg/workflow"
)

// Group is an ordered set of directories processed by one submitted job.
type Group []string

// Values resolves the cached JSON value for a directory, as read from the
// project's value store.
type Values func(directory string) any

// Matches reports whether action's include predicate selects directory,
// given its cached value: a directory matches if any include entry
// matches (OR); an `all` entry matches only if every one of its
// conditions holds (AND). No include entries at all means every
// directory matches.
func Matches(action workflow.Action, value any) (bool, error) {
	if len(action.Group.Include) == 0 {
		return true, nil
	}
	for _, entry := range action.Group.Include {
		ok, err := matchesEntry(entry, value)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchesEntry(entry workflow.IncludeEntry, value any) (bool, error) {
	switch {
	case entry.Condition != nil:
		return matchesCondition(*entry.Condition, value)
	case entry.Any != nil:
		return matchesAny(entry.Any, value)
	default:
		for _, el := range entry.All {
			ok, err := matchesAllElement(el, value)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func matchesAllElement(el workflow.AllElement, value any) (bool, error) {
	if el.Condition != nil {
		return matchesCondition(*el.Condition, value)
	}
	return matchesAny(el.Any, value)
}

func matchesAny(conditions []workflow.Condition, value any) (bool, error) {
	for _, c := range conditions {
		ok, err := matchesCondition(c, value)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchesCondition(c workflow.Condition, value any) (bool, error) {
	resolved, err := jsonvalue.Lookup(value, c.Pointer)
	if err != nil {
		return false, fmt.Errorf("include condition: %w", err)
	}
	return jsonvalue.Evaluate(c.Op, resolved, c.Operand)
}

// Filter returns the subset of directories action's include predicate
// selects, preserving relative order.
func Filter(action workflow.Action, directories []string, values Values) ([]string, error) {
	out := make([]string, 0, len(directories))
	for _, d := range directories {
		ok, err := Matches(action, values(d))
		if err != nil {
			return nil, fmt.Errorf("directory %s: %w", d, err)
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// sortWithKeys stable-sorts directories by name, then stable-sorts by the
// tuple of action's sort_by pointers (reversed as a whole if ReverseSort),
// returning both the sorted directories and their resolved sort-key
// tuples (needed by splitBySortKey to detect equal-key runs).
func sortWithKeys(action workflow.Action, directories []string, values Values) ([]string, [][]any, error) {
	out := make([]string, len(directories))
	copy(out, directories)
	sort.SliceStable(out, func(i, j int) bool { return out[i] < out[j] })

	keys := make([][]any, len(out))
	for _, pointer := range action.Group.SortBy {
		col := make([]any, len(out))
		for i, d := range out {
			v, err := jsonvalue.Lookup(values(d), pointer)
			if err != nil {
				return nil, nil, fmt.Errorf("sort_by %s: directory %s: %w", pointer, d, err)
			}
			col[i] = v
		}
		if err := jsonvalue.CheckSortable(col, pointer); err != nil {
			return nil, nil, err
		}
		for i := range out {
			keys[i] = append(keys[i], col[i])
		}
	}

	if len(action.Group.SortBy) == 0 {
		return out, keys, nil
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if action.Group.ReverseSort {
			return tupleLess(keys[j], keys[i])
		}
		return tupleLess(keys[i], keys[j])
	})

	sortedDirs := make([]string, len(out))
	sortedKeys := make([][]any, len(out))
	for pos, i := range idx {
		sortedDirs[pos] = out[i]
		sortedKeys[pos] = keys[i]
	}
	return sortedDirs, sortedKeys, nil
}

// tupleLess compares two equal-length sort-key tuples lexicographically,
// element by element, skipping over elements the two tuples share equally.
func tupleLess(a, b []any) bool {
	for i := range a {
		if jsonvalue.Less(a[i], b[i]) {
			return true
		}
		if jsonvalue.Less(b[i], a[i]) {
			return false
		}
	}
	return false
}

func tupleEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !jsonvalue.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// splitBySortKey partitions sorted directories into runs of adjacent
// directories whose sort-key tuples are equal; all-equal keys (including
// the no-sort_by empty tuple) collapse to a single group.
func splitBySortKey(directories []string, keys [][]any) []Group {
	if len(directories) == 0 {
		return nil
	}
	groups := []Group{{directories[0]}}
	for i := 1; i < len(directories); i++ {
		if tupleEqual(keys[i], keys[i-1]) {
			last := len(groups) - 1
			groups[last] = append(groups[last], directories[i])
			continue
		}
		groups = append(groups, Group{directories[i]})
	}
	return groups
}

// capSize splits each group into consecutive chunks of at most size
// directories; the final chunk of each group may be smaller.
func capSize(groups []Group, size int) []Group {
	if size <= 0 {
		return groups
	}
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		for i := 0; i < len(g); i += size {
			end := i + size
			if end > len(g) {
				end = len(g)
			}
			out = append(out, Group(g[i:end]))
		}
	}
	return out
}

// Pipeline runs the full group-formation pipeline for action over
// candidates: filter by include, sort, split by sort key (if
// split_by_sort_key), cap to maximum_size (if set).
func Pipeline(action workflow.Action, candidates []string, values Values) ([]Group, error) {
	filtered, err := Filter(action, candidates, values)
	if err != nil {
		return nil, err
	}

	sorted, keys, err := sortWithKeys(action, filtered, values)
	if err != nil {
		return nil, err
	}

	var groups []Group
	if action.Group.SplitBySortKey {
		groups = splitBySortKey(sorted, keys)
	} else if len(sorted) > 0 {
		groups = []Group{Group(sorted)}
	}

	if action.Group.MaximumSize > 0 {
		groups = capSize(groups, action.Group.MaximumSize)
	}
	return groups, nil
}

// EligibilityChecker answers the two store-backed questions Eligible needs:
// whether (action, directory) is already Completed, and whether it is
// Submitted on any cluster. Satisfied by a thin adapter over
// completionstore.Store and submissionstore.Store; kept as an interface so
// this package never imports either store.
type EligibilityChecker interface {
	IsComplete(action, directory string) bool
	SubmittedAnyCluster(action, directory string) bool
}

// Eligible filters candidates to directories eligible for submission under
// action: not already Completed, not already Submitted on any cluster,
// and with every one of action's previous actions Completed there.
func Eligible(action workflow.Action, candidates []string, checker EligibilityChecker) []string {
	out := make([]string, 0, len(candidates))
	for _, d := range candidates {
		if checker.IsComplete(action.Name, d) {
			continue
		}
		if checker.SubmittedAnyCluster(action.Name, d) {
			continue
		}
		allPrevComplete := true
		for _, prev := range action.PreviousActions {
			if !checker.IsComplete(prev, d) {
				allPrevComplete = false
				break
			}
		}
		if !allPrevComplete {
			continue
		}
		out = append(out, d)
	}
	return out
}

// NotWholeError reports that a submit_whole action's submission group does
// not exactly match a group the full-include-set pipeline would produce,
// per spec.md §4.7.
type NotWholeError struct {
	Action string
	Group  Group
}

func (e *NotWholeError) Error() string {
	return fmt.Sprintf("action %q: submission group %v is not whole; submit_whole requires submitting an action's full group together", e.Action, []string(e.Group))
}

// SubmissionGroups forms action's submission groups: it filters candidates
// to eligible directories and runs the grouping pipeline over them. If
// action.Group.SubmitWhole is set, every resulting group must exactly
// equal a group the same pipeline would produce over allDirectories (the
// full workspace, pre-eligibility, post-include) — otherwise submission
// fails with NotWholeError naming the offending group.
func SubmissionGroups(action workflow.Action, candidates, allDirectories []string, values Values, checker EligibilityChecker) ([]Group, error) {
	eligible := Eligible(action, candidates, checker)
	groups, err := Pipeline(action, eligible, values)
	if err != nil {
		return nil, err
	}
	if !action.Group.SubmitWhole {
		return groups, nil
	}

	fullGroups, err := Pipeline(action, allDirectories, values)
	if err != nil {
		return nil, err
	}
	full := make(map[string]struct{}, len(fullGroups))
	for _, g := range fullGroups {
		full[groupKey(g)] = struct{}{}
	}
	for _, g := range groups {
		if _, ok := full[groupKey(g)]; !ok {
			return nil, &NotWholeError{Action: action.Name, Group: g}
		}
	}
	return groups, nil
}

func groupKey(g Group) string {
	return strings.Join(g, "\x00")
}
