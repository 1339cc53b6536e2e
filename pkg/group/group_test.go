package group

import (
	"testing"

	"github.com/rowhpc/row/pkg/jsonvalue"
	"github.com/rowhpc/row/pkg/workflow"
)

func valuesFrom(m map[string]any) Values {
	return func(d string) any { return m[d] }
}

func xValue(x float64) map[string]any {
	return map[string]any{"x": x}
}

func TestPipelineSplitBySortKey(t *testing.T) {
	// scenario 4: six directories with x = 0|2|3, sort_by=["x"],
	// split_by_sort_key => three groups of sizes 3, 1, 2 in ascending order.
	values := map[string]any{
		"d0": xValue(0), "d1": xValue(0), "d2": xValue(0),
		"d3": xValue(2),
		"d4": xValue(3), "d5": xValue(3),
	}
	dirs := []string{"d4", "d5", "d3", "d0", "d1", "d2"}

	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			SortBy:         []string{"x"},
			SplitBySortKey: true,
		},
	}

	groups, err := Pipeline(action, dirs, valuesFrom(values))
	if err != nil {
		t.Fatalf("Pipeline error: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	wantSizes := []int{3, 1, 2}
	for i, g := range groups {
		if len(g) != wantSizes[i] {
			t.Errorf("group %d size = %d, want %d", i, len(g), wantSizes[i])
		}
	}
}

func TestPipelineMaximumSize(t *testing.T) {
	// scenario 5: same six directories, sort_by=["x"], maximum_size=4 =>
	// two groups of sizes 4 and 2.
	values := map[string]any{
		"d0": xValue(0), "d1": xValue(0), "d2": xValue(0),
		"d3": xValue(2),
		"d4": xValue(3), "d5": xValue(3),
	}
	dirs := []string{"d0", "d1", "d2", "d3", "d4", "d5"}

	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			SortBy:      []string{"x"},
			MaximumSize: 4,
		},
	}

	groups, err := Pipeline(action, dirs, valuesFrom(values))
	if err != nil {
		t.Fatalf("Pipeline error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0]) != 4 || len(groups[1]) != 2 {
		t.Fatalf("got sizes %d,%d want 4,2", len(groups[0]), len(groups[1]))
	}
}

func TestSplitBySortKeyAllEqualIsOneGroup(t *testing.T) {
	values := map[string]any{"d0": xValue(1), "d1": xValue(1), "d2": xValue(1)}
	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			SortBy:         []string{"x"},
			SplitBySortKey: true,
		},
	}
	groups, err := Pipeline(action, []string{"d0", "d1", "d2"}, valuesFrom(values))
	if err != nil {
		t.Fatalf("Pipeline error: %v", err)
	}
	if len(groups) != 1 || len(groups[0]) != 3 {
		t.Fatalf("got %v, want a single group of 3", groups)
	}
}

func TestSortMixedTypeIsValueError(t *testing.T) {
	values := map[string]any{
		"d0": map[string]any{"x": 1.0},
		"d1": map[string]any{"x": "a"},
	}
	action := workflow.Action{Name: "a", Group: workflow.Group{SortBy: []string{"x"}}}
	_, err := Pipeline(action, []string{"d0", "d1"}, valuesFrom(values))
	if err == nil {
		t.Fatal("expected a ValueError for mixed-type sort key, got nil")
	}
	var mixed *jsonvalue.MixedTypeSortError
	if !asMixedType(err, &mixed) {
		t.Fatalf("expected MixedTypeSortError, got %v", err)
	}
}

func asMixedType(err error, target **jsonvalue.MixedTypeSortError) bool {
	if e, ok := err.(*jsonvalue.MixedTypeSortError); ok {
		*target = e
		return true
	}
	return false
}

func TestFilterInclude(t *testing.T) {
	values := map[string]any{
		"d0": map[string]any{"phase": "a"},
		"d1": map[string]any{"phase": "b"},
		"d2": map[string]any{"phase": "a"},
	}
	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			Include: []workflow.IncludeEntry{
				{Condition: &workflow.Condition{Pointer: "phase", Op: jsonvalue.OpEqual, Operand: "a"}},
			},
		},
	}
	out, err := Filter(action, []string{"d0", "d1", "d2"}, valuesFrom(values))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(out) != 2 || out[0] != "d0" || out[1] != "d2" {
		t.Fatalf("Filter() = %v, want [d0 d2]", out)
	}
}

func TestFilterIncludeAnyNestedInAll(t *testing.T) {
	values := map[string]any{
		"d0": map[string]any{"phase": "a", "ready": true},
		"d1": map[string]any{"phase": "b", "ready": true},
		"d2": map[string]any{"phase": "a", "ready": false},
	}
	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			Include: []workflow.IncludeEntry{
				{All: []workflow.AllElement{
					{Condition: &workflow.Condition{Pointer: "ready", Op: jsonvalue.OpEqual, Operand: true}},
					{Any: []workflow.Condition{
						{Pointer: "phase", Op: jsonvalue.OpEqual, Operand: "a"},
						{Pointer: "phase", Op: jsonvalue.OpEqual, Operand: "b"},
					}},
				}},
			},
		},
	}
	out, err := Filter(action, []string{"d0", "d1", "d2"}, valuesFrom(values))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(out) != 2 || out[0] != "d0" || out[1] != "d1" {
		t.Fatalf("Filter() = %v, want [d0 d1]", out)
	}
}

func TestFilterTopLevelAny(t *testing.T) {
	values := map[string]any{
		"d0": map[string]any{"phase": "a"},
		"d1": map[string]any{"phase": "b"},
		"d2": map[string]any{"phase": "c"},
	}
	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			Include: []workflow.IncludeEntry{
				{Any: []workflow.Condition{
					{Pointer: "phase", Op: jsonvalue.OpEqual, Operand: "a"},
					{Pointer: "phase", Op: jsonvalue.OpEqual, Operand: "b"},
				}},
			},
		},
	}
	out, err := Filter(action, []string{"d0", "d1", "d2"}, valuesFrom(values))
	if err != nil {
		t.Fatalf("Filter error: %v", err)
	}
	if len(out) != 2 || out[0] != "d0" || out[1] != "d1" {
		t.Fatalf("Filter() = %v, want [d0 d1]", out)
	}
}

type fakeChecker struct {
	complete  map[[2]string]bool
	submitted map[[2]string]bool
}

func (c fakeChecker) IsComplete(action, directory string) bool {
	return c.complete[[2]string{action, directory}]
}

func (c fakeChecker) SubmittedAnyCluster(action, directory string) bool {
	return c.submitted[[2]string{action, directory}]
}

func TestEligibleFiltersCompletedSubmittedAndWaiting(t *testing.T) {
	action := workflow.Action{Name: "goodbye", PreviousActions: []string{"hello"}}
	checker := fakeChecker{
		complete: map[[2]string]bool{
			{"hello", "d0"}: true,
			{"goodbye", "d1"}: true, // already completed goodbye itself
		},
		submitted: map[[2]string]bool{
			{"goodbye", "d2"}: true, // already submitted
		},
	}
	out := Eligible(action, []string{"d0", "d1", "d2", "d3"}, checker)
	if len(out) != 1 || out[0] != "d0" {
		t.Fatalf("Eligible() = %v, want [d0]", out)
	}
}

func TestSubmissionGroupsNotWhole(t *testing.T) {
	values := map[string]any{"d0": xValue(0), "d1": xValue(0)}
	action := workflow.Action{
		Name: "a",
		Group: workflow.Group{
			SplitBySortKey: true,
			SubmitWhole:    true,
		},
	}
	checker := fakeChecker{}
	// candidates omits d1, so the eligible group {d0} can never equal the
	// full group {d0, d1} split_by_sort_key would produce.
	_, err := SubmissionGroups(action, []string{"d0"}, []string{"d0", "d1"}, valuesFrom(values), checker)
	if err == nil {
		t.Fatal("expected NotWholeError, got nil")
	}
	if _, ok := err.(*NotWholeError); !ok {
		t.Fatalf("expected *NotWholeError, got %T: %v", err, err)
	}
}

func TestSubmissionGroupsWhole(t *testing.T) {
	values := map[string]any{"d0": xValue(0), "d1": xValue(0)}
	action := workflow.Action{
		Name:  "a",
		Group: workflow.Group{SubmitWhole: true},
	}
	checker := fakeChecker{}
	groups, err := SubmissionGroups(action, []string{"d0", "d1"}, []string{"d0", "d1"}, valuesFrom(values), checker)
	if err != nil {
		t.Fatalf("SubmissionGroups error: %v", err)
	}
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("got %v, want one group of 2", groups)
	}
}
