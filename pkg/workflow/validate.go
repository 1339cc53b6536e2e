package workflow

import (
	"reflect"
)

// checkActionConsistency validates the cross-action invariants that can
// only be checked once every action has been resolved: every
// previous_actions reference names a defined action, and same-named
// action entries (variants) agree on every field the group profile does
// not distinguish.
//
// Variants' include predicates are expected to select disjoint directory
// sets; that property is not exhaustively provable for arbitrary JSON
// pointer conditions and is left as a load-time-unchecked contract, same
// as the rest of the group engine's runtime behavior when predicates
// overlap (the first matching variant wins, see pkg/group).
func checkActionConsistency(actions []Action) error {
	names := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		names[a.Name] = struct{}{}
	}

	for _, a := range actions {
		for _, prev := range a.PreviousActions {
			if _, ok := names[prev]; !ok {
				return &undefinedActionError{From: a.Name, To: prev}
			}
		}
	}

	firstByName := make(map[string]*Action, len(actions))
	for i := range actions {
		a := &actions[i]
		first, ok := firstByName[a.Name]
		if !ok {
			firstByName[a.Name] = a
			continue
		}
		if !reflect.DeepEqual(first.PreviousActions, a.PreviousActions) {
			return &variantMismatchError{Name: a.Name, Reason: "previous_actions differs across variants"}
		}
		if !reflect.DeepEqual(first.Products, a.Products) {
			return &variantMismatchError{Name: a.Name, Reason: "products differs across variants"}
		}
		if !reflect.DeepEqual(first.Launchers, a.Launchers) {
			return &variantMismatchError{Name: a.Name, Reason: "launchers differs across variants"}
		}
		if !reflect.DeepEqual(first.Resources, a.Resources) {
			return &variantMismatchError{Name: a.Name, Reason: "resources differs across variants"}
		}
	}

	return nil
}

// ActionByName returns the first action entry with the given name, or
// (Action{}, false) if none exists. For same-named variants this is the
// shared-field representative; callers needing the group profile specific
// to a directory should use Variants instead.
func (w *Workflow) ActionByName(name string) (Action, bool) {
	for _, a := range w.Action {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Variants returns every action entry sharing name, in declaration order.
func (w *Workflow) Variants(name string) []Action {
	var out []Action
	for _, a := range w.Action {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

// ActionNames returns the distinct action names in declaration order.
func (w *Workflow) ActionNames() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range w.Action {
		if _, ok := seen[a.Name]; ok {
			continue
		}
		seen[a.Name] = struct{}{}
		out = append(out, a.Name)
	}
	return out
}
