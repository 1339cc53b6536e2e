package jsonvalue

// Op is a comparison operator over two JSON values, as used by a group's
// include conditions and sort_by tuples.
type Op string

const (
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpGreater        Op = ">"
)

// order is the result of comparing two JSON values: less, equal, greater,
// or incomparable (objects, mismatched types, mismatched-length arrays).
type order int

const (
	orderLess order = iota
	orderEqual
	orderGreater
	orderIncomparable
)

// Compare orders two JSON values. Numbers compare numerically, strings
// lexicographically, booleans false<true, null equals null, and arrays
// compare lexicographically element-by-element (equal length required).
// Objects, and any pairing of differing JSON types, are incomparable.
func compare(a, b any) order {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return orderEqual
		}
		return orderIncomparable
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return orderIncomparable
		}
		switch {
		case av == bv:
			return orderEqual
		case !av && bv:
			return orderLess
		default:
			return orderGreater
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return orderIncomparable
		}
		switch {
		case av == bv:
			return orderEqual
		case av < bv:
			return orderLess
		default:
			return orderGreater
		}
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return orderIncomparable
		}
		switch {
		case av == bv:
			return orderEqual
		case av < bv:
			return orderLess
		default:
			return orderGreater
		}
	case []any:
		bv, ok := b.([]any)
		if !ok {
			return orderIncomparable
		}
		if len(av) != len(bv) {
			return orderIncomparable
		}
		if len(av) == 0 {
			return orderEqual
		}
		for i := range av {
			switch compare(av[i], bv[i]) {
			case orderLess:
				return orderLess
			case orderGreater:
				return orderGreater
			case orderIncomparable:
				return orderIncomparable
			}
		}
		return orderEqual
	default:
		// map[string]any (JSON objects) are never ordered.
		return orderIncomparable
	}
}

// Equal reports whether two JSON values are deeply equal under the same
// rules as Compare's orderEqual case, without requiring an ordering to
// exist (so object equality works even though object ordering does not).
func Equal(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !Equal(v, bvv) {
				return false
			}
		}
		return true
	default:
		return compare(a, b) == orderEqual
	}
}

// IncomparableError is returned by Evaluate when an ordered operator is
// applied to values that have no defined ordering (e.g. JSON objects, or a
// type mismatch).
type IncomparableError struct {
	Op Op
}

func (e *IncomparableError) Error() string {
	return "values are not ordered for operator " + string(e.Op)
}

// Evaluate applies op to (a, b) and reports the boolean result. Ordered
// operators over incomparable values return an error; "==" over
// incomparable values is well-defined (false, objects use Equal).
func Evaluate(op Op, a, b any) (bool, error) {
	if op == OpEqual {
		return Equal(a, b), nil
	}

	ord := compare(a, b)
	if ord == orderIncomparable {
		return false, &IncomparableError{Op: op}
	}

	switch op {
	case OpLess:
		return ord == orderLess, nil
	case OpLessOrEqual:
		return ord == orderLess || ord == orderEqual, nil
	case OpGreaterOrEqual:
		return ord == orderGreater || ord == orderEqual, nil
	case OpGreater:
		return ord == orderGreater, nil
	default:
		return false, &IncomparableError{Op: op}
	}
}

// Less reports a<b for sort purposes; incomparable values sort as if equal
// (the caller is expected to have rejected mixed-type sort keys with
// CheckSortable before sorting).
func Less(a, b any) bool {
	return compare(a, b) == orderLess
}

// CheckSortable verifies that every value in vs that is non-nil shares a
// comparable type with the others, returning an error naming the pointer
// on the first mismatch. Used to surface a ValueError before a sort that
// would otherwise silently treat mixed types as equal.
func CheckSortable(vs []any, pointer string) error {
	var first any
	haveFirst := false
	for _, v := range vs {
		if v == nil {
			continue
		}
		if !haveFirst {
			first = v
			haveFirst = true
			continue
		}
		if compare(first, v) == orderIncomparable {
			return &MixedTypeSortError{Pointer: pointer}
		}
	}
	return nil
}

// MixedTypeSortError is a ValueError: the directories being sorted have
// values at this pointer that are not of a mutually comparable type.
type MixedTypeSortError struct {
	Pointer string
}

func (e *MixedTypeSortError) Error() string {
	return "sort pointer " + e.Pointer + " resolves to values of incomparable types"
}
