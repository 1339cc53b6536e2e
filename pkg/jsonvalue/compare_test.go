package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateScalars(t *testing.T) {
	ok, err := Evaluate(OpLess, float64(0), float64(10))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate(OpGreater, "abce", "abcd")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate(OpEqual, float64(1), float64(1))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateArraysLexicographic(t *testing.T) {
	a := []any{float64(1), float64(2)}
	b := []any{float64(1), float64(3)}
	ok, err := Evaluate(OpLess, a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateIncomparable(t *testing.T) {
	_, err := Evaluate(OpLess, map[string]any{"a": float64(1)}, map[string]any{"a": float64(1)})
	require.Error(t, err)
	var ic *IncomparableError
	assert.ErrorAs(t, err, &ic)

	_, err = Evaluate(OpLess, "a", float64(1))
	require.Error(t, err)
}

func TestEqualObjects(t *testing.T) {
	a := map[string]any{"a": float64(1), "b": "x"}
	b := map[string]any{"b": "x", "a": float64(1)}
	assert.True(t, Equal(a, b))
}

func TestCheckSortable(t *testing.T) {
	require.NoError(t, CheckSortable([]any{float64(1), float64(2), nil}, "/x"))
	require.Error(t, CheckSortable([]any{float64(1), "two"}, "/x"))
}
