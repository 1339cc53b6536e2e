package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	v := map[string]any{
		"x": float64(3),
		"nested": map[string]any{
			"y": "hello",
		},
		"list": []any{float64(1), float64(2), float64(3)},
	}

	got, err := Lookup(v, "x")
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)

	got, err = Lookup(v, "/nested/y")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = Lookup(v, "list/1")
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	_, err = Lookup(v, "missing")
	require.Error(t, err)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestLookupWhole(t *testing.T) {
	v := map[string]any{"a": float64(1)}
	got, err := Lookup(v, "")
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
