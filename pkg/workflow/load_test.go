package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalWorkflowTOML() string {
	return `
[workspace]
path = "workspace"

[[action]]
name = "hello"
command = "echo hello"
`
}

func TestLoadWorkflowMinimal(t *testing.T) {
	wf, err := LoadWorkflowBytes([]byte(minimalWorkflowTOML()), "workflow.toml")
	require.NoError(t, err)
	require.Len(t, wf.Action, 1)
	assert.Equal(t, "hello", wf.Action[0].Name)
	assert.Equal(t, PerSubmission, wf.Action[0].Resources.Processes.Scope)
	assert.EqualValues(t, 1, wf.Action[0].Resources.Processes.Count)
	assert.Equal(t, PerDirectory, wf.Action[0].Resources.Walltime.Scope)
	assert.EqualValues(t, 3600, wf.Action[0].Resources.Walltime.Count)
}

func TestLoadWorkflowMissingCommand(t *testing.T) {
	_, err := LoadWorkflowBytes([]byte(`
[[action]]
name = "hello"
`), "workflow.toml")
	require.Error(t, err)
}

func TestLoadWorkflowUnknownField(t *testing.T) {
	_, err := LoadWorkflowBytes([]byte(`
[[action]]
name = "hello"
command = "echo hello"
bogus_field = true
`), "workflow.toml")
	require.Error(t, err)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestLoadWorkflowFromInheritance(t *testing.T) {
	wf, err := LoadWorkflowBytes([]byte(`
[default.action]
command = "echo default"

[[action]]
name = "base"
products = ["base.out"]

[[action]]
name = "derived"
from = "base"
command = "echo derived"
`), "workflow.toml")
	require.NoError(t, err)

	base, ok := wf.ActionByName("base")
	require.True(t, ok)
	assert.Equal(t, "echo default", base.Command)

	derived, ok := wf.ActionByName("derived")
	require.True(t, ok)
	assert.Equal(t, "echo derived", derived.Command)
	assert.Equal(t, []string{"base.out"}, derived.Products)
}

func TestLoadWorkflowUndefinedPreviousAction(t *testing.T) {
	_, err := LoadWorkflowBytes([]byte(`
[[action]]
name = "goodbye"
command = "echo bye"
previous_actions = ["hello"]
`), "workflow.toml")
	require.Error(t, err)
	var undef *undefinedActionError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, "hello", undef.To)
}

func TestLoadWorkflowVariantMismatch(t *testing.T) {
	_, err := LoadWorkflowBytes([]byte(`
[[action]]
name = "convert"
command = "echo a"
products = ["a.out"]

[[action]]
name = "convert"
command = "echo b"
products = ["b.out"]
`), "workflow.toml")
	require.Error(t, err)
	var mismatch *variantMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestLoadWorkflowIncludeConditions(t *testing.T) {
	wf, err := LoadWorkflowBytes([]byte(`
[[action]]
name = "hello"
command = "echo hello"

[[action.group.include]]
condition = ["/x", "==", 5]

[[action.group.include]]
all = [["/y", ">", 1], ["/y", "<", 10]]
`), "workflow.toml")
	require.NoError(t, err)
	group := wf.Action[0].Group
	require.Len(t, group.Include, 2)
	require.NotNil(t, group.Include[0].Condition)
	assert.EqualValues(t, 5, group.Include[0].Condition.Operand)
	require.Len(t, group.Include[1].All, 2)
}

func TestLoadWorkflowIncludeAnyNestedInAll(t *testing.T) {
	wf, err := LoadWorkflowBytes([]byte(`
[[action]]
name = "hello"
command = "echo hello"

[[action.group.include]]
all = [["/ready", "==", true], { any = [["/phase", "==", "a"], ["/phase", "==", "b"]] }]

[[action.group.include]]
any = [["/x", "==", 1], ["/x", "==", 2]]
`), "workflow.toml")
	require.NoError(t, err)
	group := wf.Action[0].Group
	require.Len(t, group.Include, 2)

	require.Len(t, group.Include[0].All, 2)
	require.NotNil(t, group.Include[0].All[0].Condition)
	require.Len(t, group.Include[0].All[1].Any, 2)

	require.Len(t, group.Include[1].Any, 2)
}

func TestLoadWorkflowWorkspaceIgnore(t *testing.T) {
	wf, err := LoadWorkflowBytes([]byte(`
[workspace]
path = "workspace"
ignore = [".row", "*.tmp"]

[[action]]
name = "hello"
command = "echo hello"
`), "workflow.toml")
	require.NoError(t, err)
	assert.Equal(t, []string{".row", "*.tmp"}, wf.Workspace.Ignore)
}
