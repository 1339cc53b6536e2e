package workflow

import "fmt"

// ConfigParseError wraps a TOML or intermediate-JSON parse failure.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// SchemaError wraps a schema-validation failure: missing required field,
// unknown key, or mutually exclusive keys both set.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation of %s: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// WorkflowConsistencyError reports a workflow-level invariant violation
// found while resolving inheritance: default.action setting from, a from
// naming an unknown action or one that itself uses from, or an action
// left without a name or command.
type WorkflowConsistencyError struct {
	Reason string
}

func (e *WorkflowConsistencyError) Error() string {
	return "workflow inconsistency: " + e.Reason
}

// undefinedActionError names a previous_actions reference with no matching
// action definition anywhere in the workflow.
type undefinedActionError struct {
	From string
	To   string
}

func (e *undefinedActionError) Error() string {
	return fmt.Sprintf("action %q names undefined previous action %q", e.From, e.To)
}

// variantMismatchError names two same-named action entries whose shared
// fields disagree.
type variantMismatchError struct {
	Name   string
	Reason string
}

func (e *variantMismatchError) Error() string {
	return fmt.Sprintf("action %q variants disagree: %s", e.Name, e.Reason)
}
