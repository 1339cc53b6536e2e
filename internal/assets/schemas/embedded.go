// Package schemas embeds the JSON Schema documents used to validate row's
// TOML configuration files before they are decoded into typed structs.
package schemas

import _ "embed"

// WorkflowSchema is the compiled-in schema for workflow.toml.
//
//go:embed workflow.schema.json
var WorkflowSchema []byte
