package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	schemasassets "github.com/rowhpc/row/internal/assets/schemas"
)

// rawWorkflow mirrors workflow.toml's on-disk shape, before default/from
// inheritance is resolved. LoadWorkflow decodes into this, validates it
// against the embedded schema, then converts it into the normalized
// Workflow type.
type rawWorkflow struct {
	Workspace rawWorkspace `toml:"workspace"`
	Default   rawDefaults  `toml:"default"`
	Action    []rawAction  `toml:"action"`
}

type rawWorkspace struct {
	Path      string   `toml:"path"`
	ValueFile string   `toml:"value_file"`
	Ignore    []string `toml:"ignore"`
}

type rawDefaults struct {
	Action rawAction `toml:"action"`
}

type rawAction struct {
	Name            string                   `toml:"name"`
	Command         string                   `toml:"command"`
	Products        []string                 `toml:"products"`
	PreviousActions []string                 `toml:"previous_actions"`
	Launchers       []string                 `toml:"launchers"`
	Resources       rawResources             `toml:"resources"`
	SubmitOptions   map[string]rawSubmitOpts `toml:"submit_options"`
	Group           rawGroup                 `toml:"group"`
	From            string                   `toml:"from"`
}

type rawResources struct {
	ProcessesPerSubmission int    `toml:"processes_per_submission"`
	ProcessesPerDirectory  int    `toml:"processes_per_directory"`
	ThreadsPerProcess      int    `toml:"threads_per_process"`
	GpusPerProcess         *int   `toml:"gpus_per_process"`
	WalltimePerSubmission  string `toml:"walltime_per_submission"`
	WalltimePerDirectory   string `toml:"walltime_per_directory"`
}

type rawSubmitOpts struct {
	Account   string   `toml:"account"`
	Setup     string   `toml:"setup"`
	Custom    []string `toml:"custom"`
	Partition string   `toml:"partition"`
}

type rawGroup struct {
	Include        []rawIncludeEntry `toml:"include"`
	SortBy         []string          `toml:"sort_by"`
	ReverseSort    bool              `toml:"reverse_sort"`
	SplitBySortKey bool              `toml:"split_by_sort_key"`
	MaximumSize    int               `toml:"maximum_size"`
	SubmitWhole    bool              `toml:"submit_whole"`
}

type rawIncludeEntry struct {
	Condition []any `toml:"condition"`
	// All's elements are each either a bare [pointer, op, operand]
	// condition array or a {any = [...]} table; decoded generically and
	// disambiguated in convertGroup since go-toml has no tagged-union
	// decode for a mixed array.
	All []any   `toml:"all"`
	Any [][]any `toml:"any"`
}

// LoadWorkflow reads, schema-validates, decodes, and normalizes
// workflow.toml at path. The returned Workflow has inheritance resolved
// and same-named action variants validated for mutual consistency.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return LoadWorkflowBytes(data, path)
}

// LoadWorkflowBytes parses workflow TOML content already in memory. path is
// used only for error messages.
func LoadWorkflowBytes(data []byte, path string) (*Workflow, error) {
	generic := map[string]any{}
	if err := toml.Unmarshal(data, &generic); err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}

	jsonData, err := json.Marshal(generic)
	if err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}

	if err := validateWorkflowSchema(jsonData); err != nil {
		return nil, &SchemaError{Path: path, Err: err}
	}

	var raw rawWorkflow
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}

	wf, err := normalize(&raw)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

var (
	workflowValidatorOnce sync.Once
	workflowValidator     *jsonschema.Schema
	workflowValidatorErr  error
)

func validateWorkflowSchema(jsonData []byte) error {
	v, err := getWorkflowValidator()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(jsonData, &instance); err != nil {
		return err
	}
	return v.Validate(instance)
}

func getWorkflowValidator() (*jsonschema.Schema, error) {
	workflowValidatorOnce.Do(func() {
		const url = "row/workflow.schema.json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, bytes.NewReader(schemasassets.WorkflowSchema)); err != nil {
			workflowValidatorErr = fmt.Errorf("load embedded workflow schema: %w", err)
			return
		}
		workflowValidator, workflowValidatorErr = compiler.Compile(url)
	})
	return workflowValidator, workflowValidatorErr
}
