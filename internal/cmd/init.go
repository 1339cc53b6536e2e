package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Scaffold a new row project",
	Long: `Scaffold a new row project: a workflow.toml with a starter [workspace]
and [[action]] entry, and an empty workspace directory. init never touches
.row's stores; run it once per project, then edit workflow.toml by hand.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

var (
	initWorkspaceName string
	initSignac        bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initWorkspaceName, "workspace", "workspace", "workspace directory name, relative to <dir>")
	initCmd.Flags().BoolVar(&initSignac, "signac", false, "scaffold for a signac-managed workspace (value_file = signac_statepoint.json)")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return exitError(ExitError, fmt.Errorf("create project directory: %w", err))
	}

	workflowPath := filepath.Join(dir, "workflow.toml")
	if _, err := os.Stat(workflowPath); err == nil {
		return exitError(ExitError, fmt.Errorf("%s already exists", workflowPath))
	}

	workspacePath := filepath.Join(dir, initWorkspaceName)
	if err := os.MkdirAll(workspacePath, 0o755); err != nil {
		return exitError(ExitError, fmt.Errorf("create workspace directory: %w", err))
	}

	valueFile := "value.json"
	if initSignac {
		valueFile = "signac_statepoint.json"
	}

	if err := os.WriteFile(workflowPath, []byte(scaffoldWorkflowTOML(initWorkspaceName, valueFile)), 0o644); err != nil {
		return exitError(ExitError, fmt.Errorf("write workflow.toml: %w", err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "initialized project in %s\n", dir)
	fmt.Fprintf(cmd.OutOrStdout(), "workflow=%s workspace=%s\n", workflowPath, workspacePath)
	return nil
}

func scaffoldWorkflowTOML(workspaceName, valueFile string) string {
	return fmt.Sprintf(`[workspace]
path = %q
value_file = %q

[[action]]
name = "hello"
command = "echo \"Hello, {directory}!\""
`, workspaceName, valueFile)
}
