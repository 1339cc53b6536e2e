package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// resetRootFlags restores every persistent and command-specific flag this
// test file touches to its zero value, mirroring gonimbus's
// resetReadOnly helper: cobra does not reset a bound var when a later
// Execute call omits the flag, so tests that share rootCmd must do it
// themselves.
func resetRootFlags(t *testing.T) {
	t.Helper()
	projectDir = "."
	clusterOverride = ""
	yesFlag = false
	logFile = ""
	logLevel = ""
	ioThreads = 0
	noColorFlag = false
	noProgressFlag = false
	submitActions = nil
	submitDryRun = false
	submitLimit = 0
	scanActions = nil
	showStatusActions = nil
	showStatusAll = false
	showStatusCompleted = false
	showStatusSubmitted = false
	showStatusEligible = false
	showStatusWaiting = false
	showStatusNoHeader = false
}

func runRootCmd(t *testing.T, home string, args []string) (string, error) {
	t.Helper()
	resetRootFlags(t)
	t.Setenv("HOME", home)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(context.Background())

	err := rootCmd.Execute()
	rootCmd.SetArgs(nil)
	return out.String(), err
}

func writeClustersToml(t *testing.T, home string) {
	t.Helper()
	dir := filepath.Join(home, ".config", "row")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clusters.toml"), []byte(`
[[cluster]]
name = "local"
scheduler = "shell"
identify = { always = true }
`), 0o644))
}

func TestInitScaffoldsWorkflow(t *testing.T) {
	home := t.TempDir()
	projectRoot := filepath.Join(t.TempDir(), "myproject")

	out, err := runRootCmd(t, home, []string{"init", projectRoot, "--workspace", "work"})
	require.NoError(t, err)
	require.Contains(t, out, "initialized project")

	data, err := os.ReadFile(filepath.Join(projectRoot, "workflow.toml"))
	require.NoError(t, err)
	require.Contains(t, string(data), `path = "work"`)

	info, err := os.Stat(filepath.Join(projectRoot, "work"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestInitRefusesExistingWorkflow(t *testing.T) {
	home := t.TempDir()
	projectRoot := filepath.Join(t.TempDir(), "myproject")

	_, err := runRootCmd(t, home, []string{"init", projectRoot})
	require.NoError(t, err)

	_, err = runRootCmd(t, home, []string{"init", projectRoot})
	require.Error(t, err)
	require.Equal(t, ExitError, exitCodeOf(err))
}

func TestSubmitAndShowStatusAgainstShellScheduler(t *testing.T) {
	home := t.TempDir()
	writeClustersToml(t, home)

	projectRoot := filepath.Join(t.TempDir(), "proj")
	_, err := runRootCmd(t, home, []string{"init", projectRoot})
	require.NoError(t, err)

	workflowPath := filepath.Join(projectRoot, "workflow.toml")
	require.NoError(t, os.WriteFile(workflowPath, []byte(`
[workspace]
path = "workspace"

[[action]]
name = "hello"
command = "touch {workspace_path}/{directory}/hello.out"
products = ["hello.out"]
`), 0o644))

	for _, d := range []string{"dir0", "dir1"} {
		require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, "workspace", d), 0o755))
	}

	out, err := runRootCmd(t, home, []string{"-C", projectRoot, "submit", "--yes"})
	require.NoError(t, err)
	require.Contains(t, out, "submitted 2 directory")

	// The shell scheduler's trap invokes `row scan`, which isn't on PATH
	// inside a test binary, so completion is never recorded; the shell
	// backend's Poll always reports every job id absent (see
	// shell.AbsentJobID's doc comment), so the next refresh prunes the
	// submission and the directories fall back to Eligible.
	out, err = runRootCmd(t, home, []string{"-C", projectRoot, "show", "status", "--no-header"})
	require.NoError(t, err)
	require.Contains(t, out, "hello  0  0  2  0")
}

func TestSubmitInvalidActionPatternIsExitError(t *testing.T) {
	home := t.TempDir()
	writeClustersToml(t, home)

	projectRoot := filepath.Join(t.TempDir(), "proj")
	_, err := runRootCmd(t, home, []string{"init", projectRoot})
	require.NoError(t, err)

	_, err = runRootCmd(t, home, []string{"-C", projectRoot, "submit", "--action", "[", "--yes"})
	require.Error(t, err)
	require.Equal(t, ExitError, exitCodeOf(err))
}

func TestShowClusterListsConfiguredClusters(t *testing.T) {
	home := t.TempDir()
	writeClustersToml(t, home)

	out, err := runRootCmd(t, home, []string{"show", "cluster", "--short"})
	require.NoError(t, err)
	require.Contains(t, out, "local")
}
