// Package cmd wires row's cobra command tree: workflow/cluster loading,
// the advisory-locked project, and the scheduler backends, behind the
// init/submit/scan/show/clean/serve commands spec.md §6 names.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rowhpc/row/internal/config"
	"github.com/rowhpc/row/internal/rowlog"
)

var rootCmd = &cobra.Command{
	Use:   "row",
	Short: "Apply actions to directories in an HPC workspace",
	Long: `row tracks the application of user-defined shell-command actions to
directories in a workspace, submitting them to a SLURM cluster or a local
shell, and keeps a crash-safe record of what has completed, what has been
submitted, and what remains eligible.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: rootPersistentPreRun,
}

var (
	projectDir      string
	clusterOverride string
	yesFlag         bool
	logFile         string
	logLevel        string
	ioThreads       int
	noColorFlag     bool
	noProgressFlag  bool
)

// opts is the resolved runtime configuration, set once per invocation by
// rootPersistentPreRun and read by every subcommand.
var opts *config.Options

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&projectDir, "dir", "C", ".", "project directory (containing workflow.toml)")
	flags.StringVar(&clusterOverride, "cluster", "", "force the active cluster by name (ROW_CLUSTER)")
	flags.BoolVar(&yesFlag, "yes", false, "auto-confirm every submission prompt (ROW_YES)")
	flags.StringVar(&logFile, "log-file", "", "route structured logs to this file instead of stderr (ROW_LOG_FILE)")
	flags.StringVar(&logLevel, "log-level", "", "zap log level: debug, info, warn, error (ROW_LOG_LEVEL)")
	flags.IntVar(&ioThreads, "io-threads", 0, "worker pool size for scanning and value refresh (ROW_IO_THREADS)")
	flags.BoolVar(&noColorFlag, "no-color", false, "disable ANSI color in output (ROW_COLOR=false)")
	flags.BoolVar(&noProgressFlag, "no-progress", false, "suppress progress output (ROW_NO_PROGRESS)")
}

func rootPersistentPreRun(cmd *cobra.Command, args []string) error {
	overrides := map[string]any{}
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("cluster") {
		overrides["cluster"] = clusterOverride
	}
	if flags.Changed("yes") {
		overrides["yes"] = yesFlag
	}
	if flags.Changed("log-file") {
		overrides["log_file"] = logFile
	}
	if flags.Changed("log-level") {
		overrides["log_level"] = logLevel
	}
	if flags.Changed("io-threads") {
		overrides["io_threads"] = ioThreads
	}
	if flags.Changed("no-color") {
		overrides["color"] = !noColorFlag
	}
	if flags.Changed("no-progress") {
		overrides["no_progress"] = noProgressFlag
	}

	o, err := config.Load(overrides)
	if err != nil {
		return exitError(ExitError, fmt.Errorf("load configuration: %w", err))
	}
	opts = o

	if err := rowlog.Init(opts.LogLevel, opts.LogFile); err != nil {
		return exitError(ExitError, fmt.Errorf("init logger: %w", err))
	}
	return nil
}

// colorEnabled reports whether output should carry ANSI color: the
// resolved option, further gated on stdout actually being a terminal.
func colorEnabled() bool {
	return opts != nil && opts.Color && isatty.IsTerminal(os.Stdout.Fd())
}

// colorStatus renders a project.Status's string form, tinted if color is
// enabled: green for completed/submitted, yellow for eligible, dim for
// waiting.
func colorStatus(s fmt.Stringer) string {
	text := s.String()
	if !colorEnabled() {
		return text
	}
	switch text {
	case "completed", "submitted":
		return "\x1b[32m" + text + "\x1b[0m"
	case "eligible":
		return "\x1b[33m" + text + "\x1b[0m"
	default:
		return "\x1b[2m" + text + "\x1b[0m"
	}
}

// Execute runs the command tree against args already parsed onto os.Args
// (via cobra's default), returning the process exit code spec.md §6
// defines.
func Execute(ctx context.Context) int {
	rootCmd.SetContext(ctx)
	err := rootCmd.Execute()
	if rowlog.Logger != nil {
		_ = rowlog.Sync()
	}
	return exitCodeOf(err)
}
