// Package config reads row's runtime options: ROW_*-prefixed environment
// variables layered under sensible defaults, with an optional caller-supplied
// overrides map taking highest precedence (runtime > env > default). Unlike
// gonimbus's nested server/logging/metrics/health/debug config tree, row's
// options are a flat handful of scalars read directly off viper — there is no
// struct-decode step because there is no nesting to decode.
package config

import (
	"github.com/spf13/viper"
)

const envPrefix = "ROW"

// Options is the complete set of runtime options a row invocation reads.
type Options struct {
	// IOThreads bounds the worker pool size used by the scanner and value
	// store refresh. ROW_IO_THREADS.
	IOThreads int

	// Color enables ANSI color in CLI output. ROW_COLOR. Defaults to true;
	// internal/cmd additionally checks isatty before honoring it.
	Color bool

	// NoProgress suppresses the progress bar entirely. ROW_NO_PROGRESS.
	NoProgress bool

	// ClearProgress erases the progress bar on completion instead of leaving
	// it on screen. ROW_CLEAR_PROGRESS.
	ClearProgress bool

	// Yes auto-confirms every submit confirmation prompt. ROW_YES.
	Yes bool

	// Cluster overrides automatic active-cluster identification.
	// ROW_CLUSTER.
	Cluster string

	// LogFile, if set, routes structured logs to a rotated file instead of
	// stderr. ROW_LOG_FILE.
	LogFile string

	// LogLevel is the zap level name: debug, info, warn, error. ROW_LOG_LEVEL.
	LogLevel string

	// ServerHost and ServerPort configure `row serve`. ROW_SERVER_HOST,
	// ROW_SERVER_PORT.
	ServerHost string
	ServerPort int
}

// Load reads Options from defaults, then ROW_* environment variables, then
// overrides (highest precedence), in that order.
func Load(overrides map[string]any) (*Options, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("io_threads", 8)
	v.SetDefault("color", true)
	v.SetDefault("no_progress", false)
	v.SetDefault("clear_progress", false)
	v.SetDefault("yes", false)
	v.SetDefault("cluster", "")
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_port", 8080)

	for key, value := range overrides {
		v.Set(key, value)
	}

	return &Options{
		IOThreads:     v.GetInt("io_threads"),
		Color:         v.GetBool("color"),
		NoProgress:    v.GetBool("no_progress"),
		ClearProgress: v.GetBool("clear_progress"),
		Yes:           v.GetBool("yes"),
		Cluster:       v.GetString("cluster"),
		LogFile:       v.GetString("log_file"),
		LogLevel:      v.GetString("log_level"),
		ServerHost:    v.GetString("server_host"),
		ServerPort:    v.GetInt("server_port"),
	}, nil
}
