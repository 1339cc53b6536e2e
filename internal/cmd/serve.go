package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rowhpc/row/internal/rowlog"
	"github.com/rowhpc/row/internal/server"
)

// version is overridden at build time via -ldflags "-X ...cmd.version=...".
var version = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only status API over HTTP",
	Long: `serve exposes /healthz, /status, and /version for the project rooted at
--dir, so an external monitor can poll status without shelling into the
project directory. Each /status request runs a full refresh.`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind host (default from ROW_SERVER_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "bind port (default from ROW_SERVER_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	proj, err := openProject()
	if err != nil {
		return exitError(ExitError, err)
	}

	host := opts.ServerHost
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	port := opts.ServerPort
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	srv := server.New(host, port, proj, version)
	rowlog.Logger.Info("serving", zap.String("host", host), zap.Int("port", srv.Port()))
	fmt.Fprintf(cmd.OutOrStdout(), "serving on %s:%d\n", host, srv.Port())

	if err := srv.ListenAndServe(ctx); err != nil {
		return exitError(ExitError, err)
	}
	return nil
}
