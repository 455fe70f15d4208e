package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the example applications",
	Long: `Start the HTTP server.

The server will:
  - Load configuration from --config, or use the defaults
  - Open the model resource store (memory or sqlite)
  - Register the example applications
  - Serve services, describe pages, the directory and the OpenAPI document

Examples:
  sharrock serve
  sharrock serve --config /etc/sharrock/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.Logging.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close store", "err", err)
		}
	}()

	r, err := newRouter(cfg, users, logger)
	if err != nil {
		return err
	}

	logger.Info("starting server",
		"addr", cfg.Server.Addr,
		"dir", "http://"+cfg.Server.Addr+"/dir/",
		"store", cfg.Store.Driver)

	if err := r.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
