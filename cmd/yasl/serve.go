package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/artpar/yasl/adapters/clock"
	"github.com/artpar/yasl/adapters/httpapi"
	"github.com/artpar/yasl/adapters/metrics"
	"github.com/artpar/yasl/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run validation as an HTTP service",
	Long: `Start the YASL HTTP server.

Endpoints:
  POST /v1/validate  - validate a data document against a schema
  POST /v1/schema    - check a schema without data
  GET  /healthz      - liveness probe
  GET  /metrics      - Prometheus metrics

The config file is hot-reloaded on change and on SIGHUP.

Environment variables:
  YASL_SERVE_HOST           - Server host (default: 0.0.0.0)
  YASL_SERVE_PORT           - Server port (default: 8080)
  YASL_LOG_LEVEL            - Log level: debug, info, warn, error
  YASL_UNITS_CONVENTION     - Data unit convention: decimal or binary

Examples:
  yasl serve
  yasl serve --config /etc/yasl/yasl.yaml`,
	RunE: runServe,
}

var serveHotReload bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveHotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	// Hot reload only works with a config file
	var holder *config.Holder
	if _, statErr := os.Stat(cfgFile); statErr == nil && serveHotReload {
		holder, err = config.NewHolder(cfgFile, logger)
		if err != nil {
			return err
		}
		defer holder.Stop()
		cfg = holder.Get()
	}
	reg := newRegistry(cfg)
	promReg := prometheus.NewRegistry()

	handler := httpapi.NewHandler(httpapi.Deps{
		Units:    reg,
		Options:  engineOptions(cfg, reg),
		Metrics:  metrics.NewWithRegistry(promReg),
		Registry: promReg,
		Clock:    clock.Real{},
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Serve.Host, cfg.Serve.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Serve.ReadTimeout,
		WriteTimeout: cfg.Serve.WriteTimeout,
	}

	if holder != nil {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
		holder.OnChange(func(c *config.Config) {
			logger.Info().Strs("reloadable", config.ReloadableFields()).Msg("config reloaded; listen address changes need a restart")
		})
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
