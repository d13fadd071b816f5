package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sysdiag-mcp/sysdiag/internal/config"
	"github.com/sysdiag-mcp/sysdiag/internal/observability"
	"github.com/sysdiag-mcp/sysdiag/internal/policy"
	"github.com/sysdiag-mcp/sysdiag/internal/redact"
	"github.com/sysdiag-mcp/sysdiag/internal/sandbox"
	"github.com/sysdiag-mcp/sysdiag/internal/tools"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnostic tools over MCP stdio.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "sysdiag.yaml", "Path to the configuration file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// stdout carries the MCP transport; all logging goes to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	store := policy.NewStore(cfg.StoreConfig())

	var metrics *observability.MetricsCollector
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetricsCollector()
		startMetricsListener(cfg, metrics, logger)
	}

	srv := server.NewMCPServer("sysdiag", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	tools.RegisterAll(srv, tools.Deps{
		Store:    store,
		Resolver: sandbox.NewResolver(store.AllowedRoots(), logger),
		Executor: sandbox.NewExecutor(store, logger),
		Masker:   redact.NewMasker(store.SecretPatterns()),
		Metrics:  metrics,
		Logger:   logger,
	})

	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.Any("commands", store.CommandNames()),
		slog.Any("log_roots", store.AllowedRoots()),
		slog.Bool("metrics", cfg.Metrics.Enabled),
	)

	if err := server.ServeStdio(srv); err != nil {
		return fmt.Errorf("serving MCP: %w", err)
	}
	return nil
}

// startMetricsListener serves Prometheus exposition on its own listener.
// Failure to bind is logged, not fatal: diagnostics matter more than
// their metrics.
func startMetricsListener(cfg *config.Config, m *observability.MetricsCollector, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, m.Handler())
	httpSrv := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listener started",
			slog.String("listen", cfg.Metrics.Listen),
			slog.String("path", cfg.Metrics.Path),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", slog.String("error", err.Error()))
		}
	}()
}
