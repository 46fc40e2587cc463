package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/calsync/internal/adapter/driven/browser"
	httphandler "github.com/ericfisherdev/calsync/internal/adapter/driving/http"
	"github.com/ericfisherdev/calsync/internal/application"
	"github.com/ericfisherdev/calsync/internal/config"
	"github.com/ericfisherdev/calsync/internal/instrumentation"
)

func newServeCmd(version string) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop, the auto-join scheduler and the HTTP API",
		Long: `Start calsync in the foreground. All connected accounts are synced
immediately and then every CALSYNC_SYNC_INTERVAL. Accepted meetings of
accounts with auto-join enabled are opened in the browser when they start.

The JSON API listens on CALSYNC_LISTEN_ADDR (or --listen). When
CALSYNC_METRICS_ENABLED is true, Prometheus metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			return serve(cmd.Context(), cfg, version)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides CALSYNC_LISTEN_ADDR)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, version string) error {
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"sync_interval", cfg.SyncInterval,
		"timezone", cfg.Location.String(),
		"metrics_enabled", cfg.MetricsEnabled,
	)

	// 1. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Metrics provider (no-op when disabled).
	metricsProvider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceVersion: version,
		Enabled:        cfg.MetricsEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down metrics", "error", err)
		}
	}()
	metrics := metricsProvider.Metrics()

	// 3. Database, adapters and sync service.
	a, err := newApp(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	// 4. Start the sync loop and the auto-join scheduler.
	go a.sync.Start(ctx)

	scheduler := application.NewAutoJoinScheduler(a.sync, browser.Opener{}, application.AutoJoinConfig{
		Interval:  cfg.AutoJoinInterval,
		Window:    cfg.AutoJoinWindow,
		Lookahead: cfg.AutoJoinLookahead,
		Metrics:   metrics,
	})
	go scheduler.Start(ctx)

	// 5. HTTP API.
	handler := httphandler.NewServeMux(
		httphandler.NewHandler(a.sync, slog.Default()),
		slog.Default(),
		httphandler.Options{
			Metrics:        metrics,
			MetricsHandler: metricsProvider.Handler(),
		},
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// POST /accounts holds the request open for the whole consent flow.
		WriteTimeout: browser.DefaultConsentTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("calsync started",
		"version", version,
		"accounts", len(a.sync.Accounts()),
		"listen_addr", cfg.ListenAddr,
	)

	// 6. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	// 7. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
