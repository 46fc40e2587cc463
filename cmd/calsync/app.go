package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/calsync/internal/adapter/driven/browser"
	"github.com/ericfisherdev/calsync/internal/adapter/driven/googleauth"
	"github.com/ericfisherdev/calsync/internal/adapter/driven/googlecal"
	sqliteadapter "github.com/ericfisherdev/calsync/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/calsync/internal/application"
	"github.com/ericfisherdev/calsync/internal/config"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// app holds the wired core shared by every subcommand.
type app struct {
	db   *sqliteadapter.DB
	sync *application.SyncService
}

// newApp opens the database, runs migrations and wires the sync service.
// metrics may be nil. The caller must Close the returned app.
func newApp(ctx context.Context, cfg *config.Config, metrics driven.MetricsRecorder) (*app, error) {
	// Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", db.Path())

	// Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	slog.Info("migrations complete", "schema_version", version)

	// Wire driven adapters.
	vault := application.NewCredentialVault(sqliteadapter.NewCredentialRepo(db, cfg.SecretKey))
	settings := sqliteadapter.NewSettingsRepo(db)

	prompt, err := browser.NewLoopbackPrompt(cfg.OAuthRedirectURL, browser.Opener{})
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("CALSYNC_OAUTH_REDIRECT_URL: %w", err)
	}

	auth := googleauth.New(googleauth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
	}, prompt)
	if !cfg.HasGoogleCredentials() {
		slog.Info("no google client configured, sign-in and token refresh are disabled")
	}

	provider := googlecal.New(
		googlecal.WithLocation(cfg.Location),
		googlecal.WithOrganizerAccepts(cfg.OrganizerAccepts),
	)

	svc := application.NewSyncService(auth, provider, vault, settings, application.SyncConfig{
		Interval:         cfg.SyncInterval,
		Location:         cfg.Location,
		MinEventDuration: cfg.MinEventDuration,
		Metrics:          metrics,
	})
	if err := svc.Load(ctx); err != nil {
		closeDB(db)
		return nil, err
	}

	return &app{db: db, sync: svc}, nil
}

// Close releases the database.
func (a *app) Close() {
	closeDB(a.db)
}

func closeDB(db *sqliteadapter.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
