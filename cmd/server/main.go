// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package main is the entry point for the Auditkeep server.
//
// Auditkeep records security audit events (occurrences with key/value
// metadata) into a local DuckDB or SQLite store, or an external MySQL or
// PostgreSQL store, buffers events while the store is unreachable, and
// prunes old events according to a date and/or count retention policy.
//
// # Startup
//
//  1. Configuration: koanf layers of defaults, config.yaml and environment
//  2. Logging: zerolog, bridged to slog for the supervisor
//  3. Stores: local store, optional external and archive stores
//  4. Buffer: BadgerDB or Redis
//  5. Notifications: Watermill GoChannel or NATS
//  6. Audit logger, retention pruner and HTTP API
//  7. Supervisor tree: drain loop, prune loop, HTTP server
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The HTTP server drains
// in-flight requests for server.shutdown_timeout, the buffer and
// notification publisher are closed, and the store connections are released.
//
// # Example
//
//	export DATABASE_DRIVER=sqlite DATABASE_DSN=/data/audit.db
//	export RETENTION_DATE_ENABLED=true RETENTION_MAX_AGE="90 days"
//	./auditkeep
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/auditkeep/internal/api"
	"github.com/tomtom215/auditkeep/internal/audit"
	"github.com/tomtom215/auditkeep/internal/buffer"
	"github.com/tomtom215/auditkeep/internal/config"
	"github.com/tomtom215/auditkeep/internal/database"
	"github.com/tomtom215/auditkeep/internal/logging"
	"github.com/tomtom215/auditkeep/internal/notify"
	"github.com/tomtom215/auditkeep/internal/retention"
	"github.com/tomtom215/auditkeep/internal/settings"
	"github.com/tomtom215/auditkeep/internal/supervisor"
	"github.com/tomtom215/auditkeep/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging.Logging())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info().
		Str("driver", cfg.Database.Driver).
		Bool("external", cfg.External.Enabled).
		Str("buffer", cfg.Buffer.Backend).
		Msg("Starting Auditkeep")

	runtimeSettings, err := settings.NewKoanf(cfg.Settings)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load runtime settings")
	}

	connector := database.NewConnector(cfg.Database,
		database.WithExternal(cfg.External.Store()),
		database.WithArchive(cfg.Archive.Store()),
		database.WithProbe(cfg.Breaker.Probe()),
	)
	defer func() {
		if err := connector.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store connections")
		}
	}()
	logging.Info().
		Str("driver", cfg.Database.Driver).
		Bool("external", connector.HasExternal()).
		Msg("Store connector ready")
	primary := connector.Primary(ctx)
	if err := primary.ConnectErr(); err != nil {
		// Not fatal: events are buffered until the store comes back.
		logging.Warn().Err(err).Str("store", primary.Name()).Msg("Primary store unavailable at startup")
	}

	buf := openBuffer(ctx, cfg.Buffer)
	if buf != nil {
		defer func() {
			if err := buf.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing buffer store")
			}
		}()
	}

	sink, err := notify.Open(cfg.Notify)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open notification publisher")
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing notification publisher")
		}
	}()

	auditLogger := audit.New(audit.Deps{
		Settings: runtimeSettings,
		Sites:    audit.StaticSite(cfg.Site.ID),
		Connect:  func(ctx context.Context) audit.Store { return connector.Primary(ctx) },
		Buffer:   buf,
		Sink:     sink,
	}, cfg.Audit.Logger())

	pruner := retention.New(retention.Deps{
		Settings: runtimeSettings,
		Primary:  func(ctx context.Context) retention.Store { return connector.Primary(ctx) },
		Archive:  func(ctx context.Context) retention.Store { return connector.Archive(ctx) },
		Flag:     retention.NewAdvisoryFlag(runtimeSettings),
	}, retention.Config{})
	job := retention.NewJob(pruner, runtimeSettings, auditLogger, cfg.Retention.Job())

	handler := api.NewHandler(auditLogger, auditLogger, job, connector)
	router := api.NewRouter(handler, api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimit,
		RateLimitWindow:    cfg.Server.RateWindow,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// zerolog bridged to slog for sutureslog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if buf != nil {
		tree.AddStorageService(services.NewDrainService(auditLogger, cfg.Buffer.DrainInterval))
	}
	tree.AddMaintenanceService(services.NewPruneService(job, cfg.Retention.Interval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Auditkeep stopped")
}

// openBuffer opens the configured buffer store. A failure is logged and the
// process runs without a buffer: events that cannot reach the store are then
// rejected with audit.ErrEventLost.
func openBuffer(ctx context.Context, cfg buffer.Config) buffer.Store {
	store, err := buffer.Open(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Str("backend", cfg.Backend).Msg("Failed to open buffer store, buffering disabled")
		return nil
	}
	logging.Info().Str("backend", cfg.Backend).Msg("Buffer store opened")
	return store
}
