package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/epgnow/internal/config"
	"github.com/jmylchreest/epgnow/internal/database"
	"github.com/jmylchreest/epgnow/internal/epg"
	"github.com/jmylchreest/epgnow/internal/ingestor"
	"github.com/jmylchreest/epgnow/internal/observability"
	"github.com/jmylchreest/epgnow/internal/scheduler"
	"github.com/jmylchreest/epgnow/internal/store"
	"github.com/jmylchreest/epgnow/internal/urlutil"
	"github.com/jmylchreest/epgnow/pkg/httpclient"
)

// app is the wired set of components shared by the commands.
type app struct {
	db        *database.DB
	store     *store.PersistentStore
	client    *httpclient.Client
	scheduler *scheduler.Scheduler
	manager   *epg.Manager
}

// newApp opens the database and wires the guide manager. A database that
// cannot be opened or migrated is logged and the manager runs in memory only.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) *app {
	a := &app{}

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		logger.Warn("database unavailable, guide will be kept in memory only", slog.String("error", err.Error()))
	} else {
		a.db = db
		a.store = store.NewPersistentStore(db.DB).
			WithLogger(observability.WithComponent(logger, "store")).
			WithBatchSize(cfg.Ingestion.BatchSize)
		if err := a.store.Initialize(ctx); err != nil {
			logger.Warn("database schema setup failed, guide will be kept in memory only", slog.String("error", err.Error()))
		}
	}

	a.client = httpclient.New(clientConfig(cfg.Ingestion, observability.WithComponent(logger, "httpclient")))

	a.scheduler = scheduler.NewScheduler().
		WithLogger(observability.WithComponent(logger, "scheduler"))

	pool := ingestor.NewPool().
		WithWorkers(cfg.Ingestion.Workers).
		WithStrict(cfg.Ingestion.StrictJoin).
		WithLogger(observability.WithComponent(logger, "pool"))

	a.manager = epg.New(urlutil.NewResourceFetcher(a.client), a.store).
		WithLogger(observability.WithComponent(logger, "epg")).
		WithPool(pool).
		WithScheduler(a.scheduler).
		WithDisplayOffset(cfg.EPG.DisplayOffset).
		WithUpdateCron(cfg.EPG.UpdateCron).
		WithStaleAfter(cfg.EPG.StaleAfter).
		WithUpcomingLimit(cfg.EPG.UpcomingLimit)

	return a
}

func clientConfig(cfg config.IngestionConfig, logger *slog.Logger) httpclient.Config {
	c := httpclient.DefaultConfig()
	c.Timeout = cfg.FetchTimeout
	c.RetryAttempts = cfg.RetryAttempts
	c.RetryDelay = cfg.RetryDelay
	c.CircuitThreshold = cfg.CircuitThreshold
	c.CircuitTimeout = cfg.CircuitTimeout
	c.MaxResponseSize = int64(cfg.MaxDocumentSize.Bytes())
	c.Logger = logger
	return c
}

// Close stops the scheduler, the manager and the database, in that order.
func (a *app) Close() error {
	a.scheduler.Stop()
	if err := a.manager.Close(); err != nil {
		return err
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}
	return nil
}
