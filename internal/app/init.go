package app

import (
	"context"
	"fmt"
	"log/slog"

	"pagesync/internal/conn"
	"pagesync/internal/dbexec"
	"pagesync/internal/ingest"
	"pagesync/internal/namemap"
	"pagesync/internal/schema"
	"pagesync/internal/store"
)

// Init acquires runtime resources: observability providers, the database
// connection, and the stores the updater writes through. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	a.logger.Info("connecting to PostgreSQL",
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.Port),
		slog.String("database", a.cfg.Database.Database),
	)

	provider := conn.NewProvider(a.cfg.Database.ConnConfig(), a.logger.Logger)
	cleanup.push("database", func(context.Context) error {
		return provider.Close()
	})

	connectCtx := ctx
	if a.cfg.Database.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, a.cfg.Database.ConnectionTimeout)
		defer cancel()
	}
	db, err := provider.DB(connectCtx)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	exec := dbexec.NewStandardExecutor(db)
	syncCfg := a.cfg.Sync

	entities := store.New(exec, syncCfg.EntitySchema, a.logger.Logger)
	joins := store.New(exec, syncCfg.JoinSchema, a.logger.Logger)
	meta := store.New(exec, syncCfg.MetaSchema, a.logger.Logger)
	metrics := store.New(exec, ingest.MetricsSchema, a.logger.Logger)
	ensurer := schema.NewEnsurer(exec, a.logger.Logger)

	// The working schemas and the namemap table must exist before the first
	// record arrives.
	for _, s := range []string{syncCfg.EntitySchema, syncCfg.JoinSchema, syncCfg.MetaSchema} {
		if err := ensurer.EnsureSchema(ctx, s); err != nil {
			return fmt.Errorf("failed to ensure schema %s: %w", s, err)
		}
	}
	if err := ensurer.EnsureTable(ctx, namemap.Spec(syncCfg.MetaSchema)); err != nil {
		return fmt.Errorf("failed to ensure namemap table: %w", err)
	}

	a.stateMu.Lock()
	a.tracerProvider = tracerProvider
	a.provider = provider
	a.entities = entities
	a.joins = joins
	a.meta = meta
	a.metrics = metrics
	a.ensurer = ensurer
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
