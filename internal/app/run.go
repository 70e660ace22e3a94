package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"pagesync/internal/ingest"
	"pagesync/internal/namemap"
	"pagesync/internal/pagestore"
)

// Run decodes one payload and synchronizes every record in it. Record
// failures are isolated: siblings still sync, and the failures come back
// joined. It requires Init to have completed.
func (a *App) Run(ctx context.Context, payload io.Reader) error {
	a.stateMu.Lock()
	initialized := a.initialized
	a.stateMu.Unlock()
	if !initialized {
		return fmt.Errorf("app is not initialized")
	}

	snapshot, err := pagestore.LoadSnapshot(payload)
	if err != nil {
		return err
	}

	updater := ingest.NewUpdater(ingest.Config{
		Entities:     a.entities,
		Joins:        a.joins,
		Metrics:      a.metrics,
		Ensurer:      a.ensurer,
		Names:        namemap.New(a.meta, snapshot, a.logger.Logger),
		Pages:        snapshot,
		EntitySchema: a.cfg.Sync.EntitySchema,
		JoinSchema:   a.cfg.Sync.JoinSchema,
		BatchSize:    a.cfg.Sync.BatchSize,
		Log:          a.logger.Logger,
	})

	records := snapshot.Records()
	a.logger.Info("processing payload", slog.Int("records", len(records)))

	var failures []error
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if err := updater.ProcessRecord(ctx, rec); err != nil {
			a.logger.Error("record failed",
				slog.String("record_id", pagestore.NormalizeID(rec.ID)),
				slog.Any("error", err))
			failures = append(failures, fmt.Errorf("record %s: %w", pagestore.NormalizeID(rec.ID), err))
		}
	}

	a.logger.Info("payload processed",
		slog.Int("records", len(records)),
		slog.Int("failed", len(failures)))
	return errors.Join(failures...)
}
