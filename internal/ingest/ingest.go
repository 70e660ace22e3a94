// Package ingest orchestrates one record's journey from the external page
// store into PostgreSQL: ensure the entity table from the database
// descriptor, upsert the row, hand relation edges to the synchronizer, and
// leave an audit row behind. Schema drift surfaces as an undefined-column or
// undefined-table error on the write; the updater re-ensures the table from
// the descriptor and retries the write exactly once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pagesync/internal/namemap"
	"pagesync/internal/pagestore"
	"pagesync/internal/relsync"
	"pagesync/internal/schema"
	"pagesync/internal/sqlerr"
	"pagesync/internal/store"
)

var tracer = otel.Tracer("pagesync/internal/ingest")

// Audit table location.
const (
	MetricsSchema = "metrics"
	AuditTable    = "sync_history"
)

// Updater drives record synchronization.
type Updater struct {
	entities *store.Store
	joins    *store.Store
	metrics  *store.Store
	ensurer  *schema.Ensurer
	names    *namemap.Resolver
	pages    pagestore.Client
	log      *slog.Logger

	entitySchema string
	joinSchema   string
	batchSize    int

	auditReady bool
}

// Config wires an Updater.
type Config struct {
	Entities     *store.Store
	Joins        *store.Store
	Metrics      *store.Store
	Ensurer      *schema.Ensurer
	Names        *namemap.Resolver
	Pages        pagestore.Client
	EntitySchema string
	JoinSchema   string
	BatchSize    int
	Log          *slog.Logger
}

func NewUpdater(cfg Config) *Updater {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Updater{
		entities:     cfg.Entities,
		joins:        cfg.Joins,
		metrics:      cfg.Metrics,
		ensurer:      cfg.Ensurer,
		names:        cfg.Names,
		pages:        cfg.Pages,
		log:          cfg.Log,
		entitySchema: cfg.EntitySchema,
		joinSchema:   cfg.JoinSchema,
		batchSize:    cfg.BatchSize,
	}
}

// ProcessRecord synchronizes one record and its relations, then writes an
// audit row. The audit write is best-effort; its failure never masks the
// sync outcome.
func (u *Updater) ProcessRecord(ctx context.Context, rec pagestore.Record) error {
	recordID := pagestore.NormalizeID(rec.ID)
	ctx, span := tracer.Start(ctx, "ingest.ProcessRecord",
		trace.WithAttributes(attribute.String("record_id", recordID)))
	defer span.End()

	table, err := u.sync(ctx, rec, recordID)
	u.audit(ctx, table, recordID, err)
	return err
}

func (u *Updater) sync(ctx context.Context, rec pagestore.Record, recordID string) (string, error) {
	descriptor, err := u.pages.GetDatabase(ctx, rec.Parent)
	if err != nil {
		return "", fmt.Errorf("fetch database descriptor: %w", err)
	}

	table, err := u.names.TableName(ctx, rec.Parent)
	if err != nil {
		return "", fmt.Errorf("resolve table name: %w", err)
	}

	spec := tableSpec(u.entitySchema, table, descriptor)
	if err := u.ensurer.EnsureTable(ctx, spec); err != nil {
		return table, err
	}

	parsed := pagestore.ParseRecords([]pagestore.Record{rec})
	if len(parsed.Rows) == 0 {
		return table, fmt.Errorf("record %s parsed to no row", recordID)
	}

	if err := u.upsertRow(ctx, table, spec, parsed); err != nil {
		return table, err
	}

	if err := u.syncRelations(ctx, table, descriptor, parsed.Relations); err != nil {
		return table, err
	}

	u.log.Info("record synchronized",
		slog.String("table", table), slog.String("record_id", recordID))
	return table, nil
}

// upsertRow writes the entity row, re-ensuring the table and retrying once
// when the write reveals schema drift.
func (u *Updater) upsertRow(ctx context.Context, table string, spec schema.TableSpec, parsed pagestore.ParseResult) error {
	_, err := u.entities.Upsert(ctx, table,
		parsed.Columns, parsed.Rows[0],
		[]string{schema.PrimaryKeyColumn}, store.StrategyOverwrite)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sqlerr.ErrUndefinedColumn) && !errors.Is(err, sqlerr.ErrUndefinedTable) {
		return err
	}

	u.log.Warn("write hit schema drift, re-ensuring table",
		slog.String("table", table), slog.Any("error", err))
	if err := u.ensurer.EnsureTable(ctx, spec); err != nil {
		return err
	}

	_, err = u.entities.Upsert(ctx, table,
		parsed.Columns, parsed.Rows[0],
		[]string{schema.PrimaryKeyColumn}, store.StrategyOverwrite)
	return err
}

func (u *Updater) syncRelations(ctx context.Context, table string, descriptor *pagestore.Database, relations map[string][]pagestore.RelationEdge) error {
	if len(relations) == 0 {
		return nil
	}

	mgr := relsync.NewManager(relsync.Config{
		Entities:     u.entities,
		Joins:        u.joins,
		Ensurer:      u.ensurer,
		Names:        u.names,
		Pages:        u.pages,
		EntitySchema: u.entitySchema,
		JoinSchema:   u.joinSchema,
		BatchSize:    u.batchSize,
		Log:          u.log,
	})

	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, prop := range names {
		dbProp, ok := descriptor.Properties[prop]
		if !ok || dbProp.Type != "relation" {
			u.log.Warn("relation property missing from descriptor, skipping",
				slog.String("property", prop))
			continue
		}
		if err := mgr.AddRelations(ctx, table, dbProp.RelationDatabaseID, relations[prop]); err != nil {
			// Sibling properties keep going.
			u.log.Error("relation property failed",
				slog.String("property", prop), slog.Any("error", err))
		}
	}

	return mgr.Flush(ctx)
}

// tableSpec builds the entity table shape from a database descriptor.
// Relation properties live in join tables, not columns.
func tableSpec(entitySchema, table string, descriptor *pagestore.Database) schema.TableSpec {
	spec := schema.TableSpec{
		Schema:  entitySchema,
		Name:    table,
		Columns: []schema.ColumnSpec{schema.PrimaryKeySpec()},
	}

	names := make([]string, 0, len(descriptor.Properties))
	for name := range descriptor.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		colType, ok := schema.ColumnType(descriptor.Properties[name].Type)
		if !ok {
			continue
		}
		spec.Columns = append(spec.Columns, schema.ColumnSpec{Name: name, Type: colType})
	}
	return spec
}

// audit appends the sync outcome to metrics.sync_history.
func (u *Updater) audit(ctx context.Context, table, recordID string, syncErr error) {
	if u.metrics == nil {
		return
	}
	if err := u.ensureAuditTable(ctx); err != nil {
		u.log.Warn("audit table unavailable", slog.Any("error", err))
		return
	}

	status := "success"
	errMsg := any(nil)
	if syncErr != nil {
		status = "error"
		errMsg = syncErr.Error()
	}

	_, err := u.metrics.Upsert(ctx, AuditTable,
		[]string{"id", "schema_name", "table_name", "record_id", "status", "error_msg", "synced_at"},
		[]any{uuid.NewString(), u.entitySchema, table, recordID, status, errMsg, time.Now().UTC()},
		nil, store.StrategyNone)
	if err != nil {
		u.log.Warn("audit write failed", slog.Any("error", err))
	}
}

func (u *Updater) ensureAuditTable(ctx context.Context) error {
	if u.auditReady {
		return nil
	}
	if err := u.ensurer.EnsureSchema(ctx, MetricsSchema); err != nil {
		return err
	}
	err := u.ensurer.EnsureTable(ctx, schema.TableSpec{
		Schema: MetricsSchema,
		Name:   AuditTable,
		Columns: []schema.ColumnSpec{
			{Name: "id", Type: "UUID", PrimaryKey: true},
			{Name: "schema_name", Type: "VARCHAR(255)"},
			{Name: "table_name", Type: "VARCHAR(255)"},
			{Name: "record_id", Type: "VARCHAR(255)"},
			{Name: "status", Type: "VARCHAR(50)"},
			{Name: "error_msg", Type: "TEXT"},
			{Name: "synced_at", Type: "TIMESTAMP"},
		},
	})
	if err != nil {
		return err
	}
	u.auditReady = true
	return nil
}
