// Package relsync reconciles many-to-many relations between entity tables
// and their join tables. Edges parsed from the external page store are
// accumulated per join table, then flushed: purge signals clear a record's
// rows, a diff pass deletes edges the source no longer has, and the remaining
// desired edges are batch-inserted with ON CONFLICT DO NOTHING. Inserts that
// trip a foreign-key violation self-heal by materializing the missing
// referent from the page store and retrying, at most once per missing key.
package relsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pagesync/internal/namemap"
	"pagesync/internal/pagestore"
	"pagesync/internal/schema"
	"pagesync/internal/sqlerr"
	"pagesync/internal/store"
)

// DefaultBatchSize bounds one multi-row join insert.
const DefaultBatchSize = 100

var tracer = otel.Tracer("pagesync/internal/relsync")

// DeriveJoinSpec names the join table and its columns for a relation between
// two entity tables. The name is a pure function of the sorted table pair, so
// both sides of a relation derive the identical spec. A self-relation gets a
// distinct second column so the composite key stays well-defined.
func DeriveJoinSpec(joinSchema, entitySchema, table1, table2 string) schema.JoinTableSpec {
	a, b := table1, table2
	if b < a {
		a, b = b, a
	}

	col2 := b + "_id"
	if table1 == table2 {
		col2 = b + "_id2"
	}

	return schema.JoinTableSpec{
		Schema:       joinSchema,
		Name:         entitySchema + "_" + a + "_" + b,
		Column1Name:  a + "_id",
		Column1Table: a,
		Column2Name:  col2,
		Column2Table: b,
		EntitySchema: entitySchema,
	}
}

// pending is the accumulated state for one join table between flushes.
type pending struct {
	spec schema.JoinTableSpec
	// recordCol is the join column owned by the entity currently being
	// synchronized; relatedCol is the other side.
	recordCol  string
	relatedCol string
	edges      []pagestore.RelationEdge
}

// Manager accumulates relation edges across records and reconciles join
// tables on Flush. Not safe for concurrent use; one manager per sync run.
type Manager struct {
	entities *store.Store
	joins    *store.Store
	ensurer  *schema.Ensurer
	names    *namemap.Resolver
	pages    pagestore.Client
	log      *slog.Logger

	entitySchema string
	joinSchema   string
	batchSize    int

	tables map[string]*pending
	healed map[string]bool
}

// Config wires a Manager.
type Config struct {
	Entities     *store.Store
	Joins        *store.Store
	Ensurer      *schema.Ensurer
	Names        *namemap.Resolver
	Pages        pagestore.Client
	EntitySchema string
	JoinSchema   string
	BatchSize    int
	Log          *slog.Logger
}

func NewManager(cfg Config) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Manager{
		entities:     cfg.Entities,
		joins:        cfg.Joins,
		ensurer:      cfg.Ensurer,
		names:        cfg.Names,
		pages:        cfg.Pages,
		log:          cfg.Log,
		entitySchema: cfg.EntitySchema,
		joinSchema:   cfg.JoinSchema,
		batchSize:    cfg.BatchSize,
		tables:       make(map[string]*pending),
		healed:       make(map[string]bool),
	}
}

// AddRelations queues the edges of one relation property. currentTable is
// the entity table the edges' RecordIDs belong to; relatedDatabaseID names
// the external database on the other side of the relation.
func (m *Manager) AddRelations(ctx context.Context, currentTable, relatedDatabaseID string, edges []pagestore.RelationEdge) error {
	if len(edges) == 0 {
		return nil
	}

	relatedTable, err := m.names.TableName(ctx, relatedDatabaseID)
	if err != nil {
		return fmt.Errorf("resolve related table: %w", err)
	}

	spec := DeriveJoinSpec(m.joinSchema, m.entitySchema, currentTable, relatedTable)

	p, ok := m.tables[spec.Name]
	if !ok {
		recordCol, relatedCol, err := orient(spec, currentTable)
		if err != nil {
			return err
		}
		p = &pending{spec: spec, recordCol: recordCol, relatedCol: relatedCol}
		m.tables[spec.Name] = p
		m.log.Debug("tracking join table",
			slog.String("table", spec.Name),
			slog.String("record_column", recordCol))
	}

	p.edges = append(p.edges, edges...)
	return nil
}

// orient picks which join column carries the current entity's id.
func orient(spec schema.JoinTableSpec, currentTable string) (recordCol, relatedCol string, err error) {
	switch currentTable {
	case spec.Column1Table:
		return spec.Column1Name, spec.Column2Name, nil
	case spec.Column2Table:
		return spec.Column2Name, spec.Column1Name, nil
	}
	return "", "", fmt.Errorf("table %s is not part of join table %s", currentTable, spec.Name)
}

// Flush reconciles every tracked join table and clears the accumulated
// state. Failures are isolated per join table: a failed table is logged and
// skipped while the others proceed, and the joined error is returned at the
// end. Partial state is never rolled back across tables.
func (m *Manager) Flush(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "relsync.Flush",
		trace.WithAttributes(attribute.Int("join_tables", len(m.tables))))
	defer span.End()

	// Deterministic order keeps logs and tests stable.
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := m.flushTable(ctx, m.tables[name]); err != nil {
			m.log.Error("join table sync failed",
				slog.String("table", name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	m.tables = make(map[string]*pending)
	return errors.Join(errs...)
}

func (m *Manager) flushTable(ctx context.Context, p *pending) error {
	purges, desired := classify(p.edges)

	m.log.Info("syncing join table",
		slog.String("table", p.spec.Name),
		slog.Int("purges", len(purges)),
		slog.Int("records", len(desired)))

	if err := m.ensurer.EnsureJoinTable(ctx, p.spec); err != nil {
		return err
	}

	for _, recordID := range purges {
		if _, err := m.joins.DeleteRecords(ctx, p.spec.Name, map[string]any{p.recordCol: recordID}); err != nil {
			return fmt.Errorf("purge %s: %w", recordID, err)
		}
	}

	if err := m.diff(ctx, p, desired); err != nil {
		return err
	}

	return m.insert(ctx, p, desired)
}

// classify splits edges into purge-signal record ids and the desired
// related-id set per record. Purge ids are deduplicated and sorted.
func classify(edges []pagestore.RelationEdge) (purges []string, desired map[string][]string) {
	desired = make(map[string][]string)
	purgeSet := make(map[string]bool)

	for _, e := range edges {
		if e.IsPurge() {
			purgeSet[e.RecordID] = true
			continue
		}
		if !contains(desired[e.RecordID], e.RelatedID) {
			desired[e.RecordID] = append(desired[e.RecordID], e.RelatedID)
		}
	}

	for id := range purgeSet {
		purges = append(purges, id)
	}
	sort.Strings(purges)
	return purges, desired
}

// diff deletes join rows whose related id the source no longer carries.
// Rows already matching the desired set are left untouched.
func (m *Manager) diff(ctx context.Context, p *pending, desired map[string][]string) error {
	if len(desired) == 0 {
		return nil
	}

	recordIDs := make([]any, 0, len(desired))
	for id := range desired {
		recordIDs = append(recordIDs, id)
	}
	sort.Slice(recordIDs, func(i, j int) bool { return recordIDs[i].(string) < recordIDs[j].(string) })

	existing, err := m.joins.GetRecords(ctx, p.spec.Name, p.recordCol, recordIDs)
	if err != nil {
		// A join table that does not exist yet has nothing to diff against.
		if errors.Is(err, sqlerr.ErrUndefinedTable) {
			return nil
		}
		return fmt.Errorf("fetch existing rows: %w", err)
	}

	for _, row := range existing {
		recordID := asID(row[p.recordCol])
		relatedID := asID(row[p.relatedCol])
		if relatedID == "" || contains(desired[recordID], relatedID) {
			continue
		}
		m.log.Info("removing stale relation",
			slog.String("table", p.spec.Name),
			slog.String("record_id", recordID),
			slog.String("related_id", relatedID))
		if _, err := m.joins.DeleteRecords(ctx, p.spec.Name, map[string]any{
			p.recordCol:  recordID,
			p.relatedCol: relatedID,
		}); err != nil {
			return fmt.Errorf("delete stale relation %s->%s: %w", recordID, relatedID, err)
		}
	}
	return nil
}

// insert writes the desired edges in batches, healing foreign-key violations
// as they surface.
func (m *Manager) insert(ctx context.Context, p *pending, desired map[string][]string) error {
	rows := orientRows(p, desired)
	columns := []string{p.spec.Column1Name, p.spec.Column2Name}

	for start := 0; start < len(rows); start += m.batchSize {
		end := start + m.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		for {
			_, err := m.joins.InsertJoinRows(ctx, p.spec.Name, columns, batch)
			if err == nil {
				break
			}
			if !errors.Is(err, sqlerr.ErrForeignKeyViolation) {
				return err
			}
			if healErr := m.heal(ctx, err); healErr != nil {
				return healErr
			}
		}
	}
	return nil
}

// orientRows lays edges out in column order, sorted for stable statements.
func orientRows(p *pending, desired map[string][]string) [][]any {
	recordFirst := p.recordCol == p.spec.Column1Name

	var rows [][]any
	for recordID, relatedIDs := range desired {
		for _, relatedID := range relatedIDs {
			if recordFirst {
				rows = append(rows, []any{recordID, relatedID})
			} else {
				rows = append(rows, []any{relatedID, recordID})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a[0].(string) != b[0].(string) {
			return a[0].(string) < b[0].(string)
		}
		return a[1].(string) < b[1].(string)
	})
	return rows
}

// heal materializes the entity a foreign-key violation points at. Each
// violating value gets exactly one attempt; seeing it again, or failing to
// fetch it, makes the violation unresolvable.
func (m *Manager) heal(ctx context.Context, cause error) error {
	key := sqlerr.ViolatingKey(cause)
	if key == "" {
		return fmt.Errorf("%w: no key value in %v", sqlerr.ErrUnresolvableForeignKey, cause)
	}
	key = pagestore.NormalizeID(key)

	if m.healed[key] {
		return fmt.Errorf("%w: %s still violating after heal", sqlerr.ErrUnresolvableForeignKey, key)
	}
	m.healed[key] = true

	ctx, span := tracer.Start(ctx, "relsync.heal",
		trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	rec, err := m.pages.GetRecord(ctx, key)
	if err != nil || rec == nil {
		return fmt.Errorf("%w: fetch %s: %v", sqlerr.ErrUnresolvableForeignKey, key, err)
	}

	table, err := m.names.TableName(ctx, rec.Parent)
	if err != nil {
		return fmt.Errorf("%w: resolve table for %s: %v", sqlerr.ErrUnresolvableForeignKey, key, err)
	}

	parsed := pagestore.ParseRecords([]pagestore.Record{*rec})
	if len(parsed.Rows) == 0 {
		return fmt.Errorf("%w: %s parsed to no row", sqlerr.ErrUnresolvableForeignKey, key)
	}

	if _, err := m.entities.Upsert(ctx, table,
		parsed.Columns, parsed.Rows[0],
		[]string{schema.PrimaryKeyColumn}, store.StrategyOverwrite); err != nil {
		return fmt.Errorf("%w: materialize %s in %s: %v", sqlerr.ErrUnresolvableForeignKey, key, table, err)
	}

	m.log.Info("healed missing referent",
		slog.String("key", key), slog.String("table", table))
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func asID(v any) string {
	s, _ := v.(string)
	return strings.ReplaceAll(s, "-", "")
}
