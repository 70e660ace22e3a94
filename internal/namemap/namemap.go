// Package namemap resolves external database ids to SQL table names. The
// mapping is persisted in meta.table_namemap so resolutions survive restarts,
// with a read-through in-process cache in front. Misses fall back to the page
// store's database title and are written back immediately.
package namemap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"

	"pagesync/internal/pagestore"
	"pagesync/internal/schema"
	"pagesync/internal/store"
)

// Table holding the persistent map. Lives in the meta schema.
const (
	Table      = "table_namemap"
	IDColumn   = "db_id"
	NameColumn = "table_name"
)

// Spec describes the namemap table so callers can ensure it exists before
// resolving through it.
func Spec(metaSchema string) schema.TableSpec {
	return schema.TableSpec{
		Schema: metaSchema,
		Name:   Table,
		Columns: []schema.ColumnSpec{
			{Name: IDColumn, Type: "VARCHAR(255)", PrimaryKey: true},
			{Name: NameColumn, Type: "VARCHAR(255)"},
		},
	}
}

// Resolver maps external database ids to table names.
type Resolver struct {
	meta  *store.Store
	pages pagestore.Client
	log   *slog.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a resolver. meta must be a store bound to the schema holding
// the namemap table.
func New(meta *store.Store, pages pagestore.Client, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		meta:  meta,
		pages: pages,
		log:   log,
		cache: make(map[string]string),
	}
}

// TableName resolves a database id to its table name. Resolution order:
// process cache, persistent map, page store. A page-store hit is written back
// to the persistent map before returning so the next process skips the
// external call.
func (r *Resolver) TableName(ctx context.Context, databaseID string) (string, error) {
	id := pagestore.NormalizeID(databaseID)

	r.mu.RLock()
	name, hit := r.cache[id]
	r.mu.RUnlock()
	if hit {
		return name, nil
	}

	rec, err := r.meta.GetRecord(ctx, Table, IDColumn, id)
	if err != nil {
		return "", fmt.Errorf("namemap lookup %s: %w", id, err)
	}
	if rec != nil {
		if name, _ := rec[NameColumn].(string); name != "" {
			r.put(id, name)
			return name, nil
		}
	}

	db, err := r.pages.GetDatabase(ctx, id)
	if err != nil {
		return "", fmt.Errorf("namemap fetch database %s: %w", id, err)
	}
	if db == nil || db.Title == "" {
		return "", fmt.Errorf("namemap: database %s has no resolvable title", id)
	}

	if _, err := r.meta.Upsert(ctx, Table,
		[]string{IDColumn, NameColumn},
		[]any{id, db.Title},
		[]string{IDColumn},
		store.StrategyOverwrite); err != nil {
		// The name is still usable this run; only the write-back failed.
		r.log.Warn("namemap write-back failed",
			slog.String("db_id", id), slog.Any("error", err))
	}

	r.put(id, db.Title)
	return db.Title, nil
}

func (r *Resolver) put(id, name string) {
	r.mu.Lock()
	r.cache[id] = name
	r.mu.Unlock()
}

// FindTable picks the table from candidates that best matches key. Match
// stages, cheapest first: exact, normalized, singular/plural fold, substring,
// token overlap. Returns "" when nothing matches.
func FindTable(key string, candidates []string) string {
	for _, c := range candidates {
		if c == key {
			return c
		}
	}

	nk := normalize(key)
	for _, c := range candidates {
		if nk == normalize(c) {
			return c
		}
	}

	for _, c := range candidates {
		nc := normalize(c)
		if inflection.Singular(nk) == inflection.Singular(nc) ||
			inflection.Plural(nk) == inflection.Plural(nc) {
			return c
		}
	}

	for _, c := range candidates {
		nc := normalize(c)
		if strings.Contains(nc, nk) || strings.Contains(nk, nc) {
			return c
		}
	}

	keyTokens := tokens(key)
	for _, c := range candidates {
		for tok := range tokens(c) {
			if keyTokens[tok] {
				return c
			}
		}
	}
	return ""
}

func normalize(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "")
	return strings.ReplaceAll(name, "_", "")
}

func tokens(name string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		out[tok] = true
	}
	return out
}
