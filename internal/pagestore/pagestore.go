// Package pagestore models the external page store this library syncs from:
// records with typed properties, grouped into databases. The wire client is
// injected behind a small interface; this package owns the shapes and the
// flattening of records into relational columns, rows, and relation edges.
package pagestore

import (
	"context"
	"strings"
)

// NormalizeID strips hyphens so external ids compare and store uniformly.
func NormalizeID(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

// Property is one typed value on a record. Relation properties carry the
// related record ids in Relation and leave Value nil.
type Property struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Value    any      `json:"value,omitempty"`
	Relation []string `json:"relation,omitempty"`
}

// Record is one page: its normalized id, the database it belongs to, and its
// properties in display order.
type Record struct {
	ID         string     `json:"id"`
	Parent     string     `json:"parent"`
	Properties []Property `json:"properties"`
}

// DatabaseProperty describes one property in a database schema. Relation
// properties name the database on the other side.
type DatabaseProperty struct {
	Type               string `json:"type"`
	RelationDatabaseID string `json:"relation_database_id,omitempty"`
}

// Database describes a page collection: its normalized id, human title, and
// property schema keyed by property name.
type Database struct {
	ID         string                      `json:"id"`
	Title      string                      `json:"title"`
	Properties map[string]DatabaseProperty `json:"properties"`
}

// Client fetches records and database descriptors from the external store.
// Implementations must tolerate being asked for ids in either hyphenated or
// normalized form.
type Client interface {
	GetRecord(ctx context.Context, id string) (*Record, error)
	GetDatabase(ctx context.Context, id string) (*Database, error)
}

// RelationEdge links a record to one related record. An empty RelatedID is a
// purge signal: the record declared "no relation" and all its existing join
// rows must go.
type RelationEdge struct {
	RecordID  string
	RelatedID string
}

// IsPurge reports whether the edge is a purge signal rather than a real link.
func (e RelationEdge) IsPurge() bool {
	return e.RelatedID == ""
}

// ParseResult is the relational flattening of a record batch.
type ParseResult struct {
	// Columns is primary_key_id followed by the scalar property names of the
	// first record.
	Columns []string
	// Rows pairs up with Columns, one row per record.
	Rows [][]any
	// Relations maps relation property name to its accumulated edges.
	Relations map[string][]RelationEdge
}

// maxInlineText caps the property types stored in VARCHAR(255) columns.
const maxInlineText = 255

// ParseRecords flattens a batch of records from one database into insertable
// rows plus relation edges. Rollups are skipped entirely; relation properties
// produce edges instead of column values; a missing or empty relation list
// becomes a single purge edge. Records are assumed to share the first
// record's property shape, which holds for batches read from one database.
func ParseRecords(records []Record) ParseResult {
	res := ParseResult{Relations: make(map[string][]RelationEdge)}

	for _, rec := range records {
		recordID := NormalizeID(rec.ID)
		row := []any{recordID}
		firstRecord := len(res.Columns) == 0
		if firstRecord {
			res.Columns = []string{"primary_key_id"}
		}

		for _, prop := range rec.Properties {
			switch prop.Type {
			case "rollup":
				continue
			case "relation":
				res.Relations[prop.Name] = append(res.Relations[prop.Name], relationEdges(recordID, prop.Relation)...)
				continue
			}

			if firstRecord {
				res.Columns = append(res.Columns, prop.Name)
			}
			row = append(row, scalarValue(prop))
		}

		res.Rows = append(res.Rows, row)
	}
	return res
}

func relationEdges(recordID string, related []string) []RelationEdge {
	if len(related) == 0 {
		return []RelationEdge{{RecordID: recordID}}
	}
	edges := make([]RelationEdge, 0, len(related))
	for _, id := range related {
		id = NormalizeID(id)
		if id == "" {
			continue
		}
		edges = append(edges, RelationEdge{RecordID: recordID, RelatedID: id})
	}
	if len(edges) == 0 {
		return []RelationEdge{{RecordID: recordID}}
	}
	return edges
}

func scalarValue(prop Property) any {
	switch prop.Type {
	case "title", "select", "email", "phone_number":
		if s, ok := prop.Value.(string); ok && len(s) > maxInlineText {
			return s[:maxInlineText]
		}
	}
	return prop.Value
}
