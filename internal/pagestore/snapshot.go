package pagestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Payload is the JSON document the command line tool consumes: the database
// descriptors plus the records to synchronize.
type Payload struct {
	Databases []Database `json:"databases"`
	Records   []Record   `json:"records"`
}

// Snapshot is an in-memory Client backed by a decoded Payload. Lookups accept
// ids in hyphenated or normalized form.
type Snapshot struct {
	databases map[string]*Database
	records   map[string]*Record
	order     []Record
}

// LoadSnapshot decodes a Payload from r and indexes it.
func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	var payload Payload
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return NewSnapshot(payload), nil
}

// NewSnapshot indexes an already-decoded payload.
func NewSnapshot(payload Payload) *Snapshot {
	s := &Snapshot{
		databases: make(map[string]*Database, len(payload.Databases)),
		records:   make(map[string]*Record, len(payload.Records)),
		order:     payload.Records,
	}
	for i := range payload.Databases {
		db := payload.Databases[i]
		s.databases[NormalizeID(db.ID)] = &db
	}
	for i := range payload.Records {
		rec := payload.Records[i]
		s.records[NormalizeID(rec.ID)] = &rec
	}
	return s
}

func (s *Snapshot) GetRecord(_ context.Context, id string) (*Record, error) {
	rec, ok := s.records[NormalizeID(id)]
	if !ok {
		return nil, fmt.Errorf("record %q not in snapshot", id)
	}
	return rec, nil
}

func (s *Snapshot) GetDatabase(_ context.Context, id string) (*Database, error) {
	db, ok := s.databases[NormalizeID(id)]
	if !ok {
		return nil, fmt.Errorf("database %q not in snapshot", id)
	}
	return db, nil
}

// Records returns the records in payload order.
func (s *Snapshot) Records() []Record {
	return s.order
}
