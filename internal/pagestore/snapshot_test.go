package pagestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "databases": [
    {
      "id": "aaaa-bbbb",
      "title": "orders",
      "properties": {
        "Name": {"type": "title"},
        "Products": {"type": "relation", "relation_database_id": "cccc-dddd"}
      }
    }
  ],
  "records": [
    {
      "id": "1111-2222",
      "parent": "aaaa-bbbb",
      "properties": [
        {"name": "Name", "type": "title", "value": "Order A"},
        {"name": "Products", "type": "relation", "relation": ["3333-4444"]}
      ]
    }
  ]
}`

func TestLoadSnapshot(t *testing.T) {
	snap, err := LoadSnapshot(strings.NewReader(samplePayload))
	require.NoError(t, err)

	db, err := snap.GetDatabase(context.Background(), "aaaabbbb")
	require.NoError(t, err)
	assert.Equal(t, "orders", db.Title)
	assert.Equal(t, "cccc-dddd", db.Properties["Products"].RelationDatabaseID)

	// Hyphenated lookup resolves the same record.
	rec, err := snap.GetRecord(context.Background(), "1111-2222")
	require.NoError(t, err)
	assert.Equal(t, "aaaa-bbbb", rec.Parent)
	require.Len(t, rec.Properties, 2)
	assert.Equal(t, []string{"3333-4444"}, rec.Properties[1].Relation)

	require.Len(t, snap.Records(), 1)
}

func TestLoadSnapshotRejectsUnknownFields(t *testing.T) {
	_, err := LoadSnapshot(strings.NewReader(`{"pages": []}`))
	assert.Error(t, err)
}

func TestSnapshotMisses(t *testing.T) {
	snap := NewSnapshot(Payload{})

	_, err := snap.GetRecord(context.Background(), "nope")
	assert.Error(t, err)
	_, err = snap.GetDatabase(context.Background(), "nope")
	assert.Error(t, err)
}
