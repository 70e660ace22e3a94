package pagestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "05bd4bb2a91c4ea3b08a3e0716a3d900",
		NormalizeID("05bd4bb2-a91c-4ea3-b08a-3e0716a3d900"))
	assert.Equal(t, "already", NormalizeID("already"))
}

func TestParseRecordsColumnsAndRows(t *testing.T) {
	res := ParseRecords([]Record{
		{
			ID: "aaa-111",
			Properties: []Property{
				{Name: "Name", Type: "title", Value: "Order A"},
				{Name: "Qty", Type: "number", Value: 3.0},
			},
		},
		{
			ID: "bbb-222",
			Properties: []Property{
				{Name: "Name", Type: "title", Value: "Order B"},
				{Name: "Qty", Type: "number", Value: 7.0},
			},
		},
	})

	assert.Equal(t, []string{"primary_key_id", "Name", "Qty"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []any{"aaa111", "Order A", 3.0}, res.Rows[0])
	assert.Equal(t, []any{"bbb222", "Order B", 7.0}, res.Rows[1])
	assert.Empty(t, res.Relations)
}

func TestParseRecordsSkipsRollups(t *testing.T) {
	res := ParseRecords([]Record{{
		ID: "aaa",
		Properties: []Property{
			{Name: "Total", Type: "rollup", Value: "42"},
			{Name: "Name", Type: "title", Value: "x"},
		},
	}})

	assert.Equal(t, []string{"primary_key_id", "Name"}, res.Columns)
	assert.Equal(t, []any{"aaa", "x"}, res.Rows[0])
}

func TestParseRecordsRelationEdges(t *testing.T) {
	res := ParseRecords([]Record{{
		ID: "aaa",
		Properties: []Property{
			{Name: "Products", Type: "relation", Relation: []string{"p-1", "p-2"}},
		},
	}})

	assert.Equal(t, []string{"primary_key_id"}, res.Columns)
	require.Len(t, res.Relations["Products"], 2)
	assert.Equal(t, RelationEdge{RecordID: "aaa", RelatedID: "p1"}, res.Relations["Products"][0])
	assert.Equal(t, RelationEdge{RecordID: "aaa", RelatedID: "p2"}, res.Relations["Products"][1])
	assert.False(t, res.Relations["Products"][0].IsPurge())
}

func TestParseRecordsEmptyRelationBecomesPurge(t *testing.T) {
	// Cleared and never-set relations both purge; downstream callers do not
	// distinguish the two.
	for _, related := range [][]string{nil, {}, {""}} {
		res := ParseRecords([]Record{{
			ID: "aaa",
			Properties: []Property{
				{Name: "Products", Type: "relation", Relation: related},
			},
		}})
		require.Len(t, res.Relations["Products"], 1)
		assert.True(t, res.Relations["Products"][0].IsPurge())
		assert.Equal(t, "aaa", res.Relations["Products"][0].RecordID)
	}
}

func TestParseRecordsTruncatesInlineText(t *testing.T) {
	long := strings.Repeat("x", 300)
	res := ParseRecords([]Record{{
		ID: "aaa",
		Properties: []Property{
			{Name: "Name", Type: "title", Value: long},
			{Name: "Notes", Type: "rich_text", Value: long},
		},
	}})

	assert.Len(t, res.Rows[0][1], 255)
	// rich_text is unbounded and passes through.
	assert.Len(t, res.Rows[0][2], 300)
}

func TestParseRecordsEmptyBatch(t *testing.T) {
	res := ParseRecords(nil)
	assert.Empty(t, res.Columns)
	assert.Empty(t, res.Rows)
}
