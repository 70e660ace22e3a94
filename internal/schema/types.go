package schema

// PrimaryKeyColumn is the canonical key column every synchronized entity
// table carries. Join tables reference it.
const PrimaryKeyColumn = "primary_key_id"

// PrimaryKeySpec is the column spec for the canonical key.
func PrimaryKeySpec() ColumnSpec {
	return ColumnSpec{Name: PrimaryKeyColumn, Type: "UUID", PrimaryKey: true}
}

// propertyTypes maps external property types to SQL column types.
var propertyTypes = map[string]string{
	"title":            "VARCHAR(255)",
	"rich_text":        "TEXT",
	"number":           "DOUBLE PRECISION",
	"select":           "VARCHAR(255)",
	"status":           "VARCHAR(255)",
	"multi_select":     "TEXT[]",
	"date":             "TIMESTAMP",
	"people":           "TEXT[]",
	"files":            "TEXT[]",
	"checkbox":         "BOOLEAN",
	"url":              "TEXT",
	"email":            "VARCHAR(255)",
	"phone_number":     "VARCHAR(255)",
	"formula":          "TEXT",
	"array":            "TEXT[]",
	"incomplete":       "TEXT",
	"unsupported":      "TEXT",
	"created_time":     "TIMESTAMP",
	"created_by":       "TEXT",
	"last_edited_time": "TIMESTAMP",
	"last_edited_by":   "TEXT",
}

// ColumnType maps an external property type to its SQL column type.
// Unknown types degrade to TEXT. Relation properties land in join tables and
// rollups are never stored, so both return ok=false: neither materializes as
// a column.
func ColumnType(propertyType string) (string, bool) {
	switch propertyType {
	case "relation", "rollup":
		return "", false
	}
	if t, found := propertyTypes[propertyType]; found {
		return t, true
	}
	return "TEXT", true
}
