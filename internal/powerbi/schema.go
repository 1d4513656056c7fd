package powerbi

import "github.com/analyticsops/pbi-push-pipeline/internal/tabular"

// Power BI push dataset column data types.
const (
	DataTypeString   = "String"
	DataTypeInt64    = "Int64"
	DataTypeDouble   = "Double"
	DataTypeBoolean  = "Boolean"
	DataTypeDateTime = "DateTime"
)

// ColumnSchema describes one column of a push dataset table.
type ColumnSchema struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

// TableSchema describes one push dataset table.
type TableSchema struct {
	Name    string         `json:"name"`
	Columns []ColumnSchema `json:"columns"`
}

// SchemaFor derives the push dataset schema for a table. The mapping is pure
// and total: every column gets exactly one data type, column order is
// preserved, and unrecognized types map to String.
func SchemaFor(t *tabular.Table) TableSchema {
	columns := make([]ColumnSchema, len(t.Columns))
	for i, col := range t.Columns {
		columns[i] = ColumnSchema{Name: col.Name, DataType: dataTypeFor(col.Type)}
	}
	return TableSchema{Name: t.Name, Columns: columns}
}

func dataTypeFor(t tabular.ColumnType) string {
	switch t {
	case tabular.TypeInt64:
		return DataTypeInt64
	case tabular.TypeDouble:
		return DataTypeDouble
	case tabular.TypeBool:
		return DataTypeBoolean
	case tabular.TypeDateTime:
		return DataTypeDateTime
	default:
		return DataTypeString
	}
}
