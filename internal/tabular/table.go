// Package tabular loads local data files into in-memory typed tables.
package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the coarse scalar type inferred for a column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt64
	TypeDouble
	TypeBool
	TypeDateTime
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	case TypeDateTime:
		return "datetime"
	default:
		return "string"
	}
}

// Column is one named, typed column of a Table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is an in-memory table loaded from one input file. Column order follows
// the source header; rows map column name to a typed scalar (nil for empty cells).
//
// Tables are not mutated after load.
type Table struct {
	Name    string
	Columns []Column
	Rows    []map[string]any
}

// dateTimeLayouts are tried in order when classifying cell text as a datetime.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// classifyCell returns the narrowest type for one non-empty cell.
// Precedence: integer, floating-point, boolean, datetime, string.
func classifyCell(s string) ColumnType {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TypeInt64
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return TypeDouble
	}
	if _, err := strconv.ParseBool(s); err == nil {
		return TypeBool
	}
	if _, ok := parseDateTime(s); ok {
		return TypeDateTime
	}
	return TypeString
}

// unify widens the running column type with one more cell type. Int64 and
// Double unify to Double; any other disagreement falls back to String.
func unify(have, next ColumnType, first bool) ColumnType {
	if first || have == next {
		return next
	}
	if (have == TypeInt64 && next == TypeDouble) || (have == TypeDouble && next == TypeInt64) {
		return TypeDouble
	}
	return TypeString
}

// convertCell converts cell text to the column's Go representation.
// Empty cells become nil regardless of type.
func convertCell(s string, t ColumnType) any {
	if s == "" {
		return nil
	}
	switch t {
	case TypeInt64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return s
		}
		return v
	case TypeDouble:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return s
		}
		return v
	case TypeBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return s
		}
		return v
	case TypeDateTime:
		v, ok := parseDateTime(s)
		if !ok {
			return s
		}
		return v
	default:
		return s
	}
}

// fromRecords builds a typed Table from a header row and raw text records.
// Records shorter than the header are padded with empty cells; longer records
// are truncated to the header width.
func fromRecords(name string, header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("table %q: empty header row", name)
	}

	columns := make([]Column, len(header))
	for i, h := range header {
		colName := strings.TrimSpace(h)
		if colName == "" {
			return nil, fmt.Errorf("table %q: column %d has an empty name", name, i+1)
		}
		columns[i] = Column{Name: colName, Type: TypeString}
	}

	// Infer each column type by scanning its non-empty cells. Empty cells do
	// not vote; an all-empty column stays String.
	for i := range columns {
		first := true
		colType := TypeString
		for _, rec := range records {
			if i >= len(rec) {
				continue
			}
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				continue
			}
			colType = unify(colType, classifyCell(cell), first)
			first = false
			if !first && colType == TypeString {
				break
			}
		}
		if !first {
			columns[i].Type = colType
		}
	}

	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			cell := ""
			if i < len(rec) {
				cell = strings.TrimSpace(rec[i])
			}
			row[col.Name] = convertCell(cell, col.Type)
		}
		rows = append(rows, row)
	}

	return &Table{Name: name, Columns: columns, Rows: rows}, nil
}
