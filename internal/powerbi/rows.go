package powerbi

import (
	"math"
	"time"

	"github.com/analyticsops/pbi-push-pipeline/internal/tabular"
)

// Rows serializes a table's rows for the push rows endpoint:
//
//   - datetime values become ISO-8601 strings (nil stays nil),
//   - every other missing or non-finite value becomes an explicit null
//     (never a NaN sentinel, never an absent key),
//   - all other scalars pass through unchanged.
func Rows(t *tabular.Table) []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for _, col := range t.Columns {
			rec[col.Name] = wireValue(row[col.Name])
		}
		out = append(out, rec)
	}
	return out
}

func wireValue(v any) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case time.Time:
		return tv.Format(time.RFC3339)
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return nil
		}
		return tv
	default:
		return v
	}
}

// chunkRows splits rows into batches of at most size rows, preserving order.
// size <= 0 yields a single batch.
func chunkRows(rows []map[string]any, size int) [][]map[string]any {
	if len(rows) == 0 {
		return nil
	}
	if size <= 0 || len(rows) <= size {
		return [][]map[string]any{rows}
	}
	batches := make([][]map[string]any, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}
