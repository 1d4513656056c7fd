package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV parses CSV content into a typed Table. The first record is the
// header; column types are inferred from the remaining records.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("table %q: read header: %w", name, err)
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table %q: read row: %w", name, err)
		}
		records = append(records, rec)
	}

	return fromRecords(name, header, records)
}
