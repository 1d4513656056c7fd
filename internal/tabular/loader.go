package tabular

import (
	"os"
	"path/filepath"
	"strings"
)

// LoadTables scans dir for tabular files (.csv, .xlsx) and parses each into a
// Table named after the file base name. Files that fail to parse are reported
// via logf and skipped; the scan continues with the remaining files. A missing
// or unreadable directory yields an empty result.
//
// The returned slice holds table names in directory-listing order, which is
// the order later pipeline stages iterate in.
func LoadTables(dir string, logf func(format string, args ...any)) (map[string]*Table, []string) {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	tables := make(map[string]*Table)
	var order []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		logf("cannot list data directory %s: %v", dir, err)
		return tables, order
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		ext := strings.ToLower(filepath.Ext(fileName))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		tableName := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		if _, exists := tables[tableName]; exists {
			logf("skipping %s: table %q already loaded from another file", fileName, tableName)
			continue
		}

		f, err := os.Open(filepath.Join(dir, fileName))
		if err != nil {
			logf("skipping %s: %v", fileName, err)
			continue
		}

		var table *Table
		switch ext {
		case ".csv":
			table, err = ReadCSV(tableName, f)
		case ".xlsx":
			table, err = ReadXLSX(tableName, f)
		}
		_ = f.Close()

		if err != nil {
			logf("skipping %s: %v", fileName, err)
			continue
		}
		tables[tableName] = table
		order = append(order, tableName)
	}

	return tables, order
}
