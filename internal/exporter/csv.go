package exporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"loanetl/pkg/contracts/domain"
)

// CSVWriter writes CSV files under a fixed output directory.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates a new CSV writer rooted at dir.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options.
func (w *CSVWriter) WriteCSV(name string, options WriteOptions) error {
	fullPath := filepath.Join(w.dir, name)

	slog.Info("Writing CSV file",
		slog.String("file_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return writer.Error()
}

// WriteSimple writes a CSV file with a fixed header and pre-rendered rows,
// prefixed with a UTF-8 BOM so spreadsheet tools pick up the encoding.
func (w *CSVWriter) WriteSimple(name string, headers []string, rows []Row) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = formatValue(r[h])
		}
		records = append(records, record)
	}
	return w.WriteCSV(name, WriteOptions{Headers: headers, Records: records, BOMPrefix: true})
}

// WriteTable writes one table as <name>.csv with its column set derived from
// the sorted union of row keys.
func (w *CSVWriter) WriteTable(t *Table) (domain.ManifestEntry, error) {
	cols := t.Columns()
	records := make([][]string, 0, t.Len())
	for _, r := range t.rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = formatValue(r[c])
		}
		records = append(records, record)
	}

	name := t.Name + ".csv"
	if err := w.WriteCSV(name, WriteOptions{Headers: cols, Records: records}); err != nil {
		return domain.ManifestEntry{}, fmt.Errorf("failed to write table %s: %w", t.Name, err)
	}
	return domain.ManifestEntry{Table: t.Name, Rows: t.Len(), Path: name}, nil
}

// FlushTableSet writes every non-empty table in name order and records the
// result in manifest.json alongside the tables.
func (w *CSVWriter) FlushTableSet(set *TableSet) ([]domain.ManifestEntry, error) {
	names := set.Names()
	sort.Strings(names)

	entries := make([]domain.ManifestEntry, 0, len(names))
	for _, name := range names {
		if set.Table(name).Len() == 0 {
			continue
		}
		entry, err := w.WriteTable(set.Table(name))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(w.dir, "manifest.json")
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	slog.Info("Flushed table set",
		slog.Int("table_count", len(entries)),
		slog.String("manifest", manifestPath))
	return entries, nil
}
