package exporter

import "sort"

// Row is a single record keyed by column name. A nil value or a missing key
// both render as an empty cell.
type Row map[string]any

// Table is a named, ordered collection of rows.
type Table struct {
	Name string
	rows []Row
}

// Append adds a row to the table.
func (t *Table) Append(r Row) {
	t.rows = append(t.rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns the sorted union of keys across all rows.
func (t *Table) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range t.rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// TableSet holds tables in creation order so that output files are written
// deterministically.
type TableSet struct {
	order  []string
	tables map[string]*Table
}

// NewTableSet creates an empty table set.
func NewTableSet() *TableSet {
	return &TableSet{tables: make(map[string]*Table)}
}

// Table returns the named table, creating it on first use.
func (s *TableSet) Table(name string) *Table {
	if t, ok := s.tables[name]; ok {
		return t
	}
	t := &Table{Name: name}
	s.tables[name] = t
	s.order = append(s.order, name)
	return t
}

// Names returns the table names in creation order.
func (s *TableSet) Names() []string {
	return append([]string(nil), s.order...)
}
