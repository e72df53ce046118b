package dataprocessing

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"loanetl/internal/exporter"
	"loanetl/pkg/contracts/domain"
)

// StableHash fingerprints an ordered list of values as a hex SHA-1 digest.
// Absent values hash as the empty string, so a row keeps the same hash
// whether a field is missing or blank.
func StableHash(parts ...any) string {
	rendered := make([]string, len(parts))
	for i, p := range parts {
		if p == nil {
			continue
		}
		rendered[i] = fmt.Sprint(p)
	}
	sum := sha1.Sum([]byte(strings.Join(rendered, "|")))
	return hex.EncodeToString(sum[:])
}

// MergeFact accumulates rows of a deduped fact table keyed by its grain.
// The first row seen for a grain key wins; later rows only fill fields the
// stored row has absent, and a later non-absent value that disagrees with
// the stored one is logged and discarded. Surrogate ids are assigned at
// flush time in first-seen key order.
type MergeFact struct {
	table  string
	idCol  string
	fields []string
	order  []string
	recs   map[string]exporter.Row
}

// NewMergeFact creates an accumulator. The field list fixes the order in
// which conflicting values are reported for a single source row.
func NewMergeFact(table, idCol string, fields ...string) *MergeFact {
	return &MergeFact{
		table:  table,
		idCol:  idCol,
		fields: fields,
		recs:   make(map[string]exporter.Row),
	}
}

// Merge folds one source row into the grain identified by key.
func (m *MergeFact) Merge(key []any, row exporter.Row, qlog *QualityLog, sourceRow int) {
	k := encodeKey(key)
	existing, ok := m.recs[k]
	if !ok {
		stored := make(exporter.Row, len(row))
		for col, v := range row {
			stored[col] = v
		}
		m.recs[k] = stored
		m.order = append(m.order, k)
		return
	}

	for _, col := range m.fields {
		v, present := row[col]
		if !present || v == nil {
			continue
		}
		ev := existing[col]
		if ev == nil {
			existing[col] = v
		} else if ev != v {
			qlog.Add(domain.IssueConflictingDedupedValue,
				businessKey(m.table, key),
				fmt.Sprintf("%s: %v vs %v (source_row=%d)", col, ev, v, sourceRow))
		}
	}
}

// Len returns the number of distinct grain keys seen.
func (m *MergeFact) Len() int {
	return len(m.recs)
}

// Flush assigns surrogate ids in first-seen order and appends the merged
// rows to the output table.
func (m *MergeFact) Flush(set *exporter.TableSet) {
	tbl := set.Table(m.table)
	for i, k := range m.order {
		rec := m.recs[k]
		rec[m.idCol] = i + 1
		tbl.Append(rec)
	}
}

// businessKey renders a grain reference for quality logging.
func businessKey(table string, key []any) string {
	parts := make([]string, len(key))
	for i, v := range key {
		if v == nil {
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%s|(%s)", table, strings.Join(parts, ", "))
}
