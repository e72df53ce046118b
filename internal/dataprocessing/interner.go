package dataprocessing

import (
	"fmt"
	"strconv"
	"strings"

	"loanetl/internal/exporter"
)

// Dimension interns natural-key tuples and assigns surrogate ids starting at
// 1. Interning a tuple whose values are all absent yields no id, so facts can
// carry a null foreign key instead of pointing at an all-null member.
type Dimension struct {
	idCol  string
	fields []string
	out    *exporter.Table
	ids    map[string]int
	next   int
}

// NewDimension registers a dimension table on the set. The field names
// become the table's columns next to the surrogate id column.
func NewDimension(set *exporter.TableSet, table, idCol string, fields ...string) *Dimension {
	return &Dimension{
		idCol:  idCol,
		fields: fields,
		out:    set.Table(table),
		ids:    make(map[string]int),
		next:   1,
	}
}

// Intern returns the id for the tuple, allocating one and emitting the
// member row on first sight. Returns 0 when every value is absent. The
// number of values must match the field list.
func (d *Dimension) Intern(values ...any) int {
	allNil := true
	for _, v := range values {
		if v != nil {
			allNil = false
			break
		}
	}
	if allNil {
		return 0
	}

	key := encodeKey(values)
	if id, ok := d.ids[key]; ok {
		return id
	}

	id := d.next
	d.next++
	d.ids[key] = id

	row := exporter.Row{d.idCol: id}
	for i, name := range d.fields {
		row[name] = values[i]
	}
	d.out.Append(row)
	return id
}

// encodeKey renders a tuple to a collision-free string key. Values of
// different types never compare equal, so the text "720" and the integer 720
// intern separately.
func encodeKey(values []any) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch x := v.(type) {
		case nil:
			b.WriteByte('n')
		case string:
			b.WriteString("s:")
			b.WriteString(x)
		case int:
			b.WriteString("i:")
			b.WriteString(strconv.Itoa(x))
		case int64:
			b.WriteString("i:")
			b.WriteString(strconv.FormatInt(x, 10))
		case float64:
			b.WriteString("f:")
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		case bool:
			b.WriteString("b:")
			b.WriteString(strconv.FormatBool(x))
		default:
			b.WriteString("v:")
			b.WriteString(fmt.Sprint(x))
		}
	}
	return b.String()
}
