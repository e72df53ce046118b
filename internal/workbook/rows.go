package workbook

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	pkgerrors "loanetl/internal/errors"
)

// Row is one worksheet row as a sparse mapping from zero-based column index
// to resolved cell text.
type Row map[int]string

// xmlCell is one <c> element.
type xmlCell struct {
	R  string  `xml:"r,attr"`
	T  string  `xml:"t,attr"`
	V  *string `xml:"v"`
	IS *struct {
		T    *string `xml:"t"`
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"is"`
}

// xmlRow is one <row> element.
type xmlRow struct {
	Cells []xmlCell `xml:"c"`
}

// Cursor is a single-pass streaming iterator over worksheet rows.
type Cursor struct {
	part   string
	rc     io.ReadCloser
	dec    *xml.Decoder
	shared []string
}

// Rows opens a streaming cursor over the worksheet stored at sheetPath.
// The cursor must be closed by the caller.
func (p *Package) Rows(sheetPath string) (*Cursor, error) {
	f, ok := p.files[sheetPath]
	if !ok {
		return nil, pkgerrors.MissingPart(sheetPath)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open worksheet %s: %w", sheetPath, err)
	}
	return &Cursor{
		part:   sheetPath,
		rc:     rc,
		dec:    xml.NewDecoder(rc),
		shared: p.shared,
	}, nil
}

// Next returns the next row, or io.EOF after the last one. Each returned row
// is independent; the cursor retains no reference to it.
func (c *Cursor) Next() (Row, error) {
	for {
		tok, err := c.dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, pkgerrors.MalformedPart(c.part, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "row" {
			continue
		}
		var xr xmlRow
		if err := c.dec.DecodeElement(&xr, &se); err != nil {
			return nil, pkgerrors.MalformedPart(c.part, err)
		}

		row := make(Row, len(xr.Cells))
		for _, cell := range xr.Cells {
			row[columnIndex(cell.R)] = c.cellValue(cell)
		}
		return row, nil
	}
}

// Close releases the worksheet reader.
func (c *Cursor) Close() error {
	return c.rc.Close()
}

// cellValue resolves cell text according to the cell's type tag.
func (c *Cursor) cellValue(cell xmlCell) string {
	switch cell.T {
	case "s":
		if cell.V == nil {
			return ""
		}
		idx, err := strconv.Atoi(*cell.V)
		if err != nil || idx < 0 || idx >= len(c.shared) {
			return ""
		}
		return c.shared[idx]
	case "inlineStr":
		if cell.IS == nil {
			return ""
		}
		if cell.IS.T != nil {
			return *cell.IS.T
		}
		var out string
		for _, r := range cell.IS.Runs {
			out += r.T
		}
		return out
	default:
		if cell.V == nil {
			return ""
		}
		return *cell.V
	}
}

// columnIndex decodes the letter prefix of a cell reference such as "AB3"
// into a zero-based column index using base-26 arithmetic.
func columnIndex(cellRef string) int {
	n := 0
	for i := 0; i < len(cellRef); i++ {
		ch := cellRef[i]
		if ch < 'A' || ch > 'Z' {
			break
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1
}
