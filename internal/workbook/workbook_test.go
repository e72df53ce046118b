package workbook

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	pkgerrors "loanetl/internal/errors"
)

// writeFixture builds a real xlsx file with excelize so the streaming reader
// is tested against output from an independent producer.
func writeFixture(t *testing.T, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func readAll(t *testing.T, p *Package) []Row {
	t.Helper()

	sheet, err := p.FirstSheetPath()
	require.NoError(t, err)

	cur, err := p.Rows(sheet)
	require.NoError(t, err)
	defer cur.Close()

	var rows []Row
	for {
		row, err := cur.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestPackage_RoundTrip(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"Loannumber", "LoanAmount", "VP"},
		{"L100", 250000.5, "Jordan Blake"},
		{"L101", nil, "Casey Reed"},
	})

	p, err := Open(path)
	require.NoError(t, err)
	defer p.Close()

	rows := readAll(t, p)
	require.Len(t, rows, 3)

	assert.Equal(t, "Loannumber", rows[0][0])
	assert.Equal(t, "VP", rows[0][2])
	assert.Equal(t, "L100", rows[1][0])
	assert.Equal(t, "250000.5", rows[1][1])
	assert.Equal(t, "Jordan Blake", rows[1][2])
	// Empty cell is simply absent from the sparse row.
	_, present := rows[2][1]
	assert.False(t, present)
}

func TestPackage_SharedStringsResolved(t *testing.T) {
	path := writeFixture(t, [][]any{
		{"same", "same", "different"},
	})

	p, err := Open(path)
	require.NoError(t, err)
	defer p.Close()

	rows := readAll(t, p)
	require.Len(t, rows, 1)
	assert.Equal(t, "same", rows[0][0])
	assert.Equal(t, "same", rows[0][1])
	assert.Equal(t, "different", rows[0][2])
}

// writeRawPackage assembles an xlsx zip by hand so structural failure modes
// and inline strings can be exercised directly.
func writeRawPackage(t *testing.T, parts map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "raw.xlsx")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return path
}

const rawWorkbookXML = `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"
          xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets><sheet name="Data" sheetId="1" r:id="rId1"/></sheets>
</workbook>`

const rawRelsXML = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`

func TestPackage_InlineStringsAndLiterals(t *testing.T) {
	sheet := `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
  <row r="1">
    <c r="A1" t="inlineStr"><is><t>inline text</t></is></c>
    <c r="B1" t="inlineStr"><is><r><t>run </t></r><r><t>joined</t></r></is></c>
    <c r="C1"><v>42.5</v></c>
    <c r="AB1"><v>far right</v></c>
    <c r="E1"/>
  </row>
</sheetData></worksheet>`

	path := writeRawPackage(t, map[string]string{
		"xl/workbook.xml":            rawWorkbookXML,
		"xl/_rels/workbook.xml.rels": rawRelsXML,
		"xl/worksheets/sheet1.xml":   sheet,
	})

	p, err := Open(path)
	require.NoError(t, err)
	defer p.Close()

	// No sharedStrings part: the table is empty, not an error.
	assert.Empty(t, p.SharedStrings())

	rows := readAll(t, p)
	require.Len(t, rows, 1)
	assert.Equal(t, "inline text", rows[0][0])
	assert.Equal(t, "run joined", rows[0][1])
	assert.Equal(t, "42.5", rows[0][2])
	assert.Equal(t, "far right", rows[0][27]) // AB decodes via base-26
	assert.Equal(t, "", rows[0][4])           // typed cell without value
}

func TestPackage_MissingParts(t *testing.T) {
	tests := []struct {
		name  string
		parts map[string]string
	}{
		{
			name: "no workbook manifest",
			parts: map[string]string{
				"xl/_rels/workbook.xml.rels": rawRelsXML,
			},
		},
		{
			name: "no relationship map",
			parts: map[string]string{
				"xl/workbook.xml": rawWorkbookXML,
			},
		},
		{
			name: "relationship target missing",
			parts: map[string]string{
				"xl/workbook.xml": rawWorkbookXML,
				"xl/_rels/workbook.xml.rels": `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
			},
		},
		{
			name: "no sheets declared",
			parts: map[string]string{
				"xl/workbook.xml": `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheets/></workbook>`,
				"xl/_rels/workbook.xml.rels": rawRelsXML,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRawPackage(t, tt.parts)

			p, err := Open(path)
			require.NoError(t, err)
			defer p.Close()

			_, err = p.FirstSheetPath()
			require.Error(t, err)
			assert.True(t, pkgerrors.IsFormatError(err))
		})
	}
}

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		ref      string
		expected int
	}{
		{ref: "A1", expected: 0},
		{ref: "B10", expected: 1},
		{ref: "Z3", expected: 25},
		{ref: "AA1", expected: 26},
		{ref: "AB3", expected: 27},
		{ref: "", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.expected, columnIndex(tt.ref))
		})
	}
}
