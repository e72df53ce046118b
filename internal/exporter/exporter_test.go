package exporter

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"loanetl/pkg/contracts/domain"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"integral drops point", 42, "42"},
		{"trailing zeros trimmed", 0.125, "0.125"},
		{"six places kept", 0.123456, "0.123456"},
		{"seventh place rounds", 0.1234567, "0.123457"},
		{"negative", -17.25, "-17.25"},
		{"zero", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatFloat(tt.input))
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "Retail", formatValue("Retail"))
	assert.Equal(t, "7", formatValue(7))
	assert.Equal(t, "7", formatValue(int64(7)))
	assert.Equal(t, "2.5", formatValue(2.5))
	assert.Equal(t, "true", formatValue(true))
}

func TestTable_ColumnsUnionSorted(t *testing.T) {
	tbl := &Table{Name: "dim_loan"}
	tbl.Append(Row{"loan_id": 1, "loan_number": "L101"})
	tbl.Append(Row{"loan_id": 2, "fico": int64(720)})

	assert.Equal(t, []string{"fico", "loan_id", "loan_number"}, tbl.Columns())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVWriter_FlushTableSet(t *testing.T) {
	dir := t.TempDir()
	set := NewTableSet()

	loans := set.Table("dim_loan")
	loans.Append(Row{"loan_id": 1, "loan_number": "L101", "loan_amount": 250000.5})
	loans.Append(Row{"loan_id": 2, "loan_number": "L102", "fico": int64(720)})
	set.Table("dim_vp").Append(Row{"vp_id": 1, "vp_name": "Casey Reed"})
	set.Table("dim_state") // stays empty, must not be written

	entries, err := NewCSVWriter(dir).FlushTableSet(set)
	require.NoError(t, err)
	require.Equal(t, []domain.ManifestEntry{
		{Table: "dim_loan", Rows: 2, Path: "dim_loan.csv"},
		{Table: "dim_vp", Rows: 1, Path: "dim_vp.csv"},
	}, entries)
	assert.NoFileExists(t, filepath.Join(dir, "dim_state.csv"))

	records := readCSV(t, filepath.Join(dir, "dim_loan.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, []string{"fico", "loan_amount", "loan_id", "loan_number"}, records[0])
	assert.Equal(t, []string{"", "250000.5", "1", "L101"}, records[1])
	assert.Equal(t, []string{"720", "", "2", "L102"}, records[2])

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var decoded []domain.ManifestEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, entries, decoded)
}

func TestCSVWriter_WriteSimple(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)

	err := w.WriteSimple("vp_kpi_monthly.csv",
		[]string{"vp_name", "bom_date", "loan_count"},
		[]Row{{"vp_name": "Casey Reed", "bom_date": "2024-01-01", "loan_count": int64(12)}})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "vp_kpi_monthly.csv"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])
	assert.Contains(t, string(data), "vp_name,bom_date,loan_count")
	assert.Contains(t, string(data), "Casey Reed,2024-01-01,12")
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "vp_dashboard_data.xlsx")

	err := WriteWorkbook(path, []Sheet{
		{
			Name:    "vp_kpi_monthly",
			Headers: []string{"vp_name", "loan_count"},
			Rows:    []Row{{"vp_name": "Casey Reed", "loan_count": int64(12)}},
		},
		{
			Name:    "vp_exception_log",
			Headers: []string{"vp_name", "exception_type"},
			Rows:    nil,
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"vp_kpi_monthly", "vp_exception_log"}, f.GetSheetList())
	rows, err := f.GetRows("vp_kpi_monthly")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"vp_name", "loan_count"}, rows[0])
	assert.Equal(t, "Casey Reed", rows[1][0])
}
