package dashboard

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var extractHeaders = []any{
	"Loannumber", "LoanAmount", "VP", "BOM", "FundDate",
	"SubjectPropertyState", "ProductBucketGroup", "Purpose", "CompensafeBucket",
	"ActiveSalesHC", "ActiveNonProducingSalesHC",
	"Compensafe $", "Rent $ (BOM)", "Payroll Reg Earnings $ (BOM)",
	"SPEC Paid $", "CRA Paid $",
	"LOS Revenue $", "GL Fee Income $", "GL GOS $", "GL OI $",
	"GL Exception $", "LOS Exception $", "LLR $", "Corporate Allocation $",
}

func writeExtract(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &extractHeaders))
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	require.NoError(t, f.SaveAs(path))
}

// csvByHeader reads a BOM-prefixed CSV into one map per record.
func csvByHeader(t *testing.T, path string) []map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	out := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		m := make(map[string]string, len(rec))
		for i, h := range records[0] {
			m[h] = rec[i]
		}
		out = append(out, m)
	}
	return out
}

func TestBuilder_Run(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Duke Data V4 (1).xlsx")
	out := filepath.Join(dir, "tableau_ready")

	writeExtract(t, src, [][]any{
		// serial 45292 is 2024-01-01
		{"L101", 250000, "Casey Reed", 45292, 45200, "TX", "Agency", "Purchase", "B1",
			5, 1, 100, 10, 20, 30, 40, 1000, 100, 200, 50, -25, 10, 60, 40},
		// duplicate loan row: conflicting state, lower revenue loses to max
		{"L101", 250000, "Casey Reed", 45292, 45200, "CA", "Agency", "Purchase", "B1",
			5, 1, 50, nil, nil, nil, nil, 900, nil, nil, nil, nil, nil, nil, nil},
		// loanless row in the no-loan bucket
		{nil, nil, "Casey Reed", 45292, nil, nil, nil, nil, "No Loan #",
			5, 1, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil},
	})

	b := NewBuilder(nil)
	b.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	summary, err := b.Run(context.Background(), src, out, "run-123")
	require.NoError(t, err)

	assert.Equal(t, src, summary.SourceFile)
	assert.Equal(t, "run-123", summary.RunID)
	assert.Equal(t, "2024-03-01 09:30:00", summary.GeneratedAt)
	assert.Equal(t, 3, summary.RawRowsRead)
	assert.Equal(t, 1, summary.VPMonthRows)
	assert.Equal(t, 1, summary.LoanDetailRows)
	assert.Equal(t, 2, summary.ExceptionRows)
	assert.Len(t, summary.RunFingerprint, 40)

	t.Run("loan detail dedupes on loan, vp and month", func(t *testing.T) {
		detail := csvByHeader(t, filepath.Join(out, "vp_loan_detail.csv"))
		require.Len(t, detail, 1)
		assert.Equal(t, "L101", detail[0]["loan_number"])
		assert.Equal(t, "2024-01-01", detail[0]["report_month"])
		assert.Equal(t, "TX", detail[0]["state"], "first non-null dimension wins")
		assert.Equal(t, "1000", detail[0]["los_revenue_amt"], "amounts merge by max")
		assert.Equal(t, "1335", detail[0]["revenue_total_loan_level"])
		assert.Equal(t, "100", detail[0]["expense_total_loan_level"])
		assert.Equal(t, "2", detail[0]["source_row_count_under_loan_key"])
	})

	t.Run("monthly kpis", func(t *testing.T) {
		kpi := csvByHeader(t, filepath.Join(out, "vp_kpi_monthly.csv"))
		require.Len(t, kpi, 1)
		row := kpi[0]
		assert.Equal(t, "2024-01-01", row["report_month"])
		assert.Equal(t, "Casey Reed", row["vp"])
		assert.Equal(t, "1", row["loan_count"])
		assert.Equal(t, "250000", row["loan_volume"])
		assert.Equal(t, "1335", row["total_revenue"])
		// 100 loan-level expense + 150 compensafe + 10 rent + 20 payroll
		assert.Equal(t, "280", row["total_expense"])
		assert.Equal(t, "1055", row["contribution_margin"])
		assert.Equal(t, "0.790262", row["margin_pct"])
		assert.Equal(t, "5", row["active_sales_hc"])
		assert.Equal(t, "70", row["bonus_spend_proxy"])
		assert.Equal(t, "19.071429", row["roi"])
		assert.Equal(t, "1", row["event_no_loan_bucket_rows"])
		assert.Equal(t, "1", row["exception_flag"])
		assert.Equal(t, "contains_no_loan_bucket_rows,roi_outlier", row["exception_reason"])
	})

	t.Run("exception log mixes kpi and dedupe findings", func(t *testing.T) {
		exc := csvByHeader(t, filepath.Join(out, "vp_exception_log.csv"))
		require.Len(t, exc, 2)
		assert.Equal(t, "contains_no_loan_bucket_rows,roi_outlier", exc[0]["exception_reason"])
		assert.Equal(t, "inconsistent_state", exc[1]["exception_reason"])
		assert.Equal(t, "L101|Casey Reed|2024-01-01", exc[1]["issue_key"])
		assert.Contains(t, exc[1]["detail"], "state: TX vs CA at source row 3")
	})

	t.Run("workbook mirrors the csv datasets", func(t *testing.T) {
		f, err := excelize.OpenFile(filepath.Join(out, "vp_dashboard_data.xlsx"))
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, []string{"vp_kpi_monthly", "vp_loan_detail", "vp_exception_log"}, f.GetSheetList())
		rows, err := f.GetRows("vp_loan_detail")
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})

	t.Run("build summary round trips", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(out, "build_summary.json"))
		require.NoError(t, err)
		var decoded Summary
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, *summary, decoded)
	})
}

func TestBuilder_Run_UnknownVPAndMonth(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "extract.xlsx")
	out := filepath.Join(dir, "out")

	writeExtract(t, src, [][]any{
		{"L200", 100000, nil, nil, nil, nil, nil, nil, nil,
			nil, nil, nil, nil, nil, nil, nil, 500, nil, nil, nil, nil, nil, nil, nil},
	})

	summary, err := NewBuilder(nil).Run(context.Background(), src, out, "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.LoanDetailRows)

	detail := csvByHeader(t, filepath.Join(out, "vp_loan_detail.csv"))
	assert.Equal(t, "(Unknown VP)", detail[0]["vp"])
	assert.Equal(t, "unknown", detail[0]["report_month"])
}
