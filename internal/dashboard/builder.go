// Package dashboard builds the Tableau-ready VP datasets from the raw
// extract: a monthly KPI table, a deduplicated loan detail table and an
// exception log, exported as CSV files and one multi-sheet workbook.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"loanetl/internal/dataprocessing"
	"loanetl/internal/exporter"
	"loanetl/internal/normalize"
	"loanetl/internal/workbook"
)

const (
	unknownVP    = "(Unknown VP)"
	unknownMonth = "unknown"

	// exception thresholds on monthly KPIs
	marginOutlierLow  = -0.5
	marginOutlierHigh = 0.9
	roiOutlierHigh    = 15.0
)

var kpiHeaders = []string{
	"report_month", "vp", "loan_count", "loan_volume",
	"total_revenue", "total_expense", "contribution_margin", "margin_pct",
	"active_sales_hc", "active_non_producing_sales_hc",
	"productivity", "bonus_spend_proxy", "roi",
	"event_compensafe_amt", "event_rent_amt", "event_payroll_amt",
	"event_no_loan_bucket_rows", "exception_flag", "exception_reason",
}

var loanHeaders = []string{
	"report_month", "vp", "loan_number", "fund_date", "state",
	"product_bucket_group", "purpose", "loan_amount",
	"revenue_total_loan_level", "expense_total_loan_level",
	"los_revenue_amt", "gl_fee_income_amt", "gl_gos_amt", "gl_oi_amt",
	"gl_exception_amt", "los_exception_amt", "llr_amt",
	"corporate_allocation_amt", "source_row_count_under_loan_key",
}

var exceptionHeaders = []string{
	"report_month", "vp", "exception_reason", "margin_pct", "roi",
	"event_no_loan_bucket_rows", "detail", "issue_key",
}

// revenue and loan-level expense components, in reporting order
var revFields = []string{
	"los_revenue_amt", "gl_fee_income_amt", "gl_gos_amt",
	"gl_oi_amt", "gl_exception_amt", "los_exception_amt",
}

var expFields = []string{"llr_amt", "corporate_allocation_amt"}

// dedupe dimensions of the loan detail grain, in conflict reporting order
var loanDims = []string{"fund_date", "state", "product_bucket_group", "purpose", "loan_amount"}

// Builder drives one dashboard build.
type Builder struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewBuilder creates a builder. A nil logger falls back to the default.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, now: time.Now}
}

// Summary describes one dashboard build, persisted as build_summary.json.
type Summary struct {
	SourceFile     string   `json:"source_file"`
	RunID          string   `json:"run_id"`
	GeneratedAt    string   `json:"generated_at"`
	RawRowsRead    int      `json:"raw_rows_read"`
	VPMonthRows    int      `json:"vp_month_rows"`
	LoanDetailRows int      `json:"loan_detail_rows"`
	ExceptionRows  int      `json:"exception_rows"`
	OutputFiles    []string `json:"output_files"`
	RunFingerprint string   `json:"run_fingerprint"`
}

// columns are the source fields this stage reads.
type columns struct {
	loan, loanAmount, vp, bom, fundDate, state, product, purpose   int
	compBucket, activeSalesHC, activeNonHC                         int
	compAmt, rentAmt, payrollAmt, specPaidAmt, craPaidAmt          int
	losRev, glFee, glGOS, glOI, glExc, losExc, llr, corpAlloc      int
}

func resolveColumns(headers []string) columns {
	p := func(patterns ...string) int { return normalize.PickColumn(headers, patterns...) }
	return columns{
		loan:          p("Loannumber"),
		loanAmount:    p("LoanAmount"),
		vp:            p("VP"),
		bom:           p("BOM"),
		fundDate:      p("FundDate"),
		state:         p("SubjectPropertyState"),
		product:       p("ProductBucketGroup"),
		purpose:       p("Purpose"),
		compBucket:    p("CompensafeBucket"),
		activeSalesHC: p("ActiveSalesHC"),
		activeNonHC:   p("ActiveNonProducingSalesHC"),
		compAmt:       p("Compensafe $"),
		rentAmt:       p("Rent $ (BOM)"),
		payrollAmt:    p("Payroll Reg Earnings $ (BOM)"),
		specPaidAmt:   p("SPEC Paid $"),
		craPaidAmt:    p("CRA Paid $"),
		losRev:        p("LOS Revenue $"),
		glFee:         p("GL Fee Income $"),
		glGOS:         p("GL GOS $"),
		glOI:          p("GL OI $"),
		glExc:         p("GL Exception $"),
		losExc:        p("LOS Exception $"),
		llr:           p("LLR $"),
		corpAlloc:     p("Corporate Allocation $"),
	}
}

type loanEntry struct {
	loan, vp, month string
	dims            map[string]any // loanDims, first non-null wins
	amounts         map[string]any // revFields+expFields, merged by max
	rowCount        int
}

type eventTotals struct {
	compAmt, rentAmt, payrollAmt float64
	specPaidAmt, craPaidAmt      float64
	noLoanRows                   int
}

type hcTotals struct {
	activeSalesHC, activeNonProducingHC any
}

type dedupeIssue struct {
	issueType, issueKey, detail string
}

// Run reads the first worksheet of the source workbook and writes the
// dashboard datasets under outDir.
func (b *Builder) Run(ctx context.Context, sourcePath, outDir, runID string) (*Summary, error) {
	pkg, err := workbook.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer pkg.Close()

	sheetPath, err := pkg.FirstSheetPath()
	if err != nil {
		return nil, err
	}
	cursor, err := pkg.Rows(sheetPath)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	headerRow, err := cursor.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("worksheet %s has no header row", sheetPath)
	}
	if err != nil {
		return nil, err
	}
	cols := resolveColumns(headerSlice(headerRow))

	text := func(row workbook.Row, idx int) string {
		if idx < 0 {
			return ""
		}
		return normalize.CleanText(row[idx])
	}
	num := func(row workbook.Row, idx int) any {
		x, ok := normalize.ToNumber(text(row, idx))
		if !ok {
			return nil
		}
		return x
	}

	loanLevel := make(map[string]*loanEntry)
	loanOrder := []string{}
	eventMonthly := make(map[string]*eventTotals)
	hcMonthly := make(map[string]*hcTotals)
	var issues []dedupeIssue
	rawRows := 0

	sourceRow := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cursor.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		sourceRow++
		rawRows++

		vp := text(row, cols.vp)
		if vp == "" {
			vp = unknownVP
		}
		month := normalize.DateFromSerial(text(row, cols.bom))
		if month == "" {
			month = unknownMonth
		}
		monthKey := month + "\x1f" + vp

		hc := hcMonthly[monthKey]
		if hc == nil {
			hc = &hcTotals{}
			hcMonthly[monthKey] = hc
		}
		// max, not sum: headcount repeats on every row of the month
		hc.activeSalesHC = mergeMax(hc.activeSalesHC, num(row, cols.activeSalesHC))
		hc.activeNonProducingHC = mergeMax(hc.activeNonProducingHC, num(row, cols.activeNonHC))

		ev := eventMonthly[monthKey]
		if ev == nil {
			ev = &eventTotals{}
			eventMonthly[monthKey] = ev
		}
		ev.compAmt += floatOrZero(num(row, cols.compAmt))
		ev.rentAmt += floatOrZero(num(row, cols.rentAmt))
		ev.payrollAmt += floatOrZero(num(row, cols.payrollAmt))
		ev.specPaidAmt += floatOrZero(num(row, cols.specPaidAmt))
		ev.craPaidAmt += floatOrZero(num(row, cols.craPaidAmt))
		if text(row, cols.compBucket) == "No Loan #" {
			ev.noLoanRows++
		}

		loan := text(row, cols.loan)
		if loan == "" {
			continue
		}

		incomingDims := map[string]any{
			"fund_date":            strOrNil(normalize.DateFromSerial(text(row, cols.fundDate))),
			"state":                strOrNil(text(row, cols.state)),
			"product_bucket_group": strOrNil(text(row, cols.product)),
			"purpose":              strOrNil(text(row, cols.purpose)),
			"loan_amount":          num(row, cols.loanAmount),
		}
		incomingAmounts := map[string]any{
			"los_revenue_amt":          num(row, cols.losRev),
			"gl_fee_income_amt":        num(row, cols.glFee),
			"gl_gos_amt":               num(row, cols.glGOS),
			"gl_oi_amt":                num(row, cols.glOI),
			"gl_exception_amt":         num(row, cols.glExc),
			"los_exception_amt":        num(row, cols.losExc),
			"llr_amt":                  num(row, cols.llr),
			"corporate_allocation_amt": num(row, cols.corpAlloc),
		}

		lkey := loan + "\x1f" + monthKey
		entry := loanLevel[lkey]
		if entry == nil {
			loanLevel[lkey] = &loanEntry{
				loan:     loan,
				vp:       vp,
				month:    month,
				dims:     incomingDims,
				amounts:  incomingAmounts,
				rowCount: 1,
			}
			loanOrder = append(loanOrder, lkey)
			continue
		}

		entry.rowCount++
		for _, dim := range loanDims {
			cur := entry.dims[dim]
			incoming := incomingDims[dim]
			if cur == nil && incoming != nil {
				entry.dims[dim] = incoming
			} else if cur != nil && incoming != nil && cur != incoming {
				issues = append(issues, dedupeIssue{
					issueType: "inconsistent_" + dim,
					issueKey:  fmt.Sprintf("%s|%s|%s", loan, vp, month),
					detail:    fmt.Sprintf("%s: %v vs %v at source row %d", dim, cur, incoming, sourceRow),
				})
			}
		}
		// duplicated loan rows repeat amounts; max avoids undercounting
		for _, f := range append(append([]string{}, revFields...), expFields...) {
			entry.amounts[f] = mergeMax(entry.amounts[f], incomingAmounts[f])
		}
	}

	loanRows := buildLoanRows(loanLevel, loanOrder)
	monthlyRows, exceptionRows := buildMonthlyRows(loanRows, eventMonthly, hcMonthly)
	for _, d := range issues {
		exceptionRows = append(exceptionRows, exporter.Row{
			"exception_reason": d.issueType,
			"detail":           d.detail,
			"issue_key":        d.issueKey,
		})
	}

	w := exporter.NewCSVWriter(outDir)
	if err := w.WriteSimple("vp_kpi_monthly.csv", kpiHeaders, monthlyRows); err != nil {
		return nil, err
	}
	if err := w.WriteSimple("vp_loan_detail.csv", loanHeaders, loanRows); err != nil {
		return nil, err
	}
	if err := w.WriteSimple("vp_exception_log.csv", exceptionHeaders, exceptionRows); err != nil {
		return nil, err
	}

	workbookPath := filepath.Join(outDir, "vp_dashboard_data.xlsx")
	err = exporter.WriteWorkbook(workbookPath, []exporter.Sheet{
		{Name: "vp_kpi_monthly", Headers: kpiHeaders, Rows: monthlyRows},
		{Name: "vp_loan_detail", Headers: loanHeaders, Rows: loanRows},
		{Name: "vp_exception_log", Headers: exceptionHeaders, Rows: exceptionRows},
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		SourceFile:     sourcePath,
		RunID:          runID,
		GeneratedAt:    b.now().Format("2006-01-02 15:04:05"),
		RawRowsRead:    rawRows,
		VPMonthRows:    len(monthlyRows),
		LoanDetailRows: len(loanRows),
		ExceptionRows:  len(exceptionRows),
		OutputFiles: []string{
			filepath.Join(outDir, "vp_kpi_monthly.csv"),
			filepath.Join(outDir, "vp_loan_detail.csv"),
			filepath.Join(outDir, "vp_exception_log.csv"),
			workbookPath,
		},
		RunFingerprint: dataprocessing.StableHash(sourcePath, rawRows, len(loanRows), len(monthlyRows)),
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal build summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "build_summary.json"), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write build summary: %w", err)
	}

	b.logger.Info("dashboard build complete",
		slog.String("source_file", sourcePath),
		slog.String("run_id", runID),
		slog.Int("raw_rows", rawRows),
		slog.Int("vp_month_rows", len(monthlyRows)),
		slog.Int("exception_rows", len(exceptionRows)))
	return summary, nil
}

func buildLoanRows(loanLevel map[string]*loanEntry, order []string) []exporter.Row {
	rows := make([]exporter.Row, 0, len(order))
	for _, k := range order {
		e := loanLevel[k]
		revTotal := 0.0
		for _, f := range revFields {
			revTotal += floatOrZero(e.amounts[f])
		}
		expTotal := 0.0
		for _, f := range expFields {
			expTotal += floatOrZero(e.amounts[f])
		}

		row := exporter.Row{
			"report_month":                    e.month,
			"vp":                              e.vp,
			"loan_number":                     e.loan,
			"revenue_total_loan_level":        revTotal,
			"expense_total_loan_level":        expTotal,
			"source_row_count_under_loan_key": e.rowCount,
		}
		for _, dim := range loanDims {
			row[dim] = e.dims[dim]
		}
		for f, v := range e.amounts {
			row[f] = v
		}
		rows = append(rows, row)
	}
	return rows
}

type monthlyAcc struct {
	month, vp                   string
	loanCount                   int
	loanVolume, revenue, expense float64
}

func buildMonthlyRows(loanRows []exporter.Row, eventMonthly map[string]*eventTotals, hcMonthly map[string]*hcTotals) ([]exporter.Row, []exporter.Row) {
	acc := make(map[string]*monthlyAcc)
	for _, l := range loanRows {
		month := l["report_month"].(string)
		vp := l["vp"].(string)
		key := month + "\x1f" + vp
		m := acc[key]
		if m == nil {
			m = &monthlyAcc{month: month, vp: vp}
			acc[key] = m
		}
		m.loanCount++
		m.loanVolume += floatOrZero(l["loan_amount"])
		m.revenue += floatOrZero(l["revenue_total_loan_level"])
		m.expense += floatOrZero(l["expense_total_loan_level"])
	}

	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var monthlyRows, exceptionRows []exporter.Row
	for _, key := range keys {
		m := acc[key]
		ev := eventMonthly[key]
		if ev == nil {
			ev = &eventTotals{}
		}
		var hcSales, hcNonProducing any
		if hc := hcMonthly[key]; hc != nil {
			hcSales = hc.activeSalesHC
			hcNonProducing = hc.activeNonProducingHC
		}

		eventCost := ev.compAmt + ev.rentAmt + ev.payrollAmt
		bonusSpend := ev.specPaidAmt + ev.craPaidAmt
		totalRevenue := m.revenue
		totalExpense := m.expense + eventCost
		contributionMargin := totalRevenue - totalExpense

		var marginPct, productivity, roi any
		if totalRevenue != 0 {
			marginPct = contributionMargin / totalRevenue
		}
		if hcf, ok := hcSales.(float64); ok && hcf != 0 {
			productivity = totalRevenue / hcf
		}
		if bonusSpend != 0 {
			roi = totalRevenue / bonusSpend
		}

		var reasons []string
		if ev.noLoanRows > 0 {
			reasons = append(reasons, "contains_no_loan_bucket_rows")
		}
		if mp, ok := marginPct.(float64); ok && (mp < marginOutlierLow || mp > marginOutlierHigh) {
			reasons = append(reasons, "margin_outlier")
		}
		if r, ok := roi.(float64); ok && (r < 0 || r > roiOutlierHigh) {
			reasons = append(reasons, "roi_outlier")
		}

		flag := 0
		var reason any
		if len(reasons) > 0 {
			flag = 1
			reason = strings.Join(reasons, ",")
		}

		monthlyRows = append(monthlyRows, exporter.Row{
			"report_month":                  m.month,
			"vp":                            m.vp,
			"loan_count":                    m.loanCount,
			"loan_volume":                   m.loanVolume,
			"total_revenue":                 totalRevenue,
			"total_expense":                 totalExpense,
			"contribution_margin":           contributionMargin,
			"margin_pct":                    marginPct,
			"active_sales_hc":               hcSales,
			"active_non_producing_sales_hc": hcNonProducing,
			"productivity":                  productivity,
			"bonus_spend_proxy":             bonusSpend,
			"roi":                           roi,
			"event_compensafe_amt":          ev.compAmt,
			"event_rent_amt":                ev.rentAmt,
			"event_payroll_amt":             ev.payrollAmt,
			"event_no_loan_bucket_rows":     ev.noLoanRows,
			"exception_flag":                flag,
			"exception_reason":              reason,
		})
		if len(reasons) > 0 {
			exceptionRows = append(exceptionRows, exporter.Row{
				"report_month":              m.month,
				"vp":                        m.vp,
				"exception_reason":          strings.Join(reasons, ","),
				"margin_pct":                marginPct,
				"roi":                       roi,
				"event_no_loan_bucket_rows": ev.noLoanRows,
			})
		}
	}
	return monthlyRows, exceptionRows
}

func mergeMax(existing, incoming any) any {
	in, ok := incoming.(float64)
	if !ok {
		return existing
	}
	cur, ok := existing.(float64)
	if !ok {
		return incoming
	}
	if in > cur {
		return in
	}
	return cur
}

func floatOrZero(v any) float64 {
	if x, ok := v.(float64); ok {
		return x
	}
	return 0
}

func strOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func headerSlice(row workbook.Row) []string {
	width := 0
	for i := range row {
		if i+1 > width {
			width = i + 1
		}
	}
	out := make([]string, width)
	for i, v := range row {
		if i >= 0 {
			out[i] = v
		}
	}
	return out
}
