// Package validation checks the emitted tables against known dashboard
// baselines and writes a machine-readable and a human-readable report.
package validation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"loanetl/internal/config"
)

// Check is one pass/fail assertion over the emitted tables.
type Check struct {
	Name     string `json:"name"`
	Actual   int    `json:"actual"`
	Expected int    `json:"expected"`
	Passed   bool   `json:"passed"`
	Note     string `json:"note"`
}

// Summary aggregates the headline counts of one run.
type Summary struct {
	LoanCountDistinct     int            `json:"loan_count_distinct"`
	EventRowCount         int            `json:"event_row_count"`
	LoanAmountTotal       float64        `json:"loan_amount_total"`
	LoanAmountNonNullRows int            `json:"loan_amount_nonnull_rows"`
	DQIssueTotal          int            `json:"dq_issue_total"`
	DQIssueTypes          map[string]int `json:"dq_issue_types"`
}

// Report is the full validation result, persisted as JSON and Markdown.
type Report struct {
	DataDir string  `json:"data_dir"`
	Summary Summary `json:"summary"`
	Checks  []Check `json:"checks"`
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Validator runs baseline checks over a table directory.
type Validator struct {
	logger    *slog.Logger
	baselines config.BaselineConfig
}

// NewValidator creates a validator. A nil logger falls back to the default.
func NewValidator(logger *slog.Logger, baselines config.BaselineConfig) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger, baselines: baselines}
}

// Run reads the normalized tables under dataDir and writes
// vp_dashboard_validation_report.{json,md} under reportDir.
func (v *Validator) Run(dataDir, reportDir string) (*Report, error) {
	dimLoan, err := loadRows(filepath.Join(dataDir, "dim_loan.csv"))
	if err != nil {
		return nil, err
	}
	factEvent, err := loadRows(filepath.Join(dataDir, "fact_compensafe_event.csv"))
	if err != nil {
		return nil, err
	}
	snapshots, err := loadRows(filepath.Join(dataDir, "fact_loan_snapshot.csv"))
	if err != nil {
		return nil, err
	}
	// absent when the run logged no issues
	dq, err := loadRows(filepath.Join(dataDir, "etl_data_quality_issue.csv"))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	loanNumbers := make(map[string]struct{})
	loanAmountTotal := 0.0
	loanAmountNonNull := 0
	for _, r := range dimLoan {
		if n := strings.TrimSpace(r["loan_number"]); n != "" {
			loanNumbers[n] = struct{}{}
		}
		if x, err := strconv.ParseFloat(strings.TrimSpace(r["loan_amount"]), 64); err == nil {
			loanAmountTotal += x
			loanAmountNonNull++
		}
	}

	dqTypes := make(map[string]int)
	for _, r := range dq {
		dqTypes[r["issue_type"]]++
	}

	checks := []Check{
		{
			Name:     "Loan Count baseline",
			Actual:   len(loanNumbers),
			Expected: v.baselines.DistinctLoans,
			Passed:   len(loanNumbers) == v.baselines.DistinctLoans,
			Note:     "COUNTD(dim_loan.loan_number) baseline",
		},
		{
			Name:     "Event row baseline",
			Actual:   len(factEvent),
			Expected: v.baselines.EventRows,
			Passed:   len(factEvent) == v.baselines.EventRows,
			Note:     "fact_compensafe_event row count baseline",
		},
		{
			Name:     "Loan snapshot grain check",
			Actual:   len(snapshots),
			Expected: len(loanNumbers),
			Passed:   len(snapshots) == len(loanNumbers),
			Note:     "fact_loan_snapshot should be one row per loan in this sample",
		},
	}

	report := &Report{
		DataDir: dataDir,
		Summary: Summary{
			LoanCountDistinct:     len(loanNumbers),
			EventRowCount:         len(factEvent),
			LoanAmountTotal:       math.Round(loanAmountTotal*100) / 100,
			LoanAmountNonNullRows: loanAmountNonNull,
			DQIssueTotal:          len(dq),
			DQIssueTypes:          dqTypes,
		},
		Checks: checks,
	}

	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	jsonPath := filepath.Join(reportDir, "vp_dashboard_validation_report.json")
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	mdPath := filepath.Join(reportDir, "vp_dashboard_validation_report.md")
	if err := os.WriteFile(mdPath, []byte(report.markdown()), 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	for _, c := range checks {
		v.logger.Info("baseline check",
			slog.String("name", c.Name),
			slog.Bool("passed", c.Passed),
			slog.Int("actual", c.Actual),
			slog.Int("expected", c.Expected))
	}
	return report, nil
}

func (r *Report) markdown() string {
	var b strings.Builder
	b.WriteString("# VP Dashboard Validation Report\n\n")
	fmt.Fprintf(&b, "- Data directory: `%s`\n", r.DataDir)
	fmt.Fprintf(&b, "- Distinct Loan Count: `%d`\n", r.Summary.LoanCountDistinct)
	fmt.Fprintf(&b, "- Event Row Count: `%d`\n", r.Summary.EventRowCount)
	fmt.Fprintf(&b, "- Loan Amount Total (dim_loan): `%g`\n", r.Summary.LoanAmountTotal)
	fmt.Fprintf(&b, "- DQ Issues: `%d`\n\n", r.Summary.DQIssueTotal)

	b.WriteString("## Checks\n")
	for _, c := range r.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "- [%s] %s: actual=%d expected=%d (%s)\n", status, c.Name, c.Actual, c.Expected, c.Note)
	}

	b.WriteString("\n## DQ Issue Types\n")
	type kv struct {
		name  string
		count int
	}
	types := make([]kv, 0, len(r.Summary.DQIssueTypes))
	for k, n := range r.Summary.DQIssueTypes {
		types = append(types, kv{k, n})
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].count != types[j].count {
			return types[i].count > types[j].count
		}
		return types[i].name < types[j].name
	})
	for _, t := range types {
		fmt.Fprintf(&b, "- `%s`: %d\n", t.name, t.count)
	}
	b.WriteString("\n")
	return b.String()
}

// loadRows reads a CSV file into one map per record keyed by header.
func loadRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		m := make(map[string]string, len(rec))
		for i, h := range records[0] {
			if i < len(rec) {
				m[h] = rec[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}
