package dataprocessing

import (
	"time"

	"loanetl/internal/exporter"
	"loanetl/pkg/contracts/domain"
)

// QualityLog collects data-quality findings for one run. Ids are sequential
// across all issue types in detection order.
type QualityLog struct {
	source string
	now    func() time.Time
	issues []domain.QualityIssue
}

// NewQualityLog creates a log attributing issues to the named source file.
func NewQualityLog(source string) *QualityLog {
	return &QualityLog{source: source, now: time.Now}
}

// Add records one warning-severity issue.
func (q *QualityLog) Add(issueType, businessKey, detail string) {
	q.issues = append(q.issues, domain.QualityIssue{
		ID:                len(q.issues) + 1,
		IssueType:         issueType,
		SourceTableName:   q.source,
		SourceBusinessKey: businessKey,
		Severity:          domain.SeverityWarning,
		IssueDetail:       detail,
		DetectedAt:        q.now().Format("2006-01-02 15:04:05"),
	})
}

// Len returns the number of issues recorded so far.
func (q *QualityLog) Len() int {
	return len(q.issues)
}

// Issues returns the recorded issues in detection order.
func (q *QualityLog) Issues() []domain.QualityIssue {
	return q.issues
}

// Flush appends the issues to the etl_data_quality_issue table.
func (q *QualityLog) Flush(set *exporter.TableSet) {
	tbl := set.Table("etl_data_quality_issue")
	for _, issue := range q.issues {
		tbl.Append(exporter.Row{
			"dq_issue_id":         issue.ID,
			"issue_type":          issue.IssueType,
			"source_table_name":   issue.SourceTableName,
			"source_business_key": issue.SourceBusinessKey,
			"severity":            issue.Severity,
			"issue_detail":        issue.IssueDetail,
			"detected_at":         issue.DetectedAt,
		})
	}
}
