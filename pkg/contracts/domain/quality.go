package domain

// Issue types recorded by the normalization pipeline.
const (
	IssueInconsistentLoanMaster  = "inconsistent_loan_master_value"
	IssueConflictingDedupedValue = "conflicting_deduped_fact_value"
	IssueDuplicateSourceRowHash  = "duplicate_source_row_hash"
)

// SeverityWarning is the only severity currently emitted; every detected
// anomaly is recoverable and processing always continues.
const SeverityWarning = "warning"

// QualityIssue is one detected data anomaly. Issues are append-only and
// numbered sequentially across all issue types within a run.
type QualityIssue struct {
	ID                int    `json:"dq_issue_id"`
	IssueType         string `json:"issue_type"`
	SourceTableName   string `json:"source_table_name"`
	SourceBusinessKey string `json:"source_business_key"`
	Severity          string `json:"severity"`
	IssueDetail       string `json:"issue_detail"`
	DetectedAt        string `json:"detected_at"`
}
