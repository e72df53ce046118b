package dataprocessing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"loanetl/internal/exporter"
	"loanetl/internal/workbook"
	"loanetl/pkg/contracts/domain"
)

// Splitter normalizes one wide compensation extract into a relational table
// set: fifteen dimensions, one append-mode event fact, three deduped facts,
// two bridges and the data-quality log.
type Splitter struct {
	logger *slog.Logger
}

// NewSplitter creates a splitter. A nil logger falls back to the default.
func NewSplitter(logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{logger: logger}
}

// Result summarizes one normalization run.
type Result struct {
	SourceFile string
	SourceRows int
	Tables     []domain.ManifestEntry
	IssueCount int
}

// loanMasterFields is the merge order for the per-loan master record.
var loanMasterFields = []string{
	"borrower_last",
	"fund_date",
	"loan_amount",
	"fico",
	"forward_commitment",
	"builder_name",
	"purpose",
}

// Run streams the first worksheet of the source workbook and writes the
// normalized tables plus manifest.json under outDir. Value-level anomalies
// are logged and never abort the run; only structural workbook defects and
// I/O failures return an error.
func (s *Splitter) Run(ctx context.Context, sourcePath, outDir string) (*Result, error) {
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
	cols := ResolveColumns(rowToSlice(headerRow))

	set := exporter.NewTableSet()
	qlog := NewQualityLog(filepath.Base(sourcePath))

	dimCompany := NewDimension(set, "dim_company", "company_id", "company_code")
	dimVP := NewDimension(set, "dim_vp", "vp_id", "vp_name")
	dimState := NewDimension(set, "dim_state", "state_id", "state_code")
	dimReportingPeriod := NewDimension(set, "dim_reporting_period", "reporting_period_id",
		"bom_date", "report_period_start", "report_period_end")
	dimDepartment := NewDimension(set, "dim_department", "department_id",
		"dept_rollup_level_1", "dept_rollup_level_2")
	dimProduct := NewDimension(set, "dim_product", "product_id",
		"product_bucket_group", "product_unit_economics", "non_qm", "grx",
		"is_hedged", "pnl_loan_type", "sdm_fulfilment", "custom_lo_type")
	dimCompBucket := NewDimension(set, "dim_compensafe_bucket", "compensafe_bucket_id", "compensafe_bucket_name")
	dimAdjGroup := NewDimension(set, "dim_adj_type_group", "adj_type_group_id", "adj_type_group_name")
	dimAllocationBucket := NewDimension(set, "dim_allocation_bucket", "allocation_bucket_id", "allocation_bucket_name")
	dimInclusionReason := NewDimension(set, "dim_inclusion_reason", "inclusion_reason_id", "inclusion_reason_name")
	dimInsertUser := NewDimension(set, "dim_insert_user", "insert_user_id", "inserted_by")
	dimLoginBundle := NewDimension(set, "dim_login_bundle", "login_bundle_id",
		"bm_login_name_1", "bm_login_name_2", "bm_login_name_3",
		"rm_login_name_1", "rm_login_name_2", "dm_login_name_1")
	dimEmployee := NewDimension(set, "dim_employee", "employee_id",
		"employee_name", "employee_start_date", "termination_date", "employment_status")
	dimLoan := NewDimension(set, "dim_loan", "loan_id", append([]string{"loan_number"}, loanMasterFields...)...)
	// adj type depends on adj group, so its key carries the group id
	dimAdjType := NewDimension(set, "dim_adj_type", "adj_type_id", "adj_type_name", "adj_type_group_id")

	loanSnapshots := NewMergeFact("fact_loan_snapshot", "loan_snapshot_id",
		"loan_id", "reporting_period_id", "company_id", "state_id", "product_id",
		"funded_units_by_vp", "funded_volume_by_vp",
		"funded_units_in_cost_center", "funded_volume_in_cost_center",
		"forward_commitment", "source_insert_datetime")
	loanFinancials := NewMergeFact("fact_loan_financial_components", "loan_fin_component_id",
		"loan_id", "reporting_period_id",
		"los_revenue_bps", "los_revenue_amt",
		"gl_fee_income_bps", "gl_fee_income_amt",
		"gl_gos_bps", "gl_gos_amt",
		"gl_oi_bps", "gl_oi_amt",
		"gl_exception_bps", "gl_exception_amt",
		"llr_bps", "llr_amt",
		"corporate_allocation_bps", "corporate_allocation_amt",
		"corporate_allocation_after_exclusions_amt",
		"los_exception_bps", "los_exception_amt",
		"source_insert_datetime")
	workforce := NewMergeFact("fact_workforce_period_snapshot", "workforce_snapshot_id",
		"reporting_period_id", "company_id", "vp_id", "department_id",
		"active_sales_hc", "active_non_producing_sales_hc",
		"funded_units_in_cost_center", "funded_volume_in_cost_center",
		"funded_units_by_vp", "funded_volume_by_vp",
		"rent_bom_amt", "payroll_reg_earnings_bom_amt")

	events := set.Table("fact_compensafe_event")
	bridgeAttribution := set.Table("bridge_loan_org_attribution")
	bridgeVPEmployee := set.Table("bridge_vp_employee_map")

	bridgeKeys := make(map[string]struct{})
	vpEmployeeKeys := make(map[string]struct{})
	eventHashes := make(map[string]struct{})
	loanMasters := make(map[string]map[string]any)

	sourceRow := 1 // header
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

		companyCode := cols.Text(row, FieldCompanyCode)
		vpName := cols.Text(row, FieldVP)
		stateCode := cols.Text(row, FieldState)
		bomDate := cols.Date(row, FieldBOM)
		periodStart := cols.Date(row, FieldReportPeriodStart)
		periodEnd := cols.Date(row, FieldReportPeriodEnd)
		employeeName := cols.Text(row, FieldEmployeeName)
		insertTimestamp := cols.Timestamp(row, FieldInsertDatetime)

		companyID := dimCompany.Intern(strOrNil(companyCode))
		vpID := dimVP.Intern(strOrNil(vpName))
		stateID := dimState.Intern(strOrNil(stateCode))
		periodID := dimReportingPeriod.Intern(strOrNil(bomDate), strOrNil(periodStart), strOrNil(periodEnd))
		departmentID := dimDepartment.Intern(
			cols.TextValue(row, FieldDept1), cols.TextValue(row, FieldDept2))
		productID := dimProduct.Intern(
			cols.TextValue(row, FieldProductBucketGroup),
			cols.TextValue(row, FieldProductUnitEcon),
			cols.TextValue(row, FieldNonQM),
			cols.TextValue(row, FieldGRX),
			cols.TextValue(row, FieldIsHedged),
			cols.TextValue(row, FieldPnlLoanType),
			cols.TextValue(row, FieldSDMFulfilment),
			cols.TextValue(row, FieldCustomLOType))
		employeeID := dimEmployee.Intern(
			strOrNil(employeeName),
			strOrNil(cols.Date(row, FieldEmployeeStartDate)),
			strOrNil(cols.Date(row, FieldTerminationDate)),
			cols.TextValue(row, FieldEmploymentStatus))
		loginBundleID := dimLoginBundle.Intern(
			cols.TextValue(row, FieldBMLogin1),
			cols.TextValue(row, FieldBMLogin2),
			cols.TextValue(row, FieldBMLogin3),
			cols.TextValue(row, FieldRMLogin1),
			cols.TextValue(row, FieldRMLogin2),
			cols.TextValue(row, FieldDMLogin1))

		loanNumber := cols.Text(row, FieldLoanNumber)
		loanID := 0
		if loanNumber != "" {
			incoming := map[string]any{
				"borrower_last":      cols.TextValue(row, FieldBorrowerLast),
				"fund_date":          strOrNil(cols.Date(row, FieldFundDate)),
				"loan_amount":        cols.Number(row, FieldLoanAmount),
				"fico":               cols.Integer(row, FieldFICO),
				"forward_commitment": cols.TextValue(row, FieldForwardCommitment),
				"builder_name":       cols.TextValue(row, FieldBuilderName),
				"purpose":            cols.TextValue(row, FieldPurpose),
			}
			merged, seen := loanMasters[loanNumber]
			if !seen {
				merged = incoming
				loanMasters[loanNumber] = merged
			} else {
				for _, field := range loanMasterFields {
					v := incoming[field]
					if v == nil {
						continue
					}
					prior := merged[field]
					if prior == nil {
						merged[field] = v
					} else if prior != v {
						qlog.Add(domain.IssueInconsistentLoanMaster, loanNumber,
							fmt.Sprintf("%s: %v vs %v (source_row=%d)", field, prior, v, sourceRow))
					}
				}
			}
			loanID = dimLoan.Intern(
				loanNumber,
				merged["borrower_last"],
				merged["fund_date"],
				merged["loan_amount"],
				merged["fico"],
				merged["forward_commitment"],
				merged["builder_name"],
				merged["purpose"])
		}

		compBucketID := dimCompBucket.Intern(cols.TextValue(row, FieldCompensafeBucket))
		adjGroupID := dimAdjGroup.Intern(cols.TextValue(row, FieldAdjTypeGroup))
		adjTypeID := dimAdjType.Intern(cols.TextValue(row, FieldAdjType), idValue(adjGroupID))
		allocationBucketID := dimAllocationBucket.Intern(cols.TextValue(row, FieldAllocationBucket))
		inclusionReasonID := dimInclusionReason.Intern(cols.TextValue(row, FieldInclusionReason))
		insertUserID := dimInsertUser.Intern(cols.TextValue(row, FieldInsertedBy))

		if loanID != 0 {
			key := encodeKey([]any{loanID, periodID, companyID, vpID, employeeID, departmentID, stateID, productID})
			if _, dup := bridgeKeys[key]; !dup {
				bridgeKeys[key] = struct{}{}
				bridgeAttribution.Append(exporter.Row{
					"loan_org_attr_id":         len(bridgeKeys),
					"loan_id":                  loanID,
					"reporting_period_id":      idValue(periodID),
					"company_id":               idValue(companyID),
					"vp_id":                    idValue(vpID),
					"employee_id":              idValue(employeeID),
					"department_id":            idValue(departmentID),
					"state_id":                 idValue(stateID),
					"product_id":               idValue(productID),
					"login_bundle_id":          idValue(loginBundleID),
					"cost_center_manager_name": cols.TextValue(row, FieldCostCenterManager),
					"region_manager_name":      cols.TextValue(row, FieldRegionManager),
					"division_manager_name":    cols.TextValue(row, FieldDivisionManager),
					"attribution_source":       "Duke Data V4",
				})
			}
		}

		if vpID != 0 && employeeID != 0 && vpName == employeeName {
			key := encodeKey([]any{vpID, employeeID, "exact_name_match"})
			if _, dup := vpEmployeeKeys[key]; !dup {
				vpEmployeeKeys[key] = struct{}{}
				bridgeVPEmployee.Append(exporter.Row{
					"vp_employee_map_id": len(vpEmployeeKeys),
					"vp_id":              vpID,
					"employee_id":        employeeID,
					"mapping_method":     "exact_name_match",
					"is_active":          true,
				})
			}
		}

		if loanID != 0 {
			eventDate := cols.Date(row, FieldCompEventDate)
			eventHash := StableHash(
				loanNumber,
				eventDate,
				cols.Text(row, FieldAdjTypeGroup),
				cols.Text(row, FieldAdjType),
				cols.Text(row, FieldCompensafeBucket),
				cols.Text(row, FieldCompensafeAmt),
				employeeName,
				cols.Text(row, FieldInsertDatetime),
				sourceRow)
			if _, dup := eventHashes[eventHash]; dup {
				qlog.Add(domain.IssueDuplicateSourceRowHash, loanNumber,
					fmt.Sprintf("duplicate event hash at source_row=%d", sourceRow))
			} else {
				eventHashes[eventHash] = struct{}{}
			}
			events.Append(exporter.Row{
				"compensafe_event_id":          sourceRow - 1,
				"loan_id":                      loanID,
				"reporting_period_id":          idValue(periodID),
				"company_id":                   idValue(companyID),
				"vp_id":                        idValue(vpID),
				"employee_id":                  idValue(employeeID),
				"department_id":                idValue(departmentID),
				"state_id":                     idValue(stateID),
				"product_id":                   idValue(productID),
				"compensafe_event_date":        strOrNil(eventDate),
				"compensafe_bucket_id":         idValue(compBucketID),
				"adj_type_group_id":            idValue(adjGroupID),
				"adj_type_id":                  idValue(adjTypeID),
				"allocation_bucket_id":         idValue(allocationBucketID),
				"inclusion_reason_id":          idValue(inclusionReasonID),
				"insert_user_id":               idValue(insertUserID),
				"compensafe_bps":               cols.Number(row, FieldCompensafeBPS),
				"compensafe_amt":               cols.Number(row, FieldCompensafeAmt),
				"rent_bom_amt":                 cols.Number(row, FieldRentBOMAmt),
				"payroll_reg_earnings_bom_amt": cols.Number(row, FieldPayrollRegBOMAmt),
				"cra_traded_amt":               cols.Number(row, FieldCRATradedAmt),
				"spec_traded_amt":              cols.Number(row, FieldSpecTradedAmt),
				"spec_bulk_adj_amt":            cols.Number(row, FieldSpecBulkAdjAmt),
				"spec_paid_amt":                cols.Number(row, FieldSpecPaidAmt),
				"cra_paid_amt":                 cols.Number(row, FieldCRAPaidAmt),
				"net_spec_amt":                 cols.Number(row, FieldNetSpecAmt),
				"cra_net_amt":                  cols.Number(row, FieldCRANetAmt),
				"inserted_at":                  strOrNil(insertTimestamp),
				"source_row_hash":              eventHash,
			})
		}

		if loanID != 0 {
			grain := []any{loanID, periodID}
			loanSnapshots.Merge(grain, exporter.Row{
				"loan_id":                      loanID,
				"reporting_period_id":          idValue(periodID),
				"company_id":                   idValue(companyID),
				"state_id":                     idValue(stateID),
				"product_id":                   idValue(productID),
				"funded_units_by_vp":           cols.Number(row, FieldFundedUnitsByVP),
				"funded_volume_by_vp":          cols.Number(row, FieldFundedVolumeByVP),
				"funded_units_in_cost_center":  cols.Number(row, FieldFundedUnitsInCostCenter),
				"funded_volume_in_cost_center": cols.Number(row, FieldFundedVolumeInCostCenter),
				"forward_commitment":           cols.TextValue(row, FieldForwardCommitment),
				"source_insert_datetime":       strOrNil(insertTimestamp),
			}, qlog, sourceRow)

			loanFinancials.Merge(grain, exporter.Row{
				"loan_id":             loanID,
				"reporting_period_id": idValue(periodID),
				"los_revenue_bps":     cols.Number(row, FieldLOSRevenueBPS),
				"los_revenue_amt":     cols.Number(row, FieldLOSRevenueAmt),
				"gl_fee_income_bps":   cols.Number(row, FieldGLFeeIncomeBPS),
				"gl_fee_income_amt":   cols.Number(row, FieldGLFeeIncomeAmt),
				"gl_gos_bps":          cols.Number(row, FieldGLGOSBPS),
				"gl_gos_amt":          cols.Number(row, FieldGLGOSAmt),
				"gl_oi_bps":           cols.Number(row, FieldGLOIBPS),
				"gl_oi_amt":           cols.Number(row, FieldGLOIAmt),
				"gl_exception_bps":    cols.Number(row, FieldGLExceptionBPS),
				"gl_exception_amt":    cols.Number(row, FieldGLExceptionAmt),
				"llr_bps":             cols.Number(row, FieldLLRBPS),
				"llr_amt":             cols.Number(row, FieldLLRAmt),
				"corporate_allocation_bps": cols.Number(row, FieldCorpAllocBPS),
				"corporate_allocation_amt": cols.Number(row, FieldCorpAllocAmt),
				"corporate_allocation_after_exclusions_amt": cols.Number(row, FieldCorpAllocAfterExclAmt),
				"los_exception_bps":      cols.Number(row, FieldLOSExceptionBPS),
				"los_exception_amt":      cols.Number(row, FieldLOSExceptionAmt),
				"source_insert_datetime": strOrNil(insertTimestamp),
			}, qlog, sourceRow)
		}

		workforce.Merge([]any{periodID, companyID, vpID, departmentID}, exporter.Row{
			"reporting_period_id":           idValue(periodID),
			"company_id":                    idValue(companyID),
			"vp_id":                         idValue(vpID),
			"department_id":                 idValue(departmentID),
			"active_sales_hc":               cols.Number(row, FieldActiveSalesHC),
			"active_non_producing_sales_hc": cols.Number(row, FieldActiveNonProducingSalesHC),
			"funded_units_in_cost_center":   cols.Number(row, FieldFundedUnitsInCostCenter),
			"funded_volume_in_cost_center":  cols.Number(row, FieldFundedVolumeInCostCenter),
			"funded_units_by_vp":            cols.Number(row, FieldFundedUnitsByVP),
			"funded_volume_by_vp":           cols.Number(row, FieldFundedVolumeByVP),
			"rent_bom_amt":                  cols.Number(row, FieldRentBOMAmt),
			"payroll_reg_earnings_bom_amt":  cols.Number(row, FieldPayrollRegBOMAmt),
		}, qlog, sourceRow)
	}

	loanSnapshots.Flush(set)
	loanFinancials.Flush(set)
	workforce.Flush(set)
	qlog.Flush(set)

	entries, err := exporter.NewCSVWriter(outDir).FlushTableSet(set)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SourceFile: filepath.Base(sourcePath),
		SourceRows: sourceRow - 1,
		Tables:     entries,
		IssueCount: qlog.Len(),
	}
	s.logger.Info("normalization complete",
		slog.String("source_file", result.SourceFile),
		slog.Int("source_rows", result.SourceRows),
		slog.Int("table_count", len(result.Tables)),
		slog.Int("issue_count", result.IssueCount))
	return result, nil
}

// idValue maps the no-member id 0 to nil so foreign keys render as empty
// cells.
func idValue(id int) any {
	if id == 0 {
		return nil
	}
	return id
}

// rowToSlice widens a sparse row into a dense slice indexed by column.
// Cells without a resolvable reference carry index -1 and are dropped.
func rowToSlice(row workbook.Row) []string {
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
