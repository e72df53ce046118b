package dataprocessing

import (
	"loanetl/internal/normalize"
	"loanetl/internal/workbook"
)

// Field identifies one logical source column of the wide extract. The
// catalog below maps each field to the header patterns it is resolved by, so
// the pipeline survives cosmetic header renames between extract versions.
type Field int

const (
	FieldBOM Field = iota
	FieldFundDate
	FieldCompanyCode
	FieldLoanNumber
	FieldBorrowerLast
	FieldVP
	FieldCompEventDate
	FieldTerminationDate
	FieldEmploymentStatus
	FieldCostCenterManager
	FieldRegionManager
	FieldDivisionManager
	FieldBMLogin1
	FieldBMLogin2
	FieldBMLogin3
	FieldRMLogin1
	FieldRMLogin2
	FieldDMLogin1
	FieldState
	FieldFICO
	FieldProductBucketGroup
	FieldProductUnitEcon
	FieldNonQM
	FieldGRX
	FieldIsHedged
	FieldPnlLoanType
	FieldSDMFulfilment
	FieldCustomLOType
	FieldLoanAmount
	FieldLOSRevenueBPS
	FieldLOSRevenueAmt
	FieldGLFeeIncomeBPS
	FieldGLFeeIncomeAmt
	FieldGLGOSBPS
	FieldGLGOSAmt
	FieldGLOIBPS
	FieldGLOIAmt
	FieldGLExceptionBPS
	FieldGLExceptionAmt
	FieldLLRBPS
	FieldLLRAmt
	FieldCorpAllocBPS
	FieldCorpAllocAmt
	FieldCorpAllocAfterExclAmt
	FieldLOSExceptionBPS
	FieldLOSExceptionAmt
	FieldRentBOMAmt
	FieldPayrollRegBOMAmt
	FieldCRATradedAmt
	FieldSpecTradedAmt
	FieldSpecBulkAdjAmt
	FieldSpecPaidAmt
	FieldCRAPaidAmt
	FieldNetSpecAmt
	FieldCRANetAmt
	FieldActiveSalesHC
	FieldActiveNonProducingSalesHC
	FieldFundedUnitsInCostCenter
	FieldFundedVolumeInCostCenter
	FieldFundedUnitsByVP
	FieldFundedVolumeByVP
	FieldEmployeeName
	FieldEmployeeStartDate
	FieldDept1
	FieldDept2
	FieldAdjType
	FieldAdjTypeGroup
	FieldAllocationBucket
	FieldCompensafeBucket
	FieldCompensafeBPS
	FieldCompensafeAmt
	FieldReportPeriodStart
	FieldReportPeriodEnd
	FieldInclusionReason
	FieldForwardCommitment
	FieldBuilderName
	FieldInsertedBy
	FieldInsertDatetime
	FieldPurpose

	numFields
)

var fieldPatterns = [numFields][]string{
	FieldBOM:                       {"BOM"},
	FieldFundDate:                  {"FundDate"},
	FieldCompanyCode:               {"CompanyCode"},
	FieldLoanNumber:                {"Loannumber"},
	FieldBorrowerLast:              {"BorrowerLast"},
	FieldVP:                        {"VP"},
	FieldCompEventDate:             {"StartDate"},
	FieldTerminationDate:           {"TerminationDate"},
	FieldEmploymentStatus:          {"EmploymentStatus"},
	FieldCostCenterManager:         {"CostCenterManagers"},
	FieldRegionManager:             {"RegionManager"},
	FieldDivisionManager:           {"DivisionManagerName"},
	FieldBMLogin1:                  {"BM LoginName 1"},
	FieldBMLogin2:                  {"BM LoginName 2"},
	FieldBMLogin3:                  {"BM LoginName 3"},
	FieldRMLogin1:                  {"RM LoginName 1"},
	FieldRMLogin2:                  {"RM LoginName 2"},
	FieldDMLogin1:                  {"DM LoginName 1"},
	FieldState:                     {"SubjectPropertyState"},
	FieldFICO:                      {"FICO"},
	FieldProductBucketGroup:        {"ProductBucketGroup"},
	FieldProductUnitEcon:           {"ProductUnitEconomics"},
	FieldNonQM:                     {"NonQm"},
	FieldGRX:                       {"GRX"},
	FieldIsHedged:                  {"isHedged"},
	FieldPnlLoanType:               {"P&L Loan Type"},
	FieldSDMFulfilment:             {"SDM Fulfilment"},
	FieldCustomLOType:              {"Custom LO Type"},
	FieldLoanAmount:                {"LoanAmount"},
	FieldLOSRevenueBPS:             {"LOS Revenue BPS"},
	FieldLOSRevenueAmt:             {"LOS Revenue $"},
	FieldGLFeeIncomeBPS:            {"GL Fee Income BPS"},
	FieldGLFeeIncomeAmt:            {"GL Fee Income $"},
	FieldGLGOSBPS:                  {"GL GOS BPS"},
	FieldGLGOSAmt:                  {"GL GOS $"},
	FieldGLOIBPS:                   {"GL OI BPS"},
	FieldGLOIAmt:                   {"GL OI $"},
	FieldGLExceptionBPS:            {"GL Exception BPS"},
	FieldGLExceptionAmt:            {"GL Exception $"},
	FieldLLRBPS:                    {"LLR BPS"},
	FieldLLRAmt:                    {"LLR $"},
	FieldCorpAllocBPS:              {"Corporate Allocation BPS"},
	FieldCorpAllocAmt:              {"Corporate Allocation $"},
	FieldCorpAllocAfterExclAmt:     {"Corporate Allocation $ (after exclusions)"},
	FieldLOSExceptionBPS:           {"LOS Exception BPS"},
	FieldLOSExceptionAmt:           {"LOS Exception $"},
	FieldRentBOMAmt:                {"Rent $ (BOM)"},
	FieldPayrollRegBOMAmt:          {"Payroll Reg Earnings $ (BOM)"},
	FieldCRATradedAmt:              {"CRA Traded $"},
	FieldSpecTradedAmt:             {"Spec Traded $"},
	FieldSpecBulkAdjAmt:            {"SPEC BulkAdj $"},
	FieldSpecPaidAmt:               {"SPEC Paid $"},
	FieldCRAPaidAmt:                {"CRA Paid $"},
	FieldNetSpecAmt:                {"Net Spec $"},
	FieldCRANetAmt:                 {"CRA Net $"},
	FieldActiveSalesHC:             {"ActiveSalesHC"},
	FieldActiveNonProducingSalesHC: {"ActiveNonProducingSalesHC"},
	FieldFundedUnitsInCostCenter:   {"FundedUnitsInCostCenter"},
	FieldFundedVolumeInCostCenter:  {"FundedVolumeInCostCenter"},
	FieldFundedUnitsByVP:           {"FundedUnitsByVP"},
	FieldFundedVolumeByVP:          {"FundedVolumeByVP"},
	FieldEmployeeName:              {"EmployeeName"},
	FieldEmployeeStartDate:         {"EmployeeNameStartDate"},
	FieldDept1:                     {"Department Rollup Level 1"},
	FieldDept2:                     {"Department Rollup Level 2"},
	FieldAdjType:                   {"Adj Type"},
	FieldAdjTypeGroup:              {"Adj Type Group"},
	FieldAllocationBucket:          {"AllocationBucketNew"},
	FieldCompensafeBucket:          {"CompensafeBucket"},
	FieldCompensafeBPS:             {"Compensafe BPS"},
	FieldCompensafeAmt:             {"Compensafe $"},
	FieldReportPeriodStart:         {"ReportPeriodStart"},
	FieldReportPeriodEnd:           {"ReportPeriodEnd"},
	FieldInclusionReason:           {"Inclusion Reason"},
	FieldForwardCommitment:         {"Forward Commitment"},
	FieldBuilderName:               {"Builder Name"},
	FieldInsertedBy:                {"InsertedBy"},
	FieldInsertDatetime:            {"InsertDatetime"},
	FieldPurpose:                   {"Purpose"},
}

// Columns maps each field to its resolved column index, -1 when the header
// is absent from the extract.
type Columns [numFields]int

// ResolveColumns matches the header row against the field catalog.
func ResolveColumns(headers []string) Columns {
	var c Columns
	for f := Field(0); f < numFields; f++ {
		c[f] = normalize.PickColumn(headers, fieldPatterns[f]...)
	}
	return c
}

// Text returns the cleaned cell text for a field, "" when the column is
// unresolved or the cell is absent.
func (c *Columns) Text(row workbook.Row, f Field) string {
	idx := c[f]
	if idx < 0 {
		return ""
	}
	return normalize.CleanText(row[idx])
}

// TextValue is Text with the absent value mapped to nil for table output.
func (c *Columns) TextValue(row workbook.Row, f Field) any {
	return strOrNil(c.Text(row, f))
}

// Number parses a field as a number, nil when absent or malformed.
func (c *Columns) Number(row workbook.Row, f Field) any {
	x, ok := normalize.ToNumber(c.Text(row, f))
	if !ok {
		return nil
	}
	return x
}

// Integer parses a field as a rounded integer, nil when absent or malformed.
func (c *Columns) Integer(row workbook.Row, f Field) any {
	x, ok := normalize.ToInteger(c.Text(row, f))
	if !ok {
		return nil
	}
	return x
}

// Date converts a field from a day serial to an ISO date, "" when absent.
func (c *Columns) Date(row workbook.Row, f Field) string {
	return normalize.DateFromSerial(c.Text(row, f))
}

// Timestamp converts a field from a day serial to a timestamp, "" when
// absent.
func (c *Columns) Timestamp(row workbook.Row, f Field) string {
	return normalize.TimestampFromSerial(c.Text(row, f))
}

// strOrNil maps the empty string to nil so absent text renders as an empty
// cell rather than an empty quoted string.
func strOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
