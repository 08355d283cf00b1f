/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request types use the
  camelCase field names the back-office UI sends; ledger documents are
  returned as stored (recon types carry their own JSON tags).

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers
  - *DTO: Small shared shapes

TYPES:
  Reconciliation:
    CompareRequest, CompareResponse, DateRangeDTO

  Resolution:
    ResolveRequest, ResolveSAPRequest

  Bank:
    BankRunRequest, BankRunResponse, ManualBankMatchRequest,
    ResolveBankRequest, BankStatusRequest

  Suggestions:
    SuggestionsResponse

  Collaborator ingest:
    IngestSAPRequest, IngestBankRequest

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and in the recon package, not in DTOs.
  Dates are carried as strings so a malformed date is reported as a field
  error rather than a generic decode failure.

SEE ALSO:
  - handlers.go: Uses these types
  - recon/types.go: Ledger document types
*/
package api

import (
	"github.com/warp/reconciliation-engine/recon"
)

// =============================================================================
// RECONCILIATION
// =============================================================================

// DateRangeDTO is an inclusive date range, "2006-01-02" (RFC3339 accepted).
type DateRangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CompareRequest runs a reconciliation for a date range.
type CompareRequest struct {
	ExcelData []recon.DailySales `json:"excelData"`
	DateRange *DateRangeDTO      `json:"dateRange"`
}

// CompareResponse is the reconciliation outcome. Created is false when the
// range already had a ledger and it was returned unchanged.
type CompareResponse struct {
	AnalysisID               string                         `json:"analysisId"`
	Created                  bool                           `json:"created"`
	DateRange                recon.DateRange                `json:"dateRange"`
	Matches                  map[string][]recon.Match       `json:"matches"`
	ExcelDiscrepancies       map[string][]recon.Discrepancy `json:"excelDiscrepancies"`
	SAPDiscrepancies         []recon.SAPRecord              `json:"sapDiscrepancies"`
	ExtendedSAPDiscrepancies []recon.SAPRecord              `json:"extendedSapDiscrepancies"`
	POSAnalysis              recon.POSAnalysis              `json:"posAnalysis"`
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveRequest resolves an excel discrepancy. DiscrepancyID is preferred;
// Category + Index address it by position.
type ResolveRequest struct {
	AnalysisID      string                 `json:"analysisId"`
	DiscrepancyID   string                 `json:"discrepancyId,omitempty"`
	Category        string                 `json:"category,omitempty"`
	Index           *int                   `json:"index,omitempty"`
	Resolution      string                 `json:"resolution"`
	ResolvedBy      string                 `json:"resolvedBy,omitempty"`
	MatchedInvoices []recon.MatchedInvoice `json:"matchedInvoices"`
}

// ResolveSAPRequest resolves an SAP discrepancy.
type ResolveSAPRequest struct {
	AnalysisID          string                     `json:"analysisId"`
	SAPInvoiceID        string                     `json:"sapInvoiceId"`
	Resolution          string                     `json:"resolution"`
	ResolvedBy          string                     `json:"resolvedBy,omitempty"`
	MatchedTransactions []recon.MatchedTransaction `json:"matchedTransactions"`
}

// =============================================================================
// BANK
// =============================================================================

// BankRunRequest runs the bank pass. A missing dateRange means all data.
type BankRunRequest struct {
	AnalysisID string        `json:"analysisId"`
	DateRange  *DateRangeDTO `json:"dateRange,omitempty"`
}

// BankRunResponse carries the filtered view at the top level and the full
// sub-ledger under fullReconciliation.
type BankRunResponse struct {
	AnalysisID         string                  `json:"analysisId"`
	Added              int                     `json:"added"`
	Matches            []recon.BankMatch       `json:"matches"`
	Discrepancies      []recon.BankDiscrepancy `json:"discrepancies"`
	Summary            recon.BankSummary       `json:"summary"`
	FullReconciliation recon.BankView          `json:"fullReconciliation"`
}

// ManualBankMatchRequest records an operator's bank match.
type ManualBankMatchRequest struct {
	AnalysisID    string                   `json:"analysisId"`
	BankStatement recon.BankStatement      `json:"bankStatement"`
	ExcelMatch    recon.MatchedTransaction `json:"excelMatch"`
	MatchSource   string                   `json:"matchSource,omitempty"`
	Resolution    string                   `json:"resolution"`
	Date          string                   `json:"date,omitempty"`
}

// ResolveBankRequest resolves an unmatched bank statement.
type ResolveBankRequest struct {
	AnalysisID          string                     `json:"analysisId"`
	BankStatementID     string                     `json:"bankStatementId"`
	Resolution          string                     `json:"resolution"`
	MatchedTransactions []recon.MatchedTransaction `json:"matchedTransactions"`
}

// BankStatusRequest moves a bank match along pending/confirmed/resolved.
type BankStatusRequest struct {
	AnalysisID      string `json:"analysisId"`
	BankStatementID string `json:"bankStatementId"`
	Status          string `json:"status"`
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

type SuggestionsResponse struct {
	SAPRecord   recon.SAPRecord    `json:"sapRecord"`
	Suggestions []recon.Suggestion `json:"suggestions"`
}

// =============================================================================
// COLLABORATOR INGEST
// =============================================================================

type IngestSAPRequest struct {
	Records []recon.SAPRecord `json:"records"`
}

type IngestBankRequest struct {
	Statements []recon.BankStatement `json:"statements"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "matching", "bank" or "resolution"
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func newCompareResponse(l *recon.Ledger, created bool) CompareResponse {
	return CompareResponse{
		AnalysisID:               l.ID,
		Created:                  created,
		DateRange:                l.DateRange,
		Matches:                  l.Matches,
		ExcelDiscrepancies:       l.ExcelDiscrepancies,
		SAPDiscrepancies:         l.SAPDiscrepancies,
		ExtendedSAPDiscrepancies: l.ExtendedSAPDiscrepancies,
		POSAnalysis:              l.POSAnalysis,
	}
}

// toDateRange parses both bounds and validates the range.
func (d *DateRangeDTO) toDateRange() (recon.DateRange, error) {
	if d == nil {
		return recon.DateRange{}, &recon.ValidationError{
			Field: "dateRange", Message: "date range is required", Err: recon.ErrInvalidDateRange,
		}
	}
	start, err := parseDateField("dateRange.start", d.Start)
	if err != nil {
		return recon.DateRange{}, err
	}
	end, err := parseDateField("dateRange.end", d.End)
	if err != nil {
		return recon.DateRange{}, err
	}
	r := recon.DateRange{Start: start, End: end}
	return r, r.Validate()
}

func parseDateField(field, value string) (recon.Date, error) {
	if value == "" {
		return recon.Date{}, &recon.ValidationError{Field: field, Message: "is required", Err: recon.ErrInvalidDateRange}
	}
	d, err := recon.ParseDate(value)
	if err != nil {
		return recon.Date{}, &recon.ValidationError{Field: field, Message: "malformed date " + value, Err: recon.ErrInvalidDateRange}
	}
	return d, nil
}
