/*
handlers.go - HTTP API handlers for the reconciliation back office

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to recon.Service.

ENDPOINTS:
  Reconciliation:
    POST   /api/analysis/compare            Run excel/SAP reconciliation
    GET    /api/analysis?start=&end=        Ledger by date range
    GET    /api/analysis/{id}               Ledger by id
    GET    /api/analysis/{id}/suggestions   Ranked candidates for an SAP doc

  Resolution:
    POST   /api/analysis/resolve            Resolve excel discrepancy
    POST   /api/analysis/resolve-sap        Resolve SAP discrepancy

  Bank:
    POST   /api/analysis/bank               Run bank reconciliation
    POST   /api/analysis/bank/match         Manual bank match
    POST   /api/analysis/bank/resolve       Resolve bank discrepancy
    POST   /api/analysis/bank/status        Update bank match status

  Collaborator data:
    POST   /api/sap-records                 Upsert SAP documents
    POST   /api/bank-statements             Upsert bank statements
    GET    /api/daily-sales/{id}            Daily sales sheet (verified flags)

  Scheduler (when enabled):
    GET    /api/scheduler/status            Last automated bank pass
    POST   /api/scheduler/run               Run the bank pass on all ledgers

  Scenarios:
    GET    /api/scenarios                   List demo scenarios
    POST   /api/scenarios/load              Load a demo scenario
    POST   /api/scenarios/reset             Clear all data

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (dates before any matching work)
  3. Call recon.Service
  4. Serialize response
  5. Map errors with writeDomainError

ERROR HANDLING:
  Errors are returned as JSON {error, details} with HTTP status:
  - 400: Validation errors, invalid input
  - 404: Ledger, discrepancy, statement or SAP record not found
  - 409: Already resolved, manual match exists, concurrent modification
  - 500: Internal errors (logged)

SECURITY NOTE:
  No authentication or tenant routing here; both run upstream.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/reconciliation-engine/recon"
	"github.com/warp/reconciliation-engine/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *recon.Service
	log     *zap.Logger

	// Scheduler is optional; its routes are mounted when set.
	Scheduler *BankScheduler

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler. The store serves both as repository
// and as the sales annotator.
func NewHandler(store *sqlite.Store, cfg recon.MatchingConfig, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:   store,
		Service: recon.NewService(store, store, cfg, log.Named("recon")),
		log:     log.Named("api"),
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Compare runs (or returns) the reconciliation for a date range.
// POST /api/analysis/compare
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	dr, err := req.DateRange.toDateRange()
	if err != nil {
		h.writeDomainError(w, "Invalid date range", err)
		return
	}

	ledger, created, err := h.Service.Compare(r.Context(), dr, req.ExcelData)
	if err != nil {
		h.writeDomainError(w, "Failed to run reconciliation", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, newCompareResponse(ledger, created))
}

// GetAnalysis returns a ledger by id.
// GET /api/analysis/{id}
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.Service.GetLedger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

// FindAnalysis returns the ledger of a date range.
// GET /api/analysis?start=2024-03-01&end=2024-03-31
func (h *Handler) FindAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dto := &DateRangeDTO{Start: q.Get("start"), End: q.Get("end")}
	dr, err := dto.toDateRange()
	if err != nil {
		h.writeDomainError(w, "Invalid date range", err)
		return
	}

	ledger, err := h.Service.FindLedger(r.Context(), dr)
	if err != nil {
		h.writeDomainError(w, "Failed to find analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

// Suggestions ranks open excel discrepancies for an SAP discrepancy.
// GET /api/analysis/{id}/suggestions?sapInvoiceId=...
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ledgerID := chi.URLParam(r, "id")
	sapID := r.URL.Query().Get("sapInvoiceId")
	if sapID == "" {
		writeError(w, http.StatusBadRequest, "sapInvoiceId is required", nil)
		return
	}

	sap, suggestions, err := h.Service.Suggest(r.Context(), ledgerID, sapID)
	if err != nil {
		h.writeDomainError(w, "Failed to suggest matches", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{SAPRecord: *sap, Suggestions: suggestions})
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve resolves an excel discrepancy.
// POST /api/analysis/resolve
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AnalysisID == "" {
		writeError(w, http.StatusBadRequest, "analysisId is required", nil)
		return
	}

	result, err := h.Service.ResolveExcel(r.Context(), req.AnalysisID, recon.ExcelResolution{
		DiscrepancyID:   req.DiscrepancyID,
		Category:        req.Category,
		Index:           req.Index,
		Resolution:      req.Resolution,
		ResolvedBy:      req.ResolvedBy,
		MatchedInvoices: req.MatchedInvoices,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to resolve discrepancy", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ResolveSAP resolves an SAP discrepancy and flags the matched sales lines
// verified.
// POST /api/analysis/resolve-sap
func (h *Handler) ResolveSAP(w http.ResponseWriter, r *http.Request) {
	var req ResolveSAPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AnalysisID == "" {
		writeError(w, http.StatusBadRequest, "analysisId is required", nil)
		return
	}

	result, err := h.Service.ResolveSAP(r.Context(), req.AnalysisID, recon.SAPResolution{
		SAPRecordID:         req.SAPInvoiceID,
		Resolution:          req.Resolution,
		ResolvedBy:          req.ResolvedBy,
		MatchedTransactions: req.MatchedTransactions,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to resolve SAP discrepancy", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// BANK
// =============================================================================

// RunBank matches bank statements against a stored ledger.
// POST /api/analysis/bank
func (h *Handler) RunBank(w http.ResponseWriter, r *http.Request) {
	var req BankRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AnalysisID == "" {
		writeError(w, http.StatusBadRequest, "analysisId is required", nil)
		return
	}

	var dr *recon.DateRange
	if req.DateRange != nil {
		parsed, err := req.DateRange.toDateRange()
		if err != nil {
			h.writeDomainError(w, "Invalid date range", err)
			return
		}
		dr = &parsed
	}

	run, err := h.Service.RunBank(r.Context(), req.AnalysisID, dr)
	if err != nil {
		h.writeDomainError(w, "Failed to run bank reconciliation", err)
		return
	}

	writeJSON(w, http.StatusOK, BankRunResponse{
		AnalysisID:         req.AnalysisID,
		Added:              run.Added,
		Matches:            run.View.Matches,
		Discrepancies:      run.View.Discrepancies,
		Summary:            run.View.Summary,
		FullReconciliation: run.Full,
	})
}

// MatchToBank records a manual bank match.
// POST /api/analysis/bank/match
func (h *Handler) MatchToBank(w http.ResponseWriter, r *http.Request) {
	var req ManualBankMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AnalysisID == "" {
		writeError(w, http.StatusBadRequest, "analysisId is required", nil)
		return
	}

	var date recon.Date
	if req.Date != "" {
		parsed, err := parseDateField("date", req.Date)
		if err != nil {
			h.writeDomainError(w, "Invalid date", err)
			return
		}
		date = parsed
	}

	match, err := h.Service.MatchToBank(r.Context(), req.AnalysisID, recon.ManualBankMatch{
		Statement:   req.BankStatement,
		Transaction: req.ExcelMatch,
		Source:      recon.MatchSource(req.MatchSource),
		Resolution:  req.Resolution,
		Date:        date,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to match bank statement", err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// ResolveBank resolves an unmatched bank statement.
// POST /api/analysis/bank/resolve
func (h *Handler) ResolveBank(w http.ResponseWriter, r *http.Request) {
	var req ResolveBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AnalysisID == "" {
		writeError(w, http.StatusBadRequest, "analysisId is required", nil)
		return
	}

	resolved, err := h.Service.ResolveBank(r.Context(), req.AnalysisID, recon.BankResolution{
		BankStatementID:     req.BankStatementID,
		Resolution:          req.Resolution,
		MatchedTransactions: req.MatchedTransactions,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to resolve bank discrepancy", err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

// UpdateBankStatus moves a bank match along its workflow.
// POST /api/analysis/bank/status
func (h *Handler) UpdateBankStatus(w http.ResponseWriter, r *http.Request) {
	var req BankStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AnalysisID == "" || req.BankStatementID == "" {
		writeError(w, http.StatusBadRequest, "analysisId and bankStatementId are required", nil)
		return
	}

	updated, err := h.Service.UpdateBankStatus(r.Context(), req.AnalysisID, req.BankStatementID, recon.BankMatchStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, "Failed to update bank match status", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// =============================================================================
// COLLABORATOR DATA
// =============================================================================

// IngestSAPRecords upserts SAP documents.
// POST /api/sap-records
func (h *Handler) IngestSAPRecords(w http.ResponseWriter, r *http.Request) {
	var req IngestSAPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Service.IngestSAPRecords(r.Context(), req.Records); err != nil {
		h.writeDomainError(w, "Failed to save SAP records", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(req.Records)})
}

// IngestBankStatements upserts bank statement lines.
// POST /api/bank-statements
func (h *Handler) IngestBankStatements(w http.ResponseWriter, r *http.Request) {
	var req IngestBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Service.IngestBankStatements(r.Context(), req.Statements); err != nil {
		h.writeDomainError(w, "Failed to save bank statements", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(req.Statements)})
}

// GetDailySales returns a daily sales sheet.
// GET /api/daily-sales/{id}
func (h *Handler) GetDailySales(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Service.DailySales(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get daily sales", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps recon errors to HTTP statuses. Unexpected errors are
// logged before the 500 goes out.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case recon.IsNotFound(err):
		writeErrorCode(w, http.StatusNotFound, "not_found", message, err)
	case recon.IsClientError(err):
		writeErrorCode(w, http.StatusBadRequest, "invalid_input", message, err)
	case recon.IsConflict(err):
		writeErrorCode(w, http.StatusConflict, "conflict", message, err)
	default:
		h.log.Error(message, zap.Error(err))
		writeErrorCode(w, http.StatusInternalServerError, "internal", message, err)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string, err error) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}
