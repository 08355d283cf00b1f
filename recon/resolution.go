/*
resolution.go - Manual resolution workflow

PURPOSE:
  Operators close what the automatic passes could not. Every operation here
  mutates a Ledger in memory; the Service persists the result as a single
  revision-checked update.

STATE MACHINE (per discrepancy):
  unresolved -> resolved    terminal, resolving twice is ErrAlreadyResolved

OPERATIONS:
  ResolveExcelDiscrepancy  excel line -> chosen SAP documents
                           appends to Matches["Resolved and Matched"]
  ResolveSAPDiscrepancy    SAP document -> chosen sales transactions
                           appends to Matches["SAP Resolved Matches"] and
                           returns the sales lines to mark verified
  ResolveBankDiscrepancy   closes an unmatched bank statement
  MatchToBank              manual bank match, bypasses scoring
  UpdateBankMatchStatus    pending -> confirmed -> resolved

ADDITIVE:
  Nothing is deleted. Resolved discrepancies stay in their arrays flagged
  resolved, and the synthetic categories only ever gain entries. The single
  exception is MatchToBank, which drops the derived "unmatched" bank
  discrepancy of the statement it matches (bank discrepancies are a view
  rebuilt on every bank pass).

SEE ALSO:
  - service.go: Load, mutate, save with retry
  - store.go: SalesRecordAnnotator
*/
package recon

import (
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// EXCEL DISCREPANCIES
// =============================================================================

// ExcelResolution resolves one excel discrepancy. DiscrepancyID is the
// preferred address; Category with Index is the positional fallback.
type ExcelResolution struct {
	DiscrepancyID   string
	Category        string
	Index           *int
	Resolution      string
	ResolvedBy      string
	MatchedInvoices []MatchedInvoice
}

type ExcelResolutionResult struct {
	Discrepancy Discrepancy `json:"discrepancy"`
	Matches     []Match     `json:"matches"`
}

// locateExcelDiscrepancy returns the category and position of a discrepancy.
func (l *Ledger) locateExcelDiscrepancy(id, category string, index *int) (string, int, error) {
	if id != "" {
		for _, cat := range sortedKeys(l.ExcelDiscrepancies) {
			if category != "" && cat != category {
				continue
			}
			for i, d := range l.ExcelDiscrepancies[cat] {
				if d.ID == id {
					return cat, i, nil
				}
			}
		}
		return "", 0, notFound("discrepancy", id, ErrDiscrepancyNotFound)
	}

	if category == "" || index == nil {
		return "", 0, invalid("discrepancyId", "discrepancy id or category and index required")
	}
	list, ok := l.ExcelDiscrepancies[category]
	if !ok || *index < 0 || *index >= len(list) {
		return "", 0, notFound("discrepancy", positionalID(category, *index), ErrDiscrepancyNotFound)
	}
	return category, *index, nil
}

func positionalID(category string, index int) string {
	return category + "[" + strconv.Itoa(index) + "]"
}

// ResolveExcelDiscrepancy marks an excel discrepancy resolved against the
// operator's chosen invoices and appends one resolved match per invoice.
func (l *Ledger) ResolveExcelDiscrepancy(req ExcelResolution, now time.Time) (*ExcelResolutionResult, error) {
	if len(req.MatchedInvoices) == 0 {
		return nil, invalid("matchedInvoices", "at least one matched invoice is required")
	}
	for _, inv := range req.MatchedInvoices {
		if strings.TrimSpace(inv.TargetRef) == "" {
			return nil, invalid("matchedInvoices", "targetRef is required")
		}
	}

	category, i, err := l.locateExcelDiscrepancy(req.DiscrepancyID, req.Category, req.Index)
	if err != nil {
		return nil, err
	}
	l.ensureCollections()
	d := &l.ExcelDiscrepancies[category][i]
	if d.Resolved {
		return nil, ErrAlreadyResolved
	}

	ts := now
	d.Resolved = true
	d.Resolution = req.Resolution
	d.ResolvedTimestamp = &ts
	d.ResolvedBy = req.ResolvedBy
	d.MatchedInvoices = append([]MatchedInvoice(nil), req.MatchedInvoices...)

	var added []Match
	for _, inv := range req.MatchedInvoices {
		added = append(added, Match{
			Date:               d.Date,
			SourceID:           d.ID,
			TargetID:           inv.TargetRef,
			SourceClientName:   d.Client,
			TargetCustomerName: inv.CustomerName,
			SourceAmount:       d.Amount,
			TargetAmount:       inv.TargetAmount,
			TargetDate:         inv.DocDate,
			TargetDocNum:       inv.DocNum,
			Category:           CategoryResolvedExcel,
			ConfidenceScore:    ExactScore,
			Remarks:            d.Remarks,
			IsResolved:         true,
			Resolution:         req.Resolution,
			SalesRef:           d.SalesRef,
		})
	}
	l.Matches[CategoryResolvedExcel] = append(l.Matches[CategoryResolvedExcel], added...)
	l.UpdatedAt = now

	return &ExcelResolutionResult{Discrepancy: *d, Matches: added}, nil
}

// =============================================================================
// SAP DISCREPANCIES
// =============================================================================

type SAPResolution struct {
	SAPRecordID         string
	Resolution          string
	ResolvedBy          string
	MatchedTransactions []MatchedTransaction
}

type SAPResolutionResult struct {
	Record  SAPRecord `json:"sapRecord"`
	Matches []Match   `json:"matches"`
	// Verify lists the sales lines to flag verified once the ledger is saved.
	Verify []SalesRef `json:"-"`
}

// ResolveSAPDiscrepancy marks every copy of an SAP discrepancy (regular and
// extended lists) resolved and appends one resolved match per transaction.
func (l *Ledger) ResolveSAPDiscrepancy(req SAPResolution, now time.Time) (*SAPResolutionResult, error) {
	if strings.TrimSpace(req.SAPRecordID) == "" {
		return nil, invalid("sapInvoiceId", "is required")
	}
	if len(req.MatchedTransactions) == 0 {
		return nil, invalid("matchedTransactions", "at least one matched transaction is required")
	}

	copies := l.findSAPDiscrepancy(req.SAPRecordID)
	if len(copies) == 0 {
		return nil, notFound("sap record", req.SAPRecordID, ErrSAPRecordNotFound)
	}
	if copies[0].Resolved {
		return nil, ErrAlreadyResolved
	}

	l.ensureCollections()
	txs := make([]MatchedTransaction, len(req.MatchedTransactions))
	for i, tx := range req.MatchedTransactions {
		if tx.SalesRef == nil {
			tx.SalesRef = l.salesRefOf(tx.Ref)
		}
		txs[i] = tx
	}

	ts := now
	for _, rec := range copies {
		rec.Resolved = true
		rec.Resolution = req.Resolution
		rec.ResolvedTimestamp = &ts
		rec.ResolvedBy = req.ResolvedBy
		rec.MatchedTransactions = txs
	}
	sap := *copies[0]

	result := &SAPResolutionResult{Record: sap}
	for _, tx := range txs {
		result.Matches = append(result.Matches, Match{
			Date:               tx.Date,
			SourceID:           tx.Ref,
			TargetID:           sap.ID,
			SourceClientName:   tx.Client,
			TargetCustomerName: sap.CardName,
			SourceAmount:       tx.Amount,
			TargetAmount:       sap.DocTotal,
			TargetDate:         sap.DocDate,
			TargetDocNum:       sap.DocNum,
			Category:           CategoryResolvedSAP,
			ConfidenceScore:    ExactScore,
			IsResolved:         true,
			Resolution:         req.Resolution,
			SalesRef:           tx.SalesRef,
		})
		if tx.SalesRef != nil {
			result.Verify = append(result.Verify, *tx.SalesRef)
		}
	}
	l.Matches[CategoryResolvedSAP] = append(l.Matches[CategoryResolvedSAP], result.Matches...)
	l.UpdatedAt = now
	return result, nil
}

// salesRefOf finds the sales line behind a flattened record id.
func (l *Ledger) salesRefOf(id string) *SalesRef {
	if id == "" {
		return nil
	}
	for _, ds := range l.ExcelDiscrepancies {
		for _, d := range ds {
			if d.ID == id && d.SalesRef != nil {
				ref := *d.SalesRef
				return &ref
			}
		}
	}
	for _, ms := range l.Matches {
		for _, m := range ms {
			if m.SourceID == id && m.SalesRef != nil {
				ref := *m.SalesRef
				return &ref
			}
		}
	}
	return nil
}

// =============================================================================
// BANK
// =============================================================================

type BankResolution struct {
	BankStatementID     string
	Resolution          string
	MatchedTransactions []MatchedTransaction
}

// ResolveBankDiscrepancy closes an unmatched bank statement.
func (l *Ledger) ResolveBankDiscrepancy(req BankResolution, now time.Time) (*BankDiscrepancy, error) {
	if strings.TrimSpace(req.BankStatementID) == "" {
		return nil, invalid("bankStatementId", "is required")
	}
	bank := &l.BankReconciliation
	for i := range bank.Discrepancies {
		d := &bank.Discrepancies[i]
		if d.BankStatementRef != req.BankStatementID {
			continue
		}
		if d.Status == BankDiscrepancyResolved {
			return nil, ErrAlreadyResolved
		}
		ts := now
		d.Status = BankDiscrepancyResolved
		d.Resolution = req.Resolution
		d.ResolvedTimestamp = &ts
		d.MatchedTransactions = append([]MatchedTransaction(nil), req.MatchedTransactions...)

		bank.Summary = SummarizeBank(bank.Matches, bank.Discrepancies)
		l.UpdatedAt = now
		resolved := *d
		return &resolved, nil
	}
	return nil, notFound("bank discrepancy", req.BankStatementID, ErrDiscrepancyNotFound)
}

// ManualBankMatch is an operator's bank match. Date defaults to the
// statement date.
type ManualBankMatch struct {
	ID          string
	Statement   BankStatement
	Transaction MatchedTransaction
	Source      MatchSource
	Resolution  string
	Date        Date
}

// MatchToBank records a confirmed manual match. It replaces an automatic
// match for the same statement but never another manual one.
func (l *Ledger) MatchToBank(req ManualBankMatch, now time.Time) (*BankMatch, error) {
	if strings.TrimSpace(req.Statement.ID) == "" {
		return nil, invalid("bankStatement.id", "is required")
	}
	if strings.TrimSpace(req.Transaction.Ref) == "" {
		return nil, invalid("excelMatch.ref", "is required")
	}

	bank := &l.BankReconciliation
	for _, d := range bank.Discrepancies {
		if d.BankStatementRef == req.Statement.ID && d.Status == BankDiscrepancyResolved {
			return nil, ErrAlreadyResolved
		}
	}

	date := req.Date
	if date.IsZero() {
		date = req.Statement.Date
	}
	source := req.Source
	if source == "" {
		source = MatchSourceExcel
	}
	if req.Transaction.SalesRef == nil {
		req.Transaction.SalesRef = l.salesRefOf(req.Transaction.Ref)
	}

	match := BankMatch{
		ID:                 req.ID,
		BankStatementRef:   req.Statement.ID,
		MatchedTransaction: req.Transaction,
		MatchSource:        source,
		MatchType:          MatchManual,
		Confidence:         ConfidenceHigh,
		Score:              ExactScore,
		Status:             BankMatchConfirmed,
		Amount:             req.Statement.Amount,
		Date:               date,
		Resolution:         req.Resolution,
		CreatedAt:          now,
	}

	replaced := false
	for i := range bank.Matches {
		if bank.Matches[i].BankStatementRef != req.Statement.ID {
			continue
		}
		if bank.Matches[i].MatchType == MatchManual {
			return nil, ErrBankMatchExists
		}
		bank.Matches[i] = match
		replaced = true
		break
	}
	if !replaced {
		bank.Matches = append(bank.Matches, match)
	}

	kept := bank.Discrepancies[:0]
	for _, d := range bank.Discrepancies {
		if d.BankStatementRef == req.Statement.ID {
			continue
		}
		kept = append(kept, d)
	}
	bank.Discrepancies = kept
	bank.Summary = SummarizeBank(bank.Matches, bank.Discrepancies)
	bank.LastUpdated = &now
	l.UpdatedAt = now
	return &match, nil
}

// UpdateBankMatchStatus moves a bank match along its workflow. A resolved
// match cannot be moved back.
func (l *Ledger) UpdateBankMatchStatus(statementID string, status BankMatchStatus, now time.Time) (*BankMatch, error) {
	if !status.Valid() {
		return nil, invalid("status", "must be pending, confirmed or resolved")
	}
	bank := &l.BankReconciliation
	for i := range bank.Matches {
		m := &bank.Matches[i]
		if m.BankStatementRef != statementID {
			continue
		}
		if m.Status == BankMatchResolved && status != BankMatchResolved {
			return nil, ErrAlreadyResolved
		}
		m.Status = status
		l.UpdatedAt = now
		updated := *m
		return &updated, nil
	}
	return nil, notFound("bank match", statementID, ErrBankStatementNotFound)
}
