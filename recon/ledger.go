/*
ledger.go - Construction of a reconciliation Ledger

PURPOSE:
  Turns one matching pass (excel lines vs SAP documents) into the Ledger
  document that is persisted for the requested date range.

LEDGER CONTENTS:
  matches                   category -> []Match, from accepted pairs
  excelDiscrepancies        category -> []Discrepancy, unmatched excel lines
  sapDiscrepancies          unmatched SAP documents dated inside the range
  extendedSapDiscrepancies  unmatched SAP documents of the widened window
  posAnalysis               POS lines compared as daily totals
  bankReconciliation        empty until the bank pass runs (bank.go)

PARTITION:
  Every non-POS excel record ends up in exactly one of matches or
  excelDiscrepancies: |matches| + |discrepancies| == |non-POS records|.

SEE ALSO:
  - matcher.go: The pass that feeds BuildLedger
  - bank.go: Bank sub-ledger merge
  - resolution.go: In-place annotation of the built ledger
*/
package recon

import (
	"sort"
	"time"
)

// LedgerInput is everything one excel/SAP pass needs.
type LedgerInput struct {
	Range DateRange
	// Excel holds flattened daily sales lines, POS lines included.
	Excel []TransactionRecord
	// SAP holds documents of the widened window Range.Widen(DateWindowDays).
	SAP []SAPRecord
}

// BuildLedger runs the excel/SAP pass and assembles a new Ledger. The
// returned ledger has no ID and revision zero; the caller persists it.
func (m *Matcher) BuildLedger(in LedgerInput, now time.Time) *Ledger {
	sapByID := make(map[string]SAPRecord, len(in.SAP))
	var targets []TransactionRecord
	var posSAP []SAPRecord
	for _, rec := range in.SAP {
		sapByID[rec.ID] = rec
		if rec.IsPOS {
			if in.Range.Contains(rec.DocDate) {
				posSAP = append(posSAP, rec)
			}
			continue
		}
		targets = append(targets, rec.Record())
	}

	result := m.Match(in.Excel, targets)

	ledger := NewLedger(in.Range, now)
	for _, p := range result.Pairs {
		match := p.ToMatch()
		ledger.Matches[match.Category] = append(ledger.Matches[match.Category], match)
	}
	for _, rec := range result.UnmatchedSource {
		ledger.ExcelDiscrepancies[rec.Category] = append(ledger.ExcelDiscrepancies[rec.Category], discrepancyFrom(rec))
	}
	for _, rec := range result.UnmatchedTarget {
		sap := sapByID[rec.ID]
		ledger.ExtendedSAPDiscrepancies = append(ledger.ExtendedSAPDiscrepancies, sap)
		if in.Range.Contains(sap.DocDate) {
			ledger.SAPDiscrepancies = append(ledger.SAPDiscrepancies, sap)
		}
	}
	ledger.POSAnalysis = AnalyzePOS(result.POS, posSAP, m.Config.AmountTolerance)
	return ledger
}

// NewLedger returns an empty ledger whose collections render as {} and [].
func NewLedger(r DateRange, now time.Time) *Ledger {
	return &Ledger{
		DateRange:                r,
		Matches:                  make(map[string][]Match),
		ExcelDiscrepancies:       make(map[string][]Discrepancy),
		SAPDiscrepancies:         []SAPRecord{},
		ExtendedSAPDiscrepancies: []SAPRecord{},
		POSAnalysis:              emptyPOSAnalysis(),
		BankReconciliation: BankReconciliation{
			Matches:       []BankMatch{},
			Discrepancies: []BankDiscrepancy{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ensureCollections replaces nil maps and slices left by a decoded document
// that carried nulls.
func (l *Ledger) ensureCollections() {
	if l.Matches == nil {
		l.Matches = make(map[string][]Match)
	}
	if l.ExcelDiscrepancies == nil {
		l.ExcelDiscrepancies = make(map[string][]Discrepancy)
	}
	if l.SAPDiscrepancies == nil {
		l.SAPDiscrepancies = []SAPRecord{}
	}
	if l.ExtendedSAPDiscrepancies == nil {
		l.ExtendedSAPDiscrepancies = []SAPRecord{}
	}
	if l.BankReconciliation.Matches == nil {
		l.BankReconciliation.Matches = []BankMatch{}
	}
	if l.BankReconciliation.Discrepancies == nil {
		l.BankReconciliation.Discrepancies = []BankDiscrepancy{}
	}
}

func discrepancyFrom(rec TransactionRecord) Discrepancy {
	return Discrepancy{
		ID:              rec.ID,
		Date:            rec.Date,
		Client:          rec.Client,
		Amount:          rec.Amount,
		Category:        rec.Category,
		Remarks:         rec.Remarks,
		MatchedInvoices: []MatchedInvoice{},
		SalesRef:        rec.SalesRef,
	}
}

// findSAPDiscrepancy returns pointers to every copy of an SAP record in the
// regular and extended lists. The extended list is a superset, so a record
// may appear twice.
func (l *Ledger) findSAPDiscrepancy(id string) []*SAPRecord {
	var found []*SAPRecord
	for i := range l.SAPDiscrepancies {
		if l.SAPDiscrepancies[i].ID == id {
			found = append(found, &l.SAPDiscrepancies[i])
		}
	}
	for i := range l.ExtendedSAPDiscrepancies {
		if l.ExtendedSAPDiscrepancies[i].ID == id {
			found = append(found, &l.ExtendedSAPDiscrepancies[i])
		}
	}
	return found
}

// SAPDiscrepancy returns the SAP discrepancy with the given id.
func (l *Ledger) SAPDiscrepancy(id string) (SAPRecord, bool) {
	found := l.findSAPDiscrepancy(id)
	if len(found) == 0 {
		return SAPRecord{}, false
	}
	return *found[0], true
}

// UnresolvedExcelDiscrepancies lists open excel discrepancies across all
// categories in a deterministic order (category name, then position).
func (l *Ledger) UnresolvedExcelDiscrepancies() []Discrepancy {
	var out []Discrepancy
	for _, category := range sortedKeys(l.ExcelDiscrepancies) {
		for _, d := range l.ExcelDiscrepancies[category] {
			if !d.Resolved {
				out = append(out, d)
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
