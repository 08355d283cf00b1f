/*
Package recon provides the sales reconciliation core.

PURPOSE:
  Matches loosely structured transaction records from three independent
  sources against each other:
  - Daily sales sheets exported from the point of sale / Excel
  - SAP Business One invoices and incoming payments
  - Bank statement lines
  and keeps the outcome in a persistent, incrementally resolvable Ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - TransactionRecord: flat, comparable view of any source line
  - Match / Discrepancy: the two outcomes of a matching pass
  - SAPRecord, BankStatement: collaborator data the core reads
  - BankMatch / BankDiscrepancy: the bank sub-ledger entries
  - Ledger: one document per requested date range

DESIGN PRINCIPLES:
  1. Precision: amounts are decimal.Decimal, never float64
  2. Additive: resolutions annotate records, nothing is deleted
  3. Keyed maps: matches and excel discrepancies are grouped per category
  4. Stable ids: every flattened record carries an id derived from its origin

SEE ALSO:
  - flatten.go: DailySales -> TransactionRecord
  - matcher.go: The matching engine
  - ledger.go: Ledger construction
  - bank.go: Bank reconciliation merge
  - resolution.go: Manual resolution workflow
*/
package recon

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SOURCE RECORDS
// =============================================================================

type SourceType string

const (
	SourceExcel      SourceType = "excel"
	SourceSAPInvoice SourceType = "sap_invoice"
	SourceSAPPayment SourceType = "sap_payment"
	SourceBank       SourceType = "bank"
)

// SalesRef points at one line of a daily sales document.
type SalesRef struct {
	DocID    string `json:"docId"`
	Category string `json:"category"`
	Index    int    `json:"index"`
}

// TransactionRecord is the comparable, flattened form of any source line.
// It is derived on every run and never persisted on its own.
type TransactionRecord struct {
	ID       string          `json:"id"`
	Date     Date            `json:"date"`
	Client   string          `json:"client"`
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Remarks  string          `json:"remarks,omitempty"`
	Source   SourceType      `json:"sourceType"`
	IsPOS    bool            `json:"isPOS,omitempty"`
	DocNum   string          `json:"docNum,omitempty"`
	SalesRef *SalesRef       `json:"salesRef,omitempty"`
}

// =============================================================================
// DAILY SALES - One sheet per business day (collaborator data)
// =============================================================================

// SalesEntry is one line of a daily sales sheet. Bank is the amount that
// reached the bank when known; Amount is the declared sale amount.
type SalesEntry struct {
	Client   string              `json:"client"`
	Amount   decimal.NullDecimal `json:"amount"`
	Bank     decimal.NullDecimal `json:"bank"`
	Remarks  string              `json:"remarks,omitempty"`
	Verified bool                `json:"verified,omitempty"`
}

// POSSales holds the point-of-sale sub-lists of a daily sheet.
type POSSales struct {
	Especes           []SalesEntry `json:"especes,omitempty"`
	CB                []SalesEntry `json:"cb,omitempty"`
	Cheques           []SalesEntry `json:"cheques,omitempty"`
	TicketsRestaurant []SalesEntry `json:"ticketsRestaurant,omitempty"`
}

type DailySales struct {
	ID                  string       `json:"id"`
	Date                Date         `json:"date"`
	Cheques             []SalesEntry `json:"cheques,omitempty"`
	Especes             []SalesEntry `json:"especes,omitempty"`
	CBSite              []SalesEntry `json:"cbSite,omitempty"`
	CBPhone             []SalesEntry `json:"cbPhone,omitempty"`
	Virements           []SalesEntry `json:"virements,omitempty"`
	LivraisonsNonPayees []SalesEntry `json:"livraisonsNonPayees,omitempty"`
	POS                 *POSSales    `json:"pos,omitempty"`
}

// =============================================================================
// SAP RECORDS - Invoices and incoming payments from SAP Business One
// =============================================================================

type SAPKind string

const (
	SAPInvoice SAPKind = "invoice"
	SAPPayment SAPKind = "payment"
)

// SAPRecord uses the SAP Business One field names on the wire.
type SAPRecord struct {
	ID       string          `json:"id"`
	DocNum   string          `json:"DocNum"`
	DocDate  Date            `json:"DocDate"`
	CardCode string          `json:"CardCode,omitempty"`
	CardName string          `json:"CardName"`
	DocTotal decimal.Decimal `json:"DocTotal"`
	Kind     SAPKind         `json:"kind"`
	IsPOS    bool            `json:"isPOS,omitempty"`

	// Resolution metadata, only set inside a Ledger.
	Resolved            bool                 `json:"resolved,omitempty"`
	Resolution          string               `json:"resolution,omitempty"`
	ResolvedTimestamp   *time.Time           `json:"resolvedTimestamp,omitempty"`
	ResolvedBy          string               `json:"resolvedBy,omitempty"`
	MatchedTransactions []MatchedTransaction `json:"matchedTransactions,omitempty"`
}

func (s SAPRecord) SourceType() SourceType {
	if s.Kind == SAPPayment {
		return SourceSAPPayment
	}
	return SourceSAPInvoice
}

// Record returns the comparable view of an SAP document.
func (s SAPRecord) Record() TransactionRecord {
	return TransactionRecord{
		ID:       s.ID,
		Date:     s.DocDate,
		Client:   s.CardName,
		Amount:   s.DocTotal,
		Category: string(s.Kind),
		Source:   s.SourceType(),
		IsPOS:    s.IsPOS,
		DocNum:   s.DocNum,
	}
}

// =============================================================================
// BANK STATEMENTS (collaborator data)
// =============================================================================

type BankStatement struct {
	ID        string          `json:"id"`
	Date      Date            `json:"date"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

func (b BankStatement) Record() TransactionRecord {
	return TransactionRecord{
		ID:       b.ID,
		Date:     b.Date,
		Client:   b.Label,
		Amount:   b.Amount,
		Category: "bank",
		Source:   SourceBank,
		DocNum:   b.Reference,
	}
}

// =============================================================================
// MATCHES AND DISCREPANCIES
// =============================================================================

// Match pairs a source-side record with a target-side record.
type Match struct {
	Date               Date            `json:"date"`
	SourceID           string          `json:"sourceId"`
	TargetID           string          `json:"targetId"`
	SourceClientName   string          `json:"sourceClientName"`
	TargetCustomerName string          `json:"targetCustomerName"`
	SourceAmount       decimal.Decimal `json:"sourceAmount"`
	TargetAmount       decimal.Decimal `json:"targetAmount"`
	TargetDate         Date            `json:"targetDate"`
	TargetDocNum       string          `json:"targetDocNum,omitempty"`
	Category           string          `json:"category"`
	ConfidenceScore    float64         `json:"confidenceScore"`
	Remarks            string          `json:"remarks,omitempty"`
	IsResolved         bool            `json:"isResolved"`
	Resolution         string          `json:"resolution,omitempty"`
	SalesRef           *SalesRef       `json:"salesRef,omitempty"`
}

// MatchedInvoice is a target reference chosen by an operator when resolving
// an excel discrepancy.
type MatchedInvoice struct {
	TargetRef    string          `json:"targetRef"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	DocNum       string          `json:"docNum,omitempty"`
	DocDate      Date            `json:"docDate"`
	CustomerName string          `json:"customerName,omitempty"`
}

// Discrepancy is a source-side record that found no acceptable match.
type Discrepancy struct {
	ID                string           `json:"id"`
	Date              Date             `json:"date"`
	Client            string           `json:"client"`
	Amount            decimal.Decimal  `json:"amount"`
	Category          string           `json:"category"`
	Remarks           string           `json:"remarks,omitempty"`
	Resolved          bool             `json:"resolved"`
	Resolution        string           `json:"resolution,omitempty"`
	ResolvedTimestamp *time.Time       `json:"resolvedTimestamp,omitempty"`
	ResolvedBy        string           `json:"resolvedBy,omitempty"`
	MatchedInvoices   []MatchedInvoice `json:"matchedInvoices"`
	SalesRef          *SalesRef        `json:"salesRef,omitempty"`
}

// MatchedTransaction references a sales-side (or SAP-side) transaction chosen
// by an operator or by the bank pass.
type MatchedTransaction struct {
	Ref      string          `json:"ref"`
	Client   string          `json:"client"`
	Amount   decimal.Decimal `json:"amount"`
	Date     Date            `json:"date"`
	Category string          `json:"category,omitempty"`
	SalesRef *SalesRef       `json:"salesRef,omitempty"`
}

// =============================================================================
// BANK SUB-LEDGER
// =============================================================================

type MatchSource string

const (
	MatchSourceExcel MatchSource = "excel"
	MatchSourceSAP   MatchSource = "sap"
)

type BankMatchType string

const (
	MatchAmountAndName BankMatchType = "amount_and_name"
	MatchAmountOnly    BankMatchType = "amount_only"
	MatchManual        BankMatchType = "manual"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type BankMatchStatus string

const (
	BankMatchPending   BankMatchStatus = "pending"
	BankMatchConfirmed BankMatchStatus = "confirmed"
	BankMatchResolved  BankMatchStatus = "resolved"
)

func (s BankMatchStatus) Valid() bool {
	switch s {
	case BankMatchPending, BankMatchConfirmed, BankMatchResolved:
		return true
	}
	return false
}

type BankMatch struct {
	ID                 string             `json:"id"`
	BankStatementRef   string             `json:"bankStatementRef"`
	MatchedTransaction MatchedTransaction `json:"matchedTransaction"`
	MatchSource        MatchSource        `json:"matchSource"`
	MatchType          BankMatchType      `json:"matchType"`
	Confidence         Confidence         `json:"confidence"`
	Score              float64            `json:"score"`
	Status             BankMatchStatus    `json:"status"`
	Amount             decimal.Decimal    `json:"amount"`
	Date               Date               `json:"date"`
	Resolution         string             `json:"resolution,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

type BankDiscrepancyStatus string

const (
	BankDiscrepancyUnmatched BankDiscrepancyStatus = "unmatched"
	BankDiscrepancyResolved  BankDiscrepancyStatus = "resolved"
)

type BankDiscrepancy struct {
	BankStatementRef    string                `json:"bankStatementRef"`
	Status              BankDiscrepancyStatus `json:"status"`
	Amount              decimal.Decimal       `json:"amount"`
	Date                Date                  `json:"date"`
	Label               string                `json:"label,omitempty"`
	Resolution          string                `json:"resolution,omitempty"`
	ResolvedTimestamp   *time.Time            `json:"resolvedTimestamp,omitempty"`
	MatchedTransactions []MatchedTransaction  `json:"matchedTransactions,omitempty"`
}

type BankSummary struct {
	TotalTransactions int             `json:"totalTransactions"`
	MatchedCount      int             `json:"matchedCount"`
	UnmatchedCount    int             `json:"unmatchedCount"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	MatchedAmount     decimal.Decimal `json:"matchedAmount"`
}

type BankReconciliation struct {
	Matches       []BankMatch       `json:"matches"`
	Discrepancies []BankDiscrepancy `json:"discrepancies"`
	Summary       BankSummary       `json:"summary"`
	LastUpdated   *time.Time        `json:"lastUpdated,omitempty"`
}

// =============================================================================
// LEDGER - The persisted per-date-range aggregate
// =============================================================================

// Synthetic match categories appended by the resolution workflow. They never
// replace the per-payment-type categories.
const (
	CategoryResolvedExcel = "Resolved and Matched"
	CategoryResolvedSAP   = "SAP Resolved Matches"
)

// Ledger is the reconciliation result for one date range.
//
// INVARIANTS:
//   - Unique by (DateRange.Start, DateRange.End).
//   - Every non-POS excel record of the run is in exactly one of Matches or
//     ExcelDiscrepancies.
//   - Bank matches are unique per bank statement.
//   - Revision increases by one on every stored update.
type Ledger struct {
	ID                       string                   `json:"id"`
	Revision                 int                      `json:"revision"`
	DateRange                DateRange                `json:"dateRange"`
	Matches                  map[string][]Match       `json:"matches"`
	ExcelDiscrepancies       map[string][]Discrepancy `json:"excelDiscrepancies"`
	SAPDiscrepancies         []SAPRecord              `json:"sapDiscrepancies"`
	ExtendedSAPDiscrepancies []SAPRecord              `json:"extendedSapDiscrepancies"`
	POSAnalysis              POSAnalysis              `json:"posAnalysis"`
	BankReconciliation       BankReconciliation       `json:"bankReconciliation"`
	CreatedAt                time.Time                `json:"createdAt"`
	UpdatedAt                time.Time                `json:"updatedAt"`
}

// MatchCount returns the number of matches across all categories.
func (l *Ledger) MatchCount() int {
	n := 0
	for _, ms := range l.Matches {
		n += len(ms)
	}
	return n
}

// DiscrepancyCount returns the number of excel discrepancies across all
// categories, resolved or not.
func (l *Ledger) DiscrepancyCount() int {
	n := 0
	for _, ds := range l.ExcelDiscrepancies {
		n += len(ds)
	}
	return n
}
