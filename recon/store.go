/*
store.go - Persistence ports for ledgers and collaborator data

PURPOSE:
  Defines the interface between the reconciliation core and the database.
  The core never reaches a global connection; a Repository is injected into
  the Service.

KEY INTERFACES:
  LedgerStore:          One document per date range, revision checked
  SourceStore:          Daily sales, SAP documents, bank statements
  SalesRecordAnnotator: Outbound write-back of the verified flag
  Repository:           Everything the Service needs

UNIQUENESS:
  CreateLedger rejects a second ledger for the same (start, end) with
  ErrDuplicateRange. Two concurrent runs for an unseen range therefore
  produce one ledger; the loser re-reads and returns the winner.

OPTIMISTIC CONCURRENCY:
  UpdateLedger succeeds only when the stored revision equals the revision
  of the document being written, then stores it with revision+1. A stale
  write fails with ErrConcurrentModification and nothing is written.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - recon/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: The only caller
*/
package recon

import "context"

//go:generate mockgen -destination=mocks/mock_annotator.go -package=mocks github.com/warp/reconciliation-engine/recon SalesRecordAnnotator

// =============================================================================
// LEDGERS
// =============================================================================

type LedgerStore interface {
	// CreateLedger persists a new ledger with revision 1.
	// Returns ErrDuplicateRange if the range already has a ledger.
	CreateLedger(ctx context.Context, l *Ledger) error

	// GetLedger returns ErrLedgerNotFound if no ledger has that id.
	GetLedger(ctx context.Context, id string) (*Ledger, error)

	// FindLedgerByRange returns (nil, nil) when the range has no ledger yet.
	FindLedgerByRange(ctx context.Context, r DateRange) (*Ledger, error)

	// UpdateLedger compares l.Revision with the stored revision, writes the
	// document and increments l.Revision on success.
	UpdateLedger(ctx context.Context, l *Ledger) error
}

// =============================================================================
// COLLABORATOR DATA
// =============================================================================

// SourceStore gives read access to the data other subsystems import.
// The Save methods are upserts keyed by id.
type SourceStore interface {
	SaveDailySales(ctx context.Context, docs []DailySales) error
	GetDailySales(ctx context.Context, id string) (*DailySales, error)

	SaveSAPRecords(ctx context.Context, records []SAPRecord) error
	// SAPRecordsBetween returns documents dated in [r.Start, r.End].
	SAPRecordsBetween(ctx context.Context, r DateRange) ([]SAPRecord, error)

	SaveBankStatements(ctx context.Context, statements []BankStatement) error
	// BankStatements returns statements dated in r, or all of them when r
	// is nil.
	BankStatements(ctx context.Context, r *DateRange) ([]BankStatement, error)
}

// SalesRecordAnnotator flags a daily sales line as verified after an SAP
// resolution. It is called after the ledger is saved and its failures never
// fail the resolution.
type SalesRecordAnnotator interface {
	MarkVerified(ctx context.Context, ref SalesRef) error
}

// Repository is the full persistence surface of the Service.
type Repository interface {
	LedgerStore
	SourceStore
}
