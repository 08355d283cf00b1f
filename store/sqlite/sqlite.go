/*
Package sqlite provides a SQLite-backed implementation of the reconciliation
storage ports.

PURPOSE:
  Implements recon.Repository (ledgers, daily sales, SAP documents, bank
  statements) and recon.SalesRecordAnnotator using SQLite.

KEY TABLES:
  ledgers:          One JSON document per date range, with a revision
  daily_sales:      Daily sales sheets as JSON documents
  sap_records:      SAP Business One invoices and incoming payments
  bank_statements:  Imported bank statement lines

INDEXES:
  - idx_ledgers_range (UNIQUE): one ledger per (range_start, range_end).
    Two concurrent first runs for a range cannot both insert.
  - idx_sap_records_doc_date: widened-window loads (hot path of a run)
  - idx_bank_statements_date: bank pass loads

DATES:
  Calendar days are stored as "2006-01-02" text, so BETWEEN compares them
  correctly. Timestamps are RFC3339 text.

OPTIMISTIC CONCURRENCY:
  UpdateLedger is a compare-and-swap:
    UPDATE ledgers SET ... revision = revision + 1
    WHERE id = ? AND revision = ?
  Zero affected rows on an existing ledger means another writer got there
  first: recon.ErrConcurrentModification.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of a single connection, which
  also keeps ":memory:" databases alive for the life of the Store.

USAGE:
  store, err := sqlite.New("./data/recon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := recon.NewService(store, store, cfg, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - recon/store.go: Interface definitions
  - recon/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/reconciliation-engine/recon"
)

var (
	_ recon.Repository           = (*Store)(nil)
	_ recon.SalesRecordAnnotator = (*Store)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledgers (one per requested date range)
	CREATE TABLE IF NOT EXISTS ledgers (
		id TEXT PRIMARY KEY,
		range_start TEXT NOT NULL,
		range_end TEXT NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		document_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledgers_range
		ON ledgers(range_start, range_end);

	-- Daily sales sheets (collaborator data, verified flags written back)
	CREATE TABLE IF NOT EXISTS daily_sales (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		document_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_daily_sales_date
		ON daily_sales(date);

	-- SAP Business One documents
	CREATE TABLE IF NOT EXISTS sap_records (
		id TEXT PRIMARY KEY,
		doc_num TEXT NOT NULL DEFAULT '',
		doc_date TEXT NOT NULL,
		card_code TEXT NOT NULL DEFAULT '',
		card_name TEXT NOT NULL,
		doc_total TEXT NOT NULL,
		kind TEXT NOT NULL,
		is_pos BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sap_records_doc_date
		ON sap_records(doc_date);

	-- Bank statement lines
	CREATE TABLE IF NOT EXISTS bank_statements (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		label TEXT NOT NULL,
		amount TEXT NOT NULL,
		reference TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bank_statements_date
		ON bank_statements(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGERS
// =============================================================================

// CreateLedger inserts a new ledger document with revision 1.
func (s *Store) CreateLedger(ctx context.Context, l *recon.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.Revision = 1
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledgers (id, range_start, range_end, revision, document_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID,
		l.DateRange.Start.String(),
		l.DateRange.End.String(),
		l.Revision,
		string(doc),
		l.CreatedAt.UTC().Format(time.RFC3339),
		l.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return recon.ErrDuplicateRange
		}
		return fmt.Errorf("failed to insert ledger: %w", err)
	}
	return nil
}

// GetLedger retrieves a ledger by ID.
func (s *Store) GetLedger(ctx context.Context, id string) (*recon.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.scanLedger(s.db.QueryRowContext(ctx,
		"SELECT revision, document_json FROM ledgers WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, &recon.NotFoundError{Kind: "ledger", ID: id, Err: recon.ErrLedgerNotFound}
	}
	return l, err
}

// FindLedgerByRange returns (nil, nil) when the range has no ledger.
func (s *Store) FindLedgerByRange(ctx context.Context, r recon.DateRange) (*recon.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.scanLedger(s.db.QueryRowContext(ctx,
		"SELECT revision, document_json FROM ledgers WHERE range_start = ? AND range_end = ?",
		r.Start.String(), r.End.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// LedgerIDs lists stored ledgers, most recently updated first.
func (s *Store) LedgerIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM ledgers ORDER BY updated_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) scanLedger(row *sql.Row) (*recon.Ledger, error) {
	var revision int
	var doc string
	if err := row.Scan(&revision, &doc); err != nil {
		return nil, err
	}
	var l recon.Ledger
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	l.Revision = revision
	return &l, nil
}

// UpdateLedger writes l if the stored revision still equals l.Revision.
func (s *Store) UpdateLedger(ctx context.Context, l *recon.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := l.Revision
	l.Revision = expected + 1
	doc, err := json.Marshal(l)
	if err != nil {
		l.Revision = expected
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ledgers
		SET document_json = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?
	`, string(doc), l.UpdatedAt.UTC().Format(time.RFC3339), l.ID, expected)
	if err != nil {
		l.Revision = expected
		return fmt.Errorf("failed to update ledger: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		l.Revision = expected
		return err
	}
	if n == 1 {
		return nil
	}

	l.Revision = expected
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledgers WHERE id = ?", l.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return &recon.NotFoundError{Kind: "ledger", ID: l.ID, Err: recon.ErrLedgerNotFound}
	}
	return recon.ErrConcurrentModification
}

// =============================================================================
// DAILY SALES
// =============================================================================

// SaveDailySales upserts daily sales documents.
func (s *Store) SaveDailySales(ctx context.Context, docs []recon.DailySales) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if err := saveDailySales(ctx, tx, doc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func saveDailySales(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, doc recon.DailySales) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode daily sales %s: %w", doc.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO daily_sales (id, date, document_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			document_json = excluded.document_json,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Date.String(), string(body), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save daily sales %s: %w", doc.ID, err)
	}
	return nil
}

// GetDailySales retrieves a daily sales document by ID.
func (s *Store) GetDailySales(ctx context.Context, id string) (*recon.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDailySales(ctx, s.db, id)
}

func getDailySales(ctx context.Context, db interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id string) (*recon.DailySales, error) {
	var body string
	err := db.QueryRowContext(ctx, "SELECT document_json FROM daily_sales WHERE id = ?", id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, &recon.NotFoundError{Kind: "daily sales", ID: id, Err: recon.ErrSalesRecordNotFound}
	}
	if err != nil {
		return nil, err
	}
	var doc recon.DailySales
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode daily sales %s: %w", id, err)
	}
	return &doc, nil
}

// MarkVerified flags one sales line verified. The read and the write happen
// in one transaction.
func (s *Store) MarkVerified(ctx context.Context, ref recon.SalesRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	doc, err := getDailySales(ctx, tx, ref.DocID)
	if err != nil {
		return err
	}
	entry, ok := doc.Entry(ref.Category, ref.Index)
	if !ok {
		return &recon.NotFoundError{
			Kind: "sales line",
			ID:   fmt.Sprintf("%s:%s:%d", ref.DocID, ref.Category, ref.Index),
			Err:  recon.ErrSalesRecordNotFound,
		}
	}
	entry.Verified = true

	if err := saveDailySales(ctx, tx, *doc); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// SAP RECORDS
// =============================================================================

// SaveSAPRecords upserts SAP documents.
func (s *Store) SaveSAPRecords(ctx context.Context, records []recon.SAPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		kind := r.Kind
		if kind == "" {
			kind = recon.SAPInvoice
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sap_records (id, doc_num, doc_date, card_code, card_name, doc_total, kind, is_pos, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				doc_num = excluded.doc_num,
				doc_date = excluded.doc_date,
				card_code = excluded.card_code,
				card_name = excluded.card_name,
				doc_total = excluded.doc_total,
				kind = excluded.kind,
				is_pos = excluded.is_pos,
				updated_at = excluded.updated_at
		`, r.ID, r.DocNum, r.DocDate.String(), r.CardCode, r.CardName, r.DocTotal.String(), kind, r.IsPOS, now)
		if err != nil {
			return fmt.Errorf("failed to save sap record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// SAPRecordsBetween returns documents dated in [r.Start, r.End].
func (s *Store) SAPRecordsBetween(ctx context.Context, r recon.DateRange) ([]recon.SAPRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_num, doc_date, card_code, card_name, doc_total, kind, is_pos
		FROM sap_records
		WHERE doc_date BETWEEN ? AND ?
		ORDER BY doc_date, id
	`, r.Start.String(), r.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []recon.SAPRecord
	for rows.Next() {
		var rec recon.SAPRecord
		var docDate, total, kind string
		if err := rows.Scan(&rec.ID, &rec.DocNum, &docDate, &rec.CardCode, &rec.CardName, &total, &kind, &rec.IsPOS); err != nil {
			return nil, err
		}
		if rec.DocDate, err = recon.ParseDate(docDate); err != nil {
			return nil, fmt.Errorf("sap record %s: %w", rec.ID, err)
		}
		if rec.DocTotal, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("sap record %s: %w", rec.ID, err)
		}
		rec.Kind = recon.SAPKind(kind)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// BANK STATEMENTS
// =============================================================================

// SaveBankStatements upserts bank statement lines.
func (s *Store) SaveBankStatements(ctx context.Context, statements []recon.BankStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, st := range statements {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bank_statements (id, date, label, amount, reference, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				date = excluded.date,
				label = excluded.label,
				amount = excluded.amount,
				reference = excluded.reference,
				updated_at = excluded.updated_at
		`, st.ID, st.Date.String(), st.Label, st.Amount.String(), nullString(st.Reference), now)
		if err != nil {
			return fmt.Errorf("failed to save bank statement %s: %w", st.ID, err)
		}
	}
	return tx.Commit()
}

// BankStatements returns statements dated in r, or all when r is nil.
func (s *Store) BankStatements(ctx context.Context, r *recon.DateRange) ([]recon.BankStatement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, date, label, amount, reference FROM bank_statements"
	var args []any
	if r != nil {
		query += " WHERE date BETWEEN ? AND ?"
		args = append(args, r.Start.String(), r.End.String())
	}
	query += " ORDER BY date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statements []recon.BankStatement
	for rows.Next() {
		var st recon.BankStatement
		var date, amount string
		var reference sql.NullString
		if err := rows.Scan(&st.ID, &date, &st.Label, &amount, &reference); err != nil {
			return nil, err
		}
		if st.Date, err = recon.ParseDate(date); err != nil {
			return nil, fmt.Errorf("bank statement %s: %w", st.ID, err)
		}
		if st.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bank statement %s: %w", st.ID, err)
		}
		st.Reference = reference.String
		statements = append(statements, st)
	}
	return statements, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"ledgers", "daily_sales", "sap_records", "bank_statements"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
