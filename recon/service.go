/*
service.go - Reconciliation orchestration

PURPOSE:
  Glues the pure core (flatten, match, merge, resolve) to the Repository.
  Every public method is one request: validate, load, compute, save.

RUN FLOW (Compare):
  1. Validate the date range (400 before any matching work)
  2. Return the stored ledger if the range already has one
  3. Name unnamed sales sheets after the new ledger, flatten them and load
     SAP documents of the widened window
  4. Build the ledger, persist the sales documents and the ledger
  5. On ErrDuplicateRange (a concurrent run won) return the winner

MUTATION FLOW (resolutions, bank pass):
  load -> mutate in memory -> UpdateLedger (revision checked)
  A stale write is retried on a fresh read, up to maxUpdateAttempts.

SIDE EFFECTS:
  SAP resolutions flag the matched sales lines verified through the
  SalesRecordAnnotator once the ledger is saved. Annotator failures are
  logged and skipped.

SEE ALSO:
  - ledger.go, bank.go, resolution.go: The pure operations
  - store.go: Repository ports
*/
package recon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUpdateAttempts = 3

type Service struct {
	repo      Repository
	annotator SalesRecordAnnotator
	matcher   *Matcher
	log       *zap.Logger

	// Now is the clock; tests pin it.
	Now func() time.Time
	// NewID generates ledger and manual match ids.
	NewID func() string
}

// NewService wires a Service. annotator may be nil, in which case verified
// flags are not written back.
func NewService(repo Repository, annotator SalesRecordAnnotator, cfg MatchingConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		annotator: annotator,
		matcher:   NewMatcher(cfg),
		log:       log,
		Now:       func() time.Time { return time.Now().UTC() },
		NewID:     uuid.NewString,
	}
}

// Config returns the matching configuration in use.
func (s *Service) Config() MatchingConfig { return s.matcher.Config }

// =============================================================================
// RECONCILIATION RUN
// =============================================================================

// Compare runs the excel/SAP reconciliation for r, or returns the ledger
// already stored for r. The boolean reports whether a new ledger was built.
func (s *Service) Compare(ctx context.Context, r DateRange, sales []DailySales) (*Ledger, bool, error) {
	if err := r.Validate(); err != nil {
		return nil, false, err
	}

	existing, err := s.repo.FindLedgerByRange(ctx, r)
	if err != nil {
		return nil, false, fmt.Errorf("find ledger: %w", err)
	}
	if existing != nil {
		s.log.Debug("ledger already exists for range",
			zap.String("analysis_id", existing.ID),
			zap.Stringer("range", r))
		return existing, false, nil
	}

	// Unnamed sheets belong to this run; another range may send a different
	// sheet for the same day.
	ledgerID := s.NewID()
	for i := range sales {
		if sales[i].ID == "" {
			sales[i].ID = fmt.Sprintf("sales-%s-%s-%d", ledgerID, sales[i].Date, i)
		}
	}

	sap, err := s.repo.SAPRecordsBetween(ctx, r.Widen(s.matcher.Config.DateWindowDays))
	if err != nil {
		return nil, false, fmt.Errorf("load sap records: %w", err)
	}

	now := s.Now()
	ledger := s.matcher.BuildLedger(LedgerInput{Range: r, Excel: FlattenAll(sales), SAP: sap}, now)
	ledger.ID = ledgerID

	if len(sales) > 0 {
		if err := s.repo.SaveDailySales(ctx, sales); err != nil {
			return nil, false, fmt.Errorf("save daily sales: %w", err)
		}
	}

	if err := s.repo.CreateLedger(ctx, ledger); err != nil {
		if !errors.Is(err, ErrDuplicateRange) {
			return nil, false, fmt.Errorf("create ledger: %w", err)
		}
		winner, findErr := s.repo.FindLedgerByRange(ctx, r)
		if findErr != nil || winner == nil {
			return nil, false, fmt.Errorf("create ledger: %w", err)
		}
		s.log.Info("concurrent run created the ledger first",
			zap.String("analysis_id", winner.ID),
			zap.Stringer("range", r))
		return winner, false, nil
	}

	s.log.Info("reconciliation run completed",
		zap.String("analysis_id", ledger.ID),
		zap.Stringer("range", r),
		zap.Int("matches", ledger.MatchCount()),
		zap.Int("discrepancies", ledger.DiscrepancyCount()),
		zap.Int("sap_discrepancies", len(ledger.SAPDiscrepancies)))
	return ledger, true, nil
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) GetLedger(ctx context.Context, id string) (*Ledger, error) {
	return s.repo.GetLedger(ctx, id)
}

// FindLedger returns ErrLedgerNotFound when the range has no ledger.
func (s *Service) FindLedger(ctx context.Context, r DateRange) (*Ledger, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	l, err := s.repo.FindLedgerByRange(ctx, r)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, notFound("ledger", r.String(), ErrLedgerNotFound)
	}
	return l, nil
}

// Suggest ranks open excel discrepancies for an SAP discrepancy. It also
// returns the SAP discrepancy itself.
func (s *Service) Suggest(ctx context.Context, ledgerID, sapID string) (*SAPRecord, []Suggestion, error) {
	l, err := s.repo.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, nil, err
	}
	sap, ok := l.SAPDiscrepancy(sapID)
	if !ok {
		return nil, nil, notFound("sap record", sapID, ErrSAPRecordNotFound)
	}
	return &sap, s.matcher.Suggest(sap, l.UnresolvedExcelDiscrepancies()), nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// update applies fn to a fresh copy of the ledger and saves it. fn may be
// called more than once and must only touch the ledger it is given.
func (s *Service) update(ctx context.Context, ledgerID string, fn func(l *Ledger, now time.Time) error) (*Ledger, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		l, err := s.repo.GetLedger(ctx, ledgerID)
		if err != nil {
			return nil, err
		}
		if err := fn(l, s.Now()); err != nil {
			return nil, err
		}
		err = s.repo.UpdateLedger(ctx, l)
		if err == nil {
			return l, nil
		}
		if !IsRetryable(err) {
			return nil, fmt.Errorf("update ledger: %w", err)
		}
		lastErr = err
		s.log.Warn("ledger changed during update, retrying",
			zap.String("analysis_id", ledgerID),
			zap.Int("attempt", attempt))
	}
	return nil, lastErr
}

func (s *Service) ResolveExcel(ctx context.Context, ledgerID string, req ExcelResolution) (*ExcelResolutionResult, error) {
	var result *ExcelResolutionResult
	_, err := s.update(ctx, ledgerID, func(l *Ledger, now time.Time) error {
		var err error
		result, err = l.ResolveExcelDiscrepancy(req, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("excel discrepancy resolved",
		zap.String("analysis_id", ledgerID),
		zap.String("discrepancy_id", result.Discrepancy.ID),
		zap.Int("matches", len(result.Matches)))
	return result, nil
}

// ResolveSAP resolves an SAP discrepancy, then flags the matched sales
// lines verified. The write-back runs after the ledger is saved.
func (s *Service) ResolveSAP(ctx context.Context, ledgerID string, req SAPResolution) (*SAPResolutionResult, error) {
	var result *SAPResolutionResult
	_, err := s.update(ctx, ledgerID, func(l *Ledger, now time.Time) error {
		var err error
		result, err = l.ResolveSAPDiscrepancy(req, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sap discrepancy resolved",
		zap.String("analysis_id", ledgerID),
		zap.String("sap_id", req.SAPRecordID),
		zap.Int("matches", len(result.Matches)))

	s.markVerified(ctx, result.Verify)
	return result, nil
}

func (s *Service) markVerified(ctx context.Context, refs []SalesRef) {
	if s.annotator == nil {
		return
	}
	for _, ref := range refs {
		if err := s.annotator.MarkVerified(ctx, ref); err != nil {
			s.log.Warn("could not flag sales line verified",
				zap.String("doc_id", ref.DocID),
				zap.String("category", ref.Category),
				zap.Int("index", ref.Index),
				zap.Error(err))
		}
	}
}

// BankRun is the outcome of a bank pass.
type BankRun struct {
	Ledger *Ledger
	Added  int
	// Full covers the whole stored sub-ledger, View only the requested range.
	Full BankView
	View BankView
}

// RunBank matches bank statements against a stored ledger and merges the
// result. A nil range means all statements.
func (s *Service) RunBank(ctx context.Context, ledgerID string, r *DateRange) (*BankRun, error) {
	if r != nil {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	all, err := s.repo.BankStatements(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load bank statements: %w", err)
	}
	var inRange []BankStatement
	for _, st := range all {
		if r == nil || r.Contains(st.Date) {
			inRange = append(inRange, st)
		}
	}

	added := 0
	l, err := s.update(ctx, ledgerID, func(l *Ledger, now time.Time) error {
		l.ensureCollections()
		matches := s.matcher.MatchBank(inRange, l.BankCandidates(), now)
		added = MergeBankResults(l, matches, all, now)
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bank reconciliation merged",
		zap.String("analysis_id", ledgerID),
		zap.Int("statements", len(inRange)),
		zap.Int("added", added),
		zap.Int("matches", len(l.BankReconciliation.Matches)),
		zap.Int("discrepancies", len(l.BankReconciliation.Discrepancies)))

	return &BankRun{
		Ledger: l,
		Added:  added,
		Full:   l.BankReconciliation.View(nil),
		View:   l.BankReconciliation.View(r),
	}, nil
}

func (s *Service) MatchToBank(ctx context.Context, ledgerID string, req ManualBankMatch) (*BankMatch, error) {
	if req.ID == "" {
		req.ID = s.NewID()
	}
	var match *BankMatch
	_, err := s.update(ctx, ledgerID, func(l *Ledger, now time.Time) error {
		var err error
		match, err = l.MatchToBank(req, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("manual bank match recorded",
		zap.String("analysis_id", ledgerID),
		zap.String("bank_statement_id", match.BankStatementRef))
	return match, nil
}

func (s *Service) ResolveBank(ctx context.Context, ledgerID string, req BankResolution) (*BankDiscrepancy, error) {
	var resolved *BankDiscrepancy
	_, err := s.update(ctx, ledgerID, func(l *Ledger, now time.Time) error {
		var err error
		resolved, err = l.ResolveBankDiscrepancy(req, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *Service) UpdateBankStatus(ctx context.Context, ledgerID, statementID string, status BankMatchStatus) (*BankMatch, error) {
	var updated *BankMatch
	_, err := s.update(ctx, ledgerID, func(l *Ledger, now time.Time) error {
		var err error
		updated, err = l.UpdateBankMatchStatus(statementID, status, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// COLLABORATOR INGEST
// =============================================================================

func (s *Service) IngestSAPRecords(ctx context.Context, records []SAPRecord) error {
	for i, rec := range records {
		if rec.ID == "" {
			return invalid(fmt.Sprintf("records[%d].id", i), "is required")
		}
		if rec.DocDate.IsZero() {
			return invalid(fmt.Sprintf("records[%d].DocDate", i), "is required")
		}
	}
	return s.repo.SaveSAPRecords(ctx, records)
}

func (s *Service) IngestBankStatements(ctx context.Context, statements []BankStatement) error {
	for i, st := range statements {
		if st.ID == "" {
			return invalid(fmt.Sprintf("statements[%d].id", i), "is required")
		}
		if st.Date.IsZero() {
			return invalid(fmt.Sprintf("statements[%d].date", i), "is required")
		}
	}
	return s.repo.SaveBankStatements(ctx, statements)
}

func (s *Service) DailySales(ctx context.Context, id string) (*DailySales, error) {
	return s.repo.GetDailySales(ctx, id)
}
