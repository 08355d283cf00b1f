/*
bank.go - Bank reconciliation pass and merge

PURPOSE:
  Layers a second, independent matching pass on top of a stored Ledger:
  bank statement lines are matched against the ledger's excel and SAP
  records, and the results are merged into the ledger's bank sub-ledger.

MATCH CLASSIFICATION:
  amount_and_name  name score > AcceptThreshold (high when >= 0.9, else medium)
  amount_only      no name match, but a candidate in the date window has the
                   same amount within BankAmountEpsilon (low)
  manual           created by an operator (resolution.go)

MERGE (first write wins):
  1. Identities already taken = stored matches + resolved discrepancies
  2. New matches for a taken identity are dropped, the rest are appended
  3. Discrepancies are rebuilt as "all statements minus matched identities";
     resolved discrepancies are carried over untouched and never dropped
  Running the pass twice on unchanged statements is a no-op.

VIEWS:
  The ledger always stores the full, unfiltered sub-ledger so later merges
  see the whole history. View() projects it onto a display date range.

SEE ALSO:
  - matcher.go: The engine reused for the pass
  - resolution.go: MatchToBank, ResolveBankDiscrepancy, UpdateBankMatchStatus
*/
package recon

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CANDIDATES
// =============================================================================

// BankCandidates returns the ledger records a bank line can be matched with:
// the excel side of every match, every excel discrepancy and every SAP
// discrepancy (regular and extended), de-duplicated by record id.
func (l *Ledger) BankCandidates() []TransactionRecord {
	seen := make(map[string]bool)
	var out []TransactionRecord
	add := func(rec TransactionRecord) {
		if rec.ID == "" || seen[rec.ID] {
			return
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}

	for _, category := range sortedKeys(l.Matches) {
		for _, m := range l.Matches[category] {
			add(TransactionRecord{
				ID:       m.SourceID,
				Date:     m.Date,
				Client:   m.SourceClientName,
				Amount:   m.SourceAmount,
				Category: m.Category,
				Source:   SourceExcel,
				SalesRef: m.SalesRef,
			})
		}
	}
	for _, category := range sortedKeys(l.ExcelDiscrepancies) {
		for _, d := range l.ExcelDiscrepancies[category] {
			add(TransactionRecord{
				ID:       d.ID,
				Date:     d.Date,
				Client:   d.Client,
				Amount:   d.Amount,
				Category: d.Category,
				Source:   SourceExcel,
				SalesRef: d.SalesRef,
			})
		}
	}
	for _, s := range l.SAPDiscrepancies {
		add(s.Record())
	}
	for _, s := range l.ExtendedSAPDiscrepancies {
		add(s.Record())
	}
	return out
}

func matchSourceOf(rec TransactionRecord) MatchSource {
	if rec.Source == SourceExcel {
		return MatchSourceExcel
	}
	return MatchSourceSAP
}

func matchedTransactionOf(rec TransactionRecord) MatchedTransaction {
	return MatchedTransaction{
		Ref:      rec.ID,
		Client:   rec.Client,
		Amount:   rec.Amount,
		Date:     rec.Date,
		Category: rec.Category,
		SalesRef: rec.SalesRef,
	}
}

// =============================================================================
// BANK PASS
// =============================================================================

// MatchBank matches statements against candidates. Every returned match is
// an automatic one with status pending.
func (m *Matcher) MatchBank(statements []BankStatement, candidates []TransactionRecord, now time.Time) []BankMatch {
	sources := make([]TransactionRecord, len(statements))
	for i, s := range statements {
		sources[i] = s.Record()
	}

	result := m.Match(sources, candidates)

	claimed := make(map[string]bool)
	var matches []BankMatch
	for _, p := range result.Pairs {
		confidence := ConfidenceMedium
		if p.Score >= ContainmentScore {
			confidence = ConfidenceHigh
		}
		matches = append(matches, newBankMatch(p.Source, p.Target, MatchAmountAndName, confidence, p.Score, now))
		claimed[p.Target.ID] = true
	}

	for _, s := range result.UnmatchedSource {
		for _, c := range candidates {
			if claimed[c.ID] || !WithinWindow(s.Date, c.Date, m.Config.DateWindowDays) {
				continue
			}
			if s.Amount.Sub(c.Amount).Abs().LessThanOrEqual(m.Config.BankAmountEpsilon) {
				matches = append(matches, newBankMatch(s, c, MatchAmountOnly, ConfidenceLow, 0, now))
				claimed[c.ID] = true
				break
			}
		}
	}
	return matches
}

func newBankMatch(statement, target TransactionRecord, kind BankMatchType, confidence Confidence, score float64, now time.Time) BankMatch {
	return BankMatch{
		ID:                 statement.ID + ":" + target.ID,
		BankStatementRef:   statement.ID,
		MatchedTransaction: matchedTransactionOf(target),
		MatchSource:        matchSourceOf(target),
		MatchType:          kind,
		Confidence:         confidence,
		Score:              score,
		Status:             BankMatchPending,
		Amount:             statement.Amount,
		Date:               statement.Date,
		CreatedAt:          now,
	}
}

// =============================================================================
// MERGE
// =============================================================================

// takenStatements returns the statement ids no automatic pass may claim.
func (b *BankReconciliation) takenStatements() map[string]bool {
	taken := make(map[string]bool)
	for _, m := range b.Matches {
		taken[m.BankStatementRef] = true
	}
	for _, d := range b.Discrepancies {
		if d.Status == BankDiscrepancyResolved {
			taken[d.BankStatementRef] = true
		}
	}
	return taken
}

// MergeBankResults merges newly computed matches into the ledger's bank
// sub-ledger and rebuilds its discrepancies from the full statement list.
// It returns the number of matches actually added.
func MergeBankResults(l *Ledger, newMatches []BankMatch, statements []BankStatement, now time.Time) int {
	bank := &l.BankReconciliation
	taken := bank.takenStatements()

	added := 0
	for _, m := range newMatches {
		if taken[m.BankStatementRef] {
			continue
		}
		taken[m.BankStatementRef] = true
		bank.Matches = append(bank.Matches, m)
		added++
	}

	bank.Discrepancies = rebuildDiscrepancies(bank, statements)
	bank.Summary = SummarizeBank(bank.Matches, bank.Discrepancies)
	bank.LastUpdated = &now
	return added
}

func rebuildDiscrepancies(bank *BankReconciliation, statements []BankStatement) []BankDiscrepancy {
	matched := make(map[string]bool, len(bank.Matches))
	for _, m := range bank.Matches {
		matched[m.BankStatementRef] = true
	}
	resolved := make(map[string]BankDiscrepancy)
	var resolvedOrder []string
	for _, d := range bank.Discrepancies {
		if d.Status == BankDiscrepancyResolved {
			resolved[d.BankStatementRef] = d
			resolvedOrder = append(resolvedOrder, d.BankStatementRef)
		}
	}

	sorted := append([]BankStatement(nil), statements...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := []BankDiscrepancy{}
	emitted := make(map[string]bool)
	for _, s := range sorted {
		if emitted[s.ID] {
			continue
		}
		if d, ok := resolved[s.ID]; ok {
			out = append(out, d)
			emitted[s.ID] = true
			continue
		}
		if matched[s.ID] {
			continue
		}
		out = append(out, BankDiscrepancy{
			BankStatementRef: s.ID,
			Status:           BankDiscrepancyUnmatched,
			Amount:           s.Amount,
			Date:             s.Date,
			Label:            s.Label,
		})
		emitted[s.ID] = true
	}

	// Resolved entries whose statement disappeared upstream are kept.
	for _, ref := range resolvedOrder {
		if !emitted[ref] {
			out = append(out, resolved[ref])
			emitted[ref] = true
		}
	}
	return out
}

// SummarizeBank counts matched and unmatched statements. A resolved
// discrepancy counts as matched.
func SummarizeBank(matches []BankMatch, discrepancies []BankDiscrepancy) BankSummary {
	summary := BankSummary{TotalAmount: decimal.Zero, MatchedAmount: decimal.Zero}
	for _, m := range matches {
		summary.TotalTransactions++
		summary.MatchedCount++
		summary.TotalAmount = summary.TotalAmount.Add(m.Amount)
		summary.MatchedAmount = summary.MatchedAmount.Add(m.Amount)
	}
	for _, d := range discrepancies {
		summary.TotalTransactions++
		summary.TotalAmount = summary.TotalAmount.Add(d.Amount)
		if d.Status == BankDiscrepancyResolved {
			summary.MatchedCount++
			summary.MatchedAmount = summary.MatchedAmount.Add(d.Amount)
			continue
		}
		summary.UnmatchedCount++
	}
	return summary
}

// =============================================================================
// VIEWS
// =============================================================================

// BankView is a projection of the bank sub-ledger.
type BankView struct {
	Matches       []BankMatch       `json:"matches"`
	Discrepancies []BankDiscrepancy `json:"discrepancies"`
	Summary       BankSummary       `json:"summary"`
}

// View projects the sub-ledger onto r. A nil range means all data.
func (b BankReconciliation) View(r *DateRange) BankView {
	view := BankView{Matches: []BankMatch{}, Discrepancies: []BankDiscrepancy{}}
	for _, m := range b.Matches {
		if r == nil || r.Contains(m.Date) {
			view.Matches = append(view.Matches, m)
		}
	}
	for _, d := range b.Discrepancies {
		if r == nil || r.Contains(d.Date) {
			view.Discrepancies = append(view.Discrepancies, d)
		}
	}
	view.Summary = SummarizeBank(view.Matches, view.Discrepancies)
	return view
}
