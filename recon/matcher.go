/*
matcher.go - Transaction matching engine

PURPOSE:
  Pairs source-side records (excel lines, bank lines) with target-side
  records (SAP documents, ledger entries) using three filters:
  1. Date window:      |source.Date - target.Date| <= DateWindowDays
  2. Amount tolerance: |source - target| <= |target| * AmountTolerance
  3. Name score:       best NameScorer score must exceed AcceptThreshold

ALGORITHM (StrategyGreedy, the default):
  For each source record, in input order:
    - scan every target that passes the date and amount filters
    - keep the highest name score; the first target seen wins ties
    - an exact name (1.0) stops the scan
    - accept if best score > AcceptThreshold, else the record is unmatched
  A target claimed by one source record is removed from the unmatched
  target list, but stays available for scoring against later source
  records. Two source records can therefore match the same target. This
  is an order dependent approximation, not an optimal assignment.

ALGORITHM (StrategyExclusive, opt-in):
  Scores every eligible pair, then assigns pairs best score first so
  each target is claimed at most once.

POS:
  Source records flagged IsPOS are not matched line by line. They are
  returned in MatchResult.POS for the daily aggregate comparison.

FAILURE HANDLING:
  Never fails. A record with a zero amount or unknown date simply fails
  the filters and ends up unmatched.

SEE ALSO:
  - similarity.go: NameScorer
  - suggest.go: Looser, ranked variant for operators
*/
package recon

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type Strategy string

const (
	StrategyGreedy    Strategy = "greedy"
	StrategyExclusive Strategy = "exclusive"
)

// MatchingConfig holds every tunable of the matching passes.
type MatchingConfig struct {
	DateWindowDays  int              `json:"date_window_days"`
	AmountTolerance decimal.Decimal  `json:"amount_tolerance"`
	AcceptThreshold float64          `json:"accept_threshold"`
	Similarity      SimilarityMetric `json:"similarity"`
	Strategy        Strategy         `json:"strategy"`

	// Potential-match finder
	SuggestWindowDays int             `json:"suggest_window_days"`
	SuggestTolerance  decimal.Decimal `json:"suggest_tolerance"`
	SuggestLimit      int             `json:"suggest_limit"`
	SuggestTieBand    float64         `json:"suggest_tie_band"`

	// Bank pass: maximum absolute difference for an amount-only match.
	BankAmountEpsilon decimal.Decimal `json:"bank_amount_epsilon"`
}

// DefaultMatchingConfig returns the production defaults.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		DateWindowDays:    50,
		AmountTolerance:   decimal.RequireFromString("0.01"),
		AcceptThreshold:   0.6,
		Similarity:        SimilarityDice,
		Strategy:          StrategyGreedy,
		SuggestWindowDays: 20,
		SuggestTolerance:  decimal.RequireFromString("0.30"),
		SuggestLimit:      5,
		SuggestTieBand:    0.6,
		BankAmountEpsilon: decimal.RequireFromString("0.01"),
	}
}

// Validate rejects configurations the engine cannot run with.
func (c MatchingConfig) Validate() error {
	if c.DateWindowDays < 0 {
		return invalid("date_window_days", "must not be negative")
	}
	if c.AmountTolerance.IsNegative() {
		return invalid("amount_tolerance", "must not be negative")
	}
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 1 {
		return invalid("accept_threshold", "must be within [0, 1]")
	}
	switch c.Similarity {
	case SimilarityDice, SimilarityLevenshtein:
	default:
		return invalid("similarity", "must be dice or levenshtein")
	}
	switch c.Strategy {
	case StrategyGreedy, StrategyExclusive:
	default:
		return invalid("strategy", "must be greedy or exclusive")
	}
	if c.SuggestLimit <= 0 {
		return invalid("suggest_limit", "must be positive")
	}
	return nil
}

// =============================================================================
// FILTERS
// =============================================================================

// WithinWindow reports whether two dates are at most days apart.
// Unknown dates are never within any window.
func WithinWindow(a, b Date, days int) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return DaysApart(a, b) <= days
}

// WithinTolerance reports |source - target| <= |target| * tolerance.
// The tolerance is anchored on the target amount; callers must not swap
// the arguments.
func WithinTolerance(source, target, tolerance decimal.Decimal) bool {
	return source.Sub(target).Abs().LessThanOrEqual(target.Abs().Mul(tolerance))
}

// =============================================================================
// MATCHER
// =============================================================================

// Pair is an accepted source/target pairing.
type Pair struct {
	Source TransactionRecord
	Target TransactionRecord
	Score  float64
}

// MatchResult partitions the inputs of a pass.
type MatchResult struct {
	Pairs           []Pair
	UnmatchedSource []TransactionRecord
	UnmatchedTarget []TransactionRecord
	POS             []TransactionRecord
}

type Matcher struct {
	Config MatchingConfig
	scorer *NameScorer
}

func NewMatcher(cfg MatchingConfig) *Matcher {
	return &Matcher{Config: cfg, scorer: NewNameScorer(cfg.Similarity)}
}

// Scorer exposes the name scorer used by this matcher.
func (m *Matcher) Scorer() *NameScorer { return m.scorer }

// Match runs one pass. Inputs are not modified.
func (m *Matcher) Match(source, target []TransactionRecord) MatchResult {
	if m.Config.Strategy == StrategyExclusive {
		return m.matchExclusive(source, target)
	}
	return m.matchGreedy(source, target)
}

func (m *Matcher) matchGreedy(source, target []TransactionRecord) MatchResult {
	var result MatchResult
	names := normalizedNames(target)
	claimed := make([]bool, len(target))

	for _, s := range source {
		if s.IsPOS {
			result.POS = append(result.POS, s)
			continue
		}

		best, bestScore := m.bestCandidate(s, target, names)
		if best >= 0 && bestScore > m.Config.AcceptThreshold {
			result.Pairs = append(result.Pairs, Pair{Source: s, Target: target[best], Score: bestScore})
			claimed[best] = true
			continue
		}
		result.UnmatchedSource = append(result.UnmatchedSource, s)
	}

	result.UnmatchedTarget = unclaimed(target, claimed)
	return result
}

// bestCandidate returns the index and score of the best eligible target,
// or -1 when nothing passes the date and amount filters.
func (m *Matcher) bestCandidate(s TransactionRecord, target []TransactionRecord, names []string) (int, float64) {
	sourceName := Normalize(s.Client)
	best, bestScore := -1, 0.0

	for j, t := range target {
		if !m.eligible(s, t) {
			continue
		}
		score := m.scorer.ScoreNormalized(sourceName, names[j])
		if best < 0 || score > bestScore {
			best, bestScore = j, score
		}
		if bestScore == ExactScore {
			break
		}
	}
	return best, bestScore
}

func (m *Matcher) eligible(s, t TransactionRecord) bool {
	return WithinWindow(s.Date, t.Date, m.Config.DateWindowDays) &&
		WithinTolerance(s.Amount, t.Amount, m.Config.AmountTolerance)
}

type scoredPair struct {
	source, target int
	score          float64
}

func (m *Matcher) matchExclusive(source, target []TransactionRecord) MatchResult {
	var result MatchResult
	names := normalizedNames(target)

	var candidates []scoredPair
	for i, s := range source {
		if s.IsPOS {
			result.POS = append(result.POS, s)
			continue
		}
		sourceName := Normalize(s.Client)
		for j, t := range target {
			if !m.eligible(s, t) {
				continue
			}
			score := m.scorer.ScoreNormalized(sourceName, names[j])
			if score > m.Config.AcceptThreshold {
				candidates = append(candidates, scoredPair{source: i, target: j, score: score})
			}
		}
	}

	// Best score first; input order breaks ties so the result is deterministic.
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	sourceDone := make([]bool, len(source))
	claimed := make([]bool, len(target))
	pairOf := make(map[int]Pair)
	for _, c := range candidates {
		if sourceDone[c.source] || claimed[c.target] {
			continue
		}
		sourceDone[c.source] = true
		claimed[c.target] = true
		pairOf[c.source] = Pair{Source: source[c.source], Target: target[c.target], Score: c.score}
	}

	for i, s := range source {
		if s.IsPOS {
			continue
		}
		if p, ok := pairOf[i]; ok {
			result.Pairs = append(result.Pairs, p)
			continue
		}
		result.UnmatchedSource = append(result.UnmatchedSource, s)
	}
	result.UnmatchedTarget = unclaimed(target, claimed)
	return result
}

func normalizedNames(records []TransactionRecord) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = Normalize(r.Client)
	}
	return names
}

func unclaimed(records []TransactionRecord, claimed []bool) []TransactionRecord {
	var out []TransactionRecord
	for i, r := range records {
		if !claimed[i] {
			out = append(out, r)
		}
	}
	return out
}

// ToMatch converts an accepted pair into a ledger Match filed under the
// source record's category.
func (p Pair) ToMatch() Match {
	return Match{
		Date:               p.Source.Date,
		SourceID:           p.Source.ID,
		TargetID:           p.Target.ID,
		SourceClientName:   p.Source.Client,
		TargetCustomerName: p.Target.Client,
		SourceAmount:       p.Source.Amount,
		TargetAmount:       p.Target.Amount,
		TargetDate:         p.Target.Date,
		TargetDocNum:       p.Target.DocNum,
		Category:           p.Source.Category,
		ConfidenceScore:    p.Score,
		Remarks:            p.Source.Remarks,
		SalesRef:           p.Source.SalesRef,
	}
}
