package recon

import (
	"strings"

	"github.com/adrg/strutil/metrics"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// =============================================================================
// FUZZY MATCHER - Tiered name similarity in [0, 1]
// =============================================================================

// SimilarityMetric selects the coefficient used by the fallback tier.
type SimilarityMetric string

const (
	SimilarityDice        SimilarityMetric = "dice"
	SimilarityLevenshtein SimilarityMetric = "levenshtein"
)

const (
	// ExactScore is returned when both normalized names are equal.
	ExactScore = 1.0
	// ContainmentScore is returned when one normalized name contains the other.
	ContainmentScore = 0.9
)

// NameScorer scores two names. Tiers, first hit wins:
//  1. equal after Normalize        -> 1.0
//  2. one contains the other       -> 0.9
//  3. string similarity coefficient (Dice bigrams by default)
//
// Empty names never match anything.
type NameScorer struct {
	metric SimilarityMetric
	dice   *metrics.SorensenDice
}

func NewNameScorer(metric SimilarityMetric) *NameScorer {
	dice := metrics.NewSorensenDice()
	dice.NgramSize = 2
	dice.CaseSensitive = true // inputs are already normalized
	if metric == "" {
		metric = SimilarityDice
	}
	return &NameScorer{metric: metric, dice: dice}
}

// Score normalizes both names and scores them.
func (s *NameScorer) Score(a, b string) float64 {
	return s.ScoreNormalized(Normalize(a), Normalize(b))
}

// ScoreNormalized scores names that already went through Normalize.
func (s *NameScorer) ScoreNormalized(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return ExactScore
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return ContainmentScore
	}
	return clampScore(s.coefficient(a, b))
}

func (s *NameScorer) coefficient(a, b string) float64 {
	switch s.metric {
	case SimilarityLevenshtein:
		return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	default:
		// Bigrams are taken over the letters only, spaces carry no signal.
		return s.dice.Compare(strings.ReplaceAll(a, " ", ""), strings.ReplaceAll(b, " ", ""))
	}
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
