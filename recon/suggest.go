package recon

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POTENTIAL-MATCH FINDER - Ranked candidates for an operator
// =============================================================================

// Suggestion is one candidate excel line for an SAP discrepancy.
type Suggestion struct {
	Discrepancy      Discrepancy     `json:"discrepancy"`
	Score            float64         `json:"score"`
	AmountDifference decimal.Decimal `json:"amountDifference"`
}

// Suggest ranks candidates for an SAP document using the wider suggestion
// window and tolerance. The tolerance is anchored on the candidate amount.
//
// Ranking is by name score, except that two scores at most SuggestTieBand
// apart are ordered by amount difference instead. The band is
// wide, so in practice amount closeness decides among any plausible
// candidates. Input order breaks remaining ties.
func (m *Matcher) Suggest(sap SAPRecord, candidates []Discrepancy) []Suggestion {
	name := Normalize(sap.CardName)
	suggestions := []Suggestion{}
	for _, d := range candidates {
		if d.Resolved {
			continue
		}
		if !WithinWindow(sap.DocDate, d.Date, m.Config.SuggestWindowDays) {
			continue
		}
		if !WithinTolerance(sap.DocTotal, d.Amount, m.Config.SuggestTolerance) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Discrepancy:      d,
			Score:            m.scorer.ScoreNormalized(name, Normalize(d.Client)),
			AmountDifference: sap.DocTotal.Sub(d.Amount).Abs(),
		})
	}

	band := m.Config.SuggestTieBand
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if math.Abs(a.Score-b.Score) > band {
			return a.Score > b.Score
		}
		if !a.AmountDifference.Equal(b.AmountDifference) {
			return a.AmountDifference.LessThan(b.AmountDifference)
		}
		return a.Score > b.Score
	})

	if limit := m.Config.SuggestLimit; limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}
