package recon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/reconciliation-engine/recon"
)

func discrepancy(id string, date recon.Date, client, amount string) recon.Discrepancy {
	return recon.Discrepancy{ID: id, Date: date, Client: client, Amount: money(amount), Category: recon.CategoryCheques}
}

func hotelInvoice() recon.SAPRecord {
	return sapRecord("INV-1101", march(10), "Hotel du Parc", "860")
}

func hotelCandidates() []recon.Discrepancy {
	resolved := discrepancy("resolved", march(10), "Hotel du Parc", "860")
	resolved.Resolved = true
	return []recon.Discrepancy{
		discrepancy("exact-name", march(8), "Hôtel du Parc", "850"),
		discrepancy("close-amount", march(9), "Hotel du Parc SAS", "860"),
		resolved,
		discrepancy("too-late", recon.NewDate(2024, 4, 20), "Hotel du Parc", "860"),
		discrepancy("too-far", march(10), "Hotel du Parc", "2000"),
	}
}

func TestSuggest_FiltersAndRanksByAmountWithinTieBand(t *testing.T) {
	// GIVEN: An exact-name candidate 10 away and a containment candidate
	//        with the exact amount
	// WHEN: Ranking with the default tie band
	// THEN: The scores are close, so the amount decides

	m := recon.NewMatcher(recon.DefaultMatchingConfig())

	suggestions := m.Suggest(hotelInvoice(), hotelCandidates())

	require.Len(t, suggestions, 2)
	assert.Equal(t, "close-amount", suggestions[0].Discrepancy.ID)
	assert.Equal(t, recon.ContainmentScore, suggestions[0].Score)
	assertMoney(t, "0", suggestions[0].AmountDifference)

	assert.Equal(t, "exact-name", suggestions[1].Discrepancy.ID)
	assert.Equal(t, recon.ExactScore, suggestions[1].Score)
	assertMoney(t, "10", suggestions[1].AmountDifference)
}

func TestSuggest_NarrowTieBandRanksByScore(t *testing.T) {
	cfg := recon.DefaultMatchingConfig()
	cfg.SuggestTieBand = 0.05
	m := recon.NewMatcher(cfg)

	suggestions := m.Suggest(hotelInvoice(), hotelCandidates())

	require.Len(t, suggestions, 2)
	assert.Equal(t, "exact-name", suggestions[0].Discrepancy.ID)
	assert.Equal(t, "close-amount", suggestions[1].Discrepancy.ID)
}

func TestSuggest_TieBandIsInclusive(t *testing.T) {
	// GIVEN: A tie band exactly equal to the score gap
	// WHEN: Ranking
	// THEN: The gap counts as a tie and the closer amount wins

	// Computed in float64 like the ranking, not as an exact constant
	exact, containment := float64(recon.ExactScore), float64(recon.ContainmentScore)
	cfg := recon.DefaultMatchingConfig()
	cfg.SuggestTieBand = exact - containment
	m := recon.NewMatcher(cfg)

	suggestions := m.Suggest(hotelInvoice(), hotelCandidates())

	require.Len(t, suggestions, 2)
	assert.Equal(t, "close-amount", suggestions[0].Discrepancy.ID)
	assert.Equal(t, "exact-name", suggestions[1].Discrepancy.ID)
}

func TestSuggest_Limit(t *testing.T) {
	cfg := recon.DefaultMatchingConfig()
	cfg.SuggestLimit = 1
	m := recon.NewMatcher(cfg)

	suggestions := m.Suggest(hotelInvoice(), hotelCandidates())
	assert.Len(t, suggestions, 1)
}

func TestSuggest_NoCandidates(t *testing.T) {
	m := recon.NewMatcher(recon.DefaultMatchingConfig())

	suggestions := m.Suggest(hotelInvoice(), nil)
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}
