package recon_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/reconciliation-engine/recon"
)

// =============================================================================
// FILTER TESTS
// =============================================================================

func TestWithinTolerance_AnchoredOnTarget(t *testing.T) {
	tol := money("0.01")

	assert.True(t, recon.WithinTolerance(money("1005"), money("1000"), tol))
	assert.False(t, recon.WithinTolerance(money("1011"), money("1000"), tol))

	// Boundary is inclusive. 1000 against 1010 also lies inside: the limit
	// is 1% of the target (10.10), not of the sales amount. This follows the
	// tolerance formula and deliberately departs from the worked example
	// that lists 1000 vs 1010 as unmatched.
	assert.True(t, recon.WithinTolerance(money("1000"), money("1010"), tol))
	assert.True(t, recon.WithinTolerance(money("1010"), money("1000"), tol))
	assert.True(t, recon.WithinTolerance(money("990"), money("1000"), tol))

	// Negative amounts use the absolute target
	assert.True(t, recon.WithinTolerance(money("-1005"), money("-1000"), tol))
}

func TestWithinWindow(t *testing.T) {
	assert.True(t, recon.WithinWindow(march(1), march(1), 0))
	assert.True(t, recon.WithinWindow(march(1), march(31), 30))
	assert.True(t, recon.WithinWindow(march(31), march(1), 30))
	assert.False(t, recon.WithinWindow(march(1), march(31), 29))

	// Unknown dates never fall in a window
	assert.False(t, recon.WithinWindow(recon.Date{}, march(1), 1000))
}

func TestMatchingConfig_Validate(t *testing.T) {
	require.NoError(t, recon.DefaultMatchingConfig().Validate())

	bad := []func(*recon.MatchingConfig){
		func(c *recon.MatchingConfig) { c.DateWindowDays = -1 },
		func(c *recon.MatchingConfig) { c.AmountTolerance = money("-0.01") },
		func(c *recon.MatchingConfig) { c.AcceptThreshold = 1.5 },
		func(c *recon.MatchingConfig) { c.Similarity = "jaro" },
		func(c *recon.MatchingConfig) { c.Strategy = "optimal" },
		func(c *recon.MatchingConfig) { c.SuggestLimit = 0 },
	}
	for i, mutate := range bad {
		cfg := recon.DefaultMatchingConfig()
		mutate(&cfg)
		err := cfg.Validate()
		require.Error(t, err, "case %d", i)
		assert.True(t, errors.Is(err, recon.ErrInvalidInput), "case %d", i)
		assert.True(t, recon.IsClientError(err), "case %d", i)
	}
}

// =============================================================================
// MATCHING TESTS
// =============================================================================

func TestMatcher_AcceptsNameAndAmountWithinTolerance(t *testing.T) {
	// GIVEN: An excel line and an SAP invoice with a legal-form prefix
	// WHEN: Matching
	// THEN: They pair with an exact name score

	m := recon.NewMatcher(recon.DefaultMatchingConfig())
	source := []recon.TransactionRecord{excelRecord("x1", march(1), "Boulangerie Martin", "500")}
	target := []recon.TransactionRecord{sapRecord("INV-1", march(2), "SARL Boulangerie Martin", "503").Record()}

	result := m.Match(source, target)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, recon.ExactScore, result.Pairs[0].Score)
	assert.Empty(t, result.UnmatchedSource)
	assert.Empty(t, result.UnmatchedTarget)

	match := result.Pairs[0].ToMatch()
	assert.Equal(t, "x1", match.SourceID)
	assert.Equal(t, "INV-1", match.TargetID)
	assert.Equal(t, recon.CategoryCheques, match.Category)
	assert.Equal(t, march(2), match.TargetDate)
}

func TestMatcher_RejectsOutsideToleranceOrWindow(t *testing.T) {
	m := recon.NewMatcher(recon.DefaultMatchingConfig())
	source := []recon.TransactionRecord{
		excelRecord("amount", march(1), "Dupont", "1011"),
		excelRecord("window", recon.NewDate(2024, 1, 1), "Dupont", "1000"),
	}
	target := []recon.TransactionRecord{sapRecord("INV-1", march(1), "Dupont", "1000").Record()}

	result := m.Match(source, target)

	assert.Empty(t, result.Pairs)
	assert.Len(t, result.UnmatchedSource, 2)
	assert.Len(t, result.UnmatchedTarget, 1)
}

func TestMatcher_ThresholdIsStrict(t *testing.T) {
	// GIVEN: A containment match (0.9) and a threshold of exactly 0.9
	// THEN: It is rejected, the score must be strictly greater

	cfg := recon.DefaultMatchingConfig()
	cfg.AcceptThreshold = recon.ContainmentScore
	m := recon.NewMatcher(cfg)

	source := []recon.TransactionRecord{excelRecord("x1", march(1), "Boulangerie Martin", "500")}
	target := []recon.TransactionRecord{sapRecord("INV-1", march(1), "Boulangerie Martin et Fils", "500").Record()}

	result := m.Match(source, target)
	assert.Empty(t, result.Pairs)
	assert.Len(t, result.UnmatchedSource, 1)
}

func TestMatcher_FirstSeenWinsTies(t *testing.T) {
	// GIVEN: Two SAP invoices with the same name and amount
	// WHEN: Matching one excel line
	// THEN: The first target is claimed, the second stays unmatched

	m := recon.NewMatcher(recon.DefaultMatchingConfig())
	source := []recon.TransactionRecord{excelRecord("x1", march(5), "Dupont", "100")}
	target := []recon.TransactionRecord{
		sapRecord("INV-A", march(4), "Dupont", "100").Record(),
		sapRecord("INV-B", march(5), "Dupont", "100").Record(),
	}

	result := m.Match(source, target)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "INV-A", result.Pairs[0].Target.ID)
	require.Len(t, result.UnmatchedTarget, 1)
	assert.Equal(t, "INV-B", result.UnmatchedTarget[0].ID)
}

func TestMatcher_PrefersHigherScore(t *testing.T) {
	m := recon.NewMatcher(recon.DefaultMatchingConfig())
	source := []recon.TransactionRecord{excelRecord("x1", march(5), "Dupont Freres", "100")}
	target := []recon.TransactionRecord{
		sapRecord("INV-A", march(5), "Dupont Freres et Associes", "100").Record(),
		sapRecord("INV-B", march(5), "SARL Dupont Frères", "100").Record(),
	}

	result := m.Match(source, target)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "INV-B", result.Pairs[0].Target.ID)
	assert.Equal(t, recon.ExactScore, result.Pairs[0].Score)
}

func TestMatcher_GreedyAllowsDoubleClaim(t *testing.T) {
	// GIVEN: Two identical excel lines and a single SAP invoice
	// WHEN: Matching with the default greedy strategy
	// THEN: Both lines match the same invoice

	m := recon.NewMatcher(recon.DefaultMatchingConfig())
	source := []recon.TransactionRecord{
		excelRecord("x1", march(2), "Patisserie Dupont", "120"),
		excelRecord("x2", march(3), "Patisserie Dupont", "120"),
	}
	target := []recon.TransactionRecord{sapRecord("INV-1", march(2), "Patisserie Dupont", "120").Record()}

	result := m.Match(source, target)

	require.Len(t, result.Pairs, 2)
	assert.Equal(t, "INV-1", result.Pairs[0].Target.ID)
	assert.Equal(t, "INV-1", result.Pairs[1].Target.ID)
	assert.Empty(t, result.UnmatchedTarget)
}

func TestMatcher_ExclusiveClaimsEachTargetOnce(t *testing.T) {
	// GIVEN: The same double-claim input
	// WHEN: Matching with the exclusive strategy
	// THEN: The first line gets the invoice, the second is unmatched

	cfg := recon.DefaultMatchingConfig()
	cfg.Strategy = recon.StrategyExclusive
	m := recon.NewMatcher(cfg)

	source := []recon.TransactionRecord{
		excelRecord("x1", march(2), "Patisserie Dupont", "120"),
		excelRecord("x2", march(3), "Patisserie Dupont", "120"),
	}
	target := []recon.TransactionRecord{sapRecord("INV-1", march(2), "Patisserie Dupont", "120").Record()}

	result := m.Match(source, target)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "x1", result.Pairs[0].Source.ID)
	require.Len(t, result.UnmatchedSource, 1)
	assert.Equal(t, "x2", result.UnmatchedSource[0].ID)
	assert.Empty(t, result.UnmatchedTarget)
}

func TestMatcher_ExclusiveGivesContestedTargetToBestScore(t *testing.T) {
	cfg := recon.DefaultMatchingConfig()
	cfg.Strategy = recon.StrategyExclusive
	m := recon.NewMatcher(cfg)

	// x1 only contains the invoice name, x2 equals it.
	source := []recon.TransactionRecord{
		excelRecord("x1", march(2), "Dupont Freres Traiteur", "120"),
		excelRecord("x2", march(2), "Dupont Freres", "120"),
	}
	target := []recon.TransactionRecord{sapRecord("INV-1", march(2), "Dupont Freres", "120").Record()}

	result := m.Match(source, target)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "x2", result.Pairs[0].Source.ID)
	require.Len(t, result.UnmatchedSource, 1)
	assert.Equal(t, "x1", result.UnmatchedSource[0].ID)
}

func TestMatcher_POSRecordsAreSetAside(t *testing.T) {
	m := recon.NewMatcher(recon.DefaultMatchingConfig())
	pos := excelRecord("p1", march(4), "Client comptoir", "212.50")
	pos.IsPOS = true
	source := []recon.TransactionRecord{pos, excelRecord("x1", march(4), "Dupont", "50")}
	target := []recon.TransactionRecord{sapRecord("INV-1", march(4), "Client comptoir", "212.50").Record()}

	result := m.Match(source, target)

	require.Len(t, result.POS, 1)
	assert.Equal(t, "p1", result.POS[0].ID)
	assert.Empty(t, result.Pairs)
	assert.Len(t, result.UnmatchedSource, 1)
	assert.Len(t, result.UnmatchedTarget, 1)
}

func TestMatcher_PartitionIsComplete(t *testing.T) {
	// Every non-POS source record is either paired or unmatched, for both
	// strategies.

	source := []recon.TransactionRecord{
		excelRecord("x1", march(1), "Dupont", "100"),
		excelRecord("x2", march(2), "Dupont", "100"),
		excelRecord("x3", march(3), "Martin", "250"),
		excelRecord("x4", march(4), "Inconnu", "75"),
		excelRecord("x5", march(5), "", "10"),
	}
	target := []recon.TransactionRecord{
		sapRecord("INV-1", march(1), "Dupont SAS", "100").Record(),
		sapRecord("INV-2", march(3), "SARL Martin", "251").Record(),
		sapRecord("INV-3", march(9), "Lefevre", "900").Record(),
	}

	for _, strategy := range []recon.Strategy{recon.StrategyGreedy, recon.StrategyExclusive} {
		cfg := recon.DefaultMatchingConfig()
		cfg.Strategy = strategy
		result := recon.NewMatcher(cfg).Match(source, target)

		assert.Equal(t, len(source), len(result.Pairs)+len(result.UnmatchedSource), "strategy %s", strategy)

		claimed := map[string]bool{}
		for _, p := range result.Pairs {
			claimed[p.Target.ID] = true
		}
		assert.Equal(t, len(target), len(claimed)+len(result.UnmatchedTarget), "strategy %s", strategy)
	}
}
