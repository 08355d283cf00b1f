package factory

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/reconciliation-engine/recon"
)

func TestParseProfile_DefaultKeepsEveryDefault(t *testing.T) {
	f := NewProfileFactory()

	cfg, err := f.ParseProfile(DefaultProfileJSON())
	require.NoError(t, err)

	want := recon.DefaultMatchingConfig()
	assert.Equal(t, want.DateWindowDays, cfg.DateWindowDays)
	assert.True(t, want.AmountTolerance.Equal(cfg.AmountTolerance))
	assert.Equal(t, want.AcceptThreshold, cfg.AcceptThreshold)
	assert.Equal(t, recon.SimilarityDice, cfg.Similarity)
	assert.Equal(t, recon.StrategyGreedy, cfg.Strategy)
}

func TestParseProfile_Presets(t *testing.T) {
	f := NewProfileFactory()

	for name, doc := range Presets() {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseProfile(doc)
			assert.NoError(t, err)
		})
	}

	strict, err := f.ParseProfile(StrictProfileJSON())
	require.NoError(t, err)
	assert.Equal(t, 15, strict.DateWindowDays)
	assert.True(t, decimal.RequireFromString("0.005").Equal(strict.AmountTolerance))
	assert.Equal(t, 0.75, strict.AcceptThreshold)
	assert.Equal(t, recon.StrategyExclusive, strict.Strategy)

	lenient, err := f.ParseProfile(LenientProfileJSON())
	require.NoError(t, err)
	assert.Equal(t, recon.SimilarityLevenshtein, lenient.Similarity)
	assert.Equal(t, 30, lenient.SuggestWindowDays)
	assert.Equal(t, 5, lenient.SuggestLimit, "unset suggestion fields keep their default")
}

func TestParseProfile_AmountsAcceptNumbers(t *testing.T) {
	f := NewProfileFactory()

	cfg, err := f.ParseProfile(`{"amount_tolerance": 0.02, "bank": {"amount_epsilon": 0.5}}`)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.02").Equal(cfg.AmountTolerance))
	assert.True(t, decimal.RequireFromString("0.5").Equal(cfg.BankAmountEpsilon))
}

func TestParseProfile_Invalid(t *testing.T) {
	f := NewProfileFactory()

	tests := []struct {
		name string
		doc  string
	}{
		{"malformed json", `{"name": `},
		{"unknown strategy", `{"name": "x", "strategy": "optimal"}`},
		{"unknown similarity", `{"similarity": "jaro"}`},
		{"negative window", `{"date_window_days": -1}`},
		{"threshold above one", `{"accept_threshold": 1.5}`},
		{"zero suggestion limit", `{"suggestions": {"limit": 0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseProfile(tt.doc)
			assert.Error(t, err)
		})
	}

	_, err := f.ParseProfile(`{"name": "x", "strategy": "optimal"}`)
	assert.True(t, recon.IsClientError(err))
	assert.Contains(t, err.Error(), `invalid profile "x"`)
}

func TestToJSON_ParsesBackToSameConfig(t *testing.T) {
	f := NewProfileFactory()
	cfg, err := f.ParseProfile(StrictProfileJSON())
	require.NoError(t, err)

	raw, err := json.Marshal(f.ToJSON("strict", cfg))
	require.NoError(t, err)

	again, err := f.ParseProfile(string(raw))
	require.NoError(t, err)
	assert.Equal(t, cfg.DateWindowDays, again.DateWindowDays)
	assert.Equal(t, cfg.Strategy, again.Strategy)
	assert.Equal(t, cfg.SuggestTieBand, again.SuggestTieBand)
	assert.True(t, cfg.AmountTolerance.Equal(again.AmountTolerance))
	assert.True(t, cfg.SuggestTolerance.Equal(again.SuggestTolerance))
}
