/*
Package factory provides JSON to Go matching-profile conversion.

PURPOSE:
  Converts JSON matching profiles into recon.MatchingConfig. Back-office
  staff tune the date window, tolerances and similarity metric per tenant
  without a code change, and the server loads the profile at startup
  (-profile flag).

JSON SCHEMA:
  {
    "name": "strict",
    "date_window_days": 15,
    "amount_tolerance": "0.005",
    "accept_threshold": 0.75,
    "similarity": "dice",
    "strategy": "exclusive",
    "suggestions": {
      "window_days": 20,
      "tolerance": "0.30",
      "limit": 5,
      "tie_band": 0.6
    },
    "bank": {
      "amount_epsilon": "0.01"
    }
  }

DEFAULTS:
  Every field is optional. A missing field keeps the value of
  recon.DefaultMatchingConfig(). Amounts accept JSON numbers or strings.

USAGE:
  f := NewProfileFactory()
  cfg, err := f.ParseProfile(jsonString)

  // Presets
  cfg, err := f.ParseProfile(StrictProfileJSON())

SEE ALSO:
  - recon/matcher.go: MatchingConfig
  - cmd/server/main.go: -profile flag
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/reconciliation-engine/recon"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProfileJSON is the JSON representation of a matching profile.
type ProfileJSON struct {
	Name            string           `json:"name,omitempty"`
	DateWindowDays  *int             `json:"date_window_days,omitempty"`
	AmountTolerance *decimal.Decimal `json:"amount_tolerance,omitempty"`
	AcceptThreshold *float64         `json:"accept_threshold,omitempty"`
	Similarity      string           `json:"similarity,omitempty"` // dice, levenshtein
	Strategy        string           `json:"strategy,omitempty"`   // greedy, exclusive
	Suggestions     *SuggestionsJSON `json:"suggestions,omitempty"`
	Bank            *BankJSON        `json:"bank,omitempty"`
}

// SuggestionsJSON configures the potential-match finder.
type SuggestionsJSON struct {
	WindowDays *int             `json:"window_days,omitempty"`
	Tolerance  *decimal.Decimal `json:"tolerance,omitempty"`
	Limit      *int             `json:"limit,omitempty"`
	TieBand    *float64         `json:"tie_band,omitempty"`
}

// BankJSON configures the bank pass.
type BankJSON struct {
	AmountEpsilon *decimal.Decimal `json:"amount_epsilon,omitempty"`
}

// =============================================================================
// PROFILE FACTORY
// =============================================================================

// ProfileFactory converts JSON profiles to matching configurations.
type ProfileFactory struct{}

// NewProfileFactory creates a new profile factory.
func NewProfileFactory() *ProfileFactory {
	return &ProfileFactory{}
}

// ParseProfile parses a JSON string into a validated MatchingConfig.
func (f *ProfileFactory) ParseProfile(jsonStr string) (recon.MatchingConfig, error) {
	var pj ProfileJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return recon.MatchingConfig{}, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON applies pj on top of the default configuration.
func (f *ProfileFactory) FromJSON(pj ProfileJSON) (recon.MatchingConfig, error) {
	cfg := recon.DefaultMatchingConfig()

	if pj.DateWindowDays != nil {
		cfg.DateWindowDays = *pj.DateWindowDays
	}
	if pj.AmountTolerance != nil {
		cfg.AmountTolerance = *pj.AmountTolerance
	}
	if pj.AcceptThreshold != nil {
		cfg.AcceptThreshold = *pj.AcceptThreshold
	}
	if pj.Similarity != "" {
		cfg.Similarity = recon.SimilarityMetric(pj.Similarity)
	}
	if pj.Strategy != "" {
		cfg.Strategy = recon.Strategy(pj.Strategy)
	}

	if s := pj.Suggestions; s != nil {
		if s.WindowDays != nil {
			cfg.SuggestWindowDays = *s.WindowDays
		}
		if s.Tolerance != nil {
			cfg.SuggestTolerance = *s.Tolerance
		}
		if s.Limit != nil {
			cfg.SuggestLimit = *s.Limit
		}
		if s.TieBand != nil {
			cfg.SuggestTieBand = *s.TieBand
		}
	}

	if pj.Bank != nil && pj.Bank.AmountEpsilon != nil {
		cfg.BankAmountEpsilon = *pj.Bank.AmountEpsilon
	}

	if err := cfg.Validate(); err != nil {
		return recon.MatchingConfig{}, fmt.Errorf("invalid profile %q: %w", pj.Name, err)
	}
	return cfg, nil
}

// ToJSON converts a MatchingConfig to its full JSON representation.
func (f *ProfileFactory) ToJSON(name string, cfg recon.MatchingConfig) ProfileJSON {
	window, tolerance, threshold := cfg.DateWindowDays, cfg.AmountTolerance, cfg.AcceptThreshold
	sWindow, sTolerance, sLimit, sBand := cfg.SuggestWindowDays, cfg.SuggestTolerance, cfg.SuggestLimit, cfg.SuggestTieBand
	epsilon := cfg.BankAmountEpsilon

	return ProfileJSON{
		Name:            name,
		DateWindowDays:  &window,
		AmountTolerance: &tolerance,
		AcceptThreshold: &threshold,
		Similarity:      string(cfg.Similarity),
		Strategy:        string(cfg.Strategy),
		Suggestions: &SuggestionsJSON{
			WindowDays: &sWindow,
			Tolerance:  &sTolerance,
			Limit:      &sLimit,
			TieBand:    &sBand,
		},
		Bank: &BankJSON{AmountEpsilon: &epsilon},
	}
}

// =============================================================================
// PRESET PROFILES
// =============================================================================

// DefaultProfileJSON keeps every default.
func DefaultProfileJSON() string {
	return `{"name": "default"}`
}

// StrictProfileJSON narrows the window and tolerance and assigns each SAP
// document at most once.
func StrictProfileJSON() string {
	return `{
		"name": "strict",
		"date_window_days": 15,
		"amount_tolerance": "0.005",
		"accept_threshold": 0.75,
		"strategy": "exclusive"
	}`
}

// LenientProfileJSON tolerates typos in client names and rounding on
// cash lines.
func LenientProfileJSON() string {
	return `{
		"name": "lenient",
		"amount_tolerance": "0.02",
		"similarity": "levenshtein",
		"suggestions": {"window_days": 30}
	}`
}

// Presets returns the built-in profiles by name.
func Presets() map[string]string {
	return map[string]string{
		"default": DefaultProfileJSON(),
		"strict":  StrictProfileJSON(),
		"lenient": LenientProfileJSON(),
	}
}
