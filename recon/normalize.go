package recon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// NAME NORMALIZER
// =============================================================================

// legalForms are stripped when they lead a name and more text follows.
var legalFormPrefix = regexp.MustCompile(`^(sarl|sas|sa|eurl|sci) `)

type abbreviation struct {
	pattern *regexp.Regexp
	expand  string
}

// Expanded on word boundaries so that already expanded words are left alone.
var abbreviations = []abbreviation{
	{regexp.MustCompile(`\bco\b`), "company"},
	{regexp.MustCompile(`\bcorp\b`), "corporation"},
	{regexp.MustCompile(`\bbros\b`), "brothers"},
	{regexp.MustCompile(`\bcie\b`), "company"},
	{regexp.MustCompile(`\bltd\b`), "limited"},
	{regexp.MustCompile(`\binc\b`), "incorporated"},
}

// Normalize canonicalizes a company or client name for comparison.
//
//	"SARL Dupont & Frères" -> "dupont freres"
//	"Martin Bros. Ltd"     -> "martin brothers limited"
//
// Normalize is pure and idempotent; empty input yields "".
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	s := foldDiacritics(strings.ToLower(name))

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	for legalFormPrefix.MatchString(s) {
		s = legalFormPrefix.ReplaceAllString(s, "")
	}

	for _, a := range abbreviations {
		s = a.pattern.ReplaceAllString(s, a.expand)
	}
	return s
}

// foldDiacritics turns "Frères" into "Freres". The transformer is stateful,
// so a new chain is built per call.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
