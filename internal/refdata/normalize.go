// Package refdata provides read-only access to the rule corpus and the
// reference datasets a run checks documents against: the fund registration
// table, the disclaimer template glossary and prospectus-derived facts.
package refdata

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var parenthetical = regexp.MustCompile(`\s*\([^)]*\)`)

// diacriticFold strips combining marks after NFD decomposition, so
// "Luxembourg" and "Luxembourg" with decorated vowels compare equal.
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes a country or entity name for comparison:
// parenthetical suffixes stripped, diacritics folded, lowercased, inner
// whitespace collapsed. Idempotent: NormalizeName(NormalizeName(x)) ==
// NormalizeName(x).
func NormalizeName(s string) string {
	s = parenthetical.ReplaceAllString(s, "")
	if folded, _, err := transform.String(diacriticFold, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// countryAliases maps normalized alternate spellings to the canonical
// normalized form used in registration tables. Multilingual documents name
// countries in the document language; the table is keyed in English.
var countryAliases = map[string]string{
	"allemagne":      "germany",
	"deutschland":    "germany",
	"france":         "france",
	"espagne":        "spain",
	"espana":         "spain",
	"spanien":        "spain",
	"italie":         "italy",
	"italia":         "italy",
	"italien":        "italy",
	"suisse":         "switzerland",
	"schweiz":        "switzerland",
	"svizzera":       "switzerland",
	"belgique":       "belgium",
	"belgien":        "belgium",
	"pays-bas":       "netherlands",
	"niederlande":    "netherlands",
	"autriche":       "austria",
	"osterreich":     "austria",
	"royaume-uni":    "united kingdom",
	"grande-bretagne": "united kingdom",
	"uk":             "united kingdom",
	"luxemburg":      "luxembourg",
	"portugal":       "portugal",
	"irlande":        "ireland",
	"irland":         "ireland",
	"suede":          "sweden",
	"schweden":       "sweden",
	"norvege":        "norway",
	"danemark":       "denmark",
	"finlande":       "finland",
	"grece":          "greece",
}

// CanonicalCountry normalizes a country mention and resolves known aliases
// to the registration table's canonical form.
func CanonicalCountry(s string) string {
	n := NormalizeName(s)
	if canon, ok := countryAliases[n]; ok {
		return canon
	}
	return n
}
