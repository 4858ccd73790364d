package resolver

import (
	"regexp"
	"strings"
)

// legalSuffixes is the strip list for company names, in match order.
// Dotted spellings sit before their bare forms so " Inc." is taken off
// before " Inc" gets a chance at the leftover dot.
var legalSuffixes = []string{
	" inc.", " inc", " corp.", " corp", " llc", " ltd.", " ltd",
	" corporation", " company", " co.", " co", " plc", " lp", " llp",
	" holdings", " group", " technologies", " technology", " systems",
}

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeName reduces an entity name to its comparison form: lowercase
// and trimmed, legal suffixes stripped, punctuation dropped, whitespace
// collapsed. The suffix list is walked once in order against the current
// value, so stacked suffixes ("Acme Holdings Inc") each come off, but no
// entry applies twice. Callers with domain-specific suffixes append them
// through extraSuffixes; they are tested after the built-in list.
func NormalizeName(name string, extraSuffixes ...string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			normalized = strings.TrimSpace(normalized[:len(normalized)-len(suffix)])
		}
	}
	for _, suffix := range extraSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			normalized = strings.TrimSpace(normalized[:len(normalized)-len(suffix)])
		}
	}

	normalized = nonWordRe.ReplaceAllString(normalized, "")
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
