package graph

import (
	"regexp"
	"strconv"
	"strings"
)

// Extractor output spells amounts every way imaginable ("$2.5 billion",
// "400M", "1,000,000"). Multipliers are ordered longest first so
// "billion" wins over the bare "b".
var amountMultipliers = []struct {
	suffix string
	mult   float64
}{
	{"billion", 1e9},
	{"bn", 1e9},
	{"b", 1e9},
	{"million", 1e6},
	{"mm", 1e6},
	{"mn", 1e6},
	{"m", 1e6},
	{"thousand", 1e3},
	{"k", 1e3},
}

var amountPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(amountMultipliers))
	for i, m := range amountMultipliers {
		out[i] = regexp.MustCompile(`([\d.]+)\s*` + m.suffix)
	}
	return out
}()

// ParseAmount parses a free-form money string. The boolean is false
// when no number can be extracted; malformed input is never an error.
func ParseAmount(text string) (float64, bool) {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "$", "")
	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSpace(text)

	for i, m := range amountMultipliers {
		if !strings.Contains(text, m.suffix) {
			continue
		}
		match := amountPatterns[i].FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if v, err := strconv.ParseFloat(match[1], 64); err == nil {
			return v * m.mult, true
		}
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
