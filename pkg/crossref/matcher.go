// Package crossref reconciles funding rounds reported by news coverage
// against the SEC Form D filings that disclose them, and computes the
// confidence boosts verified matches earn.
package crossref

import (
	"math"

	"github.com/signalnest/magpie/pkg/resolver"
)

// Filing company names carry a few suffixes the legal list misses.
var filingSuffixes = []string{" solutions", " software", " labs", " ai", " io"}

// CrossReferencer matches news-side funding events against filing-side
// ones. Normalized names are cached per instance, so a CrossReferencer
// is not safe for concurrent use; the maintenance job builds a fresh
// one per run.
type CrossReferencer struct {
	NameThreshold   float64
	DateWindowDays  int
	AmountTolerance float64

	norm map[string]string
}

func New() *CrossReferencer {
	return &CrossReferencer{
		NameThreshold:   0.85,
		DateWindowDays:  30,
		AmountTolerance: 0.20,
		norm:            make(map[string]string),
	}
}

// Match pairs a news event with the filing that best corroborates it.
type Match struct {
	News   *FundingEvent
	Filing *FundingEvent
	Score  float64
}

// Boost is the record written back for a verified news event.
type Boost struct {
	OriginalConfidence float64  `json:"original_confidence"`
	BoostedConfidence  float64  `json:"boosted_confidence"`
	FormDAmount        *float64 `json:"form_d_amount"`
	NewsAmount         *float64 `json:"news_amount"`
	FormDDate          string   `json:"form_d_date"`
	Verified           bool     `json:"verified"`
}

// Normalize maps a company name to the key BoostConfidence indexes by,
// with filing boilerplate suffixes stripped on top of the usual ones.
func (c *CrossReferencer) Normalize(name string) string {
	if n, ok := c.norm[name]; ok {
		return n
	}
	n := resolver.NormalizeName(name, filingSuffixes...)
	c.norm[name] = n
	return n
}

// NameSimilarity compares two company names after normalization.
func (c *CrossReferencer) NameSimilarity(a, b string) float64 {
	na, nb := c.Normalize(a), c.Normalize(b)
	if na == nb {
		return 1.0
	}
	return resolver.Ratio(na, nb)
}

// AmountsCompatible reports whether two amounts agree within the
// tolerance. A missing or zero amount on either side is compatible:
// absence of a number is not evidence of a mismatch.
func (c *CrossReferencer) AmountsCompatible(a, b *float64) bool {
	if a == nil || b == nil {
		return true
	}
	if *a == 0 || *b == 0 {
		return true
	}
	return math.Abs(*a-*b)/math.Max(*a, *b) <= c.AmountTolerance
}

// MatchEvents pairs each news event with its best-scoring filing.
// Greedy per news item: a filing can corroborate several news events,
// and the first of two equal-scoring filings wins.
func (c *CrossReferencer) MatchEvents(news, filings []*FundingEvent) []Match {
	var matches []Match
	for _, n := range news {
		var best *FundingEvent
		bestScore := 0.0
		for _, f := range filings {
			sim := c.NameSimilarity(n.CompanyName, f.CompanyName)
			if sim < c.NameThreshold {
				continue
			}
			diff := math.Abs(n.Date.Sub(f.Date).Hours() / 24)
			if diff > float64(c.DateWindowDays) {
				continue
			}
			score := c.score(sim, diff, c.AmountsCompatible(n.Amount, f.Amount))
			if score > bestScore {
				best = f
				bestScore = score
			}
		}
		if best != nil {
			matches = append(matches, Match{News: n, Filing: best, Score: bestScore})
		}
	}
	return matches
}

func (c *CrossReferencer) score(nameSim, dayDiff float64, compatible bool) float64 {
	window := float64(c.DateWindowDays)
	score := nameSim*0.5 + math.Max(0, (window-dayDiff)/window)*0.3
	if compatible {
		score += 0.2
	}
	return math.Min(score, 1.0)
}

// BoostConfidence turns matches into boost records keyed by the
// normalized news company name. The base boost is 0.90; corroborated
// amounts on both sides raise it to 0.95, and a near-exact name match
// adds 0.03 more, capped at 0.98.
func (c *CrossReferencer) BoostConfidence(matches []Match) map[string]Boost {
	boosts := make(map[string]Boost, len(matches))
	for _, m := range matches {
		boosted := 0.90
		if c.AmountsCompatible(m.News.Amount, m.Filing.Amount) &&
			nonZero(m.News.Amount) && nonZero(m.Filing.Amount) {
			boosted = 0.95
		}
		if c.NameSimilarity(m.News.CompanyName, m.Filing.CompanyName) > 0.95 {
			boosted = math.Min(boosted+0.03, 0.98)
		}
		boosts[c.Normalize(m.News.CompanyName)] = Boost{
			OriginalConfidence: m.News.Confidence,
			BoostedConfidence:  boosted,
			FormDAmount:        m.Filing.Amount,
			NewsAmount:         m.News.Amount,
			FormDDate:          m.Filing.Date.Format("2006-01-02T15:04:05"),
			Verified:           true,
		}
	}
	return boosts
}

// UnmatchedFilings returns the filings no news event was paired with.
func (c *CrossReferencer) UnmatchedFilings(filings []*FundingEvent, matches []Match) []*FundingEvent {
	used := make(map[*FundingEvent]struct{}, len(matches))
	for _, m := range matches {
		used[m.Filing] = struct{}{}
	}
	var out []*FundingEvent
	for _, f := range filings {
		if _, ok := used[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// UnverifiedNews returns the news events no filing corroborates.
func (c *CrossReferencer) UnverifiedNews(news []*FundingEvent, matches []Match) []*FundingEvent {
	used := make(map[*FundingEvent]struct{}, len(matches))
	for _, m := range matches {
		used[m.News] = struct{}{}
	}
	var out []*FundingEvent
	for _, n := range news {
		if _, ok := used[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func nonZero(v *float64) bool {
	return v != nil && *v != 0
}
