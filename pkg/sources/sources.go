// Package sources grades the provenance of graph data. Every source URL
// maps to a publication tier with a base confidence; the validator
// combines those grades into entity and relationship confidence scores
// and a corpus-wide quality report.
package sources

import "strings"

// SourceQuality grades one publication. Tier 1 is primary reporting and
// official filings, tier 2 reputable tech press, tier 3 aggregators and
// press releases.
type SourceQuality struct {
	Name           string  `json:"name"`
	Domain         string  `json:"domain"`
	Tier           int     `json:"tier"`
	BaseConfidence float64 `json:"base_confidence"`
}

// DefaultSource is the grade for anything the table does not cover.
var DefaultSource = SourceQuality{Name: "Unknown", Domain: "unknown", Tier: 3, BaseConfidence: 0.50}

// sourceTiers is ordered: the suffix fallback in Lookup walks it front
// to back, so subdomain entries must precede their parent domains.
var sourceTiers = []SourceQuality{
	{Name: "Bloomberg", Domain: "bloomberg.com", Tier: 1, BaseConfidence: 0.95},
	{Name: "Wall Street Journal", Domain: "wsj.com", Tier: 1, BaseConfidence: 0.95},
	{Name: "Reuters", Domain: "reuters.com", Tier: 1, BaseConfidence: 0.95},
	{Name: "SEC EDGAR", Domain: "sec.gov", Tier: 1, BaseConfidence: 1.0},
	{Name: "Crunchbase", Domain: "crunchbase.com", Tier: 1, BaseConfidence: 0.90},
	{Name: "Crunchbase News", Domain: "news.crunchbase.com", Tier: 1, BaseConfidence: 0.90},

	{Name: "TechCrunch", Domain: "techcrunch.com", Tier: 2, BaseConfidence: 0.85},
	{Name: "GeekWire", Domain: "geekwire.com", Tier: 2, BaseConfidence: 0.85},
	{Name: "VentureBeat", Domain: "venturebeat.com", Tier: 2, BaseConfidence: 0.85},
	{Name: "Techmeme", Domain: "techmeme.com", Tier: 2, BaseConfidence: 0.80},
	{Name: "Axios", Domain: "axios.com", Tier: 2, BaseConfidence: 0.85},
	{Name: "The Verge", Domain: "theverge.com", Tier: 2, BaseConfidence: 0.80},
	{Name: "Wired", Domain: "wired.com", Tier: 2, BaseConfidence: 0.80},
	{Name: "Fortune", Domain: "fortune.com", Tier: 2, BaseConfidence: 0.85},
	{Name: "Forbes", Domain: "forbes.com", Tier: 2, BaseConfidence: 0.80},

	{Name: "PR Newswire", Domain: "prnewswire.com", Tier: 3, BaseConfidence: 0.70},
	{Name: "Business Wire", Domain: "businesswire.com", Tier: 3, BaseConfidence: 0.70},
	{Name: "SiliconANGLE", Domain: "siliconangle.com", Tier: 3, BaseConfidence: 0.75},
	{Name: "Inc", Domain: "inc.com", Tier: 3, BaseConfidence: 0.75},
	{Name: "Fast Company", Domain: "fastcompany.com", Tier: 3, BaseConfidence: 0.75},
	{Name: "Ars Technica", Domain: "arstechnica.com", Tier: 3, BaseConfidence: 0.75},
	{Name: "Hacker News", Domain: "news.ycombinator.com", Tier: 3, BaseConfidence: 0.60},
}

// Domain extracts the host from a URL, lowercased with any "www."
// prefix dropped. Returns "" when the string has no host segment.
func Domain(rawURL string) string {
	parts := strings.Split(rawURL, "/")
	if len(parts) < 3 {
		return ""
	}
	host := strings.ToLower(parts[2])
	return strings.TrimPrefix(host, "www.")
}

// Lookup grades a source URL: exact domain match first, then an ordered
// suffix match so subdomains inherit their parent's grade.
func Lookup(rawURL string) SourceQuality {
	domain := Domain(rawURL)
	if domain == "" {
		return DefaultSource
	}
	for _, q := range sourceTiers {
		if q.Domain == domain {
			return q
		}
	}
	for _, q := range sourceTiers {
		if strings.HasSuffix(domain, "."+q.Domain) {
			return q
		}
	}
	return DefaultSource
}
