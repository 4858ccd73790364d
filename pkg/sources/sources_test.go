package sources

import "testing"

func TestDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.bloomberg.com/news/articles/x", "bloomberg.com"},
		{"https://TechCrunch.com/2025/03/acme", "techcrunch.com"},
		{"http://blogs.wsj.com/deals", "blogs.wsj.com"},
		{"https://sec.gov/Archives/edgar", "sec.gov"},
		{"", ""},
		{"not-a-url", ""},
	}
	for _, tt := range tests {
		if got := Domain(tt.url); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantName string
		wantTier int
		wantBase float64
	}{
		{"Official", "https://www.sec.gov/Archives/edgar/data/123", "SEC EDGAR", 1, 1.0},
		{"Tier1", "https://www.bloomberg.com/news/x", "Bloomberg", 1, 0.95},
		{"Tier2", "https://techcrunch.com/2025/03/acme", "TechCrunch", 2, 0.85},
		{"Tier3", "https://news.ycombinator.com/item?id=1", "Hacker News", 3, 0.60},
		{"SubdomainEntry", "https://news.crunchbase.com/venture/x", "Crunchbase News", 1, 0.90},
		{"SubdomainFallback", "https://blogs.wsj.com/deals/x", "Wall Street Journal", 1, 0.95},
		{"LookalikeDomain", "https://notsec.gov/filing", "Unknown", 3, 0.50},
		{"Unknown", "https://example.com/post", "Unknown", 3, 0.50},
		{"Empty", "", "Unknown", 3, 0.50},
		{"Garbage", "not a url", "Unknown", 3, 0.50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Lookup(tt.url)
			if q.Name != tt.wantName || q.Tier != tt.wantTier || q.BaseConfidence != tt.wantBase {
				t.Errorf("Lookup(%q) = %+v, want %s tier %d base %v",
					tt.url, q, tt.wantName, tt.wantTier, tt.wantBase)
			}
		})
	}
}
