package crossref

import (
	"math"
	"testing"
	"time"
)

func amount(v float64) *float64 { return &v }

func newsEvent(name string, amt *float64, date time.Time) *FundingEvent {
	return &FundingEvent{
		CompanyName: name,
		Amount:      amt,
		Date:        date,
		SourceType:  SourceNews,
		Confidence:  0.8,
	}
}

func filingEvent(name string, amt *float64, date time.Time) *FundingEvent {
	return &FundingEvent{
		CompanyName: name,
		Amount:      amt,
		Date:        date,
		SourceType:  SourceFormD,
		Confidence:  0.95,
	}
}

func TestNameSimilarity(t *testing.T) {
	c := New()

	if sim := c.NameSimilarity("Acme Inc", "Acme Solutions"); sim != 1.0 {
		t.Errorf("suffix-stripped names sim = %v, want 1.0", sim)
	}
	if sim := c.NameSimilarity("Vercel Labs", "Vercel"); sim != 1.0 {
		t.Errorf("labs-stripped sim = %v, want 1.0", sim)
	}
	if sim := c.NameSimilarity("Acme", "Zorp"); sim >= c.NameThreshold {
		t.Errorf("unrelated names sim = %v, want below threshold", sim)
	}
}

func TestAmountsCompatible(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		a, b *float64
		want bool
	}{
		{"BothNil", nil, nil, true},
		{"OneNil", amount(5e6), nil, true},
		{"OneZero", amount(0), amount(5e6), true},
		{"Within", amount(100), amount(119), true},
		{"Exact", amount(5e6), amount(5e6), true},
		{"Outside", amount(100), amount(130), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.AmountsCompatible(tt.a, tt.b); got != tt.want {
				t.Errorf("AmountsCompatible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchEvents(t *testing.T) {
	c := New()
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	news := []*FundingEvent{newsEvent("Acme", amount(10e6), day)}
	good := filingEvent("Acme Inc", amount(10.5e6), day.AddDate(0, 0, -5))
	stale := filingEvent("Acme Inc", amount(10e6), day.AddDate(0, 0, -40))
	other := filingEvent("Zorp Industries", amount(10e6), day)

	matches := c.MatchEvents(news, []*FundingEvent{stale, other, good})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.Filing != good {
		t.Errorf("matched %q, want the in-window filing", m.Filing.CompanyName)
	}
	// sim 1.0, 5 days inside a 30-day window, compatible amounts.
	want := 0.5 + 0.3*(25.0/30.0) + 0.2
	if math.Abs(m.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", m.Score, want)
	}
}

func TestMatchEventsFirstBestWins(t *testing.T) {
	c := New()
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	first := filingEvent("Acme", amount(10e6), day)
	second := filingEvent("Acme", amount(10e6), day)
	news := []*FundingEvent{newsEvent("Acme", amount(10e6), day)}

	matches := c.MatchEvents(news, []*FundingEvent{first, second})
	if len(matches) != 1 || matches[0].Filing != first {
		t.Fatalf("equal scores should keep the first filing, got %+v", matches)
	}
	if matches[0].Score != 1.0 {
		t.Errorf("perfect match score = %v, want 1.0", matches[0].Score)
	}
}

func TestMatchEventsHardFilters(t *testing.T) {
	c := New()
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	news := []*FundingEvent{newsEvent("Acme", nil, day)}

	// Incompatible amounts reduce the score but never exclude a match.
	offAmount := filingEvent("Acme", amount(99e6), day)
	news[0].Amount = amount(10e6)
	if got := c.MatchEvents(news, []*FundingEvent{offAmount}); len(got) != 1 {
		t.Fatalf("amount mismatch excluded the match: %+v", got)
	} else if want := 0.5 + 0.3; math.Abs(got[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got[0].Score, want)
	}

	// A name below the threshold or a date outside the window excludes.
	badName := filingEvent("Initech", amount(10e6), day)
	badDate := filingEvent("Acme", amount(10e6), day.AddDate(0, 0, 31))
	if got := c.MatchEvents(news, []*FundingEvent{badName, badDate}); len(got) != 0 {
		t.Fatalf("hard filters let a match through: %+v", got)
	}
}

func TestBoostConfidence(t *testing.T) {
	c := New()
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	filingDay := day.AddDate(0, 0, -3)

	news := newsEvent("Acme Inc", amount(10e6), day)
	filing := filingEvent("Acme", amount(10.5e6), filingDay)
	boosts := c.BoostConfidence([]Match{{News: news, Filing: filing, Score: 0.95}})

	b, ok := boosts["acme"]
	if !ok {
		t.Fatalf("boosts keyed %v, want normalized company name", boosts)
	}
	// Compatible amounts on both sides and an exact normalized name:
	// 0.95 + 0.03, capped at 0.98.
	if math.Abs(b.BoostedConfidence-0.98) > 1e-9 {
		t.Errorf("boosted = %v, want 0.98", b.BoostedConfidence)
	}
	if b.OriginalConfidence != 0.8 || !b.Verified {
		t.Errorf("record = %+v", b)
	}
	if b.FormDDate != "2025-03-12T00:00:00" {
		t.Errorf("filing date = %q", b.FormDDate)
	}
	if b.NewsAmount == nil || *b.NewsAmount != 10e6 || b.FormDAmount == nil || *b.FormDAmount != 10.5e6 {
		t.Errorf("amounts = %v/%v", b.NewsAmount, b.FormDAmount)
	}
}

func TestBoostConfidenceMissingAmount(t *testing.T) {
	c := New()
	day := time.Now()

	news := newsEvent("Acme", nil, day)
	filing := filingEvent("Acme", amount(10e6), day)
	boosts := c.BoostConfidence([]Match{{News: news, Filing: filing}})

	b := boosts["acme"]
	// Base 0.90 plus the near-exact-name bump; no amount corroboration.
	if math.Abs(b.BoostedConfidence-0.93) > 1e-9 {
		t.Errorf("boosted = %v, want 0.93", b.BoostedConfidence)
	}
}

func TestBoostConfidenceFuzzyName(t *testing.T) {
	c := New()
	day := time.Now()

	// snowflake vs snowflakes sits between the match threshold and the
	// 0.95 near-exact bar.
	news := newsEvent("Snowflake", amount(100e6), day)
	filing := filingEvent("Snowflakes", amount(100e6), day)
	boosts := c.BoostConfidence([]Match{{News: news, Filing: filing}})

	b := boosts["snowflake"]
	if b.BoostedConfidence != 0.95 {
		t.Errorf("boosted = %v, want 0.95", b.BoostedConfidence)
	}
}

func TestUnmatchedAndUnverified(t *testing.T) {
	c := New()
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	matchedNews := newsEvent("Acme", amount(10e6), day)
	lonelyNews := newsEvent("Initech", nil, day)
	matchedFiling := filingEvent("Acme", amount(10e6), day)
	lonelyFiling := filingEvent("Globex", amount(5e6), day)

	matches := c.MatchEvents(
		[]*FundingEvent{matchedNews, lonelyNews},
		[]*FundingEvent{matchedFiling, lonelyFiling},
	)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	unmatched := c.UnmatchedFilings([]*FundingEvent{matchedFiling, lonelyFiling}, matches)
	if len(unmatched) != 1 || unmatched[0] != lonelyFiling {
		t.Errorf("unmatched = %+v, want the Globex filing", unmatched)
	}
	unverified := c.UnverifiedNews([]*FundingEvent{matchedNews, lonelyNews}, matches)
	if len(unverified) != 1 || unverified[0] != lonelyNews {
		t.Errorf("unverified = %+v, want the Initech event", unverified)
	}
}
