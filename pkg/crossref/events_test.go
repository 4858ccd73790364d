package crossref

import (
	"testing"
	"time"

	"github.com/signalnest/magpie/pkg/common"
)

func TestEventFromRelationship(t *testing.T) {
	eventDate := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	fallback := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	rel := common.Relationship{
		Subject:    &common.Entity{Name: "Acme"},
		Predicate:  common.PredicateFundedBy,
		Object:     &common.Entity{Name: "Sequoia"},
		EventDate:  &eventDate,
		Confidence: 0.7,
		SourceURL:  "https://techcrunch.com/acme-series-b",
		Metadata:   map[string]any{"amount": 50000000.0, "round_type": "series b"},
	}

	ev := EventFromRelationship(rel, fallback)
	if ev == nil {
		t.Fatal("got nil event")
	}
	if ev.CompanyName != "Acme" {
		t.Errorf("company = %q, want Acme", ev.CompanyName)
	}
	if ev.Amount == nil || *ev.Amount != 50000000.0 {
		t.Errorf("amount = %v, want 50000000", ev.Amount)
	}
	if ev.RoundType != "series b" {
		t.Errorf("round type = %q", ev.RoundType)
	}
	if !ev.Date.Equal(eventDate) {
		t.Errorf("date = %v, want event date", ev.Date)
	}
	if ev.SourceType != SourceNews || ev.Confidence != 0.7 {
		t.Errorf("source/confidence = %s/%v", ev.SourceType, ev.Confidence)
	}
	if ev.SourceURL != rel.SourceURL {
		t.Errorf("source url = %q", ev.SourceURL)
	}
}

func TestEventFromRelationshipRaisedFunding(t *testing.T) {
	// Form D ingestion writes the company as the subject and a generic
	// investor placeholder as the object.
	rel := common.Relationship{
		Subject:   &common.Entity{Name: "Figma"},
		Predicate: common.PredicateRaisedFunding,
		Object:    &common.Entity{Name: "Undisclosed Investors"},
	}
	ev := EventFromRelationship(rel, time.Now())
	if ev == nil || ev.CompanyName != "Figma" {
		t.Fatalf("got %+v, want Figma event", ev)
	}
	if ev.Confidence != 0.8 {
		t.Errorf("default confidence = %v, want 0.8", ev.Confidence)
	}
}

func TestEventFromRelationshipFallbackDate(t *testing.T) {
	fallback := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	rel := common.Relationship{
		Subject:   &common.Entity{Name: "Acme"},
		Predicate: common.PredicateFundedBy,
	}
	ev := EventFromRelationship(rel, fallback)
	if ev == nil || !ev.Date.Equal(fallback) {
		t.Fatalf("date = %+v, want fallback", ev)
	}
	if ev.Amount != nil || ev.RoundType != "" {
		t.Errorf("missing metadata produced amount=%v round=%q", ev.Amount, ev.RoundType)
	}
}

func TestEventFromRelationshipIgnoresOtherPredicates(t *testing.T) {
	rel := common.Relationship{
		Subject:   &common.Entity{Name: "Google"},
		Predicate: common.PredicateAcquired,
		Object:    &common.Entity{Name: "Fitbit"},
	}
	if ev := EventFromRelationship(rel, time.Now()); ev != nil {
		t.Fatalf("got %+v, want nil", ev)
	}
}

func TestEventFromFiling(t *testing.T) {
	rel := common.Relationship{
		Subject:    &common.Entity{Name: "Acme Inc"},
		Predicate:  common.PredicateFundedBy,
		Confidence: 0.3,
		SourceURL:  "https://www.sec.gov/Archives/edgar/data/123",
	}
	ev := EventFromFiling(rel, time.Now())
	if ev == nil {
		t.Fatal("got nil event")
	}
	if ev.SourceType != SourceFormD {
		t.Errorf("source type = %q", ev.SourceType)
	}
	if ev.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", ev.Confidence)
	}
}
