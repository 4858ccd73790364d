package sources

import (
	"context"
	"math"
	"testing"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
	"github.com/signalnest/magpie/pkg/store/lite"
)

func newTestStore(t *testing.T) *lite.GraphLiteStore {
	t.Helper()
	s, err := lite.NewGraphLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func upsertRel(t *testing.T, s store.GraphStore, subject, predicate, object, url string, confidence float64) {
	t.Helper()
	_, err := s.UpsertRelationship(context.Background(), store.RelationshipParams{
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		SourceURL:  url,
		Confidence: confidence,
	})
	if err != nil {
		t.Fatalf("failed to upsert %s %s %s: %v", subject, predicate, object, err)
	}
}

func entityID(t *testing.T, s store.GraphStore, name string) int64 {
	t.Helper()
	e, err := s.GetEntity(context.Background(), name, "")
	if err != nil {
		t.Fatalf("failed to look up %s: %v", name, err)
	}
	return e.ID
}

func TestEntityConfidence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := NewValidator(s)

	upsertRel(t, s, "Acme", common.PredicateFundedBy, "Sequoia", "https://techcrunch.com/acme-b", 0.8)
	upsertRel(t, s, "Acme", common.PredicateAcquired, "Initech", "https://www.theverge.com/acme", 0.8)

	ec, err := v.EntityConfidence(ctx, entityID(t, s, "Acme"))
	if err != nil {
		t.Fatalf("EntityConfidence: %v", err)
	}
	// Best base 0.85 plus 2×0.03 source bonus, no tier-1 citations.
	if math.Abs(ec.Confidence-0.91) > 1e-9 {
		t.Errorf("confidence = %v, want 0.91", ec.Confidence)
	}
	if ec.SourceCount != 2 || ec.Tier1Sources != 0 || ec.Tier2Sources != 2 || ec.Tier3Sources != 0 {
		t.Errorf("breakdown = %+v", ec)
	}
}

func TestEntityConfidenceCapped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := NewValidator(s)

	upsertRel(t, s, "Acme", common.PredicateFundedBy, "Sequoia", "https://www.bloomberg.com/acme", 0.9)
	upsertRel(t, s, "Acme", common.PredicateRaisedFunding, "Index", "https://www.sec.gov/Archives/acme", 0.9)

	ec, err := v.EntityConfidence(ctx, entityID(t, s, "Acme"))
	if err != nil {
		t.Fatalf("EntityConfidence: %v", err)
	}
	// 1.0 base + bonuses would exceed 1, so the score caps.
	if ec.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", ec.Confidence)
	}
	if ec.Tier1Sources != 2 {
		t.Errorf("tier1 sources = %d, want 2", ec.Tier1Sources)
	}
}

func TestEntityConfidenceNoSources(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := NewValidator(s)

	upsertRel(t, s, "Acme", common.PredicateFundedBy, "Sequoia", "", 0.8)

	ec, err := v.EntityConfidence(ctx, entityID(t, s, "Acme"))
	if err != nil {
		t.Fatalf("EntityConfidence: %v", err)
	}
	if ec.Confidence != 0.5 || ec.SourceCount != 0 {
		t.Errorf("unsourced entity = %+v, want 0.5 with zero counts", ec)
	}
}

func TestRelationshipConfidence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := NewValidator(s)

	id, err := s.UpsertRelationship(ctx, store.RelationshipParams{
		Subject:    "Acme",
		Predicate:  common.PredicateFundedBy,
		Object:     "Sequoia",
		SourceURL:  "https://techcrunch.com/acme",
		Confidence: 0.9,
	})
	if err != nil || id == nil {
		t.Fatalf("failed to upsert relationship: %v", err)
	}

	got, err := v.RelationshipConfidence(ctx, *id)
	if err != nil {
		t.Fatalf("RelationshipConfidence: %v", err)
	}
	if got != 0.77 {
		t.Errorf("adjusted = %v, want 0.77 (0.9 × 0.85 rounded)", got)
	}
}

// Two edges carrying the same stored confidence diverge once the source
// grade is applied: a filing keeps it, an unlisted blog halves it.
func TestRelationshipConfidenceTierSpread(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := NewValidator(s)

	upsert := func(object, url string) int64 {
		t.Helper()
		id, err := s.UpsertRelationship(ctx, store.RelationshipParams{
			Subject:    "Acme",
			Predicate:  common.PredicateFundedBy,
			Object:     object,
			SourceURL:  url,
			Confidence: 0.9,
		})
		if err != nil || id == nil {
			t.Fatalf("failed to upsert edge for %s: %v", url, err)
		}
		return *id
	}
	filed := upsert("Sequoia", "https://www.sec.gov/Archives/edgar/data/acme")
	blogged := upsert("Andreessen Horowitz", "https://startup-rumors.example.com/acme")

	fromFiling, err := v.RelationshipConfidence(ctx, filed)
	if err != nil {
		t.Fatalf("RelationshipConfidence(filing): %v", err)
	}
	fromBlog, err := v.RelationshipConfidence(ctx, blogged)
	if err != nil {
		t.Fatalf("RelationshipConfidence(blog): %v", err)
	}
	if fromFiling != 0.9 {
		t.Errorf("tier-1 adjusted = %v, want the stored 0.9 kept", fromFiling)
	}
	if fromBlog != 0.45 {
		t.Errorf("tier-3 adjusted = %v, want 0.45", fromBlog)
	}
}

func TestRelationshipConfidenceFallbacks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := NewValidator(s)

	// Zero stored confidence falls back to 0.8 before adjustment.
	id, err := s.UpsertRelationship(ctx, store.RelationshipParams{
		Subject:   "Acme",
		Predicate: common.PredicateFundedBy,
		Object:    "Sequoia",
		SourceURL: "https://www.sec.gov/Archives/acme",
	})
	if err != nil || id == nil {
		t.Fatalf("failed to upsert relationship: %v", err)
	}
	if got, err := v.RelationshipConfidence(ctx, *id); err != nil || got != 0.8 {
		t.Errorf("zero-confidence edge = %v (err %v), want 0.8", got, err)
	}

	// A missing edge scores the neutral 0.5.
	if got, err := v.RelationshipConfidence(ctx, 9999); err != nil || got != 0.5 {
		t.Errorf("missing edge = %v (err %v), want 0.5", got, err)
	}
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	v := NewValidator(s)

	upsertRel(t, s, "Acme", common.PredicateFundedBy, "Sequoia", "https://www.bloomberg.com/acme", 0.9)
	upsertRel(t, s, "Acme", common.PredicateAcquired, "Initech", "https://techcrunch.com/a", 0.8)
	upsertRel(t, s, "Bob", common.PredicateHiredBy, "Acme", "https://techcrunch.com/a", 0.8)
	upsertRel(t, s, "Initech", common.PredicateFundedBy, "Sequoia", "https://www.prnewswire.com/x", 0.7)

	if err := s.UpsertEnrichment(ctx, entityID(t, s, "Acme"), "crunchbase", map[string]any{"rank": 1}); err != nil {
		t.Fatalf("failed to upsert enrichment: %v", err)
	}

	r, err := v.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if r.TotalEntities != 4 {
		t.Errorf("total entities = %d, want 4", r.TotalEntities)
	}
	if r.EnrichedEntities != 1 || r.EnrichmentCoverage != 25.0 {
		t.Errorf("enrichment = %d at %v%%, want 1 at 25%%", r.EnrichedEntities, r.EnrichmentCoverage)
	}
	// Acme, Sequoia and Initech are each cited by two distinct sources.
	if r.MultiSourceEntities != 3 {
		t.Errorf("multi-source entities = %d, want 3", r.MultiSourceEntities)
	}

	wantSources := map[string]int{"Bloomberg": 1, "TechCrunch": 2, "PR Newswire": 1}
	for name, n := range wantSources {
		if r.SourceDistribution[name] != n {
			t.Errorf("source %s = %d, want %d", name, r.SourceDistribution[name], n)
		}
	}
	if r.TierDistribution.Tier1Primary != 1 || r.TierDistribution.Tier2Reputable != 2 || r.TierDistribution.Tier3Secondary != 1 {
		t.Errorf("tier distribution = %+v", r.TierDistribution)
	}
	// (1×1.0 + 2×0.7 + 1×0.4) / 4 × 100.
	if r.DataQualityScore != 70.0 {
		t.Errorf("quality score = %v, want 70.0", r.DataQualityScore)
	}
}

func TestReportEmptyGraph(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(newTestStore(t))

	r, err := v.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.TotalEntities != 0 || r.EnrichmentCoverage != 0 || r.DataQualityScore != 0 {
		t.Errorf("empty report = %+v", r)
	}
}
