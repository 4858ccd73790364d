package sources

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/signalnest/magpie/pkg/store"
)

// Validator scores entities and relationships by the quality of the
// sources citing them.
type Validator struct {
	store store.GraphStore
}

func NewValidator(s store.GraphStore) *Validator {
	return &Validator{store: s}
}

// EntityConfidence is the per-entity scoring breakdown.
type EntityConfidence struct {
	Confidence   float64 `json:"confidence"`
	SourceCount  int     `json:"source_count"`
	Tier1Sources int     `json:"tier1_sources"`
	Tier2Sources int     `json:"tier2_sources"`
	Tier3Sources int     `json:"tier3_sources"`
}

// TierDistribution buckets relationship counts by source tier.
type TierDistribution struct {
	Tier1Primary   int `json:"tier1_primary"`
	Tier2Reputable int `json:"tier2_reputable"`
	Tier3Secondary int `json:"tier3_secondary"`
}

// Report summarizes source quality across the whole graph.
type Report struct {
	TotalEntities       int              `json:"total_entities"`
	EnrichedEntities    int              `json:"enriched_entities"`
	EnrichmentCoverage  float64          `json:"enrichment_coverage"`
	MultiSourceEntities int              `json:"multi_source_entities"`
	SourceDistribution  map[string]int   `json:"source_distribution"`
	TierDistribution    TierDistribution `json:"tier_distribution"`
	DataQualityScore    float64          `json:"data_quality_score"`
}

// EntityConfidence scores an entity off the distinct sources across its
// edges: the best base confidence, plus up to 0.15 for source count and
// up to 0.10 for tier-1 citations, capped at 1.0. No sources → 0.5.
func (v *Validator) EntityConfidence(ctx context.Context, entityID int64) (*EntityConfidence, error) {
	urls, err := v.store.DistinctEntitySources(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity sources: %w", err)
	}
	if len(urls) == 0 {
		return &EntityConfidence{Confidence: 0.5}, nil
	}

	var tiers [4]int
	best := 0.0
	for _, url := range urls {
		q := Lookup(url)
		tiers[q.Tier]++
		if q.BaseConfidence > best {
			best = q.BaseConfidence
		}
	}
	sourceBonus := math.Min(0.15, float64(len(urls))*0.03)
	tier1Bonus := math.Min(0.10, float64(tiers[1])*0.05)

	return &EntityConfidence{
		Confidence:   math.Min(1.0, best+sourceBonus+tier1Bonus),
		SourceCount:  len(urls),
		Tier1Sources: tiers[1],
		Tier2Sources: tiers[2],
		Tier3Sources: tiers[3],
	}, nil
}

// RelationshipConfidence adjusts an edge's stored confidence by its
// source grade. A missing edge scores 0.5; a zero stored confidence
// falls back to 0.8 before the adjustment.
func (v *Validator) RelationshipConfidence(ctx context.Context, id int64) (float64, error) {
	rel, err := v.store.GetRelationshipByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return 0.5, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load relationship: %w", err)
	}

	base := rel.Confidence
	if base == 0 {
		base = 0.8
	}
	return round2(base * Lookup(rel.SourceURL).BaseConfidence), nil
}

// Report aggregates source distribution, enrichment coverage and the
// overall quality score.
func (v *Validator) Report(ctx context.Context) (*Report, error) {
	bySource, err := v.store.CountRelationshipsBySource(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source counts: %w", err)
	}

	sourceCounts := make(map[string]int)
	var tiers [4]int
	for url, n := range bySource {
		q := Lookup(url)
		sourceCounts[q.Name] += n
		tiers[q.Tier] += n
	}

	stats, err := v.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	enriched, err := v.store.CountEnrichedEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count enriched entities: %w", err)
	}
	multi, err := v.store.CountMultiSourceEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count multi-source entities: %w", err)
	}

	coverage := 0.0
	if stats.TotalEntities > 0 {
		coverage = round1(float64(enriched) / float64(stats.TotalEntities) * 100)
	}

	return &Report{
		TotalEntities:       stats.TotalEntities,
		EnrichedEntities:    enriched,
		EnrichmentCoverage:  coverage,
		MultiSourceEntities: multi,
		SourceDistribution:  sourceCounts,
		TierDistribution: TierDistribution{
			Tier1Primary:   tiers[1],
			Tier2Reputable: tiers[2],
			Tier3Secondary: tiers[3],
		},
		DataQualityScore: qualityScore(tiers),
	}, nil
}

// qualityScore weights tier 1 citations at 100%, tier 2 at 70% and
// tier 3 at 40%, expressed as a 0-100 score.
func qualityScore(tiers [4]int) float64 {
	total := tiers[1] + tiers[2] + tiers[3]
	if total == 0 {
		return 0
	}
	weighted := float64(tiers[1])*1.0 + float64(tiers[2])*0.7 + float64(tiers[3])*0.4
	return round1(weighted / float64(total) * 100)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
