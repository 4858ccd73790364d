// Package graph is the application service over the store: it applies
// extraction results (the ingest path) and answers the convenience
// queries the API and CLI expose.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/signalnest/magpie/internal/util"
	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// defaultQueryLimit caps the convenience queries; callers wanting more
// go through QueryRelationships directly.
const defaultQueryLimit = 100

type Service struct {
	store store.GraphStore
}

func New(s store.GraphStore) *Service {
	return &Service{store: s}
}

// IngestCounts reports what applying one extraction result did.
type IngestCounts struct {
	EntitiesAdded      int `json:"entities_added"`
	RelationshipsAdded int `json:"relationships_added"`
	DuplicatesSkipped  int `json:"duplicates_skipped"`
}

// AddExtractionResult applies a batch of extracted entities and
// relationships. Entities land first so edge inserts always find their
// endpoints; a uniqueness collision on an edge counts as a skipped
// duplicate, not an error.
func (g *Service) AddExtractionResult(ctx context.Context, result common.ExtractionResult) (*IngestCounts, error) {
	counts := &IngestCounts{}

	for _, e := range result.Entities {
		name := util.SanitizeText(e.Name)
		if _, err := g.store.UpsertEntity(ctx, name, e.Type, e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to upsert entity %q: %w", name, err)
		}
		counts.EntitiesAdded++
	}

	resultDate := parseEventDate(result.EventDate)
	for _, rel := range result.Relationships {
		eventDate := parseEventDate(rel.EventDate)
		if eventDate == nil {
			eventDate = resultDate
		}
		id, err := g.store.UpsertRelationship(ctx, store.RelationshipParams{
			Subject:     util.SanitizeText(rel.Subject),
			SubjectType: rel.SubjectType,
			Predicate:   rel.Predicate,
			Object:      util.SanitizeText(rel.Object),
			ObjectType:  rel.ObjectType,
			EventDate:   eventDate,
			Confidence:  rel.Confidence,
			Context:     util.SanitizeText(rel.Context),
			SourceURL:   result.SourceURL,
			Metadata:    relationshipMetadata(rel.Predicate, result.Amounts),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upsert %s %s %s: %w", rel.Subject, rel.Predicate, rel.Object, err)
		}
		if id == nil {
			counts.DuplicatesSkipped++
		} else {
			counts.RelationshipsAdded++
		}
	}

	logger.Info("[Graph] Extraction result applied",
		"entities", counts.EntitiesAdded,
		"relationships", counts.RelationshipsAdded,
		"duplicates", counts.DuplicatesSkipped,
		"source", result.SourceURL)
	return counts, nil
}

// relationshipMetadata picks the amounts relevant to the predicate out
// of the extraction result's amount map. Values that do not parse, or
// parse to zero, are treated as absent.
func relationshipMetadata(predicate string, amounts map[string]string) map[string]any {
	if len(amounts) == 0 {
		return nil
	}
	metadata := make(map[string]any)
	switch predicate {
	case common.PredicateAcquired:
		if v, ok := parsePresent(amounts["acquisition"]); ok {
			metadata["amount"] = v
			if val, ok := parsePresent(amounts["valuation"]); ok {
				metadata["valuation"] = val
			}
		}
	case common.PredicateFundedBy:
		if v, ok := parsePresent(amounts["funding"]); ok {
			metadata["amount"] = v
			if val, ok := parsePresent(amounts["valuation"]); ok {
				metadata["valuation"] = val
			}
		}
	case common.PredicateLaidOff:
		if v, ok := parsePresent(amounts["layoff_count"]); ok {
			metadata["count"] = v
		}
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func parsePresent(raw string) (float64, bool) {
	v, ok := ParseAmount(raw)
	if !ok || v == 0 {
		return 0, false
	}
	return v, true
}

// parseEventDate accepts whatever date spelling the extractor produced
// and gives up quietly on garbage.
func parseEventDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		logger.Debug("[Graph] Unparseable event date", "value", raw)
		return nil
	}
	return &t
}

// WhoHired lists hires into a company, newest first.
func (g *Service) WhoHired(ctx context.Context, company string, since *time.Time) ([]common.Relationship, error) {
	return g.store.QueryRelationships(ctx, store.RelationshipFilter{
		Object:    company,
		Predicate: common.PredicateHiredBy,
		Since:     since,
		Limit:     defaultQueryLimit,
	})
}

// WhereWent lists the companies a person was hired into.
func (g *Service) WhereWent(ctx context.Context, person string) ([]common.Relationship, error) {
	return g.store.QueryRelationships(ctx, store.RelationshipFilter{
		Subject:   person,
		Predicate: common.PredicateHiredBy,
		Limit:     defaultQueryLimit,
	})
}

// Acquisitions lists acquisition edges, newest first.
func (g *Service) Acquisitions(ctx context.Context, since *time.Time) ([]common.Relationship, error) {
	return g.store.QueryRelationships(ctx, store.RelationshipFilter{
		Predicate: common.PredicateAcquired,
		Since:     since,
		Limit:     defaultQueryLimit,
	})
}

// PersonTrajectory merges a person's hires and departures into one
// timeline, newest first with undated moves at the end.
func (g *Service) PersonTrajectory(ctx context.Context, person string) ([]common.Relationship, error) {
	hired, err := g.store.QueryRelationships(ctx, store.RelationshipFilter{
		Subject:   person,
		Predicate: common.PredicateHiredBy,
		Limit:     defaultQueryLimit,
	})
	if err != nil {
		return nil, err
	}
	departed, err := g.store.QueryRelationships(ctx, store.RelationshipFilter{
		Subject:   person,
		Predicate: common.PredicateDepartedFrom,
		Limit:     defaultQueryLimit,
	})
	if err != nil {
		return nil, err
	}

	moves := append(hired, departed...)
	sort.SliceStable(moves, func(i, j int) bool {
		return eventTime(moves[i]).After(eventTime(moves[j]))
	})
	return moves, nil
}

// eventTime treats an undated edge as the zero time so it sorts after
// every dated one.
func eventTime(r common.Relationship) time.Time {
	if r.EventDate != nil {
		return *r.EventDate
	}
	return time.Time{}
}

func (g *Service) Stats(ctx context.Context) (*common.Stats, error) {
	return g.store.GetStats(ctx)
}
