// Package export moves whole graphs between stores and writes archival
// snapshots. Copy is the migration path (postgres to sqlite and back);
// WriteSnapshot streams a JSONL dump the weekly maintenance job ships to
// object storage.
package export

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// readParallel bounds the source readers during Copy.
const readParallel = 4

// Report counts what a Copy moved and what it could not.
type Report struct {
	EntitiesCopied       int `json:"entities_copied"`
	EntitiesSkipped      int `json:"entities_skipped"`
	RelationshipsCopied  int `json:"relationships_copied"`
	RelationshipsSkipped int `json:"relationships_skipped"`
	RelationshipsDropped int `json:"relationships_dropped"`
	AliasesCopied        int `json:"aliases_copied"`
	EnrichmentCopied     int `json:"enrichment_copied"`
	TagsCopied           int `json:"tags_copied"`
}

// Copy replays every row of src into dst. Entities keep their full field
// set; aliases, enrichment, tags, and relationships follow through the
// old-id to new-id mapping. An entity dst already holds (same normalized
// name and type) keeps its dst row and counts as a skip, as does a
// relationship colliding with an existing dst edge. A relationship whose
// endpoints did not both map is dropped and counted, never wired to the
// wrong rows.
func Copy(ctx context.Context, src, dst store.GraphStore) (*Report, error) {
	var (
		entities      []common.Entity
		relationships []common.Relationship
		aliases       []common.Alias
		enrichment    []common.Enrichment
		tags          []common.Tag
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(readParallel)
	g.Go(func() error {
		var err error
		entities, err = src.ListEntities(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		relationships, err = src.ListRelationships(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		aliases, err = src.ListAliases(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		enrichment, err = src.ListEnrichment(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = src.ListTags(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}

	// The mapping must be total over src before any dependent row moves.
	idMap := make(map[int64]int64, len(entities))
	for _, e := range entities {
		newID, created, err := dst.ImportEntity(ctx, e)
		if err != nil {
			return nil, err
		}
		idMap[e.ID] = newID
		if created {
			report.EntitiesCopied++
		} else {
			report.EntitiesSkipped++
		}
	}

	for _, a := range aliases {
		entityID, ok := idMap[a.EntityID]
		if !ok {
			continue
		}
		if err := dst.AddAlias(ctx, entityID, a.Alias); err != nil {
			return nil, err
		}
		report.AliasesCopied++
	}
	for _, e := range enrichment {
		entityID, ok := idMap[e.EntityID]
		if !ok {
			continue
		}
		if err := dst.UpsertEnrichment(ctx, entityID, e.Source, e.Data); err != nil {
			return nil, err
		}
		report.EnrichmentCopied++
	}
	for _, t := range tags {
		entityID, ok := idMap[t.EntityID]
		if !ok {
			continue
		}
		if err := dst.AddTag(ctx, entityID, t.Tag); err != nil {
			return nil, err
		}
		report.TagsCopied++
	}

	for _, rel := range relationships {
		subjectID, okSubject := idMap[rel.SubjectID]
		objectID, okObject := idMap[rel.ObjectID]
		if !okSubject || !okObject {
			report.RelationshipsDropped++
			logger.Warn("[Export] Dropping relationship with unmapped endpoint",
				"relationship_id", rel.ID,
				"subject_id", rel.SubjectID,
				"object_id", rel.ObjectID,
			)
			continue
		}
		id, err := dst.InsertEdge(ctx, store.EdgeParams{
			SubjectID:  subjectID,
			Predicate:  rel.Predicate,
			ObjectID:   objectID,
			EventDate:  rel.EventDate,
			Confidence: rel.Confidence,
			Context:    rel.Context,
			SourceURL:  rel.SourceURL,
			Metadata:   rel.Metadata,
			CreatedAt:  rel.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
		if id == nil {
			report.RelationshipsSkipped++
		} else {
			report.RelationshipsCopied++
		}
	}

	logger.Info("[Export] Copy finished",
		"entities", report.EntitiesCopied,
		"relationships", report.RelationshipsCopied,
		"dropped", report.RelationshipsDropped,
	)
	return report, nil
}
