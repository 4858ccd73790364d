package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

// Record kinds, one per table.
const (
	KindEntity       = "entity"
	KindRelationship = "relationship"
	KindAlias        = "alias"
	KindEnrichment   = "enrichment"
	KindTag          = "tag"
)

// SnapshotRecord is one JSONL line; Kind says which payload field is set.
type SnapshotRecord struct {
	Kind         string                `json:"kind"`
	Entity       *common.Entity        `json:"entity,omitempty"`
	Relationship *SnapshotRelationship `json:"relationship,omitempty"`
	Alias        *common.Alias         `json:"alias,omitempty"`
	Enrichment   *common.Enrichment    `json:"enrichment,omitempty"`
	Tag          *common.Tag           `json:"tag,omitempty"`
}

// SnapshotRelationship is a relationship row flattened for the snapshot,
// carrying endpoint names so the dump reads without id lookups.
type SnapshotRelationship struct {
	ID          int64          `json:"id"`
	SubjectID   int64          `json:"subject_id"`
	SubjectName string         `json:"subject_name,omitempty"`
	Predicate   string         `json:"predicate"`
	ObjectID    int64          `json:"object_id"`
	ObjectName  string         `json:"object_name,omitempty"`
	EventDate   *time.Time     `json:"event_date,omitempty"`
	Confidence  float64        `json:"confidence"`
	Context     string         `json:"context,omitempty"`
	SourceURL   string         `json:"source_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// WriteSnapshot streams the whole graph to w as JSON Lines: entities
// first, then relationships, aliases, enrichment, and tags.
func WriteSnapshot(ctx context.Context, w io.Writer, src store.GraphStore) error {
	enc := json.NewEncoder(w)
	write := func(rec SnapshotRecord) error {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write snapshot record: %w", err)
		}
		return nil
	}

	entities, err := src.ListEntities(ctx)
	if err != nil {
		return err
	}
	for i := range entities {
		if err := write(SnapshotRecord{Kind: KindEntity, Entity: &entities[i]}); err != nil {
			return err
		}
	}

	relationships, err := src.ListRelationships(ctx)
	if err != nil {
		return err
	}
	for _, rel := range relationships {
		flat := SnapshotRelationship{
			ID:         rel.ID,
			SubjectID:  rel.SubjectID,
			Predicate:  rel.Predicate,
			ObjectID:   rel.ObjectID,
			EventDate:  rel.EventDate,
			Confidence: rel.Confidence,
			Context:    rel.Context,
			SourceURL:  rel.SourceURL,
			Metadata:   rel.Metadata,
			CreatedAt:  rel.CreatedAt,
		}
		if rel.Subject != nil {
			flat.SubjectName = rel.Subject.Name
		}
		if rel.Object != nil {
			flat.ObjectName = rel.Object.Name
		}
		if err := write(SnapshotRecord{Kind: KindRelationship, Relationship: &flat}); err != nil {
			return err
		}
	}

	aliases, err := src.ListAliases(ctx)
	if err != nil {
		return err
	}
	for i := range aliases {
		if err := write(SnapshotRecord{Kind: KindAlias, Alias: &aliases[i]}); err != nil {
			return err
		}
	}

	enrichment, err := src.ListEnrichment(ctx)
	if err != nil {
		return err
	}
	for i := range enrichment {
		if err := write(SnapshotRecord{Kind: KindEnrichment, Enrichment: &enrichment[i]}); err != nil {
			return err
		}
	}

	tags, err := src.ListTags(ctx)
	if err != nil {
		return err
	}
	for i := range tags {
		if err := write(SnapshotRecord{Kind: KindTag, Tag: &tags[i]}); err != nil {
			return err
		}
	}
	return nil
}
