package lite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// MergeEntities absorbs the merge entity into the keep entity in one
// transaction, mirroring the PostgreSQL backend: colliding merge-side
// edges are dropped before the repoint, satellites move unless keep
// already holds them, the merged name survives as an alias, and the
// merged row is deleted last.
func (s *GraphLiteStore) MergeEntities(ctx context.Context, keepID, mergeID int64) error {
	if keepID == mergeID {
		return fmt.Errorf("cannot merge entity %d into itself", keepID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge: %w", err)
	}
	defer tx.Rollback()

	keep, err := loadEntityForMerge(ctx, tx, keepID)
	if err != nil {
		return err
	}
	merge, err := loadEntityForMerge(ctx, tx, mergeID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, deleteCollidingEdgesSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to drop colliding edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteCollapsingEdgesSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to drop collapsing edges: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE kg_relationships SET subject_id = ? WHERE subject_id = ?`, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to repoint subjects: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE kg_relationships SET object_id = ? WHERE object_id = ?`, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to repoint objects: %w", err)
	}

	if _, err := tx.ExecContext(ctx, moveEnrichmentSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to move enrichment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, moveTagsSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to move tags: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kg_aliases (entity_id, alias, normalized_alias) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		keepID, merge.Name, merge.NormalizedName); err != nil {
		return fmt.Errorf("failed to record alias: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kg_entities WHERE id = ?`, mergeID); err != nil {
		return fmt.Errorf("failed to delete merged entity: %w", err)
	}

	finalType := keep.Type
	if keep.Type == common.EntityUnknown && merge.Type != common.EntityUnknown {
		finalType = merge.Type
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE kg_entities SET mention_count = mention_count + ?, entity_type = ? WHERE id = ?`,
		merge.MentionCount, finalType, keepID); err != nil {
		return fmt.Errorf("failed to update kept entity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}

	logger.Debug("[Merge] Entities merged",
		"keep", keep.Name, "keep_id", keepID, "merged", merge.Name, "merged_id", mergeID)
	return nil
}

func loadEntityForMerge(ctx context.Context, tx *sql.Tx, id int64) (*common.Entity, error) {
	var e common.Entity
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, normalized_name, entity_type, mention_count FROM kg_entities WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.Name, &e.NormalizedName, &e.Type, &e.MentionCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load entity %d: %w", id, err)
	}
	return &e, nil
}

// ?1 = keep id, ?2 = merge id. The IS operator is SQLite's NULL-safe
// equality.

const deleteCollidingEdgesSQL = `
DELETE FROM kg_relationships
WHERE (subject_id = ?2 OR object_id = ?2)
  AND EXISTS (
    SELECT 1 FROM kg_relationships k
    WHERE k.id <> kg_relationships.id
      AND k.predicate = kg_relationships.predicate
      AND k.subject_id = (CASE WHEN kg_relationships.subject_id = ?2 THEN ?1 ELSE kg_relationships.subject_id END)
      AND k.object_id  = (CASE WHEN kg_relationships.object_id  = ?2 THEN ?1 ELSE kg_relationships.object_id  END)
      AND k.event_date IS kg_relationships.event_date
  );
`

const deleteCollapsingEdgesSQL = `
DELETE FROM kg_relationships
WHERE (subject_id = ?2 OR object_id = ?2)
  AND EXISTS (
    SELECT 1 FROM kg_relationships n
    WHERE n.id < kg_relationships.id
      AND (n.subject_id = ?2 OR n.object_id = ?2)
      AND n.predicate = kg_relationships.predicate
      AND (CASE WHEN n.subject_id = ?2 THEN ?1 ELSE n.subject_id END)
        = (CASE WHEN kg_relationships.subject_id = ?2 THEN ?1 ELSE kg_relationships.subject_id END)
      AND (CASE WHEN n.object_id = ?2 THEN ?1 ELSE n.object_id END)
        = (CASE WHEN kg_relationships.object_id = ?2 THEN ?1 ELSE kg_relationships.object_id END)
      AND n.event_date IS kg_relationships.event_date
  );
`

const moveEnrichmentSQL = `
UPDATE kg_enrichment SET entity_id = ?1
WHERE entity_id = ?2
  AND NOT EXISTS (
    SELECT 1 FROM kg_enrichment e2 WHERE e2.entity_id = ?1 AND e2.source = kg_enrichment.source
  );
`

const moveTagsSQL = `
UPDATE kg_tags SET entity_id = ?1
WHERE entity_id = ?2
  AND NOT EXISTS (
    SELECT 1 FROM kg_tags t2 WHERE t2.entity_id = ?1 AND t2.tag = kg_tags.tag
  );
`
