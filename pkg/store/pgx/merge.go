package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// MergeEntities absorbs the merge entity into the keep entity in one
// transaction. Edges are repointed to keep; a merge-side edge whose
// repointed tuple already exists is deleted first so the repoint cannot
// trip the uniqueness constraint. Enrichment and tags move unless keep
// already holds the same source or tag. The merged entity's name becomes
// an alias of keep, then the merged row is deleted.
func (s *GraphDBStore) MergeEntities(ctx context.Context, keepID, mergeID int64) error {
	if keepID == mergeID {
		return fmt.Errorf("cannot merge entity %d into itself", keepID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin merge: %w", err)
	}
	defer tx.Rollback(ctx)

	keep, err := lockEntity(ctx, tx, keepID)
	if err != nil {
		return err
	}
	merge, err := lockEntity(ctx, tx, mergeID)
	if err != nil {
		return err
	}

	// Merge-side edges that collide with an existing keep-side edge
	// after repointing, then merge-side edges that collapse onto the
	// same repointed tuple as another merge-side edge.
	if _, err := tx.Exec(ctx, deleteCollidingEdgesSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to drop colliding edges: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteCollapsingEdgesSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to drop collapsing edges: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE kg_relationships SET subject_id = $1 WHERE subject_id = $2`, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to repoint subjects: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE kg_relationships SET object_id = $1 WHERE object_id = $2`, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to repoint objects: %w", err)
	}

	if _, err := tx.Exec(ctx, moveEnrichmentSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to move enrichment: %w", err)
	}
	if _, err := tx.Exec(ctx, moveTagsSQL, keepID, mergeID); err != nil {
		return fmt.Errorf("failed to move tags: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO kg_aliases (entity_id, alias, normalized_alias) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		keepID, merge.Name, merge.NormalizedName); err != nil {
		return fmt.Errorf("failed to record alias: %w", err)
	}

	// Leftover satellites on the merged entity fall with this delete.
	if _, err := tx.Exec(ctx, `DELETE FROM kg_entities WHERE id = $1`, mergeID); err != nil {
		return fmt.Errorf("failed to delete merged entity: %w", err)
	}

	finalType := keep.Type
	if keep.Type == common.EntityUnknown && merge.Type != common.EntityUnknown {
		finalType = merge.Type
	}
	if _, err := tx.Exec(ctx,
		`UPDATE kg_entities SET mention_count = mention_count + $2, entity_type = $3 WHERE id = $1`,
		keepID, merge.MentionCount, finalType); err != nil {
		return fmt.Errorf("failed to update kept entity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}

	logger.Debug("[Merge] Entities merged",
		"keep", keep.Name, "keep_id", keepID, "merged", merge.Name, "merged_id", mergeID)
	return nil
}

func lockEntity(ctx context.Context, tx pgxv5.Tx, id int64) (*common.Entity, error) {
	var e common.Entity
	err := tx.QueryRow(ctx,
		`SELECT id, name, normalized_name, entity_type, mention_count FROM kg_entities WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&e.ID, &e.Name, &e.NormalizedName, &e.Type, &e.MentionCount)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, fmt.Errorf("entity %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load entity %d: %w", id, err)
	}
	return &e, nil
}

// $1 = keep id, $2 = merge id for all three statements below.

const deleteCollidingEdgesSQL = `
DELETE FROM kg_relationships m
WHERE (m.subject_id = $2 OR m.object_id = $2)
  AND EXISTS (
    SELECT 1 FROM kg_relationships k
    WHERE k.id <> m.id
      AND k.predicate = m.predicate
      AND k.subject_id = (CASE WHEN m.subject_id = $2 THEN $1::bigint ELSE m.subject_id END)
      AND k.object_id  = (CASE WHEN m.object_id  = $2 THEN $1::bigint ELSE m.object_id  END)
      AND k.event_date IS NOT DISTINCT FROM m.event_date
  );
`

const deleteCollapsingEdgesSQL = `
DELETE FROM kg_relationships m
WHERE (m.subject_id = $2 OR m.object_id = $2)
  AND EXISTS (
    SELECT 1 FROM kg_relationships n
    WHERE n.id < m.id
      AND (n.subject_id = $2 OR n.object_id = $2)
      AND n.predicate = m.predicate
      AND (CASE WHEN n.subject_id = $2 THEN $1::bigint ELSE n.subject_id END)
        = (CASE WHEN m.subject_id = $2 THEN $1::bigint ELSE m.subject_id END)
      AND (CASE WHEN n.object_id = $2 THEN $1::bigint ELSE n.object_id END)
        = (CASE WHEN m.object_id = $2 THEN $1::bigint ELSE m.object_id END)
      AND n.event_date IS NOT DISTINCT FROM m.event_date
  );
`

const moveEnrichmentSQL = `
UPDATE kg_enrichment SET entity_id = $1
WHERE entity_id = $2
  AND NOT EXISTS (
    SELECT 1 FROM kg_enrichment e2 WHERE e2.entity_id = $1 AND e2.source = kg_enrichment.source
  );
`

const moveTagsSQL = `
UPDATE kg_tags SET entity_id = $1
WHERE entity_id = $2
  AND NOT EXISTS (
    SELECT 1 FROM kg_tags t2 WHERE t2.entity_id = $1 AND t2.tag = kg_tags.tag
  );
`
