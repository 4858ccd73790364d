package pgx

import (
	"context"
	"fmt"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

func (s *GraphDBStore) AddAlias(ctx context.Context, entityID int64, alias string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kg_aliases (entity_id, alias, normalized_alias) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		entityID, alias, store.Normalize(alias))
	if err != nil {
		return fmt.Errorf("failed to add alias: %w", err)
	}
	return nil
}

func (s *GraphDBStore) GetEntityAliases(ctx context.Context, entityID int64) ([]common.Alias, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, alias, normalized_alias FROM kg_aliases WHERE entity_id = $1 ORDER BY id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get aliases: %w", err)
	}
	defer rows.Close()

	var out []common.Alias
	for rows.Next() {
		var a common.Alias
		if err := rows.Scan(&a.ID, &a.EntityID, &a.Alias, &a.NormalizedAlias); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) ListAliases(ctx context.Context) ([]common.Alias, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, alias, normalized_alias FROM kg_aliases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer rows.Close()

	var out []common.Alias
	for rows.Next() {
		var a common.Alias
		if err := rows.Scan(&a.ID, &a.EntityID, &a.Alias, &a.NormalizedAlias); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) UpsertEnrichment(ctx context.Context, entityID int64, source string, data map[string]any) error {
	_, err := s.pool.Exec(ctx, upsertEnrichmentSQL, entityID, source, jsonArg(data))
	if err != nil {
		return fmt.Errorf("failed to upsert enrichment: %w", err)
	}
	return nil
}

func (s *GraphDBStore) GetEnrichment(ctx context.Context, entityID int64) ([]common.Enrichment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, source, data, enriched_at FROM kg_enrichment WHERE entity_id = $1 ORDER BY source`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}
	defer rows.Close()

	var out []common.Enrichment
	for rows.Next() {
		var e common.Enrichment
		if err := rows.Scan(&e.EntityID, &e.Source, &e.Data, &e.EnrichedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) ListEnrichment(ctx context.Context) ([]common.Enrichment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, source, data, enriched_at FROM kg_enrichment ORDER BY entity_id, source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrichment: %w", err)
	}
	defer rows.Close()

	var out []common.Enrichment
	for rows.Next() {
		var e common.Enrichment
		if err := rows.Scan(&e.EntityID, &e.Source, &e.Data, &e.EnrichedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) CountEnrichedEntities(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT entity_id) FROM kg_enrichment`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count enriched entities: %w", err)
	}
	return n, nil
}

func (s *GraphDBStore) AddTag(ctx context.Context, entityID int64, tag string) error {
	tag = store.Normalize(tag)
	if tag == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kg_tags (entity_id, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`, entityID, tag)
	if err != nil {
		return fmt.Errorf("failed to add tag: %w", err)
	}
	return nil
}

func (s *GraphDBStore) RemoveTag(ctx context.Context, entityID int64, tag string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM kg_tags WHERE entity_id = $1 AND tag = $2`, entityID, store.Normalize(tag))
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	return nil
}

func (s *GraphDBStore) GetEntityTags(ctx context.Context, entityID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tag FROM kg_tags WHERE entity_id = $1 ORDER BY tag`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) GetEntitiesByTag(ctx context.Context, tag string) ([]common.Entity, error) {
	sql := `SELECT ` + entityColumnsPrefixed + `
		FROM kg_entities e
		JOIN kg_tags t ON t.entity_id = e.id
		WHERE t.tag = $1
		ORDER BY e.mention_count DESC, e.id`
	rows, err := s.pool.Query(ctx, sql, store.Normalize(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to get entities by tag: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphDBStore) ListTags(ctx context.Context) ([]common.Tag, error) {
	rows, err := s.pool.Query(ctx, `SELECT entity_id, tag FROM kg_tags ORDER BY entity_id, tag`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var out []common.Tag
	for rows.Next() {
		var t common.Tag
		if err := rows.Scan(&t.EntityID, &t.Tag); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) TagCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT tag, COUNT(*) FROM kg_tags GROUP BY tag ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			tag string
			n   int
		)
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		out[tag] = n
	}
	return out, rows.Err()
}

const entityColumnsPrefixed = `e.id, e.name, e.normalized_name, e.entity_type, e.attributes, e.mention_count, e.first_seen, e.last_seen`

const upsertEnrichmentSQL = `
INSERT INTO kg_enrichment (entity_id, source, data, enriched_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (entity_id, source) DO UPDATE
SET data = EXCLUDED.data, enriched_at = now();
`
