package lite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

func (s *GraphLiteStore) AddAlias(ctx context.Context, entityID int64, alias string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kg_aliases (entity_id, alias, normalized_alias) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		entityID, alias, store.Normalize(alias))
	if err != nil {
		return fmt.Errorf("failed to add alias: %w", err)
	}
	return nil
}

func (s *GraphLiteStore) GetEntityAliases(ctx context.Context, entityID int64) ([]common.Alias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, alias, normalized_alias FROM kg_aliases WHERE entity_id = ? ORDER BY id`,
		entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get aliases: %w", err)
	}
	return collectAliases(rows)
}

func (s *GraphLiteStore) ListAliases(ctx context.Context) ([]common.Alias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, alias, normalized_alias FROM kg_aliases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	return collectAliases(rows)
}

func collectAliases(rows *sql.Rows) ([]common.Alias, error) {
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

func (s *GraphLiteStore) UpsertEnrichment(ctx context.Context, entityID int64, source string, data map[string]any) error {
	arg, err := jsonArg(data)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertEnrichmentSQL, entityID, source, arg); err != nil {
		return fmt.Errorf("failed to upsert enrichment: %w", err)
	}
	return nil
}

func (s *GraphLiteStore) GetEnrichment(ctx context.Context, entityID int64) ([]common.Enrichment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, source, data, enriched_at FROM kg_enrichment WHERE entity_id = ? ORDER BY source`,
		entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}
	return collectEnrichment(rows)
}

func (s *GraphLiteStore) ListEnrichment(ctx context.Context) ([]common.Enrichment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, source, data, enriched_at FROM kg_enrichment ORDER BY entity_id, source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrichment: %w", err)
	}
	return collectEnrichment(rows)
}

func (s *GraphLiteStore) CountEnrichedEntities(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT entity_id) FROM kg_enrichment`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count enriched entities: %w", err)
	}
	return n, nil
}

func collectEnrichment(rows *sql.Rows) ([]common.Enrichment, error) {
	defer rows.Close()
	var out []common.Enrichment
	for rows.Next() {
		var (
			e    common.Enrichment
			data sql.NullString
			at   string
		)
		if err := rows.Scan(&e.EntityID, &e.Source, &data, &at); err != nil {
			return nil, err
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				return nil, fmt.Errorf("failed to decode enrichment data: %w", err)
			}
		}
		ts, err := parseTimestamp(at)
		if err != nil {
			return nil, err
		}
		e.EnrichedAt = ts
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *GraphLiteStore) AddTag(ctx context.Context, entityID int64, tag string) error {
	tag = store.Normalize(tag)
	if tag == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kg_tags (entity_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`, entityID, tag)
	if err != nil {
		return fmt.Errorf("failed to add tag: %w", err)
	}
	return nil
}

func (s *GraphLiteStore) RemoveTag(ctx context.Context, entityID int64, tag string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kg_tags WHERE entity_id = ? AND tag = ?`, entityID, store.Normalize(tag))
	if err != nil {
		return fmt.Errorf("failed to remove tag: %w", err)
	}
	return nil
}

func (s *GraphLiteStore) GetEntityTags(ctx context.Context, entityID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag FROM kg_tags WHERE entity_id = ? ORDER BY tag`, entityID)
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

func (s *GraphLiteStore) GetEntitiesByTag(ctx context.Context, tag string) ([]common.Entity, error) {
	rows, err := s.db.QueryContext(ctx, entitiesByTagSQL, store.Normalize(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to get entities by tag: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphLiteStore) TagCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag, COUNT(*) FROM kg_tags GROUP BY tag ORDER BY tag`)
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

func (s *GraphLiteStore) ListTags(ctx context.Context) ([]common.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, tag FROM kg_tags ORDER BY entity_id, tag`)
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

const upsertEnrichmentSQL = `
INSERT INTO kg_enrichment (entity_id, source, data, enriched_at)
VALUES (?, ?, ?, datetime('now'))
ON CONFLICT (entity_id, source) DO UPDATE
SET data = excluded.data, enriched_at = datetime('now');
`

const entitiesByTagSQL = `
SELECT e.id, e.name, e.normalized_name, e.entity_type, e.attributes, e.mention_count, e.first_seen, e.last_seen
FROM kg_entities e
JOIN kg_tags t ON t.entity_id = e.id
WHERE t.tag = ?
ORDER BY e.mention_count DESC, e.id;
`
