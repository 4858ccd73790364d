package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

func (s *GraphDBStore) EnsureEntity(ctx context.Context, name, entityType string) (int64, error) {
	return upsertEntity(ctx, s.pool, name, entityType, nil)
}

func (s *GraphDBStore) UpsertEntity(ctx context.Context, name, entityType string, attributes map[string]any) (int64, error) {
	return upsertEntity(ctx, s.pool, name, entityType, attributes)
}

// upsertEntity runs on the pool or inside a transaction; relationship
// upserts reuse it through their tx.
func upsertEntity(ctx context.Context, conn pgxIConn, name, entityType string, attributes map[string]any) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("entity name is empty")
	}
	if entityType == "" {
		entityType = common.EntityUnknown
	}

	var id int64
	err := conn.QueryRow(ctx, upsertEntitySQL,
		strings.TrimSpace(name), store.Normalize(name), entityType, jsonArg(attributes),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert entity: %w", err)
	}
	return id, nil
}

func (s *GraphDBStore) GetEntity(ctx context.Context, name, entityType string) (*common.Entity, error) {
	sql := `SELECT ` + entityColumns + ` FROM kg_entities WHERE normalized_name = $1`
	args := []any{store.Normalize(name)}
	if entityType != "" {
		sql += ` AND entity_type = $2`
		args = append(args, entityType)
	}
	sql += ` ORDER BY mention_count DESC LIMIT 1`

	e, err := scanEntity(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

func (s *GraphDBStore) GetEntityByID(ctx context.Context, id int64) (*common.Entity, error) {
	sql := `SELECT ` + entityColumns + ` FROM kg_entities WHERE id = $1`
	e, err := scanEntity(s.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity by id: %w", err)
	}
	return e, nil
}

func (s *GraphDBStore) GetEntitiesByName(ctx context.Context, name string) ([]common.Entity, error) {
	sql := `SELECT ` + entityColumns + ` FROM kg_entities WHERE LOWER(name) = LOWER($1) ORDER BY id`
	rows, err := s.pool.Query(ctx, sql, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get entities by name: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphDBStore) SearchEntities(ctx context.Context, query, entityType string, limit int) ([]common.Entity, error) {
	sql := `SELECT ` + entityColumns + ` FROM kg_entities WHERE normalized_name LIKE $1`
	args := []any{"%" + strings.ToLower(query) + "%"}
	if entityType != "" {
		sql += ` AND entity_type = $2`
		args = append(args, entityType)
	}
	sql += fmt.Sprintf(` ORDER BY mention_count DESC, id LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphDBStore) ListEntities(ctx context.Context) ([]common.Entity, error) {
	sql := `SELECT ` + entityColumns + ` FROM kg_entities ORDER BY mention_count DESC, id`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphDBStore) ListEntitiesByType(ctx context.Context, entityType string) ([]common.Entity, error) {
	sql := `SELECT ` + entityColumns + ` FROM kg_entities WHERE entity_type = $1 ORDER BY mention_count DESC, id`
	rows, err := s.pool.Query(ctx, sql, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities by type: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphDBStore) RetypeEntity(ctx context.Context, id int64, entityType string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE kg_entities SET entity_type = $2 WHERE id = $1`, id, entityType)
	if err != nil {
		return fmt.Errorf("failed to retype entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteEntity removes the entity row; relationships, aliases,
// enrichment, and tags referencing it fall via ON DELETE CASCADE.
func (s *GraphDBStore) DeleteEntity(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kg_entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ImportEntity inserts an entity with its full field set, as the export
// path needs. An existing row with the same normalized name and type
// wins: its id is returned with created=false.
func (s *GraphDBStore) ImportEntity(ctx context.Context, e common.Entity) (int64, bool, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return 0, false, fmt.Errorf("entity name is empty")
	}
	normalized := e.NormalizedName
	if normalized == "" {
		normalized = store.Normalize(name)
	}
	entityType := e.Type
	if entityType == "" {
		entityType = common.EntityUnknown
	}
	mentions := e.MentionCount
	if mentions < 1 {
		mentions = 1
	}

	var id int64
	err := s.pool.QueryRow(ctx, importEntitySQL,
		name, normalized, entityType, jsonArg(e.Attributes), mentions,
		dateValue(e.FirstSeen), dateValue(e.LastSeen),
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgxv5.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to import entity: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id FROM kg_entities WHERE normalized_name = $1 AND entity_type = $2`,
		normalized, entityType,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve imported entity: %w", err)
	}
	return id, false, nil
}

func dateValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

const upsertEntitySQL = `
INSERT INTO kg_entities (name, normalized_name, entity_type, attributes)
VALUES ($1, $2, $3, $4)
ON CONFLICT (normalized_name, entity_type) DO UPDATE
SET mention_count = kg_entities.mention_count + 1,
    last_seen     = CURRENT_DATE,
    attributes    = COALESCE(EXCLUDED.attributes, kg_entities.attributes)
RETURNING id;
`

const importEntitySQL = `
INSERT INTO kg_entities (name, normalized_name, entity_type, attributes, mention_count, first_seen, last_seen)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, CURRENT_DATE), COALESCE($7, CURRENT_DATE))
ON CONFLICT (normalized_name, entity_type) DO NOTHING
RETURNING id;
`
