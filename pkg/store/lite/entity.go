package lite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

func (s *GraphLiteStore) EnsureEntity(ctx context.Context, name, entityType string) (int64, error) {
	return upsertEntity(ctx, s.db, name, entityType, nil)
}

func (s *GraphLiteStore) UpsertEntity(ctx context.Context, name, entityType string, attributes map[string]any) (int64, error) {
	return upsertEntity(ctx, s.db, name, entityType, attributes)
}

func upsertEntity(ctx context.Context, conn liteConn, name, entityType string, attributes map[string]any) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("entity name is empty")
	}
	if entityType == "" {
		entityType = common.EntityUnknown
	}
	attrs, err := jsonArg(attributes)
	if err != nil {
		return 0, err
	}

	var id int64
	err = conn.QueryRowContext(ctx, upsertEntitySQL,
		strings.TrimSpace(name), store.Normalize(name), entityType, attrs,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert entity: %w", err)
	}
	return id, nil
}

func (s *GraphLiteStore) GetEntity(ctx context.Context, name, entityType string) (*common.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM kg_entities WHERE normalized_name = ?`
	args := []any{store.Normalize(name)}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY mention_count DESC LIMIT 1`

	e, err := scanEntity(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

func (s *GraphLiteStore) GetEntityByID(ctx context.Context, id int64) (*common.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM kg_entities WHERE id = ?`
	e, err := scanEntity(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entity by id: %w", err)
	}
	return e, nil
}

func (s *GraphLiteStore) GetEntitiesByName(ctx context.Context, name string) ([]common.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM kg_entities WHERE LOWER(name) = LOWER(?) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get entities by name: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphLiteStore) SearchEntities(ctx context.Context, query, entityType string, limit int) ([]common.Entity, error) {
	stmt := `SELECT ` + entityColumns + ` FROM kg_entities WHERE normalized_name LIKE ?`
	args := []any{"%" + strings.ToLower(query) + "%"}
	if entityType != "" {
		stmt += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	stmt += ` ORDER BY mention_count DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphLiteStore) ListEntities(ctx context.Context) ([]common.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM kg_entities ORDER BY mention_count DESC, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphLiteStore) ListEntitiesByType(ctx context.Context, entityType string) ([]common.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM kg_entities WHERE entity_type = ? ORDER BY mention_count DESC, id`
	rows, err := s.db.QueryContext(ctx, query, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities by type: %w", err)
	}
	return collectEntities(rows)
}

func (s *GraphLiteStore) RetypeEntity(ctx context.Context, id int64, entityType string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE kg_entities SET entity_type = ? WHERE id = ?`, entityType, id)
	if err != nil {
		return fmt.Errorf("failed to retype entity: %w", err)
	}
	return checkAffected(res)
}

// DeleteEntity removes the entity row; relationships, aliases,
// enrichment, and tags referencing it fall via ON DELETE CASCADE.
func (s *GraphLiteStore) DeleteEntity(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kg_entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ImportEntity inserts an entity with its full field set, as the export
// path needs. An existing row with the same normalized name and type
// wins: its id is returned with created=false.
func (s *GraphLiteStore) ImportEntity(ctx context.Context, e common.Entity) (int64, bool, error) {
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
	attrs, err := jsonArg(e.Attributes)
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, importEntitySQL,
		name, normalized, entityType, attrs, mentions,
		dateValue(e.FirstSeen), dateValue(e.LastSeen),
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to import entity: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM kg_entities WHERE normalized_name = ? AND entity_type = ?`,
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
	return t.UTC().Format(dateLayout)
}

const upsertEntitySQL = `
INSERT INTO kg_entities (name, normalized_name, entity_type, attributes)
VALUES (?, ?, ?, ?)
ON CONFLICT (normalized_name, entity_type) DO UPDATE
SET mention_count = mention_count + 1,
    last_seen     = date('now'),
    attributes    = COALESCE(excluded.attributes, kg_entities.attributes)
RETURNING id;
`

const importEntitySQL = `
INSERT INTO kg_entities (name, normalized_name, entity_type, attributes, mention_count, first_seen, last_seen)
VALUES (?, ?, ?, ?, ?, COALESCE(?, date('now')), COALESCE(?, date('now')))
ON CONFLICT DO NOTHING
RETURNING id;
`
