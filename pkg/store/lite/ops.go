package lite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/signalnest/magpie/pkg/common"
)

func (s *GraphLiteStore) GetStats(ctx context.Context) (*common.Stats, error) {
	stats := &common.Stats{
		EntitiesByType:      make(map[string]int),
		RelationshipsByType: make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kg_entities`).Scan(&stats.TotalEntities)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kg_relationships`).Scan(&stats.TotalRelationships)
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships: %w", err)
	}

	if err := s.groupCounts(ctx, `SELECT entity_type, COUNT(*) FROM kg_entities GROUP BY entity_type`, stats.EntitiesByType); err != nil {
		return nil, fmt.Errorf("failed to count entities by type: %w", err)
	}
	if err := s.groupCounts(ctx, `SELECT predicate, COUNT(*) FROM kg_relationships GROUP BY predicate`, stats.RelationshipsByType); err != nil {
		return nil, fmt.Errorf("failed to count relationships by type: %w", err)
	}

	return stats, nil
}

func (s *GraphLiteStore) groupCounts(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

func (s *GraphLiteStore) DistinctEntitySources(ctx context.Context, entityID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source_url FROM kg_relationships
		 WHERE (subject_id = ?1 OR object_id = ?1) AND source_url <> ''
		 ORDER BY source_url`,
		entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entity sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		out = append(out, url)
	}
	return out, rows.Err()
}

func (s *GraphLiteStore) CountRelationshipsBySource(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.groupCounts(ctx,
		`SELECT source_url, COUNT(*) FROM kg_relationships WHERE source_url <> '' GROUP BY source_url`,
		counts)
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships by source: %w", err)
	}
	return counts, nil
}

func (s *GraphLiteStore) CountMultiSourceEntities(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (
		   SELECT e.id FROM kg_entities e
		   JOIN kg_relationships r ON e.id = r.subject_id OR e.id = r.object_id
		   WHERE r.source_url <> ''
		   GROUP BY e.id
		   HAVING COUNT(DISTINCT r.source_url) > 1
		 )`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count multi-source entities: %w", err)
	}
	return n, nil
}

func (s *GraphLiteStore) RecordMaintenanceRun(ctx context.Context, run *common.MaintenanceRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kg_maintenance_runs (id, job, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Job, run.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record maintenance run: %w", err)
	}
	return nil
}

func (s *GraphLiteStore) FinishMaintenanceRun(ctx context.Context, id string, counts map[string]int, runErr string) error {
	var arg any
	if counts != nil {
		b, err := json.Marshal(counts)
		if err != nil {
			return fmt.Errorf("failed to encode counts: %w", err)
		}
		arg = string(b)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE kg_maintenance_runs SET finished_at = datetime('now'), counts = ?, error = ? WHERE id = ?`,
		arg, runErr, id)
	if err != nil {
		return fmt.Errorf("failed to finish maintenance run: %w", err)
	}
	return checkAffected(res)
}

func (s *GraphLiteStore) ListMaintenanceRuns(ctx context.Context, limit int) ([]common.MaintenanceRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job, started_at, finished_at, counts, error FROM kg_maintenance_runs ORDER BY started_at DESC, id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance runs: %w", err)
	}
	defer rows.Close()

	var out []common.MaintenanceRun
	for rows.Next() {
		var (
			r          common.MaintenanceRun
			startedAt  string
			finishedAt sql.NullString
			counts     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Job, &startedAt, &finishedAt, &counts, &r.Error); err != nil {
			return nil, err
		}
		ts, err := parseTimestamp(startedAt)
		if err != nil {
			return nil, err
		}
		r.StartedAt = ts
		if finishedAt.Valid {
			fin, err := parseTimestamp(finishedAt.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &fin
		}
		if counts.Valid && counts.String != "" {
			if err := json.Unmarshal([]byte(counts.String), &r.Counts); err != nil {
				return nil, fmt.Errorf("failed to decode counts: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
