package pgx

import (
	"context"
	"fmt"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

func (s *GraphDBStore) GetStats(ctx context.Context) (*common.Stats, error) {
	stats := &common.Stats{
		EntitiesByType:      make(map[string]int),
		RelationshipsByType: make(map[string]int),
	}

	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM kg_entities`).Scan(&stats.TotalEntities)
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM kg_relationships`).Scan(&stats.TotalRelationships)
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

func (s *GraphDBStore) groupCounts(ctx context.Context, sql string, into map[string]int) error {
	rows, err := s.pool.Query(ctx, sql)
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

func (s *GraphDBStore) DistinctEntitySources(ctx context.Context, entityID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT source_url FROM kg_relationships
		 WHERE (subject_id = $1 OR object_id = $1) AND source_url <> ''
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

func (s *GraphDBStore) CountRelationshipsBySource(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.groupCounts(ctx,
		`SELECT source_url, COUNT(*) FROM kg_relationships WHERE source_url <> '' GROUP BY source_url`,
		counts)
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships by source: %w", err)
	}
	return counts, nil
}

func (s *GraphDBStore) CountMultiSourceEntities(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM (
		   SELECT e.id FROM kg_entities e
		   JOIN kg_relationships r ON e.id = r.subject_id OR e.id = r.object_id
		   WHERE r.source_url <> ''
		   GROUP BY e.id
		   HAVING COUNT(DISTINCT r.source_url) > 1
		 ) multi`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count multi-source entities: %w", err)
	}
	return n, nil
}

func (s *GraphDBStore) RecordMaintenanceRun(ctx context.Context, run *common.MaintenanceRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kg_maintenance_runs (id, job, started_at) VALUES ($1, $2, $3)`,
		run.ID, run.Job, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record maintenance run: %w", err)
	}
	return nil
}

func (s *GraphDBStore) FinishMaintenanceRun(ctx context.Context, id string, counts map[string]int, runErr string) error {
	var arg any
	if counts != nil {
		arg = counts
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE kg_maintenance_runs SET finished_at = now(), counts = $2, error = $3 WHERE id = $1`,
		id, arg, runErr)
	if err != nil {
		return fmt.Errorf("failed to finish maintenance run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GraphDBStore) ListMaintenanceRuns(ctx context.Context, limit int) ([]common.MaintenanceRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, job, started_at, finished_at, counts, error FROM kg_maintenance_runs ORDER BY started_at DESC, id LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance runs: %w", err)
	}
	defer rows.Close()

	var out []common.MaintenanceRun
	for rows.Next() {
		var r common.MaintenanceRun
		if err := rows.Scan(&r.ID, &r.Job, &r.StartedAt, &r.FinishedAt, &r.Counts, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
