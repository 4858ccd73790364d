package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// InsertEdge inserts a relationship between two existing entities. A
// collision on (subject, predicate, object, event_date) returns
// (nil, nil); that absent id is the duplicate signal, not an error.
func (s *GraphDBStore) InsertEdge(ctx context.Context, params store.EdgeParams) (*int64, error) {
	return insertEdge(ctx, s.pool, params)
}

func insertEdge(ctx context.Context, conn pgxIConn, params store.EdgeParams) (*int64, error) {
	var createdAt any
	if !params.CreatedAt.IsZero() {
		createdAt = params.CreatedAt
	}

	var id int64
	err := conn.QueryRow(ctx, insertEdgeSQL,
		params.SubjectID, params.Predicate, params.ObjectID, params.EventDate,
		params.Confidence, params.Context, params.SourceURL, jsonArg(params.Metadata),
		createdAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to insert edge: %w", err)
	}
	return &id, nil
}

// UpsertRelationship ensures both endpoint entities and inserts the edge
// in one transaction, so a reader never sees the entities without the
// edge insert having been attempted.
func (s *GraphDBStore) UpsertRelationship(ctx context.Context, params store.RelationshipParams) (*int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	subjectID, err := upsertEntity(ctx, tx, params.Subject, params.SubjectType, nil)
	if err != nil {
		return nil, err
	}
	objectID, err := upsertEntity(ctx, tx, params.Object, params.ObjectType, nil)
	if err != nil {
		return nil, err
	}

	id, err := insertEdge(ctx, tx, store.EdgeParams{
		SubjectID:  subjectID,
		Predicate:  params.Predicate,
		ObjectID:   objectID,
		EventDate:  params.EventDate,
		Confidence: params.Confidence,
		Context:    params.Context,
		SourceURL:  params.SourceURL,
		Metadata:   params.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit relationship: %w", err)
	}
	if id == nil {
		logger.Debug("[Store] Duplicate relationship skipped",
			"subject", params.Subject, "predicate", params.Predicate, "object", params.Object)
	}
	return id, nil
}

func (s *GraphDBStore) QueryRelationships(ctx context.Context, filter store.RelationshipFilter) ([]common.Relationship, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + relationshipColumns + relationshipJoins + ` WHERE 1=1`)

	args := make([]any, 0, 5)
	if filter.Subject != "" {
		args = append(args, "%"+strings.ToLower(filter.Subject)+"%")
		fmt.Fprintf(&b, ` AND s.normalized_name LIKE $%d`, len(args))
	}
	if filter.Predicate != "" {
		args = append(args, filter.Predicate)
		fmt.Fprintf(&b, ` AND r.predicate = $%d`, len(args))
	}
	if filter.Object != "" {
		args = append(args, "%"+strings.ToLower(filter.Object)+"%")
		fmt.Fprintf(&b, ` AND o.normalized_name LIKE $%d`, len(args))
	}
	if filter.Since != nil {
		// Undated rows always pass a recency filter.
		args = append(args, *filter.Since)
		fmt.Fprintf(&b, ` AND (r.event_date IS NULL OR r.event_date >= $%d)`, len(args))
	}
	b.WriteString(` ORDER BY r.event_date DESC NULLS LAST, r.id DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	return collectRelationships(rows)
}

func (s *GraphDBStore) ListRelationships(ctx context.Context) ([]common.Relationship, error) {
	sql := `SELECT ` + relationshipColumns + relationshipJoins + ` ORDER BY r.id`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return collectRelationships(rows)
}

func (s *GraphDBStore) GetRelationshipByID(ctx context.Context, id int64) (*common.Relationship, error) {
	sql := `SELECT ` + relationshipColumns + relationshipJoins + ` WHERE r.id = $1`
	r, err := scanRelationship(s.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return r, nil
}

func (s *GraphDBStore) GetEntityRelationships(ctx context.Context, entityID int64) ([]common.Relationship, error) {
	sql := `SELECT ` + relationshipColumns + relationshipJoins +
		` WHERE r.subject_id = $1 OR r.object_id = $1 ORDER BY r.event_date DESC NULLS LAST, r.id DESC`
	rows, err := s.pool.Query(ctx, sql, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity relationships: %w", err)
	}
	return collectRelationships(rows)
}

func (s *GraphDBStore) GetEntityPredicates(ctx context.Context, entityID int64) (asSubject, asObject []string, err error) {
	asSubject, err = collectPredicates(ctx, s.pool,
		`SELECT DISTINCT predicate FROM kg_relationships WHERE subject_id = $1`, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get subject predicates: %w", err)
	}
	asObject, err = collectPredicates(ctx, s.pool,
		`SELECT DISTINCT predicate FROM kg_relationships WHERE object_id = $1`, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object predicates: %w", err)
	}
	return asSubject, asObject, nil
}

func collectPredicates(ctx context.Context, conn pgxIConn, sql string, entityID int64) ([]string, error) {
	rows, err := conn.Query(ctx, sql, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *GraphDBStore) SetRelationshipConfidence(ctx context.Context, id int64, confidence float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE kg_relationships SET confidence = $2 WHERE id = $1`, id, confidence)
	if err != nil {
		return fmt.Errorf("failed to set relationship confidence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const insertEdgeSQL = `
INSERT INTO kg_relationships (subject_id, predicate, object_id, event_date, confidence, context, source_url, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
ON CONFLICT (subject_id, predicate, object_id, event_date) DO NOTHING
RETURNING id;
`
