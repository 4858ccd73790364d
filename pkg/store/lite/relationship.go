package lite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// InsertEdge inserts a relationship between two existing entities. A
// collision on (subject, predicate, object, event_date) returns
// (nil, nil); that absent id is the duplicate signal, not an error.
func (s *GraphLiteStore) InsertEdge(ctx context.Context, params store.EdgeParams) (*int64, error) {
	return insertEdge(ctx, s.db, params)
}

func insertEdge(ctx context.Context, conn liteConn, params store.EdgeParams) (*int64, error) {
	metadata, err := jsonArg(params.Metadata)
	if err != nil {
		return nil, err
	}

	var createdAt any
	if !params.CreatedAt.IsZero() {
		createdAt = params.CreatedAt.UTC().Format(timeLayout)
	}

	var id int64
	err = conn.QueryRowContext(ctx, insertEdgeSQL,
		params.SubjectID, params.Predicate, params.ObjectID, dateArg(params.EventDate),
		params.Confidence, params.Context, params.SourceURL, metadata, createdAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to insert edge: %w", err)
	}
	return &id, nil
}

// UpsertRelationship ensures both endpoint entities and inserts the edge
// in one transaction.
func (s *GraphLiteStore) UpsertRelationship(ctx context.Context, params store.RelationshipParams) (*int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

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

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit relationship: %w", err)
	}
	if id == nil {
		logger.Debug("[Store] Duplicate relationship skipped",
			"subject", params.Subject, "predicate", params.Predicate, "object", params.Object)
	}
	return id, nil
}

func (s *GraphLiteStore) QueryRelationships(ctx context.Context, filter store.RelationshipFilter) ([]common.Relationship, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + relationshipColumns + relationshipJoins + ` WHERE 1=1`)

	args := make([]any, 0, 5)
	if filter.Subject != "" {
		b.WriteString(` AND s.normalized_name LIKE ?`)
		args = append(args, "%"+strings.ToLower(filter.Subject)+"%")
	}
	if filter.Predicate != "" {
		b.WriteString(` AND r.predicate = ?`)
		args = append(args, filter.Predicate)
	}
	if filter.Object != "" {
		b.WriteString(` AND o.normalized_name LIKE ?`)
		args = append(args, "%"+strings.ToLower(filter.Object)+"%")
	}
	if filter.Since != nil {
		// Undated rows always pass a recency filter.
		b.WriteString(` AND (r.event_date IS NULL OR r.event_date >= ?)`)
		args = append(args, dateArg(filter.Since))
	}
	// SQLite sorts NULLs low, so DESC already puts undated rows last.
	b.WriteString(` ORDER BY r.event_date DESC, r.id DESC`)
	if filter.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	return collectRelationships(rows)
}

func (s *GraphLiteStore) ListRelationships(ctx context.Context) ([]common.Relationship, error) {
	query := `SELECT ` + relationshipColumns + relationshipJoins + ` ORDER BY r.id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return collectRelationships(rows)
}

func (s *GraphLiteStore) GetRelationshipByID(ctx context.Context, id int64) (*common.Relationship, error) {
	query := `SELECT ` + relationshipColumns + relationshipJoins + ` WHERE r.id = ?`
	r, err := scanRelationship(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return r, nil
}

func (s *GraphLiteStore) GetEntityRelationships(ctx context.Context, entityID int64) ([]common.Relationship, error) {
	query := `SELECT ` + relationshipColumns + relationshipJoins +
		` WHERE r.subject_id = ? OR r.object_id = ? ORDER BY r.event_date DESC, r.id DESC`
	rows, err := s.db.QueryContext(ctx, query, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity relationships: %w", err)
	}
	return collectRelationships(rows)
}

func (s *GraphLiteStore) GetEntityPredicates(ctx context.Context, entityID int64) (asSubject, asObject []string, err error) {
	asSubject, err = collectPredicates(ctx, s.db,
		`SELECT DISTINCT predicate FROM kg_relationships WHERE subject_id = ?`, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get subject predicates: %w", err)
	}
	asObject, err = collectPredicates(ctx, s.db,
		`SELECT DISTINCT predicate FROM kg_relationships WHERE object_id = ?`, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get object predicates: %w", err)
	}
	return asSubject, asObject, nil
}

func collectPredicates(ctx context.Context, conn liteConn, query string, entityID int64) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, entityID)
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

func (s *GraphLiteStore) SetRelationshipConfidence(ctx context.Context, id int64, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kg_relationships SET confidence = ? WHERE id = ?`, confidence, id)
	if err != nil {
		return fmt.Errorf("failed to set relationship confidence: %w", err)
	}
	return checkAffected(res)
}

const insertEdgeSQL = `
INSERT INTO kg_relationships (subject_id, predicate, object_id, event_date, confidence, context, source_url, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, datetime('now')))
ON CONFLICT DO NOTHING
RETURNING id;
`
