package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStore implements the GraphStore interface on PostgreSQL. All
// multi-statement mutations (merges, relationship upserts) run inside a
// single transaction; single-statement upserts rely on ON CONFLICT for
// their atomicity.
type GraphDBStore struct {
	pool *pgxpool.Pool
}

var _ store.GraphStore = (*GraphDBStore)(nil)

// NewGraphDBStore creates a GraphDBStore on an existing connection pool.
// The pool stays owned by the store; Close releases it.
func NewGraphDBStore(pool *pgxpool.Pool) *GraphDBStore {
	return &GraphDBStore{pool: pool}
}

func (s *GraphDBStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *GraphDBStore) Close() error {
	s.pool.Close()
	return nil
}

// jsonArg maps a nil Go map to SQL NULL instead of the JSON literal
// null, so COALESCE in the upserts can tell "absent" from "provided".
func jsonArg(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

const entityColumns = `id, name, normalized_name, entity_type, attributes, mention_count, first_seen, last_seen`

func scanEntity(row pgxv5.Row) (*common.Entity, error) {
	var e common.Entity
	err := row.Scan(
		&e.ID, &e.Name, &e.NormalizedName, &e.Type,
		&e.Attributes, &e.MentionCount, &e.FirstSeen, &e.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEntities(rows pgxv5.Rows) ([]common.Entity, error) {
	defer rows.Close()

	var out []common.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// relationshipColumns selects the edge plus full snapshots of both
// endpoints; scanRelationship expects exactly this order.
const relationshipColumns = `
	r.id, r.subject_id, r.predicate, r.object_id, r.event_date,
	r.confidence, r.context, r.source_url, r.metadata, r.created_at,
	s.id, s.name, s.normalized_name, s.entity_type, s.attributes, s.mention_count, s.first_seen, s.last_seen,
	o.id, o.name, o.normalized_name, o.entity_type, o.attributes, o.mention_count, o.first_seen, o.last_seen`

const relationshipJoins = `
	FROM kg_relationships r
	JOIN kg_entities s ON s.id = r.subject_id
	JOIN kg_entities o ON o.id = r.object_id`

func scanRelationship(row pgxv5.Row) (*common.Relationship, error) {
	var (
		r    common.Relationship
		subj common.Entity
		obj  common.Entity
	)
	err := row.Scan(
		&r.ID, &r.SubjectID, &r.Predicate, &r.ObjectID, &r.EventDate,
		&r.Confidence, &r.Context, &r.SourceURL, &r.Metadata, &r.CreatedAt,
		&subj.ID, &subj.Name, &subj.NormalizedName, &subj.Type,
		&subj.Attributes, &subj.MentionCount, &subj.FirstSeen, &subj.LastSeen,
		&obj.ID, &obj.Name, &obj.NormalizedName, &obj.Type,
		&obj.Attributes, &obj.MentionCount, &obj.FirstSeen, &obj.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	r.Subject = &subj
	r.Object = &obj
	return &r, nil
}

func collectRelationships(rows pgxv5.Rows) ([]common.Relationship, error) {
	defer rows.Close()

	var out []common.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
