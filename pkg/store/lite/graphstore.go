package lite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

// GraphLiteStore implements the GraphStore interface on SQLite. It backs
// the CLI's local mode, serves as an export target, and carries the test
// suite; the driver is pure Go so none of that needs a running server.
type GraphLiteStore struct {
	db *sql.DB
}

var _ store.GraphStore = (*GraphLiteStore)(nil)

// liteConn is satisfied by *sql.DB and *sql.Tx so the shared statement
// helpers run either directly or inside a transaction.
type liteConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewGraphLiteStore opens (creating if needed) the SQLite database at
// path and brings the schema up. Use ":memory:" for a throwaway store.
func NewGraphLiteStore(path string) (*GraphLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &GraphLiteStore{db: db}, nil
}

func (s *GraphLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *GraphLiteStore) Close() error {
	return s.db.Close()
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05"
)

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func jsonArg(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(b), nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Timestamps written by Go carry an RFC3339 shape.
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const entityColumns = `id, name, normalized_name, entity_type, attributes, mention_count, first_seen, last_seen`

func scanEntity(row rowScanner) (*common.Entity, error) {
	var (
		e          common.Entity
		attributes sql.NullString
		firstSeen  string
		lastSeen   string
	)
	err := row.Scan(
		&e.ID, &e.Name, &e.NormalizedName, &e.Type,
		&attributes, &e.MentionCount, &firstSeen, &lastSeen,
	)
	if err != nil {
		return nil, err
	}
	if attributes.Valid && attributes.String != "" {
		if err := json.Unmarshal([]byte(attributes.String), &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode entity attributes: %w", err)
		}
	}
	if e.FirstSeen, err = parseDate(firstSeen); err != nil {
		return nil, fmt.Errorf("failed to parse first_seen: %w", err)
	}
	if e.LastSeen, err = parseDate(lastSeen); err != nil {
		return nil, fmt.Errorf("failed to parse last_seen: %w", err)
	}
	return &e, nil
}

func collectEntities(rows *sql.Rows) ([]common.Entity, error) {
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

const relationshipColumns = `
	r.id, r.subject_id, r.predicate, r.object_id, r.event_date,
	r.confidence, r.context, r.source_url, r.metadata, r.created_at,
	s.id, s.name, s.normalized_name, s.entity_type, s.attributes, s.mention_count, s.first_seen, s.last_seen,
	o.id, o.name, o.normalized_name, o.entity_type, o.attributes, o.mention_count, o.first_seen, o.last_seen`

const relationshipJoins = `
	FROM kg_relationships r
	JOIN kg_entities s ON s.id = r.subject_id
	JOIN kg_entities o ON o.id = r.object_id`

func scanRelationship(row rowScanner) (*common.Relationship, error) {
	var (
		r         common.Relationship
		eventDate sql.NullString
		metadata  sql.NullString
		createdAt string

		subj          common.Entity
		subjAttrs     sql.NullString
		subjFirstSeen string
		subjLastSeen  string

		obj          common.Entity
		objAttrs     sql.NullString
		objFirstSeen string
		objLastSeen  string
	)
	err := row.Scan(
		&r.ID, &r.SubjectID, &r.Predicate, &r.ObjectID, &eventDate,
		&r.Confidence, &r.Context, &r.SourceURL, &metadata, &createdAt,
		&subj.ID, &subj.Name, &subj.NormalizedName, &subj.Type,
		&subjAttrs, &subj.MentionCount, &subjFirstSeen, &subjLastSeen,
		&obj.ID, &obj.Name, &obj.NormalizedName, &obj.Type,
		&objAttrs, &obj.MentionCount, &objFirstSeen, &objLastSeen,
	)
	if err != nil {
		return nil, err
	}

	if eventDate.Valid && eventDate.String != "" {
		d, err := parseDate(eventDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event_date: %w", err)
		}
		r.EventDate = &d
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode relationship metadata: %w", err)
		}
	}
	if r.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	if err := fillEntityDates(&subj, subjAttrs, subjFirstSeen, subjLastSeen); err != nil {
		return nil, err
	}
	if err := fillEntityDates(&obj, objAttrs, objFirstSeen, objLastSeen); err != nil {
		return nil, err
	}
	r.Subject = &subj
	r.Object = &obj
	return &r, nil
}

func fillEntityDates(e *common.Entity, attrs sql.NullString, firstSeen, lastSeen string) error {
	var err error
	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &e.Attributes); err != nil {
			return fmt.Errorf("failed to decode entity attributes: %w", err)
		}
	}
	if e.FirstSeen, err = parseDate(firstSeen); err != nil {
		return fmt.Errorf("failed to parse first_seen: %w", err)
	}
	if e.LastSeen, err = parseDate(lastSeen); err != nil {
		return fmt.Errorf("failed to parse last_seen: %w", err)
	}
	return nil
}

func collectRelationships(rows *sql.Rows) ([]common.Relationship, error) {
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

const schema = `
CREATE TABLE IF NOT EXISTS kg_entities (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	entity_type     TEXT NOT NULL DEFAULT 'unknown',
	attributes      TEXT,
	mention_count   INTEGER NOT NULL DEFAULT 1,
	first_seen      TEXT NOT NULL DEFAULT (date('now')),
	last_seen       TEXT NOT NULL DEFAULT (date('now')),
	created_at      TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE (normalized_name, entity_type)
);
CREATE INDEX IF NOT EXISTS kg_entities_normalized_name_idx ON kg_entities (normalized_name);
CREATE INDEX IF NOT EXISTS kg_entities_mention_count_idx ON kg_entities (mention_count);

CREATE TABLE IF NOT EXISTS kg_relationships (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id  INTEGER NOT NULL REFERENCES kg_entities (id) ON DELETE CASCADE,
	predicate   TEXT NOT NULL,
	object_id   INTEGER NOT NULL REFERENCES kg_entities (id) ON DELETE CASCADE,
	event_date  TEXT,
	confidence  REAL NOT NULL DEFAULT 0.8,
	context     TEXT NOT NULL DEFAULT '',
	source_url  TEXT NOT NULL DEFAULT '',
	metadata    TEXT,
	created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
-- The paired partial indexes keep dated tuples unique and allow at most
-- one undated edge per triple.
CREATE UNIQUE INDEX IF NOT EXISTS kg_relationships_dated_key
	ON kg_relationships (subject_id, predicate, object_id, event_date)
	WHERE event_date IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS kg_relationships_undated_key
	ON kg_relationships (subject_id, predicate, object_id)
	WHERE event_date IS NULL;
CREATE INDEX IF NOT EXISTS kg_relationships_subject_idx ON kg_relationships (subject_id);
CREATE INDEX IF NOT EXISTS kg_relationships_object_idx ON kg_relationships (object_id);
CREATE INDEX IF NOT EXISTS kg_relationships_predicate_idx ON kg_relationships (predicate);

CREATE TABLE IF NOT EXISTS kg_aliases (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id        INTEGER NOT NULL REFERENCES kg_entities (id) ON DELETE CASCADE,
	alias            TEXT NOT NULL,
	normalized_alias TEXT NOT NULL,
	UNIQUE (entity_id, normalized_alias)
);

CREATE TABLE IF NOT EXISTS kg_enrichment (
	entity_id   INTEGER NOT NULL REFERENCES kg_entities (id) ON DELETE CASCADE,
	source      TEXT NOT NULL,
	data        TEXT,
	enriched_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (entity_id, source)
);

CREATE TABLE IF NOT EXISTS kg_tags (
	entity_id INTEGER NOT NULL REFERENCES kg_entities (id) ON DELETE CASCADE,
	tag       TEXT NOT NULL,
	PRIMARY KEY (entity_id, tag)
);
CREATE INDEX IF NOT EXISTS kg_tags_tag_idx ON kg_tags (tag);

CREATE TABLE IF NOT EXISTS kg_maintenance_runs (
	id          TEXT PRIMARY KEY,
	job         TEXT NOT NULL,
	started_at  TEXT NOT NULL DEFAULT (datetime('now')),
	finished_at TEXT,
	counts      TEXT,
	error       TEXT NOT NULL DEFAULT ''
);
`
