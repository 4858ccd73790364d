package store

import (
	"context"
	"errors"
	"time"

	"github.com/signalnest/magpie/pkg/common"
)

// ErrNotFound is returned by lookups addressing an entity or relationship
// that does not exist.
var ErrNotFound = errors.New("store: not found")

// EdgeParams describes a relationship insert between two existing
// entities. A nil EventDate lands in the single undated slot for the
// (subject, predicate, object) triple.
type EdgeParams struct {
	SubjectID  int64
	Predicate  string
	ObjectID   int64
	EventDate  *time.Time
	Confidence float64
	Context    string
	SourceURL  string
	Metadata   map[string]any
	// CreatedAt overrides the insert timestamp when non-zero. The export
	// path uses it to carry the original timestamp across stores.
	CreatedAt time.Time
}

// RelationshipParams describes a relationship upsert by entity names.
// Missing endpoint entities are created first, then the edge is inserted.
type RelationshipParams struct {
	Subject     string
	SubjectType string
	Predicate   string
	Object      string
	ObjectType  string
	EventDate   *time.Time
	Confidence  float64
	Context     string
	SourceURL   string
	Metadata    map[string]any
}

// RelationshipFilter narrows a relationship query. Subject and Object are
// substring matches against the normalized entity names, Predicate is
// exact. Since keeps rows whose event date is unset or not older than the
// given date; undated rows always pass. Limit <= 0 means no limit.
type RelationshipFilter struct {
	Subject   string
	Predicate string
	Object    string
	Since     *time.Time
	Limit     int
}

// GraphStore is the persistence contract for the knowledge graph. It
// covers entity and relationship upserts with their uniqueness semantics,
// the satellite tables (aliases, enrichment, tags), the mutations the
// resolver needs (merge, retype, delete), and the operational surfaces
// (stats, maintenance runs).
//
// Implementations: pgx (PostgreSQL, production) and lite (SQLite, local
// use, export targets, tests). Every mutating call is one transaction; a
// reader never observes a partially applied merge or upsert.
type GraphStore interface {
	// EnsureEntity creates the entity if absent and otherwise counts the
	// mention, returning the id either way.
	EnsureEntity(ctx context.Context, name, entityType string) (int64, error)
	// UpsertEntity is EnsureEntity plus attributes: a provided attribute
	// map replaces the stored one, nil leaves it untouched.
	UpsertEntity(ctx context.Context, name, entityType string, attributes map[string]any) (int64, error)
	// GetEntity looks up by normalized name; empty entityType matches any.
	GetEntity(ctx context.Context, name, entityType string) (*common.Entity, error)
	GetEntityByID(ctx context.Context, id int64) (*common.Entity, error)
	// GetEntitiesByName matches the raw name case-insensitively.
	GetEntitiesByName(ctx context.Context, name string) ([]common.Entity, error)
	// SearchEntities substring-matches the normalized name, ordered by
	// mention count descending. Empty entityType matches any.
	SearchEntities(ctx context.Context, query, entityType string, limit int) ([]common.Entity, error)
	ListEntities(ctx context.Context) ([]common.Entity, error)
	ListEntitiesByType(ctx context.Context, entityType string) ([]common.Entity, error)
	// RetypeEntity sets the type; it fails when an entity with the same
	// normalized name already holds the target type.
	RetypeEntity(ctx context.Context, id int64, entityType string) error
	// DeleteEntity removes the entity and everything referencing it.
	DeleteEntity(ctx context.Context, id int64) error
	// ImportEntity inserts an entity carrying its full field set instead
	// of the upsert defaults. When a row with the same normalized name
	// and type already exists it wins: its id comes back with
	// created=false and the stored row is left untouched.
	ImportEntity(ctx context.Context, e common.Entity) (id int64, created bool, err error)
	// MergeEntities absorbs merge into keep in one transaction: edges are
	// repointed (collisions with existing keep edges dropped), mention
	// counts summed, an unknown keep adopts merge's type, enrichment and
	// tags move over unless keep already has them, merge's name becomes
	// an alias of keep, and the merged row is deleted.
	MergeEntities(ctx context.Context, keepID, mergeID int64) error

	// InsertEdge inserts a relationship between existing entities. A
	// uniqueness collision returns (nil, nil): the duplicate signal.
	InsertEdge(ctx context.Context, params EdgeParams) (*int64, error)
	// UpsertRelationship composes EnsureEntity for both endpoints with
	// InsertEdge.
	UpsertRelationship(ctx context.Context, params RelationshipParams) (*int64, error)
	// QueryRelationships returns matches ordered by event date descending
	// with undated rows last, then id descending. Results embed full
	// snapshots of both endpoint entities.
	QueryRelationships(ctx context.Context, filter RelationshipFilter) ([]common.Relationship, error)
	ListRelationships(ctx context.Context) ([]common.Relationship, error)
	GetRelationshipByID(ctx context.Context, id int64) (*common.Relationship, error)
	// GetEntityRelationships returns every edge the entity participates
	// in, as subject or object.
	GetEntityRelationships(ctx context.Context, entityID int64) ([]common.Relationship, error)
	// GetEntityPredicates returns the distinct predicates the entity
	// appears under, split by side.
	GetEntityPredicates(ctx context.Context, entityID int64) (asSubject, asObject []string, err error)
	SetRelationshipConfidence(ctx context.Context, id int64, confidence float64) error

	// AddAlias records a name variant, ignoring duplicates.
	AddAlias(ctx context.Context, entityID int64, alias string) error
	GetEntityAliases(ctx context.Context, entityID int64) ([]common.Alias, error)
	ListAliases(ctx context.Context) ([]common.Alias, error)

	// UpsertEnrichment writes the data blob for (entity, source),
	// replacing an earlier blob from the same source.
	UpsertEnrichment(ctx context.Context, entityID int64, source string, data map[string]any) error
	GetEnrichment(ctx context.Context, entityID int64) ([]common.Enrichment, error)
	ListEnrichment(ctx context.Context) ([]common.Enrichment, error)
	CountEnrichedEntities(ctx context.Context) (int, error)

	AddTag(ctx context.Context, entityID int64, tag string) error
	RemoveTag(ctx context.Context, entityID int64, tag string) error
	GetEntityTags(ctx context.Context, entityID int64) ([]string, error)
	GetEntitiesByTag(ctx context.Context, tag string) ([]common.Entity, error)
	TagCounts(ctx context.Context) (map[string]int, error)
	ListTags(ctx context.Context) ([]common.Tag, error)

	GetStats(ctx context.Context) (*common.Stats, error)
	// DistinctEntitySources returns the distinct non-empty source URLs
	// across the edges touching the entity.
	DistinctEntitySources(ctx context.Context, entityID int64) ([]string, error)
	// CountRelationshipsBySource groups edge counts by source URL,
	// skipping edges without one.
	CountRelationshipsBySource(ctx context.Context) (map[string]int, error)
	// CountMultiSourceEntities counts entities whose edges cite more than
	// one distinct source.
	CountMultiSourceEntities(ctx context.Context) (int, error)

	RecordMaintenanceRun(ctx context.Context, run *common.MaintenanceRun) error
	FinishMaintenanceRun(ctx context.Context, id string, counts map[string]int, runErr string) error
	ListMaintenanceRuns(ctx context.Context, limit int) ([]common.MaintenanceRun, error)

	Ping(ctx context.Context) error
	Close() error
}
