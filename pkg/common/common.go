package common

import "time"

// Entity types. Extraction may hand the store anything; the resolver's
// retype pass is the only path that changes a stored type afterwards.
const (
	EntityCompany  = "company"
	EntityPerson   = "person"
	EntityInvestor = "investor"
	EntityUnknown  = "unknown"
)

// Relationship predicates. The vocabulary is fixed; edges carrying other
// predicates are stored as-is but never participate in retyping or
// cross-referencing.
const (
	PredicateAcquired      = "ACQUIRED"
	PredicateFundedBy      = "FUNDED_BY"
	PredicateRaisedFunding = "RAISED_FUNDING"
	PredicateHiredBy       = "HIRED_BY"
	PredicateDepartedFrom  = "DEPARTED_FROM"
	PredicateFounded       = "FOUNDED"
	PredicateCEOOf         = "CEO_OF"
	PredicateCTOOf         = "CTO_OF"
	PredicateCFOOf         = "CFO_OF"
	PredicateOfficerOf     = "OFFICER_OF"
	PredicateExecutiveOf   = "EXECUTIVE_OF"
	PredicateDirectorOf    = "DIRECTOR_OF"
	PredicateLaidOff       = "LAID_OFF"
	PredicateInvestedIn    = "INVESTED_IN"
)

// Entity represents a node in the graph: a company, person, or investor
// distilled from news signals. Entities are unique per (normalized name,
// type); every repeated mention increments MentionCount and advances
// LastSeen instead of creating a second row.
//
// NormalizedName is the store-level form (lowercased, trimmed). Legal
// suffix stripping is a resolver concern and never leaks into the stored
// normalized name.
type Entity struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	NormalizedName string         `json:"normalized_name"`
	Type           string         `json:"entity_type"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	MentionCount   int            `json:"mention_count"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
}

// Relationship represents a directed, typed edge between two entities:
// a dated, source-attributed business fact such as an acquisition or a
// hire. Edges are unique per (subject, predicate, object, event date),
// with a missing event date occupying a single undated slot.
//
// Query results embed full snapshots of both endpoints; write paths only
// populate the ids.
type Relationship struct {
	ID         int64          `json:"id"`
	SubjectID  int64          `json:"subject_id"`
	Subject    *Entity        `json:"subject,omitempty"`
	Predicate  string         `json:"predicate"`
	ObjectID   int64          `json:"object_id"`
	Object     *Entity        `json:"object,omitempty"`
	EventDate  *time.Time     `json:"event_date,omitempty"`
	Confidence float64        `json:"confidence"`
	Context    string         `json:"context,omitempty"`
	SourceURL  string         `json:"source_url,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Alias records a name variant of an entity, written when a duplicate is
// merged (the losing name survives as an alias) or when a canonical
// mapping is seeded externally.
type Alias struct {
	ID              int64  `json:"id"`
	EntityID        int64  `json:"entity_id"`
	Alias           string `json:"alias"`
	NormalizedAlias string `json:"normalized_alias"`
}

// Enrichment is an externally sourced attribute blob attached to an
// entity, one row per (entity, source) with last-write-wins semantics.
type Enrichment struct {
	EntityID   int64          `json:"entity_id"`
	Source     string         `json:"source"`
	Data       map[string]any `json:"data"`
	EnrichedAt time.Time      `json:"enriched_at"`
}

// Tag is a free-form label on an entity. Tags are lowercased and trimmed
// on write and form a simple membership set.
type Tag struct {
	EntityID int64  `json:"entity_id"`
	Tag      string `json:"tag"`
}

// ExtractionResult is the ingestion contract: the batch an upstream
// extractor hands over per processed article, accepted on the ingest
// queue and POST /api/ingest.
//
// Amounts carries free-form money/count strings keyed by signal kind
// (funding, acquisition, valuation, layoff_count); parsing them is
// best-effort and a failed parse leaves the field absent.
type ExtractionResult struct {
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
	EventDate     string                  `json:"event_date,omitempty"`
	Amounts       map[string]string       `json:"amounts,omitempty"`
	SourceURL     string                  `json:"source_url"`
}

// ExtractedEntity is a candidate entity inside an ExtractionResult,
// identified by name rather than id.
type ExtractedEntity struct {
	Name       string         `json:"name"`
	Type       string         `json:"entity_type"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
}

// ExtractedRelationship is a candidate edge inside an ExtractionResult.
// Endpoints are names; the store creates the entities on insert. The
// event date is a free-form string parsed leniently downstream.
type ExtractedRelationship struct {
	Subject     string  `json:"subject"`
	SubjectType string  `json:"subject_type"`
	Predicate   string  `json:"predicate"`
	Object      string  `json:"object"`
	ObjectType  string  `json:"object_type"`
	EventDate   string  `json:"event_date,omitempty"`
	Confidence  float64 `json:"confidence"`
	Context     string  `json:"context,omitempty"`
}

// Stats summarizes the graph for the status surfaces.
type Stats struct {
	TotalEntities       int            `json:"total_entities"`
	TotalRelationships  int            `json:"total_relationships"`
	EntitiesByType      map[string]int `json:"entities_by_type"`
	RelationshipsByType map[string]int `json:"relationships_by_type"`
}

// MaintenanceRun records one execution of a maintenance job, kept for
// the runs endpoint and the CLI.
type MaintenanceRun struct {
	ID         string         `json:"id"`
	Job        string         `json:"job"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Error      string         `json:"error,omitempty"`
}
