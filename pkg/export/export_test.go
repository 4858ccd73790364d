package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
	"github.com/signalnest/magpie/pkg/store/lite"
)

func newTestStore(t *testing.T) *lite.GraphLiteStore {
	t.Helper()
	s, err := lite.NewGraphLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", value, err)
	}
	return parsed
}

// seedGraph fills src with a small funding graph and returns the Acme id.
func seedGraph(t *testing.T, src store.GraphStore) int64 {
	t.Helper()
	ctx := context.Background()

	acmeID, err := src.UpsertEntity(ctx, "Acme", common.EntityCompany, map[string]any{"hq": "Austin"})
	if err != nil {
		t.Fatalf("failed to seed entity: %v", err)
	}
	if _, err := src.EnsureEntity(ctx, "Sequoia Capital", common.EntityInvestor); err != nil {
		t.Fatalf("failed to seed entity: %v", err)
	}

	eventDate := date(t, "2025-03-14")
	if _, err := src.UpsertRelationship(ctx, store.RelationshipParams{
		Subject:     "Acme",
		SubjectType: common.EntityCompany,
		Predicate:   common.PredicateFundedBy,
		Object:      "Sequoia Capital",
		ObjectType:  common.EntityInvestor,
		EventDate:   &eventDate,
		Confidence:  0.8,
		Context:     "Acme raised a Series B led by Sequoia Capital.",
		SourceURL:   "https://techcrunch.com/acme-series-b",
		Metadata:    map[string]any{"amount": 50000000.0},
	}); err != nil {
		t.Fatalf("failed to seed relationship: %v", err)
	}

	if err := src.AddAlias(ctx, acmeID, "Acme Inc"); err != nil {
		t.Fatalf("failed to seed alias: %v", err)
	}
	if err := src.UpsertEnrichment(ctx, acmeID, "crunchbase", map[string]any{"employees": 120.0}); err != nil {
		t.Fatalf("failed to seed enrichment: %v", err)
	}
	if err := src.AddTag(ctx, acmeID, "portfolio"); err != nil {
		t.Fatalf("failed to seed tag: %v", err)
	}
	return acmeID
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	dst := newTestStore(t)
	seedGraph(t, src)

	report, err := Copy(ctx, src, dst)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}

	want := Report{
		EntitiesCopied:      2,
		RelationshipsCopied: 1,
		AliasesCopied:       1,
		EnrichmentCopied:    1,
		TagsCopied:          1,
	}
	if *report != want {
		t.Fatalf("report = %+v, want %+v", *report, want)
	}

	acme, err := dst.GetEntity(ctx, "Acme", common.EntityCompany)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if acme.Attributes["hq"] != "Austin" {
		t.Fatalf("attributes = %v, want hq=Austin", acme.Attributes)
	}
	// UpsertRelationship counted a second mention in src.
	if acme.MentionCount != 2 {
		t.Fatalf("mention count = %d, want 2", acme.MentionCount)
	}

	rels, err := dst.QueryRelationships(ctx, store.RelationshipFilter{Predicate: common.PredicateFundedBy})
	if err != nil {
		t.Fatalf("QueryRelationships: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("got %d relationships, want 1", len(rels))
	}
	rel := rels[0]
	if rel.Subject == nil || rel.Subject.Name != "Acme" {
		t.Fatalf("subject = %+v, want Acme", rel.Subject)
	}
	if rel.Object == nil || rel.Object.Name != "Sequoia Capital" {
		t.Fatalf("object = %+v, want Sequoia Capital", rel.Object)
	}
	if rel.EventDate == nil || !rel.EventDate.Equal(date(t, "2025-03-14")) {
		t.Fatalf("event date = %v, want 2025-03-14", rel.EventDate)
	}
	if rel.SourceURL != "https://techcrunch.com/acme-series-b" {
		t.Fatalf("source url = %q", rel.SourceURL)
	}
	if rel.Metadata["amount"] != 50000000.0 {
		t.Fatalf("metadata = %v, want amount", rel.Metadata)
	}

	aliases, err := dst.GetEntityAliases(ctx, rel.SubjectID)
	if err != nil {
		t.Fatalf("GetEntityAliases: %v", err)
	}
	if len(aliases) != 1 || aliases[0].Alias != "Acme Inc" {
		t.Fatalf("aliases = %+v, want Acme Inc", aliases)
	}

	enrichment, err := dst.GetEnrichment(ctx, rel.SubjectID)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if len(enrichment) != 1 || enrichment[0].Data["employees"] != 120.0 {
		t.Fatalf("enrichment = %+v, want employees=120", enrichment)
	}

	tags, err := dst.GetEntityTags(ctx, rel.SubjectID)
	if err != nil {
		t.Fatalf("GetEntityTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "portfolio" {
		t.Fatalf("tags = %v, want [portfolio]", tags)
	}
}

func TestCopyIntoPopulatedStore(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	dst := newTestStore(t)
	seedGraph(t, src)

	// dst already knows Acme under its own id and holds the same edge.
	if _, err := dst.EnsureEntity(ctx, "Ballard Partners", common.EntityInvestor); err != nil {
		t.Fatalf("failed to seed dst: %v", err)
	}
	eventDate := date(t, "2025-03-14")
	if _, err := dst.UpsertRelationship(ctx, store.RelationshipParams{
		Subject:     "Acme",
		SubjectType: common.EntityCompany,
		Predicate:   common.PredicateFundedBy,
		Object:      "Sequoia Capital",
		ObjectType:  common.EntityInvestor,
		EventDate:   &eventDate,
		Confidence:  0.5,
	}); err != nil {
		t.Fatalf("failed to seed dst: %v", err)
	}

	report, err := Copy(ctx, src, dst)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if report.EntitiesCopied != 0 || report.EntitiesSkipped != 2 {
		t.Fatalf("entities copied=%d skipped=%d, want 0/2", report.EntitiesCopied, report.EntitiesSkipped)
	}
	if report.RelationshipsCopied != 0 || report.RelationshipsSkipped != 1 {
		t.Fatalf("relationships copied=%d skipped=%d, want 0/1", report.RelationshipsCopied, report.RelationshipsSkipped)
	}

	// The satellite rows still land on the pre-existing dst entity.
	acme, err := dst.GetEntity(ctx, "Acme", common.EntityCompany)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	tags, err := dst.GetEntityTags(ctx, acme.ID)
	if err != nil {
		t.Fatalf("GetEntityTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "portfolio" {
		t.Fatalf("tags = %v, want [portfolio]", tags)
	}
}

// partialSource hides one entity from ListEntities so Copy sees an edge
// it cannot map.
type partialSource struct {
	store.GraphStore
	hideID int64
}

func (p partialSource) ListEntities(ctx context.Context) ([]common.Entity, error) {
	entities, err := p.GraphStore.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	kept := entities[:0]
	for _, e := range entities {
		if e.ID != p.hideID {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func TestCopyDropsUnmappableRelationships(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	dst := newTestStore(t)
	seedGraph(t, src)

	sequoia, err := src.GetEntity(ctx, "Sequoia Capital", common.EntityInvestor)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}

	report, err := Copy(ctx, partialSource{GraphStore: src, hideID: sequoia.ID}, dst)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if report.RelationshipsDropped != 1 {
		t.Fatalf("dropped = %d, want 1", report.RelationshipsDropped)
	}
	if report.RelationshipsCopied != 0 {
		t.Fatalf("copied = %d, want 0", report.RelationshipsCopied)
	}
	if report.EntitiesCopied != 1 {
		t.Fatalf("entities copied = %d, want 1", report.EntitiesCopied)
	}

	rels, err := dst.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("ListRelationships: %v", err)
	}
	if len(rels) != 0 {
		t.Fatalf("dst has %d relationships, want none", len(rels))
	}
}

func TestCopyPreservesTimestamps(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	dst := newTestStore(t)

	subjectID, err := src.EnsureEntity(ctx, "Initech", common.EntityCompany)
	if err != nil {
		t.Fatalf("EnsureEntity: %v", err)
	}
	objectID, err := src.EnsureEntity(ctx, "Globex", common.EntityCompany)
	if err != nil {
		t.Fatalf("EnsureEntity: %v", err)
	}
	createdAt := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
	if _, err := src.InsertEdge(ctx, store.EdgeParams{
		SubjectID: subjectID,
		Predicate: common.PredicateAcquired,
		ObjectID:  objectID,
		CreatedAt: createdAt,
	}); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	if _, err := Copy(ctx, src, dst); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	rels, err := dst.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("ListRelationships: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("got %d relationships, want 1", len(rels))
	}
	if !rels[0].CreatedAt.Equal(createdAt) {
		t.Fatalf("created at = %v, want %v", rels[0].CreatedAt, createdAt)
	}
}

func TestWriteSnapshot(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	seedGraph(t, src)

	var buf bytes.Buffer
	if err := WriteSnapshot(ctx, &buf, src); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	var records []SnapshotRecord
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec SnapshotRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("failed to decode line %q: %v", line, err)
		}
		records = append(records, rec)
	}

	// 2 entities, 1 relationship, 1 alias, 1 enrichment, 1 tag.
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}
	wantKinds := []string{KindEntity, KindEntity, KindRelationship, KindAlias, KindEnrichment, KindTag}
	for i, rec := range records {
		if rec.Kind != wantKinds[i] {
			t.Fatalf("record %d kind = %q, want %q", i, rec.Kind, wantKinds[i])
		}
	}

	rel := records[2].Relationship
	if rel == nil {
		t.Fatal("relationship record missing payload")
	}
	if rel.SubjectName != "Acme" || rel.ObjectName != "Sequoia Capital" {
		t.Fatalf("endpoint names = %q/%q", rel.SubjectName, rel.ObjectName)
	}
	if rel.Predicate != common.PredicateFundedBy {
		t.Fatalf("predicate = %q", rel.Predicate)
	}
	if records[3].Alias.Alias != "Acme Inc" {
		t.Fatalf("alias = %+v", records[3].Alias)
	}
	if records[4].Enrichment.Source != "crunchbase" {
		t.Fatalf("enrichment = %+v", records[4].Enrichment)
	}
	if records[5].Tag.Tag != "portfolio" {
		t.Fatalf("tag = %+v", records[5].Tag)
	}
}
