package lite

import (
	"context"
	"testing"
	"time"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestUpsertRelationship(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertRelationship(ctx, store.RelationshipParams{
		Subject:     "Google",
		SubjectType: common.EntityCompany,
		Predicate:   common.PredicateAcquired,
		Object:      "Fitbit",
		ObjectType:  common.EntityCompany,
		EventDate:   datePtr(2021, time.January, 14),
		Confidence:  0.95,
		Context:     "Google completed its acquisition of Fitbit.",
		SourceURL:   "https://www.reuters.com/article/fitbit",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if id == nil {
		t.Fatal("expected an id for a fresh relationship")
	}

	rels, err := s.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("got %d relationships, want 1", len(rels))
	}
	r := rels[0]
	if r.Subject == nil || r.Subject.Name != "Google" {
		t.Errorf("subject snapshot = %+v, want Google", r.Subject)
	}
	if r.Object == nil || r.Object.Name != "Fitbit" {
		t.Errorf("object snapshot = %+v, want Fitbit", r.Object)
	}
	if r.EventDate == nil || r.EventDate.Format("2006-01-02") != "2021-01-14" {
		t.Errorf("event_date = %v, want 2021-01-14", r.EventDate)
	}
	if r.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", r.Confidence)
	}
}

func TestUpsertRelationshipDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	params := store.RelationshipParams{
		Subject:    "Microsoft",
		Predicate:  common.PredicateAcquired,
		Object:     "GitHub",
		EventDate:  datePtr(2018, time.October, 26),
		Confidence: 0.9,
	}
	first, err := s.UpsertRelationship(ctx, params)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if first == nil {
		t.Fatal("expected an id for the first insert")
	}

	second, err := s.UpsertRelationship(ctx, params)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second != nil {
		t.Fatalf("duplicate returned id %d, want nil", *second)
	}

	rels, err := s.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("got %d relationships, want 1", len(rels))
	}

	// The endpoints were still mentioned again.
	e, err := s.GetEntity(ctx, "Microsoft", "")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if e.MentionCount != 2 {
		t.Errorf("subject mention_count = %d, want 2", e.MentionCount)
	}
}

func TestUpsertRelationshipDatedSlots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := store.RelationshipParams{
		Subject:   "Figma",
		Predicate: common.PredicateFundedBy,
		Object:    "Index Ventures",
	}

	withDate := base
	withDate.EventDate = datePtr(2024, time.May, 1)
	if id, err := s.UpsertRelationship(ctx, withDate); err != nil || id == nil {
		t.Fatalf("dated insert = (%v, %v), want fresh id", id, err)
	}

	otherDate := base
	otherDate.EventDate = datePtr(2025, time.February, 10)
	if id, err := s.UpsertRelationship(ctx, otherDate); err != nil || id == nil {
		t.Fatalf("second dated insert = (%v, %v), want fresh id", id, err)
	}

	// The undated slot is its own slot, and there is only one of it.
	if id, err := s.UpsertRelationship(ctx, base); err != nil || id == nil {
		t.Fatalf("undated insert = (%v, %v), want fresh id", id, err)
	}
	if id, err := s.UpsertRelationship(ctx, base); err != nil || id != nil {
		t.Fatalf("second undated insert = (%v, %v), want nil id", id, err)
	}

	rels, err := s.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rels) != 3 {
		t.Fatalf("got %d relationships, want 3", len(rels))
	}
}

func TestQueryRelationshipsOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert := func(object string, date *time.Time) {
		t.Helper()
		if _, err := s.UpsertRelationship(ctx, store.RelationshipParams{
			Subject:   "Databricks",
			Predicate: common.PredicateAcquired,
			Object:    object,
			EventDate: date,
		}); err != nil {
			t.Fatalf("insert %s failed: %v", object, err)
		}
	}
	insert("Older Corp", datePtr(2023, time.March, 1))
	insert("Newer Corp", datePtr(2025, time.January, 15))
	insert("Undated Corp", nil)

	got, err := s.QueryRelationships(ctx, store.RelationshipFilter{Subject: "databricks"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	order := []string{"Newer Corp", "Older Corp", "Undated Corp"}
	for i, want := range order {
		if got[i].Object.Name != want {
			t.Errorf("row %d = %q, want %q", i, got[i].Object.Name, want)
		}
	}
}

// Undated rows always pass a since filter. A recency window hides rows that
// are known to be old, never rows whose event date is simply unknown.
func TestQueryRelationshipsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert := func(object string, date *time.Time) {
		t.Helper()
		if _, err := s.UpsertRelationship(ctx, store.RelationshipParams{
			Subject:   "Snowflake",
			Predicate: common.PredicateAcquired,
			Object:    object,
			EventDate: date,
		}); err != nil {
			t.Fatalf("insert %s failed: %v", object, err)
		}
	}
	insert("Stale Corp", datePtr(2022, time.June, 1))
	insert("Fresh Corp", datePtr(2025, time.July, 1))
	insert("Undated Corp", nil)

	got, err := s.QueryRelationships(ctx, store.RelationshipFilter{
		Subject: "snowflake",
		Since:   datePtr(2024, time.January, 1),
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want dated-fresh plus undated", len(got))
	}
	if got[0].Object.Name != "Fresh Corp" {
		t.Errorf("row 0 = %q, want Fresh Corp", got[0].Object.Name)
	}
	if got[1].Object.Name != "Undated Corp" {
		t.Errorf("row 1 = %q, want the undated row to pass the filter", got[1].Object.Name)
	}
}

func TestQueryRelationshipsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []store.RelationshipParams{
		{Subject: "Alice Chen", SubjectType: common.EntityPerson, Predicate: common.PredicateHiredBy, Object: "Anthropic"},
		{Subject: "Alice Chen", SubjectType: common.EntityPerson, Predicate: common.PredicateDepartedFrom, Object: "Google"},
		{Subject: "Bob Okafor", SubjectType: common.EntityPerson, Predicate: common.PredicateHiredBy, Object: "Anthropic"},
	}
	for _, p := range seed {
		if _, err := s.UpsertRelationship(ctx, p); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	got, err := s.QueryRelationships(ctx, store.RelationshipFilter{
		Predicate: common.PredicateHiredBy,
		Object:    "anthropic",
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}

	got, err = s.QueryRelationships(ctx, store.RelationshipFilter{Subject: "alice"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows for subject filter, want 2", len(got))
	}

	got, err = s.QueryRelationships(ctx, store.RelationshipFilter{Limit: 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want the limit of 1", len(got))
	}
}

func TestGetEntityRelationshipsAndPredicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertRelationship(ctx, store.RelationshipParams{
		Subject: "Carol Diaz", SubjectType: common.EntityPerson,
		Predicate: common.PredicateHiredBy, Object: "Figma",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := s.UpsertRelationship(ctx, store.RelationshipParams{
		Subject: "Figma", Predicate: common.PredicateFundedBy, Object: "Sequoia",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	figma, err := s.GetEntity(ctx, "Figma", "")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	rels, err := s.GetEntityRelationships(ctx, figma.ID)
	if err != nil {
		t.Fatalf("entity relationships failed: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("got %d relationships, want both sides", len(rels))
	}

	asSubject, asObject, err := s.GetEntityPredicates(ctx, figma.ID)
	if err != nil {
		t.Fatalf("predicates failed: %v", err)
	}
	if len(asSubject) != 1 || asSubject[0] != common.PredicateFundedBy {
		t.Errorf("asSubject = %v, want [FUNDED_BY]", asSubject)
	}
	if len(asObject) != 1 || asObject[0] != common.PredicateHiredBy {
		t.Errorf("asObject = %v, want [HIRED_BY]", asObject)
	}
}

func TestSetRelationshipConfidence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertRelationship(ctx, store.RelationshipParams{
		Subject: "Rivian", Predicate: common.PredicateFundedBy, Object: "T. Rowe Price",
		Confidence: 0.8,
	})
	if err != nil || id == nil {
		t.Fatalf("upsert = (%v, %v), want id", id, err)
	}

	if err := s.SetRelationshipConfidence(ctx, *id, 0.95); err != nil {
		t.Fatalf("set confidence failed: %v", err)
	}
	r, err := s.GetRelationshipByID(ctx, *id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if r.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", r.Confidence)
	}
}

func TestInsertEdgeMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	subjID, err := s.EnsureEntity(ctx, "Broadcom", common.EntityCompany)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	objID, err := s.EnsureEntity(ctx, "VMware", common.EntityCompany)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	id, err := s.InsertEdge(ctx, store.EdgeParams{
		SubjectID:  subjID,
		Predicate:  common.PredicateAcquired,
		ObjectID:   objID,
		Confidence: 0.9,
		Metadata:   map[string]any{"amount": 6.9e10},
	})
	if err != nil || id == nil {
		t.Fatalf("insert = (%v, %v), want id", id, err)
	}

	r, err := s.GetRelationshipByID(ctx, *id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if r.Metadata["amount"] != 6.9e10 {
		t.Errorf("metadata = %v, want amount to round-trip", r.Metadata)
	}
}
