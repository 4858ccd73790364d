package lite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/store"
)

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []store.RelationshipParams{
		{Subject: "Adobe", Predicate: common.PredicateAcquired, Object: "Figma"},
		{Subject: "Figma", Predicate: common.PredicateFundedBy, Object: "Index Ventures", ObjectType: common.EntityInvestor},
		{Subject: "Dylan Field", SubjectType: common.EntityPerson, Predicate: common.PredicateFounded, Object: "Figma"},
	} {
		if _, err := s.UpsertRelationship(ctx, p); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.TotalEntities != 4 {
		t.Errorf("total entities = %d, want 4", stats.TotalEntities)
	}
	if stats.TotalRelationships != 3 {
		t.Errorf("total relationships = %d, want 3", stats.TotalRelationships)
	}
	if stats.EntitiesByType[common.EntityPerson] != 1 {
		t.Errorf("person count = %d, want 1", stats.EntitiesByType[common.EntityPerson])
	}
	if stats.EntitiesByType[common.EntityInvestor] != 1 {
		t.Errorf("investor count = %d, want 1", stats.EntitiesByType[common.EntityInvestor])
	}
	if stats.RelationshipsByType[common.PredicateAcquired] != 1 {
		t.Errorf("acquired count = %d, want 1", stats.RelationshipsByType[common.PredicateAcquired])
	}
}

func TestMaintenanceRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &common.MaintenanceRun{
		ID:        "run-entity-resolution-1",
		Job:       "entity_resolution",
		StartedAt: time.Now().UTC(),
	}
	if err := s.RecordMaintenanceRun(ctx, run); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	runs, err := s.ListMaintenanceRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].FinishedAt != nil {
		t.Errorf("finished_at = %v, want nil while running", runs[0].FinishedAt)
	}

	counts := map[string]int{"duplicates_found": 3, "duplicates_merged": 2}
	if err := s.FinishMaintenanceRun(ctx, run.ID, counts, ""); err != nil {
		t.Fatalf("finish failed: %v", err)
	}

	runs, err = s.ListMaintenanceRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if runs[0].FinishedAt == nil {
		t.Fatal("finished_at still nil after finish")
	}
	if runs[0].Counts["duplicates_merged"] != 2 {
		t.Errorf("counts = %v, want the recorded counts back", runs[0].Counts)
	}
	if runs[0].Error != "" {
		t.Errorf("error = %q, want empty", runs[0].Error)
	}

	if err := s.FinishMaintenanceRun(ctx, "no-such-run", nil, "boom"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("finish missing run = %v, want ErrNotFound", err)
	}
}

func TestMaintenanceRunsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 1, 2, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := &common.MaintenanceRun{
			ID:        id,
			Job:       "source_validation",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.RecordMaintenanceRun(ctx, run); err != nil {
			t.Fatalf("record %s failed: %v", id, err)
		}
	}

	runs, err := s.ListMaintenanceRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want the limit of 2", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("order = [%s %s], want newest first", runs[0].ID, runs[1].ID)
	}
}
