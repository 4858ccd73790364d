package resolver

import (
	"context"
	"fmt"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// DefaultThreshold is the minimum name similarity for two entities to be
// considered duplicates.
const DefaultThreshold = 0.85

// invalidNames are extraction artifacts, not entities. Matched against
// the raw stored name, case-insensitively.
var invalidNames = []string{
	"investor", "company", "startup", "firm", "corporation",
	"employees", "staff", "team", "people", "person",
	"the company", "the startup", "the firm",
}

// personPredicates mark an entity as a person when it is their subject;
// companyPredicates mark a company. Person rules win.
var (
	personPredicates = map[string]bool{
		common.PredicateCEOOf:        true,
		common.PredicateCTOOf:        true,
		common.PredicateCFOOf:        true,
		common.PredicateFounded:      true,
		common.PredicateDepartedFrom: true,
		common.PredicateHiredBy:      true,
	}
	companyPredicates = map[string]bool{
		common.PredicateFundedBy: true,
		common.PredicateAcquired: true,
	}
)

// Resolver deduplicates and repairs the entity table: it removes junk
// names, infers types for unknown entities from the edges they sit on,
// and folds near-duplicate spellings into one canonical entity.
type Resolver struct {
	store     store.GraphStore
	threshold float64
}

// New builds a Resolver over the given store. A threshold <= 0 selects
// DefaultThreshold.
func New(s store.GraphStore, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Resolver{store: s, threshold: threshold}
}

// Candidate is a proposed merge: keep the higher-mention side, absorb the
// other.
type Candidate struct {
	KeepID     int64
	MergeID    int64
	KeepName   string
	MergeName  string
	Similarity float64
}

// FindDuplicates scans every entity pair and proposes merges. Pairs with
// incompatible types are skipped; two names mapping to the same known
// alias canonical match outright, everything else goes through the
// similarity ratio against the threshold.
func (r *Resolver) FindDuplicates(ctx context.Context) ([]Candidate, error) {
	entities, err := r.store.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return r.scanPairs(entities, newRunCache()), nil
}

func (r *Resolver) scanPairs(entities []common.Entity, cache *runCache) []Candidate {
	var candidates []Candidate
	for i, keep := range entities {
		for _, merge := range entities[i+1:] {
			if keep.Type != merge.Type &&
				keep.Type != common.EntityUnknown && merge.Type != common.EntityUnknown {
				continue
			}

			sim, ok := r.pairSimilarity(keep.Name, merge.Name, cache)
			if !ok {
				continue
			}

			// Entities arrive ordered by mention count, so the earlier
			// side of the pair is the one to keep.
			candidates = append(candidates, Candidate{
				KeepID:     keep.ID,
				MergeID:    merge.ID,
				KeepName:   keep.Name,
				MergeName:  merge.Name,
				Similarity: sim,
			})
			logger.Debug("[Resolver] Duplicate found",
				"keep", keep.Name, "merge", merge.Name, "similarity", sim)
		}
	}
	return candidates
}

func (r *Resolver) pairSimilarity(name1, name2 string, cache *runCache) (float64, bool) {
	if c1 := cache.canonicalFor(name1); c1 != "" && c1 == cache.canonicalFor(name2) {
		return 1.0, true
	}
	sim := Ratio(cache.normalize(name1), cache.normalize(name2))
	return sim, sim >= r.threshold
}

// Merge folds the merge entity into the keep entity. The store does it in
// one transaction; a failure leaves both untouched.
func (r *Resolver) Merge(ctx context.Context, keepID, mergeID int64) error {
	return r.store.MergeEntities(ctx, keepID, mergeID)
}

// RemoveInvalid deletes entities whose stored name is a known extraction
// artifact, together with every edge referencing them. Individual delete
// failures are logged and skipped.
func (r *Resolver) RemoveInvalid(ctx context.Context) (int, error) {
	removed := 0
	for _, name := range invalidNames {
		entities, err := r.store.GetEntitiesByName(ctx, name)
		if err != nil {
			return removed, fmt.Errorf("failed to look up %q: %w", name, err)
		}
		for _, e := range entities {
			if err := r.store.DeleteEntity(ctx, e.ID); err != nil {
				logger.Error("[Resolver] Failed to remove invalid entity",
					"name", e.Name, "id", e.ID, "err", err)
				continue
			}
			logger.Debug("[Resolver] Invalid entity removed", "name", e.Name, "id", e.ID)
			removed++
		}
	}
	return removed, nil
}

// RetypeUnknowns infers a type for unknown entities from the predicates
// they appear under and writes it back. An entity whose edges say nothing
// stays unknown.
func (r *Resolver) RetypeUnknowns(ctx context.Context) (int, error) {
	unknowns, err := r.store.ListEntitiesByType(ctx, common.EntityUnknown)
	if err != nil {
		return 0, fmt.Errorf("failed to list unknown entities: %w", err)
	}

	fixed := 0
	for _, e := range unknowns {
		asSubject, asObject, err := r.store.GetEntityPredicates(ctx, e.ID)
		if err != nil {
			return fixed, fmt.Errorf("failed to load predicates for %q: %w", e.Name, err)
		}
		newType := inferType(asSubject, asObject)
		if newType == "" {
			continue
		}
		if err := r.store.RetypeEntity(ctx, e.ID, newType); err != nil {
			logger.Error("[Resolver] Failed to retype entity",
				"name", e.Name, "type", newType, "err", err)
			continue
		}
		logger.Debug("[Resolver] Entity type fixed", "name", e.Name, "type", newType)
		fixed++
	}
	return fixed, nil
}

func inferType(asSubject, asObject []string) string {
	for _, p := range asSubject {
		if personPredicates[p] {
			return common.EntityPerson
		}
	}
	for _, p := range asSubject {
		if companyPredicates[p] {
			return common.EntityCompany
		}
	}
	for _, p := range asObject {
		if p == common.PredicateHiredBy {
			return common.EntityCompany
		}
	}
	return ""
}

// RunAll performs a full resolution pass: junk removal, then type
// inference, then the duplicate scan and merges. One failed merge never
// aborts the rest; its pair is skipped and counted as found but not
// merged.
func (r *Resolver) RunAll(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{
		"invalid_removed":   0,
		"types_fixed":       0,
		"duplicates_found":  0,
		"duplicates_merged": 0,
	}

	removed, err := r.RemoveInvalid(ctx)
	counts["invalid_removed"] = removed
	if err != nil {
		return counts, err
	}

	fixed, err := r.RetypeUnknowns(ctx)
	counts["types_fixed"] = fixed
	if err != nil {
		return counts, err
	}

	duplicates, err := r.FindDuplicates(ctx)
	if err != nil {
		return counts, err
	}
	counts["duplicates_found"] = len(duplicates)

	for _, c := range duplicates {
		if err := r.Merge(ctx, c.KeepID, c.MergeID); err != nil {
			// Earlier merges in this pass can have absorbed one side
			// already; that is expected, everything else is logged.
			logger.Error("[Resolver] Merge failed",
				"keep", c.KeepName, "merge", c.MergeName, "err", err)
			continue
		}
		counts["duplicates_merged"]++
	}

	logger.Info("[Resolver] Entity resolution complete",
		"invalid_removed", counts["invalid_removed"],
		"types_fixed", counts["types_fixed"],
		"duplicates_found", counts["duplicates_found"],
		"duplicates_merged", counts["duplicates_merged"])
	return counts, nil
}
