// Package maintenance runs the recurring jobs that keep the graph
// healthy: entity resolution, source validation with Form D
// cross-referencing, snapshot archival, and a health check. Runs are
// serialized across worker replicas by a Postgres lease and recorded in
// kg_maintenance_runs.
package maintenance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/signalnest/magpie/internal/storage"
	"github.com/signalnest/magpie/internal/util"
	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/crossref"
	"github.com/signalnest/magpie/pkg/export"
	"github.com/signalnest/magpie/pkg/leaselock"
	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/resolver"
	"github.com/signalnest/magpie/pkg/sources"
	"github.com/signalnest/magpie/pkg/store"
)

// Job names, also accepted on the maintenance queue and POST
// /api/maintenance/:job.
const (
	JobResolution = "resolution"
	JobValidation = "validation"
	JobSnapshot   = "snapshot"
	JobHealth     = "health"
)

// leaseName is shared by all jobs so at most one runs at a time.
const leaseName = "kg_maintenance"

// uploadRetries bounds snapshot upload attempts.
const uploadRetries = 3

type jobFunc func(ctx context.Context) (map[string]int, error)

// Runner executes maintenance jobs against a store. locks is nil when
// the store has no lease backing (the CLI running against SQLite);
// s3Client is nil when no snapshot bucket is configured.
type Runner struct {
	store    store.GraphStore
	locks    *leaselock.Client
	s3Client *awss3.Client
}

func New(st store.GraphStore, locks *leaselock.Client, s3Client *awss3.Client) *Runner {
	return &Runner{store: st, locks: locks, s3Client: s3Client}
}

// Jobs lists the known job names in scheduling order.
func Jobs() []string {
	return []string{JobResolution, JobValidation, JobSnapshot, JobHealth}
}

// Known reports whether job names a maintenance job.
func Known(job string) bool {
	switch job {
	case JobResolution, JobValidation, JobSnapshot, JobHealth:
		return true
	}
	return false
}

// Run executes one job under the maintenance lease, recording a run
// row either way. A busy lease skips the run without error; another
// replica has it.
func (r *Runner) Run(ctx context.Context, job string) error {
	fn, err := r.jobFunc(job)
	if err != nil {
		return err
	}

	if r.locks == nil {
		return r.runRecorded(ctx, job, fn)
	}

	opts := leaselock.Options{
		TTL:          5 * time.Minute,
		HolderPrefix: job + "-",
	}
	err = r.locks.WithLease(ctx, leaseName, opts, func(ctx context.Context) error {
		return r.runRecorded(ctx, job, fn)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Maintenance] Lease busy, skipping run", "job", job)
		return nil
	}
	return err
}

func (r *Runner) jobFunc(job string) (jobFunc, error) {
	switch job {
	case JobResolution:
		return r.runResolution, nil
	case JobValidation:
		return r.runValidation, nil
	case JobSnapshot:
		return r.runSnapshot, nil
	case JobHealth:
		return r.runHealth, nil
	}
	return nil, fmt.Errorf("unknown maintenance job %q", job)
}

func (r *Runner) runRecorded(ctx context.Context, job string, fn jobFunc) error {
	runID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate run id: %w", err)
	}
	run := &common.MaintenanceRun{
		ID:        runID,
		Job:       job,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.RecordMaintenanceRun(ctx, run); err != nil {
		return err
	}
	logger.Info("[Maintenance] Job started", "job", job, "run_id", runID)

	counts, jobErr := fn(ctx)
	runErr := ""
	if jobErr != nil {
		runErr = jobErr.Error()
	}
	if err := r.store.FinishMaintenanceRun(ctx, runID, counts, runErr); err != nil {
		logger.Error("[Maintenance] Failed to finish run row", "job", job, "run_id", runID, "err", err)
	}
	if jobErr != nil {
		logger.Error("[Maintenance] Job failed", "job", job, "run_id", runID, "err", jobErr)
		return jobErr
	}
	logger.Info("[Maintenance] Job finished", "job", job, "run_id", runID, "counts", counts)
	return nil
}

// runResolution merges duplicate entities, removes junk names, and
// retypes unknowns.
func (r *Runner) runResolution(ctx context.Context) (map[string]int, error) {
	threshold := util.GetEnvFloat("SIMILARITY_THRESHOLD", 0.85)
	return resolver.New(r.store, threshold).RunAll(ctx)
}

// runValidation produces the source quality report and reconciles news
// funding rounds against Form D filings, writing boosted confidences
// and a cross_reference enrichment back to verified rows.
func (r *Runner) runValidation(ctx context.Context) (map[string]int, error) {
	report, err := sources.NewValidator(r.store).Report(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("[Maintenance] Validation report",
		"entities", report.TotalEntities,
		"enrichment_coverage", report.EnrichmentCoverage,
		"multi_source", report.MultiSourceEntities,
		"quality_score", report.DataQualityScore,
	)
	counts := map[string]int{
		"entities":     report.TotalEntities,
		"enriched":     report.EnrichedEntities,
		"multi_source": report.MultiSourceEntities,
	}

	verified, err := r.crossReference(ctx)
	counts["verified"] = verified
	if err != nil {
		return counts, err
	}
	return counts, nil
}

func (r *Runner) crossReference(ctx context.Context) (int, error) {
	matcher := crossref.New()
	matcher.DateWindowDays = util.GetEnvInt("CROSSREF_DATE_WINDOW_DAYS", matcher.DateWindowDays)
	matcher.AmountTolerance = util.GetEnvFloat("CROSSREF_AMOUNT_TOLERANCE", matcher.AmountTolerance)

	var news, filings []*crossref.FundingEvent
	for _, predicate := range []string{common.PredicateFundedBy, common.PredicateRaisedFunding} {
		rels, err := r.store.QueryRelationships(ctx, store.RelationshipFilter{Predicate: predicate})
		if err != nil {
			return 0, err
		}
		for _, rel := range rels {
			// Undated rows fall back to when the edge entered the graph.
			if isFilingSource(rel.SourceURL) {
				if ev := crossref.EventFromFiling(rel, rel.CreatedAt); ev != nil {
					filings = append(filings, ev)
				}
			} else if ev := crossref.EventFromRelationship(rel, rel.CreatedAt); ev != nil {
				news = append(news, ev)
			}
		}
	}
	if len(news) == 0 || len(filings) == 0 {
		return 0, nil
	}

	matches := matcher.MatchEvents(news, filings)
	boosts := matcher.BoostConfidence(matches)

	verified := 0
	for _, m := range matches {
		boost, ok := boosts[matcher.Normalize(m.News.CompanyName)]
		if !ok {
			continue
		}
		if err := r.store.SetRelationshipConfidence(ctx, m.News.RelationshipID, boost.BoostedConfidence); err != nil {
			return verified, err
		}
		data := map[string]any{
			"original_confidence": boost.OriginalConfidence,
			"boosted_confidence":  boost.BoostedConfidence,
			"form_d_date":         boost.FormDDate,
			"verified":            boost.Verified,
		}
		if boost.FormDAmount != nil {
			data["form_d_amount"] = *boost.FormDAmount
		}
		if boost.NewsAmount != nil {
			data["news_amount"] = *boost.NewsAmount
		}
		if err := r.store.UpsertEnrichment(ctx, m.News.CompanyID, "cross_reference", data); err != nil {
			return verified, err
		}
		verified++
	}
	logger.Info("[Maintenance] Cross-reference complete",
		"news", len(news), "filings", len(filings), "verified", verified)
	return verified, nil
}

func isFilingSource(rawURL string) bool {
	domain := sources.Domain(rawURL)
	return domain == "sec.gov" || strings.HasSuffix(domain, ".sec.gov")
}

// runSnapshot writes the JSONL dump and ships it to S3 when a bucket is
// configured.
func (r *Runner) runSnapshot(ctx context.Context) (map[string]int, error) {
	var buf bytes.Buffer
	if err := export.WriteSnapshot(ctx, &buf, r.store); err != nil {
		return nil, err
	}
	counts := map[string]int{"bytes": buf.Len()}

	if r.s3Client == nil {
		logger.Warn("[Maintenance] No snapshot bucket configured, skipping upload")
		return counts, nil
	}

	id, err := gonanoid.New(8)
	if err != nil {
		return counts, fmt.Errorf("failed to generate snapshot id: %w", err)
	}
	key := fmt.Sprintf("snapshots/%s-%s.jsonl", time.Now().UTC().Format("20060102T150405Z"), id)
	var location string
	err = util.RetryErrWithContext(ctx, uploadRetries, func(ctx context.Context) error {
		var uploadErr error
		location, uploadErr = storage.UploadSnapshot(ctx, r.s3Client, key, bytes.NewReader(buf.Bytes()))
		return uploadErr
	})
	if err != nil {
		return counts, err
	}
	logger.Info("[Maintenance] Snapshot uploaded", "location", location, "bytes", buf.Len())
	return counts, nil
}

func (r *Runner) runHealth(ctx context.Context) (map[string]int, error) {
	if err := r.store.Ping(ctx); err != nil {
		return nil, err
	}
	stats, err := r.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("[Maintenance] Health check",
		"entities", stats.TotalEntities, "relationships", stats.TotalRelationships)
	return map[string]int{
		"entities":      stats.TotalEntities,
		"relationships": stats.TotalRelationships,
	}, nil
}
