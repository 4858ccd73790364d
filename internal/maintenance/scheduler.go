package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/signalnest/magpie/internal/util"
	"github.com/signalnest/magpie/pkg/logger"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = time.Hour

// Schedules holds the cron expression per job, evaluated in UTC.
type Schedules struct {
	Resolution string
	Validation string
	Snapshot   string
	Health     string
}

// SchedulesFromEnv reads the schedule overrides. Defaults: resolution
// nightly at 02:00, validation at 03:00, snapshot weekly on Sunday at
// 04:00, health hourly.
func SchedulesFromEnv() Schedules {
	return Schedules{
		Resolution: util.GetEnvString("RESOLUTION_SCHEDULE", "0 2 * * *"),
		Validation: util.GetEnvString("VALIDATION_SCHEDULE", "0 3 * * *"),
		Snapshot:   util.GetEnvString("SNAPSHOT_SCHEDULE", "0 4 * * 0"),
		Health:     util.GetEnvString("HEALTH_SCHEDULE", "0 * * * *"),
	}
}

// Start registers every job with a UTC cron and starts it. Stop the
// returned cron to drain running jobs on shutdown.
func Start(runner *Runner, schedules Schedules) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	entries := []struct {
		job  string
		spec string
	}{
		{JobResolution, schedules.Resolution},
		{JobValidation, schedules.Validation},
		{JobSnapshot, schedules.Snapshot},
		{JobHealth, schedules.Health},
	}
	for _, entry := range entries {
		job := entry.job
		if _, err := c.AddFunc(entry.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := runner.Run(ctx, job); err != nil {
				logger.Error("[Maintenance] Scheduled run failed", "job", job, "err", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule %s job: %w", job, err)
		}
		logger.Info("[Maintenance] Job scheduled", "job", job, "schedule", entry.spec)
	}

	c.Start()
	return c, nil
}
