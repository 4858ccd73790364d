package queue

import (
	"context"
	"fmt"

	"github.com/signalnest/magpie/internal/maintenance"
)

// MaintenanceMsg is the maintenance queue payload: the name of the job
// to run on demand.
type MaintenanceMsg struct {
	Job string `json:"job"`
}

// ProcessMaintenanceMessage runs one maintenance job requested via the
// queue. An unknown job name is a permanent failure; retrying it will
// not help, but the dead-letter queue keeps it visible.
func ProcessMaintenanceMessage(ctx context.Context, runner *maintenance.Runner, msg string) error {
	var data MaintenanceMsg
	if err := unmarshalFlexible(msg, &data); err != nil {
		return fmt.Errorf("failed to decode maintenance message: %w", err)
	}
	if data.Job == "" {
		return fmt.Errorf("maintenance message missing job")
	}
	return runner.Run(ctx, data.Job)
}
