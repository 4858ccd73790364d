package routes

import (
	"encoding/json"
	"net/http"

	"github.com/signalnest/magpie/internal/maintenance"
	"github.com/signalnest/magpie/internal/queue"
	"github.com/signalnest/magpie/internal/server/middleware"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// TriggerMaintenanceHandler publishes a maintenance job to the worker
// queue and returns 202. The worker picks it up, takes the lease, and
// records the run.
func TriggerMaintenanceHandler(c echo.Context) error {
	type triggerMaintenanceParams struct {
		Job string `param:"job" validate:"required"`
	}

	type triggerMaintenanceResponse struct {
		Message string `json:"message"`
	}

	params := new(triggerMaintenanceParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, triggerMaintenanceResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, triggerMaintenanceResponse{
			Message: "Invalid request params",
		})
	}

	if !maintenance.Known(params.Job) {
		return c.JSON(http.StatusBadRequest, triggerMaintenanceResponse{
			Message: "Unknown maintenance job",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if ch == nil {
		return c.JSON(http.StatusServiceUnavailable, triggerMaintenanceResponse{
			Message: "Maintenance queue is not configured",
		})
	}

	body, err := json.Marshal(queue.MaintenanceMsg{Job: params.Job})
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if err := queue.Publish(ch, queue.MaintenanceQueue, body); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, triggerMaintenanceResponse{
		Message: "Maintenance job queued",
	})
}
