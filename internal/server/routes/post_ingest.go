package routes

import (
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/common"

	"github.com/labstack/echo/v4"
)

// IngestHandler applies one extraction result synchronously and
// returns the ingest counts. Bulk traffic should go through the ingest
// queue instead; this endpoint exists for backfills and testing.
func IngestHandler(c echo.Context) error {
	data := new(common.ExtractionResult)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if len(data.Entities) == 0 && len(data.Relationships) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Extraction result is empty"})
	}

	ctx := c.Request().Context()
	svc := c.(*middleware.AppContext).App.Graph

	counts, err := svc.AddExtractionResult(ctx, *data)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, counts)
}
