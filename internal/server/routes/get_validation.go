package routes

import (
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/sources"

	"github.com/labstack/echo/v4"
)

// GetValidationReportHandler aggregates source quality across the
// whole graph.
func GetValidationReportHandler(c echo.Context) error {
	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	report, err := sources.NewValidator(st).Report(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, report)
}
