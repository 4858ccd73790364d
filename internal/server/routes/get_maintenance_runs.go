package routes

import (
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetMaintenanceRunsHandler lists recent maintenance runs, newest
// first.
func GetMaintenanceRunsHandler(c echo.Context) error {
	type getMaintenanceRunsParams struct {
		Limit int `query:"limit"`
	}

	params := new(getMaintenanceRunsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	runs, err := st.ListMaintenanceRuns(ctx, params.Limit)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, runs)
}
