package routes

import (
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

func GetStatsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	stats, err := st.GetStats(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, stats)
}
