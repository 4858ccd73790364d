package routes

import (
	"errors"
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetEnrichmentHandler returns all enrichment records for an entity,
// one per source.
func GetEnrichmentHandler(c echo.Context) error {
	type getEnrichmentParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	params := new(getEnrichmentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	if _, err := st.GetEntityByID(ctx, params.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Entity not found"})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}

	enrichment, err := st.GetEnrichment(ctx, params.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, enrichment)
}
