package routes

import (
	"errors"
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// UpsertEnrichmentHandler writes the enrichment blob for one
// (entity, source) pair, replacing any previous version.
func UpsertEnrichmentHandler(c echo.Context) error {
	type upsertEnrichmentBody struct {
		ID     int64          `param:"id" validate:"required,numeric"`
		Source string         `param:"source" validate:"required"`
		Data   map[string]any `json:"data" validate:"required"`
	}

	type upsertEnrichmentResponse struct {
		Message string `json:"message"`
	}

	data := new(upsertEnrichmentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, upsertEnrichmentResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, upsertEnrichmentResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	if _, err := st.GetEntityByID(ctx, data.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, upsertEnrichmentResponse{
				Message: "Entity not found",
			})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}

	if err := st.UpsertEnrichment(ctx, data.ID, data.Source, data.Data); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, upsertEnrichmentResponse{
		Message: "Enrichment stored successfully",
	})
}
