package routes

import (
	"errors"
	"net/http"

	"github.com/araddon/dateparse"
	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/sources"
	"github.com/signalnest/magpie/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetRelationshipsHandler queries relationships by subject, predicate,
// object, and date floor. All filters are optional.
func GetRelationshipsHandler(c echo.Context) error {
	type getRelationshipsParams struct {
		Subject   string `query:"subject"`
		Predicate string `query:"predicate"`
		Object    string `query:"object"`
		Since     string `query:"since"`
		Limit     int    `query:"limit"`
	}

	params := new(getRelationshipsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if params.Limit <= 0 {
		params.Limit = 100
	}

	filter := store.RelationshipFilter{
		Subject:   params.Subject,
		Predicate: params.Predicate,
		Object:    params.Object,
		Limit:     params.Limit,
	}
	if params.Since != "" {
		since, err := dateparse.ParseAny(params.Since)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid since date"})
		}
		filter.Since = &since
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	relationships, err := st.QueryRelationships(ctx, filter)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, relationships)
}

// GetRelationshipConfidenceHandler returns the stored confidence
// adjusted for the citing source's tier.
func GetRelationshipConfidenceHandler(c echo.Context) error {
	type getRelationshipConfidenceParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	type getRelationshipConfidenceResponse struct {
		RelationshipID int64   `json:"relationship_id"`
		Confidence     float64 `json:"confidence"`
	}

	params := new(getRelationshipConfidenceParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	if _, err := st.GetRelationshipByID(ctx, params.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Relationship not found"})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}

	confidence, err := sources.NewValidator(st).RelationshipConfidence(ctx, params.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, getRelationshipConfidenceResponse{
		RelationshipID: params.ID,
		Confidence:     confidence,
	})
}
