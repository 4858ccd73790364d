package routes

import (
	"errors"
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/sources"
	"github.com/signalnest/magpie/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetEntitiesHandler searches entities by name substring, optionally
// filtered by type.
func GetEntitiesHandler(c echo.Context) error {
	type getEntitiesParams struct {
		Query string `query:"q"`
		Type  string `query:"type"`
		Limit int    `query:"limit"`
	}

	params := new(getEntitiesParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	entities, err := st.SearchEntities(ctx, params.Query, params.Type, params.Limit)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, entities)
}

// GetEntityHandler returns one entity with its aliases, tags, and
// enrichment records.
func GetEntityHandler(c echo.Context) error {
	type getEntityParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	type getEntityResponse struct {
		Entity     *common.Entity      `json:"entity"`
		Aliases    []common.Alias      `json:"aliases"`
		Tags       []string            `json:"tags"`
		Enrichment []common.Enrichment `json:"enrichment"`
	}

	params := new(getEntityParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	entity, err := st.GetEntityByID(ctx, params.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Entity not found"})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}

	aliases, err := st.GetEntityAliases(ctx, params.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	tags, err := st.GetEntityTags(ctx, params.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	enrichment, err := st.GetEnrichment(ctx, params.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, getEntityResponse{
		Entity:     entity,
		Aliases:    aliases,
		Tags:       tags,
		Enrichment: enrichment,
	})
}

// GetEntityConfidenceHandler scores an entity by the quality of the
// sources citing it.
func GetEntityConfidenceHandler(c echo.Context) error {
	type getEntityConfidenceParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	params := new(getEntityConfidenceParams)
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

	confidence, err := sources.NewValidator(st).EntityConfidence(ctx, params.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, confidence)
}
