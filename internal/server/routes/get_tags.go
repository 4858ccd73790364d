package routes

import (
	"errors"
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetTagsHandler returns every tag with its entity count.
func GetTagsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	counts, err := st.TagCounts(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, counts)
}

func GetEntityTagsHandler(c echo.Context) error {
	type getEntityTagsParams struct {
		ID int64 `param:"id" validate:"required,numeric"`
	}

	params := new(getEntityTagsParams)
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

	tags, err := st.GetEntityTags(ctx, params.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, tags)
}

// GetEntitiesByTagHandler lists all entities carrying a tag.
func GetEntitiesByTagHandler(c echo.Context) error {
	type getEntitiesByTagParams struct {
		Tag string `param:"tag" validate:"required"`
	}

	params := new(getEntitiesByTagParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	entities, err := st.GetEntitiesByTag(ctx, params.Tag)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, entities)
}
