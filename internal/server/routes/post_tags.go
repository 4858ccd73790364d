package routes

import (
	"errors"
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// AddTagHandler attaches a tag to an entity. Tagging twice is a no-op.
func AddTagHandler(c echo.Context) error {
	type addTagBody struct {
		ID  int64  `param:"id" validate:"required,numeric"`
		Tag string `json:"tag" validate:"required"`
	}

	type addTagResponse struct {
		Message string `json:"message"`
	}

	data := new(addTagBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, addTagResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, addTagResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	if _, err := st.GetEntityByID(ctx, data.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, addTagResponse{
				Message: "Entity not found",
			})
		}
		return c.String(http.StatusInternalServerError, err.Error())
	}

	if err := st.AddTag(ctx, data.ID, data.Tag); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, addTagResponse{
		Message: "Tag added successfully",
	})
}
