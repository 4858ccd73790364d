package routes

import (
	"net/http"

	"github.com/signalnest/magpie/internal/server/middleware"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// RemoveTagHandler detaches a tag from an entity. Removing a tag the
// entity does not carry is a no-op.
func RemoveTagHandler(c echo.Context) error {
	type removeTagParams struct {
		ID  int64  `param:"id" validate:"required,numeric"`
		Tag string `param:"tag" validate:"required"`
	}

	type removeTagResponse struct {
		Message string `json:"message"`
	}

	params := new(removeTagParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, removeTagResponse{
			Message: "Invalid request params",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, removeTagResponse{
			Message: "Invalid request params",
		})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	if err := st.RemoveTag(ctx, params.ID, params.Tag); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, removeTagResponse{
		Message: "Tag removed successfully",
	})
}
