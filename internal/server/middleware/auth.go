package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware checks the bearer token against the static API key or
// the JWKS keys, whichever is configured. With neither configured the
// API is open; that is the local development mode.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		app := c.(*AppContext).App
		if app.APIKey == "" && app.Key == nil {
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if app.APIKey != "" && token == app.APIKey {
			return next(c)
		}

		if app.Key != nil {
			k := *app.Key
			parsed, err := jwt.Parse(token, k.Keyfunc)
			if err == nil && parsed.Valid {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
}
