package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/signalnest/magpie/pkg/graph"
	"github.com/signalnest/magpie/pkg/store"
)

// App holds what the handlers need. Key is nil when JWT auth is not
// configured; Queue is nil when the server runs without RabbitMQ.
type App struct {
	Store  store.GraphStore
	Graph  *graph.Service
	Queue  *amqp091.Channel
	Key    *keyfunc.Keyfunc
	APIKey string
}

// AppContext wraps every request with the shared App.
type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
