package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalnest/magpie/internal/db"
	"github.com/signalnest/magpie/internal/queue"
	mid "github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/internal/util"
	"github.com/signalnest/magpie/pkg/graph"
	"github.com/signalnest/magpie/pkg/logger"
	pgxstore "github.com/signalnest/magpie/pkg/store/pgx"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	// JWT auth is optional; with no JWKS URL and no API key the API
	// runs open.
	var key *keyfunc.Keyfunc
	if jwksUrl := util.GetEnv("AUTH_JWKS_URL"); jwksUrl != "" {
		k, err := keyfunc.NewDefault([]string{jwksUrl})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		key = &k
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(databaseURL); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	st := pgxstore.NewGraphDBStore(conn)
	svc := graph.New(st)

	// The queue only carries maintenance triggers on the API side, so a
	// missing broker URL just disables that endpoint.
	var ch *amqp091.Channel
	if util.GetEnv("RABBITMQ_URL") != "" {
		que := queue.Init()
		defer que.Close()
		channel, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(channel); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		ch = channel
	} else {
		logger.Info("RabbitMQ not configured, maintenance endpoint disabled")
	}

	app := &mid.App{
		Store:  st,
		Graph:  svc,
		Queue:  ch,
		Key:    key,
		APIKey: util.GetEnv("API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
