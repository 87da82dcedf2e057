package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/venue-context-aggregation/internal/api/http"
	"github.com/i474232898/venue-context-aggregation/internal/app"
	"github.com/i474232898/venue-context-aggregation/internal/config"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/scheduler"
)

const serviceName = "venue-context-aggregation"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log)

	a := app.New(cfg, nil)

	// Prefetch keeps the caches warm for the watched locations.
	sched := scheduler.New(cfg.Watch, cfg.PrefetchInterval, a.Pipeline)
	if err := sched.Start(); err != nil {
		logging.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	server := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	server.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	server.Use(func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		c.SetUserContext(logging.ContextWithRequestID(c.UserContext(), id))
		return c.Next()
	})
	server.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	server.Use(recover.New())

	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(server, a.Pipeline)

	go func() {
		logging.Info().Str("port", cfg.Port).Msg("listening")
		if err := server.Listen(":" + cfg.Port); err != nil {
			logging.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("error during shutdown")
	}
}
