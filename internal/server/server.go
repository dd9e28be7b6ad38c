package server

import (
	"context"

	"legal-review-client/internal/bootstrap"
	"legal-review-client/internal/config"
	"legal-review-client/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             2 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Addr() string {
	return ":" + s.cfg.App.Port
}

func (s *Server) Run() error {
	s.container.Logger.Info("Server", "Bridge listening", map[string]interface{}{"addr": s.Addr()})
	return s.app.Listen(s.Addr())
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		snap := c.Session.Snapshot()
		return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{
			"session_id": snap.SessionID,
			"connection": snap.Connection,
			"clients":    c.WebSocketHub.ClientCount(),
		}))
	})

	api := app.Group("/api")
	c.ReviewController.RegisterRoutes(api, serverutils.JwtMiddleware(cfg.Bridge.JwtSecret))
}
