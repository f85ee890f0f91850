package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nightlab/exchange/internal/config"
	"github.com/nightlab/exchange/internal/routes"
	"github.com/nightlab/exchange/internal/sweeper"
)

// Server wraps the Fiber application, the expiry sweeper and shared dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	sweeper *sweeper.Sweeper
	logger  *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: routes.ErrorHandler(logger),
	})

	services, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	s := &Server{app: app, cfg: cfg, logger: logger}
	if cfg.SweepSchedule != "" {
		s.sweeper, err = sweeper.New(cfg.SweepSchedule, services.Applications, logger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the sweeper and then the HTTP server.
func (s *Server) Listen() error {
	if s.sweeper != nil {
		s.sweeper.Start()
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and the sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.sweeper != nil {
		s.sweeper.Stop(ctx)
	}
	return err
}
