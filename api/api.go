package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/pointscan-io/pointscan/api/handler"
	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/orm"
)

type Api struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *orm.Database
	app    *fiber.App
}

func New(cfg *config.Config, logger *slog.Logger, db *orm.Database) *Api {
	return &Api{
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
}

func (a *Api) Start() error {
	a.app = fiber.New(fiber.Config{
		AppName:               "Pointscan API",
		DisableStartupMessage: true,
	})

	a.app.Get("/health", health)

	v1 := a.app.Group("/v1")
	handler.Register(v1, a.db, a.cfg, a.logger)

	port := a.cfg.GetListenPort()
	a.logger.Info("starting API server", slog.String("addr", fmt.Sprintf("http://localhost:%s", port)))

	return a.app.Listen(":" + port)
}

func (a *Api) Shutdown(ctx context.Context) error {
	if a.app == nil {
		return nil
	}
	return a.app.ShutdownWithContext(ctx)
}

// health handles GET /health
func health(c *fiber.Ctx) error {
	return c.SendString("OK")
}
