package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/pointscan-io/pointscan/cache"
	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/orm"
)

const statusCacheKey = "status"

// Handler serves the indexed points data.
type Handler struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *orm.Database

	statusCache *cache.TTLCache[string, StatusResponse]
}

func Register(router fiber.Router, db *orm.Database, cfg *config.Config, logger *slog.Logger) {
	h := &Handler{
		cfg:         cfg,
		logger:      logger.With("module", "api"),
		db:          db,
		statusCache: cache.NewTTL[string, StatusResponse](1, cfg.GetCacheTTL()),
	}

	router.Get("/points/:account", h.GetPoints)
	router.Get("/snapshots/:account", h.GetSnapshots)
	router.Get("/status", h.GetStatus)
}
