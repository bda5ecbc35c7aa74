package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/types"
)

// GetStatus handles GET /v1/status. Responses are cached briefly since the
// status rows are hit by every monitoring poll.
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	if cached, ok := h.statusCache.Get(statusCacheKey); ok {
		return c.JSON(cached)
	}

	status := StatusResponse{
		Version: config.Version,
		ChainId: h.cfg.GetChainId(),
	}

	var block types.CollectedBlock
	err := h.db.WithContext(c.Context()).
		Where("chain_id = ?", h.cfg.GetChainId()).
		Order("height DESC").
		First(&block).Error
	switch {
	case err == nil:
		status.LatestHeight = block.Height
		status.LatestTimestamp = block.Timestamp
	case !errors.Is(err, gorm.ErrRecordNotFound):
		h.logger.Error("failed to fetch latest block", slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch status")
	}

	var registry types.AccountRegistry
	err = h.db.WithContext(c.Context()).
		Where("id = ?", types.RegistryId).
		First(&registry).Error
	switch {
	case err == nil:
		status.RegisteredAccounts = len(registry.Accounts)
		status.LastSweepTimestamp = registry.LastSweepTimestamp
	case !errors.Is(err, gorm.ErrRecordNotFound):
		h.logger.Error("failed to fetch registry", slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch status")
	}

	h.statusCache.Set(statusCacheKey, status)
	return c.JSON(status)
}
