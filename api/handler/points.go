package handler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/pointscan-io/pointscan/types"
	"github.com/pointscan-io/pointscan/util"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// GetPoints handles GET /v1/points/:account, returning the account's latest
// snapshot. Points accrue lazily, so "latest snapshot" is the current total.
func (h *Handler) GetPoints(c *fiber.Ctx) error {
	address, err := parseAccount(c)
	if err != nil {
		return err
	}

	var row types.PointSnapshot
	err = h.db.WithContext(c.Context()).
		Where("address = ?", address).
		Order("timestamp DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "account has no snapshots")
		}
		h.logger.Error("failed to fetch latest snapshot", slog.String("address", address), slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch points")
	}

	return c.JSON(toSnapshotResponse(row))
}

// GetSnapshots handles GET /v1/snapshots/:account, returning the account's
// snapshot history newest first with limit/offset pagination.
func (h *Handler) GetSnapshots(c *fiber.Ctx) error {
	address, err := parseAccount(c)
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit out of range")
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "offset must be non-negative")
	}

	var total int64
	if err := h.db.WithContext(c.Context()).
		Model(&types.PointSnapshot{}).
		Where("address = ?", address).
		Count(&total).Error; err != nil {
		h.logger.Error("failed to count snapshots", slog.String("address", address), slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch snapshots")
	}

	var rows []types.PointSnapshot
	if err := h.db.WithContext(c.Context()).
		Where("address = ?", address).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		h.logger.Error("failed to fetch snapshots", slog.String("address", address), slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch snapshots")
	}

	snapshots := make([]SnapshotResponse, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, toSnapshotResponse(row))
	}

	return c.JSON(SnapshotsResponse{
		Snapshots: snapshots,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func parseAccount(c *fiber.Ctx) (string, error) {
	raw := c.Params("account")
	if !strings.HasPrefix(raw, "0x") || len(raw) != 42 {
		return "", fiber.NewError(fiber.StatusBadRequest, "account must be a 0x-prefixed 20-byte hex address")
	}
	return util.NormalizeAddress(raw), nil
}
