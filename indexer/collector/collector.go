package collector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/indexer/points"
	indexertypes "github.com/pointscan-io/pointscan/indexer/types"
	"github.com/pointscan-io/pointscan/metrics"
	"github.com/pointscan-io/pointscan/sentry"
	"github.com/pointscan-io/pointscan/types"
	"github.com/pointscan-io/pointscan/util"
)

// Store is the durable state the collector reads through and commits to.
type Store interface {
	points.Store
	CommitBatch(
		ctx context.Context,
		accounts []*points.Account,
		snapshots []*points.Snapshot,
		transfers []types.CollectedTransfer,
		blocks []types.CollectedBlock,
		registry *points.Registry,
	) error
}

// BalanceSource resolves token balances at a height.
type BalanceSource interface {
	GetBalances(ctx context.Context, addresses []string, height int64) (map[string]sdkmath.LegacyDec, error)
}

// Collector turns scraped blocks into accrual state transitions and commits
// them batch by batch. One ProcessBatch call is one transaction: either the
// whole batch lands or none of it does.
type Collector struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   Store
	querier BalanceSource
}

func New(cfg *config.Config, logger *slog.Logger, store Store, querier BalanceSource) *Collector {
	return &Collector{
		cfg:     cfg,
		logger:  logger.With("module", "collector"),
		store:   store,
		querier: querier,
	}
}

// ProcessBatch applies one ordered run of blocks. Blocks must be contiguous
// and ascending; the last block's height anchors balance lookups and its
// timestamp drives the sweep gate.
func (c *Collector) ProcessBatch(ctx context.Context, blocks []indexertypes.ScrapedBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	last := blocks[len(blocks)-1]

	registry, err := c.store.GetRegistry(ctx)
	if err != nil {
		return err
	}
	if registry == nil {
		registry = points.NewRegistry()
	}

	ws := points.NewWorkingSet(c.logger, c.store, c.cfg.GetAccrualConfig())

	balances, degraded, err := c.resolveBalances(ctx, blocks, last.Height)
	if err != nil {
		return err
	}

	start := time.Now()
	for _, block := range blocks {
		for _, transfer := range block.Transfers {
			if err := c.applyTransfer(ctx, ws, registry, balances, degraded, block.Timestamp, transfer); err != nil {
				return err
			}
		}
	}
	metrics.GetMetrics().IndexerMetrics().BatchProcessingTime.WithLabelValues("accrue").Observe(time.Since(start).Seconds())

	lookup := func(ctx context.Context, addresses []string) (map[string]sdkmath.LegacyDec, error) {
		return c.querier.GetBalances(ctx, addresses, last.Height)
	}
	if _, err := ws.MaybeSweep(ctx, registry, last.Timestamp, lookup); err != nil {
		return err
	}

	transferRows, blockRows := collectRows(blocks)
	if err := c.store.CommitBatch(ctx, ws.PendingAccounts(), ws.PendingSnapshots(), transferRows, blockRows, registry); err != nil {
		return err
	}

	im := metrics.GetMetrics().IndexerMetrics()
	im.BlocksProcessedTotal.Add(float64(len(blocks)))
	im.BatchesCommitted.Inc()
	im.CurrentBlockHeight.Set(float64(last.Height))
	metrics.GetMetrics().AccrualMetrics().RegisteredAccounts.Set(float64(len(registry.Accounts)))

	c.logger.Info("batch committed",
		slog.Int64("from_height", blocks[0].Height),
		slog.Int64("to_height", last.Height),
		slog.Int("transfers", len(transferRows)))
	return nil
}

// applyTransfer feeds one transfer's observations through the accrual core:
// the recipient always, the sender when non-zero. Mints (sender is the zero
// address) tag the recipient's observation with the minted amount.
func (c *Collector) applyTransfer(
	ctx context.Context,
	ws *points.WorkingSet,
	registry *points.Registry,
	balances map[string]sdkmath.LegacyDec,
	degraded bool,
	timestamp int64,
	transfer indexertypes.Transfer,
) error {
	observations := make([]points.Observation, 0, 2)

	toObs := points.Observation{
		Address:   transfer.To,
		Timestamp: timestamp,
		Trigger:   types.TriggerTransfer,
	}
	if util.IsZeroAddress(transfer.From) {
		mint := transfer.Value
		toObs.Mint = &mint
	}
	if !util.IsZeroAddress(transfer.To) {
		observations = append(observations, toObs)
	}
	if !util.IsZeroAddress(transfer.From) {
		observations = append(observations, points.Observation{
			Address:   transfer.From,
			Timestamp: timestamp,
			Trigger:   types.TriggerTransfer,
		})
	}

	for _, obs := range observations {
		if balance, ok := balances[obs.Address]; ok {
			obs.Balance = balance
		} else if degraded {
			prior, err := ws.LastBalance(ctx, obs.Address)
			if err != nil {
				return err
			}
			obs.Balance = prior
			obs.Degraded = true
		} else {
			c.logger.Error("no balance resolved for transfer party, skipping observation",
				slog.String("address", obs.Address),
				slog.String("tx_hash", transfer.TxHash))
			metrics.GetMetrics().IndexerMetrics().ProcessingErrors.WithLabelValues("accrue", "missing_balance").Inc()
			continue
		}

		if _, _, err := ws.Accrue(ctx, obs); err != nil {
			// a malformed observation must not poison the batch
			c.logger.Error("dropping invalid observation",
				slog.String("address", obs.Address),
				slog.String("tx_hash", transfer.TxHash),
				slog.Any("error", err))
			metrics.GetMetrics().IndexerMetrics().ProcessingErrors.WithLabelValues("accrue", "invalid_observation").Inc()
			sentry.CaptureException(err)
			continue
		}
		registry.Register(obs.Address)
	}
	return nil
}

// resolveBalances fetches post-batch balances for every address touched by
// the batch, at the batch's last height. A failed lookup either degrades to
// stale balances or fails the batch, per configuration.
func (c *Collector) resolveBalances(ctx context.Context, blocks []indexertypes.ScrapedBlock, height int64) (map[string]sdkmath.LegacyDec, bool, error) {
	touched := make(map[string]struct{})
	for _, block := range blocks {
		for _, transfer := range block.Transfers {
			if !util.IsZeroAddress(transfer.From) {
				touched[transfer.From] = struct{}{}
			}
			if !util.IsZeroAddress(transfer.To) {
				touched[transfer.To] = struct{}{}
			}
		}
	}
	if len(touched) == 0 {
		return nil, false, nil
	}

	addresses := make([]string, 0, len(touched))
	for address := range touched {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	start := time.Now()
	balances, err := c.querier.GetBalances(ctx, addresses, height)
	if err != nil {
		if !c.cfg.GetAccrualConfig().StaleBalanceFallback {
			return nil, false, err
		}
		c.logger.Warn("balance lookup failed, falling back to last known balances",
			slog.Int("addresses", len(addresses)), slog.Any("error", err))
		return nil, true, nil
	}
	metrics.GetMetrics().IndexerMetrics().BatchProcessingTime.WithLabelValues("resolve").Observe(time.Since(start).Seconds())

	return balances, false, nil
}

func collectRows(blocks []indexertypes.ScrapedBlock) ([]types.CollectedTransfer, []types.CollectedBlock) {
	var transferRows []types.CollectedTransfer
	blockRows := make([]types.CollectedBlock, 0, len(blocks))

	for _, block := range blocks {
		for _, transfer := range block.Transfers {
			transferRows = append(transferRows, types.CollectedTransfer{
				TxHash:    transfer.TxHash,
				LogIndex:  transfer.LogIndex,
				Height:    block.Height,
				Timestamp: block.Timestamp,
				FromAddr:  transfer.From,
				ToAddr:    transfer.To,
				Amount:    transfer.Value.String(),
			})
		}
		blockRows = append(blockRows, types.CollectedBlock{
			ChainId:       block.ChainId,
			Height:        block.Height,
			Timestamp:     block.Timestamp,
			TransferCount: len(block.Transfers),
		})
	}
	return transferRows, blockRows
}
