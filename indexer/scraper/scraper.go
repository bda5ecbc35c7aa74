package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pointscan-io/pointscan/config"
	indexertypes "github.com/pointscan-io/pointscan/indexer/types"
	"github.com/pointscan-io/pointscan/metrics"
)

const maxErrCount = 5

// Scraper walks the chain height by height and emits decoded blocks on the
// block channel, in order. It never skips a height: blocks with no transfers
// still flow downstream so the sweep scheduler sees their timestamps.
type Scraper struct {
	cfg          *config.Config
	logger       *slog.Logger
	latestHeight int64
}

func New(cfg *config.Config, logger *slog.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger.With("module", "scraper"),
	}
}

func (s *Scraper) Run(ctx context.Context, height int64, blockChan chan<- indexertypes.ScrapedBlock) {
	client := fiber.AcquireClient()
	defer fiber.ReleaseClient(client)
	defer close(blockChan)

	errCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if height > s.latestHeight {
			latest, err := s.fetchLatestHeight(ctx, client)
			if err != nil {
				s.logger.Error("failed to get latest height", slog.Any("error", err))
				metrics.GetMetrics().IndexerMetrics().RPCErrors.WithLabelValues("eth_blockNumber").Inc()
				s.sleep(ctx, s.cfg.GetPollingInterval())
				continue
			}
			s.latestHeight = latest

			if height > s.latestHeight {
				// caught up, wait for new blocks
				s.sleep(ctx, s.cfg.GetPollingInterval())
				continue
			}
		}

		start := time.Now()
		block, err := s.scrapeBlock(ctx, client, height)
		if err != nil {
			errCount++
			if errCount >= maxErrCount {
				s.logger.Error("repeatedly failed to scrape block",
					slog.Int64("height", height), slog.Any("error", err))
				errCount = 0
			}
			metrics.GetMetrics().IndexerMetrics().ProcessingErrors.WithLabelValues("scrape", "rpc_error").Inc()
			s.sleep(ctx, s.cfg.GetCoolingDuration())
			continue
		}
		errCount = 0
		metrics.GetMetrics().IndexerMetrics().BatchProcessingTime.WithLabelValues("scrape").Observe(time.Since(start).Seconds())

		select {
		case blockChan <- block:
		case <-ctx.Done():
			return
		}
		height++
	}
}

func (s *Scraper) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
