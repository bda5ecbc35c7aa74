package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/indexer/balance"
	"github.com/pointscan-io/pointscan/indexer/collector"
	"github.com/pointscan-io/pointscan/indexer/scraper"
	"github.com/pointscan-io/pointscan/indexer/store"
	indexertypes "github.com/pointscan-io/pointscan/indexer/types"
	"github.com/pointscan-io/pointscan/metrics"
	"github.com/pointscan-io/pointscan/orm"
	"github.com/pointscan-io/pointscan/sentry"
)

const (
	maxCommitAttempts    = 5
	commitInitialBackoff = time.Second
)

// Indexer wires the pipeline together: the scraper feeds ordered blocks into
// the block channel, the driver groups them into batches and hands each batch
// to the collector for accrual and a single-transaction commit.
type Indexer struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	scraper   *scraper.Scraper
	collector *collector.Collector
	blockChan chan indexertypes.ScrapedBlock
}

func New(cfg *config.Config, logger *slog.Logger, db *orm.Database) *Indexer {
	st := store.New(db, cfg, logger)
	querier := balance.New(cfg, logger)

	return &Indexer{
		cfg:       cfg,
		logger:    logger.With("module", "indexer"),
		store:     st,
		scraper:   scraper.New(cfg, logger),
		collector: collector.New(cfg, logger, st, querier),
		blockChan: make(chan indexertypes.ScrapedBlock, cfg.GetBlockBatchSize()),
	}
}

func (i *Indexer) Run(ctx context.Context) error {
	height, err := i.resumeHeight(ctx)
	if err != nil {
		return err
	}
	i.logger.Info("starting indexer", slog.Int64("height", height))

	go i.scraper.Run(ctx, height, i.blockChan)
	return i.collect(ctx)
}

// resumeHeight picks the first height to index: just past the highest
// committed block, else the configured start height, else genesis.
func (i *Indexer) resumeHeight(ctx context.Context) (int64, error) {
	height, ok, err := i.store.ResumeHeight(ctx, i.cfg.GetChainId())
	if err != nil {
		return 0, err
	}
	if ok {
		return height, nil
	}
	if start, set := i.cfg.GetStartHeight(); set {
		return start, nil
	}
	return 0, nil
}

// collect groups scraped blocks into batches and commits them. A batch closes
// when it reaches the configured size or when the source goes idle, so a
// quiet chain still gets its sweep snapshots committed promptly.
func (i *Indexer) collect(ctx context.Context) error {
	batch := make([]indexertypes.ScrapedBlock, 0, i.cfg.GetBlockBatchSize())
	idle := time.NewTimer(i.cfg.GetPollingInterval())
	defer idle.Stop()

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.processWithRetry(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			// uncommitted blocks are simply re-scraped after restart
			return nil

		case block, ok := <-i.blockChan:
			if !ok {
				return flush()
			}
			batch = append(batch, block)
			if len(batch) >= i.cfg.GetBlockBatchSize() {
				if err := flush(); err != nil {
					return err
				}
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(i.cfg.GetPollingInterval())

		case <-idle.C:
			if err := flush(); err != nil {
				return err
			}
			idle.Reset(i.cfg.GetPollingInterval())
		}
	}
}

// processWithRetry retries a failed batch with backoff. The batch's pending
// state is rebuilt from scratch on every attempt, so a half-applied attempt
// leaves nothing behind.
func (i *Indexer) processWithRetry(ctx context.Context, batch []indexertypes.ScrapedBlock) error {
	backoff := commitInitialBackoff
	var lastErr error

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		if attempt > 0 {
			metrics.GetMetrics().IndexerMetrics().CommitRetries.Inc()
			i.logger.Warn("retrying batch",
				slog.Int("attempt", attempt),
				slog.Int64("from_height", batch[0].Height),
				slog.Any("error", lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		start := time.Now()
		if err := i.collector.ProcessBatch(ctx, batch); err != nil {
			lastErr = err
			continue
		}
		metrics.GetMetrics().IndexerMetrics().BatchProcessingTime.WithLabelValues("commit").Observe(time.Since(start).Seconds())
		return nil
	}

	sentry.CaptureException(lastErr)
	return lastErr
}
