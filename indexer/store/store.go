package store

import (
	"context"
	"errors"
	"log/slog"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pointscan-io/pointscan/cache"
	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/indexer/points"
	"github.com/pointscan-io/pointscan/orm"
	"github.com/pointscan-io/pointscan/types"
)

// Store is the durable state boundary of the indexer: it serves the accrual
// core's reads and commits whole batches in one transaction. Read-through
// caches hold committed state only; pending batch state lives in the working
// set, never here.
type Store struct {
	db     *orm.Database
	logger *slog.Logger

	accountCache  *cache.Cache[string, points.Account]
	snapshotCache *cache.Cache[string, points.Snapshot]
}

var _ points.Store = (*Store)(nil)

func New(db *orm.Database, cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		db:            db,
		logger:        logger.With("module", "store"),
		accountCache:  cache.New[string, points.Account](cfg.GetCacheSize()),
		snapshotCache: cache.New[string, points.Snapshot](cfg.GetCacheSize()),
	}
}

func (s *Store) GetAccount(ctx context.Context, address string) (*points.Account, error) {
	if cached, ok := s.accountCache.Get(address); ok {
		return &cached, nil
	}

	var row types.TrackedAccount
	if err := s.db.WithContext(ctx).Where("address = ?", address).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, types.NewDatabaseError("account read", err)
	}

	account := points.Account{Address: row.Address, LastSnapshotTimestamp: row.LastSnapshotTimestamp}
	s.accountCache.Set(address, account)
	return &account, nil
}

func (s *Store) GetSnapshot(ctx context.Context, address string, timestamp int64) (*points.Snapshot, error) {
	key := types.SnapshotKey(address, timestamp)
	if cached, ok := s.snapshotCache.Get(key); ok {
		return &cached, nil
	}

	var row types.PointSnapshot
	if err := s.db.WithContext(ctx).Where("id = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, types.NewDatabaseError("snapshot read", err)
	}

	snapshot, err := snapshotFromRow(row)
	if err != nil {
		return nil, err
	}
	s.snapshotCache.Set(key, *snapshot)
	return snapshot, nil
}

// GetRegistry loads the single registry row. Absence means a fresh chain and
// comes back (nil, nil).
func (s *Store) GetRegistry(ctx context.Context) (*points.Registry, error) {
	var row types.AccountRegistry
	if err := s.db.WithContext(ctx).Where("id = ?", types.RegistryId).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, types.NewDatabaseError("registry read", err)
	}

	registry := points.NewRegistry()
	registry.LastSweepTimestamp = row.LastSweepTimestamp
	for _, address := range row.Accounts {
		registry.Accounts[address] = struct{}{}
	}
	return registry, nil
}

// ResumeHeight returns the next height to index based on the highest
// committed block; ok is false when no block has been committed yet.
func (s *Store) ResumeHeight(ctx context.Context, chainId string) (int64, bool, error) {
	var row types.CollectedBlock
	err := s.db.WithContext(ctx).
		Where("chain_id = ?", chainId).
		Order("height DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, types.NewDatabaseError("block read", err)
	}
	return row.Height + 1, true, nil
}

// CommitBatch persists one batch atomically. Accounts, snapshots and the
// registry upsert so replays converge on the same rows; transfers and blocks
// are append-only and conflict-ignored. Caches are refreshed only after the
// transaction succeeds.
func (s *Store) CommitBatch(
	ctx context.Context,
	accounts []*points.Account,
	snapshots []*points.Snapshot,
	transfers []types.CollectedTransfer,
	blocks []types.CollectedBlock,
	registry *points.Registry,
) error {
	accountRows := make([]types.TrackedAccount, 0, len(accounts))
	for _, account := range accounts {
		accountRows = append(accountRows, types.TrackedAccount{
			Address:               account.Address,
			LastSnapshotTimestamp: account.LastSnapshotTimestamp,
		})
	}

	snapshotRows := make([]types.PointSnapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		snapshotRows = append(snapshotRows, snapshotToRow(snapshot))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(accountRows) > 0 {
			if err := tx.Clauses(orm.UpdateAllWhenConflict).Create(&accountRows).Error; err != nil {
				return err
			}
		}
		if len(snapshotRows) > 0 {
			if err := tx.Clauses(orm.UpdateAllWhenConflict).Create(&snapshotRows).Error; err != nil {
				return err
			}
		}
		if len(transfers) > 0 {
			if err := tx.Clauses(orm.DoNothingWhenConflict).Create(&transfers).Error; err != nil {
				return err
			}
		}
		if len(blocks) > 0 {
			if err := tx.Clauses(orm.DoNothingWhenConflict).Create(&blocks).Error; err != nil {
				return err
			}
		}
		if registry != nil && registry.Dirty() {
			row := types.AccountRegistry{
				Id:                 types.RegistryId,
				Accounts:           pq.StringArray(registry.Addresses()),
				LastSweepTimestamp: registry.LastSweepTimestamp,
			}
			if err := tx.Clauses(orm.UpdateAllWhenConflict).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.NewDatabaseError("batch commit", err)
	}

	for _, account := range accounts {
		s.accountCache.Set(account.Address, *account)
	}
	for _, snapshot := range snapshots {
		s.snapshotCache.Set(snapshot.Key(), *snapshot)
	}
	return nil
}

func snapshotToRow(snapshot *points.Snapshot) types.PointSnapshot {
	return types.PointSnapshot{
		Id:         snapshot.Key(),
		Address:    snapshot.Address,
		Timestamp:  snapshot.Timestamp,
		Balance:    snapshot.Balance.String(),
		Points:     snapshot.Points.String(),
		MintAmount: snapshot.MintAmount.String(),
		Trigger:    snapshot.Trigger,
		Degraded:   snapshot.Degraded,
	}
}

func snapshotFromRow(row types.PointSnapshot) (*points.Snapshot, error) {
	balance, err := sdkmath.LegacyNewDecFromStr(row.Balance)
	if err != nil {
		return nil, types.NewInternalError("corrupt balance column", err)
	}
	pts, err := sdkmath.LegacyNewDecFromStr(row.Points)
	if err != nil {
		return nil, types.NewInternalError("corrupt points column", err)
	}
	mint, err := sdkmath.LegacyNewDecFromStr(row.MintAmount)
	if err != nil {
		return nil, types.NewInternalError("corrupt mint_amount column", err)
	}

	return &points.Snapshot{
		Address:    row.Address,
		Timestamp:  row.Timestamp,
		Balance:    balance,
		Points:     pts,
		MintAmount: mint,
		Trigger:    row.Trigger,
		Degraded:   row.Degraded,
	}, nil
}
