package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointscan-io/pointscan/cache"
	"github.com/pointscan-io/pointscan/indexer/points"
	"github.com/pointscan-io/pointscan/orm/testutil"
	"github.com/pointscan-io/pointscan/types"
)

const (
	addrAlice = "0xaaaa00000000000000000000000000000000aaaa"
	addrBob   = "0xbbbb00000000000000000000000000000000bbbb"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := testutil.NewMockDB()
	require.NoError(t, err)

	return &Store{
		db:            db,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		accountCache:  cache.New[string, points.Account](128),
		snapshotCache: cache.New[string, points.Snapshot](128),
	}, mock
}

func TestGetAccount(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "tracked_account" WHERE address = \$1`).
		WithArgs(addrAlice, 1).
		WillReturnRows(sqlmock.NewRows([]string{"address", "last_snapshot_timestamp"}).
			AddRow(addrAlice, int64(1000)))

	account, err := s.GetAccount(ctx, addrAlice)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, addrAlice, account.Address)
	assert.Equal(t, int64(1000), account.LastSnapshotTimestamp)

	// second read is served from cache, no further query expected
	cached, err := s.GetAccount(ctx, addrAlice)
	require.NoError(t, err)
	assert.Equal(t, account, cached)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountAbsent(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "tracked_account" WHERE address = \$1`).
		WithArgs(addrBob, 1).
		WillReturnRows(sqlmock.NewRows([]string{"address", "last_snapshot_timestamp"}))

	account, err := s.GetAccount(context.Background(), addrBob)
	require.NoError(t, err)
	assert.Nil(t, account)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSnapshot(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "point_snapshot" WHERE id = \$1`).
		WithArgs(types.SnapshotKey(addrAlice, 1000), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "address", "timestamp", "balance", "points", "mint_amount", "trigger", "degraded"}).
			AddRow(types.SnapshotKey(addrAlice, 1000), addrAlice, int64(1000),
				"100.000000000000000000", "4166.666666666666666667", "0.000000000000000000",
				string(types.TriggerTimeInterval), false))

	snapshot, err := s.GetSnapshot(context.Background(), addrAlice, 1000)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.True(t, snapshot.Balance.Equal(sdkmath.LegacyNewDec(100)))
	assert.Equal(t, "4166.666666666666666667", snapshot.Points.String())
	assert.Equal(t, types.TriggerTimeInterval, snapshot.Trigger)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRegistryAbsent(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "account_registry" WHERE id = \$1`).
		WithArgs(types.RegistryId, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "accounts", "last_sweep_timestamp"}))

	registry, err := s.GetRegistry(context.Background())
	require.NoError(t, err)
	assert.Nil(t, registry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResumeHeight(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "collected_block" WHERE chain_id = \$1 ORDER BY height DESC`).
		WithArgs("testchain-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"chain_id", "height", "timestamp", "transfer_count"}).
			AddRow("testchain-1", int64(41), int64(5000), 3))

	height, ok, err := s.ResumeHeight(context.Background(), "testchain-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), height)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResumeHeightFreshChain(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "collected_block"`).
		WithArgs("testchain-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"chain_id", "height", "timestamp", "transfer_count"}))

	_, ok, err := s.ResumeHeight(context.Background(), "testchain-1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitBatch(t *testing.T) {
	s, mock := newTestStore(t)
	ctx := context.Background()

	accounts := []*points.Account{{Address: addrAlice, LastSnapshotTimestamp: 1000}}
	snapshots := []*points.Snapshot{{
		Address:    addrAlice,
		Timestamp:  1000,
		Balance:    sdkmath.LegacyNewDec(100),
		Points:     sdkmath.LegacyZeroDec(),
		MintAmount: sdkmath.LegacyZeroDec(),
		Trigger:    types.TriggerTransfer,
	}}
	transfers := []types.CollectedTransfer{{
		TxHash: "0xaaaa", LogIndex: 0, Height: 10, Timestamp: 1000,
		FromAddr: addrBob, ToAddr: addrAlice, Amount: "100",
	}}
	blocks := []types.CollectedBlock{{
		ChainId: "testchain-1", Height: 10, Timestamp: 1000, TransferCount: 1,
	}}
	registry := points.NewRegistry()
	registry.Register(addrAlice)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tracked_account" .* ON CONFLICT .* DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "point_snapshot" .* ON CONFLICT .* DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "collected_transfer" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "collected_block" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "account_registry" .* ON CONFLICT .* DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.CommitBatch(ctx, accounts, snapshots, transfers, blocks, registry)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// committed state now serves reads without touching the database
	account, err := s.GetAccount(ctx, addrAlice)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, int64(1000), account.LastSnapshotTimestamp)

	snapshot, err := s.GetSnapshot(ctx, addrAlice, 1000)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.True(t, snapshot.Balance.Equal(sdkmath.LegacyNewDec(100)))
}

func TestCommitBatchRollsBackOnError(t *testing.T) {
	s, mock := newTestStore(t)

	accounts := []*points.Account{{Address: addrAlice, LastSnapshotTimestamp: 1000}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tracked_account"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.CommitBatch(context.Background(), accounts, nil, nil, nil, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// nothing cached on failure
	mock.ExpectQuery(`SELECT \* FROM "tracked_account"`).
		WithArgs(addrAlice, 1).
		WillReturnRows(sqlmock.NewRows([]string{"address", "last_snapshot_timestamp"}))
	account, err := s.GetAccount(context.Background(), addrAlice)
	require.NoError(t, err)
	assert.Nil(t, account)
}
