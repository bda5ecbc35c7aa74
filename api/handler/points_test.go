package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/orm/testutil"
	"github.com/pointscan-io/pointscan/types"
)

const addrAlice = "0xaaaa00000000000000000000000000000000aaaa"

func newTestApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := testutil.NewMockDB()
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.SetChainConfig(&config.ChainConfig{
		ChainId:      "testchain-1",
		JsonRpcUrl:   "http://localhost:8545",
		TokenAddress: "0xcccc00000000000000000000000000000000cccc",
	})

	app := fiber.New()
	Register(app.Group("/v1"), db, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return app, mock
}

func snapshotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "address", "timestamp", "balance", "points", "mint_amount", "trigger", "degraded"})
}

func TestGetPoints(t *testing.T) {
	app, mock := newTestApp(t)

	mock.ExpectQuery(`SELECT \* FROM "point_snapshot" WHERE address = \$1 ORDER BY timestamp DESC`).
		WithArgs(addrAlice, 1).
		WillReturnRows(snapshotRows().
			AddRow(types.SnapshotKey(addrAlice, 1000), addrAlice, int64(1000),
				"100.000000000000000000", "4166.666666666666666667", "0.000000000000000000",
				string(types.TriggerTransfer), false))

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/points/"+addrAlice, nil))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body SnapshotResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, addrAlice, body.Address)
	assert.Equal(t, "4166.666666666666666667", body.Points)
	assert.Equal(t, types.TriggerTransfer, body.Trigger)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPointsNotFound(t *testing.T) {
	app, mock := newTestApp(t)

	mock.ExpectQuery(`SELECT \* FROM "point_snapshot"`).
		WithArgs(addrAlice, 1).
		WillReturnRows(snapshotRows())

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/points/"+addrAlice, nil))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetPointsRejectsBadAddress(t *testing.T) {
	app, _ := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/points/not-an-address", nil))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetSnapshots(t *testing.T) {
	app, mock := newTestApp(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "point_snapshot" WHERE address = \$1`).
		WithArgs(addrAlice).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "point_snapshot" WHERE address = \$1 ORDER BY timestamp DESC LIMIT \$2`).
		WithArgs(addrAlice, 10).
		WillReturnRows(snapshotRows().
			AddRow(types.SnapshotKey(addrAlice, 2000), addrAlice, int64(2000),
				"100", "200", "0", string(types.TriggerTimeInterval), false).
			AddRow(types.SnapshotKey(addrAlice, 1000), addrAlice, int64(1000),
				"100", "0", "0", string(types.TriggerTransfer), false))

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/snapshots/"+addrAlice+"?limit=10", nil))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body SnapshotsResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, int64(2), body.Total)
	require.Len(t, body.Snapshots, 2)
	assert.Equal(t, int64(2000), body.Snapshots[0].Timestamp)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSnapshotsRejectsBadPagination(t *testing.T) {
	app, _ := newTestApp(t)

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/snapshots/"+addrAlice+"?limit=100000", nil))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetStatus(t *testing.T) {
	app, mock := newTestApp(t)

	mock.ExpectQuery(`SELECT \* FROM "collected_block" WHERE chain_id = \$1 ORDER BY height DESC`).
		WithArgs("testchain-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"chain_id", "height", "timestamp", "transfer_count"}).
			AddRow("testchain-1", int64(42), int64(5000), 3))
	mock.ExpectQuery(`SELECT \* FROM "account_registry" WHERE id = \$1`).
		WithArgs(types.RegistryId, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "accounts", "last_sweep_timestamp"}).
			AddRow(types.RegistryId, `{0xaaaa,0xbbbb}`, int64(4600)))

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "testchain-1", body.ChainId)
	assert.Equal(t, int64(42), body.LatestHeight)
	assert.Equal(t, 2, body.RegisteredAccounts)
	assert.Equal(t, int64(4600), body.LastSweepTimestamp)

	require.NoError(t, mock.ExpectationsWereMet())

	// a second request within the cache TTL is served without new queries
	res, err = app.Test(httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var cached StatusResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&cached))
	assert.Equal(t, body, cached)
	require.NoError(t, mock.ExpectationsWereMet())
}
