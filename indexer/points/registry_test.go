package points

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointscan-io/pointscan/types"
)

func staticLookup(balances map[string]string) BalanceLookup {
	return func(_ context.Context, addresses []string) (map[string]sdkmath.LegacyDec, error) {
		out := make(map[string]sdkmath.LegacyDec, len(addresses))
		for _, address := range addresses {
			if balance, ok := balances[address]; ok {
				out[address] = dec(balance)
			}
		}
		return out, nil
	}
}

func failingLookup(_ context.Context, _ []string) (map[string]sdkmath.LegacyDec, error) {
	return nil, errors.New("rpc down")
}

func TestRegisterIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	registry.Register(addrX)
	registry.Register(addrX)
	registry.Register(addrY)

	assert.Len(t, registry.Accounts, 2)
	assert.True(t, registry.Dirty())
	assert.Equal(t, []string{addrX, addrY}, registry.Addresses())
}

func TestRegisterRejectsZeroAddress(t *testing.T) {
	registry := NewRegistry()

	registry.Register(types.ZeroAddress)
	registry.Register("")

	assert.Empty(t, registry.Accounts)
	assert.False(t, registry.Dirty())
}

func TestSweepGateClosedWithinInterval(t *testing.T) {
	store := newFakeStore()
	ws := newTestWorkingSet(store, testAccrualConfig())

	registry := NewRegistry()
	registry.Register(addrX)
	registry.LastSweepTimestamp = 10000

	swept, err := ws.MaybeSweep(context.Background(), registry, 10000+3599, staticLookup(nil))
	require.NoError(t, err)
	assert.Nil(t, swept)
	assert.Equal(t, int64(10000), registry.LastSweepTimestamp)
}

func TestSweepAccruesDueAccounts(t *testing.T) {
	// Scenario C through the scheduler: balance 100 held since t=1000,
	// sweep fires at t=4600
	store := newFakeStore()
	ctx := context.Background()

	ws := newTestWorkingSet(store, testAccrualConfig())
	_, _, err := ws.Accrue(ctx, mintObs(addrX, 1000, "100", "100"))
	require.NoError(t, err)
	store.commit(ws)

	ws = newTestWorkingSet(store, testAccrualConfig())
	registry := NewRegistry()
	registry.Register(addrX)

	swept, err := ws.MaybeSweep(ctx, registry, 1000+3600, staticLookup(map[string]string{addrX: "100"}))
	require.NoError(t, err)
	require.Len(t, swept, 1)

	assert.Equal(t, dec("4166.666666666666666667"), swept[0].Points)
	assert.Equal(t, types.TriggerTimeInterval, swept[0].Trigger)
	assert.Equal(t, int64(1000+3600), registry.LastSweepTimestamp)
}

func TestSweepSkipsNeverObservedAccounts(t *testing.T) {
	store := newFakeStore()
	ws := newTestWorkingSet(store, testAccrualConfig())

	registry := NewRegistry()
	registry.Register(addrX) // registered but never snapshotted

	swept, err := ws.MaybeSweep(context.Background(), registry, 100000, staticLookup(map[string]string{addrX: "100"}))
	require.NoError(t, err)
	assert.Empty(t, swept)
}

func TestSweepSkipsRecentlySnapshottedAccounts(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	ws := newTestWorkingSet(store, testAccrualConfig())
	_, _, err := ws.Accrue(ctx, transferObs(addrX, 1000, "100"))
	require.NoError(t, err)
	_, _, err = ws.Accrue(ctx, transferObs(addrY, 4000, "50"))
	require.NoError(t, err)
	store.commit(ws)

	ws = newTestWorkingSet(store, testAccrualConfig())
	registry := NewRegistry()
	registry.Register(addrX)
	registry.Register(addrY)

	// at t=4700 only X (last seen t=1000) is a full interval behind
	swept, err := ws.MaybeSweep(ctx, registry, 4700, staticLookup(map[string]string{addrX: "100", addrY: "50"}))
	require.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Equal(t, addrX, swept[0].Address)
}

func TestSweepCollapsesWithTransferSnapshot(t *testing.T) {
	// a transfer snapshot and a sweep snapshot at the same instant must end
	// up as one pending row
	store := newFakeStore()
	ctx := context.Background()

	ws := newTestWorkingSet(store, testAccrualConfig())
	_, _, err := ws.Accrue(ctx, mintObs(addrX, 1000, "100", "100"))
	require.NoError(t, err)
	store.commit(ws)

	ws = newTestWorkingSet(store, testAccrualConfig())
	_, transferSnap, err := ws.Accrue(ctx, transferObs(addrX, 4600, "120"))
	require.NoError(t, err)

	registry := NewRegistry()
	registry.Register(addrX)

	// X was just snapshotted at t=4600 within this batch, so it is not due
	swept, err := ws.MaybeSweep(ctx, registry, 4600, staticLookup(map[string]string{addrX: "120"}))
	require.NoError(t, err)
	assert.Empty(t, swept)
	require.Len(t, ws.PendingSnapshots(), 1)
	assert.Equal(t, transferSnap.Balance, ws.PendingSnapshots()[0].Balance)
}

func TestSweepLookupFailureWithoutFallback(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	ws := newTestWorkingSet(store, testAccrualConfig())
	_, _, err := ws.Accrue(ctx, transferObs(addrX, 1000, "100"))
	require.NoError(t, err)
	store.commit(ws)

	ws = newTestWorkingSet(store, testAccrualConfig())
	registry := NewRegistry()
	registry.Register(addrX)

	_, err = ws.MaybeSweep(ctx, registry, 100000, failingLookup)
	require.Error(t, err)
}

func TestSweepLookupFailureWithFallback(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	cfg := testAccrualConfig()
	ws := newTestWorkingSet(store, cfg)
	_, _, err := ws.Accrue(ctx, mintObs(addrX, 1000, "100", "100"))
	require.NoError(t, err)
	store.commit(ws)

	cfg.StaleBalanceFallback = true
	ws = newTestWorkingSet(store, cfg)
	registry := NewRegistry()
	registry.Register(addrX)

	swept, err := ws.MaybeSweep(ctx, registry, 1000+3600, failingLookup)
	require.NoError(t, err)
	require.Len(t, swept, 1)

	// last known balance, flagged degraded, points still accrued from it
	assert.Equal(t, dec("100"), swept[0].Balance)
	assert.True(t, swept[0].Degraded)
	assert.Equal(t, dec("4166.666666666666666667"), swept[0].Points)
}

func TestSweepIdempotentOnReplay(t *testing.T) {
	// replaying a batch whose sweep already committed must not sweep again:
	// the per-account due check sees the committed sweep snapshots
	store := newFakeStore()
	ctx := context.Background()

	ws := newTestWorkingSet(store, testAccrualConfig())
	_, _, err := ws.Accrue(ctx, transferObs(addrX, 1000, "100"))
	require.NoError(t, err)
	registry := NewRegistry()
	registry.Register(addrX)
	swept, err := ws.MaybeSweep(ctx, registry, 1000+3600, staticLookup(map[string]string{addrX: "100"}))
	require.NoError(t, err)
	require.Len(t, swept, 1)
	store.commit(ws)
	store.registry = registry

	// replay: fresh working set over committed state, same sweep timestamp
	ws = newTestWorkingSet(store, testAccrualConfig())
	replayRegistry, err := store.GetRegistry(ctx)
	require.NoError(t, err)
	swept, err = ws.MaybeSweep(ctx, replayRegistry, 1000+3600, staticLookup(map[string]string{addrX: "100"}))
	require.NoError(t, err)
	assert.Empty(t, swept)
}
