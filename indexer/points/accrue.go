package points

import (
	"context"
	"log/slog"

	sdkmath "cosmossdk.io/math"

	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/metrics"
	"github.com/pointscan-io/pointscan/types"
)

var secondsPerDay = sdkmath.LegacyNewDec(types.SecondsPerDay)

// WorkingSet owns the pending accounts and snapshots accumulated during one
// batch. Reads resolve against pending state first, then the durable store,
// so later events in a batch observe earlier events' results. Nothing is
// persisted here; the driver commits the pending maps in one transaction and
// discards the whole set on failure.
type WorkingSet struct {
	logger *slog.Logger
	store  Store
	cfg    *config.AccrualConfig

	accounts  map[string]*Account
	snapshots map[string]*Snapshot
}

func NewWorkingSet(logger *slog.Logger, store Store, cfg *config.AccrualConfig) *WorkingSet {
	return &WorkingSet{
		logger:    logger.With("module", "points"),
		store:     store,
		cfg:       cfg,
		accounts:  make(map[string]*Account),
		snapshots: make(map[string]*Snapshot),
	}
}

// Accrue applies one observation and returns the updated account and
// snapshot, both also retained in the pending maps. A (nil, nil, nil) return
// means the observation was dropped by policy (out-of-order with skip).
//
// The zero address must be filtered by the caller; passing it is an
// invariant violation and returns an error without touching pending state.
func (ws *WorkingSet) Accrue(ctx context.Context, obs Observation) (*Account, *Snapshot, error) {
	if err := validate(obs); err != nil {
		return nil, nil, err
	}

	account, prior, err := ws.resolve(ctx, obs.Address)
	if err != nil {
		return nil, nil, err
	}

	if obs.Timestamp < account.LastSnapshotTimestamp {
		return ws.accrueOutOfOrder(ctx, obs, prior)
	}

	snapshot := &Snapshot{
		Address:   obs.Address,
		Timestamp: obs.Timestamp,
		Balance:   obs.Balance,
		Trigger:   obs.Trigger,
		Degraded:  obs.Degraded,
	}

	mintSettled := false
	switch {
	case account.LastSnapshotTimestamp == 0:
		// first observation ever: no retroactive accrual
		snapshot.Points = sdkmath.LegacyZeroDec()
		snapshot.MintAmount = sdkmath.LegacyZeroDec()
	case obs.Timestamp == account.LastSnapshotTimestamp:
		// same-instant repeat: balance is last-write-wins, no elapsed time.
		// A durable snapshot at this exact key already settled any mint at
		// this instant; re-adding the contribution would drift the total on
		// replay. Only a pending prior means a second mint within this batch.
		snapshot.Points = prior.Points
		snapshot.MintAmount = prior.MintAmount
		_, pending := ws.snapshots[snapshot.Key()]
		mintSettled = !pending
	default:
		elapsed := obs.Timestamp - account.LastSnapshotTimestamp
		snapshot.Points = accruePoints(prior.Points, prior.Balance, elapsed, ws.cfg.DailyPointRate)
		snapshot.MintAmount = prior.MintAmount
	}

	if obs.Trigger == types.TriggerTransfer && obs.Mint != nil && !mintSettled {
		snapshot.MintAmount = snapshot.MintAmount.Add(*obs.Mint)
	}

	account.LastSnapshotTimestamp = obs.Timestamp

	ws.accounts[account.Address] = account
	ws.snapshots[snapshot.Key()] = snapshot

	metrics.GetMetrics().AccrualMetrics().SnapshotsWritten.WithLabelValues(string(obs.Trigger)).Inc()
	if obs.Degraded {
		metrics.GetMetrics().AccrualMetrics().DegradedSnapshots.Inc()
	}

	return account, snapshot, nil
}

// accrueOutOfOrder handles an observation older than the account's last
// snapshot: replays and reorgs land here. The account clock never moves
// backwards and points are never recomputed from a stale balance. Under the
// record policy the observed balance is kept as a data point; under skip the
// observation is dropped.
func (ws *WorkingSet) accrueOutOfOrder(ctx context.Context, obs Observation, prior *Snapshot) (*Account, *Snapshot, error) {
	metrics.GetMetrics().AccrualMetrics().OutOfOrderEvents.Inc()
	ws.logger.Warn("out-of-order observation",
		slog.String("address", obs.Address),
		slog.Int64("observed_timestamp", obs.Timestamp),
		slog.Int64("last_snapshot_timestamp", prior.Timestamp),
		slog.String("policy", string(ws.cfg.OutOfOrderPolicy)))

	if ws.cfg.OutOfOrderPolicy == types.OutOfOrderSkip {
		return nil, nil, nil
	}

	// record: update the balance of the snapshot at the observed instant if
	// one exists, otherwise store the balance with the point totals carried
	// from the prior snapshot. Points of existing rows are left untouched.
	existing, err := ws.getSnapshot(ctx, obs.Address, obs.Timestamp)
	if err != nil {
		return nil, nil, err
	}

	snapshot := &Snapshot{
		Address:    obs.Address,
		Timestamp:  obs.Timestamp,
		Balance:    obs.Balance,
		Trigger:    obs.Trigger,
		Degraded:   obs.Degraded,
		Points:     prior.Points,
		MintAmount: prior.MintAmount,
	}
	if existing != nil {
		snapshot.Points = existing.Points
		snapshot.MintAmount = existing.MintAmount
	}

	ws.snapshots[snapshot.Key()] = snapshot
	return nil, snapshot, nil
}

// resolve returns the account and its prior snapshot, consulting pending
// state before the durable store. Absent accounts come back zero-valued so
// the caller can treat every address uniformly.
func (ws *WorkingSet) resolve(ctx context.Context, address string) (*Account, *Snapshot, error) {
	account, ok := ws.accounts[address]
	if !ok {
		stored, err := ws.store.GetAccount(ctx, address)
		if err != nil {
			return nil, nil, err
		}
		if stored != nil {
			account = &Account{Address: stored.Address, LastSnapshotTimestamp: stored.LastSnapshotTimestamp}
		} else {
			account = &Account{Address: address}
		}
	} else {
		account = &Account{Address: account.Address, LastSnapshotTimestamp: account.LastSnapshotTimestamp}
	}

	if account.LastSnapshotTimestamp == 0 {
		return account, emptySnapshot(address), nil
	}

	prior, err := ws.getSnapshot(ctx, address, account.LastSnapshotTimestamp)
	if err != nil {
		return nil, nil, err
	}
	if prior == nil {
		// account row exists but its snapshot is missing; treat as fresh
		// rather than failing the whole batch
		ws.logger.Error("prior snapshot missing",
			slog.String("address", address),
			slog.Int64("timestamp", account.LastSnapshotTimestamp))
		return account, emptySnapshot(address), nil
	}

	return account, prior, nil
}

func (ws *WorkingSet) getSnapshot(ctx context.Context, address string, timestamp int64) (*Snapshot, error) {
	if pending, ok := ws.snapshots[types.SnapshotKey(address, timestamp)]; ok {
		return pending, nil
	}
	return ws.store.GetSnapshot(ctx, address, timestamp)
}

// PendingAccounts returns the accounts mutated during this batch.
func (ws *WorkingSet) PendingAccounts() []*Account {
	accounts := make([]*Account, 0, len(ws.accounts))
	for _, account := range ws.accounts {
		accounts = append(accounts, account)
	}
	return accounts
}

// PendingSnapshots returns the snapshots produced during this batch, one per
// (address, timestamp) key.
func (ws *WorkingSet) PendingSnapshots() []*Snapshot {
	snapshots := make([]*Snapshot, 0, len(ws.snapshots))
	for _, snapshot := range ws.snapshots {
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}

// LastBalance returns the balance of the address's most recent snapshot,
// pending state first. Never-observed addresses come back zero.
func (ws *WorkingSet) LastBalance(ctx context.Context, address string) (sdkmath.LegacyDec, error) {
	_, prior, err := ws.resolve(ctx, address)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return prior.Balance, nil
}

// accruePoints adds balance * rate * elapsed / 86400 to the prior total.
// The division runs last so whole-day accruals stay exact; the final Quo
// rounds at fixed decimal precision instead of truncating.
func accruePoints(prior, balance sdkmath.LegacyDec, elapsedSeconds, dailyRate int64) sdkmath.LegacyDec {
	earned := balance.MulInt64(elapsedSeconds).MulInt64(dailyRate).Quo(secondsPerDay)
	return prior.Add(earned)
}

func emptySnapshot(address string) *Snapshot {
	return &Snapshot{
		Address:    address,
		Balance:    sdkmath.LegacyZeroDec(),
		Points:     sdkmath.LegacyZeroDec(),
		MintAmount: sdkmath.LegacyZeroDec(),
	}
}

func validate(obs Observation) error {
	if obs.Address == "" || obs.Address == types.ZeroAddress {
		return types.NewValidationError("address", "must be a non-zero address")
	}
	if obs.Timestamp < 0 {
		return types.NewValidationError("timestamp", "must be non-negative")
	}
	if obs.Balance.IsNil() || obs.Balance.IsNegative() {
		return types.NewValidationError("balance", "must be a non-negative decimal")
	}
	if obs.Mint != nil && obs.Mint.IsNegative() {
		return types.NewValidationError("mint", "must be a non-negative decimal")
	}
	return nil
}
