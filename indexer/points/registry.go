package points

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pointscan-io/pointscan/metrics"
	"github.com/pointscan-io/pointscan/types"
)

// Registry holds the set of every address ever observed and the global sweep
// gate. It is a single-owner state object: the driver loads it at batch start,
// mutates it through Register and MaybeSweep only, and commits it with the
// rest of the batch.
type Registry struct {
	Accounts           map[string]struct{}
	LastSweepTimestamp int64

	dirty bool
}

func NewRegistry() *Registry {
	return &Registry{Accounts: make(map[string]struct{})}
}

// Register adds an address to the registry. Idempotent; the zero address is
// never registered.
func (r *Registry) Register(address string) {
	if address == "" || address == types.ZeroAddress {
		return
	}
	if _, ok := r.Accounts[address]; ok {
		return
	}
	r.Accounts[address] = struct{}{}
	r.dirty = true
}

// Dirty reports whether the registry changed since it was loaded.
func (r *Registry) Dirty() bool {
	return r.dirty
}

// Addresses returns the registered addresses in sorted order.
func (r *Registry) Addresses() []string {
	addresses := make([]string, 0, len(r.Accounts))
	for address := range r.Accounts {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

// MaybeSweep re-accrues every due registered account when a full sweep
// interval has elapsed since the last registry-wide pass. Produced snapshots
// land in the working set's pending maps exactly like transfer-triggered
// ones, so a sweep snapshot and a transfer snapshot at the same
// (account, timestamp) collapse to one row.
//
// Returns the snapshots written, or nil when the gate kept the sweep closed.
func (ws *WorkingSet) MaybeSweep(ctx context.Context, registry *Registry, currentTimestamp int64, lookup BalanceLookup) ([]*Snapshot, error) {
	intervalSeconds := int64(ws.cfg.SweepInterval.Seconds())
	if currentTimestamp-registry.LastSweepTimestamp < intervalSeconds {
		return nil, nil
	}
	registry.LastSweepTimestamp = currentTimestamp
	registry.dirty = true
	metrics.GetMetrics().AccrualMetrics().SweepRunsTotal.Inc()

	// the expensive full-registry walk runs at most once per interval; the
	// per-account due check keeps replayed batches from re-sweeping
	due := make([]string, 0, len(registry.Accounts))
	priors := make(map[string]*Snapshot, len(registry.Accounts))
	for _, address := range registry.Addresses() {
		account, prior, err := ws.resolve(ctx, address)
		if err != nil {
			return nil, err
		}
		if account.LastSnapshotTimestamp == 0 {
			continue // never observed, nothing to accrue from
		}
		if currentTimestamp-account.LastSnapshotTimestamp < intervalSeconds {
			continue // not yet due
		}
		due = append(due, address)
		priors[address] = prior
	}
	if len(due) == 0 {
		return nil, nil
	}

	balances, err := lookup(ctx, due)
	if err != nil {
		if !ws.cfg.StaleBalanceFallback {
			return nil, err
		}
		ws.logger.Warn("balance lookup failed, sweeping with last known balances",
			slog.Int("accounts", len(due)), slog.Any("error", err))
		balances = nil
	}

	swept := make([]*Snapshot, 0, len(due))
	for _, address := range due {
		obs := Observation{
			Address:   address,
			Timestamp: currentTimestamp,
			Trigger:   types.TriggerTimeInterval,
		}
		if balance, ok := balances[address]; ok {
			obs.Balance = balance
		} else if ws.cfg.StaleBalanceFallback {
			obs.Balance = priors[address].Balance
			obs.Degraded = true
		} else {
			ws.logger.Error("no balance resolved for due account, skipping sweep",
				slog.String("address", address))
			continue
		}

		_, snapshot, err := ws.Accrue(ctx, obs)
		if err != nil {
			return nil, err
		}
		swept = append(swept, snapshot)
	}

	metrics.GetMetrics().AccrualMetrics().SweptAccountsTotal.Add(float64(len(swept)))
	return swept, nil
}
