package points

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/pointscan-io/pointscan/types"
)

// Account is the in-memory form of a tracked account. LastSnapshotTimestamp
// is 0 until the first snapshot lands.
type Account struct {
	Address               string
	LastSnapshotTimestamp int64
}

// Snapshot is the in-memory form of a point snapshot. Identity is
// (Address, Timestamp); all numeric fields are fixed-point decimals.
type Snapshot struct {
	Address    string
	Timestamp  int64
	Balance    sdkmath.LegacyDec
	Points     sdkmath.LegacyDec
	MintAmount sdkmath.LegacyDec
	Trigger    types.SnapshotTrigger
	Degraded   bool
}

// Key returns the composite "{address}-{timestamp}" snapshot identity.
func (s Snapshot) Key() string {
	return types.SnapshotKey(s.Address, s.Timestamp)
}

// Observation is one input to the accrual transition: a balance seen for an
// address at an instant, tagged with what caused it to be seen.
type Observation struct {
	Address   string
	Timestamp int64
	Balance   sdkmath.LegacyDec
	Trigger   types.SnapshotTrigger
	// Mint carries the minted amount when the paired transfer originates from
	// the zero address; nil otherwise.
	Mint *sdkmath.LegacyDec
	// Degraded marks a balance substituted from the last known value after
	// lookup failures.
	Degraded bool
}

// Store is the durable-state boundary the accrual core reads through.
// Implementations must return (nil, nil) for absent entities.
type Store interface {
	GetAccount(ctx context.Context, address string) (*Account, error)
	GetSnapshot(ctx context.Context, address string, timestamp int64) (*Snapshot, error)
	GetRegistry(ctx context.Context) (*Registry, error)
}

// BalanceLookup resolves current balances for a set of addresses. The lookup
// is external and may be batched or multicalled by the implementation.
type BalanceLookup func(ctx context.Context, addresses []string) (map[string]sdkmath.LegacyDec, error)
