package types

const (
	// TransferTopic is keccak256("Transfer(address,address,uint256)").
	TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// RegistryId is the primary key of the single account registry row.
	RegistryId = "main"

	SecondsPerDay = 86400

	// BalanceOfSelector is the first four bytes of keccak256("balanceOf(address)").
	BalanceOfSelector = "0x70a08231"
)

// SnapshotTrigger tags what caused a snapshot to be taken.
type SnapshotTrigger string

const (
	TriggerTransfer     SnapshotTrigger = "transfer"
	TriggerTimeInterval SnapshotTrigger = "time_interval"
)

// OutOfOrderPolicy controls how an observation older than the account's last
// snapshot is handled.
type OutOfOrderPolicy string

const (
	// OutOfOrderRecord stores the observed balance as a data point without
	// advancing the account clock or recomputing points.
	OutOfOrderRecord OutOfOrderPolicy = "record"
	// OutOfOrderSkip drops the observation entirely.
	OutOfOrderSkip OutOfOrderPolicy = "skip"
)
