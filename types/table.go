package types

import (
	"fmt"

	"github.com/lib/pq"
)

// TrackedAccount is one row per address ever touched by a transfer of the
// tracked token. LastSnapshotTimestamp is 0 until the first snapshot lands.
type TrackedAccount struct {
	Address               string `gorm:"type:text;primaryKey"`
	LastSnapshotTimestamp int64  `gorm:"type:bigint"`
}

// PointSnapshot records an account's balance, accrued points and cumulative
// mint total at one instant. Identity is (address, timestamp); the Id column
// is the composite "{address}-{timestamp}" key so replays land on the same row.
type PointSnapshot struct {
	Id         string          `gorm:"type:text;primaryKey"`
	Address    string          `gorm:"type:text;index:snapshot_address"`
	Timestamp  int64           `gorm:"type:bigint;index:snapshot_timestamp_desc,sort:desc"`
	Balance    string          `gorm:"type:numeric"`
	Points     string          `gorm:"type:numeric"`
	MintAmount string          `gorm:"type:numeric"`
	Trigger    SnapshotTrigger `gorm:"type:text"`
	Degraded   bool            `gorm:"type:boolean"`
}

// SnapshotKey builds the composite snapshot identity.
func SnapshotKey(address string, timestamp int64) string {
	return fmt.Sprintf("%s-%d", address, timestamp)
}

// CollectedTransfer is the append-only audit record of a decoded Transfer log.
type CollectedTransfer struct {
	TxHash    string `gorm:"type:text;primaryKey"`
	LogIndex  int64  `gorm:"type:bigint;primaryKey;autoIncrement:false"`
	Height    int64  `gorm:"type:bigint;index:transfer_height"`
	Timestamp int64  `gorm:"type:bigint"`
	FromAddr  string `gorm:"type:text;index:transfer_from"`
	ToAddr    string `gorm:"type:text;index:transfer_to"`
	Amount    string `gorm:"type:numeric"`
}

// CollectedBlock marks a block as fully committed; the indexer resumes from
// the highest height present.
type CollectedBlock struct {
	ChainId       string `gorm:"type:text;primaryKey"`
	Height        int64  `gorm:"type:bigint;primaryKey;autoIncrement:false;index:block_height_desc,sort:desc"`
	Timestamp     int64  `gorm:"type:bigint"`
	TransferCount int    `gorm:"type:bigint"`
}

// AccountRegistry is the single row (Id = RegistryId) holding the set of all
// registered addresses and the global sweep gate.
type AccountRegistry struct {
	Id                 string         `gorm:"type:text;primaryKey"`
	Accounts           pq.StringArray `gorm:"type:text[]"`
	LastSweepTimestamp int64          `gorm:"type:bigint"`
}
