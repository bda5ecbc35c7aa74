package handler

import "github.com/pointscan-io/pointscan/types"

type SnapshotResponse struct {
	Address    string                `json:"address"`
	Timestamp  int64                 `json:"timestamp"`
	Balance    string                `json:"balance"`
	Points     string                `json:"points"`
	MintAmount string                `json:"mint_amount"`
	Trigger    types.SnapshotTrigger `json:"trigger"`
	Degraded   bool                  `json:"degraded"`
}

type SnapshotsResponse struct {
	Snapshots []SnapshotResponse `json:"snapshots"`
	Total     int64              `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

type StatusResponse struct {
	Version            string `json:"version"`
	ChainId            string `json:"chain_id"`
	LatestHeight       int64  `json:"latest_height"`
	LatestTimestamp    int64  `json:"latest_timestamp"`
	RegisteredAccounts int    `json:"registered_accounts"`
	LastSweepTimestamp int64  `json:"last_sweep_timestamp"`
}

func toSnapshotResponse(row types.PointSnapshot) SnapshotResponse {
	return SnapshotResponse{
		Address:    row.Address,
		Timestamp:  row.Timestamp,
		Balance:    row.Balance,
		Points:     row.Points,
		MintAmount: row.MintAmount,
		Trigger:    row.Trigger,
		Degraded:   row.Degraded,
	}
}
