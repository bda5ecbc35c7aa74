package types

import (
	sdkmath "cosmossdk.io/math"
)

// Transfer is one decoded Transfer log of the tracked token, addresses in
// canonical lowercase hex and the value in raw token units.
type Transfer struct {
	TxHash   string
	LogIndex int64
	From     string
	To       string
	Value    sdkmath.LegacyDec
}

// ScrapedBlock is one block with its decoded transfers, in log order.
// Blocks without transfers still flow through the pipeline: the timestamp of
// the last block in a batch drives the sweep scheduler.
type ScrapedBlock struct {
	ChainId   string
	Height    int64
	Timestamp int64
	Hash      string
	Transfers []Transfer
}
