package scraper

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointscan-io/pointscan/types"
)

const (
	testTxHash = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	topicAlice = "0x000000000000000000000000aaaa00000000000000000000000000000000aaaa"
	topicBob   = "0x000000000000000000000000bbbb00000000000000000000000000000000bbbb"
	topicZero  = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transferLog(from, to, data, logIndex string) types.EthLog {
	return types.EthLog{
		Address:         "0xcccc00000000000000000000000000000000cccc",
		Topics:          []string{types.TransferTopic, from, to},
		Data:            data,
		TransactionHash: testTxHash,
		LogIndex:        logIndex,
	}
}

func TestParseTransferLog(t *testing.T) {
	transfer, err := parseTransferLog(transferLog(topicAlice, topicBob,
		"0x0000000000000000000000000000000000000000000000000000000000000064", "0x2"))
	require.NoError(t, err)

	assert.Equal(t, "0xaaaa00000000000000000000000000000000aaaa", transfer.From)
	assert.Equal(t, "0xbbbb00000000000000000000000000000000bbbb", transfer.To)
	assert.Equal(t, int64(2), transfer.LogIndex)
	assert.Equal(t, testTxHash, transfer.TxHash)
	assert.Equal(t, "100", transfer.Value.TruncateInt().String())
}

func TestParseTransferLogMint(t *testing.T) {
	transfer, err := parseTransferLog(transferLog(topicZero, topicBob,
		"0x00000000000000000000000000000000000000000000000000000000000003e8", "0x0"))
	require.NoError(t, err)

	assert.Equal(t, types.ZeroAddress, transfer.From)
	assert.Equal(t, "1000", transfer.Value.TruncateInt().String())
}

func TestParseTransferLogRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		log  types.EthLog
	}{
		{
			name: "missing topic",
			log: types.EthLog{
				Topics: []string{types.TransferTopic, topicAlice},
				Data:   "0x1",
			},
		},
		{
			name: "wrong signature",
			log: types.EthLog{
				Topics: []string{topicZero, topicAlice, topicBob},
				Data:   "0x1",
			},
		},
		{
			name: "short from topic",
			log: types.EthLog{
				Topics: []string{types.TransferTopic, "0x1234", topicBob},
				Data:   "0x1",
			},
		},
		{
			name: "oversized data word",
			log: types.EthLog{
				Topics: []string{types.TransferTopic, topicAlice, topicBob},
				Data:   "0xff0000000000000000000000000000000000000000000000000000000000000064",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTransferLog(tt.log)
			require.Error(t, err)
		})
	}
}

func TestParseTransfersOrdersByLogIndex(t *testing.T) {
	logs := []types.EthLog{
		transferLog(topicAlice, topicBob, "0x2", "0x5"),
		transferLog(topicBob, topicAlice, "0x1", "0x1"),
		transferLog(topicZero, topicAlice, "0x3", "0x3"),
	}

	transfers := parseTransfers(discardLogger(), logs)
	require.Len(t, transfers, 3)
	assert.Equal(t, int64(1), transfers[0].LogIndex)
	assert.Equal(t, int64(3), transfers[1].LogIndex)
	assert.Equal(t, int64(5), transfers[2].LogIndex)
}

func TestParseTransfersSkipsRemovedAndMalformed(t *testing.T) {
	removed := transferLog(topicAlice, topicBob, "0x1", "0x0")
	removed.Removed = true

	logs := []types.EthLog{
		removed,
		transferLog(topicAlice, topicBob, "0x2", "0x1"),
		{Topics: []string{types.TransferTopic}, Data: "0x1", LogIndex: "0x2"},
	}

	transfers := parseTransfers(discardLogger(), logs)
	require.Len(t, transfers, 1)
	assert.Equal(t, int64(1), transfers[0].LogIndex)
}
