package scraper

import (
	"log/slog"
	"sort"

	indexertypes "github.com/pointscan-io/pointscan/indexer/types"
	"github.com/pointscan-io/pointscan/types"
	"github.com/pointscan-io/pointscan/util"
)

// parseTransfers decodes Transfer logs into transfers sorted by log index.
// Malformed logs are logged and skipped rather than failing the block: a
// single bad log must not stall the pipeline.
func parseTransfers(logger *slog.Logger, logs []types.EthLog) []indexertypes.Transfer {
	transfers := make([]indexertypes.Transfer, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		transfer, err := parseTransferLog(log)
		if err != nil {
			logger.Warn("skipping malformed transfer log",
				slog.String("tx_hash", log.TransactionHash),
				slog.String("log_index", log.LogIndex),
				slog.Any("error", err))
			continue
		}
		transfers = append(transfers, transfer)
	}

	sort.Slice(transfers, func(i, j int) bool {
		return transfers[i].LogIndex < transfers[j].LogIndex
	})
	return transfers
}

func parseTransferLog(log types.EthLog) (indexertypes.Transfer, error) {
	if len(log.Topics) != 3 {
		return indexertypes.Transfer{}, types.NewValidationError("topics", "transfer log must carry exactly three topics")
	}
	if log.Topics[0] != types.TransferTopic {
		return indexertypes.Transfer{}, types.NewValidationError("topics", "not a transfer event signature")
	}

	from, err := util.TopicToAddress(log.Topics[1])
	if err != nil {
		return indexertypes.Transfer{}, err
	}
	to, err := util.TopicToAddress(log.Topics[2])
	if err != nil {
		return indexertypes.Transfer{}, err
	}
	value, err := util.HexToDec(log.Data)
	if err != nil {
		return indexertypes.Transfer{}, err
	}
	logIndex, err := util.HexToHeight(log.LogIndex)
	if err != nil {
		return indexertypes.Transfer{}, err
	}

	return indexertypes.Transfer{
		TxHash:   log.TransactionHash,
		LogIndex: logIndex,
		From:     from,
		To:       to,
		Value:    value,
	}, nil
}
