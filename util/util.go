package util

import (
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pointscan-io/pointscan/types"
)

// NormalizeAddress returns the canonical lowercase-hex form of an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(common.HexToAddress(address).Hex())
}

// TopicToAddress extracts the address packed into a 32-byte log topic.
func TopicToAddress(topic string) (string, error) {
	raw := strings.TrimPrefix(topic, "0x")
	if len(raw) != 64 {
		return "", types.NewInvalidValueError("topic", topic, "must be a 32-byte hex value")
	}
	return strings.ToLower(common.BytesToAddress(common.FromHex(topic)).Hex()), nil
}

// HexToHeight parses a canonical hex quantity (eth block numbers, timestamps).
func HexToHeight(quantity string) (int64, error) {
	value, err := hexutil.DecodeUint64(quantity)
	if err != nil {
		return 0, types.NewInvalidValueError("quantity", quantity, "must be a hex quantity")
	}
	return int64(value), nil // #nosec G115 -- chain heights fit in int64
}

// HexToDec parses a 32-byte padded hex word (log data, eth_call results) into
// a decimal. Empty results decode to zero.
func HexToDec(word string) (sdkmath.LegacyDec, error) {
	raw := strings.TrimPrefix(word, "0x")
	if raw == "" {
		return sdkmath.LegacyZeroDec(), nil
	}
	if len(raw) > 64 {
		return sdkmath.LegacyDec{}, types.NewInvalidValueError("word", word, "exceeds 32 bytes")
	}
	return sdkmath.LegacyNewDecFromBigInt(common.HexToHash(word).Big()), nil
}

// IsZeroAddress reports whether the address is the canonical zero address.
func IsZeroAddress(address string) bool {
	return address == types.ZeroAddress
}
