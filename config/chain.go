package config

import (
	"strings"

	"github.com/pointscan-io/pointscan/types"
)

// ChainConfig identifies the chain endpoint and the single token contract
// whose transfers are tracked.
type ChainConfig struct {
	ChainId      string `json:"chain_id"`
	JsonRpcUrl   string `json:"json_rpc_url"`
	TokenAddress string `json:"token_address"`
}

func (cc ChainConfig) Validate() error {
	if cc.ChainId == "" {
		return types.NewConfigError("CHAIN_ID is required", nil)
	}
	if cc.JsonRpcUrl == "" {
		return types.NewConfigError("JSON_RPC_URL is required", nil)
	}
	if !strings.HasPrefix(cc.TokenAddress, "0x") || len(cc.TokenAddress) != 42 {
		return types.NewInvalidValueError("TOKEN_ADDRESS", cc.TokenAddress, "must be a 0x-prefixed 20-byte hex address")
	}
	if cc.TokenAddress == types.ZeroAddress {
		return types.NewInvalidValueError("TOKEN_ADDRESS", cc.TokenAddress, "must not be the zero address")
	}
	return nil
}
