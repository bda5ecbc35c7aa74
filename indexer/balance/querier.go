package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pointscan-io/pointscan/config"
	"github.com/pointscan-io/pointscan/metrics"
	"github.com/pointscan-io/pointscan/types"
	"github.com/pointscan-io/pointscan/util"
)

// rpcBatchSize bounds how many eth_call requests go into one JSON-RPC batch.
const rpcBatchSize = 200

// Querier reads token balances through batched eth_call requests against the
// tracked contract's balanceOf.
type Querier struct {
	cfg    *config.Config
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Querier {
	return &Querier{
		cfg:    cfg,
		logger: logger.With("module", "balance"),
	}
}

// GetBalances returns the balance of every address at the given height.
// Addresses must be in canonical lowercase hex. An address missing from the
// result map means its eth_call returned an RPC-level error.
func (q *Querier) GetBalances(ctx context.Context, addresses []string, height int64) (map[string]sdkmath.LegacyDec, error) {
	balances := make(map[string]sdkmath.LegacyDec, len(addresses))
	if len(addresses) == 0 {
		return balances, nil
	}

	client := fiber.AcquireClient()
	defer fiber.ReleaseClient(client)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.GetMaxConcurrentRequests())

	for start := 0; start < len(addresses); start += rpcBatchSize {
		end := min(start+rpcBatchSize, len(addresses))
		chunk := addresses[start:end]

		g.Go(func() error {
			resolved, err := q.queryChunk(gCtx, client, chunk, height)
			if err != nil {
				return err
			}
			mu.Lock()
			for address, balance := range resolved {
				balances[address] = balance
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

func (q *Querier) queryChunk(ctx context.Context, client *fiber.Client, addresses []string, height int64) (map[string]sdkmath.LegacyDec, error) {
	chainCfg := q.cfg.GetChainConfig()
	heightHex := fmt.Sprintf("0x%x", height)

	reqs := make([]types.JSONRPCRequest, 0, len(addresses))
	for id, address := range addresses {
		reqs = append(reqs, types.JSONRPCRequest{
			JSONRPC: "2.0",
			Method:  "eth_call",
			Params: []any{map[string]any{
				"to":   chainCfg.TokenAddress,
				"data": balanceOfCalldata(address),
			}, heightHex},
			ID: id,
		})
	}

	responses, err := util.CallJSONRPCBatch(ctx, client, chainCfg.JsonRpcUrl, reqs, q.cfg.GetQueryTimeout())
	if err != nil {
		metrics.GetMetrics().IndexerMetrics().RPCErrors.WithLabelValues("eth_call").Inc()
		return nil, err
	}

	// batch responses come back in arbitrary order, match by request id
	balances := make(map[string]sdkmath.LegacyDec, len(addresses))
	for _, res := range responses {
		if res.ID < 0 || res.ID >= len(addresses) {
			q.logger.Warn("unexpected response id in eth_call batch", slog.Int("id", res.ID))
			continue
		}
		address := addresses[res.ID]

		if res.Error != nil {
			metrics.GetMetrics().IndexerMetrics().RPCErrors.WithLabelValues("eth_call").Inc()
			q.logger.Warn("balanceOf call failed",
				slog.String("address", address),
				slog.String("error", res.Error.Message))
			continue
		}

		var word string
		if err := json.Unmarshal(res.Result, &word); err != nil {
			q.logger.Warn("malformed balanceOf result", slog.String("address", address), slog.Any("error", err))
			continue
		}
		balance, err := util.HexToDec(word)
		if err != nil {
			q.logger.Warn("malformed balanceOf result", slog.String("address", address), slog.Any("error", err))
			continue
		}
		balances[address] = balance
	}
	return balances, nil
}

// balanceOfCalldata encodes balanceOf(address) calldata: the 4-byte selector
// followed by the address left-padded to a 32-byte word.
func balanceOfCalldata(address string) string {
	return types.BalanceOfSelector + strings.Repeat("0", 24) + strings.TrimPrefix(address, "0x")
}
