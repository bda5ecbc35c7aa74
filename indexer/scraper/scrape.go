package scraper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	indexertypes "github.com/pointscan-io/pointscan/indexer/types"
	"github.com/pointscan-io/pointscan/types"
	"github.com/pointscan-io/pointscan/util"
)

func (s *Scraper) fetchLatestHeight(ctx context.Context, client *fiber.Client) (int64, error) {
	chainCfg := s.cfg.GetChainConfig()
	res, err := util.CallJSONRPC(ctx, client, chainCfg.JsonRpcUrl, types.JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "eth_blockNumber",
		Params:  []any{},
		ID:      1,
	}, s.cfg.GetQueryTimeout())
	if err != nil {
		return 0, err
	}
	if res.Error != nil {
		return 0, types.NewNetworkError(chainCfg.JsonRpcUrl, fmt.Errorf("eth_blockNumber: %s", res.Error.Message))
	}

	var quantity string
	if err := json.Unmarshal(res.Result, &quantity); err != nil {
		return 0, err
	}
	return util.HexToHeight(quantity)
}

// scrapeBlock fetches the block header and the tracked token's transfer logs
// for one height, concurrently, and decodes them into a ScrapedBlock.
func (s *Scraper) scrapeBlock(ctx context.Context, client *fiber.Client, height int64) (indexertypes.ScrapedBlock, error) {
	chainCfg := s.cfg.GetChainConfig()
	heightHex := fmt.Sprintf("0x%x", height)

	var (
		block types.EthBlock
		logs  []types.EthLog
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := util.CallJSONRPC(gCtx, client, chainCfg.JsonRpcUrl, types.JSONRPCRequest{
			JSONRPC: "2.0",
			Method:  "eth_getBlockByNumber",
			Params:  []any{heightHex, false},
			ID:      1,
		}, s.cfg.GetQueryTimeout())
		if err != nil {
			return err
		}
		if res.Error != nil {
			return types.NewNetworkError(chainCfg.JsonRpcUrl, fmt.Errorf("eth_getBlockByNumber: %s", res.Error.Message))
		}
		if string(res.Result) == "null" {
			return types.NewNotFoundError(fmt.Sprintf("block %d", height))
		}
		return json.Unmarshal(res.Result, &block)
	})
	g.Go(func() error {
		res, err := util.CallJSONRPC(gCtx, client, chainCfg.JsonRpcUrl, types.JSONRPCRequest{
			JSONRPC: "2.0",
			Method:  "eth_getLogs",
			Params: []any{map[string]any{
				"fromBlock": heightHex,
				"toBlock":   heightHex,
				"address":   chainCfg.TokenAddress,
				"topics":    []any{types.TransferTopic},
			}},
			ID: 2,
		}, s.cfg.GetQueryTimeout())
		if err != nil {
			return err
		}
		if res.Error != nil {
			return types.NewNetworkError(chainCfg.JsonRpcUrl, fmt.Errorf("eth_getLogs: %s", res.Error.Message))
		}
		return json.Unmarshal(res.Result, &logs)
	})
	if err := g.Wait(); err != nil {
		return indexertypes.ScrapedBlock{}, err
	}

	timestamp, err := util.HexToHeight(block.Timestamp)
	if err != nil {
		return indexertypes.ScrapedBlock{}, err
	}

	return indexertypes.ScrapedBlock{
		ChainId:   chainCfg.ChainId,
		Height:    height,
		Timestamp: timestamp,
		Hash:      block.Hash,
		Transfers: parseTransfers(s.logger, logs),
	}, nil
}
