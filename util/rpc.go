package util

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pointscan-io/pointscan/types"
)

const (
	rpcMaxAttempts    = 3
	rpcInitialBackoff = 500 * time.Millisecond
)

// CallJSONRPC issues a single JSON-RPC request with bounded retries.
func CallJSONRPC(ctx context.Context, client *fiber.Client, url string, req types.JSONRPCRequest, timeout time.Duration) (*types.JSONRPCResponse, error) {
	body, err := postWithRetry(ctx, client, url, req, timeout)
	if err != nil {
		return nil, err
	}

	var res types.JSONRPCResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, types.NewNetworkError(url, err)
	}
	return &res, nil
}

// CallJSONRPCBatch issues a JSON-RPC batch request with bounded retries.
// Responses come back in arbitrary order; callers match them by ID.
func CallJSONRPCBatch(ctx context.Context, client *fiber.Client, url string, reqs []types.JSONRPCRequest, timeout time.Duration) ([]types.JSONRPCResponse, error) {
	body, err := postWithRetry(ctx, client, url, reqs, timeout)
	if err != nil {
		return nil, err
	}

	var res []types.JSONRPCResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, types.NewNetworkError(url, err)
	}
	return res, nil
}

func postWithRetry(ctx context.Context, client *fiber.Client, url string, payload any, timeout time.Duration) ([]byte, error) {
	backoff := rpcInitialBackoff
	var lastErr error

	for attempt := 0; attempt < rpcMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, err := post(client, url, payload, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}

	return nil, types.NewNetworkError(url, lastErr)
}

func post(client *fiber.Client, url string, payload any, timeout time.Duration) ([]byte, error) {
	agent := client.Post(url).JSON(payload).Timeout(timeout)
	code, body, errs := agent.Bytes()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if code != fiber.StatusOK {
		return nil, errors.New(string(body))
	}
	return body, nil
}
