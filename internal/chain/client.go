package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a new chain client from the RPC URL. maxRetries and
// retryBackoff bound the retry loop around read calls.
func NewClient(ctx context.Context, rpcURL string, maxRetries int, retryBackoff time.Duration) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient:    rpcClient,
		ethClient:    ethclient.NewClient(rpcClient),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// Eth exposes the underlying ethclient for contract bindings.
func (c *Client) Eth() *ethclient.Client {
	return c.ethClient
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// CallContract performs an eth_call for a contract method, retrying
// transient failures per the client's retry policy.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var resp []byte
	err := WithRetry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.ethClient.CallContract(ctx, msg, blockNumber)
		return callErr
	})
	return resp, err
}
