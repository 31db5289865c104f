package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/speedrun-hq/cyclerunner/pkg/contracts"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
)

const (
	// DefaultPollInterval is the delay between receipt lookups
	DefaultPollInterval = 2 * time.Second
	dialTimeout         = 10 * time.Second
)

// Backend is the go-ethereum client surface the bot needs.
// Both *ethclient.Client and simulated.Client satisfy it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var (
	_ executor.LedgerClient = (*Client)(nil)
	_ Backend               = (*ethclient.Client)(nil)
)

// Client connects the executor and the allowance guard to a chain
type Client struct {
	RPCURL       string
	Backend      Backend
	PollInterval time.Duration
	logger       logger.Logger
}

// New dials the RPC endpoint and verifies the connection by reading the chain id
func New(ctx context.Context, rpcURL string, pollInterval time.Duration, log logger.Logger) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	rpcClient, err := rpc.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to client: %w", err)
	}

	client := NewWithBackend(ethclient.NewClient(rpcClient), pollInterval, log)
	client.RPCURL = rpcURL

	chainID, err := client.Backend.ChainID(dialCtx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to get chain ID from %s: %w", rpcURL, err)
	}
	client.logger.Info("Connected to chain %s via %s", chainID, rpcURL)

	return client, nil
}

// NewWithBackend wraps an already connected backend
func NewWithBackend(backend Backend, pollInterval time.Duration, log logger.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		Backend:      backend,
		PollInterval: pollInterval,
		logger:       log,
	}
}

// ChainID returns the chain id of the connected network
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.Backend.ChainID(ctx)
}

// EstimateGas estimates the gas needed by a call
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.Backend.EstimateGas(ctx, msg)
}

// SuggestGasPrice returns the network's suggested legacy gas price
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.Backend.SuggestGasPrice(ctx)
}

// PendingNonceAt returns the next nonce of the account including pending transactions
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.Backend.PendingNonceAt(ctx, account)
}

// SendTransaction broadcasts a signed transaction
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.Backend.SendTransaction(ctx, tx)
}

// GetLatestBlockNumber gets the latest block number from the chain
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.Backend.BlockNumber(ctx)
}

// WaitForReceipt polls for the receipt of a transaction until it is mined or the timeout elapses
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.Backend.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			c.logger.Debug("receipt lookup for %s failed: %v", hash.Hex(), err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s after %s", executor.ErrReceiptTimeout, hash.Hex(), timeout)
		case <-ticker.C:
		}
	}
}

// ReadAllowance reads allowance(owner, spender) on an ERC-20 token
func (c *Client) ReadAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(token, contracts.ERC20, c.Backend, c.Backend, c.Backend)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("failed to read allowance on %s: %w", token.Hex(), err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected allowance result on %s", token.Hex())
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T on %s", out[0], token.Hex())
	}
	return allowance, nil
}

// ReadBalance reads balanceOf(owner) on an ERC-20 token
func (c *Client) ReadBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(token, contracts.ERC20, c.Backend, c.Backend, c.Backend)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("failed to read balance on %s: %w", token.Hex(), err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected balance result on %s", token.Hex())
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type %T on %s", out[0], token.Hex())
	}
	return balance, nil
}

// ReadDecimals reads decimals() on an ERC-20 token
func (c *Client) ReadDecimals(ctx context.Context, token common.Address) (uint8, error) {
	contract := bind.NewBoundContract(token, contracts.ERC20, c.Backend, c.Backend, c.Backend)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("failed to read decimals on %s: %w", token.Hex(), err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("unexpected decimals result on %s", token.Hex())
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T on %s", out[0], token.Hex())
	}
	return decimals, nil
}
