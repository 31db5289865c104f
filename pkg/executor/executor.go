package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/speedrun-hq/cyclerunner/pkg/logger"
	"github.com/speedrun-hq/cyclerunner/pkg/metrics"
)

const (
	// DefaultFallbackGasLimit is used when gas estimation fails
	DefaultFallbackGasLimit uint64 = 3_000_000
	// DefaultReceiptTimeout bounds the wait for a transaction receipt
	DefaultReceiptTimeout = 60 * time.Second
)

// ErrReceiptTimeout is returned by a LedgerClient when no receipt arrives in time
var ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")

// LedgerClient is the subset of an Ethereum JSON-RPC client used to submit transactions
type LedgerClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error)
}

// Signer signs transactions on behalf of the bot's account
type Signer interface {
	Address() common.Address
	Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Config holds the transaction policy of the executor
type Config struct {
	FallbackGasLimit   uint64
	GasLimitMultiplier float64
	GasPriceMultiplier float64
	ReceiptTimeout     time.Duration
}

// DefaultConfig returns the executor policy used when nothing is configured
func DefaultConfig() Config {
	return Config{
		FallbackGasLimit:   DefaultFallbackGasLimit,
		GasLimitMultiplier: 1.0,
		GasPriceMultiplier: 1.0,
		ReceiptTimeout:     DefaultReceiptTimeout,
	}
}

// Executor turns intents into signed, broadcast and confirmed transactions.
// Calls are serialized so that each transaction reads the nonce after the previous one settled.
type Executor struct {
	client  LedgerClient
	signer  Signer
	config  Config
	chainID *big.Int
	tracker *Tracker
	logger  logger.Logger
	mu      sync.Mutex
}

// New creates an executor and caches the chain id of the connected network
func New(ctx context.Context, client LedgerClient, signer Signer, config Config, log logger.Logger) (*Executor, error) {
	if client == nil {
		return nil, errors.New("ledger client is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	defaults := DefaultConfig()
	if config.FallbackGasLimit == 0 {
		config.FallbackGasLimit = defaults.FallbackGasLimit
	}
	if config.GasLimitMultiplier <= 0 {
		config.GasLimitMultiplier = defaults.GasLimitMultiplier
	}
	if config.GasPriceMultiplier <= 0 {
		config.GasPriceMultiplier = defaults.GasPriceMultiplier
	}
	if config.ReceiptTimeout <= 0 {
		config.ReceiptTimeout = defaults.ReceiptTimeout
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Executor{
		client:  client,
		signer:  signer,
		config:  config,
		chainID: chainID,
		tracker: NewTracker(),
		logger:  log,
	}, nil
}

// ChainID returns the cached chain id
func (e *Executor) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

// Address returns the account transactions are sent from
func (e *Executor) Address() common.Address {
	return e.signer.Address()
}

// Tracker returns the nonce tracker of the executor
func (e *Executor) Tracker() *Tracker {
	return e.tracker
}

// Execute signs and broadcasts the intent, then waits for its receipt.
// Failures are reported in the returned Outcome, never retried.
func (e *Executor) Execute(ctx context.Context, intent Intent) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	label := intent.Label
	if label == "" {
		label = logger.TagExecutor
	}
	value := intent.Value
	if value == nil {
		value = big.NewInt(0)
	}
	from := e.signer.Address()
	to := intent.To

	outcome := Outcome{Label: label}

	gasLimit, fallback := e.estimateGas(ctx, label, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  intent.Data,
	})
	outcome.GasLimit = gasLimit
	outcome.EstimationFallback = fallback

	gasPrice, err := e.gasPrice(ctx)
	if err != nil {
		return e.fail(outcome, StatusSubmissionFailed, fmt.Errorf("failed to get gas price: %w", err))
	}

	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return e.fail(outcome, StatusSubmissionFailed, fmt.Errorf("failed to get nonce: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     intent.Data,
	})

	signedTx, err := e.signer.Sign(tx, e.chainID)
	if err != nil {
		return e.fail(outcome, StatusSubmissionFailed, fmt.Errorf("failed to sign transaction: %w", err))
	}

	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return e.fail(outcome, StatusSubmissionFailed, fmt.Errorf("failed to send transaction: %w", err))
	}

	outcome.Hash = signedTx.Hash()
	outcome.Nonce = nonce
	e.tracker.Track(label, outcome.Hash, nonce)
	metrics.PendingTransactions.Set(float64(e.tracker.PendingCount()))
	metrics.GasPrice.Set(toGwei(gasPrice))

	e.logger.InfoWithAction(label, "transaction sent: %s (nonce %d, gas %d)", outcome.Hash.Hex(), nonce, gasLimit)

	start := time.Now()
	receipt, err := e.client.WaitForReceipt(ctx, outcome.Hash, e.config.ReceiptTimeout)
	if err != nil {
		// the transaction is left alone; a later pass reads a fresh nonce
		e.tracker.MarkTimedOut(nonce)
		metrics.PendingTransactions.Set(float64(e.tracker.PendingCount()))
		return e.fail(outcome, StatusTimedOut, fmt.Errorf("transaction %s not confirmed: %w", outcome.Hash.Hex(), err))
	}
	metrics.ConfirmationTime.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if receipt.BlockNumber != nil {
		block := receipt.BlockNumber.Uint64()
		outcome.BlockNumber = &block
	}
	outcome.GasUsed = receipt.GasUsed
	metrics.GasUsed.WithLabelValues(label).Observe(float64(receipt.GasUsed))

	if receipt.Status != types.ReceiptStatusSuccessful {
		e.tracker.MarkFailed(nonce)
		metrics.PendingTransactions.Set(float64(e.tracker.PendingCount()))
		return e.fail(outcome, StatusReverted, fmt.Errorf("transaction %s reverted", outcome.Hash.Hex()))
	}

	e.tracker.MarkConfirmed(nonce)
	metrics.PendingTransactions.Set(float64(e.tracker.PendingCount()))
	metrics.TransactionsTotal.WithLabelValues(label, StatusSuccess.String()).Inc()

	outcome.Status = StatusSuccess
	e.logger.InfoWithAction(label, "transaction confirmed in block %d (gas used %d)", receipt.BlockNumber, receipt.GasUsed)
	return outcome
}

// estimateGas returns the gas limit for the call and whether the fallback was used
func (e *Executor) estimateGas(ctx context.Context, label string, msg ethereum.CallMsg) (uint64, bool) {
	estimated, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		e.logger.ErrorWithAction(label, "gas estimation failed, using fallback limit %d: %v", e.config.FallbackGasLimit, err)
		metrics.EstimationFallbacks.WithLabelValues(label).Inc()
		metrics.TransactionErrors.WithLabelValues(label, StatusEstimationFailed.String()).Inc()
		return e.config.FallbackGasLimit, true
	}

	if e.config.GasLimitMultiplier != 1.0 {
		padded := uint64(float64(estimated) * e.config.GasLimitMultiplier)
		if padded > estimated {
			estimated = padded
		}
	}
	e.logger.DebugWithAction(label, "estimated gas: %d", estimated)
	return estimated, false
}

// gasPrice returns the suggested gas price scaled by the configured multiplier
func (e *Executor) gasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if e.config.GasPriceMultiplier == 1.0 {
		return suggested, nil
	}

	basisPoints := big.NewInt(int64(math.Round(e.config.GasPriceMultiplier * 10000)))
	gasPrice := new(big.Int).Mul(suggested, basisPoints)
	gasPrice.Quo(gasPrice, big.NewInt(10000))
	return gasPrice, nil
}

func (e *Executor) fail(outcome Outcome, status Status, err error) Outcome {
	outcome.Status = status
	outcome.Err = err

	metrics.TransactionsTotal.WithLabelValues(outcome.Label, status.String()).Inc()
	metrics.TransactionErrors.WithLabelValues(outcome.Label, ClassifyError(err)).Inc()
	e.logger.ErrorWithAction(outcome.Label, "%s: %v", status, err)
	return outcome
}

func toGwei(wei *big.Int) float64 {
	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return gwei
}
