package executor_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/cyclerunner/pkg/contracts"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
	"github.com/speedrun-hq/cyclerunner/pkg/mocks"
	"github.com/speedrun-hq/cyclerunner/pkg/testutil"
	"github.com/speedrun-hq/cyclerunner/pkg/wallet"
)

type failingSigner struct {
	address common.Address
}

func (s failingSigner) Address() common.Address { return s.address }

func (s failingSigner) Sign(_ *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return nil, errors.New("key unavailable")
}

func newExecutor(t *testing.T, ledger *mocks.MockLedger, config executor.Config) (*executor.Executor, *wallet.Identity) {
	identity := testutil.NewIdentity(t)
	exec, err := executor.New(context.Background(), ledger, identity, config, &logger.EmptyLogger{})
	require.NoError(t, err)
	return exec, identity
}

func claimIntent(t *testing.T) executor.Intent {
	data, err := contracts.PackClaimTokens()
	require.NoError(t, err)
	return executor.Intent{Label: "claim_faucet", To: testutil.FaucetAddress, Data: data}
}

func TestNew(t *testing.T) {
	t.Run("caches chain id", func(t *testing.T) {
		ledger := mocks.NewMockLedger()
		exec, identity := newExecutor(t, ledger, executor.Config{})

		assert.Equal(t, int64(167012), exec.ChainID().Int64())
		assert.Equal(t, identity.Address(), exec.Address())
	})

	t.Run("chain id read failure", func(t *testing.T) {
		ledger := mocks.NewMockLedger()
		ledger.ChainIDErr = errors.New("connection refused")

		_, err := executor.New(context.Background(), ledger, testutil.NewIdentity(t), executor.Config{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := executor.New(context.Background(), nil, testutil.NewIdentity(t), executor.Config{}, nil)
		assert.Error(t, err)

		_, err = executor.New(context.Background(), mocks.NewMockLedger(), nil, executor.Config{}, nil)
		assert.Error(t, err)
	})
}

func TestExecuteSuccess(t *testing.T) {
	ledger := mocks.NewMockLedger()
	ledger.Nonce = 7
	exec, identity := newExecutor(t, ledger, executor.Config{})

	outcome := exec.Execute(context.Background(), claimIntent(t))

	require.Equal(t, executor.StatusSuccess, outcome.Status)
	require.NoError(t, outcome.Err)
	assert.True(t, outcome.Succeeded())
	assert.True(t, outcome.Submitted())
	assert.False(t, outcome.EstimationFallback)
	assert.Equal(t, uint64(7), outcome.Nonce)
	assert.Equal(t, uint64(50000), outcome.GasUsed)
	require.NotNil(t, outcome.BlockNumber)
	assert.Equal(t, uint64(1001), *outcome.BlockNumber)

	require.Len(t, ledger.Sent, 1)
	tx := ledger.Sent[0]
	assert.Equal(t, outcome.Hash, tx.Hash())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(100000), tx.Gas())
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Equal(t, testutil.FaucetAddress, *tx.To())
	assert.Equal(t, "claimTokens", mocks.MethodOf(tx))
	assert.Equal(t, 0, tx.Value().Sign())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(167012)), tx)
	require.NoError(t, err)
	assert.Equal(t, identity.Address(), sender)

	require.Len(t, ledger.Estimates, 1)
	assert.Equal(t, identity.Address(), ledger.Estimates[0].From)
	assert.Equal(t, []time.Duration{executor.DefaultReceiptTimeout}, ledger.WaitTimeouts)
	assert.Equal(t, 0, exec.Tracker().PendingCount())
}

func TestExecuteEstimationFallback(t *testing.T) {
	ledger := mocks.NewMockLedger()
	ledger.EstimateErr = errors.New("execution reverted")
	exec, _ := newExecutor(t, ledger, executor.Config{})

	outcome := exec.Execute(context.Background(), claimIntent(t))

	assert.Equal(t, executor.StatusSuccess, outcome.Status)
	assert.True(t, outcome.EstimationFallback)
	assert.Equal(t, executor.DefaultFallbackGasLimit, outcome.GasLimit)
	require.Len(t, ledger.Sent, 1)
	assert.Equal(t, uint64(3_000_000), ledger.Sent[0].Gas())
}

func TestExecuteMultipliers(t *testing.T) {
	ledger := mocks.NewMockLedger()
	exec, _ := newExecutor(t, ledger, executor.Config{
		FallbackGasLimit:   500000,
		GasLimitMultiplier: 1.5,
		GasPriceMultiplier: 1.2,
		ReceiptTimeout:     5 * time.Second,
	})

	outcome := exec.Execute(context.Background(), claimIntent(t))

	require.Equal(t, executor.StatusSuccess, outcome.Status)
	require.Len(t, ledger.Sent, 1)
	assert.Equal(t, uint64(150000), ledger.Sent[0].Gas())
	testutil.AssertBigIntEqual(t, big.NewInt(2400000000), ledger.Sent[0].GasPrice())
	assert.Equal(t, []time.Duration{5 * time.Second}, ledger.WaitTimeouts)
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(ledger *mocks.MockLedger)
		wantStatus executor.Status
		wantSent   int
		wantErr    string
	}{
		{
			name:       "nonce read fails",
			setup:      func(ledger *mocks.MockLedger) { ledger.NonceErr = errors.New("connection refused") },
			wantStatus: executor.StatusSubmissionFailed,
			wantErr:    "failed to get nonce",
		},
		{
			name:       "gas price read fails",
			setup:      func(ledger *mocks.MockLedger) { ledger.GasPriceErr = errors.New("no response") },
			wantStatus: executor.StatusSubmissionFailed,
			wantErr:    "failed to get gas price",
		},
		{
			name:       "broadcast rejected",
			setup:      func(ledger *mocks.MockLedger) { ledger.SendErr = errors.New("insufficient funds for gas * price + value") },
			wantStatus: executor.StatusSubmissionFailed,
			wantErr:    "failed to send transaction",
		},
		{
			name:       "receipt timeout",
			setup:      func(ledger *mocks.MockLedger) { ledger.WaitErr = executor.ErrReceiptTimeout },
			wantStatus: executor.StatusTimedOut,
			wantSent:   1,
			wantErr:    "not confirmed",
		},
		{
			name: "reverted",
			setup: func(ledger *mocks.MockLedger) {
				ledger.StatusFor = func(*types.Transaction) uint64 { return types.ReceiptStatusFailed }
			},
			wantStatus: executor.StatusReverted,
			wantSent:   1,
			wantErr:    "reverted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := mocks.NewMockLedger()
			tt.setup(ledger)
			exec, _ := newExecutor(t, ledger, executor.Config{})

			outcome := exec.Execute(context.Background(), claimIntent(t))

			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.False(t, outcome.Succeeded())
			assert.Len(t, ledger.Sent, tt.wantSent)
			assert.Equal(t, tt.wantSent > 0, outcome.Submitted())
			require.Error(t, outcome.Err)
			assert.Contains(t, outcome.Err.Error(), tt.wantErr)
			assert.Equal(t, 0, exec.Tracker().PendingCount())
		})
	}
}

func TestExecuteSigningFailure(t *testing.T) {
	ledger := mocks.NewMockLedger()
	exec, err := executor.New(context.Background(), ledger, failingSigner{address: testutil.GenerateAddress()}, executor.Config{}, nil)
	require.NoError(t, err)

	outcome := exec.Execute(context.Background(), claimIntent(t))

	assert.Equal(t, executor.StatusSubmissionFailed, outcome.Status)
	assert.ErrorContains(t, outcome.Err, "key unavailable")
	assert.Empty(t, ledger.Sent)
}

func TestExecuteSequentialNonces(t *testing.T) {
	ledger := mocks.NewMockLedger()
	exec, _ := newExecutor(t, ledger, executor.Config{})

	for i := 0; i < 3; i++ {
		outcome := exec.Execute(context.Background(), claimIntent(t))
		require.Equal(t, executor.StatusSuccess, outcome.Status, fmt.Sprintf("execution %d", i))
	}

	require.Len(t, ledger.Sent, 3)
	for i, tx := range ledger.Sent {
		assert.Equal(t, uint64(i), tx.Nonce())
	}

	recent := exec.Tracker().Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(2), recent[0].Nonce)
	assert.Equal(t, "confirmed", recent[0].State)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", executor.StatusSuccess.String())
	assert.Equal(t, "reverted", executor.StatusReverted.String())
	assert.Equal(t, "estimation_failed", executor.StatusEstimationFailed.String())
	assert.Equal(t, "submission_failed", executor.StatusSubmissionFailed.String())
	assert.Equal(t, "timed_out", executor.StatusTimedOut.String())
	assert.Equal(t, "unknown", executor.Status(42).String())
}

func TestSyntheticOutcomes(t *testing.T) {
	skipped := executor.Skipped("approve")
	assert.True(t, skipped.Succeeded())
	assert.False(t, skipped.Submitted())

	failed := executor.Failed("approve", errors.New("boom"))
	assert.Equal(t, executor.StatusSubmissionFailed, failed.Status)
	assert.False(t, failed.Submitted())
}
