package actions_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/cyclerunner/pkg/actions"
	"github.com/speedrun-hq/cyclerunner/pkg/allowance"
	"github.com/speedrun-hq/cyclerunner/pkg/amount"
	"github.com/speedrun-hq/cyclerunner/pkg/config"
	"github.com/speedrun-hq/cyclerunner/pkg/contracts"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/mocks"
	"github.com/speedrun-hq/cyclerunner/pkg/testutil"
	"github.com/speedrun-hq/cyclerunner/pkg/tokens"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var addresses = config.ContractsConfig{
	Router:  testutil.RouterAddress,
	Staking: testutil.StakingAddress,
	Faucet:  testutil.FaucetAddress,
}

type fixture struct {
	library *actions.Library
	ledger  *mocks.MockLedger
	owner   common.Address
}

func newFixture(t *testing.T) *fixture {
	ledger := mocks.NewMockLedger()
	identity := testutil.NewIdentity(t)
	exec, err := executor.New(context.Background(), ledger, identity, executor.Config{}, nil)
	require.NoError(t, err)
	guard := allowance.NewGuard(ledger, exec, identity.Address(), nil)

	library := actions.NewLibrary(
		exec,
		guard,
		testutil.NewRegistry(t),
		addresses,
		identity.Address(),
		300*time.Second,
		actions.WithClock(func() time.Time { return fixedNow }),
	)
	return &fixture{library: library, ledger: ledger, owner: identity.Address()}
}

func methods(ledger *mocks.MockLedger) []string {
	names := make([]string, 0, len(ledger.Sent))
	for _, tx := range ledger.Sent {
		names = append(names, mocks.MethodOf(tx))
	}
	return names
}

func TestClaimFaucet(t *testing.T) {
	f := newFixture(t)

	result := f.library.ClaimFaucet(context.Background())

	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(t, "claim_faucet", result.Action)
	assert.Equal(t, []string{"claimTokens"}, methods(f.ledger))
	assert.Equal(t, testutil.FaucetAddress, *f.ledger.Sent[0].To())
	assert.Equal(t, 1, result.Submitted())
}

func TestSwapWithSufficientAllowance(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetAllowance(testutil.ZealAddress, f.owner, testutil.RouterAddress, amount.MustBaseUnits("1", 18))

	result := f.library.Swap(context.Background(), "test_ZEAL", "test_NACHO", "0.001", "")

	require.True(t, result.Success, "%v", result.Err)
	require.Equal(t, []string{"swapExactTokensForTokens"}, methods(f.ledger))
	assert.Len(t, result.Outcomes, 2)
	assert.False(t, result.Outcomes[0].Submitted(), "approval was skipped")

	tx := f.ledger.Sent[0]
	assert.Equal(t, testutil.RouterAddress, *tx.To())
	args, err := contracts.Router.Methods["swapExactTokensForTokens"].Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	testutil.AssertBigIntEqual(t, big.NewInt(1_000_000_000_000_000), args[0].(*big.Int))
	testutil.AssertBigIntEqual(t, big.NewInt(0), args[1].(*big.Int))
	assert.Equal(t, []common.Address{testutil.ZealAddress, testutil.NachoAddress}, args[2])
	assert.Equal(t, f.owner, args[3])
	testutil.AssertBigIntEqual(t, big.NewInt(fixedNow.Unix()+300), args[4].(*big.Int))
}

func TestSwapApprovesThenSwaps(t *testing.T) {
	f := newFixture(t)

	result := f.library.Swap(context.Background(), "test_NACHO", "test_ZEAL", "0.0005", "0.0001")

	require.True(t, result.Success, "%v", result.Err)
	require.Equal(t, []string{"approve", "swapExactTokensForTokens"}, methods(f.ledger))
	assert.Equal(t, testutil.NachoAddress, *f.ledger.Sent[0].To())
	testutil.AssertBigIntEqual(t, big.NewInt(500), f.ledger.Allowance(testutil.NachoAddress, f.owner, testutil.RouterAddress))

	args, err := contracts.Router.Methods["swapExactTokensForTokens"].Inputs.Unpack(f.ledger.Sent[1].Data()[4:])
	require.NoError(t, err)
	testutil.AssertBigIntEqual(t, big.NewInt(500), args[0].(*big.Int))
	testutil.AssertBigIntEqual(t, amount.MustBaseUnits("0.0001", 18), args[1].(*big.Int))
}

func TestSwapUnknownSymbol(t *testing.T) {
	tests := []struct {
		name     string
		tokenIn  string
		tokenOut string
		symbol   string
	}{
		{"unknown input", "test_FOO", "test_NACHO", "test_FOO"},
		{"unknown output", "test_ZEAL", "test_BAR", "test_BAR"},
		{"case sensitive", "TEST_ZEAL", "test_NACHO", "TEST_ZEAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			result := f.library.Swap(context.Background(), tt.tokenIn, tt.tokenOut, "0.001", "")

			assert.False(t, result.Success)
			var lookupErr *tokens.LookupError
			require.True(t, errors.As(result.Err, &lookupErr))
			assert.Equal(t, tt.symbol, lookupErr.Symbol)
			assert.Empty(t, f.ledger.Sent)
			assert.Empty(t, f.ledger.Estimates)
			assert.Equal(t, 0, f.ledger.AllowanceReads)
			assert.Empty(t, result.Outcomes)
		})
	}
}

func TestSwapInvalidAmount(t *testing.T) {
	f := newFixture(t)

	result := f.library.Swap(context.Background(), "test_ZEAL", "test_NACHO", "-0.001", "")

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, amount.ErrInvalidAmount)
	assert.NotErrorIs(t, result.Err, actions.ErrUnexpected)
	assert.Empty(t, f.ledger.Sent)
}

func TestSwapAbortsWhenApprovalFails(t *testing.T) {
	f := newFixture(t)
	f.ledger.StatusFor = func(tx *types.Transaction) uint64 {
		if mocks.MethodOf(tx) == "approve" {
			return types.ReceiptStatusFailed
		}
		return types.ReceiptStatusSuccessful
	}

	result := f.library.Swap(context.Background(), "test_ZEAL", "test_NACHO", "0.001", "")

	assert.False(t, result.Success)
	assert.Equal(t, []string{"approve"}, methods(f.ledger))

	var outcomeErr *actions.OutcomeError
	require.True(t, errors.As(result.Err, &outcomeErr))
	assert.Equal(t, executor.StatusReverted, outcomeErr.Outcome.Status)
}

func TestSwapRevertedIsReported(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetAllowance(testutil.ZealAddress, f.owner, testutil.RouterAddress, amount.MustBaseUnits("1", 18))
	f.ledger.StatusFor = func(*types.Transaction) uint64 { return types.ReceiptStatusFailed }

	result := f.library.Swap(context.Background(), "test_ZEAL", "test_NACHO", "0.001", "")

	assert.False(t, result.Success)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, executor.StatusReverted, result.Outcomes[1].Status)
}

func TestAddLiquidity(t *testing.T) {
	f := newFixture(t)

	result := f.library.AddLiquidity(context.Background(), "test_ZEAL", "test_NACHO", "1", "2.5", "", "2")

	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(t, []string{"approve", "approve", "addLiquidity"}, methods(f.ledger))
	assert.Equal(t, testutil.ZealAddress, *f.ledger.Sent[0].To())
	assert.Equal(t, testutil.NachoAddress, *f.ledger.Sent[1].To())

	args, err := contracts.Router.Methods["addLiquidity"].Inputs.Unpack(f.ledger.Sent[2].Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, testutil.ZealAddress, args[0])
	assert.Equal(t, testutil.NachoAddress, args[1])
	testutil.AssertBigIntEqual(t, amount.MustBaseUnits("1", 18), args[2].(*big.Int))
	testutil.AssertBigIntEqual(t, big.NewInt(2_500_000), args[3].(*big.Int))
	testutil.AssertBigIntEqual(t, big.NewInt(0), args[4].(*big.Int))
	testutil.AssertBigIntEqual(t, big.NewInt(2_000_000), args[5].(*big.Int))
	assert.Equal(t, f.owner, args[6])
	testutil.AssertBigIntEqual(t, big.NewInt(fixedNow.Unix()+300), args[7].(*big.Int))
}

func TestAddLiquidityAbortsOnFirstApproval(t *testing.T) {
	f := newFixture(t)
	f.ledger.SendErr = errors.New("insufficient funds for gas * price + value")

	result := f.library.AddLiquidity(context.Background(), "test_ZEAL", "test_NACHO", "1", "1", "", "")

	assert.False(t, result.Success)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, executor.StatusSubmissionFailed, result.Outcomes[0].Status)
	assert.Equal(t, 1, f.ledger.AllowanceReads)
}

func TestStake(t *testing.T) {
	f := newFixture(t)

	result := f.library.Stake(context.Background(), "ZEAL_NACHO_LP", "0.5")

	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(t, []string{"approve", "stake"}, methods(f.ledger))
	testutil.AssertBigIntEqual(t, amount.MustBaseUnits("0.5", 18),
		f.ledger.Allowance(testutil.LPAddress, f.owner, testutil.StakingAddress))
	assert.Equal(t, testutil.StakingAddress, *f.ledger.Sent[1].To())
}

func TestStakeUnknownToken(t *testing.T) {
	f := newFixture(t)

	result := f.library.Stake(context.Background(), "OTHER_LP", "0.5")

	assert.False(t, result.Success)
	var lookupErr *tokens.LookupError
	assert.True(t, errors.As(result.Err, &lookupErr))
	assert.Empty(t, f.ledger.Sent)
}

func TestClaimStakingRewards(t *testing.T) {
	f := newFixture(t)

	result := f.library.ClaimStakingRewards(context.Background())

	require.True(t, result.Success, "%v", result.Err)
	assert.Equal(t, []string{"claimRewards"}, methods(f.ledger))
	assert.Equal(t, testutil.StakingAddress, *f.ledger.Sent[0].To())
}

func TestClaimStakingRewardsTimeout(t *testing.T) {
	f := newFixture(t)
	f.ledger.WaitErr = executor.ErrReceiptTimeout

	result := f.library.ClaimStakingRewards(context.Background())

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, executor.ErrReceiptTimeout)
	assert.Equal(t, 1, result.Submitted())
}

type panickingSubmitter struct{}

func (panickingSubmitter) Execute(context.Context, executor.Intent) executor.Outcome {
	panic("nil pointer in transport")
}

func TestPanicBecomesUnexpectedFailure(t *testing.T) {
	library := actions.NewLibrary(panickingSubmitter{}, nil, testutil.NewRegistry(t), addresses, testutil.GenerateAddress(), time.Minute)

	var result actions.Result
	require.NotPanics(t, func() {
		result = library.ClaimFaucet(context.Background())
	})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, actions.ErrUnexpected)
	assert.Contains(t, result.Err.Error(), "nil pointer in transport")
}
