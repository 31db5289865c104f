package actions

import (
	"context"
	"fmt"

	"github.com/speedrun-hq/cyclerunner/pkg/config"
)

// Action is one playlist entry bound to its parameters
type Action interface {
	Name() string
	Execute(ctx context.Context, library *Library) Result
}

// ClaimFaucetAction claims faucet tokens
type ClaimFaucetAction struct{}

func (ClaimFaucetAction) Name() string { return config.ActionClaimFaucet }

func (ClaimFaucetAction) Execute(ctx context.Context, library *Library) Result {
	return library.ClaimFaucet(ctx)
}

// SwapAction swaps an exact input amount
type SwapAction struct {
	TokenIn      string
	TokenOut     string
	Amount       string
	MinAmountOut string
}

func (SwapAction) Name() string { return config.ActionSwap }

func (a SwapAction) Execute(ctx context.Context, library *Library) Result {
	return library.Swap(ctx, a.TokenIn, a.TokenOut, a.Amount, a.MinAmountOut)
}

// AddLiquidityAction adds liquidity to a token pair
type AddLiquidityAction struct {
	TokenA     string
	TokenB     string
	AmountA    string
	AmountB    string
	MinAmountA string
	MinAmountB string
}

func (AddLiquidityAction) Name() string { return config.ActionAddLiquidity }

func (a AddLiquidityAction) Execute(ctx context.Context, library *Library) Result {
	return library.AddLiquidity(ctx, a.TokenA, a.TokenB, a.AmountA, a.AmountB, a.MinAmountA, a.MinAmountB)
}

// StakeAction stakes LP tokens
type StakeAction struct {
	Token  string
	Amount string
}

func (StakeAction) Name() string { return config.ActionStake }

func (a StakeAction) Execute(ctx context.Context, library *Library) Result {
	return library.Stake(ctx, a.Token, a.Amount)
}

// ClaimRewardsAction claims staking rewards
type ClaimRewardsAction struct{}

func (ClaimRewardsAction) Name() string { return config.ActionClaimRewards }

func (ClaimRewardsAction) Execute(ctx context.Context, library *Library) Result {
	return library.ClaimStakingRewards(ctx)
}

// Build maps a playlist step to its action
func Build(step config.Step) (Action, error) {
	switch step.Action {
	case config.ActionClaimFaucet:
		return ClaimFaucetAction{}, nil
	case config.ActionSwap:
		return SwapAction{
			TokenIn:      step.TokenIn,
			TokenOut:     step.TokenOut,
			Amount:       step.Amount,
			MinAmountOut: step.MinAmountOut,
		}, nil
	case config.ActionAddLiquidity:
		return AddLiquidityAction{
			TokenA:     step.TokenA,
			TokenB:     step.TokenB,
			AmountA:    step.AmountA,
			AmountB:    step.AmountB,
			MinAmountA: step.MinAmountA,
			MinAmountB: step.MinAmountB,
		}, nil
	case config.ActionStake:
		return StakeAction{Token: step.Token, Amount: step.Amount}, nil
	case config.ActionClaimRewards:
		return ClaimRewardsAction{}, nil
	}
	return nil, fmt.Errorf("unknown action %q", step.Action)
}
