package actions

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/cyclerunner/pkg/amount"
	"github.com/speedrun-hq/cyclerunner/pkg/config"
	"github.com/speedrun-hq/cyclerunner/pkg/contracts"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
	"github.com/speedrun-hq/cyclerunner/pkg/metrics"
	"github.com/speedrun-hq/cyclerunner/pkg/tokens"
)

// Submitter executes transaction intents
type Submitter interface {
	Execute(ctx context.Context, intent executor.Intent) executor.Outcome
}

// AllowanceEnsurer makes sure a spender may move a required amount of a token
type AllowanceEnsurer interface {
	Ensure(ctx context.Context, token tokens.Token, spender common.Address, required *big.Int) executor.Outcome
}

// Result is the result of one action
type Result struct {
	Action   string
	Success  bool
	Err      error
	Outcomes []executor.Outcome
}

// Submitted returns the number of transactions the action broadcast
func (r Result) Submitted() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Submitted() {
			count++
		}
	}
	return count
}

func (r *Result) add(outcome executor.Outcome) executor.Outcome {
	r.Outcomes = append(r.Outcomes, outcome)
	return outcome
}

// Library composes the allowance guard and the executor into the bot's actions
type Library struct {
	submitter  Submitter
	allowances AllowanceEnsurer
	registry   *tokens.Registry
	contracts  config.ContractsConfig
	owner      common.Address
	deadline   time.Duration
	now        func() time.Time
	logger     logger.Logger
}

// Option configures a Library
type Option func(*Library)

// WithClock sets the clock used to compute router deadlines
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		l.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(l *Library) {
		l.logger = log
	}
}

// NewLibrary creates a new action library acting on behalf of owner
func NewLibrary(
	submitter Submitter,
	allowances AllowanceEnsurer,
	registry *tokens.Registry,
	addresses config.ContractsConfig,
	owner common.Address,
	deadline time.Duration,
	opts ...Option,
) *Library {
	l := &Library{
		submitter:  submitter,
		allowances: allowances,
		registry:   registry,
		contracts:  addresses,
		owner:      owner,
		deadline:   deadline,
		now:        time.Now,
		logger:     &logger.EmptyLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ClaimFaucet claims test tokens from the faucet
func (l *Library) ClaimFaucet(ctx context.Context) Result {
	return l.run(logger.TagFaucet, func(result *Result) error {
		l.logger.InfoWithAction(logger.TagFaucet, "Claiming faucet tokens")

		data, err := contracts.PackClaimTokens()
		if err != nil {
			return err
		}
		outcome := result.add(l.submitter.Execute(ctx, executor.Intent{
			Label: logger.TagFaucet,
			To:    l.contracts.Faucet,
			Data:  data,
		}))
		return outcomeErr(outcome)
	})
}

// Swap swaps an exact amount of tokenIn for at least minAmountOut of tokenOut
func (l *Library) Swap(ctx context.Context, tokenIn, tokenOut, amountIn, minAmountOut string) Result {
	return l.run(logger.TagSwap, func(result *Result) error {
		l.logger.InfoWithAction(logger.TagSwap, "Swapping %s %s to %s", amountIn, tokenIn, tokenOut)

		in, err := l.registry.Lookup(tokenIn)
		if err != nil {
			return err
		}
		out, err := l.registry.Lookup(tokenOut)
		if err != nil {
			return err
		}

		amountInUnits, err := toBaseUnits(amountIn, in)
		if err != nil {
			return err
		}
		minOutUnits, err := toMinimumUnits(minAmountOut, out)
		if err != nil {
			return err
		}

		approval := result.add(l.allowances.Ensure(ctx, in, l.contracts.Router, amountInUnits))
		if err := outcomeErr(approval); err != nil {
			return fmt.Errorf("approval of %s for swap failed: %w", in.Symbol, err)
		}

		data, err := contracts.PackSwapExactTokensForTokens(
			amountInUnits,
			minOutUnits,
			[]common.Address{in.Address, out.Address},
			l.owner,
			l.deadlineAt(),
		)
		if err != nil {
			return err
		}
		outcome := result.add(l.submitter.Execute(ctx, executor.Intent{
			Label: logger.TagSwap,
			To:    l.contracts.Router,
			Data:  data,
		}))
		return outcomeErr(outcome)
	})
}

// AddLiquidity deposits a pair of tokens into the router's pool
func (l *Library) AddLiquidity(ctx context.Context, tokenA, tokenB, amountA, amountB, minAmountA, minAmountB string) Result {
	return l.run(logger.TagLiquidity, func(result *Result) error {
		l.logger.InfoWithAction(logger.TagLiquidity, "Adding liquidity %s %s and %s %s", amountA, tokenA, amountB, tokenB)

		a, err := l.registry.Lookup(tokenA)
		if err != nil {
			return err
		}
		b, err := l.registry.Lookup(tokenB)
		if err != nil {
			return err
		}

		amountAUnits, err := toBaseUnits(amountA, a)
		if err != nil {
			return err
		}
		amountBUnits, err := toBaseUnits(amountB, b)
		if err != nil {
			return err
		}
		minAUnits, err := toMinimumUnits(minAmountA, a)
		if err != nil {
			return err
		}
		minBUnits, err := toMinimumUnits(minAmountB, b)
		if err != nil {
			return err
		}

		for _, approval := range []struct {
			token  tokens.Token
			amount *big.Int
		}{{a, amountAUnits}, {b, amountBUnits}} {
			outcome := result.add(l.allowances.Ensure(ctx, approval.token, l.contracts.Router, approval.amount))
			if err := outcomeErr(outcome); err != nil {
				return fmt.Errorf("approval of %s for liquidity failed: %w", approval.token.Symbol, err)
			}
		}

		data, err := contracts.PackAddLiquidity(
			a.Address,
			b.Address,
			amountAUnits,
			amountBUnits,
			minAUnits,
			minBUnits,
			l.owner,
			l.deadlineAt(),
		)
		if err != nil {
			return err
		}
		outcome := result.add(l.submitter.Execute(ctx, executor.Intent{
			Label: logger.TagLiquidity,
			To:    l.contracts.Router,
			Data:  data,
		}))
		return outcomeErr(outcome)
	})
}

// Stake deposits LP tokens into the staking contract
func (l *Library) Stake(ctx context.Context, lpToken, amountIn string) Result {
	return l.run(logger.TagStake, func(result *Result) error {
		l.logger.InfoWithAction(logger.TagStake, "Staking %s %s", amountIn, lpToken)

		lp, err := l.registry.Lookup(lpToken)
		if err != nil {
			return err
		}
		units, err := toBaseUnits(amountIn, lp)
		if err != nil {
			return err
		}

		approval := result.add(l.allowances.Ensure(ctx, lp, l.contracts.Staking, units))
		if err := outcomeErr(approval); err != nil {
			return fmt.Errorf("approval of %s for staking failed: %w", lp.Symbol, err)
		}

		data, err := contracts.PackStake(units)
		if err != nil {
			return err
		}
		outcome := result.add(l.submitter.Execute(ctx, executor.Intent{
			Label: logger.TagStake,
			To:    l.contracts.Staking,
			Data:  data,
		}))
		return outcomeErr(outcome)
	})
}

// ClaimStakingRewards claims accumulated staking rewards
func (l *Library) ClaimStakingRewards(ctx context.Context) Result {
	return l.run(logger.TagRewards, func(result *Result) error {
		l.logger.InfoWithAction(logger.TagRewards, "Claiming staking rewards")

		data, err := contracts.PackClaimRewards()
		if err != nil {
			return err
		}
		outcome := result.add(l.submitter.Execute(ctx, executor.Intent{
			Label: logger.TagRewards,
			To:    l.contracts.Staking,
			Data:  data,
		}))
		return outcomeErr(outcome)
	})
}

// run executes an action body and converts every failure, panics included, into a failed Result
func (l *Library) run(name string, body func(result *Result) error) (result Result) {
	result.Action = name

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Errorf("%w: panic: %v", ErrUnexpected, r)
		}

		if result.Success {
			metrics.ActionsTotal.WithLabelValues(name, "success").Inc()
			l.logger.NoticeWithAction(name, "Completed (%d transactions)", result.Submitted())
			return
		}
		metrics.ActionsTotal.WithLabelValues(name, "failure").Inc()
		l.logger.ErrorWithAction(name, "Failed: %v", result.Err)
	}()

	if err := body(&result); err != nil {
		result.Err = classify(err)
		return result
	}
	result.Success = true
	return result
}

// classify wraps errors outside the known failure kinds with ErrUnexpected
func classify(err error) error {
	var lookupErr *tokens.LookupError
	var outcomeErr *OutcomeError
	switch {
	case errors.As(err, &lookupErr),
		errors.As(err, &outcomeErr),
		errors.Is(err, amount.ErrInvalidAmount):
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnexpected, err)
}

func (l *Library) deadlineAt() *big.Int {
	return big.NewInt(l.now().Add(l.deadline).Unix())
}

// toMinimumUnits converts a slippage floor, where an empty value accepts any output
func toMinimumUnits(value string, token tokens.Token) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	return toBaseUnits(value, token)
}

func toBaseUnits(value string, token tokens.Token) (*big.Int, error) {
	units, err := amount.ToBaseUnits(value, token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("%s amount %q: %w", token.Symbol, value, err)
	}
	return units, nil
}
