package allowance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/cyclerunner/pkg/amount"
	"github.com/speedrun-hq/cyclerunner/pkg/contracts"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
	"github.com/speedrun-hq/cyclerunner/pkg/metrics"
	"github.com/speedrun-hq/cyclerunner/pkg/tokens"
)

// Reader reads ERC-20 allowances
type Reader interface {
	ReadAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Submitter executes transaction intents
type Submitter interface {
	Execute(ctx context.Context, intent executor.Intent) executor.Outcome
}

// Guard makes sure a spender may move at least a required amount of the owner's tokens
type Guard struct {
	reader    Reader
	submitter Submitter
	owner     common.Address
	logger    logger.Logger
}

// NewGuard creates a new allowance guard for the owner account
func NewGuard(reader Reader, submitter Submitter, owner common.Address, log logger.Logger) *Guard {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Guard{
		reader:    reader,
		submitter: submitter,
		owner:     owner,
		logger:    log,
	}
}

// Ensure approves exactly the required amount when the current allowance is lower.
// It submits at most one transaction and returns a synthetic success when none is needed.
func (g *Guard) Ensure(ctx context.Context, token tokens.Token, spender common.Address, required *big.Int) executor.Outcome {
	if required == nil || required.Sign() < 0 {
		return executor.Failed(logger.TagApprove, fmt.Errorf("%w: required allowance must be non-negative", amount.ErrInvalidAmount))
	}

	current, err := g.reader.ReadAllowance(ctx, token.Address, g.owner, spender)
	if err != nil {
		g.logger.ErrorWithAction(logger.TagApprove, "failed to read %s allowance: %v", token.Symbol, err)
		return executor.Failed(logger.TagApprove, fmt.Errorf("failed to read %s allowance: %w", token.Symbol, err))
	}

	if current.Cmp(required) >= 0 {
		g.logger.DebugWithAction(logger.TagApprove, "%s allowance %s is sufficient for %s",
			token.Symbol, amount.FromBaseUnits(current, token.Decimals), amount.FromBaseUnits(required, token.Decimals))
		metrics.ApprovalsSkipped.WithLabelValues(token.Symbol).Inc()
		return executor.Skipped(logger.TagApprove)
	}

	g.logger.InfoWithAction(logger.TagApprove, "approving %s %s for %s",
		amount.FromBaseUnits(required, token.Decimals), token.Symbol, spender.Hex())

	data, err := contracts.PackApprove(spender, required)
	if err != nil {
		return executor.Failed(logger.TagApprove, fmt.Errorf("failed to encode approve: %w", err))
	}

	return g.submitter.Execute(ctx, executor.Intent{
		Label: logger.TagApprove,
		To:    token.Address,
		Data:  data,
	})
}
