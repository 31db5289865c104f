package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/cyclerunner/pkg/actions"
	"github.com/speedrun-hq/cyclerunner/pkg/allowance"
	"github.com/speedrun-hq/cyclerunner/pkg/amount"
	"github.com/speedrun-hq/cyclerunner/pkg/chainclient"
	"github.com/speedrun-hq/cyclerunner/pkg/config"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/health"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
	"github.com/speedrun-hq/cyclerunner/pkg/scheduler"
	"github.com/speedrun-hq/cyclerunner/pkg/tokens"
	"github.com/speedrun-hq/cyclerunner/pkg/wallet"
)

// Service wires the chain client, executor, actions and scheduler together
type Service struct {
	config    *config.Config
	client    *chainclient.Client
	identity  *wallet.Identity
	registry  *tokens.Registry
	executor  *executor.Executor
	library   *actions.Library
	scheduler *scheduler.Scheduler
	health    *health.Server
	logger    logger.Logger
}

// NewService connects to the configured RPC endpoint and builds the service.
// Configuration and connectivity failures are returned as *config.ConfigurationError.
func NewService(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...scheduler.Option) (*Service, error) {
	client, err := chainclient.New(ctx, cfg.RPCURL, cfg.Transactions.ReceiptPollInterval, log)
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}
	return NewWithClient(ctx, cfg, client, log, opts...)
}

// NewWithClient builds the service over an existing chain client
func NewWithClient(ctx context.Context, cfg *config.Config, client *chainclient.Client, log logger.Logger, opts ...scheduler.Option) (*Service, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	identity, err := wallet.NewIdentity(cfg.PrivateKey, cfg.ExpectedAddress)
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	registry, err := cfg.Playlist.Registry()
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	exec, err := executor.New(ctx, client, identity, executor.Config{
		FallbackGasLimit:   cfg.Transactions.FallbackGasLimit,
		GasLimitMultiplier: cfg.Transactions.GasLimitMultiplier,
		GasPriceMultiplier: cfg.Transactions.GasPriceMultiplier,
		ReceiptTimeout:     cfg.Transactions.ReceiptTimeout,
	}, log)
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	guard := allowance.NewGuard(client, exec, identity.Address(), log)
	library := actions.NewLibrary(
		exec,
		guard,
		registry,
		cfg.Contracts,
		identity.Address(),
		cfg.Transactions.SwapDeadline,
		actions.WithLogger(log),
	)

	steps, err := scheduler.BuildSteps(cfg.Playlist.Steps)
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}
	sched := scheduler.New(library, steps, scheduler.Config{
		CycleDuration:   cfg.Schedule.CycleDuration,
		InterCycleDelay: cfg.Schedule.InterCycleDelay,
		CircuitBreaker:  cfg.CircuitBreaker,
	}, log, opts...)

	s := &Service{
		config:    cfg,
		client:    client,
		identity:  identity,
		registry:  registry,
		executor:  exec,
		library:   library,
		scheduler: sched,
		logger:    log,
	}

	if cfg.MetricsPort != "" {
		s.health = health.NewServer(cfg.MetricsPort, cfg.MetricsAPIKey, health.Dependencies{
			Scheduler:    sched,
			Transactions: exec.Tracker(),
			Chain:        client,
			Registry:     registry,
			Owner:        identity.Address(),
		}, log)
	}

	log.Info("Bot connected with address: %s (chain %s)", identity.Address().Hex(), exec.ChainID())
	return s, nil
}

// Address returns the bot account address
func (s *Service) Address() common.Address {
	return s.identity.Address()
}

// Scheduler returns the cycle scheduler
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Start runs the scheduler, and the health server when configured, until the context is cancelled
func (s *Service) Start(ctx context.Context) error {
	if s.health != nil {
		go func() {
			if err := s.health.Start(ctx); err != nil {
				s.logger.Error("%v", err)
			}
		}()
	}

	return s.scheduler.Run(ctx)
}

// RunOnce runs a single playlist pass without the inter-cycle delay
func (s *Service) RunOnce(ctx context.Context) scheduler.PassReport {
	return s.scheduler.RunPass(ctx)
}

// TokenCheck is the on-chain view of a configured token
type TokenCheck struct {
	Symbol             string
	Address            common.Address
	ConfiguredDecimals uint8
	OnChainDecimals    *uint8
	Balance            string
	Err                error
}

// CheckReport summarizes connectivity and token configuration
type CheckReport struct {
	Address     common.Address
	ChainID     *big.Int
	LatestBlock uint64
	Steps       int
	Tokens      []TokenCheck
}

// Check verifies connectivity and compares the configured tokens with their contracts
func (s *Service) Check(ctx context.Context) (*CheckReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	block, err := s.client.GetLatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest block: %w", err)
	}

	report := &CheckReport{
		Address:     s.identity.Address(),
		ChainID:     s.executor.ChainID(),
		LatestBlock: block,
		Steps:       len(s.config.Playlist.Steps),
	}

	for _, symbol := range s.registry.Symbols() {
		token, err := s.registry.Lookup(symbol)
		if err != nil {
			continue
		}
		check := TokenCheck{
			Symbol:             token.Symbol,
			Address:            token.Address,
			ConfiguredDecimals: token.Decimals,
		}

		decimals, err := s.client.ReadDecimals(ctx, token.Address)
		if err != nil {
			check.Err = err
			report.Tokens = append(report.Tokens, check)
			continue
		}
		check.OnChainDecimals = &decimals
		if decimals != token.Decimals {
			check.Err = fmt.Errorf("configured decimals %d differ from on-chain decimals %d", token.Decimals, decimals)
		}

		balance, err := s.client.ReadBalance(ctx, token.Address, s.identity.Address())
		if err != nil {
			check.Err = err
		} else {
			check.Balance = amount.FromBaseUnits(balance, token.Decimals)
		}
		report.Tokens = append(report.Tokens, check)
	}

	return report, nil
}
