package config

import (
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/speedrun-hq/cyclerunner/pkg/logger"
)

// Config holds the configuration for the cycle bot
type Config struct {
	RPCURL          string
	PrivateKey      string
	ExpectedAddress string
	Contracts       ContractsConfig
	PlaylistFile    string
	Playlist        *Playlist
	Transactions    TransactionConfig
	Schedule        ScheduleConfig
	CircuitBreaker  CircuitBreakerConfig
	MetricsPort     string
	MetricsAPIKey   string
	LoggerConfig    LoggerConfig
}

// ContractsConfig holds the addresses of the contracts the actions call
type ContractsConfig struct {
	Router  common.Address
	Staking common.Address
	Faucet  common.Address
}

// TransactionConfig holds the transaction submission policy
type TransactionConfig struct {
	FallbackGasLimit    uint64
	GasPriceMultiplier  float64
	GasLimitMultiplier  float64
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	SwapDeadline        time.Duration
}

// ScheduleConfig holds the cycle timing
type ScheduleConfig struct {
	CycleDuration   time.Duration
	InterCycleDelay time.Duration
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables and the playlist file.
// envFiles default to .env; every failure is returned as a *ConfigurationError.
func LoadConfig(envFiles ...string) (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(envFiles...); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := loadFromEnv()
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	return cfg, nil
}

func loadFromEnv() (*Config, error) {
	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	privateKey, err := GetEnvPrivateKey()
	if err != nil {
		return nil, err
	}

	expectedAddress, err := GetEnvExpectedAddress()
	if err != nil {
		return nil, err
	}

	router, err := GetEnvContractAddress("DEX_ROUTER_ADDRESS")
	if err != nil {
		return nil, err
	}

	staking, err := GetEnvContractAddress("STAKING_CONTRACT_ADDRESS")
	if err != nil {
		return nil, err
	}

	faucet, err := GetEnvContractAddress("FAUCET_CONTRACT_ADDRESS")
	if err != nil {
		return nil, err
	}

	fallbackGasLimit, err := GetEnvFallbackGasLimit()
	if err != nil {
		return nil, err
	}

	gasPriceMultiplier, err := GetEnvGasPriceMultiplier()
	if err != nil {
		return nil, err
	}

	gasLimitMultiplier, err := GetEnvGasLimitMultiplier()
	if err != nil {
		return nil, err
	}

	receiptTimeout, err := GetEnvReceiptTimeout()
	if err != nil {
		return nil, err
	}

	receiptPollInterval, err := GetEnvReceiptPollInterval()
	if err != nil {
		return nil, err
	}

	swapDeadline, err := GetEnvSwapDeadline()
	if err != nil {
		return nil, err
	}

	cycleDuration, err := GetEnvCycleDuration()
	if err != nil {
		return nil, err
	}

	interCycleDelay, err := GetEnvInterCycleDelay()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	playlistFile := GetEnvPlaylistFile()
	playlist, err := LoadPlaylist(playlistFile)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCURL:          rpcURL,
		PrivateKey:      privateKey,
		ExpectedAddress: expectedAddress,
		Contracts: ContractsConfig{
			Router:  router,
			Staking: staking,
			Faucet:  faucet,
		},
		PlaylistFile: playlistFile,
		Playlist:     playlist,
		Transactions: TransactionConfig{
			FallbackGasLimit:    fallbackGasLimit,
			GasPriceMultiplier:  gasPriceMultiplier,
			GasLimitMultiplier:  gasLimitMultiplier,
			ReceiptTimeout:      receiptTimeout,
			ReceiptPollInterval: receiptPollInterval,
			SwapDeadline:        swapDeadline,
		},
		Schedule: ScheduleConfig{
			CycleDuration:   cycleDuration,
			InterCycleDelay: interCycleDelay,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		MetricsPort:   metricsPort,
		MetricsAPIKey: GetEnvMetricsAPIKey(),
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	return cfg, nil
}
