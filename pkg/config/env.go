package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/speedrun-hq/cyclerunner/pkg/logger"
)

const (
	// DefaultPlaylistFile is the YAML file holding the token registry and the playlist
	DefaultPlaylistFile = "playlist.yaml"

	// DefaultFallbackGasLimit is used when gas estimation fails
	DefaultFallbackGasLimit = 3_000_000

	// DefaultGasPriceMultiplier scales the suggested gas price
	DefaultGasPriceMultiplier = 1.0

	// DefaultGasLimitMultiplier pads successful gas estimates
	DefaultGasLimitMultiplier = 1.0

	// DefaultReceiptTimeout bounds the wait for a receipt
	DefaultReceiptTimeout = 60 * time.Second

	// DefaultReceiptPollInterval is the delay between receipt lookups
	DefaultReceiptPollInterval = 2 * time.Second

	// DefaultSwapDeadline is added to the current time to form router deadlines
	DefaultSwapDeadline = 300 * time.Second

	// DefaultCycleDuration is the length of a logical cycle
	DefaultCycleDuration = 24 * time.Hour

	// DefaultInterCycleDelay is the pause between playlist passes
	DefaultInterCycleDelay = 5 * time.Minute

	// DefaultCircuitBreakerEnabled defines whether the per-action circuit breaker is enabled
	DefaultCircuitBreakerEnabled = false

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = time.Hour

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 6 * time.Hour

	// DefaultLogColoring defines whether action tags are colored
	DefaultLogColoring = true
)

// GetEnvRPCURL returns the RPC endpoint
func GetEnvRPCURL() (string, error) {
	rpcURL := strings.TrimSpace(os.Getenv("RPC_URL"))
	if rpcURL == "" {
		return "", fmt.Errorf("RPC_URL environment variable is required")
	}

	// Validate URL format
	if _, err := url.ParseRequestURI(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s, must be a valid URL", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvPrivateKey returns the signing key
func GetEnvPrivateKey() (string, error) {
	privateKey := strings.TrimSpace(os.Getenv("PRIVATE_KEY"))
	if privateKey == "" {
		return "", fmt.Errorf("PRIVATE_KEY environment variable is required")
	}
	return privateKey, nil
}

// GetEnvExpectedAddress returns the optional address the private key must control
func GetEnvExpectedAddress() (string, error) {
	address := strings.TrimSpace(os.Getenv("YOUR_ADDRESS"))
	if address == "" {
		return "", nil
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid YOUR_ADDRESS value: %s, must be a valid Ethereum address", address)
	}
	return address, nil
}

// GetEnvContractAddress returns a required contract address
func GetEnvContractAddress(name string) (common.Address, error) {
	address := strings.TrimSpace(os.Getenv(name))
	if address == "" {
		return common.Address{}, fmt.Errorf("%s environment variable is required", name)
	}

	// Validate Ethereum address format
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid %s value: %s, must be a valid Ethereum address", name, address)
	}
	parsed := common.HexToAddress(address)
	if parsed == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s must not be the zero address", name)
	}
	return parsed, nil
}

// GetEnvPlaylistFile returns the playlist file path
func GetEnvPlaylistFile() string {
	path := strings.TrimSpace(os.Getenv("PLAYLIST_FILE"))
	if path == "" {
		return DefaultPlaylistFile
	}
	return path
}

// GetEnvFallbackGasLimit returns the gas limit used when estimation fails
func GetEnvFallbackGasLimit() (uint64, error) {
	limit := os.Getenv("FALLBACK_GAS_LIMIT")
	if limit == "" {
		return DefaultFallbackGasLimit, nil
	}

	parsed, err := strconv.ParseUint(limit, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid FALLBACK_GAS_LIMIT value: %s, must be an integer", limit)
	}
	if parsed < 21000 {
		return 0, fmt.Errorf("FALLBACK_GAS_LIMIT must be at least 21000")
	}
	return parsed, nil
}

// GetEnvGasPriceMultiplier returns the gas price multiplier
func GetEnvGasPriceMultiplier() (float64, error) {
	return getEnvMultiplier("GAS_PRICE_MULTIPLIER", DefaultGasPriceMultiplier)
}

// GetEnvGasLimitMultiplier returns the gas limit multiplier
func GetEnvGasLimitMultiplier() (float64, error) {
	return getEnvMultiplier("GAS_LIMIT_MULTIPLIER", DefaultGasLimitMultiplier)
}

func getEnvMultiplier(name string, fallback float64) (float64, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a number", name, value)
	}
	if parsed < 1.0 || parsed > 10.0 {
		return 0, fmt.Errorf("%s must be between 1.0 and 10.0", name)
	}
	return parsed, nil
}

// GetEnvReceiptTimeout returns how long to wait for a receipt
func GetEnvReceiptTimeout() (time.Duration, error) {
	return getEnvDuration("RECEIPT_TIMEOUT", DefaultReceiptTimeout, false)
}

// GetEnvReceiptPollInterval returns the delay between receipt lookups
func GetEnvReceiptPollInterval() (time.Duration, error) {
	return getEnvDuration("RECEIPT_POLL_INTERVAL", DefaultReceiptPollInterval, false)
}

// GetEnvSwapDeadline returns the router deadline offset
func GetEnvSwapDeadline() (time.Duration, error) {
	return getEnvDuration("SWAP_DEADLINE", DefaultSwapDeadline, false)
}

// GetEnvCycleDuration returns the length of a logical cycle
func GetEnvCycleDuration() (time.Duration, error) {
	return getEnvDuration("CYCLE_DURATION", DefaultCycleDuration, false)
}

// GetEnvInterCycleDelay returns the pause between playlist passes
func GetEnvInterCycleDelay() (time.Duration, error) {
	return getEnvDuration("INTER_CYCLE_DELAY", DefaultInterCycleDelay, true)
}

// getEnvDuration accepts a duration string or a bare number of seconds
func getEnvDuration(name string, fallback time.Duration, allowZero bool) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}

	parsed, err := parseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", name, value)
	}
	if parsed < 0 || (parsed == 0 && !allowZero) {
		return 0, fmt.Errorf("%s must be greater than 0", name)
	}
	return parsed, nil
}

func parseDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow, false)
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset, false)
}

// GetEnvMetricsPort returns the metrics server port, empty when the server is disabled
func GetEnvMetricsPort() (string, error) {
	metricsPort := strings.TrimSpace(os.Getenv("METRICS_PORT"))
	if metricsPort == "" {
		return "", nil
	}

	// Validate port format
	port, err := strconv.Atoi(metricsPort)
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid port number", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvMetricsAPIKey returns the bearer token protecting /metrics
func GetEnvMetricsAPIKey() string {
	return os.Getenv("METRICS_API_KEY")
}

// GetEnvLogLevel returns the log level
func GetEnvLogLevel() (logger.Level, error) {
	level, err := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %w", err)
	}
	return level, nil
}

// GetEnvLogColoring returns whether log tags are colored
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return DefaultLogColoring, nil
	}

	parsed, err := strconv.ParseBool(coloring)
	if err != nil {
		return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
	}
	return parsed, nil
}
