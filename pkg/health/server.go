package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speedrun-hq/cyclerunner/pkg/amount"
	"github.com/speedrun-hq/cyclerunner/pkg/circuitbreaker"
	"github.com/speedrun-hq/cyclerunner/pkg/executor"
	"github.com/speedrun-hq/cyclerunner/pkg/logger"
	"github.com/speedrun-hq/cyclerunner/pkg/metrics"
	"github.com/speedrun-hq/cyclerunner/pkg/scheduler"
	"github.com/speedrun-hq/cyclerunner/pkg/tokens"
)

const (
	chainCallTimeout = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// SchedulerStatus exposes the scheduler's cycle and breaker state
type SchedulerStatus interface {
	State() scheduler.CycleState
	LastPass() *scheduler.PassReport
	Breakers() []circuitbreaker.State
	ResetBreakers(action string) int
}

// TransactionStatus exposes the executor's transaction bookkeeping
type TransactionStatus interface {
	PendingCount() int
	Recent() []executor.TransactionRecord
}

// ChainStatus reads chain data for the status endpoint
type ChainStatus interface {
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	ReadBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Dependencies are the components the server reports on
type Dependencies struct {
	Scheduler    SchedulerStatus
	Transactions TransactionStatus
	Chain        ChainStatus
	Registry     *tokens.Registry
	Owner        common.Address
}

// Server represents a health check HTTP server
type Server struct {
	port          string
	deps          Dependencies
	metricsAPIKey string
	logger        logger.Logger
}

// NewServer creates a new health check server
func NewServer(port string, metricsAPIKey string, deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Server{
		port:          port,
		deps:          deps,
		metricsAPIKey: metricsAPIKey,
		logger:        log,
	}
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		// Get API key from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		// Check if the header has the correct format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		// Validate API key
		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness check
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), chainCallTimeout)
		defer cancel()

		if _, err := s.deps.Chain.GetLatestBlockNumber(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("Chain not reachable: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	mux.HandleFunc("/status", s.handleStatus)

	// Circuit breaker admin control endpoint
	mux.HandleFunc("/circuit/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		action := r.URL.Query().Get("action")
		if action == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Missing action parameter"))
			return
		}

		if s.deps.Scheduler.ResetBreakers(action) == 0 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(fmt.Sprintf("No circuit breaker for action %s", action)))
			return
		}

		s.logger.NoticeWithAction(action, "Circuit breaker reset via admin endpoint")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf("Circuit breaker for action %s reset", action)))
	})

	// Expose Prometheus metrics with API key authentication
	mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))

	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), chainCallTimeout)
	defer cancel()

	status := map[string]interface{}{
		"address":              s.deps.Owner.Hex(),
		"cycle":                s.deps.Scheduler.State(),
		"last_pass":            s.deps.Scheduler.LastPass(),
		"circuit_breakers":     s.deps.Scheduler.Breakers(),
		"pending_transactions": s.deps.Transactions.PendingCount(),
		"recent_transactions":  s.deps.Transactions.Recent(),
	}

	blockNumber, err := s.deps.Chain.GetLatestBlockNumber(ctx)
	if err == nil {
		status["latest_block"] = blockNumber
	}

	if s.deps.Registry != nil {
		balances := make(map[string]string)
		for _, symbol := range s.deps.Registry.Symbols() {
			token, err := s.deps.Registry.Lookup(symbol)
			if err != nil {
				continue
			}
			balance, err := s.deps.Chain.ReadBalance(ctx, token.Address, s.deps.Owner)
			if err != nil {
				s.logger.Debug("Error reading %s balance: %v", symbol, err)
				continue
			}
			formatted := amount.FromBaseUnits(balance, token.Decimals)
			balances[symbol] = formatted
			recordBalance(symbol, balance, token.Decimals)
		}
		if len(balances) > 0 {
			status["token_balances"] = balances
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("Error encoding status JSON: %v", err)
	}
}

func recordBalance(symbol string, balance *big.Int, decimals uint8) {
	value := new(big.Float).SetInt(balance)
	value.Quo(value, new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)))
	balanceFloat, _ := value.Float64()
	metrics.TokenBalance.WithLabelValues(symbol).Set(balanceFloat)
}

// Start serves until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Starting health and metrics server on port %s", s.port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server error: %w", err)
	}
	return nil
}
