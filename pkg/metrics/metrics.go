package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclerunner_transactions_total",
		Help: "The total number of executed transactions by label and outcome status",
	}, []string{"label", "status"})

	TransactionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclerunner_transaction_errors_total",
		Help: "Total number of transaction errors by type",
	}, []string{"label", "error_type"})

	ConfirmationTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cyclerunner_confirmation_seconds",
		Help:    "Time from broadcast to receipt",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s .. 128s
	}, []string{"label"})

	GasUsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cyclerunner_gas_used",
		Help:    "Gas used by confirmed transactions",
		Buckets: prometheus.ExponentialBuckets(21000, 2, 10), // Start at 21000 with 10 buckets doubling in size
	}, []string{"label"})

	GasPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclerunner_gas_price_gwei",
		Help: "Gas price used for the last transaction in gwei",
	})

	EstimationFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclerunner_estimation_fallbacks_total",
		Help: "Number of transactions sent with the fallback gas limit",
	}, []string{"label"})

	ApprovalsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclerunner_approvals_skipped_total",
		Help: "Number of allowance checks that found a sufficient allowance",
	}, []string{"token"})

	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclerunner_actions_total",
		Help: "The total number of executed playlist actions by result",
	}, []string{"action", "result"})

	ActionsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cyclerunner_actions_skipped_total",
		Help: "Number of playlist actions skipped because their circuit breaker is open",
	}, []string{"action"})

	PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclerunner_passes_total",
		Help: "The total number of completed playlist passes",
	})

	CycleNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclerunner_cycle_number",
		Help: "The current logical cycle number",
	})

	TokenBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cyclerunner_token_balance",
		Help: "Token balance of the bot account",
	}, []string{"token"})

	PendingTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclerunner_pending_transactions",
		Help: "The number of broadcast transactions still awaiting a receipt",
	})
)
