package executor

import (
	"context"
	"errors"
	"strings"
)

// ClassifyError labels a transaction error for logs and metrics.
// It never drives a retry; failed actions are replayed by the next pass.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrReceiptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errStr := strings.ToLower(err.Error())

	// Nonce-related errors, usually another process using the same key
	if strings.Contains(errStr, "nonce too low") ||
		strings.Contains(errStr, "nonce too high") ||
		strings.Contains(errStr, "replacement transaction underpriced") ||
		strings.Contains(errStr, "already known") {
		return "nonce_error"
	}

	// Balance-related errors
	if strings.Contains(errStr, "insufficient funds") ||
		strings.Contains(errStr, "insufficient balance") ||
		strings.Contains(errStr, "transfer amount exceeds") {
		return "insufficient_balance"
	}

	// Gas-related errors
	if strings.Contains(errStr, "gas required exceeds allowance") ||
		strings.Contains(errStr, "intrinsic gas too low") ||
		strings.Contains(errStr, "gas price too low") ||
		strings.Contains(errStr, "max fee per gas less than block base fee") ||
		strings.Contains(errStr, "exceeds block gas limit") {
		return "gas_error"
	}

	// Contract-related errors
	if strings.Contains(errStr, "execution reverted") ||
		strings.Contains(errStr, "invalid opcode") ||
		strings.Contains(errStr, "out of gas") {
		return "contract_error"
	}

	// Network/RPC errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "no response") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "429") {
		return "network_error"
	}

	return "unknown_error"
}
