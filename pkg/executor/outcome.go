package executor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the terminal classification of a single transaction
type Status int

const (
	// StatusSuccess indicates the transaction was mined and succeeded, or that no transaction was needed
	StatusSuccess Status = iota
	// StatusReverted indicates the transaction was mined but the contract call failed
	StatusReverted
	// StatusEstimationFailed indicates gas estimation failed. Execute never returns it since
	// the fallback gas limit is always substituted; it is used as an error label.
	StatusEstimationFailed
	// StatusSubmissionFailed indicates nothing reached the network
	StatusSubmissionFailed
	// StatusTimedOut indicates no receipt arrived within the confirmation timeout
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusReverted:
		return "reverted"
	case StatusEstimationFailed:
		return "estimation_failed"
	case StatusSubmissionFailed:
		return "submission_failed"
	case StatusTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Intent describes one contract call before it is signed
type Intent struct {
	Label string
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Outcome is the result of executing an Intent
type Outcome struct {
	Label              string
	Hash               common.Hash
	Nonce              uint64
	BlockNumber        *uint64
	GasUsed            uint64
	GasLimit           uint64
	Status             Status
	EstimationFallback bool
	Err                error
}

// Succeeded reports whether the outcome allows dependent steps to proceed
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Submitted reports whether a transaction was broadcast
func (o Outcome) Submitted() bool {
	return o.Hash != (common.Hash{})
}

// Skipped returns a synthetic success for a step that needed no transaction
func Skipped(label string) Outcome {
	return Outcome{Label: label, Status: StatusSuccess}
}

// Failed returns an outcome for a step that failed before anything was broadcast
func Failed(label string, err error) Outcome {
	return Outcome{Label: label, Status: StatusSubmissionFailed, Err: err}
}
