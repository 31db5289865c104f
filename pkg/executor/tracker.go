package executor

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionStatus represents the status of a tracked transaction
type TransactionStatus int

const (
	// TxPending indicates transaction is pending
	TxPending TransactionStatus = iota
	// TxConfirmed indicates transaction is confirmed
	TxConfirmed
	// TxFailed indicates transaction was mined and reverted
	TxFailed
	// TxTimedOut indicates no receipt arrived in time
	TxTimedOut
)

func (s TransactionStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	case TxTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// defaultHistorySize bounds the number of finished transactions kept for status reporting
const defaultHistorySize = 50

// TransactionRecord tracks details about a transaction
type TransactionRecord struct {
	Label     string            `json:"label"`
	Hash      common.Hash       `json:"hash"`
	Nonce     uint64            `json:"nonce"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Status    TransactionStatus `json:"-"`
	State     string            `json:"status"`
}

// Tracker keeps the broadcast transactions of the single identity by nonce
type Tracker struct {
	pending     map[uint64]*TransactionRecord
	history     []TransactionRecord
	historySize int
	now         func() time.Time
	mu          sync.Mutex
}

// NewTracker creates a new transaction tracker
func NewTracker() *Tracker {
	return &Tracker{
		pending:     make(map[uint64]*TransactionRecord),
		historySize: defaultHistorySize,
		now:         time.Now,
	}
}

// Track records a newly broadcast transaction
func (t *Tracker) Track(label string, hash common.Hash, nonce uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.pending[nonce] = &TransactionRecord{
		Label:     label,
		Hash:      hash,
		Nonce:     nonce,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    TxPending,
		State:     TxPending.String(),
	}
}

// MarkConfirmed marks a transaction as confirmed
func (t *Tracker) MarkConfirmed(nonce uint64) bool {
	return t.finish(nonce, TxConfirmed)
}

// MarkFailed marks a transaction as mined but reverted
func (t *Tracker) MarkFailed(nonce uint64) bool {
	return t.finish(nonce, TxFailed)
}

// MarkTimedOut stops tracking a transaction whose receipt did not arrive in time
func (t *Tracker) MarkTimedOut(nonce uint64) bool {
	return t.finish(nonce, TxTimedOut)
}

func (t *Tracker) finish(nonce uint64, status TransactionStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.pending[nonce]
	if !exists {
		return false
	}
	delete(t.pending, nonce)

	record.Status = status
	record.State = status.String()
	record.UpdatedAt = t.now()

	t.history = append(t.history, *record)
	if len(t.history) > t.historySize {
		t.history = t.history[len(t.history)-t.historySize:]
	}
	return true
}

// PendingCount returns the number of transactions awaiting a receipt
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Recent returns finished transactions, newest first
func (t *Tracker) Recent() []TransactionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TransactionRecord, len(t.history))
	for i, record := range t.history {
		out[len(t.history)-1-i] = record
	}
	return out
}
