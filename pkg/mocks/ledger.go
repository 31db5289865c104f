package mocks

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/speedrun-hq/cyclerunner/pkg/contracts"
)

// ErrTransactionNotFound is returned when waiting for a transaction that was never sent
var ErrTransactionNotFound = errors.New("transaction not found")

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// MockLedger is an in-memory ledger client. Sent transactions are mined immediately,
// and successful approve calls update the stored allowances.
type MockLedger struct {
	ChainIDValue *big.Int
	GasPrice     *big.Int
	GasEstimate  uint64
	GasUsed      uint64
	Nonce        uint64

	ChainIDErr   error
	EstimateErr  error
	GasPriceErr  error
	NonceErr     error
	SendErr      error
	WaitErr      error
	AllowanceErr error

	// StatusFor decides the receipt status of a mined transaction, success when nil
	StatusFor func(tx *types.Transaction) uint64

	Sent           []*types.Transaction
	Estimates      []ethereum.CallMsg
	AllowanceReads int
	WaitTimeouts   []time.Duration

	allowances  map[allowanceKey]*big.Int
	receipts    map[common.Hash]*types.Receipt
	blockNumber uint64
	mu          sync.Mutex
}

// NewMockLedger creates a new mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{
		ChainIDValue: big.NewInt(167012),
		GasPrice:     big.NewInt(2000000000), // 2 Gwei
		GasEstimate:  100000,
		GasUsed:      50000,
		allowances:   make(map[allowanceKey]*big.Int),
		receipts:     make(map[common.Hash]*types.Receipt),
		blockNumber:  1000,
	}
}

// SetAllowance sets the allowance granted by owner to spender on token
func (m *MockLedger) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

// Allowance returns the stored allowance
func (m *MockLedger) Allowance(token, owner, spender common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowanceLocked(token, owner, spender)
}

func (m *MockLedger) allowanceLocked(token, owner, spender common.Address) *big.Int {
	if amount, ok := m.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

// SentCount returns the number of broadcast transactions
func (m *MockLedger) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// ChainID returns the configured chain id
func (m *MockLedger) ChainID(_ context.Context) (*big.Int, error) {
	if m.ChainIDErr != nil {
		return nil, m.ChainIDErr
	}
	return new(big.Int).Set(m.ChainIDValue), nil
}

// EstimateGas records the call and returns the configured estimate
func (m *MockLedger) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Estimates = append(m.Estimates, msg)
	if m.EstimateErr != nil {
		return 0, m.EstimateErr
	}
	return m.GasEstimate, nil
}

// SuggestGasPrice returns the configured gas price
func (m *MockLedger) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	if m.GasPriceErr != nil {
		return nil, m.GasPriceErr
	}
	return new(big.Int).Set(m.GasPrice), nil
}

// PendingNonceAt returns the next nonce of the account
func (m *MockLedger) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NonceErr != nil {
		return 0, m.NonceErr
	}
	return m.Nonce, nil
}

// SendTransaction mines the transaction into its own block
func (m *MockLedger) SendTransaction(_ context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}

	m.Sent = append(m.Sent, tx)
	m.Nonce++
	m.blockNumber++

	status := types.ReceiptStatusSuccessful
	if m.StatusFor != nil {
		status = m.StatusFor(tx)
	}
	if status == types.ReceiptStatusSuccessful {
		m.applyApproval(tx)
	}

	m.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		GasUsed:     m.GasUsed,
		BlockNumber: new(big.Int).SetUint64(m.blockNumber),
	}
	return nil
}

func (m *MockLedger) applyApproval(tx *types.Transaction) {
	data := tx.Data()
	method := contracts.ERC20.Methods["approve"]
	if tx.To() == nil || len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 2 {
		return
	}
	owner, err := types.Sender(types.LatestSignerForChainID(m.ChainIDValue), tx)
	if err != nil {
		return
	}
	spender, _ := args[0].(common.Address)
	amount, _ := args[1].(*big.Int)
	if amount == nil {
		return
	}
	m.allowances[allowanceKey{*tx.To(), owner, spender}] = new(big.Int).Set(amount)
}

// WaitForReceipt returns the receipt of a previously sent transaction
func (m *MockLedger) WaitForReceipt(_ context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WaitTimeouts = append(m.WaitTimeouts, timeout)
	if m.WaitErr != nil {
		return nil, m.WaitErr
	}
	receipt, ok := m.receipts[hash]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return receipt, nil
}

// ReadAllowance returns the stored allowance
func (m *MockLedger) ReadAllowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AllowanceReads++
	if m.AllowanceErr != nil {
		return nil, m.AllowanceErr
	}
	return m.allowanceLocked(token, owner, spender), nil
}

// MethodOf returns the name of the contract method a sent transaction calls
func MethodOf(tx *types.Transaction) string {
	data := tx.Data()
	if len(data) < 4 {
		return ""
	}
	for _, parsed := range []*abi.ABI{&contracts.ERC20, &contracts.Router, &contracts.Staking, &contracts.Faucet} {
		if method, err := parsed.MethodById(data[:4]); err == nil {
			return method.Name
		}
	}
	return ""
}
