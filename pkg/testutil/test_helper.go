package testutil

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/cyclerunner/pkg/tokens"
	"github.com/speedrun-hq/cyclerunner/pkg/wallet"
)

// Constants for testing
const (
	DefaultTestTimeout = 5 * time.Second
)

// Fixed contract addresses used across tests
var (
	RouterAddress  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	StakingAddress = common.HexToAddress("0x1000000000000000000000000000000000000002")
	FaucetAddress  = common.HexToAddress("0x1000000000000000000000000000000000000003")
	ZealAddress    = common.HexToAddress("0x2000000000000000000000000000000000000001")
	NachoAddress   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	LPAddress      = common.HexToAddress("0x2000000000000000000000000000000000000003")
)

// NewIdentity creates a random identity for testing
func NewIdentity(t *testing.T) *wallet.Identity {
	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err, "Failed to generate private key")
	return wallet.FromKey(privateKey)
}

// NewRegistry creates the token registry used by action and scheduler tests
func NewRegistry(t *testing.T) *tokens.Registry {
	registry, err := tokens.NewRegistry([]tokens.Token{
		{Symbol: "test_ZEAL", Address: ZealAddress, Decimals: 18},
		{Symbol: "test_NACHO", Address: NachoAddress, Decimals: 6},
		{Symbol: "ZEAL_NACHO_LP", Address: LPAddress, Decimals: 18},
	})
	require.NoError(t, err, "Failed to create registry")
	return registry
}

// SetupSimulation creates a simulated blockchain with a funded identity
func SetupSimulation(t *testing.T) (*simulated.Backend, *wallet.Identity) {
	identity := NewIdentity(t)

	// Fund the account with some initial balance
	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH
	//nolint:SA1019 // Using deprecated GenesisAccount for compatibility
	genesisAlloc := map[common.Address]core.GenesisAccount{
		identity.Address(): {
			Balance: balance,
		},
	}

	sim := simulated.NewBackend(genesisAlloc)
	t.Cleanup(func() {
		_ = sim.Close()
	})

	return sim, identity
}

// GenerateAddress creates a random address for testing
func GenerateAddress() common.Address {
	privateKey, _ := crypto.GenerateKey()
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// CreateBigInt parses a string into a big.Int
func CreateBigInt(value string) *big.Int {
	result := new(big.Int)
	result.SetString(value, 10)
	return result
}

// AssertBigIntEqual compares two big.Int values for equality in tests
func AssertBigIntEqual(t *testing.T, expected, actual *big.Int, msgAndArgs ...interface{}) {
	if expected == nil && actual == nil {
		return
	}

	if (expected == nil && actual != nil) || (expected != nil && actual == nil) {
		assert.Fail(t, "Values not equal", msgAndArgs...)
		return
	}

	assert.Equal(t, 0, expected.Cmp(actual), msgAndArgs...)
}

// SetupTestWithTimeout creates a context bounded by DefaultTestTimeout
func SetupTestWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	t.Cleanup(cancel)
	return ctx
}
