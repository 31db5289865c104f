package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Identity is the single signing account used by the runner
type Identity struct {
	address    common.Address
	privateKey *ecdsa.PrivateKey
}

// NewIdentity parses a hex private key (with or without 0x prefix).
// If expectedAddress is non-empty it must match the address derived from the key.
func NewIdentity(privateKeyHex string, expectedAddress string) (*Identity, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}

	identity := FromKey(privateKey)

	if expectedAddress != "" {
		if !common.IsHexAddress(expectedAddress) {
			return nil, fmt.Errorf("invalid expected address: %s", expectedAddress)
		}
		if common.HexToAddress(expectedAddress) != identity.address {
			return nil, fmt.Errorf("private key belongs to %s, not %s", identity.address.Hex(), expectedAddress)
		}
	}

	return identity, nil
}

// FromKey wraps an already parsed private key
func FromKey(privateKey *ecdsa.PrivateKey) *Identity {
	return &Identity{
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		privateKey: privateKey,
	}
}

// Address returns the account address
func (i *Identity) Address() common.Address {
	return i.address
}

// Sign signs a transaction for the given chain
func (i *Identity) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("cannot sign nil transaction")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id: %v", chainID)
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), i.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}
	return signed, nil
}
