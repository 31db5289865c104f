package tokens

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Token describes an ERC20 token known to the runner
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// LookupError is returned when a symbol is not present in the registry
type LookupError struct {
	Symbol string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("token %s not found in registry", e.Symbol)
}

// Registry is an immutable set of tokens keyed by symbol
type Registry struct {
	tokens map[string]Token
}

// NewRegistry creates a registry from a list of tokens, rejecting duplicates and zero addresses
func NewRegistry(list []Token) (*Registry, error) {
	tokens := make(map[string]Token, len(list))
	for _, token := range list {
		if token.Symbol == "" {
			return nil, fmt.Errorf("token with address %s has an empty symbol", token.Address.Hex())
		}
		if token.Address == (common.Address{}) {
			return nil, fmt.Errorf("token %s has a zero address", token.Symbol)
		}
		if _, exists := tokens[token.Symbol]; exists {
			return nil, fmt.Errorf("duplicate token symbol: %s", token.Symbol)
		}
		tokens[token.Symbol] = token
	}
	return &Registry{tokens: tokens}, nil
}

// Lookup returns the token for a symbol
func (r *Registry) Lookup(symbol string) (Token, error) {
	token, exists := r.tokens[symbol]
	if !exists {
		return Token{}, &LookupError{Symbol: symbol}
	}
	return token, nil
}

// Symbols returns the sorted list of registered symbols
func (r *Registry) Symbols() []string {
	symbols := make([]string, 0, len(r.tokens))
	for symbol := range r.tokens {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Len returns the number of registered tokens
func (r *Registry) Len() int {
	return len(r.tokens)
}
