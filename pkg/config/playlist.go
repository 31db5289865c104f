package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/speedrun-hq/cyclerunner/pkg/amount"
	"github.com/speedrun-hq/cyclerunner/pkg/tokens"
)

// Playlist step kinds
const (
	ActionClaimFaucet  = "claim_faucet"
	ActionSwap         = "swap"
	ActionAddLiquidity = "add_liquidity"
	ActionStake        = "stake"
	ActionClaimRewards = "claim_rewards"
)

// TokenConfig is a token registry entry in the playlist file
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// Step is one playlist entry: an action with its parameters and the delay that follows it
type Step struct {
	Action string        `yaml:"action"`
	Delay  time.Duration `yaml:"delay"`

	// swap
	TokenIn      string `yaml:"token_in,omitempty"`
	TokenOut     string `yaml:"token_out,omitempty"`
	Amount       string `yaml:"amount,omitempty"`
	MinAmountOut string `yaml:"min_amount_out,omitempty"`

	// add_liquidity
	TokenA     string `yaml:"token_a,omitempty"`
	TokenB     string `yaml:"token_b,omitempty"`
	AmountA    string `yaml:"amount_a,omitempty"`
	AmountB    string `yaml:"amount_b,omitempty"`
	MinAmountA string `yaml:"min_amount_a,omitempty"`
	MinAmountB string `yaml:"min_amount_b,omitempty"`

	// stake
	Token string `yaml:"token,omitempty"`
}

// Playlist is the content of the playlist file
type Playlist struct {
	Tokens []TokenConfig `yaml:"tokens"`
	Steps  []Step        `yaml:"steps"`
}

// DefaultSteps returns the playlist used when the file defines no steps
func DefaultSteps() []Step {
	return []Step{
		{Action: ActionClaimFaucet, Delay: 15 * time.Second},
		{Action: ActionSwap, TokenIn: "test_ZEAL", TokenOut: "test_NACHO", Amount: "0.001", Delay: 30 * time.Second},
		{Action: ActionSwap, TokenIn: "test_NACHO", TokenOut: "test_ZEAL", Amount: "0.0005", Delay: 30 * time.Second},
		{Action: ActionClaimRewards, Delay: 60 * time.Second},
	}
}

// LoadPlaylist reads and validates a playlist file
func LoadPlaylist(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist file %s: %w", path, err)
	}
	return ParsePlaylist(data)
}

// ParsePlaylist decodes and validates playlist YAML
func ParsePlaylist(data []byte) (*Playlist, error) {
	var playlist Playlist
	if err := yaml.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}
	if len(playlist.Steps) == 0 {
		playlist.Steps = DefaultSteps()
	}
	if err := playlist.Validate(); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Registry builds the token registry described by the playlist
func (p *Playlist) Registry() (*tokens.Registry, error) {
	list := make([]tokens.Token, 0, len(p.Tokens))
	for _, token := range p.Tokens {
		list = append(list, tokens.Token{
			Symbol:   token.Symbol,
			Address:  common.HexToAddress(token.Address),
			Decimals: token.Decimals,
		})
	}
	return tokens.NewRegistry(list)
}

// Validate checks the token entries and every step.
// Token symbols used by steps are resolved when the step runs.
func (p *Playlist) Validate() error {
	if len(p.Tokens) == 0 {
		return errors.New("playlist must define at least one token")
	}
	for i, token := range p.Tokens {
		if strings.TrimSpace(token.Symbol) == "" {
			return fmt.Errorf("token %d: symbol is required", i)
		}
		if !common.IsHexAddress(token.Address) {
			return fmt.Errorf("token %s: invalid address %q", token.Symbol, token.Address)
		}
	}
	if _, err := p.Registry(); err != nil {
		return err
	}

	for i, step := range p.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}
	return nil
}

// Validate checks that the step kind is known and its parameters are present and well formed
func (s Step) Validate() error {
	if s.Delay < 0 {
		return errors.New("delay must not be negative")
	}

	switch s.Action {
	case ActionClaimFaucet, ActionClaimRewards:
		return nil
	case ActionSwap:
		return requireFields(
			field{"token_in", s.TokenIn, false},
			field{"token_out", s.TokenOut, false},
			field{"amount", s.Amount, true},
			field{"min_amount_out", s.MinAmountOut, true},
		)
	case ActionAddLiquidity:
		return requireFields(
			field{"token_a", s.TokenA, false},
			field{"token_b", s.TokenB, false},
			field{"amount_a", s.AmountA, true},
			field{"amount_b", s.AmountB, true},
			field{"min_amount_a", s.MinAmountA, true},
			field{"min_amount_b", s.MinAmountB, true},
		)
	case ActionStake:
		return requireFields(
			field{"token", s.Token, false},
			field{"amount", s.Amount, true},
		)
	case "":
		return errors.New("action is required")
	}
	return fmt.Errorf("unknown action %q", s.Action)
}

type field struct {
	name    string
	value   string
	decimal bool
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		// minimum amounts are optional and default to zero
		optional := strings.HasPrefix(f.name, "min_")
		if strings.TrimSpace(f.value) == "" {
			if optional {
				continue
			}
			return fmt.Errorf("%s is required", f.name)
		}
		if f.decimal {
			if _, err := amount.ToBaseUnits(f.value, 0); err != nil {
				return fmt.Errorf("%s: %w", f.name, err)
			}
		}
	}
	return nil
}
