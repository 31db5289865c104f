package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/cyclerunner/pkg/amount"
)

const tokensYAML = `
tokens:
  - symbol: test_ZEAL
    address: "0x2000000000000000000000000000000000000001"
    decimals: 18
  - symbol: test_NACHO
    address: "0x2000000000000000000000000000000000000002"
    decimals: 6
`

func TestParsePlaylistDefaults(t *testing.T) {
	playlist, err := ParsePlaylist([]byte(tokensYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultSteps(), playlist.Steps)
	require.Len(t, playlist.Steps, 4)
	assert.Equal(t, ActionClaimFaucet, playlist.Steps[0].Action)
	assert.Equal(t, 15*time.Second, playlist.Steps[0].Delay)
	assert.Equal(t, "0.0005", playlist.Steps[2].Amount)
	assert.Equal(t, ActionClaimRewards, playlist.Steps[3].Action)
	assert.Equal(t, time.Minute, playlist.Steps[3].Delay)

	registry, err := playlist.Registry()
	require.NoError(t, err)
	nacho, err := registry.Lookup("test_NACHO")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), nacho.Decimals)
}

func TestParsePlaylistSteps(t *testing.T) {
	data := tokensYAML + `
steps:
  - action: swap
    token_in: test_ZEAL
    token_out: test_NACHO
    amount: "0.25"
    min_amount_out: "0.1"
    delay: 45s
  - action: add_liquidity
    token_a: test_ZEAL
    token_b: test_NACHO
    amount_a: "1"
    amount_b: "2"
    delay: 1m
  - action: stake
    token: ZEAL_NACHO_LP
    amount: "0.5"
  - action: claim_rewards
    delay: 2h
`
	playlist, err := ParsePlaylist([]byte(data))
	require.NoError(t, err)
	require.Len(t, playlist.Steps, 4)

	swap := playlist.Steps[0]
	assert.Equal(t, ActionSwap, swap.Action)
	assert.Equal(t, "test_ZEAL", swap.TokenIn)
	assert.Equal(t, "0.1", swap.MinAmountOut)
	assert.Equal(t, 45*time.Second, swap.Delay)

	liquidity := playlist.Steps[1]
	assert.Equal(t, "2", liquidity.AmountB)
	assert.Empty(t, liquidity.MinAmountA)
	assert.Equal(t, time.Minute, liquidity.Delay)

	assert.Equal(t, "ZEAL_NACHO_LP", playlist.Steps[2].Token)
	assert.Equal(t, time.Duration(0), playlist.Steps[2].Delay)
	assert.Equal(t, 2*time.Hour, playlist.Steps[3].Delay)
}

func TestParsePlaylistErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "no tokens",
			data:    "steps:\n  - action: claim_faucet\n",
			wantErr: "at least one token",
		},
		{
			name:    "invalid yaml",
			data:    "tokens: [",
			wantErr: "failed to parse playlist",
		},
		{
			name:    "invalid token address",
			data:    "tokens:\n  - symbol: A\n    address: nope\n    decimals: 18\n",
			wantErr: "invalid address",
		},
		{
			name:    "duplicate token",
			data:    tokensYAML + "  - symbol: test_ZEAL\n    address: \"0x2000000000000000000000000000000000000003\"\n    decimals: 18\n",
			wantErr: "duplicate",
		},
		{
			name:    "unknown action",
			data:    tokensYAML + "steps:\n  - action: bridge\n",
			wantErr: "unknown action",
		},
		{
			name:    "missing action",
			data:    tokensYAML + "steps:\n  - delay: 5s\n",
			wantErr: "action is required",
		},
		{
			name:    "swap without amount",
			data:    tokensYAML + "steps:\n  - action: swap\n    token_in: test_ZEAL\n    token_out: test_NACHO\n",
			wantErr: "amount is required",
		},
		{
			name:    "negative amount",
			data:    tokensYAML + "steps:\n  - action: stake\n    token: test_ZEAL\n    amount: \"-1\"\n",
			wantErr: "amount",
		},
		{
			name:    "invalid delay",
			data:    tokensYAML + "steps:\n  - action: claim_faucet\n    delay: soon\n",
			wantErr: "failed to parse playlist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlaylist([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStepValidateNegativeAmount(t *testing.T) {
	err := Step{Action: ActionSwap, TokenIn: "a", TokenOut: "b", Amount: "-0.5"}.Validate()
	assert.ErrorIs(t, err, amount.ErrInvalidAmount)

	err = Step{Action: ActionClaimFaucet, Delay: -time.Second}.Validate()
	assert.Error(t, err)
}

func TestLoadPlaylist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tokensYAML), 0o600))

	playlist, err := LoadPlaylist(path)
	require.NoError(t, err)
	assert.Len(t, playlist.Tokens, 2)

	_, err = LoadPlaylist(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExamplePlaylist(t *testing.T) {
	playlist, err := LoadPlaylist(filepath.Join("..", "..", "playlist.example.yaml"))
	require.NoError(t, err)

	assert.Len(t, playlist.Tokens, 3)
	require.Len(t, playlist.Steps, 4)
	assert.Equal(t, ActionClaimFaucet, playlist.Steps[0].Action)
	assert.Equal(t, 15*time.Second, playlist.Steps[0].Delay)
	assert.Equal(t, "0.001", playlist.Steps[1].Amount)
	assert.Equal(t, ActionClaimRewards, playlist.Steps[3].Action)
	assert.Equal(t, time.Minute, playlist.Steps[3].Delay)

	registry, err := playlist.Registry()
	require.NoError(t, err)
	_, err = registry.Lookup("ZEAL_NACHO_LP")
	assert.NoError(t, err)
}
