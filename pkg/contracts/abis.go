package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20ABI contains the token functions needed for allowance checks and approvals
const ERC20ABI = `[
	{
		"constant": true,
		"inputs": [
			{"name": "_owner", "type": "address"},
			{"name": "_spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "_spender", "type": "address"},
			{"name": "_value", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "_owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// RouterABI is the subset of a UniswapV2-style router used by the runner
const RouterABI = `[
	{
		"inputs": [
			{"name": "amountIn", "type": "uint256"},
			{"name": "amountOutMin", "type": "uint256"},
			{"name": "path", "type": "address[]"},
			{"name": "to", "type": "address"},
			{"name": "deadline", "type": "uint256"}
		],
		"name": "swapExactTokensForTokens",
		"outputs": [{"name": "amounts", "type": "uint256[]"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "tokenA", "type": "address"},
			{"name": "tokenB", "type": "address"},
			{"name": "amountADesired", "type": "uint256"},
			{"name": "amountBDesired", "type": "uint256"},
			{"name": "amountAMin", "type": "uint256"},
			{"name": "amountBMin", "type": "uint256"},
			{"name": "to", "type": "address"},
			{"name": "deadline", "type": "uint256"}
		],
		"name": "addLiquidity",
		"outputs": [
			{"name": "amountA", "type": "uint256"},
			{"name": "amountB", "type": "uint256"},
			{"name": "liquidity", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// StakingABI covers staking LP tokens and claiming rewards
const StakingABI = `[
	{
		"inputs": [{"name": "amount", "type": "uint256"}],
		"name": "stake",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "claimRewards",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// FaucetABI covers the faucet claim
const FaucetABI = `[
	{
		"inputs": [],
		"name": "claimTokens",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var (
	ERC20   = mustParse(ERC20ABI)
	Router  = mustParse(RouterABI)
	Staking = mustParse(StakingABI)
	Faucet  = mustParse(FaucetABI)
)

func mustParse(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return parsed
}

// PackApprove encodes approve(spender, amount)
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("approve", spender, amount)
}

// PackAllowance encodes allowance(owner, spender)
func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return ERC20.Pack("allowance", owner, spender)
}

// UnpackAllowance decodes the result of an allowance call
func UnpackAllowance(data []byte) (*big.Int, error) {
	out, err := ERC20.Unpack("allowance", data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack allowance: %v", err)
	}
	if len(out) == 0 || out[0] == nil {
		return nil, fmt.Errorf("empty allowance response")
	}
	allowance, ok := out[0].(*big.Int)
	if !ok || allowance == nil {
		return nil, fmt.Errorf("invalid allowance format")
	}
	return allowance, nil
}

// PackSwapExactTokensForTokens encodes a router swap along path
func PackSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return Router.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
}

// PackAddLiquidity encodes a router addLiquidity call
func PackAddLiquidity(
	tokenA, tokenB common.Address,
	amountADesired, amountBDesired *big.Int,
	amountAMin, amountBMin *big.Int,
	to common.Address,
	deadline *big.Int,
) ([]byte, error) {
	return Router.Pack("addLiquidity", tokenA, tokenB, amountADesired, amountBDesired, amountAMin, amountBMin, to, deadline)
}

// PackStake encodes stake(amount)
func PackStake(amount *big.Int) ([]byte, error) {
	return Staking.Pack("stake", amount)
}

// PackClaimRewards encodes claimRewards()
func PackClaimRewards() ([]byte, error) {
	return Staking.Pack("claimRewards")
}

// PackClaimTokens encodes the faucet claimTokens()
func PackClaimTokens() ([]byte, error) {
	return Faucet.Pack("claimTokens")
}
