package model

import (
	"github.com/holiman/uint256"

	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

// RewardPrecision is the fixed-point scale acc_reward_per_share is carried
// at, the standard "master-chef" trick for accruing a per-block reward
// rate without fractional loss (§4.8).
var RewardPrecision = uint256.MustFromDecimal("1000000000000000000")

// PoolInfo is the per-Pid BRC20S pool deploy-and-accrual record (§4.8).
// StakeTick is carried as the raw deploy-time ticker text rather than a
// tick.LowerTick: a pool's stake asset may be a BRC20 tick or the "btc"
// sentinel, and only the former normalises through tick.Lower.
type PoolInfo struct {
	Pid               tick.Pid
	StakeTick         string
	EarnTickID        tick.TickID
	Erate             *uint256.Int
	Dmax              *uint256.Int
	Minted            *uint256.Int
	Staked            *uint256.Int
	AccRewardPerShare *uint256.Int
	LastUpdateBlock   uint32
	OnlyOperator      bool
	Decimals          uint8
	DeployBy          scriptkey.ScriptKey
}

// StakedBTC reports whether this pool stakes native BTC balance rather
// than a BRC20 token balance.
func (p PoolInfo) StakedBTC() bool {
	return p.StakeTick == "btc"
}

// Remaining is dmax-minted, the reward budget not yet distributed.
func (p PoolInfo) Remaining() *uint256.Int {
	return new(uint256.Int).Sub(p.Dmax, p.Minted)
}
