package model

import (
	"github.com/holiman/uint256"

	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

// TokenInfo is the per-LowerTick deploy record (§3). Supply, Minted and
// LimitPerMint are unscaled base-unit integers at Decimals fractional
// digits. Minted and LatestMintBlock are the only fields a Mint mutates
// after deploy; everything else is immutable once created.
type TokenInfo struct {
	Tick            tick.Tick
	LowerTick       tick.LowerTick
	InscriptionID   InscriptionID
	Supply          *uint256.Int
	Minted          *uint256.Int
	LimitPerMint    *uint256.Int // nil means unlimited
	Decimals        uint8
	DeployBy        scriptkey.ScriptKey
	DeployedBlock   uint32
	DeployedTime    uint64
	LatestMintBlock uint32
}

// Remaining is Supply-Minted, the amount still mintable (§4.7 Mint).
func (t TokenInfo) Remaining() *uint256.Int {
	return new(uint256.Int).Sub(t.Supply, t.Minted)
}

// Invariant checks Minted <= Supply (§3).
func (t TokenInfo) Invariant() bool {
	return t.Minted.Cmp(t.Supply) <= 0
}
