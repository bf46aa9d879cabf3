package model

import (
	"github.com/holiman/uint256"

	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

// UserInfo is the per-(Pid, owner) staking position (§4.8).
type UserInfo struct {
	Pid             tick.Pid
	Owner           scriptkey.ScriptKey
	Staked          *uint256.Int
	Reward          *uint256.Int
	RewardDebt      *uint256.Int
	LastUpdateBlock uint32
}

// NewUserInfo returns the zero-value staking position for (pid, owner).
func NewUserInfo(pid tick.Pid, owner scriptkey.ScriptKey) UserInfo {
	return UserInfo{
		Pid:        pid,
		Owner:      owner,
		Staked:     new(uint256.Int),
		Reward:     new(uint256.Int),
		RewardDebt: new(uint256.Int),
	}
}
