package brc20s

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/libsv/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx/brc20index/ledger/memory"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

func newInscriptionID(t *testing.T, seed byte, index uint32) model.InscriptionID {
	t.Helper()
	var h chainhash.Hash
	h[0] = seed
	return model.InscriptionID{Txid: h, Index: index}
}

func deployPool(t *testing.T, deployer scriptkey.ScriptKey, stakeTick string, total uint64, decimals uint8) operation.PoolDeploy {
	t.Helper()
	earn := "LOOT"
	id := tick.Calculate(earn, total, decimals, deployer, deployer)
	pid := tick.NewPid(id, 0)
	return operation.PoolDeploy{
		Tick:  earn,
		Pid:   string(pid),
		Stake: stakeTick,
		Earn:  earn,
		Erate: "10",
		Dmax:  "100000",
		Total: "21000000",
		Dec:   "8",
	}
}

func TestPoolDeployRejectsMismatchedPid(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	deploy := deployPool(t, alice, "btc", 21000000, 8)
	deploy.Pid = "0000000000#00"

	msg := model.Message{
		InscriptionID: newInscriptionID(t, 1, 0),
		Action:        model.ActionNew,
		CommitFrom:    alice,
		From:          alice,
		To:            alice,
		Op:            deploy,
	}
	entry, err := Execute(ctx, store, store, msg)
	require.NoError(t, err)
	require.False(t, entry.Ok())
	assert.Equal(t, "INVALID_POOL_ID", entry.Err.Code.String())
}

func TestStakeBTCAccruesReward(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	deploy := deployPool(t, alice, "btc", 21000000, 8)
	msg := model.Message{
		InscriptionID: newInscriptionID(t, 1, 0),
		Action:        model.ActionNew,
		BlockHeight:   100,
		CommitFrom:    alice,
		From:          alice,
		To:            alice,
		Op:            deploy,
	}
	entry, err := Execute(ctx, store, store, msg)
	require.NoError(t, err)
	require.True(t, entry.Ok(), "deploy should succeed: %+v", entry.Err)

	pid := deploy.Pid

	stakeMsg := model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		BlockHeight:   100,
		From:          alice,
		To:            alice,
		Op:            operation.Stake{Pid: pid, Amt: "1"},
	}
	entry, err = Execute(ctx, store, store, stakeMsg)
	require.NoError(t, err)
	require.True(t, entry.Ok(), "stake should succeed: %+v", entry.Err)

	// advance 10 blocks so reward accrues on the next touch.
	mintMsg := model.Message{
		InscriptionID: newInscriptionID(t, 3, 0),
		Action:        model.ActionNew,
		BlockHeight:   110,
		From:          alice,
		To:            alice,
		Op:            operation.PoolMint{Tid: pid, Tick: "LOOT", Amt: "1000000"},
	}
	entry, err = Execute(ctx, store, store, mintMsg)
	require.NoError(t, err)
	require.True(t, entry.Ok(), "pool mint should succeed: %+v", entry.Err)
	mintEvent := entry.Event.(model.MintEvent)
	assert.False(t, mintEvent.Amount.IsZero(), "ten blocks of a non-zero erate should accrue a positive reward")
}

func TestUnstakeRejectsExceedingStakedBalance(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	deploy := deployPool(t, alice, "btc", 21000000, 8)
	_, err := Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 1, 0),
		Action:        model.ActionNew,
		BlockHeight:   1,
		CommitFrom:    alice,
		From:          alice,
		To:            alice,
		Op:            deploy,
	})
	require.NoError(t, err)

	_, err = Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		BlockHeight:   1,
		From:          alice,
		To:            alice,
		Op:            operation.Stake{Pid: deploy.Pid, Amt: "1"},
	})
	require.NoError(t, err)

	entry, err := Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 3, 0),
		Action:        model.ActionNew,
		BlockHeight:   1,
		From:          alice,
		To:            alice,
		Op:            operation.Unstake{Pid: deploy.Pid, Amt: "2"},
	})
	require.NoError(t, err)
	require.False(t, entry.Ok())
	assert.Equal(t, "INSUFFICIENT_BALANCE", entry.Err.Code.String())
}

func TestExecutePassiveWithdrawClampsToStaked(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	deploy := deployPool(t, alice, "btc", 21000000, 8)
	_, err := Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 1, 0),
		Action:        model.ActionNew,
		BlockHeight:   1,
		CommitFrom:    alice,
		From:          alice,
		To:            alice,
		Op:            deploy,
	})
	require.NoError(t, err)

	_, err = Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		BlockHeight:   1,
		From:          alice,
		To:            alice,
		Op:            operation.Stake{Pid: deploy.Pid, Amt: "1"},
	})
	require.NoError(t, err)

	huge := uint256.MustFromDecimal("100000000000")

	event, err := ExecutePassiveWithdraw(ctx, store, store, alice, tick.Pid(deploy.Pid), huge, 1)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "100000000", event.Amount.Dec(), "shortfall beyond staked amount must clamp to the full staked balance (1 at 8 decimals)")
}
