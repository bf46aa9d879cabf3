package brc20

import (
	"context"
	"testing"

	"github.com/libsv/go-bt/v2/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx/brc20index/ledger/memory"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/scriptkey"
)

func newInscriptionID(t *testing.T, seed byte, index uint32) model.InscriptionID {
	t.Helper()
	var h chainhash.Hash
	h[0] = seed
	return model.InscriptionID{Txid: h, Index: index}
}

func deployMsg(t *testing.T, tick, max, lim, dec string, deployer scriptkey.ScriptKey) model.Message {
	t.Helper()
	return model.Message{
		InscriptionID: newInscriptionID(t, 1, 0),
		Action:        model.ActionNew,
		CommitFrom:    deployer,
		From:          deployer,
		To:            deployer,
		Op:            operation.Deploy{Tick: tick, Max: max, Lim: lim, Dec: dec},
	}
}

func TestExecuteDeployThenMint(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	deploy := deployMsg(t, "ordi", "1000", "100", "8", alice)
	entry, err := Execute(ctx, store, store, deploy)
	require.NoError(t, err)
	require.True(t, entry.Ok(), "deploy should succeed: %+v", entry.Err)
	deployEvent, ok := entry.Event.(model.DeployEvent)
	require.True(t, ok)
	assert.Equal(t, "100000000000", deployEvent.Supply.Dec()) // 1000 * 10^8

	mint := model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		From:          alice,
		To:            alice,
		Op:            operation.Mint{Tick: "ordi", Amt: "50"},
	}
	entry, err = Execute(ctx, store, store, mint)
	require.NoError(t, err)
	require.True(t, entry.Ok(), "mint should succeed: %+v", entry.Err)
	mintEvent, ok := entry.Event.(model.MintEvent)
	require.True(t, ok)
	assert.Equal(t, "5000000000", mintEvent.Amount.Dec())
	assert.False(t, mintEvent.Clamped)
}

func TestExecuteDeployRejectsDuplicateTick(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	deploy := deployMsg(t, "ordi", "1000", "", "8", alice)
	entry, err := Execute(ctx, store, store, deploy)
	require.NoError(t, err)
	require.True(t, entry.Ok())

	deploy2 := deployMsg(t, "ordi", "500", "", "8", alice)
	deploy2.InscriptionID = newInscriptionID(t, 3, 0)
	entry2, err := Execute(ctx, store, store, deploy2)
	require.NoError(t, err)
	require.False(t, entry2.Ok())
	assert.Equal(t, "DUPLICATE_TICK", entry2.Err.Code.String())
}

func TestExecuteMintClampsToRemainingSupply(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	deploy := deployMsg(t, "ordi", "100", "", "0", alice)
	_, err := Execute(ctx, store, store, deploy)
	require.NoError(t, err)

	mint := model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		From:          alice,
		To:            alice,
		Op:            operation.Mint{Tick: "ordi", Amt: "1000"},
	}
	entry, err := Execute(ctx, store, store, mint)
	require.NoError(t, err)
	require.True(t, entry.Ok())
	mintEvent := entry.Event.(model.MintEvent)
	assert.True(t, mintEvent.Clamped)
	assert.Equal(t, "100", mintEvent.Amount.Dec())
}

func TestExecuteMintFailsOnUnknownTick(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	mint := model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		From:          alice,
		To:            alice,
		Op:            operation.Mint{Tick: "nope", Amt: "1"},
	}
	entry, err := Execute(ctx, store, store, mint)
	require.NoError(t, err)
	require.False(t, entry.Ok())
	assert.Equal(t, "TICK_NOT_FOUND", entry.Err.Code.String())
}

func TestTransferTwoPhaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")
	bob := scriptkey.FromAddressString("bob")

	_, err := Execute(ctx, store, store, deployMsg(t, "ordi", "1000", "", "0", alice))
	require.NoError(t, err)

	mintID := newInscriptionID(t, 2, 0)
	_, err = Execute(ctx, store, store, model.Message{
		InscriptionID: mintID,
		Action:        model.ActionNew,
		From:          alice,
		To:            alice,
		Op:            operation.Mint{Tick: "ordi", Amt: "100"},
	})
	require.NoError(t, err)

	transferID := newInscriptionID(t, 3, 0)
	phase1 := model.Message{
		InscriptionID: transferID,
		Action:        model.ActionNew,
		CommitFrom:    alice,
		From:          alice,
		To:            alice,
		Op:            operation.Transfer{Tick: "ordi", Amt: "40"},
	}
	entry, err := Execute(ctx, store, store, phase1)
	require.NoError(t, err)
	require.True(t, entry.Ok(), "phase1 should succeed: %+v", entry.Err)
	assert.Equal(t, model.OpKindTransferPhase1, entry.OpKind)

	phase2 := model.Message{
		InscriptionID: transferID,
		Action:        model.ActionTransfer,
		From:          alice,
		To:            bob,
		NewSatpoint:   model.Satpoint{Outpoint: model.Outpoint{Txid: newInscriptionID(t, 9, 0).Txid, Vout: 0}},
		Op:            operation.Transfer{Tick: "ordi", Amt: "40"},
	}
	entry, err = Execute(ctx, store, store, phase2)
	require.NoError(t, err)
	require.True(t, entry.Ok(), "phase2 should succeed: %+v", entry.Err)
	phase2Event := entry.Event.(model.TransferPhase2Event)
	assert.Equal(t, "40", phase2Event.Amount.Dec())
	assert.False(t, phase2Event.CreditToFrom)

	bobBalance, err := store.GetBalance(ctx, bob, phase2Event.Tick.Lower())
	require.NoError(t, err)
	assert.Equal(t, "40", bobBalance.Overall.Dec())
}

func TestTransferPhase1RejectsCommitFromMismatch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")
	mallory := scriptkey.FromAddressString("mallory")

	_, err := Execute(ctx, store, store, deployMsg(t, "ordi", "1000", "", "0", alice))
	require.NoError(t, err)

	_, err = Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		From:          alice,
		To:            alice,
		Op:            operation.Mint{Tick: "ordi", Amt: "100"},
	})
	require.NoError(t, err)

	entry, err := Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 3, 0),
		Action:        model.ActionNew,
		CommitFrom:    mallory,
		From:          alice,
		To:            alice,
		Op:            operation.Transfer{Tick: "ordi", Amt: "40"},
	})
	require.NoError(t, err)
	require.False(t, entry.Ok())
	assert.Equal(t, "INVALID_TRANSFER", entry.Err.Code.String())
}

func TestTransferPhase2UnboundCreditsSender(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice := scriptkey.FromAddressString("alice")

	_, err := Execute(ctx, store, store, deployMsg(t, "ordi", "1000", "", "0", alice))
	require.NoError(t, err)

	_, err = Execute(ctx, store, store, model.Message{
		InscriptionID: newInscriptionID(t, 2, 0),
		Action:        model.ActionNew,
		From:          alice,
		To:            alice,
		Op:            operation.Mint{Tick: "ordi", Amt: "100"},
	})
	require.NoError(t, err)

	transferID := newInscriptionID(t, 3, 0)
	_, err = Execute(ctx, store, store, model.Message{
		InscriptionID: transferID,
		Action:        model.ActionNew,
		CommitFrom:    alice,
		From:          alice,
		To:            alice,
		Op:            operation.Transfer{Tick: "ordi", Amt: "40"},
	})
	require.NoError(t, err)

	entry, err := Execute(ctx, store, store, model.Message{
		InscriptionID: transferID,
		Action:        model.ActionTransfer,
		From:          alice,
		To:            scriptkey.FromAddressString("bob"),
		NewSatpoint:   model.Satpoint{Outpoint: model.UnboundOutpoint},
		Op:            operation.Transfer{Tick: "ordi", Amt: "40"},
	})
	require.NoError(t, err)
	require.True(t, entry.Ok())

	event := entry.Event.(model.TransferPhase2Event)
	assert.True(t, event.CreditToFrom)
	assert.True(t, event.To.Equal(alice))
}
