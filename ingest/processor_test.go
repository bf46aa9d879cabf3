package ingest

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx/brc20index/ledger/memory"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/settings"
	"github.com/okx/brc20index/ulogger"
	"github.com/okx/brc20index/util/retry"
)

func scriptHexFor(label string) string {
	return hex.EncodeToString([]byte(label))
}

const commitTxid = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
const fundingTxid = "dddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd"

func TestProcessorAppliesDeployAndMintBlock(t *testing.T) {
	store := memory.New()
	logger := ulogger.New("test")
	proc := NewProcessor(store, nil, retry.Default(), logger, settings.NetworkRegtest)

	ownerScript := scriptHexFor("alice-owns-this-output")
	ownerKey, err := scriptKeyFromHex(ownerScript, settings.NetworkRegtest)
	require.NoError(t, err)

	// Every genesis event's old_satpoint names the commit transaction's
	// output the inscribed sat came from; seed that record as if an
	// earlier block had already persisted it (§4.9), and bundle the
	// commit tx's own outputs/inputs as Aux so computeCommitFrom (§4.6)
	// can walk back to the funding owner.
	commitTxidHash, err := parseTxid(commitTxid)
	require.NoError(t, err)
	require.NoError(t, store.SetOutpointToTxOut(context.Background(), model.Outpoint{Txid: commitTxidHash, Vout: 0}, model.TxOut{Value: 1000, ScriptKey: ownerKey}))

	commitAux := AuxTxWire{
		Txid:    commitTxid,
		Outputs: []TxOutWire{{Value: 1000, ScriptHex: ownerScript}},
		Inputs:  []SpentOutputWire{{PrevTxid: fundingTxid, PrevVout: 0, PrevOut: TxOutWire{Value: 1000, ScriptHex: ownerScript}}},
	}

	deployTxid := txidA
	mintTxid := txidB

	deployBody := hex.EncodeToString([]byte(`{"p":"brc-20","op":"deploy","tick":"ordi","max":"1000","lim":"100"}`))
	mintBody := hex.EncodeToString([]byte(`{"p":"brc-20","op":"mint","tick":"ordi","amt":"50"}`))

	deployMsg := BlockMessage{
		Height: 1,
		Time:   1700000000,
		Hash:   "0000000000000000000000000000000000000000000000000000000000aaaa",
		Transactions: []TxWire{
			{
				Txid:    deployTxid,
				Outputs: []TxOutWire{{Value: 1000, ScriptHex: ownerScript}},
				Events: []EventWire{{
					InscriptionID: deployTxid + "i0",
					Action:        "new",
					OldSatpoint:   SatpointWire{Txid: commitTxid, Vout: 0},
					NewSatpoint:   SatpointWire{Txid: deployTxid, Vout: 0},
				}},
				NewInscriptions: []NewInscriptionWire{
					{ContentType: "text/plain", BodyHex: deployBody},
				},
			},
		},
		Aux: []AuxTxWire{commitAux},
	}

	err = proc.ProcessBlockMessage(context.Background(), deployMsg)
	require.NoError(t, err)

	mintMsg := BlockMessage{
		Height: 2,
		Time:   1700000100,
		Hash:   "0000000000000000000000000000000000000000000000000000000000bbbb",
		Transactions: []TxWire{
			{
				Txid:    mintTxid,
				Outputs: []TxOutWire{{Value: 1000, ScriptHex: ownerScript}},
				Events: []EventWire{{
					InscriptionID: mintTxid + "i0",
					Action:        "new",
					OldSatpoint:   SatpointWire{Txid: commitTxid, Vout: 0},
					NewSatpoint:   SatpointWire{Txid: mintTxid, Vout: 0},
				}},
				NewInscriptions: []NewInscriptionWire{
					{ContentType: "text/plain", BodyHex: mintBody},
				},
			},
		},
		Aux: []AuxTxWire{commitAux},
	}

	err = proc.ProcessBlockMessage(context.Background(), mintMsg)
	require.NoError(t, err)

	receipt, err := store.GetReceipts(context.Background(), mintTxid)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Len(t, receipt.Entries, 1)
	assert.True(t, receipt.Entries[0].Ok())
}
