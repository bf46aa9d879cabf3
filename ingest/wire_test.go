package ingest

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okx/brc20index/settings"
)

const txidA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const txidB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func TestDecodeBlockMessageRoundTrip(t *testing.T) {
	scriptHex := hex.EncodeToString([]byte("not-a-standard-script"))

	raw := []byte(`{
		"height": 1,
		"time": 1700000000,
		"hash": "000000000000000000000000000000000000000000000000000000deadbeef",
		"confirmed": true,
		"transactions": [
			{
				"txid": "` + txidA + `",
				"coinbase": false,
				"inputs": [{"prev_txid": "` + txidB + `", "prev_vout": 0, "prev_out": {"value": 1000, "script_hex": "` + scriptHex + `"}}],
				"outputs": [{"value": 900, "script_hex": "` + scriptHex + `"}],
				"events": [],
				"new_inscriptions": []
			}
		]
	}`)

	msg, err := DecodeBlockMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), msg.Height)
	require.Len(t, msg.Transactions, 1)

	block, err := ToBlock(msg, settings.NetworkRegtest)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), block.Height)
	require.Len(t, block.Transactions, 1)

	tx := block.Transactions[0]
	require.Len(t, tx.Inputs, 1)
	require.Len(t, tx.Outputs, 1)
	assert.Equal(t, uint64(1000), tx.Inputs[0].PrevValue)
	assert.Equal(t, uint64(900), tx.Outputs[0].Value)
	assert.False(t, tx.Outputs[0].ScriptKey.IsZero())
}

func TestAuxTxSourceFetches(t *testing.T) {
	scriptHex := hex.EncodeToString([]byte("some-script"))

	msg := BlockMessage{
		Aux: []AuxTxWire{
			{
				Txid:                txidA,
				GenesisInscriptions: []NewInscriptionWire{{ContentType: "text/plain", BodyHex: hex.EncodeToString([]byte("hello"))}},
				Outputs:             []TxOutWire{{Value: 500}},
				Inputs: []SpentOutputWire{
					{PrevTxid: txidB, PrevVout: 0, PrevOut: TxOutWire{Value: 500, ScriptHex: scriptHex}},
				},
			},
		},
	}

	src, err := NewAuxTxSource(msg, settings.NetworkRegtest)
	require.NoError(t, err)

	txid, err := parseTxid(txidA)
	require.NoError(t, err)

	gens, err := src.FetchGenesisInscriptions(context.Background(), txid)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, []byte("hello"), gens[0].Body)

	outs, err := src.FetchTxOutputs(context.Background(), txid)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, uint64(500), outs[0].Value)

	ins, err := src.FetchTxInputs(context.Background(), txid)
	require.NoError(t, err)
	require.Len(t, ins, 1)
	assert.Equal(t, uint64(500), ins[0].PrevValue)

	other, err := parseTxid(txidB)
	require.NoError(t, err)
	_, err = src.FetchGenesisInscriptions(context.Background(), other)
	assert.Error(t, err)
}
