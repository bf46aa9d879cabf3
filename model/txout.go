package model

import "github.com/okx/brc20index/scriptkey"

// TxOut is the txout-store row the resolver consults to recover an
// outpoint's value and owning ScriptKey (§4.6, read capability
// get_outpoint_to_txout). Rows are written once, at block-processing time,
// for the outputs of each non-coinbase transaction that carries
// inscription events.
type TxOut struct {
	Value     uint64
	ScriptKey scriptkey.ScriptKey
}
