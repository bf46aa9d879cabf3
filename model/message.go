package model

import (
	"github.com/libsv/go-bt/v2/chainhash"

	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/scriptkey"
)

// Action distinguishes a message arising from an inscription's genesis
// reveal from one arising from a later transfer of an existing inscription
// (§4.6 step 1). Transfer Phase 2 semantics (§4.7) only ever apply to
// Action == ActionTransfer.
type Action int

const (
	ActionNew Action = iota
	ActionTransfer
)

func (a Action) String() string {
	switch a {
	case ActionNew:
		return "new"
	case ActionTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Message is the resolver's (C6) output: a single inscription event,
// correlated with its satpoints and commit-from owner, carrying the
// structurally-parsed Operation the executor (C7/C8) will validate and
// apply (§4.6).
type Message struct {
	Txid              chainhash.Hash
	BlockHeight       uint32
	BlockTime         uint64
	InscriptionID     InscriptionID
	InscriptionNumber int64
	Action            Action
	OldSatpoint       Satpoint
	NewSatpoint       Satpoint
	// CommitFrom is the ScriptKey that funded the reveal transaction's sat,
	// used to authenticate phase-1 transfers (§4.7, GLOSSARY "Commit-from").
	// Only meaningful when Action == ActionNew.
	CommitFrom scriptkey.ScriptKey
	From       scriptkey.ScriptKey
	To         scriptkey.ScriptKey
	Op         operation.Operation
}
