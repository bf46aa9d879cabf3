// Package model holds the shared wire-identity and ledger-row types the
// resolver, executors and ledger contract all operate on.
package model

import (
	"fmt"

	"github.com/libsv/go-bt/v2/chainhash"
)

// Outpoint identifies a transaction output.
type Outpoint struct {
	Txid chainhash.Hash
	Vout uint32
}

// UnboundOutpoint is the ordinal tracker's sentinel outpoint meaning "this
// satoshi was not associated with any tracked output" — inscriptions that
// land here are either unbound (ignored by the resolver, §4.6) or burned
// (phase-2 transfers that return their asset to the sender, §4.7).
var UnboundOutpoint = Outpoint{Txid: chainhash.Hash{}, Vout: 0}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid.String(), o.Vout)
}

// IsUnbound reports whether o is the sentinel unbound outpoint.
func (o Outpoint) IsUnbound() bool {
	return o == UnboundOutpoint
}

// Satpoint is a (outpoint, offset) pair identifying a specific satoshi.
type Satpoint struct {
	Outpoint Outpoint
	Offset   uint64
}

func (s Satpoint) String() string {
	return fmt.Sprintf("%s:%d", s.Outpoint.String(), s.Offset)
}
