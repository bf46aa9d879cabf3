package model

import (
	"github.com/holiman/uint256"

	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

// TransferableLog is a reserved (not yet spent) phase-1 transfer
// inscription (§3). It is removed exactly once, by the phase-2 Transfer
// that spends InscriptionID (§3 lifecycle, §8 invariant 3).
type TransferableLog struct {
	Owner             scriptkey.ScriptKey
	Tick              tick.LowerTick
	InscriptionID     InscriptionID
	InscriptionNumber int64
	Amount            *uint256.Int
}

// InscribeTransfer is the companion record keyed by InscriptionID alone,
// recording which (tick, amount) a phase-1 transfer reserved. It must
// always exist or not exist in lock-step with its TransferableLog
// counterpart (§3, §8 invariant 3) — modelled as two tables with a
// removal invariant rather than a pointer graph (§9 design notes).
type InscribeTransfer struct {
	InscriptionID InscriptionID
	Tick          tick.LowerTick
	Amount        *uint256.Int
}
