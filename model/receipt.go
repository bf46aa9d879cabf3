package model

import (
	"github.com/holiman/uint256"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

// Event is implemented by every successful-execution outcome a message can
// produce (§4.7 "Emit ...Event"). A Receipt carries exactly one Event on
// success, or a *errors.Error on failure — never both.
type Event interface {
	eventKind() string
}

// DeployEvent records a successful brc-20/brc20-s deploy.
type DeployEvent struct {
	Tick         tick.Tick
	Supply       *uint256.Int
	LimitPerMint *uint256.Int // nil when unlimited
	Decimals     uint8
}

func (DeployEvent) eventKind() string { return "deploy" }

// MintEvent records a successful mint, including clamping against
// remaining supply (§4.7 Mint); a mint above limit_per_mint fails rather
// than being clamped.
type MintEvent struct {
	Tick     tick.Tick
	To       scriptkey.ScriptKey
	Amount   *uint256.Int // effective (post-clamp) amount credited
	Clamped  bool
	Msg      string
}

func (MintEvent) eventKind() string { return "mint" }

// TransferPhase1Event records a successful phase-1 transfer inscribe
// (reservation of transferable balance).
type TransferPhase1Event struct {
	Tick   tick.Tick
	Owner  scriptkey.ScriptKey
	Amount *uint256.Int
}

func (TransferPhase1Event) eventKind() string { return "transfer-phase1" }

// TransferPhase2Event records a successful phase-2 transfer settlement,
// including the sender-refund case when the new satpoint is unbound
// (§4.7 Transfer Phase 2).
type TransferPhase2Event struct {
	Tick          tick.Tick
	From          scriptkey.ScriptKey
	To            scriptkey.ScriptKey
	Amount        *uint256.Int
	CreditToFrom  bool // true when the asset returned to From (burn/unbound)
}

func (TransferPhase2Event) eventKind() string { return "transfer-phase2" }

// EvmForwardEvent records a brc-zero `evm` operation's forwarding outcome
// (§4.10): the ledger is never mutated for this protocol, the receipt
// only carries the broadcast transaction hash the BRCZero RPC returned.
type EvmForwardEvent struct {
	Hash string
}

func (EvmForwardEvent) eventKind() string { return "evm-forward" }

// OpKind names the executed operation for the Receipt (§3 Receipt).
type OpKind string

const (
	OpKindDeploy          OpKind = "deploy"
	OpKindMint            OpKind = "mint"
	OpKindTransferPhase1  OpKind = "transfer-phase1"
	OpKindTransferPhase2  OpKind = "transfer-phase2"
	OpKindStake           OpKind = "stake"
	OpKindUnstake         OpKind = "unstake"
	OpKindPassiveWithdraw OpKind = "passive-withdraw"
	OpKindEvmForward      OpKind = "evm-forward"
)

// ReceiptEntry is one message's outcome within a transaction's Receipt
// (§3 Receipt).
type ReceiptEntry struct {
	InscriptionID     InscriptionID
	InscriptionNumber int64
	OldSatpoint       Satpoint
	NewSatpoint       Satpoint
	OpKind            OpKind
	From              scriptkey.ScriptKey
	To                scriptkey.ScriptKey

	// Exactly one of Event / Err is set. A non-nil Err means the message
	// produced no ledger mutation (§4.7 Error path).
	Event Event
	Err   *errors.Error
}

// Ok reports whether the entry succeeded.
func (r ReceiptEntry) Ok() bool { return r.Err == nil }

// Receipt is the append-only, per-transaction outcome log (§3, §4.9 step 4).
type Receipt struct {
	Txid    string
	Entries []ReceiptEntry
}
