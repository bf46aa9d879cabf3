// Package orchestrator implements the block orchestrator (C9): per-block
// BTC balance bookkeeping, inscription-operation resolution and
// execution, and receipt persistence, applied to the ledger in
// transaction order (§4.9).
package orchestrator

import (
	"context"
	"time"

	"github.com/holiman/uint256"
	"github.com/libsv/go-bt/v2/chainhash"

	"github.com/okx/brc20index/brczero"
	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/ledger"
	"github.com/okx/brc20index/metrics"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/protocol/brc20"
	"github.com/okx/brc20index/protocol/brc20s"
	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/protocol/resolver"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/ulogger"
)

// SpentOutput is one input of a transaction together with the value and
// owning ScriptKey of the output it spends, needed for BTC bookkeeping
// (§4.9 step 1).
type SpentOutput struct {
	PrevOutpoint  model.Outpoint
	PrevValue     uint64
	PrevScriptKey scriptkey.ScriptKey
}

// Output is one output of a transaction.
type Output struct {
	Value     uint64
	ScriptKey scriptkey.ScriptKey
}

// Tx is one transaction of a block, carrying both the BTC-level
// input/output shape and any inscription events the tracker reports
// against it.
type Tx struct {
	Txid            chainhash.Hash
	Coinbase        bool
	Inputs          []SpentOutput
	Outputs         []Output
	Events          []resolver.Event
	NewInscriptions []resolver.NewInscription
}

// fee returns the standard BTC transaction fee: total input value minus
// total output value. Used as the btc_fee the BRCZero node is told paid
// for an evm operation's inscription (§4.10; see DESIGN.md for why no
// dedicated fee field exists upstream of this computation).
func (tx Tx) fee() uint64 {
	if tx.Coinbase {
		return 0
	}
	var in, out uint64
	for _, i := range tx.Inputs {
		in += i.PrevValue
	}
	for _, o := range tx.Outputs {
		out += o.Value
	}
	if out > in {
		return 0
	}
	return in - out
}

// Block is one block's worth of transactions, in the order they must be
// applied (§4.9, §5: single-threaded, in transaction order).
type Block struct {
	Height       uint32
	Time         uint64
	Hash         string
	Confirmed    bool
	Transactions []Tx
}

// Orchestrator is the C9 block orchestrator.
type Orchestrator struct {
	ledger   ledger.Store
	resolver *resolver.Resolver
	brczero  *brczero.Client
	logger   ulogger.Logger
}

// New builds an Orchestrator over store, using resolver to turn raw
// events into model.Message values. brczeroClient may be nil, in which
// case brc-zero evm operations are rejected with ERR_PARSE_OPERATION
// rather than silently dropped.
func New(store ledger.Store, res *resolver.Resolver, brczeroClient *brczero.Client, logger ulogger.Logger) *Orchestrator {
	return &Orchestrator{ledger: store, resolver: res, brczero: brczeroClient, logger: logger}
}

// pendingEvm is a brc-zero message awaiting the block's single batched
// broadcast call, recording where its outcome belongs once the call
// returns (§4.10).
type pendingEvm struct {
	receipt    *model.Receipt
	entryIndex int
	tx         brczero.Tx
}

// ProcessBlock applies block to the ledger in the §4.9 order. A non-nil
// error means the ledger was left in a (possibly) partially-mutated
// state for this block, matching §5: cancellation or failure mid-block
// is not rolled back, and the caller must reprocess the whole block on
// restart (see DESIGN.md for why no transactional wrapper sits here).
func (o *Orchestrator) ProcessBlock(ctx context.Context, block Block) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.BlocksProcessed.WithLabelValues(outcome).Inc()
	}()

	var receipts []*model.Receipt
	var pending []pendingEvm

	for _, tx := range block.Transactions {
		if err := o.applyBalances(ctx, block.Height, tx); err != nil {
			return err
		}

		if tx.Coinbase {
			continue
		}

		if len(tx.Events) == 0 {
			continue
		}

		if err := o.persistTxOutputs(ctx, tx); err != nil {
			return err
		}

		messages, err := o.resolver.Resolve(ctx, tx.Txid, block.Height, block.Time, tx.Events, tx.NewInscriptions)
		if err != nil {
			return err
		}

		receipt := &model.Receipt{Txid: tx.Txid.String()}
		for _, msg := range messages {
			if msg.Action == model.ActionNew {
				if err := o.ledger.SetInscriptionNumber(ctx, msg.InscriptionID, msg.InscriptionNumber); err != nil {
					return err
				}
			}

			if evm, ok := msg.Op.(operation.Evm); ok {
				entry := model.ReceiptEntry{
					InscriptionID:     msg.InscriptionID,
					InscriptionNumber: msg.InscriptionNumber,
					OldSatpoint:       msg.OldSatpoint,
					NewSatpoint:       msg.NewSatpoint,
					OpKind:            model.OpKindEvmForward,
					From:              msg.From,
					To:                msg.To,
				}
				receipt.Entries = append(receipt.Entries, entry)
				pending = append(pending, pendingEvm{
					receipt:    receipt,
					entryIndex: len(receipt.Entries) - 1,
					tx:         brczero.Tx{Data: evm.D, BtcFee: tx.fee()},
				})
				continue
			}

			entry, err := o.executeMessage(ctx, msg)
			if err != nil {
				return err
			}
			receipt.Entries = append(receipt.Entries, entry)
		}

		receipts = append(receipts, receipt)
	}

	if err := o.broadcastEvm(ctx, block, pending); err != nil {
		return err
	}

	for _, receipt := range receipts {
		start := time.Now()
		writeErr := o.ledger.SaveReceipts(ctx, receipt.Txid, *receipt)
		metrics.LedgerWriteDuration.WithLabelValues("SaveReceipts").Observe(time.Since(start).Seconds())
		if writeErr != nil {
			return writeErr
		}
	}

	return nil
}

// broadcastEvm issues the block's single batched broadcast_brczero_txs_async
// call (if any evm operations were observed) and fans the returned hashes
// back onto each pending entry in call order (§4.10).
func (o *Orchestrator) broadcastEvm(ctx context.Context, block Block, pending []pendingEvm) error {
	if len(pending) == 0 {
		return nil
	}
	if o.brczero == nil {
		return errors.New(errors.ERR_PARSE_OPERATION, "brc-zero evm operations present but no brczero client configured")
	}

	txs := make([]brczero.Tx, len(pending))
	for i, p := range pending {
		txs[i] = p.tx
	}

	start := time.Now()
	hashes, err := o.brczero.Broadcast(ctx, block.Height, block.Hash, block.Confirmed, txs)
	metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	metrics.BroadcastBatchSize.Observe(float64(len(txs)))
	if err != nil {
		return err
	}

	for i, p := range pending {
		p.receipt.Entries[p.entryIndex].Event = model.EvmForwardEvent{Hash: hashes[i]}
	}
	return nil
}

// executeMessage routes msg to the executor matching its operation's
// protocol (§4.7, §4.8). brc-zero messages never reach here: ProcessBlock
// intercepts them for block-level batching (§4.10).
func (o *Orchestrator) executeMessage(ctx context.Context, msg model.Message) (model.ReceiptEntry, error) {
	protocol := msg.Op.Protocol()

	var entry model.ReceiptEntry
	var err error
	switch protocol {
	case operation.ProtocolBRC20:
		entry, err = brc20.Execute(ctx, o.ledger, o.ledger, msg)
	case operation.ProtocolBRC20S:
		entry, err = brc20s.Execute(ctx, o.ledger, o.ledger, msg)
	default:
		err = errors.New(errors.ERR_PARSE_OPERATION, "no executor registered for protocol %q", protocol)
	}

	if err == nil {
		errCode := ""
		if entry.Err != nil {
			errCode = entry.Err.Code.String()
		}
		metrics.MessagesExecuted.WithLabelValues(protocol, string(entry.OpKind), errCode).Inc()
	}

	return entry, err
}

// persistTxOutputs records every output of tx so later satpoint lookups
// (by this or a future block's resolver) can recover its owning
// ScriptKey (§4.6 txout-store read capability).
func (o *Orchestrator) persistTxOutputs(ctx context.Context, tx Tx) error {
	start := time.Now()
	defer func() { metrics.LedgerWriteDuration.WithLabelValues("SetOutpointToTxOut").Observe(time.Since(start).Seconds()) }()

	for vout, out := range tx.Outputs {
		outpoint := model.Outpoint{Txid: tx.Txid, Vout: uint32(vout)}
		if err := o.ledger.SetOutpointToTxOut(ctx, outpoint, model.TxOut{Value: out.Value, ScriptKey: out.ScriptKey}); err != nil {
			return err
		}
	}
	return nil
}

// applyBalances implements §4.9 step 1: debit every spent output's value
// from its owner's tracked BTC balance, credit every new output's value
// to its owner, and synthesize passive withdrawals for any owner left
// short (§4.8).
func (o *Orchestrator) applyBalances(ctx context.Context, height uint32, tx Tx) error {
	if !tx.Coinbase {
		for _, in := range tx.Inputs {
			if in.PrevScriptKey.IsZero() {
				continue
			}

			current, err := o.ledger.GetBTCBalance(ctx, in.PrevScriptKey)
			if err != nil {
				return err
			}

			diff := new(uint256.Int)
			value := uint256.NewInt(in.PrevValue)
			if diff.SubOverflow(current, value) {
				shortfall := new(uint256.Int).Sub(value, current)
				if err := o.ledger.SetBTCBalance(ctx, in.PrevScriptKey, new(uint256.Int)); err != nil {
					return err
				}
				if err := o.coverShortfall(ctx, in.PrevScriptKey, shortfall, height); err != nil {
					return err
				}
				continue
			}

			if err := o.ledger.SetBTCBalance(ctx, in.PrevScriptKey, diff); err != nil {
				return err
			}
		}
	}

	for _, out := range tx.Outputs {
		if out.ScriptKey.IsZero() {
			continue
		}

		current, err := o.ledger.GetBTCBalance(ctx, out.ScriptKey)
		if err != nil {
			return err
		}

		sum := new(uint256.Int)
		value := uint256.NewInt(out.Value)
		if sum.AddOverflow(current, value) {
			return errors.New(errors.ERR_OVERFLOW, "btc balance overflow for %s", out.ScriptKey)
		}
		if err := o.ledger.SetBTCBalance(ctx, out.ScriptKey, sum); err != nil {
			return err
		}
	}

	return nil
}

// coverShortfall forces unstaking from owner's BRC20S BTC-staked pools,
// in the order GetUserPools returns them (no sorting by position size),
// until shortfall is covered or no staked position remains (§4.8
// passive withdrawal).
func (o *Orchestrator) coverShortfall(ctx context.Context, owner scriptkey.ScriptKey, shortfall *uint256.Int, height uint32) error {
	pools, err := o.ledger.GetUserPools(ctx, owner)
	if err != nil {
		return err
	}

	remaining := new(uint256.Int).Set(shortfall)
	for _, up := range pools {
		if remaining.IsZero() {
			break
		}

		pool, err := o.ledger.GetPoolInfo(ctx, up.Pid)
		if err != nil {
			return err
		}
		if pool == nil || !pool.StakedBTC() || up.Staked.IsZero() {
			continue
		}

		take := up.Staked
		if take.Cmp(remaining) > 0 {
			take = remaining
		}

		if _, err := brc20s.ExecutePassiveWithdraw(ctx, o.ledger, o.ledger, owner, up.Pid, take, height); err != nil {
			return err
		}

		remaining = new(uint256.Int).Sub(remaining, take)
	}

	if !remaining.IsZero() {
		o.logger.Warnf("orchestrator: %s fell short %s sats of BTC-staked collateral with no pool left to cover it", owner, remaining)
	}
	return nil
}
