// Package resolver implements the message resolver (C6): per-transaction
// correlation of inscription-tracker events with their satpoints, owners,
// and commit-from authority, producing a typed model.Message per event.
package resolver

import (
	"context"
	"time"

	"github.com/libsv/go-bt/v2/chainhash"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/ledger"
	"github.com/okx/brc20index/metrics"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/ulogger"
	"github.com/okx/brc20index/util/retry"
)

// GenesisInscription is the ordinal tracker's record of one inscription's
// content, as revealed at genesis. Parsing raw reveal-transaction envelopes
// is the tracker's job, not ours (§1 scope: "the ordinal tracker that
// produces raw inscription events — we consume its event stream").
type GenesisInscription struct {
	ContentType string
	Body        []byte
}

// TxOutput is the value of one output of a transaction, as needed to walk
// the commit-from allocation (§4.6).
type TxOutput struct {
	Value uint64
}

// TxInput is one input of a transaction together with the value and owning
// ScriptKey of the output it spends (§4.6 commit-from computation).
type TxInput struct {
	PrevOutpoint  model.Outpoint
	PrevValue     uint64
	PrevScriptKey scriptkey.ScriptKey
}

// TxSource is everything the resolver needs from the upstream chain/tracker
// beyond the current block's own events: the content of a past genesis
// reveal, and the input/output shape of a past transaction.
type TxSource interface {
	FetchGenesisInscriptions(ctx context.Context, txid chainhash.Hash) ([]GenesisInscription, error)
	FetchTxOutputs(ctx context.Context, txid chainhash.Hash) ([]TxOutput, error)
	FetchTxInputs(ctx context.Context, txid chainhash.Hash) ([]TxInput, error)
}

// NewInscription is a freshly-revealed inscription carried by the current
// transaction, indexed by its position within it (§4.6 "new_inscriptions").
type NewInscription struct {
	ContentType string
	Body        []byte
}

// Event is one inscription operation the tracker reports against the
// transaction under resolution (§4.6 input).
type Event struct {
	InscriptionID     model.InscriptionID
	InscriptionNumber int64
	Action            model.Action
	OldSatpoint       model.Satpoint
	NewSatpoint       model.Satpoint
}

// Resolver is the C6 message resolver.
type Resolver struct {
	read   ledger.ReadStore
	txs    TxSource
	policy *retry.Policy
	logger ulogger.Logger
}

// New builds a Resolver. policy governs the bounded exponential backoff
// used when a non-first transfer requires fetching its genesis transaction
// (§4.6, §5).
func New(read ledger.ReadStore, txs TxSource, policy *retry.Policy, logger ulogger.Logger) *Resolver {
	return &Resolver{read: read, txs: txs, policy: policy, logger: logger}
}

// Resolve runs the §4.6 pipeline over every event of one transaction,
// returning messages in the same order as their events (the ordering
// invariant callers must uphold by iterating events in ascending
// old_satpoint / input order before calling in).
func (r *Resolver) Resolve(ctx context.Context, txid chainhash.Hash, blockHeight uint32, blockTime uint64, events []Event, newInscriptions []NewInscription) ([]model.Message, error) {
	start := time.Now()
	defer func() { metrics.ResolveDuration.Observe(time.Since(start).Seconds()) }()

	messages := make([]model.Message, 0, len(events))

	for _, ev := range events {
		msg, ok, err := r.resolveOne(ctx, txid, blockHeight, blockTime, ev, newInscriptions)
		if err != nil {
			metrics.MessagesResolved.WithLabelValues("error").Inc()
			return nil, err
		}
		if ok {
			metrics.MessagesResolved.WithLabelValues("ok").Inc()
			messages = append(messages, msg)
		} else {
			metrics.MessagesResolved.WithLabelValues("dropped").Inc()
		}
	}

	return messages, nil
}

func (r *Resolver) resolveOne(ctx context.Context, txid chainhash.Hash, blockHeight uint32, blockTime uint64, ev Event, newInscriptions []NewInscription) (model.Message, bool, error) {
	if ev.InscriptionNumber < 0 {
		return model.Message{}, false, nil
	}
	// A genesis reveal with no surviving sat has no owner to attribute it
	// to, so it is dropped. A *transfer* that goes unbound is kept: it is
	// how a phase-2 send gets burned, and the executor credits the asset
	// back to From in that case (§4.7 Transfer Phase 2, scenario F).
	if ev.Action == model.ActionNew && ev.NewSatpoint.Outpoint.IsUnbound() {
		return model.Message{}, false, nil
	}

	contentType, body, ok, err := r.recoverBody(ctx, ev, newInscriptions)
	if err != nil {
		return model.Message{}, false, err
	}
	if !ok {
		return model.Message{}, false, nil
	}

	op, err := operation.Parse(contentType, body)
	if err != nil {
		// Local parse failure: the inscription is not a protocol message
		// on this sat. Drop it silently (§7).
		return model.Message{}, false, nil
	}

	fromTxOut, err := r.read.GetOutpointToTxOut(ctx, ev.OldSatpoint.Outpoint)
	if err != nil {
		return model.Message{}, false, errors.New(errors.ERR_TXOUT_NOT_FOUND, "resolve from failed for %s", ev.OldSatpoint.Outpoint, err)
	}
	// An unbound new_satpoint (possible only for Action == ActionTransfer,
	// filtered above otherwise) has no owning txout: the executor credits
	// From instead of To in that case, so To is left zero-valued.
	var toScriptKey scriptkey.ScriptKey
	if !ev.NewSatpoint.Outpoint.IsUnbound() {
		toTxOut, err := r.read.GetOutpointToTxOut(ctx, ev.NewSatpoint.Outpoint)
		if err != nil {
			return model.Message{}, false, errors.New(errors.ERR_TXOUT_NOT_FOUND, "resolve to failed for %s", ev.NewSatpoint.Outpoint, err)
		}
		toScriptKey = toTxOut.ScriptKey
	}

	var commitFrom scriptkey.ScriptKey
	if ev.Action == model.ActionNew {
		commitFrom, err = r.computeCommitFrom(ctx, ev.OldSatpoint)
		if err != nil {
			return model.Message{}, false, err
		}
	}

	msg := model.Message{
		Txid:              txid,
		BlockHeight:       blockHeight,
		BlockTime:         blockTime,
		InscriptionID:     ev.InscriptionID,
		InscriptionNumber: ev.InscriptionNumber,
		Action:            ev.Action,
		OldSatpoint:       ev.OldSatpoint,
		NewSatpoint:       ev.NewSatpoint,
		CommitFrom:        commitFrom,
		From:              fromTxOut.ScriptKey,
		To:                toScriptKey,
		Op:                op,
	}
	return msg, true, nil
}

// recoverBody implements the §4.6 body-recovery step.
func (r *Resolver) recoverBody(ctx context.Context, ev Event, newInscriptions []NewInscription) (contentType string, body []byte, ok bool, err error) {
	switch ev.Action {
	case model.ActionNew:
		idx := int(ev.InscriptionID.Index)
		if idx < 0 || idx >= len(newInscriptions) {
			return "", nil, false, nil
		}
		return newInscriptions[idx].ContentType, newInscriptions[idx].Body, true, nil

	case model.ActionTransfer:
		isFirstTransfer := ev.InscriptionID.Txid == ev.OldSatpoint.Outpoint.Txid

		var inscriptions []GenesisInscription
		if isFirstTransfer {
			inscriptions, err = r.txs.FetchGenesisInscriptions(ctx, ev.InscriptionID.Txid)
		} else {
			err = retry.Do(ctx, r.policy, func(attempt int) (error, bool) {
				var fetchErr error
				inscriptions, fetchErr = r.txs.FetchGenesisInscriptions(ctx, ev.InscriptionID.Txid)
				if fetchErr != nil {
					r.logger.Warnf("resolver: genesis fetch attempt %d failed for %s: %v", attempt, ev.InscriptionID, fetchErr)
				}
				return fetchErr, fetchErr != nil
			})
		}
		if err != nil {
			return "", nil, false, errors.New(errors.ERR_RPC_EXHAUSTED, "genesis tx fetch failed for %s", ev.InscriptionID, err)
		}

		idx := int(ev.InscriptionID.Index)
		if idx < 0 || idx >= len(inscriptions) {
			return "", nil, false, nil
		}
		return inscriptions[idx].ContentType, inscriptions[idx].Body, true, nil

	default:
		return "", nil, false, nil
	}
}

// computeCommitFrom walks the commit transaction's outputs then inputs to
// find the ScriptKey that funded old_satpoint (§4.6).
func (r *Resolver) computeCommitFrom(ctx context.Context, oldSatpoint model.Satpoint) (scriptkey.ScriptKey, error) {
	commitTxid := oldSatpoint.Outpoint.Txid

	outputs, err := r.txs.FetchTxOutputs(ctx, commitTxid)
	if err != nil {
		return scriptkey.ScriptKey{}, errors.New(errors.ERR_RPC_EXHAUSTED, "fetch commit tx outputs failed for %s", commitTxid, err)
	}
	if int(oldSatpoint.Outpoint.Vout) >= len(outputs) {
		return scriptkey.ScriptKey{}, errors.New(errors.ERR_INVALID_ARGUMENT, "satpoint vout out of range for commit tx %s", commitTxid)
	}

	var offset uint64
	for i := uint32(0); i < oldSatpoint.Outpoint.Vout; i++ {
		offset += outputs[i].Value
	}
	offset += oldSatpoint.Offset

	inputs, err := r.txs.FetchTxInputs(ctx, commitTxid)
	if err != nil {
		return scriptkey.ScriptKey{}, errors.New(errors.ERR_RPC_EXHAUSTED, "fetch commit tx inputs failed for %s", commitTxid, err)
	}

	var cumulative uint64
	for _, in := range inputs {
		cumulative += in.PrevValue
		if offset < cumulative {
			return in.PrevScriptKey, nil
		}
	}

	return scriptkey.ScriptKey{}, errors.New(errors.ERR_TXOUT_NOT_FOUND, "no commit-from input covers offset %d in tx %s", offset, commitTxid)
}
