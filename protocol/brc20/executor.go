// Package brc20 implements the brc-20 executor (C7): a pure state machine
// that validates a resolved message against current ledger state and, on
// success, mutates balances/tokens/transferables and returns a Receipt
// entry (§4.7).
package brc20

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/ledger"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/num"
	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/tick"
)

// Execute validates msg against current ledger state and applies it,
// returning the per-message Receipt entry. A non-nil error is returned
// only for infrastructure failures (store errors); a protocol failure is
// reported through entry.Err with no ledger mutation.
func Execute(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message) (model.ReceiptEntry, error) {
	entry := model.ReceiptEntry{
		InscriptionID:     msg.InscriptionID,
		InscriptionNumber: msg.InscriptionNumber,
		OldSatpoint:       msg.OldSatpoint,
		NewSatpoint:       msg.NewSatpoint,
		From:              msg.From,
		To:                msg.To,
	}

	var event model.Event
	var protoErr *errors.Error
	var infraErr error

	switch op := msg.Op.(type) {
	case operation.Deploy:
		entry.OpKind = model.OpKindDeploy
		event, protoErr, infraErr = executeDeploy(ctx, read, write, msg, op)
	case operation.Mint:
		entry.OpKind = model.OpKindMint
		event, protoErr, infraErr = executeMint(ctx, read, write, msg, op)
	case operation.Transfer:
		if msg.Action == model.ActionNew {
			entry.OpKind = model.OpKindTransferPhase1
			event, protoErr, infraErr = executeTransferPhase1(ctx, read, write, msg, op)
		} else {
			entry.OpKind = model.OpKindTransferPhase2
			event, protoErr, infraErr = executeTransferPhase2(ctx, read, write, msg, op)
		}
	default:
		return model.ReceiptEntry{}, errors.New(errors.ERR_PARSE_OPERATION, "brc20 executor received non brc-20 operation")
	}

	if infraErr != nil {
		return model.ReceiptEntry{}, infraErr
	}

	if protoErr != nil {
		entry.Err = protoErr
		return entry, nil
	}

	entry.Event = event
	return entry, nil
}

func executeDeploy(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.Deploy) (model.Event, *errors.Error, error) {
	t, tickErr := tick.FromString(op.Tick)
	if tickErr != nil {
		return nil, errors.New(errors.ERR_INVALID_TICK_LEN, "invalid tick %q", op.Tick), nil
	}
	lower := t.Lower()

	existing, infraErr := read.GetTokenInfo(ctx, lower)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if existing != nil {
		return nil, errors.New(errors.ERR_DUPLICATE_TICK, "tick %s already deployed", t), nil
	}

	decimals := uint8(operation.DefaultDecimals)
	if op.Dec != "" {
		decNum, err := num.Parse(op.Dec)
		if err != nil {
			return nil, errors.New(errors.ERR_INVALID_DECIMALS, "invalid dec %q", op.Dec), nil
		}
		d, err := decNum.ToUint8()
		if err != nil || d > num.MaxScale {
			return nil, errors.New(errors.ERR_INVALID_DECIMALS, "dec %q out of range", op.Dec), nil
		}
		decimals = d
	}

	maxNum, err := num.Parse(op.Max)
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_NUM, "invalid max %q", op.Max), nil
	}
	if maxNum.Sign() == 0 {
		return nil, errors.New(errors.ERR_INVALID_MAX_SUPPLY, "max must be positive"), nil
	}
	if !maxNum.FitsUint64() {
		return nil, errors.New(errors.ERR_INVALID_MAX_SUPPLY, "max %q exceeds u64 range", op.Max), nil
	}

	maxRescaled, err := maxNum.Rescale(decimals)
	if err != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "max rescale overflow"), nil
	}
	supply, err := maxRescaled.ToUint128()
	if err != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "max exceeds u128 range"), nil
	}

	var limitBaseUnits *uint256.Int
	if op.Lim != "" {
		limNum, err := num.Parse(op.Lim)
		if err != nil {
			return nil, errors.New(errors.ERR_INVALID_NUM, "invalid lim %q", op.Lim), nil
		}
		if limNum.Sign() == 0 || limNum.Cmp(maxNum) > 0 {
			return nil, errors.New(errors.ERR_INVALID_MAX_SUPPLY, "lim must be in (0, max]"), nil
		}
		limRescaled, err := limNum.Rescale(decimals)
		if err != nil {
			return nil, errors.New(errors.ERR_OVERFLOW, "lim rescale overflow"), nil
		}
		lv, err := limRescaled.ToUint128()
		if err != nil {
			return nil, errors.New(errors.ERR_OVERFLOW, "lim exceeds u128 range"), nil
		}
		limitBaseUnits = lv
	}

	info := model.TokenInfo{
		Tick:            t,
		LowerTick:       lower,
		InscriptionID:   msg.InscriptionID,
		Supply:          supply,
		Minted:          new(uint256.Int),
		LimitPerMint:    limitBaseUnits,
		Decimals:        decimals,
		DeployBy:        msg.CommitFrom,
		DeployedBlock:   msg.BlockHeight,
		DeployedTime:    msg.BlockTime,
		LatestMintBlock: msg.BlockHeight,
	}

	if infraErr := write.InsertTokenInfo(ctx, info); infraErr != nil {
		if e, ok := infraErr.(*errors.Error); ok && e.Code == errors.ERR_DUPLICATE_TICK {
			return nil, e, nil
		}
		return nil, nil, infraErr
	}

	return model.DeployEvent{Tick: t, Supply: supply, LimitPerMint: limitBaseUnits, Decimals: decimals}, nil, nil
}

func executeMint(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.Mint) (model.Event, *errors.Error, error) {
	t, tickErr := tick.FromString(op.Tick)
	if tickErr != nil {
		return nil, errors.New(errors.ERR_INVALID_TICK_LEN, "invalid tick %q", op.Tick), nil
	}
	lower := t.Lower()

	info, infraErr := read.GetTokenInfo(ctx, lower)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if info == nil {
		return nil, errors.New(errors.ERR_TICK_NOT_FOUND, "tick %s not deployed", t), nil
	}

	amtNum, err := num.Parse(op.Amt)
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_NUM, "invalid amt %q", op.Amt), nil
	}
	if amtNum.Sign() == 0 {
		return nil, errors.New(errors.ERR_INVALID_MINT_LIMIT, "amt must be positive"), nil
	}

	amtRescaled, err := amtNum.Rescale(info.Decimals)
	if err != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "amt rescale overflow"), nil
	}
	requested, err := amtRescaled.ToUint128()
	if err != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "amt exceeds u128 range"), nil
	}

	if info.LimitPerMint != nil && requested.Cmp(info.LimitPerMint) > 0 {
		return nil, errors.New(errors.ERR_INVALID_MINT_LIMIT, "amt %s exceeds per-mint limit", op.Amt), nil
	}

	remaining := info.Remaining()
	if remaining.IsZero() {
		return nil, errors.New(errors.ERR_TICK_MINTED_OUT, "tick %s fully minted", t), nil
	}

	amount := requested
	clamped := false
	if amount.Cmp(remaining) > 0 {
		amount = remaining
		clamped = true
	}

	if infraErr := write.UpdateMintTokenInfo(ctx, lower, amount, msg.BlockHeight); infraErr != nil {
		if e, ok := infraErr.(*errors.Error); ok && e.Code == errors.ERR_BALANCE_OVERFLOW {
			return nil, e, nil
		}
		return nil, nil, infraErr
	}

	balance, infraErr := read.GetBalance(ctx, msg.To, lower)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if err := balance.CreditOverall(amount); err != nil {
		return nil, err.(*errors.Error), nil
	}
	if infraErr := write.UpdateBalance(ctx, msg.To, balance); infraErr != nil {
		return nil, nil, infraErr
	}

	msgText := ""
	if clamped {
		msgText = "amount clamped to remaining supply"
	}

	return model.MintEvent{Tick: t, To: msg.To, Amount: amount, Clamped: clamped, Msg: msgText}, nil, nil
}

func executeTransferPhase1(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.Transfer) (model.Event, *errors.Error, error) {
	if !msg.CommitFrom.Equal(msg.To) {
		return nil, errors.New(errors.ERR_INVALID_TRANSFER, "transfer inscribe commit_from must equal to"), nil
	}

	t, tickErr := tick.FromString(op.Tick)
	if tickErr != nil {
		return nil, errors.New(errors.ERR_INVALID_TICK_LEN, "invalid tick %q", op.Tick), nil
	}
	lower := t.Lower()

	info, infraErr := read.GetTokenInfo(ctx, lower)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if info == nil {
		return nil, errors.New(errors.ERR_TICK_NOT_FOUND, "tick %s not deployed", t), nil
	}

	amtNum, err := num.Parse(op.Amt)
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_NUM, "invalid amt %q", op.Amt), nil
	}
	if amtNum.Sign() == 0 {
		return nil, errors.New(errors.ERR_INVALID_TRANSFER, "amt must be positive"), nil
	}
	amtRescaled, err := amtNum.Rescale(info.Decimals)
	if err != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "amt rescale overflow"), nil
	}
	amount, err := amtRescaled.ToUint128()
	if err != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "amt exceeds u128 range"), nil
	}

	balance, infraErr := read.GetBalance(ctx, msg.To, lower)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if balance.Available().Cmp(amount) < 0 {
		return nil, errors.New(errors.ERR_INSUFFICIENT_BALANCE, "insufficient available balance for tick %s", t), nil
	}
	if err := balance.ReserveTransferable(amount); err != nil {
		return nil, err.(*errors.Error), nil
	}
	if infraErr := write.UpdateBalance(ctx, msg.To, balance); infraErr != nil {
		return nil, nil, infraErr
	}

	log := model.TransferableLog{
		Owner:             msg.To,
		Tick:              lower,
		InscriptionID:     msg.InscriptionID,
		InscriptionNumber: msg.InscriptionNumber,
		Amount:            amount,
	}
	if infraErr := write.InsertTransferable(ctx, msg.To, log); infraErr != nil {
		return nil, nil, infraErr
	}
	if infraErr := write.InsertInscribeTransfer(ctx, msg.InscriptionID, model.InscribeTransfer{
		InscriptionID: msg.InscriptionID,
		Tick:          lower,
		Amount:        amount,
	}); infraErr != nil {
		return nil, nil, infraErr
	}

	return model.TransferPhase1Event{Tick: t, Owner: msg.To, Amount: amount}, nil, nil
}

func executeTransferPhase2(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.Transfer) (model.Event, *errors.Error, error) {
	entry, infraErr := read.GetInscribeTransfer(ctx, msg.InscriptionID)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if entry == nil {
		return nil, errors.New(errors.ERR_INSCRIBE_TRANSFER_NOT_FOUND, "no inscribe-transfer entry for %s", msg.InscriptionID), nil
	}

	log, infraErr := read.GetTransferableByID(ctx, msg.From, msg.InscriptionID)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if log == nil {
		return nil, errors.New(errors.ERR_INSCRIBE_TRANSFER_NOT_FOUND, "no transferable log for %s under %s", msg.InscriptionID, msg.From), nil
	}

	if infraErr := write.RemoveTransferable(ctx, msg.From, msg.InscriptionID); infraErr != nil {
		return nil, nil, infraErr
	}
	if infraErr := write.RemoveInscribeTransfer(ctx, msg.InscriptionID); infraErr != nil {
		return nil, nil, infraErr
	}

	fromBalance, infraErr := read.GetBalance(ctx, msg.From, entry.Tick)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if err := fromBalance.DebitOverall(entry.Amount); err != nil {
		return nil, err.(*errors.Error), nil
	}
	if err := fromBalance.ReleaseTransferable(entry.Amount); err != nil {
		return nil, err.(*errors.Error), nil
	}
	if infraErr := write.UpdateBalance(ctx, msg.From, fromBalance); infraErr != nil {
		return nil, nil, infraErr
	}

	// A phase-2 send whose new_satpoint went unbound has nowhere to land:
	// the asset is credited back to its sender instead of being burned.
	creditToFrom := msg.NewSatpoint.Outpoint.IsUnbound()
	recipient := msg.To
	if creditToFrom {
		recipient = msg.From
	}

	recipientBalance, infraErr := read.GetBalance(ctx, recipient, entry.Tick)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if err := recipientBalance.CreditOverall(entry.Amount); err != nil {
		return nil, err.(*errors.Error), nil
	}
	if infraErr := write.UpdateBalance(ctx, recipient, recipientBalance); infraErr != nil {
		return nil, nil, infraErr
	}

	return model.TransferPhase2Event{
		Tick:         tickFromLower(entry.Tick),
		From:         msg.From,
		To:           recipient,
		Amount:       entry.Amount,
		CreditToFrom: creditToFrom,
	}, nil, nil
}

// tickFromLower recovers a display Tick from a LowerTick for receipt
// purposes; since LowerTick is lossy (case is folded), this renders the
// canonical lowercase form rather than whatever case the deploy used.
func tickFromLower(lower tick.LowerTick) tick.Tick {
	var t tick.Tick
	copy(t[:], lower[:4])
	return t
}
