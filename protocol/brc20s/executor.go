// Package brc20s implements the brc20-s executor (C8): pool deploy,
// stake, unstake, pool-scoped mint/transfer, and the passive-withdraw
// path triggered by a BTC balance decrease, all sharing the standard
// "master-chef" reward-accrual state machine (§4.8).
package brc20s

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/ledger"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/num"
	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

// Execute validates msg against current pool/user state and applies it,
// returning the per-message Receipt entry, mirroring brc20.Execute's
// error-path contract: infrastructure failures return a non-nil error,
// protocol failures are reported through entry.Err with no mutation.
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
	case operation.PoolDeploy:
		entry.OpKind = model.OpKindDeploy
		event, protoErr, infraErr = executePoolDeploy(ctx, read, write, msg, op)
	case operation.Stake:
		entry.OpKind = model.OpKindStake
		event, protoErr, infraErr = executeStake(ctx, read, write, msg, op)
	case operation.Unstake:
		entry.OpKind = model.OpKindUnstake
		event, protoErr, infraErr = executeUnstake(ctx, read, write, msg, op.Pid, op.Amt, false)
	case operation.PoolMint:
		entry.OpKind = model.OpKindMint
		event, protoErr, infraErr = executePoolMint(ctx, read, write, msg, op)
	case operation.PoolTransfer:
		if msg.Action == model.ActionNew {
			entry.OpKind = model.OpKindTransferPhase1
		} else {
			entry.OpKind = model.OpKindTransferPhase2
		}
		event, protoErr, infraErr = executePoolTransfer(ctx, read, write, msg, op)
	default:
		return model.ReceiptEntry{}, errors.New(errors.ERR_PARSE_OPERATION, "brc20s executor received non brc20-s operation")
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

// ExecutePassiveWithdraw forces an unstake of shortfall from owner's
// position in the BTC-staked pool pid, synthesized by the orchestrator when
// a BTC balance decrease leaves less BTC than the owner has staked
// (§4.8, §4.9 step 1). It is not driven by an inscription operation, so
// it bypasses the Message/Receipt-entry wrapping of Execute and is
// called once per affected pool directly.
func ExecutePassiveWithdraw(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, owner scriptkey.ScriptKey, pid tick.Pid, shortfall *uint256.Int, blockHeight uint32) (*model.TransferPhase2Event, error) {
	msg := model.Message{BlockHeight: blockHeight, From: owner, To: owner}
	event, protoErr, infraErr := executeUnstake(ctx, read, write, msg, string(pid), shortfall.Dec(), true)
	if infraErr != nil {
		return nil, infraErr
	}
	if protoErr != nil {
		return nil, protoErr
	}
	ev, _ := event.(model.TransferPhase2Event)
	return &ev, nil
}

// updatePool brings pool's accumulator to currentBlock before any stake
// change is applied (§4.8 master-chef accrual).
func updatePool(pool *model.PoolInfo, currentBlock uint32) *errors.Error {
	if currentBlock <= pool.LastUpdateBlock || pool.Staked.IsZero() {
		pool.LastUpdateBlock = currentBlock
		return nil
	}

	blocksElapsed := uint256.NewInt(uint64(currentBlock - pool.LastUpdateBlock))
	reward := new(uint256.Int)
	if reward.MulOverflow(pool.Erate, blocksElapsed) {
		return errors.New(errors.ERR_OVERFLOW, "pool %s reward overflow", pool.Pid)
	}

	remaining := pool.Remaining()
	if reward.Cmp(remaining) > 0 {
		reward = remaining
	}
	if reward.IsZero() {
		pool.LastUpdateBlock = currentBlock
		return nil
	}

	scaled := new(uint256.Int)
	if scaled.MulOverflow(reward, model.RewardPrecision) {
		return errors.New(errors.ERR_OVERFLOW, "pool %s reward scaling overflow", pool.Pid)
	}
	accDelta := new(uint256.Int).Div(scaled, pool.Staked)

	accSum := new(uint256.Int)
	if accSum.AddOverflow(pool.AccRewardPerShare, accDelta) {
		return errors.New(errors.ERR_OVERFLOW, "pool %s accumulator overflow", pool.Pid)
	}
	pool.AccRewardPerShare = accSum

	mintedSum := new(uint256.Int)
	if mintedSum.AddOverflow(pool.Minted, reward) {
		return errors.New(errors.ERR_OVERFLOW, "pool %s minted overflow", pool.Pid)
	}
	pool.Minted = mintedSum
	pool.LastUpdateBlock = currentBlock
	return nil
}

// settleUser folds user's pending reward (staked * acc / PRECISION -
// reward_debt) into Reward and resets RewardDebt to the current
// accumulator, called right before user.Staked changes (§4.8).
func settleUser(pool model.PoolInfo, user *model.UserInfo) *errors.Error {
	owed := new(uint256.Int)
	if owed.MulOverflow(user.Staked, pool.AccRewardPerShare) {
		return errors.New(errors.ERR_OVERFLOW, "user reward overflow in pool %s", pool.Pid)
	}
	owed = new(uint256.Int).Div(owed, model.RewardPrecision)

	pending := new(uint256.Int)
	if owed.Cmp(user.RewardDebt) >= 0 {
		pending.Sub(owed, user.RewardDebt)
	}

	sum := new(uint256.Int)
	if sum.AddOverflow(user.Reward, pending) {
		return errors.New(errors.ERR_OVERFLOW, "user reward overflow in pool %s", pool.Pid)
	}
	user.Reward = sum
	user.RewardDebt = owed
	return nil
}

func parsePid(s string) (tick.Pid, *errors.Error) {
	pid := tick.Pid(s)
	if _, err := pid.TickID(); err != nil {
		return "", errors.New(errors.ERR_INVALID_POOL_ID, "malformed pool id %q", s)
	}
	return pid, nil
}

func parseAmountBaseUnits(s string, decimals uint8) (*uint256.Int, *errors.Error) {
	n, err := num.Parse(s)
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_NUM, "invalid amt %q", s)
	}
	if n.Sign() == 0 {
		return nil, errors.New(errors.ERR_INVALID_STAKE_TICK, "amt must be positive")
	}
	rescaled, rerr := n.Rescale(decimals)
	if rerr != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "amt rescale overflow")
	}
	v, verr := rescaled.ToUint128()
	if verr != nil {
		return nil, errors.New(errors.ERR_OVERFLOW, "amt exceeds u128 range")
	}
	return v, nil
}

func executePoolDeploy(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.PoolDeploy) (model.Event, *errors.Error, error) {
	pid, perr := parsePid(op.Pid)
	if perr != nil {
		return nil, perr, nil
	}

	existing, infraErr := read.GetPoolInfo(ctx, pid)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if existing != nil {
		return nil, errors.New(errors.ERR_INVALID_POOL_ID, "pool %s already deployed", pid), nil
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

	totalNum, err := num.Parse(op.Total)
	if err != nil || totalNum.Sign() == 0 || !totalNum.FitsUint64() {
		return nil, errors.New(errors.ERR_INVALID_MAX_SUPPLY, "invalid total %q", op.Total), nil
	}
	totalUint64, _ := totalNum.ToUint128()

	dmax, aerr := parseAmountBaseUnits(op.Dmax, decimals)
	if aerr != nil {
		return nil, aerr, nil
	}
	erate, aerr := parseAmountBaseUnits(op.Erate, decimals)
	if aerr != nil {
		return nil, aerr, nil
	}

	// The indexer recomputes the deterministic TickID from the deploy's
	// own fields and requires it to match the pid the inscriber declared
	// (§4.2): a forged or mistyped pid is rejected here rather than
	// trusted at face value.
	wantTickID := tick.Calculate(op.Earn, totalUint64.Uint64(), decimals, msg.CommitFrom, msg.To)
	gotTickID, _ := pid.TickID()
	if wantTickID != gotTickID {
		return nil, errors.New(errors.ERR_INVALID_POOL_ID, "pool id %s does not match computed tick id", pid), nil
	}

	info := model.PoolInfo{
		Pid:               pid,
		StakeTick:         op.Stake,
		EarnTickID:        gotTickID,
		Erate:             erate,
		Dmax:              dmax,
		Minted:            new(uint256.Int),
		Staked:            new(uint256.Int),
		AccRewardPerShare: new(uint256.Int),
		LastUpdateBlock:   msg.BlockHeight,
		OnlyOperator:      op.Only == "1",
		Decimals:          decimals,
		DeployBy:          msg.CommitFrom,
	}

	if infraErr := write.InsertPoolInfo(ctx, info); infraErr != nil {
		if e, ok := infraErr.(*errors.Error); ok && e.Code == errors.ERR_INVALID_POOL_ID {
			return nil, e, nil
		}
		return nil, nil, infraErr
	}

	return model.DeployEvent{Supply: dmax, Decimals: decimals}, nil, nil
}

func executeStake(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.Stake) (model.Event, *errors.Error, error) {
	pid, perr := parsePid(op.Pid)
	if perr != nil {
		return nil, perr, nil
	}

	pool, infraErr := read.GetPoolInfo(ctx, pid)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if pool == nil {
		return nil, errors.New(errors.ERR_POOL_NOT_FOUND, "pool %s not found", pid), nil
	}

	amount, aerr := parseAmountBaseUnits(op.Amt, pool.Decimals)
	if aerr != nil {
		return nil, aerr, nil
	}

	if !pool.StakedBTC() {
		stakeTick, terr := tick.FromString(pool.StakeTick)
		if terr != nil {
			return nil, errors.New(errors.ERR_INVALID_STAKE_TICK, "pool %s has malformed stake tick", pid), nil
		}
		balance, infraErr := read.GetBalance(ctx, msg.From, stakeTick.Lower())
		if infraErr != nil {
			return nil, nil, infraErr
		}
		if err := balance.DebitOverall(amount); err != nil {
			return nil, err.(*errors.Error), nil
		}
		if infraErr := write.UpdateBalance(ctx, msg.From, balance); infraErr != nil {
			return nil, nil, infraErr
		}
	}

	user, infraErr := read.GetUserInfo(ctx, pid, msg.From)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	var u model.UserInfo
	if user != nil {
		u = *user
	} else {
		u = model.NewUserInfo(pid, msg.From)
	}

	if err := updatePool(pool, msg.BlockHeight); err != nil {
		return nil, err, nil
	}
	if err := settleUser(*pool, &u); err != nil {
		return nil, err, nil
	}

	stakedSum := new(uint256.Int)
	if stakedSum.AddOverflow(u.Staked, amount) {
		return nil, errors.New(errors.ERR_BALANCE_OVERFLOW, "stake overflow in pool %s", pid), nil
	}
	u.Staked = stakedSum
	u.LastUpdateBlock = msg.BlockHeight

	poolStakedSum := new(uint256.Int)
	if poolStakedSum.AddOverflow(pool.Staked, amount) {
		return nil, errors.New(errors.ERR_BALANCE_OVERFLOW, "pool %s total stake overflow", pid), nil
	}
	pool.Staked = poolStakedSum

	if infraErr := write.UpdatePoolInfo(ctx, *pool); infraErr != nil {
		return nil, nil, infraErr
	}
	if infraErr := write.UpdateUserInfo(ctx, u); infraErr != nil {
		return nil, nil, infraErr
	}

	return model.TransferPhase1Event{Owner: msg.From, Amount: amount}, nil, nil
}

// executeUnstake handles both a user-issued unstake operation and an
// orchestrator-synthesized passive withdrawal (forced=true skips the
// available-balance framing and never fails on insufficient stake,
// clamping to what is actually staked instead — §4.8).
func executeUnstake(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, pidStr, amtStr string, forced bool) (model.Event, *errors.Error, error) {
	pid, perr := parsePid(pidStr)
	if perr != nil {
		return nil, perr, nil
	}

	pool, infraErr := read.GetPoolInfo(ctx, pid)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if pool == nil {
		return nil, errors.New(errors.ERR_POOL_NOT_FOUND, "pool %s not found", pid), nil
	}

	amount, aerr := parseAmountBaseUnits(amtStr, pool.Decimals)
	if aerr != nil {
		return nil, aerr, nil
	}

	user, infraErr := read.GetUserInfo(ctx, pid, msg.From)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if user == nil {
		return nil, errors.New(errors.ERR_STAKE_NOT_FOUND, "no stake for %s in pool %s", msg.From, pid), nil
	}
	u := *user

	if amount.Cmp(u.Staked) > 0 {
		if !forced {
			return nil, errors.New(errors.ERR_INSUFFICIENT_BALANCE, "unstake amount exceeds staked balance in pool %s", pid), nil
		}
		amount = new(uint256.Int).Set(u.Staked)
	}

	if err := updatePool(pool, msg.BlockHeight); err != nil {
		return nil, err, nil
	}
	if err := settleUser(*pool, &u); err != nil {
		return nil, err, nil
	}

	u.Staked = new(uint256.Int).Sub(u.Staked, amount)
	u.LastUpdateBlock = msg.BlockHeight
	pool.Staked = new(uint256.Int).Sub(pool.Staked, amount)

	if !pool.StakedBTC() {
		stakeTick, terr := tick.FromString(pool.StakeTick)
		if terr != nil {
			return nil, errors.New(errors.ERR_INVALID_STAKE_TICK, "pool %s has malformed stake tick", pid), nil
		}
		balance, infraErr := read.GetBalance(ctx, msg.From, stakeTick.Lower())
		if infraErr != nil {
			return nil, nil, infraErr
		}
		if err := balance.CreditOverall(amount); err != nil {
			return nil, err.(*errors.Error), nil
		}
		if infraErr := write.UpdateBalance(ctx, msg.From, balance); infraErr != nil {
			return nil, nil, infraErr
		}
	}

	if infraErr := write.UpdatePoolInfo(ctx, *pool); infraErr != nil {
		return nil, nil, infraErr
	}
	if infraErr := write.UpdateUserInfo(ctx, u); infraErr != nil {
		return nil, nil, infraErr
	}

	return model.TransferPhase2Event{From: msg.From, To: msg.From, Amount: amount, CreditToFrom: true}, nil, nil
}

func executePoolMint(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.PoolMint) (model.Event, *errors.Error, error) {
	pid, perr := parsePid(op.Tid)
	if perr != nil {
		return nil, perr, nil
	}

	pool, infraErr := read.GetPoolInfo(ctx, pid)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if pool == nil {
		return nil, errors.New(errors.ERR_POOL_NOT_FOUND, "pool %s not found", pid), nil
	}

	user, infraErr := read.GetUserInfo(ctx, pid, msg.From)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if user == nil {
		return nil, errors.New(errors.ERR_STAKE_NOT_FOUND, "no stake for %s in pool %s", msg.From, pid), nil
	}
	u := *user

	if err := updatePool(pool, msg.BlockHeight); err != nil {
		return nil, err, nil
	}
	if err := settleUser(*pool, &u); err != nil {
		return nil, err, nil
	}

	requested, aerr := parseAmountBaseUnits(op.Amt, pool.Decimals)
	if aerr != nil {
		return nil, aerr, nil
	}

	amount := requested
	if amount.Cmp(u.Reward) > 0 {
		amount = new(uint256.Int).Set(u.Reward)
	}
	if amount.IsZero() {
		return nil, errors.New(errors.ERR_INVALID_MINT_LIMIT, "no pending reward to mint in pool %s", pid), nil
	}

	u.Reward = new(uint256.Int).Sub(u.Reward, amount)

	t, terr := tick.FromString(op.Tick)
	if terr != nil {
		return nil, errors.New(errors.ERR_INVALID_TICK_LEN, "invalid tick %q", op.Tick), nil
	}
	earnTick := t.Lower()

	balance, infraErr := read.GetBalance(ctx, msg.From, earnTick)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if err := balance.CreditOverall(amount); err != nil {
		return nil, err.(*errors.Error), nil
	}

	if infraErr := write.UpdatePoolInfo(ctx, *pool); infraErr != nil {
		return nil, nil, infraErr
	}
	if infraErr := write.UpdateUserInfo(ctx, u); infraErr != nil {
		return nil, nil, infraErr
	}
	if infraErr := write.UpdateBalance(ctx, msg.From, balance); infraErr != nil {
		return nil, nil, infraErr
	}

	return model.MintEvent{To: msg.From, Amount: amount}, nil, nil
}

// executePoolTransfer mirrors brc20's two-phase transfer over the pool's
// earned token, reusing the same TransferableLog/InscribeTransfer ledger
// rows keyed by the pool's earn tick rather than a brc-20 deploy's tick
// (§4.8: "pool-scoped mint/transfer").
func executePoolTransfer(ctx context.Context, read ledger.ReadStore, write ledger.WriteStore, msg model.Message, op operation.PoolTransfer) (model.Event, *errors.Error, error) {
	t, terr := tick.FromString(op.Tick)
	if terr != nil {
		return nil, errors.New(errors.ERR_INVALID_TICK_LEN, "invalid tick %q", op.Tick), nil
	}
	lower := t.Lower()

	if msg.Action == model.ActionNew {
		amount, aerr := parseAmountBaseUnits(op.Amt, operation.DefaultDecimals)
		if aerr != nil {
			return nil, aerr, nil
		}

		balance, infraErr := read.GetBalance(ctx, msg.From, lower)
		if infraErr != nil {
			return nil, nil, infraErr
		}
		if balance.Available().Cmp(amount) < 0 {
			return nil, errors.New(errors.ERR_INSUFFICIENT_BALANCE, "insufficient available balance for tick %s", t), nil
		}
		if err := balance.ReserveTransferable(amount); err != nil {
			return nil, err.(*errors.Error), nil
		}
		if infraErr := write.UpdateBalance(ctx, msg.From, balance); infraErr != nil {
			return nil, nil, infraErr
		}

		if infraErr := write.InsertTransferable(ctx, msg.From, model.TransferableLog{
			Owner:             msg.From,
			Tick:              lower,
			InscriptionID:     msg.InscriptionID,
			InscriptionNumber: msg.InscriptionNumber,
			Amount:            amount,
		}); infraErr != nil {
			return nil, nil, infraErr
		}
		if infraErr := write.InsertInscribeTransfer(ctx, msg.InscriptionID, model.InscribeTransfer{
			InscriptionID: msg.InscriptionID,
			Tick:          lower,
			Amount:        amount,
		}); infraErr != nil {
			return nil, nil, infraErr
		}

		return model.TransferPhase1Event{Tick: t, Owner: msg.From, Amount: amount}, nil, nil
	}

	entry, infraErr := read.GetInscribeTransfer(ctx, msg.InscriptionID)
	if infraErr != nil {
		return nil, nil, infraErr
	}
	if entry == nil {
		return nil, errors.New(errors.ERR_INSCRIBE_TRANSFER_NOT_FOUND, "no inscribe-transfer entry for %s", msg.InscriptionID), nil
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

	return model.TransferPhase2Event{From: msg.From, To: recipient, Amount: entry.Amount, CreditToFrom: creditToFrom}, nil, nil
}
