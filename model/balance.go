package model

import (
	"github.com/holiman/uint256"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/tick"
)

// Balance is the per-(ScriptKey, LowerTick) ledger row (§3). Overall and
// Transferable are unscaled base-unit integers (u128 range); the
// invariant Transferable <= Overall must hold after every mutation.
type Balance struct {
	Tick          tick.LowerTick
	Overall       *uint256.Int
	Transferable  *uint256.Int
}

// NewBalance returns the zero-value balance row for tick (§3: balances are
// created on first credit and persist with zero values).
func NewBalance(lower tick.LowerTick) Balance {
	return Balance{Tick: lower, Overall: new(uint256.Int), Transferable: new(uint256.Int)}
}

// Clone returns a deep copy so callers can mutate it without aliasing the
// ledger's stored row before a write is committed.
func (b Balance) Clone() Balance {
	return Balance{
		Tick:         b.Tick,
		Overall:      new(uint256.Int).Set(b.Overall),
		Transferable: new(uint256.Int).Set(b.Transferable),
	}
}

// Available is the portion of Overall not already reserved by a
// phase-1 transfer inscribe (§4.7 Transfer Phase 1).
func (b Balance) Available() *uint256.Int {
	return new(uint256.Int).Sub(b.Overall, b.Transferable)
}

// CreditOverall adds amt to Overall, checked for overflow (§4.7 Mint).
func (b *Balance) CreditOverall(amt *uint256.Int) error {
	sum := new(uint256.Int)
	if sum.AddOverflow(b.Overall, amt) {
		return errors.New(errors.ERR_BALANCE_OVERFLOW, "overall balance overflow for tick %s", b.Tick)
	}
	b.Overall = sum
	return nil
}

// DebitOverall subtracts amt from Overall, checked for underflow.
func (b *Balance) DebitOverall(amt *uint256.Int) error {
	diff := new(uint256.Int)
	if diff.SubOverflow(b.Overall, amt) {
		return errors.New(errors.ERR_INSUFFICIENT_BALANCE, "overall balance underflow for tick %s", b.Tick)
	}
	b.Overall = diff
	return nil
}

// ReserveTransferable moves amt from available into Transferable
// (§4.7 Transfer Phase 1).
func (b *Balance) ReserveTransferable(amt *uint256.Int) error {
	if b.Available().Cmp(amt) < 0 {
		return errors.New(errors.ERR_INSUFFICIENT_BALANCE, "insufficient available balance for tick %s", b.Tick)
	}
	sum := new(uint256.Int)
	if sum.AddOverflow(b.Transferable, amt) {
		return errors.New(errors.ERR_BALANCE_OVERFLOW, "transferable balance overflow for tick %s", b.Tick)
	}
	b.Transferable = sum
	return nil
}

// ReleaseTransferable subtracts amt from Transferable, used when a
// phase-1 reservation is settled or unwound (§4.7 Transfer Phase 2).
func (b *Balance) ReleaseTransferable(amt *uint256.Int) error {
	diff := new(uint256.Int)
	if diff.SubOverflow(b.Transferable, amt) {
		return errors.New(errors.ERR_BALANCE_OVERFLOW, "transferable balance underflow for tick %s", b.Tick)
	}
	b.Transferable = diff
	return nil
}

// Invariant checks Transferable <= Overall (§8 invariant 2).
func (b Balance) Invariant() bool {
	return b.Transferable.Cmp(b.Overall) <= 0
}
