// Package tick implements the 4-byte BRC20 ticker and 5-byte BRC20S pool
// identifier primitives (C2), the key-normalisation layer every ledger
// lookup in this repo is built on.
package tick

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/okx/brc20index/errors"
)

// Tick is a case-preserving 4-byte ticker as it appears on the wire.
type Tick [4]byte

// FromString accepts any UTF-8 string whose byte length is exactly 4
// (§4.2). Anything else is rejected — this is the only Tick encoding
// this repo implements (§9 Open Question 2).
func FromString(s string) (Tick, error) {
	b := []byte(s)
	if len(b) != 4 {
		return Tick{}, errors.New(errors.ERR_INVALID_TICK_LEN, "tick %q must be exactly 4 bytes, got %d", s, len(b))
	}
	var t Tick
	copy(t[:], b)
	return t, nil
}

func (t Tick) String() string {
	return string(t[:])
}

// LowerTick is the 16-byte zero-padded, ASCII-lowercased canonical ledger
// key for a Tick. Two Ticks collide in the ledger iff their LowerTick
// forms are equal (§3 invariant).
type LowerTick [16]byte

// Lower derives the canonical ledger key for t: each byte is
// ASCII-lowercased (bytes outside [A-Z] pass through unchanged), then the
// 4 resulting bytes are placed at the start of a 16-byte zero-padded buffer.
func (t Tick) Lower() LowerTick {
	var l LowerTick
	for i, c := range t {
		if c >= 'A' && c <= 'Z' {
			l[i] = c + ('a' - 'A')
		} else {
			l[i] = c
		}
	}
	return l
}

// Hex is the ledger key encoding used for token rows (§6).
func (l LowerTick) Hex() string {
	return hex.EncodeToString(l[:])
}

func (l LowerTick) String() string {
	return l.Hex()
}

// TickID is the 5-byte deterministic identifier of a BRC20S pool tick (§4.2).
type TickID [5]byte

// FromStringTickID decodes a 10-hex-character TickID.
func FromStringTickID(s string) (TickID, error) {
	if len(s) != 10 {
		return TickID{}, errors.New(errors.ERR_INVALID_POOL_ID, "tick id %q must be 10 hex chars", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return TickID{}, errors.New(errors.ERR_INVALID_POOL_ID, "tick id %q is not valid hex", s, err)
	}
	var id TickID
	copy(id[:], raw)
	return id, nil
}

func (id TickID) String() string {
	return hex.EncodeToString(id[:])
}

// CanonicalBytes is implemented by ScriptKey to feed tick.Calculate
// without tick importing the scriptkey package (which would create a
// cycle — scriptkey has no reason to depend on tick).
type CanonicalBytes interface {
	CanonicalBytes() []byte
}

// Calculate computes the deterministic TickID for a BRC20S deploy: the
// first 5 bytes of SHA-256 over
// earn ‖ supply_le_bytes ‖ [decimals] ‖ from.canonical_bytes ‖ to.canonical_bytes
// (§4.2). Different deployers yield different TickIDs for the same
// ticker text — this is what makes pools globally unique without a
// registry.
func Calculate(earn string, supply uint64, decimals uint8, from, to CanonicalBytes) TickID {
	h := sha256.New()
	h.Write([]byte(earn))

	var supplyLE [8]byte
	binary.LittleEndian.PutUint64(supplyLE[:], supply)
	h.Write(supplyLE[:])

	h.Write([]byte{decimals})
	h.Write(from.CanonicalBytes())
	h.Write(to.CanonicalBytes())

	sum := h.Sum(nil)

	var id TickID
	copy(id[:], sum[:5])
	return id
}

// Pid is a TickID plus a 2-hex-digit pool index (0..255), e.g. "abcd012345#00".
type Pid string

// NewPid builds the 13-character pool identifier for a TickID and pool index.
func NewPid(id TickID, poolIndex uint8) Pid {
	return Pid(id.String() + "#" + strings.ToLower(hexByte(poolIndex)))
}

func hexByte(b uint8) string {
	s := strconv.FormatUint(uint64(b), 16)
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// TickID returns the TickID portion of a Pid.
func (p Pid) TickID() (TickID, error) {
	s := string(p)
	if len(s) != 13 || s[10] != '#' {
		return TickID{}, errors.New(errors.ERR_INVALID_POOL_ID, "malformed pid %q", s)
	}
	return FromStringTickID(s[:10])
}

// PoolIndex returns the 0..255 pool index portion of a Pid.
func (p Pid) PoolIndex() (uint8, error) {
	s := string(p)
	if len(s) != 13 || s[10] != '#' {
		return 0, errors.New(errors.ERR_INVALID_POOL_ID, "malformed pid %q", s)
	}
	n, err := strconv.ParseUint(s[11:], 16, 8)
	if err != nil {
		return 0, errors.New(errors.ERR_INVALID_POOL_ID, "malformed pid index %q", s, err)
	}
	return uint8(n), nil
}
