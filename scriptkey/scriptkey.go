// Package scriptkey implements ScriptKey (C3): the canonical owner
// identity derived from a Bitcoin output script, used as the owner
// component of every balance row.
package scriptkey

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/libsv/go-bt/v2/bscript"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // only standard hash160 implementation in the dependency pack

	"github.com/okx/brc20index/settings"
)

// ScriptKey is either a typed Bitcoin Address (when the script is
// addressable under the active network) or a bare script hash otherwise
// (§4.3). Equality and ordering are syntactic over the rendered string.
type ScriptKey struct {
	isAddress bool
	address   string
	hash      [20]byte
}

// FromScript classifies script under network: a standard P2PKH/P2PK
// script yields an Address ScriptKey, anything else falls back to its
// HASH160 script hash, mirroring the upstream ord indexer's
// Address::from_script-or-script_hash fallback.
func FromScript(script *bscript.Script, network settings.Network) (ScriptKey, error) {
	mainnet := network == settings.NetworkMainnet

	if pkh, err := script.PublicKeyHash(); err == nil && len(pkh) == 20 {
		addr, addrErr := bscript.NewAddressFromPublicKeyHash(pkh, mainnet)
		if addrErr == nil {
			return ScriptKey{isAddress: true, address: addr.AddressString}, nil
		}
	}

	return ScriptKey{isAddress: false, hash: hash160(*script)}, nil
}

// FromAddressString builds an already-known address ScriptKey, used by
// tests and by the sqlite ledger backend to rebuild a stored key.
func FromAddressString(address string) ScriptKey {
	return ScriptKey{isAddress: true, address: address}
}

func hash160(b []byte) [20]byte {
	shaSum := sha256.Sum256(b)
	hasher := ripemd160.New()
	hasher.Write(shaSum[:])
	var out [20]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// String renders the ScriptKey as its address string, or the hex-encoded
// script hash when not addressable.
func (k ScriptKey) String() string {
	if k.isAddress {
		return k.address
	}
	return hex.EncodeToString(k.hash[:])
}

// CanonicalBytes is the byte form fed into tick.Calculate (§4.2) and
// used for equality/ordering.
func (k ScriptKey) CanonicalBytes() []byte {
	if k.isAddress {
		return []byte(k.address)
	}
	return k.hash[:]
}

// Equal reports syntactic equality (§4.3).
func (k ScriptKey) Equal(other ScriptKey) bool {
	return k.String() == other.String()
}

// IsZero reports whether k was never assigned an identity.
func (k ScriptKey) IsZero() bool {
	return !k.isAddress && k.hash == [20]byte{}
}
