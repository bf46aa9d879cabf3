package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/libsv/go-bt/v2/chainhash"

	"github.com/okx/brc20index/errors"
)

// InscriptionID identifies an inscription by its reveal transaction and
// position within it: "<txid>i<index>".
type InscriptionID struct {
	Txid  chainhash.Hash
	Index uint32
}

func (id InscriptionID) String() string {
	return fmt.Sprintf("%si%d", id.Txid.String(), id.Index)
}

// ParseInscriptionID parses the "<txid>i<index>" wire form.
func ParseInscriptionID(s string) (InscriptionID, error) {
	parts := strings.SplitN(s, "i", 2)
	if len(parts) != 2 {
		return InscriptionID{}, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed inscription id %q", s)
	}

	txid, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return InscriptionID{}, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed inscription id %q", s, err)
	}

	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return InscriptionID{}, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed inscription id %q", s, err)
	}

	return InscriptionID{Txid: *txid, Index: uint32(index)}, nil
}
