package operation

import "github.com/okx/brc20index/errors"

// EvmTxData is the brc-zero `evm` operation's `d` payload: an unsigned
// or signed EVM-style legacy transaction carried as hex-string fields,
// exactly as the upstream tracker's envelope inscribes it. RLP-encoding
// it into the wire form the BRCZero node expects is the brczero
// client's job (C10), not this parser's.
type EvmTxData struct {
	Gas      string  `json:"gas"`
	GasPrice string  `json:"gasPrice"`
	Input    string  `json:"input"`
	Nonce    string  `json:"nonce"`
	To       *string `json:"to"`
	Value    string  `json:"value"`
	V        string  `json:"v"`
	R        string  `json:"r"`
	S        string  `json:"s"`
}

// Evm is the brc-zero `evm` operation (§4.5, §6).
type Evm struct {
	D EvmTxData `json:"d"`
}

func (Evm) Protocol() string { return ProtocolBRCZero }
func (Evm) Op() string       { return "evm" }

func parseBRCZero(op string, body []byte) (Operation, error) {
	if op != "evm" {
		return nil, errors.New(errors.ERR_PARSE_OPERATION, "unrecognised brc-zero op %q", op)
	}

	var e Evm
	if err := decodeStrict(body, &e); err != nil {
		return nil, err
	}
	if e.D.Gas == "" || e.D.GasPrice == "" || e.D.Nonce == "" || e.D.Value == "" || e.D.V == "" || e.D.R == "" || e.D.S == "" {
		return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc-zero evm missing required field")
	}
	return e, nil
}
