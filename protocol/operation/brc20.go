package operation

import (
	"github.com/segmentio/encoding/json"

	"github.com/okx/brc20index/errors"
)

// DefaultDecimals is the brc-20 deploy default when `dec` is omitted (§4.5).
const DefaultDecimals = 18

// Deploy is the brc-20 `deploy` operation, fields still as decimal strings:
// semantic validation and rescaling happens in the brc20 executor (§4.7),
// not here (C5 is structural parsing only).
type Deploy struct {
	Tick string `json:"tick"`
	Max  string `json:"max"`
	Lim  string `json:"lim"`
	Dec  string `json:"dec"`
}

func (Deploy) Protocol() string { return ProtocolBRC20 }
func (Deploy) Op() string       { return "deploy" }

// Mint is the brc-20 `mint` operation.
type Mint struct {
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
}

func (Mint) Protocol() string { return ProtocolBRC20 }
func (Mint) Op() string       { return "mint" }

// Transfer is the brc-20 `transfer` operation (used for both phase-1
// inscribe and phase-2 send; the resolver's Action distinguishes them).
type Transfer struct {
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
}

func (Transfer) Protocol() string { return ProtocolBRC20 }
func (Transfer) Op() string       { return "transfer" }

func parseBRC20(op string, body []byte) (Operation, error) {
	switch op {
	case "deploy":
		var d Deploy
		if err := decodeStrict(body, &d); err != nil {
			return nil, err
		}
		if d.Tick == "" || d.Max == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc-20 deploy missing required field")
		}
		return d, nil
	case "mint":
		var m Mint
		if err := decodeStrict(body, &m); err != nil {
			return nil, err
		}
		if m.Tick == "" || m.Amt == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc-20 mint missing required field")
		}
		return m, nil
	case "transfer":
		var t Transfer
		if err := decodeStrict(body, &t); err != nil {
			return nil, err
		}
		if t.Tick == "" || t.Amt == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc-20 transfer missing required field")
		}
		return t, nil
	default:
		return nil, errors.New(errors.ERR_PARSE_OPERATION, "unrecognised brc-20 op %q", op)
	}
}

// decodeStrict unmarshals body into dst. segmentio/encoding/json applies
// last-field-wins on duplicate keys by construction (§4.5(5)), so no extra
// dup-detection pass is needed here.
func decodeStrict(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New(errors.ERR_PARSE_OPERATION, "malformed operation body", err)
	}
	return nil
}
