package operation

import "github.com/okx/brc20index/errors"

// PoolDeploy is the brc20-s pool `deploy` operation (§4.5 table).
type PoolDeploy struct {
	Tick  string `json:"t"`
	Pid   string `json:"pid"`
	Stake string `json:"stake"`
	Earn  string `json:"earn"`
	Erate string `json:"erate"`
	Dmax  string `json:"dmax"`
	Total string `json:"total"`
	Only  string `json:"only"`
	Dec   string `json:"dec"`
}

func (PoolDeploy) Protocol() string { return ProtocolBRC20S }
func (PoolDeploy) Op() string       { return "deploy" }

// Stake is the brc20-s `stake` operation.
type Stake struct {
	Pid string `json:"pid"`
	Amt string `json:"amt"`
}

func (Stake) Protocol() string { return ProtocolBRC20S }
func (Stake) Op() string       { return "stake" }

// Unstake is the brc20-s `unstake` operation.
type Unstake struct {
	Pid string `json:"pid"`
	Amt string `json:"amt"`
}

func (Unstake) Protocol() string { return ProtocolBRC20S }
func (Unstake) Op() string       { return "unstake" }

// PoolMint is the brc20-s `mint` operation, pool-scoped via Tid.
type PoolMint struct {
	Tid  string `json:"tid"`
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
}

func (PoolMint) Protocol() string { return ProtocolBRC20S }
func (PoolMint) Op() string       { return "mint" }

// PoolTransfer is the brc20-s `transfer` operation, pool-scoped via Tid.
type PoolTransfer struct {
	Tid  string `json:"tid"`
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
}

func (PoolTransfer) Protocol() string { return ProtocolBRC20S }
func (PoolTransfer) Op() string       { return "transfer" }

func parseBRC20S(op string, body []byte) (Operation, error) {
	switch op {
	case "deploy":
		var d PoolDeploy
		if err := decodeStrict(body, &d); err != nil {
			return nil, err
		}
		if d.Tick == "" || d.Pid == "" || d.Stake == "" || d.Earn == "" || d.Erate == "" || d.Dmax == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc20-s deploy missing required field")
		}
		return d, nil
	case "stake":
		var s Stake
		if err := decodeStrict(body, &s); err != nil {
			return nil, err
		}
		if s.Pid == "" || s.Amt == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc20-s stake missing required field")
		}
		return s, nil
	case "unstake":
		var u Unstake
		if err := decodeStrict(body, &u); err != nil {
			return nil, err
		}
		if u.Pid == "" || u.Amt == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc20-s unstake missing required field")
		}
		return u, nil
	case "mint":
		var m PoolMint
		if err := decodeStrict(body, &m); err != nil {
			return nil, err
		}
		if m.Tid == "" || m.Tick == "" || m.Amt == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc20-s mint missing required field")
		}
		return m, nil
	case "transfer":
		var t PoolTransfer
		if err := decodeStrict(body, &t); err != nil {
			return nil, err
		}
		if t.Tid == "" || t.Tick == "" || t.Amt == "" {
			return nil, errors.New(errors.ERR_PARSE_OPERATION, "brc20-s transfer missing required field")
		}
		return t, nil
	default:
		return nil, errors.New(errors.ERR_PARSE_OPERATION, "unrecognised brc20-s op %q", op)
	}
}
