package errors

// ERR is a stable, loggable error code. Values are part of the consensus
// surface for the protocol-semantic range (1000-1999): two nodes that
// disagree on which code a message produces have diverged. Each code is
// an explicit literal, not an iota offset, so inserting or reordering a
// constant can never silently renumber the ones after it.
type ERR int32

const (
	ERR_UNKNOWN ERR = 0

	// infra / ledger errors (1-4): fatal to the current block.
	ERR_STORAGE          ERR = 1
	ERR_RPC_EXHAUSTED    ERR = 2
	ERR_TXOUT_NOT_FOUND  ERR = 3
	ERR_INVALID_ARGUMENT ERR = 4

	// parse errors (handled locally by the resolver; message is dropped, no receipt)
	ERR_UNSUPPORTED_CONTENT_TYPE ERR = 996
	ERR_NOT_PROTOCOL_JSON        ERR = 997
	ERR_PARSE_OPERATION          ERR = 998

	// protocol-semantic errors (1000-1099): part of consensus, recorded on the Receipt.
	ERR_DUPLICATE_TICK              ERR = 1000
	ERR_TICK_NOT_FOUND              ERR = 1001
	ERR_INVALID_MINT_LIMIT          ERR = 1002
	ERR_TICK_MINTED_OUT             ERR = 1003
	ERR_BALANCE_OVERFLOW            ERR = 1004
	ERR_INVALID_NUM                 ERR = 1005
	ERR_OVERFLOW                    ERR = 1006
	ERR_INVALID_DECIMALS            ERR = 1007
	ERR_INVALID_MAX_SUPPLY          ERR = 1008
	ERR_INVALID_TICK_LEN            ERR = 1009
	ERR_INVALID_TICK_CHAR           ERR = 1010
	ERR_INSUFFICIENT_BALANCE        ERR = 1011
	ERR_INVALID_TRANSFER            ERR = 1012
	ERR_INSCRIBE_TRANSFER_NOT_FOUND ERR = 1013

	// BRC20S pool errors (1100-1199).
	ERR_POOL_NOT_FOUND     ERR = 1100
	ERR_POOL_CLOSED        ERR = 1101
	ERR_STAKE_NOT_FOUND    ERR = 1102
	ERR_INVALID_POOL_ID    ERR = 1103
	ERR_INVALID_STAKE_TICK ERR = 1104
)

// firstProtocolError is the lowest code in the consensus-relevant
// protocol-semantic range. IsProtocolError compares against this literal
// rather than against ERR_DUPLICATE_TICK, so reordering the const block
// above can't silently change which codes get classified as protocol
// errors.
const firstProtocolError ERR = 1000

var errName = map[ERR]string{
	ERR_UNKNOWN:                     "UNKNOWN",
	ERR_STORAGE:                     "STORAGE",
	ERR_RPC_EXHAUSTED:               "RPC_EXHAUSTED",
	ERR_TXOUT_NOT_FOUND:             "TXOUT_NOT_FOUND",
	ERR_INVALID_ARGUMENT:            "INVALID_ARGUMENT",
	ERR_UNSUPPORTED_CONTENT_TYPE:    "UNSUPPORTED_CONTENT_TYPE",
	ERR_NOT_PROTOCOL_JSON:           "NOT_PROTOCOL_JSON",
	ERR_PARSE_OPERATION:             "PARSE_OPERATION",
	ERR_DUPLICATE_TICK:              "DUPLICATE_TICK",
	ERR_TICK_NOT_FOUND:              "TICK_NOT_FOUND",
	ERR_INVALID_MINT_LIMIT:          "INVALID_MINT_LIMIT",
	ERR_TICK_MINTED_OUT:             "TICK_MINTED_OUT",
	ERR_BALANCE_OVERFLOW:            "BALANCE_OVERFLOW",
	ERR_INVALID_NUM:                 "INVALID_NUM",
	ERR_OVERFLOW:                    "OVERFLOW",
	ERR_INVALID_DECIMALS:            "INVALID_DECIMALS",
	ERR_INVALID_MAX_SUPPLY:          "INVALID_MAX_SUPPLY",
	ERR_INVALID_TICK_LEN:            "INVALID_TICK_LEN",
	ERR_INVALID_TICK_CHAR:           "INVALID_TICK_CHAR",
	ERR_INSUFFICIENT_BALANCE:        "INSUFFICIENT_BALANCE",
	ERR_INVALID_TRANSFER:            "INVALID_TRANSFER",
	ERR_INSCRIBE_TRANSFER_NOT_FOUND: "INSCRIBE_TRANSFER_NOT_FOUND",
	ERR_POOL_NOT_FOUND:              "POOL_NOT_FOUND",
	ERR_POOL_CLOSED:                 "POOL_CLOSED",
	ERR_STAKE_NOT_FOUND:             "STAKE_NOT_FOUND",
	ERR_INVALID_POOL_ID:             "INVALID_POOL_ID",
	ERR_INVALID_STAKE_TICK:          "INVALID_STAKE_TICK",
}

// Enum returns the symbolic name of the code, mirroring protoc-generated Enum().
func (e ERR) Enum() string {
	if name, ok := errName[e]; ok {
		return name
	}
	return "UNKNOWN"
}

func (e ERR) String() string {
	return e.Enum()
}

// IsProtocolError reports whether the code belongs to the consensus-relevant
// protocol-semantic range that must be recorded on a Receipt rather than
// aborting the block.
func (e ERR) IsProtocolError() bool {
	return e >= firstProtocolError
}
