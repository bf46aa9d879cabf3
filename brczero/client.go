// Package brczero implements the BRCZero forwarding client (C10): RLP
// encoding of a brc-zero `evm` operation's transaction payload and
// delivery over a JSON-RPC 2.0 `broadcast_brczero_txs_async` call
// (§4.10, §6).
package brczero

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ModChain/rlp"
	"github.com/segmentio/encoding/json"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/protocol/operation"
	"github.com/okx/brc20index/ulogger"
)

const broadcastMethod = "broadcast_brczero_txs_async"

// Tx pairs one evm operation's decoded transaction with the BTC
// transaction fee that paid for its inscription, which the BRCZero node
// uses for its own gas accounting (§4.10, grounded on
// original_source/src/okx/protocol/brc0/rpc.rs's BRCZeroTx.btc_fee).
type Tx struct {
	Data   operation.EvmTxData
	BtcFee uint64
}

// rlpLegacyTx is the canonical 9-field legacy Ethereum transaction
// envelope, encoded in this field order (§4.10).
type rlpLegacyTx struct {
	Nonce    *big.Int
	GasPrice *big.Int
	Gas      *big.Int
	To       []byte
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

func hexToBigInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed hex integer %q", s)
	}
	return v, nil
}

func hexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed hex string %q", s, err)
	}
	return b, nil
}

// EncodeRLP renders tx's transaction object as the hex-encoded legacy
// RLP transaction the BRCZero node expects.
func EncodeRLP(tx operation.EvmTxData) (string, error) {
	nonce, err := hexToBigInt(tx.Nonce)
	if err != nil {
		return "", err
	}
	gasPrice, err := hexToBigInt(tx.GasPrice)
	if err != nil {
		return "", err
	}
	gas, err := hexToBigInt(tx.Gas)
	if err != nil {
		return "", err
	}
	value, err := hexToBigInt(tx.Value)
	if err != nil {
		return "", err
	}
	v, err := hexToBigInt(tx.V)
	if err != nil {
		return "", err
	}
	r, err := hexToBigInt(tx.R)
	if err != nil {
		return "", err
	}
	s, err := hexToBigInt(tx.S)
	if err != nil {
		return "", err
	}
	input, err := hexToBytes(tx.Input)
	if err != nil {
		return "", err
	}

	var to []byte
	if tx.To != nil {
		to, err = hexToBytes(*tx.To)
		if err != nil {
			return "", err
		}
	}

	encoded, err := rlp.EncodeToBytes(rlpLegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Value:    value,
		Data:     input,
		V:        v,
		R:        r,
		S:        s,
	})
	if err != nil {
		return "", errors.New(errors.ERR_INVALID_ARGUMENT, "rlp encode failed", err)
	}

	return "0x" + hex.EncodeToString(encoded), nil
}

// Client forwards batches of evm operations to a BRCZero JSON-RPC 2.0
// endpoint over plain net/http: no generic JSON-RPC-2.0 client exists in
// the dependency pack for an arbitrary custom endpoint (see DESIGN.md).
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     ulogger.Logger
	nextID     uint64
}

// New builds a Client targeting endpoint, with requests bounded by timeout.
func New(endpoint string, timeout time.Duration, logger ulogger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Height      string   `json:"height"`
	BlockHash   string   `json:"block_hash"`
	IsConfirmed bool     `json:"is_confirmed"`
	Txs         []wireTx `json:"txs"`
}

type wireTx struct {
	HexRlpEncodeTx string `json:"hex_rlp_encode_tx"`
	BtcFee         string `json:"btc_fee"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  []struct {
		Hash string `json:"hash"`
	} `json:"result"`
	Error *rpcError `json:"error,omitempty"`
}

// Broadcast RLP-encodes every tx and submits them as one
// broadcast_brczero_txs_async call, returning their assigned hashes in
// the same order as txs (§4.10: "batches all evm messages produced in a
// block into one request ... fans the returned hash list back onto each
// message's Receipt in call order").
func (c *Client) Broadcast(ctx context.Context, height uint32, blockHash string, isConfirmed bool, txs []Tx) ([]string, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	wire := make([]wireTx, 0, len(txs))
	for _, tx := range txs {
		encoded, err := EncodeRLP(tx.Data)
		if err != nil {
			return nil, err
		}
		wire = append(wire, wireTx{HexRlpEncodeTx: encoded, BtcFee: strconv.FormatUint(tx.BtcFee, 10)})
	}

	c.nextID++
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID,
		Method:  broadcastMethod,
		Params: rpcParams{
			Height:      strconv.FormatUint(uint64(height), 10),
			BlockHash:   blockHash,
			IsConfirmed: isConfirmed,
			Txs:         wire,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.New(errors.ERR_INVALID_ARGUMENT, "marshal brczero request failed", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, "build brczero request failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, "brczero broadcast request failed", err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, "decode brczero response failed", err)
	}
	if rpcResp.Error != nil {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, fmt.Sprintf("brczero rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}
	if len(rpcResp.Result) != len(txs) {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, "brczero returned %d hashes for %d txs", len(rpcResp.Result), len(txs))
	}

	hashes := make([]string, len(rpcResp.Result))
	for i, r := range rpcResp.Result {
		hashes[i] = r.Hash
	}
	return hashes, nil
}
