// Package ledger defines the persistent-store contract (C4): two
// capability bundles, read-only and read-write, over one underlying state
// handle, rather than a single fat interface (§9 design notes).
package ledger

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

// ReadStore is the query-only capability (§4.4 Read capability).
type ReadStore interface {
	GetBalance(ctx context.Context, owner scriptkey.ScriptKey, lower tick.LowerTick) (model.Balance, error)
	GetBalances(ctx context.Context, owner scriptkey.ScriptKey) ([]model.Balance, error)
	GetTokenInfo(ctx context.Context, lower tick.LowerTick) (*model.TokenInfo, error)
	GetAllTokens(ctx context.Context) ([]model.TokenInfo, error)
	GetTransferable(ctx context.Context, owner scriptkey.ScriptKey) ([]model.TransferableLog, error)
	GetTransferableByTick(ctx context.Context, owner scriptkey.ScriptKey, lower tick.LowerTick) ([]model.TransferableLog, error)
	GetTransferableByID(ctx context.Context, owner scriptkey.ScriptKey, id model.InscriptionID) (*model.TransferableLog, error)
	GetInscribeTransfer(ctx context.Context, id model.InscriptionID) (*model.InscribeTransfer, error)
	GetReceipts(ctx context.Context, txid string) (*model.Receipt, error)
	GetNumberByInscriptionID(ctx context.Context, id model.InscriptionID) (int64, error)
	GetOutpointToTxOut(ctx context.Context, outpoint model.Outpoint) (*model.TxOut, error)

	// GetPoolInfo returns the BRC20S pool record, or nil if pid is not deployed.
	GetPoolInfo(ctx context.Context, pid tick.Pid) (*model.PoolInfo, error)
	// GetPoolsByStakeTick returns every pool staking stakeTick (§4.8, §4.9).
	GetPoolsByStakeTick(ctx context.Context, stakeTick string) ([]model.PoolInfo, error)
	// GetUserInfo returns the staking position of owner in pid, or nil if absent.
	GetUserInfo(ctx context.Context, pid tick.Pid, owner scriptkey.ScriptKey) (*model.UserInfo, error)
	// GetUserPools returns every pool owner has a staking position in.
	GetUserPools(ctx context.Context, owner scriptkey.ScriptKey) ([]model.UserInfo, error)
	// GetBTCBalance returns owner's tracked native BTC balance (§4.9 step 1).
	GetBTCBalance(ctx context.Context, owner scriptkey.ScriptKey) (*uint256.Int, error)
}

// WriteStore is the mutation capability (§4.4 Write capability). Every
// method either fully applies or returns an error and leaves the store
// unchanged for that row; the executor (C7/C8) relies on this to keep a
// failed message's mutations atomic per-row.
type WriteStore interface {
	UpdateBalance(ctx context.Context, owner scriptkey.ScriptKey, newBalance model.Balance) error
	InsertTokenInfo(ctx context.Context, info model.TokenInfo) error
	UpdateMintTokenInfo(ctx context.Context, lower tick.LowerTick, mintedDelta *uint256.Int, blockNumber uint32) error
	InsertTransferable(ctx context.Context, owner scriptkey.ScriptKey, log model.TransferableLog) error
	RemoveTransferable(ctx context.Context, owner scriptkey.ScriptKey, id model.InscriptionID) error
	InsertInscribeTransfer(ctx context.Context, id model.InscriptionID, entry model.InscribeTransfer) error
	RemoveInscribeTransfer(ctx context.Context, id model.InscriptionID) error
	SaveReceipts(ctx context.Context, txid string, receipt model.Receipt) error
	SetOutpointToTxOut(ctx context.Context, outpoint model.Outpoint, txOut model.TxOut) error
	// SetInscriptionNumber records the tracker-assigned inscription number,
	// called by the orchestrator (C9) for each resolved ActionNew message.
	SetInscriptionNumber(ctx context.Context, id model.InscriptionID, number int64) error

	InsertPoolInfo(ctx context.Context, info model.PoolInfo) error
	UpdatePoolInfo(ctx context.Context, info model.PoolInfo) error
	UpdateUserInfo(ctx context.Context, info model.UserInfo) error
	// SetBTCBalance overwrites owner's tracked native BTC balance, called
	// by the orchestrator for every input and output it books (§4.9 step 1).
	SetBTCBalance(ctx context.Context, owner scriptkey.ScriptKey, balance *uint256.Int) error
}

// Store bundles both capabilities for backends that implement the full
// contract (memory and sqlite both do); callers should still depend on the
// narrower ReadStore/WriteStore where possible.
type Store interface {
	ReadStore
	WriteStore
}
