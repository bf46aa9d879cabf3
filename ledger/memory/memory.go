// Package memory is an in-memory ledger.Store backend, grounded on the
// teacher's stores/utxo/memory mutex-guarded map pattern. Intended for
// tests and single-process development; not durable across restarts.
package memory

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
)

type userKey struct {
	pid   tick.Pid
	owner string
}

type balanceKey struct {
	owner string
	lower tick.LowerTick
}

type transferableKey struct {
	owner string
	lower tick.LowerTick
	id    model.InscriptionID
}

// Store is a mutex-guarded, map-backed ledger.Store (C4).
type Store struct {
	mu sync.Mutex

	balances        map[balanceKey]model.Balance
	tokens          map[tick.LowerTick]model.TokenInfo
	transferables   map[transferableKey]model.TransferableLog
	inscribeXfers   map[model.InscriptionID]model.InscribeTransfer
	receipts        map[string]model.Receipt
	inscriptionNums map[model.InscriptionID]int64
	outpointTxOuts  map[model.Outpoint]model.TxOut
	pools           map[tick.Pid]model.PoolInfo
	users           map[userKey]model.UserInfo
	btcBalances     map[string]*uint256.Int
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		balances:        make(map[balanceKey]model.Balance),
		tokens:          make(map[tick.LowerTick]model.TokenInfo),
		transferables:   make(map[transferableKey]model.TransferableLog),
		inscribeXfers:   make(map[model.InscriptionID]model.InscribeTransfer),
		receipts:        make(map[string]model.Receipt),
		inscriptionNums: make(map[model.InscriptionID]int64),
		outpointTxOuts:  make(map[model.Outpoint]model.TxOut),
		pools:           make(map[tick.Pid]model.PoolInfo),
		users:           make(map[userKey]model.UserInfo),
		btcBalances:     make(map[string]*uint256.Int),
	}
}

func (s *Store) GetBalance(_ context.Context, owner scriptkey.ScriptKey, lower tick.LowerTick) (model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.balances[balanceKey{owner.String(), lower}]; ok {
		return b.Clone(), nil
	}
	return model.NewBalance(lower), nil
}

func (s *Store) GetBalances(_ context.Context, owner scriptkey.ScriptKey) ([]model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Balance
	for k, b := range s.balances {
		if k.owner == owner.String() {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetTokenInfo(_ context.Context, lower tick.LowerTick) (*model.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[lower]; ok {
		cp := t
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetAllTokens(_ context.Context) ([]model.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.TokenInfo, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) GetTransferable(_ context.Context, owner scriptkey.ScriptKey) ([]model.TransferableLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.TransferableLog
	for k, v := range s.transferables {
		if k.owner == owner.String() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) GetTransferableByTick(_ context.Context, owner scriptkey.ScriptKey, lower tick.LowerTick) ([]model.TransferableLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.TransferableLog
	for k, v := range s.transferables {
		if k.owner == owner.String() && k.lower == lower {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) GetTransferableByID(_ context.Context, owner scriptkey.ScriptKey, id model.InscriptionID) (*model.TransferableLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.transferables {
		if k.owner == owner.String() && k.id == id {
			cp := v
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetInscribeTransfer(_ context.Context, id model.InscriptionID) (*model.InscribeTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.inscribeXfers[id]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetReceipts(_ context.Context, txid string) (*model.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.receipts[txid]; ok {
		cp := r
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetNumberByInscriptionID(_ context.Context, id model.InscriptionID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.inscriptionNums[id]
	if !ok {
		return 0, errors.New(errors.ERR_TXOUT_NOT_FOUND, "no inscription number recorded for %s", id)
	}
	return n, nil
}

func (s *Store) GetOutpointToTxOut(_ context.Context, outpoint model.Outpoint) (*model.TxOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.outpointTxOuts[outpoint]; ok {
		cp := t
		return &cp, nil
	}
	return nil, errors.New(errors.ERR_TXOUT_NOT_FOUND, "no txout recorded for outpoint %s", outpoint)
}

func (s *Store) UpdateBalance(_ context.Context, owner scriptkey.ScriptKey, newBalance model.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[balanceKey{owner.String(), newBalance.Tick}] = newBalance.Clone()
	return nil
}

func (s *Store) InsertTokenInfo(_ context.Context, info model.TokenInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[info.LowerTick]; exists {
		return errors.New(errors.ERR_DUPLICATE_TICK, "token %s already deployed", info.Tick)
	}
	s.tokens[info.LowerTick] = info
	return nil
}

func (s *Store) UpdateMintTokenInfo(_ context.Context, lower tick.LowerTick, mintedDelta *uint256.Int, blockNumber uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[lower]
	if !ok {
		return errors.New(errors.ERR_TICK_NOT_FOUND, "token %s not found", lower)
	}

	sum := new(uint256.Int)
	if sum.AddOverflow(t.Minted, mintedDelta) {
		return errors.New(errors.ERR_BALANCE_OVERFLOW, "minted overflow for tick %s", lower)
	}
	t.Minted = sum
	t.LatestMintBlock = blockNumber
	s.tokens[lower] = t
	return nil
}

func (s *Store) InsertTransferable(_ context.Context, owner scriptkey.ScriptKey, log model.TransferableLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transferables[transferableKey{owner.String(), log.Tick, log.InscriptionID}] = log
	return nil
}

func (s *Store) RemoveTransferable(_ context.Context, owner scriptkey.ScriptKey, id model.InscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.transferables {
		if k.owner == owner.String() && k.id == id {
			delete(s.transferables, k)
			return nil
		}
	}
	return errors.New(errors.ERR_INSCRIBE_TRANSFER_NOT_FOUND, "no transferable log for %s", id)
}

func (s *Store) InsertInscribeTransfer(_ context.Context, id model.InscriptionID, entry model.InscribeTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inscribeXfers[id] = entry
	return nil
}

func (s *Store) RemoveInscribeTransfer(_ context.Context, id model.InscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inscribeXfers[id]; !ok {
		return errors.New(errors.ERR_INSCRIBE_TRANSFER_NOT_FOUND, "no inscribe-transfer entry for %s", id)
	}
	delete(s.inscribeXfers, id)
	return nil
}

func (s *Store) SaveReceipts(_ context.Context, txid string, receipt model.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receipts[txid] = receipt
	return nil
}

func (s *Store) SetOutpointToTxOut(_ context.Context, outpoint model.Outpoint, txOut model.TxOut) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outpointTxOuts[outpoint] = txOut
	return nil
}

// SetInscriptionNumber records the tracker-assigned inscription number,
// called by the orchestrator (C9) for each resolved ActionNew message.
func (s *Store) SetInscriptionNumber(_ context.Context, id model.InscriptionID, number int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inscriptionNums[id] = number
	return nil
}

func (s *Store) GetPoolInfo(_ context.Context, pid tick.Pid) (*model.PoolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pools[pid]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetPoolsByStakeTick(_ context.Context, stakeTick string) ([]model.PoolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PoolInfo
	for _, p := range s.pools {
		if p.StakeTick == stakeTick {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) GetUserInfo(_ context.Context, pid tick.Pid, owner scriptkey.ScriptKey) (*model.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userKey{pid, owner.String()}]; ok {
		cp := u
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetUserPools(_ context.Context, owner scriptkey.ScriptKey) ([]model.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.UserInfo
	for k, u := range s.users {
		if k.owner == owner.String() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) GetBTCBalance(_ context.Context, owner scriptkey.ScriptKey) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.btcBalances[owner.String()]; ok {
		return new(uint256.Int).Set(b), nil
	}
	return new(uint256.Int), nil
}

func (s *Store) InsertPoolInfo(_ context.Context, info model.PoolInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[info.Pid]; exists {
		return errors.New(errors.ERR_INVALID_POOL_ID, "pool %s already deployed", info.Pid)
	}
	s.pools[info.Pid] = info
	return nil
}

func (s *Store) UpdatePoolInfo(_ context.Context, info model.PoolInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[info.Pid]; !exists {
		return errors.New(errors.ERR_POOL_NOT_FOUND, "pool %s not found", info.Pid)
	}
	s.pools[info.Pid] = info
	return nil
}

func (s *Store) UpdateUserInfo(_ context.Context, info model.UserInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[userKey{info.Pid, info.Owner.String()}] = info
	return nil
}

func (s *Store) SetBTCBalance(_ context.Context, owner scriptkey.ScriptKey, balance *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.btcBalances[owner.String()] = new(uint256.Int).Set(balance)
	return nil
}
