// Package sqlite is the durable ledger.Store backend, grounded on the
// teacher's stores/utxo/sql package: database/sql over the modernc.org/sqlite
// pure-Go driver, with the teacher's schema-per-store / migrate-on-New shape.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"

	"github.com/holiman/uint256"
	"github.com/segmentio/encoding/json"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/tick"
	"github.com/okx/brc20index/ulogger"
)

// Store is a database/sql-backed ledger.Store (C4). Row keys follow the
// §9 "Ledger key encoding" convention exactly, so the schema stays a
// faithful relational mirror of the spec's abstract key space.
type Store struct {
	logger ulogger.Logger
	db     *sql.DB
}

// New opens (and migrates) a sqlite-backed store at dsn, e.g.
// "file:brc20index.sqlite?cache=shared&_pragma=busy_timeout=5000".
func New(_ context.Context, logger ulogger.Logger, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "failed to open sqlite ledger db", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ERR_STORAGE, "failed to enable foreign keys", err)
	}

	s := &Store{logger: logger, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Infof("ledger/sqlite: opened %s", dsn)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS balances (
			owner TEXT NOT NULL,
			lower_tick_hex TEXT NOT NULL,
			overall TEXT NOT NULL,
			transferable TEXT NOT NULL,
			PRIMARY KEY (owner, lower_tick_hex)
		)`,
		`CREATE TABLE IF NOT EXISTS tokens (
			lower_tick_hex TEXT PRIMARY KEY,
			tick TEXT NOT NULL,
			inscription_id TEXT NOT NULL,
			supply TEXT NOT NULL,
			minted TEXT NOT NULL,
			limit_per_mint TEXT,
			decimals INTEGER NOT NULL,
			deploy_by TEXT NOT NULL,
			deployed_block INTEGER NOT NULL,
			deployed_time INTEGER NOT NULL,
			latest_mint_block INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transferables (
			owner TEXT NOT NULL,
			lower_tick_hex TEXT NOT NULL,
			inscription_id TEXT NOT NULL,
			inscription_number INTEGER NOT NULL,
			amount TEXT NOT NULL,
			PRIMARY KEY (owner, lower_tick_hex, inscription_id)
		)`,
		`CREATE TABLE IF NOT EXISTS inscribe_transfers (
			inscription_id TEXT PRIMARY KEY,
			lower_tick_hex TEXT NOT NULL,
			amount TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS receipts (
			txid TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inscription_numbers (
			inscription_id TEXT PRIMARY KEY,
			number INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outpoint_txouts (
			outpoint TEXT PRIMARY KEY,
			value INTEGER NOT NULL,
			script_key TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pools (
			pid TEXT PRIMARY KEY,
			stake_tick TEXT NOT NULL,
			earn_tick_id TEXT NOT NULL,
			erate TEXT NOT NULL,
			dmax TEXT NOT NULL,
			minted TEXT NOT NULL,
			staked TEXT NOT NULL,
			acc_reward_per_share TEXT NOT NULL,
			last_update_block INTEGER NOT NULL,
			only_operator INTEGER NOT NULL,
			decimals INTEGER NOT NULL,
			deploy_by TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			pid TEXT NOT NULL,
			owner TEXT NOT NULL,
			staked TEXT NOT NULL,
			reward TEXT NOT NULL,
			reward_debt TEXT NOT NULL,
			last_update_block INTEGER NOT NULL,
			PRIMARY KEY (pid, owner)
		)`,
		`CREATE TABLE IF NOT EXISTS btc_balances (
			owner TEXT PRIMARY KEY,
			balance TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.New(errors.ERR_STORAGE, "ledger sqlite migration failed", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func balanceKey(owner scriptkey.ScriptKey, lower tick.LowerTick) (string, string) {
	return owner.String(), lower.Hex()
}

// parseU256 decodes a base-10 magnitude persisted via uint256.Int.Dec().
func parseU256(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "corrupt stored integer %q", s, err)
	}
	return v, nil
}

func (s *Store) GetBalance(ctx context.Context, owner scriptkey.ScriptKey, lower tick.LowerTick) (model.Balance, error) {
	ownerStr, lowerHex := balanceKey(owner, lower)

	var overallStr, transferableStr string
	row := s.db.QueryRowContext(ctx, `SELECT overall, transferable FROM balances WHERE owner = ? AND lower_tick_hex = ?`, ownerStr, lowerHex)
	switch err := row.Scan(&overallStr, &transferableStr); err {
	case nil:
		overall, err := parseU256(overallStr)
		if err != nil {
			return model.Balance{}, err
		}
		transferable, err := parseU256(transferableStr)
		if err != nil {
			return model.Balance{}, err
		}
		return model.Balance{Tick: lower, Overall: overall, Transferable: transferable}, nil
	case sql.ErrNoRows:
		return model.NewBalance(lower), nil
	default:
		return model.Balance{}, errors.New(errors.ERR_STORAGE, "get balance query failed", err)
	}
}

func (s *Store) GetBalances(ctx context.Context, owner scriptkey.ScriptKey) ([]model.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lower_tick_hex, overall, transferable FROM balances WHERE owner = ?`, owner.String())
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "get balances query failed", err)
	}
	defer rows.Close()

	var out []model.Balance
	for rows.Next() {
		var lowerHex, overallStr, transferableStr string
		if err := rows.Scan(&lowerHex, &overallStr, &transferableStr); err != nil {
			return nil, errors.New(errors.ERR_STORAGE, "get balances scan failed", err)
		}
		lower, err := decodeLowerTick(lowerHex)
		if err != nil {
			return nil, err
		}
		overall, err := parseU256(overallStr)
		if err != nil {
			return nil, err
		}
		transferable, err := parseU256(transferableStr)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Balance{Tick: lower, Overall: overall, Transferable: transferable})
	}
	return out, rows.Err()
}

func (s *Store) GetTokenInfo(ctx context.Context, lower tick.LowerTick) (*model.TokenInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT tick, inscription_id, supply, minted, limit_per_mint, decimals, deploy_by, deployed_block, deployed_time, latest_mint_block FROM tokens WHERE lower_tick_hex = ?`, lower.Hex())

	var tickStr, inscriptionIDStr, supplyStr, mintedStr, deployByStr string
	var limitPerMint sql.NullString
	var decimals uint8
	var deployedBlock, latestMintBlock uint32
	var deployedTime uint64

	err := row.Scan(&tickStr, &inscriptionIDStr, &supplyStr, &mintedStr, &limitPerMint, &decimals, &deployByStr, &deployedBlock, &deployedTime, &latestMintBlock)
	switch err {
	case nil:
		t, convErr := tick.FromString(tickStr)
		if convErr != nil {
			return nil, errors.New(errors.ERR_STORAGE, "corrupt token row", convErr)
		}
		inscriptionID, convErr := model.ParseInscriptionID(inscriptionIDStr)
		if convErr != nil {
			return nil, errors.New(errors.ERR_STORAGE, "corrupt token row", convErr)
		}
		supply, err := parseU256(supplyStr)
		if err != nil {
			return nil, err
		}
		minted, err := parseU256(mintedStr)
		if err != nil {
			return nil, err
		}
		var limit *uint256.Int
		if limitPerMint.Valid {
			limit, err = parseU256(limitPerMint.String)
			if err != nil {
				return nil, err
			}
		}
		return &model.TokenInfo{
			Tick:            t,
			LowerTick:       lower,
			InscriptionID:   inscriptionID,
			Supply:          supply,
			Minted:          minted,
			LimitPerMint:    limit,
			Decimals:        decimals,
			DeployBy:        scriptkey.FromAddressString(deployByStr),
			DeployedBlock:   deployedBlock,
			DeployedTime:    deployedTime,
			LatestMintBlock: latestMintBlock,
		}, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get token info query failed", err)
	}
}

func (s *Store) GetAllTokens(ctx context.Context) ([]model.TokenInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lower_tick_hex FROM tokens`)
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "get all tokens query failed", err)
	}
	defer rows.Close()

	var hexes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, errors.New(errors.ERR_STORAGE, "get all tokens scan failed", err)
		}
		hexes = append(hexes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.TokenInfo, 0, len(hexes))
	for _, h := range hexes {
		lower, err := decodeLowerTick(h)
		if err != nil {
			return nil, err
		}
		info, err := s.GetTokenInfo(ctx, lower)
		if err != nil {
			return nil, err
		}
		if info != nil {
			out = append(out, *info)
		}
	}
	return out, nil
}

func (s *Store) GetTransferable(ctx context.Context, owner scriptkey.ScriptKey) ([]model.TransferableLog, error) {
	return s.queryTransferables(ctx, `SELECT lower_tick_hex, inscription_id, inscription_number, amount FROM transferables WHERE owner = ?`, owner, owner.String())
}

func (s *Store) GetTransferableByTick(ctx context.Context, owner scriptkey.ScriptKey, lower tick.LowerTick) ([]model.TransferableLog, error) {
	return s.queryTransferables(ctx, `SELECT lower_tick_hex, inscription_id, inscription_number, amount FROM transferables WHERE owner = ? AND lower_tick_hex = ?`, owner, owner.String(), lower.Hex())
}

func (s *Store) queryTransferables(ctx context.Context, query string, owner scriptkey.ScriptKey, args ...interface{}) ([]model.TransferableLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "get transferables query failed", err)
	}
	defer rows.Close()

	var out []model.TransferableLog
	for rows.Next() {
		var lowerHex, inscriptionIDStr, amountStr string
		var number int64
		if err := rows.Scan(&lowerHex, &inscriptionIDStr, &number, &amountStr); err != nil {
			return nil, errors.New(errors.ERR_STORAGE, "get transferables scan failed", err)
		}
		lower, err := decodeLowerTick(lowerHex)
		if err != nil {
			return nil, err
		}
		inscriptionID, err := model.ParseInscriptionID(inscriptionIDStr)
		if err != nil {
			return nil, errors.New(errors.ERR_STORAGE, "corrupt transferable row", err)
		}
		amount, err := parseU256(amountStr)
		if err != nil {
			return nil, err
		}
		out = append(out, model.TransferableLog{
			Owner:             owner,
			Tick:              lower,
			InscriptionID:     inscriptionID,
			InscriptionNumber: number,
			Amount:            amount,
		})
	}
	return out, rows.Err()
}

func (s *Store) GetTransferableByID(ctx context.Context, owner scriptkey.ScriptKey, id model.InscriptionID) (*model.TransferableLog, error) {
	row := s.db.QueryRowContext(ctx, `SELECT lower_tick_hex, inscription_number, amount FROM transferables WHERE owner = ? AND inscription_id = ?`, owner.String(), id.String())

	var lowerHex, amountStr string
	var number int64
	switch err := row.Scan(&lowerHex, &number, &amountStr); err {
	case nil:
		lower, err := decodeLowerTick(lowerHex)
		if err != nil {
			return nil, err
		}
		amount, err := parseU256(amountStr)
		if err != nil {
			return nil, err
		}
		return &model.TransferableLog{Owner: owner, Tick: lower, InscriptionID: id, InscriptionNumber: number, Amount: amount}, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get transferable by id query failed", err)
	}
}

func (s *Store) GetInscribeTransfer(ctx context.Context, id model.InscriptionID) (*model.InscribeTransfer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT lower_tick_hex, amount FROM inscribe_transfers WHERE inscription_id = ?`, id.String())

	var lowerHex, amountStr string
	switch err := row.Scan(&lowerHex, &amountStr); err {
	case nil:
		lower, err := decodeLowerTick(lowerHex)
		if err != nil {
			return nil, err
		}
		amount, err := parseU256(amountStr)
		if err != nil {
			return nil, err
		}
		return &model.InscribeTransfer{InscriptionID: id, Tick: lower, Amount: amount}, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get inscribe transfer query failed", err)
	}
}

func (s *Store) GetReceipts(ctx context.Context, txid string) (*model.Receipt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM receipts WHERE txid = ?`, txid)

	var payload []byte
	switch err := row.Scan(&payload); err {
	case nil:
		return decodeReceipt(txid, payload)
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get receipts query failed", err)
	}
}

func (s *Store) GetNumberByInscriptionID(ctx context.Context, id model.InscriptionID) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT number FROM inscription_numbers WHERE inscription_id = ?`, id.String())

	var number int64
	switch err := row.Scan(&number); err {
	case nil:
		return number, nil
	case sql.ErrNoRows:
		return 0, errors.New(errors.ERR_TXOUT_NOT_FOUND, "no inscription number recorded for %s", id)
	default:
		return 0, errors.New(errors.ERR_STORAGE, "get number by inscription id query failed", err)
	}
}

func (s *Store) GetOutpointToTxOut(ctx context.Context, outpoint model.Outpoint) (*model.TxOut, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value, script_key FROM outpoint_txouts WHERE outpoint = ?`, outpoint.String())

	var value uint64
	var scriptKeyStr string
	switch err := row.Scan(&value, &scriptKeyStr); err {
	case nil:
		return &model.TxOut{Value: value, ScriptKey: scriptkey.FromAddressString(scriptKeyStr)}, nil
	case sql.ErrNoRows:
		return nil, errors.New(errors.ERR_TXOUT_NOT_FOUND, "no txout recorded for outpoint %s", outpoint)
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get outpoint txout query failed", err)
	}
}

func (s *Store) UpdateBalance(ctx context.Context, owner scriptkey.ScriptKey, newBalance model.Balance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (owner, lower_tick_hex, overall, transferable) VALUES (?, ?, ?, ?)
		ON CONFLICT (owner, lower_tick_hex) DO UPDATE SET overall = excluded.overall, transferable = excluded.transferable`,
		owner.String(), newBalance.Tick.Hex(), newBalance.Overall.Dec(), newBalance.Transferable.Dec())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "update balance failed", err)
	}
	return nil
}

func (s *Store) InsertTokenInfo(ctx context.Context, info model.TokenInfo) error {
	var limitPerMint interface{}
	if info.LimitPerMint != nil {
		limitPerMint = info.LimitPerMint.Dec()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (lower_tick_hex, tick, inscription_id, supply, minted, limit_per_mint, decimals, deploy_by, deployed_block, deployed_time, latest_mint_block)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.LowerTick.Hex(), info.Tick.String(), info.InscriptionID.String(), info.Supply.Dec(), info.Minted.Dec(),
		limitPerMint, info.Decimals, info.DeployBy.String(), info.DeployedBlock, info.DeployedTime, info.LatestMintBlock)
	if err != nil {
		return errors.New(errors.ERR_DUPLICATE_TICK, "token %s already deployed", info.Tick, err)
	}
	return nil
}

func (s *Store) UpdateMintTokenInfo(ctx context.Context, lower tick.LowerTick, mintedDelta *uint256.Int, blockNumber uint32) error {
	existing, err := s.GetTokenInfo(ctx, lower)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New(errors.ERR_TICK_NOT_FOUND, "token %s not found", lower)
	}

	sum := new(uint256.Int)
	if sum.AddOverflow(existing.Minted, mintedDelta) {
		return errors.New(errors.ERR_BALANCE_OVERFLOW, "minted overflow for tick %s", lower)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE tokens SET minted = ?, latest_mint_block = ? WHERE lower_tick_hex = ?`, sum.Dec(), blockNumber, lower.Hex())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "update mint token info failed", err)
	}
	return nil
}

func (s *Store) InsertTransferable(ctx context.Context, owner scriptkey.ScriptKey, log model.TransferableLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transferables (owner, lower_tick_hex, inscription_id, inscription_number, amount) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner, lower_tick_hex, inscription_id) DO UPDATE SET amount = excluded.amount`,
		owner.String(), log.Tick.Hex(), log.InscriptionID.String(), log.InscriptionNumber, log.Amount.Dec())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "insert transferable failed", err)
	}
	return nil
}

func (s *Store) RemoveTransferable(ctx context.Context, owner scriptkey.ScriptKey, id model.InscriptionID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transferables WHERE owner = ? AND inscription_id = ?`, owner.String(), id.String())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "remove transferable failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ERR_INSCRIBE_TRANSFER_NOT_FOUND, "no transferable log for %s", id)
	}
	return nil
}

func (s *Store) InsertInscribeTransfer(ctx context.Context, id model.InscriptionID, entry model.InscribeTransfer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inscribe_transfers (inscription_id, lower_tick_hex, amount) VALUES (?, ?, ?)
		ON CONFLICT (inscription_id) DO UPDATE SET lower_tick_hex = excluded.lower_tick_hex, amount = excluded.amount`,
		id.String(), entry.Tick.Hex(), entry.Amount.Dec())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "insert inscribe transfer failed", err)
	}
	return nil
}

func (s *Store) RemoveInscribeTransfer(ctx context.Context, id model.InscriptionID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inscribe_transfers WHERE inscription_id = ?`, id.String())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "remove inscribe transfer failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ERR_INSCRIBE_TRANSFER_NOT_FOUND, "no inscribe-transfer entry for %s", id)
	}
	return nil
}

func (s *Store) SaveReceipts(ctx context.Context, txid string, receipt model.Receipt) error {
	payload, err := encodeReceipt(receipt)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO receipts (txid, payload) VALUES (?, ?)
		ON CONFLICT (txid) DO UPDATE SET payload = excluded.payload`, txid, payload)
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "save receipts failed", err)
	}
	return nil
}

func (s *Store) SetOutpointToTxOut(ctx context.Context, outpoint model.Outpoint, txOut model.TxOut) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outpoint_txouts (outpoint, value, script_key) VALUES (?, ?, ?)
		ON CONFLICT (outpoint) DO UPDATE SET value = excluded.value, script_key = excluded.script_key`,
		outpoint.String(), txOut.Value, txOut.ScriptKey.String())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "set outpoint txout failed", err)
	}
	return nil
}

func (s *Store) SetInscriptionNumber(ctx context.Context, id model.InscriptionID, number int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inscription_numbers (inscription_id, number) VALUES (?, ?)
		ON CONFLICT (inscription_id) DO UPDATE SET number = excluded.number`, id.String(), number)
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "set inscription number failed", err)
	}
	return nil
}

func (s *Store) scanPool(row *sql.Row) (*model.PoolInfo, error) {
	var pidStr, stakeTick, earnTickIDStr, erateStr, dmaxStr, mintedStr, stakedStr, accStr, deployByStr string
	var lastUpdateBlock uint32
	var onlyOperator int
	var decimals uint8

	switch err := row.Scan(&pidStr, &stakeTick, &earnTickIDStr, &erateStr, &dmaxStr, &mintedStr, &stakedStr, &accStr, &lastUpdateBlock, &onlyOperator, &decimals, &deployByStr); err {
	case nil:
		earnTickID, convErr := tick.FromStringTickID(earnTickIDStr)
		if convErr != nil {
			return nil, errors.New(errors.ERR_STORAGE, "corrupt pool row", convErr)
		}
		erate, err := parseU256(erateStr)
		if err != nil {
			return nil, err
		}
		dmax, err := parseU256(dmaxStr)
		if err != nil {
			return nil, err
		}
		minted, err := parseU256(mintedStr)
		if err != nil {
			return nil, err
		}
		staked, err := parseU256(stakedStr)
		if err != nil {
			return nil, err
		}
		acc, err := parseU256(accStr)
		if err != nil {
			return nil, err
		}
		return &model.PoolInfo{
			Pid:               tick.Pid(pidStr),
			StakeTick:         stakeTick,
			EarnTickID:        earnTickID,
			Erate:             erate,
			Dmax:              dmax,
			Minted:            minted,
			Staked:            staked,
			AccRewardPerShare: acc,
			LastUpdateBlock:   lastUpdateBlock,
			OnlyOperator:      onlyOperator != 0,
			Decimals:          decimals,
			DeployBy:          scriptkey.FromAddressString(deployByStr),
		}, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get pool info query failed", err)
	}
}

func (s *Store) GetPoolInfo(ctx context.Context, pid tick.Pid) (*model.PoolInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT pid, stake_tick, earn_tick_id, erate, dmax, minted, staked, acc_reward_per_share, last_update_block, only_operator, decimals, deploy_by FROM pools WHERE pid = ?`, string(pid))
	return s.scanPool(row)
}

func (s *Store) GetPoolsByStakeTick(ctx context.Context, stakeTick string) ([]model.PoolInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pid FROM pools WHERE stake_tick = ?`, stakeTick)
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "get pools by stake tick query failed", err)
	}
	defer rows.Close()

	var pids []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, errors.New(errors.ERR_STORAGE, "get pools by stake tick scan failed", err)
		}
		pids = append(pids, pid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.PoolInfo, 0, len(pids))
	for _, pid := range pids {
		info, err := s.GetPoolInfo(ctx, tick.Pid(pid))
		if err != nil {
			return nil, err
		}
		if info != nil {
			out = append(out, *info)
		}
	}
	return out, nil
}

func (s *Store) GetUserInfo(ctx context.Context, pid tick.Pid, owner scriptkey.ScriptKey) (*model.UserInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT staked, reward, reward_debt, last_update_block FROM users WHERE pid = ? AND owner = ?`, string(pid), owner.String())

	var stakedStr, rewardStr, rewardDebtStr string
	var lastUpdateBlock uint32
	switch err := row.Scan(&stakedStr, &rewardStr, &rewardDebtStr, &lastUpdateBlock); err {
	case nil:
		staked, err := parseU256(stakedStr)
		if err != nil {
			return nil, err
		}
		reward, err := parseU256(rewardStr)
		if err != nil {
			return nil, err
		}
		rewardDebt, err := parseU256(rewardDebtStr)
		if err != nil {
			return nil, err
		}
		return &model.UserInfo{Pid: pid, Owner: owner, Staked: staked, Reward: reward, RewardDebt: rewardDebt, LastUpdateBlock: lastUpdateBlock}, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get user info query failed", err)
	}
}

func (s *Store) GetUserPools(ctx context.Context, owner scriptkey.ScriptKey) ([]model.UserInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pid, staked, reward, reward_debt, last_update_block FROM users WHERE owner = ?`, owner.String())
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "get user pools query failed", err)
	}
	defer rows.Close()

	var out []model.UserInfo
	for rows.Next() {
		var pidStr, stakedStr, rewardStr, rewardDebtStr string
		var lastUpdateBlock uint32
		if err := rows.Scan(&pidStr, &stakedStr, &rewardStr, &rewardDebtStr, &lastUpdateBlock); err != nil {
			return nil, errors.New(errors.ERR_STORAGE, "get user pools scan failed", err)
		}
		staked, err := parseU256(stakedStr)
		if err != nil {
			return nil, err
		}
		reward, err := parseU256(rewardStr)
		if err != nil {
			return nil, err
		}
		rewardDebt, err := parseU256(rewardDebtStr)
		if err != nil {
			return nil, err
		}
		out = append(out, model.UserInfo{Pid: tick.Pid(pidStr), Owner: owner, Staked: staked, Reward: reward, RewardDebt: rewardDebt, LastUpdateBlock: lastUpdateBlock})
	}
	return out, rows.Err()
}

func (s *Store) GetBTCBalance(ctx context.Context, owner scriptkey.ScriptKey) (*uint256.Int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT balance FROM btc_balances WHERE owner = ?`, owner.String())

	var balanceStr string
	switch err := row.Scan(&balanceStr); err {
	case nil:
		return parseU256(balanceStr)
	case sql.ErrNoRows:
		return new(uint256.Int), nil
	default:
		return nil, errors.New(errors.ERR_STORAGE, "get btc balance query failed", err)
	}
}

func (s *Store) InsertPoolInfo(ctx context.Context, info model.PoolInfo) error {
	only := 0
	if info.OnlyOperator {
		only = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pools (pid, stake_tick, earn_tick_id, erate, dmax, minted, staked, acc_reward_per_share, last_update_block, only_operator, decimals, deploy_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(info.Pid), info.StakeTick, info.EarnTickID.String(), info.Erate.Dec(), info.Dmax.Dec(), info.Minted.Dec(),
		info.Staked.Dec(), info.AccRewardPerShare.Dec(), info.LastUpdateBlock, only, info.Decimals, info.DeployBy.String())
	if err != nil {
		return errors.New(errors.ERR_INVALID_POOL_ID, "pool %s already deployed", info.Pid, err)
	}
	return nil
}

func (s *Store) UpdatePoolInfo(ctx context.Context, info model.PoolInfo) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pools SET minted = ?, staked = ?, acc_reward_per_share = ?, last_update_block = ? WHERE pid = ?`,
		info.Minted.Dec(), info.Staked.Dec(), info.AccRewardPerShare.Dec(), info.LastUpdateBlock, string(info.Pid))
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "update pool info failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ERR_POOL_NOT_FOUND, "pool %s not found", info.Pid)
	}
	return nil
}

func (s *Store) UpdateUserInfo(ctx context.Context, info model.UserInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (pid, owner, staked, reward, reward_debt, last_update_block) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (pid, owner) DO UPDATE SET staked = excluded.staked, reward = excluded.reward, reward_debt = excluded.reward_debt, last_update_block = excluded.last_update_block`,
		string(info.Pid), info.Owner.String(), info.Staked.Dec(), info.Reward.Dec(), info.RewardDebt.Dec(), info.LastUpdateBlock)
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "update user info failed", err)
	}
	return nil
}

func (s *Store) SetBTCBalance(ctx context.Context, owner scriptkey.ScriptKey, balance *uint256.Int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO btc_balances (owner, balance) VALUES (?, ?)
		ON CONFLICT (owner) DO UPDATE SET balance = excluded.balance`, owner.String(), balance.Dec())
	if err != nil {
		return errors.New(errors.ERR_STORAGE, "set btc balance failed", err)
	}
	return nil
}

func decodeLowerTick(h string) (tick.LowerTick, error) {
	b, err := hex.DecodeString(h)
	if err != nil || len(b) != 16 {
		return tick.LowerTick{}, errors.New(errors.ERR_STORAGE, "corrupt lower_tick_hex %q", h)
	}
	var lt tick.LowerTick
	copy(lt[:], b)
	return lt, nil
}

// wireReceiptEntry is the JSON-on-disk shape of a model.ReceiptEntry.
// The entry's Event is not stored: encodeReceipt leaves EventKind empty,
// and only ok/err_code/err_message record the outcome. decodeReceipt
// returns entries without an Event or satpoints (get_receipts is a
// read-only audit path, never replayed into the executor — §4.4 read
// capability).
type wireReceiptEntry struct {
	InscriptionID     string `json:"inscription_id"`
	InscriptionNumber int64  `json:"inscription_number"`
	OldSatpoint       string `json:"old_satpoint"`
	NewSatpoint       string `json:"new_satpoint"`
	OpKind            string `json:"op_kind"`
	From              string `json:"from"`
	To                string `json:"to"`
	Ok                bool   `json:"ok"`
	EventKind         string `json:"event_kind,omitempty"`
	ErrCode           int32  `json:"err_code,omitempty"`
	ErrMessage        string `json:"err_message,omitempty"`
}

func encodeReceipt(r model.Receipt) ([]byte, error) {
	entries := make([]wireReceiptEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		w := wireReceiptEntry{
			InscriptionID:     e.InscriptionID.String(),
			InscriptionNumber: e.InscriptionNumber,
			OldSatpoint:       e.OldSatpoint.String(),
			NewSatpoint:       e.NewSatpoint.String(),
			OpKind:            string(e.OpKind),
			From:              e.From.String(),
			To:                e.To.String(),
			Ok:                e.Ok(),
		}
		if e.Err != nil {
			w.ErrCode = int32(e.Err.Code)
			w.ErrMessage = e.Err.Message
		}
		entries = append(entries, w)
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "encode receipt failed", err)
	}
	return payload, nil
}

func decodeReceipt(txid string, payload []byte) (*model.Receipt, error) {
	var wire []wireReceiptEntry
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, errors.New(errors.ERR_STORAGE, "decode receipt failed", err)
	}

	entries := make([]model.ReceiptEntry, 0, len(wire))
	for _, w := range wire {
		inscriptionID, err := model.ParseInscriptionID(w.InscriptionID)
		if err != nil {
			return nil, errors.New(errors.ERR_STORAGE, "corrupt receipt entry", err)
		}
		entry := model.ReceiptEntry{
			InscriptionID:     inscriptionID,
			InscriptionNumber: w.InscriptionNumber,
			OpKind:            model.OpKind(w.OpKind),
			From:              scriptkey.FromAddressString(w.From),
			To:                scriptkey.FromAddressString(w.To),
		}
		if !w.Ok {
			entry.Err = errors.New(errors.ERR(w.ErrCode), w.ErrMessage)
		}
		entries = append(entries, entry)
	}

	return &model.Receipt{Txid: txid, Entries: entries}, nil
}
