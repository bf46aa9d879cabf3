// Package ingest is the Kafka ingestion adapter (C9 addition,
// SPEC_FULL.md §6): it turns a newline-delimited JSON block record off a
// sarama.ConsumerGroup topic into the orchestrator.Block and
// resolver.TxSource shapes the existing core consumes, playing the same
// role the teacher's validator/subtreevalidation services play wiring a
// Kafka topic to an internal call.
package ingest

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/libsv/go-bt/v2/bscript"
	"github.com/libsv/go-bt/v2/chainhash"

	"github.com/okx/brc20index/errors"
	"github.com/okx/brc20index/model"
	"github.com/okx/brc20index/protocol/orchestrator"
	"github.com/okx/brc20index/protocol/resolver"
	"github.com/okx/brc20index/scriptkey"
	"github.com/okx/brc20index/settings"
)

// TxOutWire is one transaction output as carried on the wire: a raw
// output script rather than a pre-derived ScriptKey, so every consumer
// applies its own network's address derivation (§4.3).
type TxOutWire struct {
	Value     uint64 `json:"value"`
	ScriptHex string `json:"script_hex"`
}

// SpentOutputWire is one input together with the prevout it spends.
type SpentOutputWire struct {
	PrevTxid string    `json:"prev_txid"`
	PrevVout uint32    `json:"prev_vout"`
	PrevOut  TxOutWire `json:"prev_out"`
}

// SatpointWire is a (txid, vout, offset) satoshi location.
type SatpointWire struct {
	Txid   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Offset uint64 `json:"offset"`
}

// EventWire is one inscription operation the tracker reports against a
// transaction (§4.6 input), mirroring resolver.Event on the wire.
type EventWire struct {
	InscriptionID     string       `json:"inscription_id"`
	InscriptionNumber int64        `json:"inscription_number"`
	Action            string       `json:"action"` // "new" | "transfer"
	OldSatpoint       SatpointWire `json:"old_satpoint"`
	NewSatpoint       SatpointWire `json:"new_satpoint"`
}

// NewInscriptionWire is a freshly-revealed inscription body carried by
// the current transaction.
type NewInscriptionWire struct {
	ContentType string `json:"content_type"`
	BodyHex     string `json:"body_hex"`
}

// TxWire is one transaction of a block.
type TxWire struct {
	Txid            string               `json:"txid"`
	Coinbase        bool                 `json:"coinbase"`
	Inputs          []SpentOutputWire    `json:"inputs"`
	Outputs         []TxOutWire          `json:"outputs"`
	Events          []EventWire          `json:"events"`
	NewInscriptions []NewInscriptionWire `json:"new_inscriptions"`
}

// AuxTxWire bundles the upstream lookups a non-first transfer's genesis
// fetch or a commit-from walk needs for one past transaction (§4.6),
// carried inline on the same message since this port has no standalone
// chain/tracker RPC client to fetch them lazily.
type AuxTxWire struct {
	Txid                string               `json:"txid"`
	GenesisInscriptions []NewInscriptionWire `json:"genesis_inscriptions,omitempty"`
	Outputs             []TxOutWire          `json:"outputs,omitempty"`
	Inputs              []SpentOutputWire    `json:"inputs,omitempty"`
}

// BlockMessage is the newline-delimited JSON record shape one Kafka
// message carries: a full block plus whatever auxiliary past-transaction
// data its resolver pass needs (§6).
type BlockMessage struct {
	Height       uint32      `json:"height"`
	Time         uint64      `json:"time"`
	Hash         string      `json:"hash"`
	Confirmed    bool        `json:"confirmed"`
	Transactions []TxWire    `json:"transactions"`
	Aux          []AuxTxWire `json:"aux,omitempty"`
}

// DecodeBlockMessage parses one newline-delimited JSON record.
func DecodeBlockMessage(raw []byte) (BlockMessage, error) {
	var msg BlockMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return BlockMessage{}, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed block message", err)
	}
	return msg, nil
}

func parseTxid(s string) (chainhash.Hash, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed txid %q", s, err)
	}
	return *h, nil
}

func scriptKeyFromHex(scriptHex string, network settings.Network) (scriptkey.ScriptKey, error) {
	raw, err := hex.DecodeString(scriptHex)
	if err != nil {
		return scriptkey.ScriptKey{}, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed script hex %q", scriptHex, err)
	}
	script := bscript.Script(raw)
	return scriptkey.FromScript(&script, network)
}

func toTxOut(w TxOutWire, network settings.Network) (model.TxOut, error) {
	key, err := scriptKeyFromHex(w.ScriptHex, network)
	if err != nil {
		return model.TxOut{}, err
	}
	return model.TxOut{Value: w.Value, ScriptKey: key}, nil
}

func toSatpoint(w SatpointWire) (model.Satpoint, error) {
	txid, err := parseTxid(w.Txid)
	if err != nil {
		return model.Satpoint{}, err
	}
	return model.Satpoint{Outpoint: model.Outpoint{Txid: txid, Vout: w.Vout}, Offset: w.Offset}, nil
}

func toAction(s string) (model.Action, error) {
	switch s {
	case "new":
		return model.ActionNew, nil
	case "transfer":
		return model.ActionTransfer, nil
	default:
		return 0, errors.New(errors.ERR_INVALID_ARGUMENT, "unknown action %q", s)
	}
}

// ToBlock translates msg into the orchestrator.Block shape, deriving
// every ScriptKey under network (§4.3).
func ToBlock(msg BlockMessage, network settings.Network) (orchestrator.Block, error) {
	block := orchestrator.Block{
		Height:    msg.Height,
		Time:      msg.Time,
		Hash:      msg.Hash,
		Confirmed: msg.Confirmed,
	}

	for _, txw := range msg.Transactions {
		tx, err := toTx(txw, network)
		if err != nil {
			return orchestrator.Block{}, err
		}
		block.Transactions = append(block.Transactions, tx)
	}

	return block, nil
}

func toTx(txw TxWire, network settings.Network) (orchestrator.Tx, error) {
	txid, err := parseTxid(txw.Txid)
	if err != nil {
		return orchestrator.Tx{}, err
	}

	tx := orchestrator.Tx{Txid: txid, Coinbase: txw.Coinbase}

	for _, inw := range txw.Inputs {
		prevTxid, err := parseTxid(inw.PrevTxid)
		if err != nil {
			return orchestrator.Tx{}, err
		}
		prevOut, err := toTxOut(inw.PrevOut, network)
		if err != nil {
			return orchestrator.Tx{}, err
		}
		tx.Inputs = append(tx.Inputs, orchestrator.SpentOutput{
			PrevOutpoint:  model.Outpoint{Txid: prevTxid, Vout: inw.PrevVout},
			PrevValue:     prevOut.Value,
			PrevScriptKey: prevOut.ScriptKey,
		})
	}

	for _, outw := range txw.Outputs {
		txOut, err := toTxOut(outw, network)
		if err != nil {
			return orchestrator.Tx{}, err
		}
		tx.Outputs = append(tx.Outputs, orchestrator.Output{Value: txOut.Value, ScriptKey: txOut.ScriptKey})
	}

	for _, evw := range txw.Events {
		ev, err := toEvent(evw)
		if err != nil {
			return orchestrator.Tx{}, err
		}
		tx.Events = append(tx.Events, ev)
	}

	for _, niw := range txw.NewInscriptions {
		body, err := hex.DecodeString(niw.BodyHex)
		if err != nil {
			return orchestrator.Tx{}, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed inscription body hex for tx %s", txw.Txid, err)
		}
		tx.NewInscriptions = append(tx.NewInscriptions, resolver.NewInscription{ContentType: niw.ContentType, Body: body})
	}

	return tx, nil
}

func toEvent(w EventWire) (resolver.Event, error) {
	id, err := model.ParseInscriptionID(w.InscriptionID)
	if err != nil {
		return resolver.Event{}, err
	}
	action, err := toAction(w.Action)
	if err != nil {
		return resolver.Event{}, err
	}
	oldSat, err := toSatpoint(w.OldSatpoint)
	if err != nil {
		return resolver.Event{}, err
	}
	newSat, err := toSatpoint(w.NewSatpoint)
	if err != nil {
		return resolver.Event{}, err
	}

	return resolver.Event{
		InscriptionID:     id,
		InscriptionNumber: w.InscriptionNumber,
		Action:            action,
		OldSatpoint:       oldSat,
		NewSatpoint:       newSat,
	}, nil
}

// AuxTxSource is a resolver.TxSource backed entirely by one BlockMessage's
// bundled Aux entries, rather than a live upstream RPC client (§4.6).
type AuxTxSource struct {
	genesis map[chainhash.Hash][]resolver.GenesisInscription
	outputs map[chainhash.Hash][]resolver.TxOutput
	inputs  map[chainhash.Hash][]resolver.TxInput
}

// NewAuxTxSource builds an AuxTxSource from msg's Aux entries.
func NewAuxTxSource(msg BlockMessage, network settings.Network) (*AuxTxSource, error) {
	src := &AuxTxSource{
		genesis: make(map[chainhash.Hash][]resolver.GenesisInscription),
		outputs: make(map[chainhash.Hash][]resolver.TxOutput),
		inputs:  make(map[chainhash.Hash][]resolver.TxInput),
	}

	for _, aux := range msg.Aux {
		txid, err := parseTxid(aux.Txid)
		if err != nil {
			return nil, err
		}

		if len(aux.GenesisInscriptions) > 0 {
			gens := make([]resolver.GenesisInscription, len(aux.GenesisInscriptions))
			for i, g := range aux.GenesisInscriptions {
				body, err := hex.DecodeString(g.BodyHex)
				if err != nil {
					return nil, errors.New(errors.ERR_INVALID_ARGUMENT, "malformed genesis body hex for aux tx %s", aux.Txid, err)
				}
				gens[i] = resolver.GenesisInscription{ContentType: g.ContentType, Body: body}
			}
			src.genesis[txid] = gens
		}

		if len(aux.Outputs) > 0 {
			outs := make([]resolver.TxOutput, len(aux.Outputs))
			for i, o := range aux.Outputs {
				outs[i] = resolver.TxOutput{Value: o.Value}
			}
			src.outputs[txid] = outs
		}

		if len(aux.Inputs) > 0 {
			ins := make([]resolver.TxInput, len(aux.Inputs))
			for i, in := range aux.Inputs {
				prevTxid, err := parseTxid(in.PrevTxid)
				if err != nil {
					return nil, err
				}
				prevOut, err := toTxOut(in.PrevOut, network)
				if err != nil {
					return nil, err
				}
				ins[i] = resolver.TxInput{
					PrevOutpoint:  model.Outpoint{Txid: prevTxid, Vout: in.PrevVout},
					PrevValue:     prevOut.Value,
					PrevScriptKey: prevOut.ScriptKey,
				}
			}
			src.inputs[txid] = ins
		}
	}

	return src, nil
}

func (a *AuxTxSource) FetchGenesisInscriptions(_ context.Context, txid chainhash.Hash) ([]resolver.GenesisInscription, error) {
	v, ok := a.genesis[txid]
	if !ok {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, "no genesis inscriptions bundled for tx %s", txid.String())
	}
	return v, nil
}

func (a *AuxTxSource) FetchTxOutputs(_ context.Context, txid chainhash.Hash) ([]resolver.TxOutput, error) {
	v, ok := a.outputs[txid]
	if !ok {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, "no outputs bundled for tx %s", txid.String())
	}
	return v, nil
}

func (a *AuxTxSource) FetchTxInputs(_ context.Context, txid chainhash.Hash) ([]resolver.TxInput, error) {
	v, ok := a.inputs[txid]
	if !ok {
		return nil, errors.New(errors.ERR_RPC_EXHAUSTED, "no inputs bundled for tx %s", txid.String())
	}
	return v, nil
}
