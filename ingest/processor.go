package ingest

import (
	"context"

	"github.com/okx/brc20index/brczero"
	"github.com/okx/brc20index/ledger"
	"github.com/okx/brc20index/protocol/orchestrator"
	"github.com/okx/brc20index/protocol/resolver"
	"github.com/okx/brc20index/settings"
	"github.com/okx/brc20index/ulogger"
	"github.com/okx/brc20index/util/retry"
)

// Processor turns one decoded BlockMessage into an orchestrator run. Each
// call builds a resolver bound to that message's own AuxTxSource: the aux
// bundle changes block to block, while the ledger, retry policy and
// brc-zero client stay fixed for the process's lifetime.
type Processor struct {
	store    ledger.Store
	brczero  *brczero.Client
	policy   *retry.Policy
	logger   ulogger.Logger
	network  settings.Network
}

// NewProcessor builds a Processor. brczeroClient may be nil (§4.10; the
// orchestrator rejects any evm operation it then observes).
func NewProcessor(store ledger.Store, brczeroClient *brczero.Client, policy *retry.Policy, logger ulogger.Logger, network settings.Network) *Processor {
	return &Processor{store: store, brczero: brczeroClient, policy: policy, logger: logger, network: network}
}

// ProcessMessage decodes raw as one BlockMessage and applies it to the
// ledger via a fresh resolver/orchestrator pair scoped to that block's
// own bundled aux data (§4.6, §4.9).
func (p *Processor) ProcessMessage(ctx context.Context, raw []byte) error {
	msg, err := DecodeBlockMessage(raw)
	if err != nil {
		return err
	}
	return p.ProcessBlockMessage(ctx, msg)
}

// ProcessBlockMessage applies an already-decoded BlockMessage. The
// synchronous CLI replay path (§6) and the Kafka consumer reach it
// through ProcessMessage.
func (p *Processor) ProcessBlockMessage(ctx context.Context, msg BlockMessage) error {
	aux, err := NewAuxTxSource(msg, p.network)
	if err != nil {
		return err
	}

	block, err := ToBlock(msg, p.network)
	if err != nil {
		return err
	}

	res := resolver.New(p.store, aux, p.policy, p.logger)
	orch := orchestrator.New(p.store, res, p.brczero, p.logger)

	return orch.ProcessBlock(ctx, block)
}
