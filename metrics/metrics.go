// Package metrics registers the indexer's prometheus instrumentation
// (C13, §4.11), mirroring the package-level promauto var block the
// teacher's stores/utxo/sql/sql.go uses rather than wrapping every store
// in a decorator type.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesResolved counts resolver.Resolve outcomes per event: "ok",
	// "dropped" (silently skipped, e.g. unbound genesis or parse failure),
	// or "error" (infrastructure failure).
	MessagesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brc20index",
			Subsystem: "resolver",
			Name:      "messages_total",
			Help:      "Number of inscription events seen by the resolver, by outcome.",
		},
		[]string{"outcome"},
	)

	// ResolveDuration times one Resolver.Resolve call over a transaction's events.
	ResolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "brc20index",
			Subsystem: "resolver",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving one transaction's events into messages.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// MessagesExecuted counts executor outcomes by protocol, op kind, and
	// error code ("" on success).
	MessagesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brc20index",
			Subsystem: "executor",
			Name:      "messages_total",
			Help:      "Number of messages executed, by protocol, operation kind, and error code.",
		},
		[]string{"protocol", "op_kind", "error_code"},
	)

	// LedgerWriteDuration times a single ledger mutation by method name.
	LedgerWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "brc20index",
			Subsystem: "ledger",
			Name:      "write_duration_seconds",
			Help:      "Time spent in a single ledger write call, by method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// BroadcastDuration times one brczero.Client.Broadcast RPC round trip.
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "brc20index",
			Subsystem: "brczero",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent in one broadcast_brczero_txs_async round trip.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// BroadcastBatchSize observes how many evm txs each broadcast call carried.
	BroadcastBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "brc20index",
			Subsystem: "brczero",
			Name:      "broadcast_batch_size",
			Help:      "Number of evm transactions in one batched broadcast call.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		},
	)

	// BlocksProcessed counts orchestrator.ProcessBlock outcomes.
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "brc20index",
			Subsystem: "orchestrator",
			Name:      "blocks_total",
			Help:      "Number of blocks processed, by outcome.",
		},
		[]string{"outcome"},
	)
)
