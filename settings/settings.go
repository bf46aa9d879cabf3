// Package settings centralises process configuration, loaded once via
// gocore.Config() the way the teacher threads gocore.Config().Get*
// calls through its service constructors rather than a static literal.
package settings

import (
	"strconv"
	"time"

	"github.com/ordishs/gocore"
)

// Network selects which Bitcoin network ScriptKey address derivation
// targets (§4.3).
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkRegtest Network = "regtest"
)

// Settings is the full set of knobs the indexer core reads at startup.
type Settings struct {
	Network Network

	LedgerBackend string // "memory" | "sqlite"
	LedgerDSN     string

	KafkaBrokers     string
	KafkaOpsTopic    string
	KafkaConsumerGrp string

	BRCZeroEndpoint string
	BRCZeroTimeout  time.Duration

	// Bounded exponential retry policy for the resolver's genesis-tx fetch (§4.6, §5).
	TxFetchInitialBackoff time.Duration
	TxFetchMaxBackoff     time.Duration
	TxFetchBackoffFactor  float64

	LogLevel string
}

// New loads Settings from gocore.Config(), applying the default passed
// alongside each key below when that key is absent.
func New() *Settings {
	cfg := gocore.Config()

	network, _ := cfg.Get("network", string(NetworkMainnet))

	ledgerBackend, _ := cfg.Get("ledger_backend", "memory")
	ledgerDSN, _ := cfg.Get("ledger_dsn", "file:brc20index.sqlite")

	kafkaBrokers, _ := cfg.Get("kafka_brokers", "")
	kafkaTopic, _ := cfg.Get("kafka_inscriptionOps_topic", "inscription-operations")
	kafkaGroup, _ := cfg.Get("kafka_consumer_group", "brc20index")

	brcZeroEndpoint, _ := cfg.Get("brczero_endpoint", "")
	brcZeroTimeoutMillis, _ := cfg.GetInt("brczero_timeout_millis", 5000)

	initialBackoffMillis, _ := cfg.GetInt("tx_fetch_initial_backoff_millis", 1000)
	maxBackoffMillis, _ := cfg.GetInt("tx_fetch_max_backoff_millis", 120000)
	backoffFactor := 2.0
	if raw, ok := cfg.Get("tx_fetch_backoff_factor"); ok {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			backoffFactor = parsed
		}
	}

	logLevel, _ := cfg.Get("logLevel", "INFO")

	return &Settings{
		Network:               Network(network),
		LedgerBackend:         ledgerBackend,
		LedgerDSN:             ledgerDSN,
		KafkaBrokers:          kafkaBrokers,
		KafkaOpsTopic:         kafkaTopic,
		KafkaConsumerGrp:      kafkaGroup,
		BRCZeroEndpoint:       brcZeroEndpoint,
		BRCZeroTimeout:        time.Duration(brcZeroTimeoutMillis) * time.Millisecond,
		TxFetchInitialBackoff: time.Duration(initialBackoffMillis) * time.Millisecond,
		TxFetchMaxBackoff:     time.Duration(maxBackoffMillis) * time.Millisecond,
		TxFetchBackoffFactor:  backoffFactor,
		LogLevel:              logLevel,
	}
}
