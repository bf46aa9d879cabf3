// Command indexer is the process entrypoint (§6): it wires settings,
// logging, a ledger backend, the brc-zero forwarding client and the
// Kafka ingestion adapter into a running orchestrator, exposing
// /metrics for the C13 prometheus instrumentation. A `-replay` mode
// instead reads one newline-delimited JSON block message per line from
// stdin and applies them synchronously, for local testing and batch
// backfill without standing up Kafka.
package main

import (
	"bufio"
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/okx/brc20index/brczero"
	"github.com/okx/brc20index/ingest"
	"github.com/okx/brc20index/ledger"
	"github.com/okx/brc20index/ledger/memory"
	"github.com/okx/brc20index/ledger/sqlite"
	"github.com/okx/brc20index/settings"
	"github.com/okx/brc20index/ulogger"
	"github.com/okx/brc20index/util/retry"
)

func main() {
	replay := flag.Bool("replay", false, "read newline-delimited JSON block messages from stdin and apply them synchronously instead of consuming Kafka")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for the /metrics endpoint")
	flag.Parse()

	cfg := settings.New()
	logger := ulogger.New("brc20index", cfg.LogLevel)

	store, err := openLedger(cfg, logger)
	if err != nil {
		logger.Fatalf("indexer: open ledger backend %q: %v", cfg.LedgerBackend, err)
	}

	var brczeroClient *brczero.Client
	if cfg.BRCZeroEndpoint != "" {
		brczeroClient = brczero.New(cfg.BRCZeroEndpoint, cfg.BRCZeroTimeout, logger)
	}

	policy := retry.New(
		retry.WithInitialBackoff(cfg.TxFetchInitialBackoff),
		retry.WithMaxBackoff(cfg.TxFetchMaxBackoff),
		retry.WithBackoffFactor(cfg.TxFetchBackoffFactor),
	)

	processor := ingest.NewProcessor(store, brczeroClient, policy, logger, cfg.Network)

	if *replay {
		if err := runReplay(context.Background(), processor, logger); err != nil {
			logger.Fatalf("indexer: replay failed: %v", err)
		}
		return
	}

	if err := runServer(cfg, processor, logger, *metricsAddr); err != nil {
		logger.Fatalf("indexer: %v", err)
	}
}

func openLedger(cfg *settings.Settings, logger ulogger.Logger) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case "sqlite":
		return sqlite.New(context.Background(), logger, cfg.LedgerDSN)
	default:
		return memory.New(), nil
	}
}

// runReplay implements the synchronous CLI replay path (§6): one JSON
// BlockMessage per line, applied in order through
// Processor.ProcessMessage, stopping on the first error.
func runReplay(ctx context.Context, processor *ingest.Processor, logger ulogger.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)

	var n int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := processor.ProcessMessage(ctx, []byte(line)); err != nil {
			return err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	logger.Infof("indexer: replay applied %d blocks", n)
	return nil
}

// runServer drives the Kafka consumer loop and the /metrics HTTP server
// concurrently under one errgroup, the way the teacher's main.go runs
// its health-check and prometheus listeners alongside its services:
// either one exiting tears down the other (§5).
func runServer(cfg *settings.Settings, processor *ingest.Processor, logger ulogger.Logger, metricsAddr string) error {
	if cfg.KafkaBrokers == "" {
		logger.Fatalf("indexer: kafka_brokers is required to run without -replay")
	}

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	consumer, err := ingest.NewConsumer(brokers, cfg.KafkaConsumerGrp, cfg.KafkaOpsTopic, processor, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	g.Go(func() error {
		logger.Infof("indexer: metrics listening on %s", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}
