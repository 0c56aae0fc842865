package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/bridge-relayer/internal/chainclient/evm"
	"github.com/ava-labs/bridge-relayer/pkg/checkpointer"
	"github.com/ava-labs/bridge-relayer/pkg/clickhouse"
	"github.com/ava-labs/bridge-relayer/pkg/data/clickhouse/checkpoint"
	"github.com/ava-labs/bridge-relayer/pkg/data/clickhouse/relayhistory"
	"github.com/ava-labs/bridge-relayer/pkg/kafka"
	"github.com/ava-labs/bridge-relayer/pkg/metrics"
	"github.com/ava-labs/bridge-relayer/pkg/relay"
	"github.com/ava-labs/bridge-relayer/pkg/relayer"
	"github.com/ava-labs/bridge-relayer/pkg/scanner"
	"github.com/ava-labs/bridge-relayer/pkg/utils"
)

const metricsShutdownTimeout = 5 * time.Second

func run(c *cli.Context) error {
	// Build configuration from CLI flags
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"rpcURL", cfg.RPCURL,
		"rpcTimeout", cfg.RPCTimeout,
		"evmChainID", cfg.EVMChainID,
		"contract", cfg.Contract.Hex(),
		"confirmations", cfg.Confirmations,
		"pollInterval", cfg.PollInterval,
		"destinationType", cfg.DestinationType,
		"destinationEndpoint", cfg.DestinationEndpoint,
		"relayTimeout", cfg.RelayTimeout,
		"checkpointBackend", cfg.CheckpointBackend,
		"stateFilePath", cfg.StateFilePath,
		"checkpointTableName", cfg.CheckpointTableName,
		"relayHistoryEnabled", cfg.RelayHistoryEnabled,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"cloudProvider", cfg.CloudProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connector, err := evm.New(ctx, cfg.RPCURL, sugar, evm.WithCallTimeout(cfg.RPCTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to source chain: %w", err)
	}
	defer connector.Close()

	evmChainID, err := resolveChainID(cfg.EVMChainID, connector.ChainID())
	if err != nil {
		return err
	}

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metricsLabels(cfg, evmChainID))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	connector.SetMetrics(m)

	var chClient clickhouse.Client
	if cfg.UsesClickHouse() {
		chClient, err = clickhouse.New(ctx, cfg.ClickHouse, sugar)
		if err != nil {
			return fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		defer chClient.Close()
		sugar.Info("ClickHouse client created successfully")
	}

	store := newCheckpointStore(cfg.CheckpointBackend, cfg.StateFilePath, cfg.CheckpointTableName,
		chClient, cfg.ClickHouse, evmChainID, cfg.Contract.Hex(), sugar)

	dispatcherOpts := []relay.Option{
		relay.WithTimeout(cfg.RelayTimeout),
		relay.WithMetrics(m),
	}
	if cfg.RelayHistoryEnabled {
		history := relayhistory.NewRepository(chClient, cfg.ClickHouse, cfg.RelayHistoryTableName, evmChainID, cfg.Contract.Hex())
		if err := history.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize relay history: %w", err)
		}
		dispatcherOpts = append(dispatcherOpts, relay.WithHistory(history))
	}

	var (
		dest         relay.Destination
		producerErrs <-chan error
	)
	switch cfg.DestinationType {
	case destinationKafka:
		producer, err := newKafkaProducer(ctx, cfg.Kafka, sugar)
		if err != nil {
			return err
		}
		defer producer.Close(cfg.Kafka.FlushTimeout)
		dest = relay.NewKafkaDestination(producer, cfg.Kafka.Topic)
		producerErrs = producer.Errors()
	default:
		dest = relay.NewHTTPDestination(cfg.DestinationEndpoint)
	}

	orchestrator, err := relayer.New(
		cfg.RelayerConfig(),
		connector,
		scanner.New(connector, cfg.Contract, sugar, m),
		relay.NewDispatcher(dest, sugar, dispatcherOpts...),
		store,
		sugar,
		relayer.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create relayer: %w", err)
	}

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry,
		metrics.WithStatus(func() any { return orchestrator.Status() }))
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orchestrator.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-producerErrs:
			return err
		}
	})

	g.Go(func() error {
		relayer.StartLagWatchdog(gctx, sugar, orchestrator, cfg.LagWatchdogInterval, cfg.LagWatchdogMaxLag)
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	// Gracefully shutdown metrics server
	sugar.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("metrics server shutdown error", "error", err)
	}

	sugar.Infow("shutdown complete", "checkpoint", orchestrator.Checkpoint().String())
	return err
}

// metricsLabels labels every series with the chain id the node reported, so
// the label is present even when EVM_CHAIN_ID is unset.
func metricsLabels(cfg *Config, evmChainID uint64) metrics.Labels {
	return metrics.Labels{
		EVMChainID:    evmChainID,
		Contract:      strings.ToLower(cfg.Contract.Hex()),
		Environment:   cfg.Environment,
		Region:        cfg.Region,
		CloudProvider: cfg.CloudProvider,
	}
}

// newCheckpointStore returns the backend selected by name. chClient is only
// used by the clickhouse backend.
func newCheckpointStore(
	backend, statePath, tableName string,
	chClient clickhouse.Client,
	chCfg clickhouse.Config,
	evmChainID uint64,
	contract string,
	sugar *zap.SugaredLogger,
) checkpointer.Checkpointer {
	if backend == backendClickHouse {
		return checkpoint.NewRepository(chClient, chCfg, tableName, evmChainID, contract)
	}
	return checkpointer.NewFileStore(statePath, sugar)
}

func newKafkaProducer(ctx context.Context, cfg kafka.ProducerConfig, sugar *zap.SugaredLogger) (*kafka.Producer, error) {
	if cfg.EnsureTopic {
		// Create Kafka admin client to ensure topic exists
		admin, err := confluentKafka.NewAdminClient(cfg.AdminConfigMap())
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka admin client: %w", err)
		}
		err = kafka.EnsureTopic(ctx, admin, cfg.TopicConfig(), sugar)
		admin.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to ensure kafka topic exists: %w", err)
		}
	}

	producer, err := kafka.NewProducer(ctx, cfg.ConfigMap(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}
