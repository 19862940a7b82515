package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cremationLedger/internal/codes"
	"cremationLedger/internal/config"
	"cremationLedger/internal/host"
	"cremationLedger/internal/replay"
	"cremationLedger/internal/storage"
	"cremationLedger/internal/storage/postgres"
	"cremationLedger/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:          "ledgerd",
		Short:        "Deterministic ledger host for the cremation token contracts",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a scenario against the ledger",
		RunE:  runScenario,
	}

	runCmd.Flags().String("scenario", "", "scenario YAML path")
	runCmd.Flags().String("db", "", "LevelDB directory (empty keeps state in memory)")
	runCmd.Flags().String("out", "./data/snapshot.jsonl", "snapshot JSONL path (empty disables)")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot export")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing (requires --db)")
	runCmd.Flags().Uint64("batch-size", 50, "steps per checkpoint")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for snapshot writes")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Uint64("settlement-expiry", 0, "seconds after which a held settlement lock may be taken over (0 never)")
	runCmd.Flags().String("metrics-out", "", "write Prometheus metrics to this textfile on exit")
	runCmd.Flags().String("run-id", "", "snapshot run id (default random)")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run a read-only query against a stored ledger",
		RunE:  runQuery,
	}

	queryCmd.Flags().String("db", "", "LevelDB directory")
	queryCmd.Flags().String("contract", "", "contract address or @label")
	queryCmd.Flags().String("msg", "", `query message JSON, e.g. {"token_info":{}}`)
	queryCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(queryCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the current state of a stored ledger",
		RunE:  runExport,
	}

	exportCmd.Flags().String("db", "", "LevelDB directory")
	exportCmd.Flags().String("out", "", "snapshot JSONL path")
	exportCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	exportCmd.Flags().String("name", "default", "name the export height is recorded under")
	exportCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	exportCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScenario(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sc, err := replay.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	app := host.NewApp(kv, logger.Named("host"), host.WithMetrics(host.NewMetrics(registry)))
	codes.Register(app, codes.Options{SettlementExpiry: cfg.SettlementExpiry})

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = openPostgres(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		sinks = append(sinks, pg)
	}

	runner := replay.NewRunner(replay.RunConfig{
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RunID:             cfg.RunID,
	}, app, sinks, logger.Named("replay"))

	logger.Info("replay start",
		zap.String("scenario", cfg.Scenario),
		zap.String("name", sc.Name),
		zap.Int("steps", len(sc.Steps)),
		zap.String("db", cfg.DB),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", pg != nil),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.Uint64("settlement_expiry", cfg.SettlementExpiry),
	)

	summary, runErr := runner.Run(ctx, sc)
	if cfg.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsOut, registry); err != nil {
			logger.Warn("write metrics", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	if pg != nil {
		if err := pg.SaveState(ctx, sc.Name, summary.Height); err != nil {
			return fmt.Errorf("save run state: %w", err)
		}
	}

	logger.Info("replay complete",
		zap.String("run_id", summary.RunID),
		zap.Int("executed", summary.Executed),
		zap.Int("expected_failures", summary.Expected),
		zap.Uint64("height", summary.Height),
		zap.Int("records", summary.Records),
	)
	return nil
}

// openStore opens a LevelDB store at path, or an in-memory store when path
// is empty.
func openStore(path string) (store.KVStore, func(), error) {
	if path == "" {
		return store.NewMemStore(), func() {}, nil
	}
	db, err := store.OpenLevelStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}

func openPostgres(ctx context.Context, dsn string) (*postgres.Store, error) {
	pg, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
