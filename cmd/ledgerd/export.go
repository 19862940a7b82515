package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cremationLedger/internal/codes"
	"cremationLedger/internal/config"
	"cremationLedger/internal/host"
	"cremationLedger/internal/replay"
	"cremationLedger/internal/storage"
	"cremationLedger/internal/storage/postgres"
)

func runExport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	app := host.NewApp(kv, logger.Named("host"))
	codes.Register(app, codes.Options{})

	block, err := app.Block()
	if err != nil {
		return err
	}

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

		last, ok, err := pg.LoadState(ctx, cfg.Name)
		if err != nil {
			return fmt.Errorf("load export state: %w", err)
		}
		if ok && last == block.Height {
			logger.Info("export is current", zap.String("name", cfg.Name), zap.Uint64("height", last))
		}
		sinks = append(sinks, pg)
	}

	runner := replay.NewRunner(replay.RunConfig{
		BatchSize:    1,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, app, sinks, logger.Named("export"))

	records, err := runner.Export(ctx)
	if err != nil {
		return err
	}
	if pg != nil {
		if err := pg.SaveState(ctx, cfg.Name, block.Height); err != nil {
			return fmt.Errorf("save export state: %w", err)
		}
	}

	logger.Info("export complete", zap.Uint64("height", block.Height), zap.Int("records", records))
	return nil
}
