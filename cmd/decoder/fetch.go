package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"txDecoder/internal/chain"
	"txDecoder/internal/config"
	"txDecoder/internal/fetcher"
	"txDecoder/internal/storage"
	"txDecoder/internal/storage/postgres"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	hashes, err := fetcher.ParseHashes(cfg.TxHashes)
	if err != nil {
		return err
	}
	contracts, err := fetcher.ParseAddresses(cfg.Contracts)
	if err != nil {
		return err
	}
	accounts, err := fetcher.ParseAddresses(cfg.Accounts)
	if err != nil {
		return err
	}
	if len(hashes) == 0 && len(contracts) == 0 && len(accounts) == 0 {
		return fmt.Errorf("tx hashes, contract addresses or accounts are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var checkpoint fetcher.Checkpoint
	switch {
	case cfg.PgDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		checkpoint = fetcher.StateCheckpoint{Store: store, Name: "fetch:" + cfg.Out}
	case cfg.Checkpoint != "":
		checkpoint = fetcher.NewFileCheckpoint(cfg.Checkpoint)
	}

	f := fetcher.New(fetcher.Config{
		Hashes:       hashes,
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Contracts:    contracts,
		Accounts:     accounts,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Checkpoint:   checkpoint,
	}, chainClient, storage.NewJsonlFile(cfg.Out), logger)

	logger.Info("fetch start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("tx_hashes", len(hashes)),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("contracts", len(contracts)),
		zap.Int("accounts", len(accounts)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", checkpoint != nil),
	)

	return f.Run(ctx)
}
