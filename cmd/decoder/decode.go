package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"txDecoder/internal/chain"
	"txDecoder/internal/config"
	"txDecoder/internal/decoders/erc20"
	"txDecoder/internal/decoders/uniswapv1"
	"txDecoder/internal/decoders/uniswapv3"
	"txDecoder/internal/decoding"
	"txDecoder/internal/fetcher"
	"txDecoder/internal/metrics"
	"txDecoder/internal/model"
	"txDecoder/internal/storage"
	"txDecoder/internal/storage/postgres"
	"txDecoder/internal/token"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	tracked, err := fetcher.ParseAddresses(cfg.Tracked)
	if err != nil {
		return err
	}
	exchanges, err := fetcher.ParseExchangePairs(cfg.UniswapV1Exchanges)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := newRegistry(logger, exchanges)
	if err != nil {
		return err
	}

	var caller token.Caller
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		caller = chainClient
	}

	shared, err := token.NewRedisCache(ctx, token.RedisConfig{Addr: cfg.RedisAddr, TTL: cfg.RedisTTL})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer shared.Close()

	tools := &decoding.Tools{
		Tracked: decoding.NewAccountSet(tracked...),
		Tokens:  token.NewResolver(caller, shared, logger),
	}
	engine := decoding.NewEngine(registry, tools,
		decoding.WithLogger(logger),
		decoding.WithUndecodedDiagnostics(cfg.ReportUndecoded),
	)

	jsonlSink := storage.NewJsonlEventSink(cfg.Out, cfg.Diagnostics)
	if err := jsonlSink.Truncate(); err != nil {
		return err
	}
	sinks := storage.MultiSink{jsonlSink}
	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	txs, err := storage.ReadTransactions(cfg.In)
	if err != nil {
		return err
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("diagnostics", cfg.Diagnostics),
		zap.Int("transactions", len(txs)),
		zap.Int("tracked", len(tracked)),
		zap.Int("owned_addresses", registry.OwnedAddresses()),
		zap.Int("workers", cfg.Workers),
	)

	results, err := engine.DecodeAll(ctx, txs, cfg.Workers)
	if err != nil {
		return fmt.Errorf("decode transactions: %w", err)
	}

	var events []model.DecodedEvent
	var diags []model.Diagnostic
	for _, res := range results {
		events = append(events, res.Events...)
		diags = append(diags, res.Diagnostics...)
	}
	if err := sinks.PutEvents(ctx, events); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	if err := sinks.PutDiagnostics(ctx, diags); err != nil {
		return fmt.Errorf("store diagnostics: %w", err)
	}

	logger.Info("decode complete",
		zap.Int("transactions", len(results)),
		zap.Int("events", len(events)),
		zap.Int("diagnostics", len(diags)),
	)

	return nil
}

func newRegistry(logger *zap.Logger, exchanges map[common.Address]common.Address) (*decoding.Registry, error) {
	uni, err := uniswapv1.NewDecoder(uniswapv1.Config{Exchanges: exchanges})
	if err != nil {
		return nil, err
	}
	v3, err := uniswapv3.NewDecoder()
	if err != nil {
		return nil, err
	}
	tokens, err := erc20.NewDecoder()
	if err != nil {
		return nil, err
	}
	// protocol rules run before the generic fund-movement rule
	return installDecoders(logger, uni, v3, tokens)
}

// installDecoders builds the registry and logs why a decoder set was rejected.
func installDecoders(logger *zap.Logger, decoders ...decoding.Decoder) (*decoding.Registry, error) {
	registry, err := decoding.NewRegistry(decoders...)
	if err != nil {
		var cfgErr *decoding.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Error("decoder configuration rejected",
				zap.String("address", cfgErr.Address.Hex()),
				zap.String("owner", cfgErr.Owner),
				zap.String("claimant", cfgErr.Claimant),
				zap.Error(cfgErr.Err),
			)
		}
		return nil, err
	}
	return registry, nil
}
