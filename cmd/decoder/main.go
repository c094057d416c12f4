package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "decoder",
		Short:        "Decode EVM transaction logs into accounting events",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch transactions and receipts into JSONL",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("rpc", "", "JSON-RPC URL")
	fetchCmd.Flags().StringSlice("tx", nil, "transaction hashes (comma-separated); skips the range scan")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().StringSlice("address", nil, "only scan logs emitted by these contracts (comma-separated)")
	fetchCmd.Flags().StringSlice("account", nil, "scan logs with these accounts in topic 1 or 2 (comma-separated)")
	fetchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	fetchCmd.Flags().String("out", "./data/transactions.jsonl", "output transactions JSONL")
	fetchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path, empty disables")
	fetchCmd.Flags().String("pg-dsn", "", "Postgres DSN; stores the checkpoint in fetch_state instead of a file")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode fetched transactions into events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "./data/transactions.jsonl", "input transactions JSONL")
	decodeCmd.Flags().String("out", "./data/decoded_events.jsonl", "output decoded events JSONL")
	decodeCmd.Flags().String("diagnostics", "./data/decode_diagnostics.jsonl", "output diagnostics JSONL, empty disables")
	decodeCmd.Flags().StringSlice("tracked", nil, "tracked accounts (comma-separated)")
	decodeCmd.Flags().StringToString("uniswap-v1-exchanges", nil, "uniswap v1 exchanges as exchange=token pairs")
	decodeCmd.Flags().Bool("report-undecoded", false, "emit a diagnostic for every log no decoder handled")
	decodeCmd.Flags().Int("workers", 4, "transactions decoded concurrently")
	decodeCmd.Flags().String("rpc", "", "JSON-RPC URL for token metadata, empty uses address and 18 decimals")
	decodeCmd.Flags().String("redis-addr", "", "redis address for the shared token metadata cache")
	decodeCmd.Flags().Duration("redis-ttl", 24*time.Hour, "token metadata cache TTL")
	decodeCmd.Flags().String("pg-dsn", "", "Postgres DSN; also writes events and diagnostics to Postgres")
	decodeCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9102)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	return root
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
