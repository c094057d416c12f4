// Package fetcher builds decoder input transactions from a JSON-RPC node,
// either from explicit hashes or by scanning a block range for logs that
// touch the tracked accounts.
package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"txDecoder/internal/model"
	"txDecoder/internal/storage"
)

// Chain is the RPC surface the fetcher needs. *chain.Client implements it.
type Chain interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, common.Address, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// Config holds runtime settings for a fetch.
type Config struct {
	// Hashes, when set, are fetched directly and the range scan is skipped.
	Hashes []common.Hash

	FromBlock uint64
	ToBlock   uint64
	// Contracts restricts the scan to logs emitted by these addresses.
	Contracts []common.Address
	// Accounts selects logs carrying one of these addresses in topic 1 or 2.
	Accounts []common.Address
	BatchSize uint64

	MaxRetries   int
	RetryBackoff time.Duration
	Checkpoint   Checkpoint
}

// Fetcher streams transactions from the chain into a sink.
type Fetcher struct {
	cfg    Config
	chain  Chain
	sink   storage.TransactionSink
	logger *zap.Logger
	seen   map[common.Hash]struct{}
}

// New builds a Fetcher with its dependencies.
func New(cfg Config, chainClient Chain, sink storage.TransactionSink, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		chain:  chainClient,
		sink:   sink,
		logger: logger,
		seen:   make(map[common.Hash]struct{}),
	}
}

// Run fetches the configured transactions.
func (f *Fetcher) Run(ctx context.Context) error {
	if f.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if f.sink == nil {
		return fmt.Errorf("transaction sink is nil")
	}

	chainID, err := f.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	if len(f.cfg.Hashes) > 0 {
		return f.fetchHashes(ctx, chainID.Uint64(), f.cfg.Hashes)
	}
	return f.scan(ctx, chainID.Uint64())
}

func (f *Fetcher) fetchHashes(ctx context.Context, chainID uint64, hashes []common.Hash) error {
	txs := make([]model.Transaction, 0, len(hashes))
	for _, hash := range hashes {
		if f.isDuplicate(hash) {
			continue
		}
		tx, err := f.fetchTransaction(ctx, chainID, hash)
		if err != nil {
			return err
		}
		txs = append(txs, tx)
	}
	if err := f.sink.PutTransactions(txs); err != nil {
		return fmt.Errorf("store transactions: %w", err)
	}
	f.logger.Info("fetched transactions", zap.Int("transactions", len(txs)))
	return nil
}

func (f *Fetcher) scan(ctx context.Context, chainID uint64) error {
	if f.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(f.cfg.Contracts) == 0 && len(f.cfg.Accounts) == 0 {
		return fmt.Errorf("at least one contract or account is required")
	}

	from := f.cfg.FromBlock
	to := f.cfg.ToBlock
	if to == 0 {
		latest, err := f.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if f.cfg.Checkpoint != nil {
		last, ok, err := f.cfg.Checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok && last >= from {
			from = last + 1
			f.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		f.logger.Info("nothing to fetch", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, f.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f.logger.Info("scan logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		hashes, err := f.collectHashes(ctx, blockRange)
		if err != nil {
			return err
		}

		txs := make([]model.Transaction, 0, len(hashes))
		for _, hash := range hashes {
			tx, err := f.fetchTransaction(ctx, chainID, hash)
			if err != nil {
				return err
			}
			txs = append(txs, tx)
		}
		if err := f.sink.PutTransactions(txs); err != nil {
			return fmt.Errorf("store transactions: %w", err)
		}

		if f.cfg.Checkpoint != nil {
			if err := f.cfg.Checkpoint.Save(ctx, blockRange.To); err != nil {
				return err
			}
		}

		f.logger.Info("batch complete", zap.Int("transactions", len(txs)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

// collectHashes returns the new transaction hashes of a range in chain order.
func (f *Fetcher) collectHashes(ctx context.Context, blockRange BlockRange) ([]common.Hash, error) {
	var queries [][][]common.Hash
	if len(f.cfg.Accounts) == 0 {
		queries = append(queries, nil)
	} else {
		words := make([]common.Hash, 0, len(f.cfg.Accounts))
		for _, account := range f.cfg.Accounts {
			words = append(words, common.BytesToHash(account.Bytes()))
		}
		queries = append(queries,
			[][]common.Hash{nil, words},
			[][]common.Hash{nil, nil, words},
		)
	}

	var logs []types.Log
	for _, topics := range queries {
		found, err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) ([]types.Log, error) {
			found, err := f.chain.FilterLogs(ctx, blockRange.From, blockRange.To, f.cfg.Contracts, topics)
			if err != nil {
				f.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
			}
			return found, err
		})
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}
		logs = append(logs, found...)
	}

	sortLogs(logs)
	hashes := make([]common.Hash, 0)
	for _, log := range logs {
		if log.Removed || f.isDuplicate(log.TxHash) {
			continue
		}
		hashes = append(hashes, log.TxHash)
	}
	return hashes, nil
}

func (f *Fetcher) fetchTransaction(ctx context.Context, chainID uint64, hash common.Hash) (model.Transaction, error) {
	type fetched struct {
		tx   *types.Transaction
		from common.Address
	}
	got, err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) (fetched, error) {
		tx, from, err := f.chain.TransactionByHash(ctx, hash)
		if err != nil {
			f.logger.Warn("transaction fetch failed", zap.Error(err), zap.String("tx_hash", hash.Hex()))
		}
		return fetched{tx: tx, from: from}, err
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", hash.Hex(), err)
	}

	receipt, err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) (*types.Receipt, error) {
		receipt, err := f.chain.TransactionReceipt(ctx, hash)
		if err != nil {
			f.logger.Warn("receipt fetch failed", zap.Error(err), zap.String("tx_hash", hash.Hex()))
		}
		return receipt, err
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}
	if receipt.BlockNumber == nil {
		return model.Transaction{}, fmt.Errorf("receipt %s has no block number", hash.Hex())
	}

	blockNumber := receipt.BlockNumber.Uint64()
	ts, err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) (uint64, error) {
		ts, err := f.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			f.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return ts, err
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("block timestamp %d: %w", blockNumber, err)
	}

	return BuildTransaction(chainID, got.tx, got.from, receipt, ts), nil
}

func (f *Fetcher) isDuplicate(hash common.Hash) bool {
	if _, ok := f.seen[hash]; ok {
		return true
	}
	f.seen[hash] = struct{}{}
	return false
}

func sortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		if logs[i].TxIndex != logs[j].TxIndex {
			return logs[i].TxIndex < logs[j].TxIndex
		}
		return logs[i].Index < logs[j].Index
	})
}
