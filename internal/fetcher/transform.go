package fetcher

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"txDecoder/internal/model"
)

// BuildTransaction assembles the decoder input from a transaction, its
// recovered sender and its receipt. Removed logs are dropped.
func BuildTransaction(chainID uint64, tx *types.Transaction, from common.Address, receipt *types.Receipt, timestamp uint64) model.Transaction {
	out := model.Transaction{
		ChainID:   chainID,
		Hash:      tx.Hash(),
		Timestamp: timestamp,
		From:      from,
		To:        tx.To(),
		Value:     (*hexutil.Big)(tx.Value()),
	}
	if receipt == nil {
		return out
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}

	out.Logs = make([]model.LogRecord, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		if log == nil || log.Removed {
			continue
		}
		out.Logs = append(out.Logs, buildLogRecord(log))
	}
	return out
}

func buildLogRecord(log *types.Log) model.LogRecord {
	topics := make([]common.Hash, len(log.Topics))
	copy(topics, log.Topics)
	return model.LogRecord{
		Address:  log.Address,
		Topics:   topics,
		Data:     common.CopyBytes(log.Data),
		LogIndex: uint64(log.Index),
	}
}
