package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Transaction is a mined transaction together with its receipt logs.
type Transaction struct {
	ChainID     uint64          `json:"chain_id"`
	Hash        common.Hash     `json:"hash"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   uint64          `json:"timestamp"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to,omitempty"`
	Value       *hexutil.Big    `json:"value,omitempty"`
	Logs        []LogRecord     `json:"logs"`
}

// ValueWei returns the native value sent with the transaction.
func (tx Transaction) ValueWei() *big.Int {
	if tx.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(tx.Value.ToInt())
}
