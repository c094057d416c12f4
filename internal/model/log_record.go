package model

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrMissingTopic is returned when a log does not carry the requested topic word.
var ErrMissingTopic = errors.New("missing topic")

// LogRecord is one event emitted during a transaction's execution.
type LogRecord struct {
	Address  common.Address `json:"address"`
	Topics   []common.Hash  `json:"topics"`
	Data     hexutil.Bytes  `json:"data"`
	LogIndex uint64         `json:"log_index"`
}

// Topic0 returns the event signature hash.
func (lr LogRecord) Topic0() (common.Hash, bool) {
	if len(lr.Topics) == 0 {
		return common.Hash{}, false
	}
	return lr.Topics[0], true
}

// TopicAddress reads the address stored in the low 20 bytes of topic i.
func (lr LogRecord) TopicAddress(i int) (common.Address, error) {
	if i < 0 || i >= len(lr.Topics) {
		return common.Address{}, fmt.Errorf("topic %d: %w", i, ErrMissingTopic)
	}
	return common.BytesToAddress(lr.Topics[i].Bytes()), nil
}
