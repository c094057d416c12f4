package model

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		Address:  common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics:   []common.Hash{common.HexToHash("0xaaa"), common.HexToHash("0xbbb")},
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
		LogIndex: 12,
	}

	b, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded LogRecord
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, original, decoded)
}

func TestLogRecordTopicAddress(t *testing.T) {
	addr := common.HexToAddress("0xBBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	record := LogRecord{
		Topics: []common.Hash{common.HexToHash("0x01"), common.BytesToHash(addr.Bytes())},
	}

	got, err := record.TopicAddress(1)
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	_, err = record.TopicAddress(2)
	assert.ErrorIs(t, err, ErrMissingTopic)

	_, ok := (LogRecord{}).Topic0()
	assert.False(t, ok, "empty log has no topic0")
}
