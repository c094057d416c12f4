package erc20

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"txDecoder/internal/decoding"
	"txDecoder/internal/model"
	"txDecoder/internal/token"
)

var (
	tracked  = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	stranger = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	usdc     = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func transferLog(index uint64, from, to common.Address, amount *big.Int) model.LogRecord {
	return model.LogRecord{
		Address:  usdc,
		Topics:   []common.Hash{TransferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:     common.LeftPadBytes(amount.Bytes(), 32),
		LogIndex: index,
	}
}

func newEngine(t *testing.T) *decoding.Engine {
	t.Helper()
	dec, err := NewDecoder()
	require.NoError(t, err)
	registry, err := decoding.NewRegistry(dec)
	require.NoError(t, err)
	resolver := token.NewResolver(nil, nil, nil)
	resolver.Seed(model.TokenMeta{Address: usdc.Hex(), Decimals: 6, Symbol: "USDC"})
	tools := &decoding.Tools{Tracked: decoding.NewAccountSet(tracked), Tokens: resolver}
	return decoding.NewEngine(registry, tools,
		decoding.WithLogger(zaptest.NewLogger(t)),
		decoding.WithUndecodedDiagnostics(true),
	)
}

func TestTopicsMatchABI(t *testing.T) {
	events, err := EventsABI()
	require.NoError(t, err)
	assert.Equal(t, TransferTopic, events.Events["Transfer"].ID)
	assert.Equal(t, ApprovalTopic, events.Events["Approval"].ID)
}

func TestDecodeTransferDirections(t *testing.T) {
	engine := newEngine(t)
	tx := model.Transaction{
		Hash: common.HexToHash("0x01"),
		Logs: []model.LogRecord{
			transferLog(0, tracked, stranger, big.NewInt(1_500_000)),
			transferLog(1, stranger, tracked, big.NewInt(2_000_000)),
			transferLog(2, tracked, tracked, big.NewInt(10)),
			transferLog(3, stranger, stranger, big.NewInt(10)),
		},
	}

	res := engine.DecodeTransaction(context.Background(), tx)
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Events, 3)

	spend := res.Events[0]
	assert.Equal(t, model.KindSpend, spend.Kind)
	assert.Equal(t, "1.5", spend.Quantity)
	assert.Equal(t, "USDC", spend.AssetSymbol)
	assert.Equal(t, usdc.Hex(), spend.Asset)
	assert.Equal(t, tracked.Hex(), spend.Actor)
	assert.Equal(t, stranger.Hex(), spend.Counterparty)
	assert.Equal(t, uint64(1), spend.SequenceIndex)

	receive := res.Events[1]
	assert.Equal(t, model.KindReceive, receive.Kind)
	assert.Equal(t, "2", receive.Quantity)
	assert.Equal(t, tracked.Hex(), receive.Actor)

	assert.Equal(t, model.KindTransfer, res.Events[2].Kind)
	assert.Equal(t, "0.00001", res.Events[2].Quantity)
}

func TestDecodeTransferSkipsERC721(t *testing.T) {
	engine := newEngine(t)
	log := transferLog(0, tracked, stranger, big.NewInt(1))
	log.Topics = append(log.Topics, common.BigToHash(big.NewInt(42)))
	log.Data = nil

	res := engine.DecodeTransaction(context.Background(), model.Transaction{Logs: []model.LogRecord{log}})
	assert.Empty(t, res.Events)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, model.DiagnosticUndecodedLog, res.Diagnostics[0].Kind)
}

func TestDecodeTransferMalformedData(t *testing.T) {
	engine := newEngine(t)
	log := transferLog(0, tracked, stranger, big.NewInt(1))
	log.Data = log.Data[:10]

	res := engine.DecodeTransaction(context.Background(), model.Transaction{Logs: []model.LogRecord{log}})
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, model.DiagnosticDecodeFailure, res.Diagnostics[0].Kind)
	assert.Equal(t, Name, res.Diagnostics[0].Decoder)
}

func TestDecodeApproval(t *testing.T) {
	engine := newEngine(t)
	approval := transferLog(4, tracked, stranger, big.NewInt(5_000_000))
	approval.Topics[0] = ApprovalTopic
	foreign := transferLog(5, stranger, tracked, big.NewInt(5_000_000))
	foreign.Topics[0] = ApprovalTopic

	res := engine.DecodeTransaction(context.Background(), model.Transaction{Logs: []model.LogRecord{approval, foreign}})
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.KindInformational, ev.Kind)
	assert.Equal(t, model.SubkindApprove, ev.Subkind)
	assert.Equal(t, "5", ev.Quantity)
	assert.Equal(t, stranger.Hex(), ev.Counterparty)
	assert.Equal(t, uint64(5), ev.SequenceIndex)
}
