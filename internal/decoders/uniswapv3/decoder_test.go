package uniswapv3

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"txDecoder/internal/decoders/erc20"
	"txDecoder/internal/decoding"
	"txDecoder/internal/model"
)

var (
	user   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	router = common.HexToAddress("0x3333333333333333333333333333333333333333")
	pool   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func transferLog(index uint64, tok, from, to common.Address, amount int64) model.LogRecord {
	return model.LogRecord{
		Address:  tok,
		Topics:   []common.Hash{erc20.TransferTopic, topicFromAddress(from), topicFromAddress(to)},
		Data:     common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		LogIndex: index,
	}
}

func swapLog(t *testing.T, index uint64, sender, recipient common.Address) model.LogRecord {
	t.Helper()
	poolABI, err := PoolABI()
	require.NoError(t, err)
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	require.NoError(t, err)
	return model.LogRecord{
		Address:  pool,
		Topics:   []common.Hash{poolABI.Events["Swap"].ID, topicFromAddress(sender), topicFromAddress(recipient)},
		Data:     data,
		LogIndex: index,
	}
}

func newEngine(t *testing.T) *decoding.Engine {
	t.Helper()
	v3, err := NewDecoder()
	require.NoError(t, err)
	tokens, err := erc20.NewDecoder()
	require.NoError(t, err)
	registry, err := decoding.NewRegistry(v3, tokens)
	require.NoError(t, err)
	tools := &decoding.Tools{Tracked: decoding.NewAccountSet(user)}
	return decoding.NewEngine(registry, tools, decoding.WithLogger(zaptest.NewLogger(t)))
}

func TestParseSwap(t *testing.T) {
	decoder, err := NewDecoder()
	require.NoError(t, err)

	swap, err := decoder.parseSwap(swapLog(t, 0, router, user))
	require.NoError(t, err)
	assert.Equal(t, int64(-1000), swap.Amount0.Int64())
	assert.Equal(t, int64(2000), swap.Amount1.Int64())
	assert.Equal(t, int32(-15), swap.Tick)
	assert.Equal(t, router, swap.Sender)
	assert.Equal(t, user, swap.Recipient)
}

func TestSwapReclassifiesBothLegs(t *testing.T) {
	engine := newEngine(t)

	res := engine.DecodeTransaction(context.Background(), model.Transaction{
		Hash: common.HexToHash("0x01"),
		Logs: []model.LogRecord{
			transferLog(0, tokenB, pool, user, 2000),
			transferLog(1, tokenA, user, pool, 1000),
			swapLog(t, 2, router, user),
		},
	})
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Events, 2)

	received, spent := res.Events[0], res.Events[1]
	assert.Equal(t, model.KindTrade, received.Kind)
	assert.Equal(t, model.SubkindReceive, received.Subkind)
	assert.Equal(t, Counterparty, received.Counterparty)
	assert.Equal(t, model.KindTrade, spent.Kind)
	assert.Equal(t, model.SubkindSpend, spent.Subkind)
	assert.Equal(t, Counterparty, spent.Counterparty)
}

func TestSwapForOtherRecipientKeepsReceive(t *testing.T) {
	engine := newEngine(t)

	res := engine.DecodeTransaction(context.Background(), model.Transaction{
		Logs: []model.LogRecord{
			transferLog(0, tokenB, pool, user, 2000),
			swapLog(t, 1, router, router),
		},
	})
	require.Len(t, res.Events, 1)
	assert.Equal(t, model.KindReceive, res.Events[0].Kind, "receive should be untouched")
}

func TestSwapMalformed(t *testing.T) {
	engine := newEngine(t)
	log := swapLog(t, 0, router, user)
	log.Data = log.Data[:64]

	res := engine.DecodeTransaction(context.Background(), model.Transaction{Logs: []model.LogRecord{log}})
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, Name, res.Diagnostics[0].Decoder)
}

func TestCollectBecomesWithdrawal(t *testing.T) {
	poolABI, err := PoolABI()
	require.NoError(t, err)
	data, err := poolABI.Events["Collect"].Inputs.NonIndexed().Pack(user, big.NewInt(10), big.NewInt(20))
	require.NoError(t, err)
	collect := model.LogRecord{
		Address:  pool,
		Topics:   []common.Hash{poolABI.Events["Collect"].ID, topicFromAddress(router), common.BigToHash(big.NewInt(60)), common.BigToHash(big.NewInt(120))},
		Data:     data,
		LogIndex: 2,
	}

	engine := newEngine(t)
	res := engine.DecodeTransaction(context.Background(), model.Transaction{
		Logs: []model.LogRecord{
			transferLog(0, tokenA, pool, user, 10),
			transferLog(1, tokenB, pool, user, 20),
			collect,
		},
	})
	require.Len(t, res.Events, 2)
	for _, ev := range res.Events {
		assert.Equal(t, model.KindWithdrawal, ev.Kind)
		assert.Equal(t, model.SubkindRemoveAsset, ev.Subkind)
	}
}
