package decoding

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"txDecoder/internal/model"
)

func newTestEngine(t *testing.T, opts []Option, decoders ...Decoder) *Engine {
	t.Helper()
	registry, err := NewRegistry(decoders...)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewEngine(registry, nil, opts...)
}

func TestDecodeTransactionReconcilesInLogOrder(t *testing.T) {
	dex := &fakeDecoder{name: "dex", rules: []DecodeFunc{spendRule, confirmRule}}
	engine := newTestEngine(t, nil, dex)
	emitter := common.HexToAddress("0x1000000000000000000000000000000000000001")

	tx := newTx(
		newLog(2, emitter, topicConfirm, wordFromAddress(actorB)),
		newLog(1, emitter, topicSpend, wordFromAddress(actorB)),
	)
	res := engine.DecodeTransaction(context.Background(), tx)
	require.Len(t, res.Events, 1)
	assert.Equal(t, model.KindTrade, res.Events[0].Kind)
	assert.Equal(t, model.SubkindSpend, res.Events[0].Subkind)
	assert.Equal(t, "test-dex", res.Events[0].Counterparty)
	assert.Equal(t, tx.Hash.Hex(), res.Events[0].TxHash)
	assert.Equal(t, tx.Timestamp, res.Events[0].Timestamp)
	assert.Empty(t, res.Diagnostics)

	// The confirming log comes first: nothing to reconcile yet.
	reversed := newTx(
		newLog(1, emitter, topicConfirm, wordFromAddress(actorB)),
		newLog(2, emitter, topicSpend, wordFromAddress(actorB)),
	)
	res = engine.DecodeTransaction(context.Background(), reversed)
	require.Len(t, res.Events, 1)
	assert.Equal(t, model.KindSpend, res.Events[0].Kind)
	assert.Equal(t, model.SubkindNone, res.Events[0].Subkind)
	assert.Equal(t, actorB.Hex(), res.Events[0].Counterparty)
}

func TestDecodeTransactionReclassifiesFirstMatchOnly(t *testing.T) {
	dex := &fakeDecoder{name: "dex", rules: []DecodeFunc{spendRule, confirmRule}}
	engine := newTestEngine(t, nil, dex)
	emitter := common.HexToAddress("0x1000000000000000000000000000000000000001")

	res := engine.DecodeTransaction(context.Background(), newTx(
		newLog(0, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(1, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(2, emitter, topicConfirm, wordFromAddress(actorB)),
	))
	require.Len(t, res.Events, 2)
	assert.Equal(t, model.KindTrade, res.Events[0].Kind)
	assert.Equal(t, model.KindSpend, res.Events[1].Kind)
}

func TestDecodeTransactionNoMatchIsIdempotent(t *testing.T) {
	dex := &fakeDecoder{name: "dex", rules: []DecodeFunc{spendRule, confirmRule}}
	engine := newTestEngine(t, nil, dex)
	emitter := common.HexToAddress("0x1000000000000000000000000000000000000001")
	stranger := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	tx := newTx(
		newLog(0, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(1, emitter, topicConfirm, wordFromAddress(stranger)),
	)
	first := engine.DecodeTransaction(context.Background(), tx)
	second := engine.DecodeTransaction(context.Background(), tx)
	require.Len(t, first.Events, 1)
	assert.Equal(t, model.KindSpend, first.Events[0].Kind)
	assert.Equal(t, first, second)
}

func TestDecodeTransactionRuleShortCircuit(t *testing.T) {
	calls := make([]int, 3)
	counting := func(i int, match bool) DecodeFunc {
		return func(*DecodeContext, model.LogRecord) (Outcome, error) {
			calls[i]++
			if match {
				return Consumed(), nil
			}
			return Skip(), nil
		}
	}
	dec := &fakeDecoder{name: "counting", rules: []DecodeFunc{
		counting(0, false),
		counting(1, true),
		counting(2, true),
	}}
	engine := newTestEngine(t, []Option{WithUndecodedDiagnostics(true)}, dec)

	res := engine.DecodeTransaction(context.Background(), newTx(newLog(0, actorB, topicOther)))
	assert.Equal(t, []int{1, 1, 0}, calls)
	assert.Empty(t, res.Events)
	assert.Empty(t, res.Diagnostics)
}

func TestDecodeTransactionOwnerBypassesRules(t *testing.T) {
	owned := common.HexToAddress("0x2000000000000000000000000000000000000002")
	var ruleCalls, ownerCalls int
	dec := &fakeDecoder{
		name: "owner",
		owned: map[common.Address]DecodeFunc{owned: func(*DecodeContext, model.LogRecord) (Outcome, error) {
			ownerCalls++
			return Skip(), nil
		}},
		rules: []DecodeFunc{func(*DecodeContext, model.LogRecord) (Outcome, error) {
			ruleCalls++
			return Skip(), nil
		}},
	}
	engine := newTestEngine(t, []Option{WithUndecodedDiagnostics(true)}, dec)

	res := engine.DecodeTransaction(context.Background(), newTx(
		newLog(0, owned, topicOther),
		newLog(1, actorB, topicOther),
	))
	assert.Equal(t, 1, ownerCalls)
	assert.Equal(t, 1, ruleCalls)
	require.Len(t, res.Diagnostics, 2)
	// the owner skipped its log: reported under its name, rules never consulted
	assert.Equal(t, model.DiagnosticUndecodedLog, res.Diagnostics[0].Kind)
	assert.Equal(t, uint64(0), res.Diagnostics[0].LogIndex)
	assert.Equal(t, "owner", res.Diagnostics[0].Decoder)
	assert.Equal(t, model.DiagnosticUndecodedLog, res.Diagnostics[1].Kind)
	assert.Equal(t, uint64(1), res.Diagnostics[1].LogIndex)
	assert.Empty(t, res.Diagnostics[1].Decoder)
}

func TestDecodeTransactionOwnerConsumedIsDecoded(t *testing.T) {
	owned := common.HexToAddress("0x2000000000000000000000000000000000000002")
	dec := &fakeDecoder{
		name: "owner",
		owned: map[common.Address]DecodeFunc{owned: func(*DecodeContext, model.LogRecord) (Outcome, error) {
			return Consumed(), nil
		}},
	}
	engine := newTestEngine(t, []Option{WithUndecodedDiagnostics(true)}, dec)

	res := engine.DecodeTransaction(context.Background(), newTx(newLog(0, owned, topicOther)))
	assert.Empty(t, res.Events)
	assert.Empty(t, res.Diagnostics)

	quiet := newTestEngine(t, nil, &fakeDecoder{
		name: "owner",
		owned: map[common.Address]DecodeFunc{owned: noop},
	})
	res = quiet.DecodeTransaction(context.Background(), newTx(newLog(0, owned, topicOther)))
	assert.Empty(t, res.Diagnostics)
}

func TestDecodeTransactionRecoversFailures(t *testing.T) {
	broken := &fakeDecoder{name: "broken", rules: []DecodeFunc{
		func(_ *DecodeContext, log model.LogRecord) (Outcome, error) {
			switch log.LogIndex {
			case 0:
				return Skip(), errors.New("bad data")
			case 1:
				panic("index out of range")
			}
			return Skip(), nil
		},
	}}
	healthy := &fakeDecoder{name: "healthy", rules: []DecodeFunc{spendRule}}
	engine := newTestEngine(t, nil, broken, healthy)
	emitter := common.HexToAddress("0x1000000000000000000000000000000000000001")

	res := engine.DecodeTransaction(context.Background(), newTx(
		newLog(0, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(1, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(2, emitter, topicSpend, wordFromAddress(actorB)),
	))
	require.Len(t, res.Diagnostics, 2)
	for i, diag := range res.Diagnostics {
		assert.Equal(t, model.DiagnosticDecodeFailure, diag.Kind)
		assert.Equal(t, "broken", diag.Decoder)
		assert.Equal(t, uint64(i), diag.LogIndex)
		assert.Equal(t, topicSpend.Hex(), diag.Topic0)
	}
	assert.Contains(t, res.Diagnostics[0].Message, "bad data")
	assert.Contains(t, res.Diagnostics[1].Message, "panic")

	require.Len(t, res.Events, 1)
	assert.Equal(t, uint64(3), res.Events[0].SequenceIndex)
}

func TestDecodeTransactionActionItems(t *testing.T) {
	emitter := common.HexToAddress("0x1000000000000000000000000000000000000001")
	pusher := &fakeDecoder{name: "pusher", rules: []DecodeFunc{
		func(dc *DecodeContext, log model.LogRecord) (Outcome, error) {
			if topic, _ := log.Topic0(); topic != topicOther {
				return Skip(), nil
			}
			err := dc.PushActionItem(ActionItem{
				Description: "tag next spend",
				MatchEvent: func(ev *model.DecodedEvent) bool {
					return ev.Kind == model.KindSpend
				},
				ApplyEvent: func(ev *model.DecodedEvent) {
					ev.Kind = model.KindDeposit
					ev.Subkind = model.SubkindDepositAsset
				},
			})
			if err != nil {
				return Skip(), err
			}
			err = dc.PushActionItem(ActionItem{
				Description: "never matches",
				MatchEvent:  func(*model.DecodedEvent) bool { return false },
			})
			return Consumed(), err
		},
		spendRule,
	}}
	engine := newTestEngine(t, nil, pusher)

	res := engine.DecodeTransaction(context.Background(), newTx(
		newLog(0, emitter, topicOther),
		newLog(1, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(2, emitter, topicSpend, wordFromAddress(actorB)),
	))
	require.Len(t, res.Events, 2)
	assert.Equal(t, model.KindDeposit, res.Events[0].Kind)
	assert.Equal(t, model.SubkindDepositAsset, res.Events[0].Subkind)
	assert.Equal(t, model.KindSpend, res.Events[1].Kind)

	require.Len(t, res.Diagnostics, 1)
	diag := res.Diagnostics[0]
	assert.Equal(t, model.DiagnosticUnresolvedActionItem, diag.Kind)
	assert.Equal(t, "pusher", diag.Decoder)
	assert.Equal(t, "never matches", diag.Message)
	assert.Equal(t, uint64(0), diag.LogIndex)
}

func TestDecodeTransactionLogActionItems(t *testing.T) {
	emitter := common.HexToAddress("0x1000000000000000000000000000000000000001")
	var seen []uint64
	dec := &fakeDecoder{name: "watcher", rules: []DecodeFunc{
		func(dc *DecodeContext, log model.LogRecord) (Outcome, error) {
			if topic, _ := log.Topic0(); topic != topicOther {
				return Skip(), nil
			}
			return Consumed(), dc.PushActionItem(ActionItem{
				Description: "annotate spend log",
				MatchLog: func(l model.LogRecord) bool {
					topic, _ := l.Topic0()
					return topic == topicSpend
				},
				ApplyLog: func(dc *DecodeContext, l model.LogRecord) {
					seen = append(seen, l.LogIndex)
					if ev := dc.FirstEvent(func(*model.DecodedEvent) bool { return true }); ev != nil {
						ev.Note = "annotated"
					}
				},
			})
		},
		spendRule,
	}}
	engine := newTestEngine(t, nil, dec)

	res := engine.DecodeTransaction(context.Background(), newTx(
		newLog(0, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(1, emitter, topicOther),
		newLog(2, emitter, topicSpend, wordFromAddress(actorB)),
		newLog(3, emitter, topicSpend, wordFromAddress(actorB)),
	))
	assert.Equal(t, []uint64{2}, seen)
	require.Len(t, res.Events, 3)
	assert.Equal(t, "annotated", res.Events[0].Note)
	assert.Empty(t, res.Diagnostics)
}

func TestPushActionItemRequiresPredicate(t *testing.T) {
	dc := newDecodeContext(context.Background(), &model.Transaction{}, nil, zaptest.NewLogger(t))
	assert.ErrorIs(t, dc.PushActionItem(ActionItem{Description: "empty"}), ErrEmptyActionItem)
	assert.Zero(t, dc.PendingActionItems())
}

func TestDecodeTransactionSeedsNativeTransfer(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	tools := &Tools{Tracked: NewAccountSet(actorA)}
	engine := NewEngine(registry, tools, WithLogger(zaptest.NewLogger(t)))

	tx := newTx()
	tx.To = &actorB
	tx.Value = (*hexutil.Big)(new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)))

	res := engine.DecodeTransaction(context.Background(), tx)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.KindSpend, ev.Kind)
	assert.Equal(t, uint64(0), ev.SequenceIndex)
	assert.Equal(t, model.NativeAsset, ev.Asset)
	assert.Equal(t, "1.5", ev.Quantity)
	assert.Equal(t, actorA.Hex(), ev.Actor)
	assert.Equal(t, actorB.Hex(), ev.Counterparty)

	engine = NewEngine(registry, tools, WithNativeTransfers(false))
	assert.Empty(t, engine.DecodeTransaction(context.Background(), tx).Events)
}

func TestEventsViewCannotAppend(t *testing.T) {
	dc := newDecodeContext(context.Background(), &model.Transaction{}, nil, zaptest.NewLogger(t))
	dc.emit(&model.DecodedEvent{Kind: model.KindSpend})

	view := dc.Events()
	_ = append(view, &model.DecodedEvent{Kind: model.KindReceive})
	view[0].Note = "mutated"

	require.Len(t, dc.Events(), 1)
	assert.Equal(t, "mutated", dc.Events()[0].Note)
}
