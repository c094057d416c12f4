package decoding

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"txDecoder/internal/model"
)

var (
	topicSpend   = common.HexToHash("0x01")
	topicConfirm = common.HexToHash("0x02")
	topicOther   = common.HexToHash("0x03")

	actorA = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	actorB = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
)

type fakeDecoder struct {
	BaseDecoder
	name  string
	owned map[common.Address]DecodeFunc
	rules []DecodeFunc
}

func (f *fakeDecoder) Name() string { return f.name }

func (f *fakeDecoder) AddressesToDecoders() map[common.Address]DecodeFunc { return f.owned }

func (f *fakeDecoder) DecodingRules() []DecodeFunc { return f.rules }

func wordFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func newLog(index uint64, emitter common.Address, topics ...common.Hash) model.LogRecord {
	return model.LogRecord{Address: emitter, Topics: topics, LogIndex: index}
}

func newTx(logs ...model.LogRecord) model.Transaction {
	return model.Transaction{
		ChainID:   1,
		Hash:      common.HexToHash("0xfeed"),
		Timestamp: 1600000000,
		From:      actorA,
		Value:     (*hexutil.Big)(big.NewInt(0)),
		Logs:      logs,
	}
}

// spendRule emits a SPEND by actorA to the address in topic 1 for topicSpend logs.
func spendRule(dc *DecodeContext, log model.LogRecord) (Outcome, error) {
	if t, ok := log.Topic0(); !ok || t != topicSpend {
		return Skip(), nil
	}
	to, err := log.TopicAddress(1)
	if err != nil {
		return Skip(), err
	}
	return Emit(&model.DecodedEvent{
		SequenceIndex: log.LogIndex + 1,
		Kind:          model.KindSpend,
		Asset:         model.NativeAsset,
		Quantity:      "1",
		Actor:         actorA.Hex(),
		Counterparty:  to.Hex(),
	}), nil
}

// confirmRule turns the first SPEND to the address in topic 1 into a trade.
func confirmRule(dc *DecodeContext, log model.LogRecord) (Outcome, error) {
	if t, ok := log.Topic0(); !ok || t != topicConfirm {
		return Skip(), nil
	}
	buyer, err := log.TopicAddress(1)
	if err != nil {
		return Skip(), err
	}
	ev := dc.FirstEvent(func(ev *model.DecodedEvent) bool {
		return ev.Kind == model.KindSpend && ev.Counterparty == buyer.Hex()
	})
	if ev != nil {
		ev.Kind = model.KindTrade
		ev.Subkind = model.SubkindSpend
		ev.Counterparty = "test-dex"
	}
	return Consumed(), nil
}
