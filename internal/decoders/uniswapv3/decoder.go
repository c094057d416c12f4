// Package uniswapv3 reclassifies token movements settled directly against a
// Uniswap V3 (or compatible) pool. Both legs of a swap are plain transfers
// decoded before the pool's Swap log; fee collection transfers precede the
// Collect log the same way.
package uniswapv3

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"txDecoder/internal/decoding"
	"txDecoder/internal/model"
)

const (
	Name         = "uniswap-v3"
	Counterparty = "uniswap-v3"
)

// Decoder decodes Uniswap V3 pool logs.
type Decoder struct {
	decoding.BaseDecoder
	pool         abi.ABI
	swapTopic    common.Hash
	collectTopic common.Hash
}

// NewDecoder builds the Uniswap V3 decoder.
func NewDecoder() (*Decoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse uniswap v3 abi: %w", err)
	}
	return &Decoder{
		pool:         parsed,
		swapTopic:    parsed.Events["Swap"].ID,
		collectTopic: parsed.Events["Collect"].ID,
	}, nil
}

func (d *Decoder) Name() string { return Name }

func (d *Decoder) DecodingRules() []decoding.DecodeFunc {
	return []decoding.DecodeFunc{d.maybeDecodeSwap, d.maybeDecodeCollect}
}

// Swap is a decoded pool Swap log. Amounts are signed from the pool's side:
// positive was paid in, negative was paid out.
type Swap struct {
	Sender       common.Address
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

func (d *Decoder) maybeDecodeSwap(dc *decoding.DecodeContext, log model.LogRecord) (decoding.Outcome, error) {
	if topic0, ok := log.Topic0(); !ok || topic0 != d.swapTopic {
		return decoding.Skip(), nil
	}
	swap, err := d.parseSwap(log)
	if err != nil {
		return decoding.Skip(), err
	}
	pool := log.Address

	dc.Logger.Debug("uniswap v3 swap",
		zap.String("pool", pool.Hex()),
		zap.String("amount0", swap.Amount0.String()),
		zap.String("amount1", swap.Amount1.String()),
		zap.Int32("tick", swap.Tick),
	)

	spend := dc.FirstEvent(func(ev *model.DecodedEvent) bool {
		return ev.Kind == model.KindSpend && decoding.SameAddress(ev.Counterparty, pool)
	})
	if spend != nil {
		spend.Kind = model.KindTrade
		spend.Subkind = model.SubkindSpend
		spend.Counterparty = Counterparty
		spend.Note = fmt.Sprintf("Swap %s %s in uniswap-v3 from %s", spend.Quantity, spend.AssetLabel(), spend.Actor)
	}

	receive := dc.FirstEvent(func(ev *model.DecodedEvent) bool {
		return ev.Kind == model.KindReceive &&
			decoding.SameAddress(ev.Counterparty, pool) &&
			decoding.SameAddress(ev.Actor, swap.Recipient)
	})
	if receive != nil {
		receive.Kind = model.KindTrade
		receive.Subkind = model.SubkindReceive
		receive.Counterparty = Counterparty
		receive.Note = fmt.Sprintf("Receive %s %s from uniswap-v3 swap in %s", receive.Quantity, receive.AssetLabel(), receive.Actor)
	}

	return decoding.Consumed(), nil
}

func (d *Decoder) maybeDecodeCollect(dc *decoding.DecodeContext, log model.LogRecord) (decoding.Outcome, error) {
	if topic0, ok := log.Topic0(); !ok || topic0 != d.collectTopic {
		return decoding.Skip(), nil
	}
	event := d.pool.Events["Collect"]
	if len(log.Topics) != 4 {
		return decoding.Skip(), fmt.Errorf("collect: expected 4 topics, got %d", len(log.Topics))
	}
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return decoding.Skip(), fmt.Errorf("unpack Collect: %w", err)
	}
	if len(values) != 3 {
		return decoding.Skip(), fmt.Errorf("unexpected collect values: %d", len(values))
	}
	recipient, ok := values[0].(common.Address)
	if !ok {
		return decoding.Skip(), fmt.Errorf("unsupported collect recipient type %T", values[0])
	}
	pool := log.Address

	collected := dc.MatchingEvents(func(ev *model.DecodedEvent) bool {
		return ev.Kind == model.KindReceive &&
			decoding.SameAddress(ev.Counterparty, pool) &&
			decoding.SameAddress(ev.Actor, recipient)
	})
	for _, ev := range collected {
		ev.Kind = model.KindWithdrawal
		ev.Subkind = model.SubkindRemoveAsset
		ev.Counterparty = Counterparty
		ev.Note = fmt.Sprintf("Collect %s %s from uniswap-v3 pool %s", ev.Quantity, ev.AssetLabel(), pool.Hex())
	}
	return decoding.Consumed(), nil
}

func (d *Decoder) parseSwap(log model.LogRecord) (Swap, error) {
	event := d.pool.Events["Swap"]
	if len(log.Topics) != 3 {
		return Swap{}, fmt.Errorf("swap: expected 3 topics, got %d", len(log.Topics))
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), log.Topics[1:]); err != nil {
		return Swap{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return Swap{}, fmt.Errorf("unpack Swap: %w", err)
	}
	if len(values) != 5 {
		return Swap{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints := make([]*big.Int, len(values))
	for i, value := range values {
		if ints[i], err = asBigInt(value); err != nil {
			return Swap{}, err
		}
	}
	tick, err := int24FromBig(ints[4])
	if err != nil {
		return Swap{}, err
	}

	return Swap{
		Sender:       indexed.Sender,
		Recipient:    indexed.Recipient,
		Amount0:      ints[0],
		Amount1:      ints[1],
		SqrtPriceX96: ints[2],
		Liquidity:    ints[3],
		Tick:         tick,
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case int64:
		return big.NewInt(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
