// Package uniswapv1 reclassifies the fund movements of Uniswap v1 swaps and
// liquidity changes.
//
// A swap is visible as a plain spend or receive decoded from an earlier log
// (or from the transaction value) followed by the exchange's TokenPurchase or
// EthPurchase log. The purchase log rewrites the earlier event in place.
package uniswapv1

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"txDecoder/internal/decoders/erc20"
	"txDecoder/internal/decoding"
	"txDecoder/internal/model"
	"txDecoder/internal/token"
)

const (
	// Name is the registry name of the decoder.
	Name = "uniswap-v1"
	// Counterparty tags every event attributed to Uniswap v1. Downstream
	// accounting matches on it, so it must not change.
	Counterparty = "uniswap-v1"
)

var (
	// TokenPurchaseTopic is keccak256("TokenPurchase(address,uint256,uint256)").
	TokenPurchaseTopic = common.HexToHash("0xcd60aa75dea3072fbc07ae6d7d856b5dc5f4eee88854f5b4abf7b680ef8bc50f")
	// EthPurchaseTopic is keccak256("EthPurchase(address,uint256,uint256)").
	EthPurchaseTopic = common.HexToHash("0x7f4091b46c33e918a0f3aa42307641d17bb67029427a5369e54b353984238705")
)

// Config lists the exchanges the decoder owns, keyed by exchange address with
// the exchange's token as value.
type Config struct {
	Exchanges map[common.Address]common.Address
}

// Decoder decodes Uniswap v1 exchange logs.
type Decoder struct {
	exchanges            map[common.Address]common.Address
	addLiquidityTopic    common.Hash
	removeLiquidityTopic common.Hash
}

// NewDecoder builds the Uniswap v1 decoder.
func NewDecoder(cfg Config) (*Decoder, error) {
	parsed, err := ExchangeABI()
	if err != nil {
		return nil, fmt.Errorf("parse uniswap v1 abi: %w", err)
	}
	if err := checkTopics(parsed); err != nil {
		return nil, err
	}

	exchanges := make(map[common.Address]common.Address, len(cfg.Exchanges))
	for exchange, tok := range cfg.Exchanges {
		exchanges[exchange] = tok
	}

	return &Decoder{
		exchanges:            exchanges,
		addLiquidityTopic:    parsed.Events["AddLiquidity"].ID,
		removeLiquidityTopic: parsed.Events["RemoveLiquidity"].ID,
	}, nil
}

func checkTopics(parsed abi.ABI) error {
	if id := parsed.Events["TokenPurchase"].ID; id != TokenPurchaseTopic {
		return fmt.Errorf("TokenPurchase topic mismatch: %s", id.Hex())
	}
	if id := parsed.Events["EthPurchase"].ID; id != EthPurchaseTopic {
		return fmt.Errorf("EthPurchase topic mismatch: %s", id.Hex())
	}
	return nil
}

func (d *Decoder) Name() string { return Name }

// AddressesToDecoders binds every configured exchange to a decode function
// that carries the exchange's token.
func (d *Decoder) AddressesToDecoders() map[common.Address]decoding.DecodeFunc {
	out := make(map[common.Address]decoding.DecodeFunc, len(d.exchanges))
	for exchange, tok := range d.exchanges {
		out[exchange] = d.exchangeDecoder(tok)
	}
	return out
}

// DecodingRules catches swaps on exchanges that were not configured.
func (d *Decoder) DecodingRules() []decoding.DecodeFunc {
	return []decoding.DecodeFunc{d.MaybeDecodeSwap}
}

// MaybeDecodeSwap reclassifies the earlier leg of a swap when log is a
// TokenPurchase or EthPurchase. Only the first matching event is rewritten.
// It never produces a new event.
func (d *Decoder) MaybeDecodeSwap(dc *decoding.DecodeContext, log model.LogRecord) (decoding.Outcome, error) {
	topic0, ok := log.Topic0()
	if !ok {
		return decoding.Skip(), nil
	}

	switch topic0 {
	case TokenPurchaseTopic:
		buyer, err := log.TopicAddress(1)
		if err != nil {
			return decoding.Skip(), fmt.Errorf("token purchase buyer: %w", err)
		}
		// search for a send to the buyer from a tracked address
		ev := firstCandidate(dc, "token purchase", func(ev *model.DecodedEvent) bool {
			return ev.Kind == model.KindSpend && decoding.SameAddress(ev.Counterparty, buyer)
		})
		if ev != nil {
			ev.Kind = model.KindTrade
			ev.Subkind = model.SubkindSpend
			ev.Counterparty = Counterparty
			ev.Note = fmt.Sprintf("Swap %s %s in uniswap-v1 from %s", ev.Quantity, ev.AssetLabel(), ev.Actor)
		}
		return decoding.Consumed(), nil

	case EthPurchaseTopic:
		buyer, err := log.TopicAddress(1)
		if err != nil {
			return decoding.Skip(), fmt.Errorf("eth purchase buyer: %w", err)
		}
		ev := firstCandidate(dc, "eth purchase", func(ev *model.DecodedEvent) bool {
			return ev.Kind == model.KindReceive && decoding.SameAddress(ev.Actor, buyer)
		})
		if ev != nil {
			ev.Kind = model.KindTrade
			ev.Subkind = model.SubkindReceive
			ev.Counterparty = Counterparty
			ev.Note = fmt.Sprintf("Receive %s %s from uniswap-v1 swap in %s", ev.Quantity, ev.AssetLabel(), ev.Actor)
		}
		return decoding.Consumed(), nil
	}

	return decoding.Skip(), nil
}

// firstCandidate returns the earliest event matching pred. Several candidates
// can match in a multi-leg transaction; only the first is reclassified.
func firstCandidate(dc *decoding.DecodeContext, what string, pred func(*model.DecodedEvent) bool) *model.DecodedEvent {
	candidates := dc.MatchingEvents(pred)
	switch len(candidates) {
	case 0:
		dc.Logger.Debug("no event to reclassify", zap.String("log", what))
		return nil
	case 1:
	default:
		dc.Logger.Debug("multiple events match, reclassifying the first",
			zap.String("log", what),
			zap.Int("candidates", len(candidates)),
		)
	}
	return candidates[0]
}

func (d *Decoder) exchangeDecoder(tok common.Address) decoding.DecodeFunc {
	return func(dc *decoding.DecodeContext, log model.LogRecord) (decoding.Outcome, error) {
		topic0, ok := log.Topic0()
		if !ok {
			return decoding.Skip(), fmt.Errorf("exchange log: %w", model.ErrMissingTopic)
		}

		switch topic0 {
		case TokenPurchaseTopic, EthPurchaseTopic:
			return d.MaybeDecodeSwap(dc, log)
		case d.addLiquidityTopic:
			return d.decodeAddLiquidity(dc, log, tok)
		case d.removeLiquidityTopic:
			return d.decodeRemoveLiquidity(dc, log, tok)
		case erc20.TransferTopic:
			// the exchange is also the ERC20 of its liquidity shares
			from, to, amount, err := erc20.ParseTransfer(log)
			if err != nil {
				return decoding.Skip(), err
			}
			if ev := dc.Tools.DecodeTransfer(dc, log, log.Address, from, to, amount); ev != nil {
				return decoding.Emit(ev), nil
			}
			return decoding.Consumed(), nil
		}
		return decoding.Skip(), nil
	}
}

// decodeAddLiquidity turns the provider's ETH and token spends to the
// exchange into deposits. The liquidity shares are minted by a Transfer log
// emitted after AddLiquidity, so their receipt is reclassified through an
// action item.
func (d *Decoder) decodeAddLiquidity(dc *decoding.DecodeContext, log model.LogRecord, tok common.Address) (decoding.Outcome, error) {
	provider, _, _, err := liquidityArgs(log)
	if err != nil {
		return decoding.Skip(), fmt.Errorf("add liquidity: %w", err)
	}
	exchange := log.Address

	deposits := dc.MatchingEvents(func(ev *model.DecodedEvent) bool {
		return ev.Kind == model.KindSpend &&
			decoding.SameAddress(ev.Actor, provider) &&
			decoding.SameAddress(ev.Counterparty, exchange) &&
			(ev.Asset == model.NativeAsset || decoding.SameAddress(ev.Asset, tok))
	})
	for _, ev := range deposits {
		ev.Kind = model.KindDeposit
		ev.Subkind = model.SubkindDepositAsset
		ev.Counterparty = Counterparty
		ev.Note = fmt.Sprintf("Deposit %s %s to uniswap-v1 LP %s", ev.Quantity, ev.AssetLabel(), exchange.Hex())
	}

	if !dc.Tools.Tracked.IsTracked(provider) {
		return decoding.Consumed(), nil
	}
	err = dc.PushActionItem(decoding.ActionItem{
		Description: fmt.Sprintf("liquidity shares of %s minted to %s", exchange.Hex(), provider.Hex()),
		MatchEvent: func(ev *model.DecodedEvent) bool {
			return ev.Kind == model.KindReceive &&
				decoding.SameAddress(ev.Asset, exchange) &&
				decoding.SameAddress(ev.Actor, provider)
		},
		ApplyEvent: func(ev *model.DecodedEvent) {
			ev.Subkind = model.SubkindReceiveWrapped
			ev.Counterparty = Counterparty
			ev.Note = fmt.Sprintf("Receive %s %s from uniswap-v1 pool", ev.Quantity, ev.AssetLabel())
		},
	})
	if err != nil {
		return decoding.Skip(), err
	}
	return decoding.Consumed(), nil
}

// decodeRemoveLiquidity turns the token paid out by the exchange into a
// withdrawal and emits the ETH leg, which is paid by an internal call and has
// no log of its own. The burn of the liquidity shares follows in a later
// Transfer log and is reclassified through an action item.
func (d *Decoder) decodeRemoveLiquidity(dc *decoding.DecodeContext, log model.LogRecord, tok common.Address) (decoding.Outcome, error) {
	provider, ethAmount, _, err := liquidityArgs(log)
	if err != nil {
		return decoding.Skip(), fmt.Errorf("remove liquidity: %w", err)
	}
	exchange := log.Address

	withdrawn := dc.MatchingEvents(func(ev *model.DecodedEvent) bool {
		return ev.Kind == model.KindReceive &&
			decoding.SameAddress(ev.Actor, provider) &&
			decoding.SameAddress(ev.Counterparty, exchange) &&
			decoding.SameAddress(ev.Asset, tok)
	})
	for _, ev := range withdrawn {
		ev.Kind = model.KindWithdrawal
		ev.Subkind = model.SubkindRemoveAsset
		ev.Counterparty = Counterparty
		ev.Note = fmt.Sprintf("Remove %s %s from uniswap-v1 LP %s", ev.Quantity, ev.AssetLabel(), exchange.Hex())
	}

	if !dc.Tools.Tracked.IsTracked(provider) {
		return decoding.Consumed(), nil
	}

	err = dc.PushActionItem(decoding.ActionItem{
		Description: fmt.Sprintf("liquidity shares of %s burned by %s", exchange.Hex(), provider.Hex()),
		MatchEvent: func(ev *model.DecodedEvent) bool {
			return ev.Kind == model.KindSpend &&
				decoding.SameAddress(ev.Asset, exchange) &&
				decoding.SameAddress(ev.Actor, provider)
		},
		ApplyEvent: func(ev *model.DecodedEvent) {
			ev.Subkind = model.SubkindReturnWrapped
			ev.Counterparty = Counterparty
			ev.Note = fmt.Sprintf("Return %s %s to uniswap-v1 pool", ev.Quantity, ev.AssetLabel())
		},
	})
	if err != nil {
		return decoding.Skip(), err
	}

	if ethAmount.Sign() == 0 {
		return decoding.Consumed(), nil
	}
	ev := &model.DecodedEvent{
		SequenceIndex: log.LogIndex + 1,
		Kind:          model.KindWithdrawal,
		Subkind:       model.SubkindRemoveAsset,
		Asset:         model.NativeAsset,
		AssetSymbol:   model.NativeAsset,
		Quantity:      token.FormatAmount(ethAmount, 18),
		Actor:         provider.Hex(),
		Counterparty:  Counterparty,
	}
	ev.Note = fmt.Sprintf("Remove %s ETH from uniswap-v1 LP %s", ev.Quantity, exchange.Hex())
	return decoding.Emit(ev), nil
}

func liquidityArgs(log model.LogRecord) (common.Address, *big.Int, *big.Int, error) {
	if len(log.Topics) != 4 {
		return common.Address{}, nil, nil, fmt.Errorf("expected 4 topics, got %d", len(log.Topics))
	}
	provider, err := log.TopicAddress(1)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	ethAmount := new(big.Int).SetBytes(log.Topics[2].Bytes())
	tokenAmount := new(big.Int).SetBytes(log.Topics[3].Bytes())
	return provider, ethAmount, tokenAmount, nil
}
