package decoding

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"txDecoder/internal/model"
	"txDecoder/internal/token"
)

// TokenResolver provides ERC20 metadata for amounts and notes.
type TokenResolver interface {
	Token(ctx context.Context, address common.Address) (model.TokenMeta, error)
}

// AccountSet is the set of accounts whose history is being decoded.
type AccountSet map[common.Address]struct{}

func NewAccountSet(addresses ...common.Address) AccountSet {
	set := make(AccountSet, len(addresses))
	for _, addr := range addresses {
		set[addr] = struct{}{}
	}
	return set
}

func (s AccountSet) IsTracked(address common.Address) bool {
	_, ok := s[address]
	return ok
}

// Tools are the shared helpers decoders build events with. Read-only during decoding.
type Tools struct {
	Tracked AccountSet
	Tokens  TokenResolver
}

// Token resolves metadata for address, falling back to the address itself and
// default decimals when no resolver is configured or the lookup fails.
func (t *Tools) Token(ctx context.Context, address common.Address, logger *zap.Logger) model.TokenMeta {
	fallback := model.TokenMeta{Address: address.Hex(), Decimals: token.DefaultDecimals}
	if t == nil || t.Tokens == nil {
		return fallback
	}
	meta, err := t.Tokens.Token(ctx, address)
	if err != nil {
		if logger != nil {
			logger.Warn("token metadata lookup failed", zap.String("token", address.Hex()), zap.Error(err))
		}
		if meta.Address == "" {
			return fallback
		}
	}
	return meta
}

// DecodeTransfer builds the event for amount of tokenAddr moving from -> to,
// seen from the tracked side. It returns nil when neither side is tracked.
func (t *Tools) DecodeTransfer(dc *DecodeContext, log model.LogRecord, tokenAddr, from, to common.Address, amount *big.Int) *model.DecodedEvent {
	meta := t.Token(dc.Context, tokenAddr, dc.Logger)
	return t.transferEvent(dc.Tx, log.LogIndex+1, tokenAddr.Hex(), meta.Symbol, meta.Decimals, from, to, amount)
}

// NativeTransfer builds the event for the value carried by the transaction itself.
func (t *Tools) NativeTransfer(tx *model.Transaction) *model.DecodedEvent {
	if tx.To == nil {
		return nil
	}
	value := tx.ValueWei()
	if value.Sign() == 0 {
		return nil
	}
	return t.transferEvent(tx, 0, model.NativeAsset, model.NativeAsset, 18, tx.From, *tx.To, value)
}

func (t *Tools) transferEvent(
	tx *model.Transaction,
	sequence uint64,
	asset string,
	symbol string,
	decimals uint8,
	from common.Address,
	to common.Address,
	amount *big.Int,
) *model.DecodedEvent {
	if t == nil {
		return nil
	}
	fromTracked := t.Tracked.IsTracked(from)
	toTracked := t.Tracked.IsTracked(to)
	if !fromTracked && !toTracked {
		return nil
	}

	ev := &model.DecodedEvent{
		TxHash:        tx.Hash.Hex(),
		SequenceIndex: sequence,
		Timestamp:     tx.Timestamp,
		Subkind:       model.SubkindNone,
		Asset:         asset,
		AssetSymbol:   symbol,
		Quantity:      token.FormatAmount(amount, decimals),
	}
	label := ev.AssetLabel()

	switch {
	case fromTracked && toTracked:
		ev.Kind = model.KindTransfer
		ev.Actor = from.Hex()
		ev.Counterparty = to.Hex()
		ev.Note = fmt.Sprintf("Transfer %s %s from %s to %s", ev.Quantity, label, from.Hex(), to.Hex())
	case fromTracked:
		ev.Kind = model.KindSpend
		ev.Actor = from.Hex()
		ev.Counterparty = to.Hex()
		ev.Note = fmt.Sprintf("Send %s %s from %s to %s", ev.Quantity, label, from.Hex(), to.Hex())
	default:
		ev.Kind = model.KindReceive
		ev.Actor = to.Hex()
		ev.Counterparty = from.Hex()
		ev.Note = fmt.Sprintf("Receive %s %s from %s to %s", ev.Quantity, label, from.Hex(), to.Hex())
	}
	return ev
}

// SameAddress reports whether value is the hex form of addr, ignoring case.
// Tags that are not addresses, such as "uniswap-v1", never match.
func SameAddress(value string, addr common.Address) bool {
	return common.IsHexAddress(value) && common.HexToAddress(value) == addr
}
