// Package erc20 turns token Transfer and Approval logs into spend, receive
// and approval events for tracked accounts. It owns no addresses; its rules
// run for every log no protocol decoder claimed.
package erc20

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"txDecoder/internal/decoding"
	"txDecoder/internal/model"
	"txDecoder/internal/token"
)

// Name is the registry name of the ERC20 decoder.
const Name = "erc20"

var (
	// TransferTopic is keccak256("Transfer(address,address,uint256)").
	TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	// ApprovalTopic is keccak256("Approval(address,address,uint256)").
	ApprovalTopic = common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")
)

// Decoder decodes ERC20 token movements.
type Decoder struct {
	decoding.BaseDecoder
	events abi.ABI
}

// NewDecoder builds the ERC20 decoder.
func NewDecoder() (*Decoder, error) {
	events, err := EventsABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Decoder{events: events}, nil
}

func (d *Decoder) Name() string { return Name }

func (d *Decoder) DecodingRules() []decoding.DecodeFunc {
	return []decoding.DecodeFunc{
		d.maybeDecodeTransfer,
		d.maybeDecodeApproval,
	}
}

// ParseTransfer reads sender, recipient and value from a Transfer log.
func ParseTransfer(log model.LogRecord) (common.Address, common.Address, *big.Int, error) {
	events, err := EventsABI()
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return parse(events, "Transfer", log)
}

func (d *Decoder) maybeDecodeTransfer(dc *decoding.DecodeContext, log model.LogRecord) (decoding.Outcome, error) {
	if topic0, ok := log.Topic0(); !ok || topic0 != TransferTopic {
		return decoding.Skip(), nil
	}
	// ERC721 Transfer shares the signature but indexes the token id.
	if len(log.Topics) == 4 {
		return decoding.Skip(), nil
	}

	from, to, amount, err := parse(d.events, "Transfer", log)
	if err != nil {
		return decoding.Skip(), err
	}

	ev := dc.Tools.DecodeTransfer(dc, log, log.Address, from, to, amount)
	if ev == nil {
		return decoding.Consumed(), nil
	}
	return decoding.Emit(ev), nil
}

func (d *Decoder) maybeDecodeApproval(dc *decoding.DecodeContext, log model.LogRecord) (decoding.Outcome, error) {
	if topic0, ok := log.Topic0(); !ok || topic0 != ApprovalTopic {
		return decoding.Skip(), nil
	}
	if len(log.Topics) == 4 {
		return decoding.Skip(), nil
	}

	owner, spender, amount, err := parse(d.events, "Approval", log)
	if err != nil {
		return decoding.Skip(), err
	}
	if !dc.Tools.Tracked.IsTracked(owner) {
		return decoding.Consumed(), nil
	}

	meta := dc.Tools.Token(dc.Context, log.Address, dc.Logger)
	ev := &model.DecodedEvent{
		SequenceIndex: log.LogIndex + 1,
		Kind:          model.KindInformational,
		Subkind:       model.SubkindApprove,
		Asset:         log.Address.Hex(),
		AssetSymbol:   meta.Symbol,
		Quantity:      token.FormatAmount(amount, meta.Decimals),
		Actor:         owner.Hex(),
		Counterparty:  spender.Hex(),
	}
	ev.Note = fmt.Sprintf("Approve %s %s of %s for spending by %s", ev.Quantity, ev.AssetLabel(), owner.Hex(), spender.Hex())
	return decoding.Emit(ev), nil
}

// parse reads the two indexed addresses and the uint256 value of a
// Transfer or Approval log.
func parse(events abi.ABI, event string, log model.LogRecord) (common.Address, common.Address, *big.Int, error) {
	if len(log.Topics) != 3 {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("%s: expected 3 topics, got %d", event, len(log.Topics))
	}
	values, err := events.Events[event].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("unpack %s: %w", event, err)
	}
	if len(values) != 1 {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("unexpected %s values: %d", event, len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("unsupported %s value type %T", event, values[0])
	}

	first, _ := log.TopicAddress(1)
	second, _ := log.TopicAddress(2)
	return first, second, amount, nil
}
