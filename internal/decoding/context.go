package decoding

import (
	"context"

	"go.uber.org/zap"

	"txDecoder/internal/model"
)

// DecodeContext is the per-transaction decoding state handed to every DecodeFunc.
// Events are kept in creation order and handed out as pointers so later logs
// can reclassify them in place. It must not be shared between transactions.
type DecodeContext struct {
	Context context.Context
	Tx      *model.Transaction
	Tools   *Tools
	Logger  *zap.Logger

	decoder string
	logIdx  uint64
	events  []*model.DecodedEvent
	queue   actionQueue
}

func newDecodeContext(ctx context.Context, tx *model.Transaction, tools *Tools, logger *zap.Logger) *DecodeContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if tools == nil {
		tools = &Tools{}
	}
	return &DecodeContext{
		Context: ctx,
		Tx:      tx,
		Tools:   tools,
		Logger:  logger.With(zap.String("tx_hash", tx.Hash.Hex())),
	}
}

// TxHash returns the hex hash of the transaction being decoded.
func (dc *DecodeContext) TxHash() string {
	return dc.Tx.Hash.Hex()
}

// Events returns the events decoded so far. Appending to the returned slice
// does not add events; mutating the pointees does.
func (dc *DecodeContext) Events() []*model.DecodedEvent {
	return dc.events[:len(dc.events):len(dc.events)]
}

// FirstEvent returns the earliest event satisfying pred, or nil.
func (dc *DecodeContext) FirstEvent(pred func(*model.DecodedEvent) bool) *model.DecodedEvent {
	for _, ev := range dc.events {
		if pred(ev) {
			return ev
		}
	}
	return nil
}

// MatchingEvents returns every event satisfying pred, in creation order.
func (dc *DecodeContext) MatchingEvents(pred func(*model.DecodedEvent) bool) []*model.DecodedEvent {
	var out []*model.DecodedEvent
	for _, ev := range dc.events {
		if pred(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// PushActionItem defers a reclassification until a matching event or log appears.
func (dc *DecodeContext) PushActionItem(item ActionItem) error {
	if item.MatchEvent == nil && item.MatchLog == nil {
		return ErrEmptyActionItem
	}
	if item.Decoder == "" {
		item.Decoder = dc.decoder
	}
	item.pushedAt = dc.logIdx
	dc.queue.push(&item)
	return nil
}

// PendingActionItems is the number of action items not matched yet.
func (dc *DecodeContext) PendingActionItems() int {
	return dc.queue.len()
}

func (dc *DecodeContext) emit(ev *model.DecodedEvent) *ActionItem {
	if ev.TxHash == "" {
		ev.TxHash = dc.TxHash()
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = dc.Tx.Timestamp
	}
	if ev.Subkind == "" {
		ev.Subkind = model.SubkindNone
	}
	matched := dc.queue.matchEvent(ev)
	dc.events = append(dc.events, ev)
	return matched
}
