package decoding

import (
	"errors"

	"txDecoder/internal/model"
)

// ErrEmptyActionItem is returned when an action item has no predicate to match on.
var ErrEmptyActionItem = errors.New("action item has no predicate")

// ActionItem is a deferred reclassification waiting for an event or log that
// has not been seen yet. It lives only for the transaction it was pushed in.
type ActionItem struct {
	Decoder     string
	Description string

	// MatchEvent selects a newly produced event; ApplyEvent mutates it (or an
	// event captured by the closure) before it is appended.
	MatchEvent func(ev *model.DecodedEvent) bool
	ApplyEvent func(ev *model.DecodedEvent)

	// MatchLog selects a log about to be dispatched; ApplyLog runs before dispatch.
	MatchLog func(log model.LogRecord) bool
	ApplyLog func(dc *DecodeContext, log model.LogRecord)

	pushedAt uint64
}

type actionQueue struct {
	items []*ActionItem
}

func (q *actionQueue) push(item *ActionItem) {
	q.items = append(q.items, item)
}

// matchEvent applies and removes the oldest item whose event predicate holds.
func (q *actionQueue) matchEvent(ev *model.DecodedEvent) *ActionItem {
	for i, item := range q.items {
		if item.MatchEvent == nil || !item.MatchEvent(ev) {
			continue
		}
		if item.ApplyEvent != nil {
			item.ApplyEvent(ev)
		}
		q.remove(i)
		return item
	}
	return nil
}

// matchLog applies and removes the oldest item whose log predicate holds.
func (q *actionQueue) matchLog(dc *DecodeContext, log model.LogRecord) *ActionItem {
	for i, item := range q.items {
		if item.MatchLog == nil || !item.MatchLog(log) {
			continue
		}
		q.remove(i)
		if item.ApplyLog != nil {
			item.ApplyLog(dc, log)
		}
		return item
	}
	return nil
}

func (q *actionQueue) remove(i int) {
	copy(q.items[i:], q.items[i+1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
}

func (q *actionQueue) len() int {
	return len(q.items)
}
