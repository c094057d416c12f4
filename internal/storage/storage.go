package storage

import (
	"context"

	"txDecoder/internal/model"
)

// TransactionSink stores fetched transactions.
type TransactionSink interface {
	PutTransactions(txs []model.Transaction) error
}

// EventSink stores decoded events and the diagnostics produced alongside them.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.DecodedEvent) error
	PutDiagnostics(ctx context.Context, diags []model.Diagnostic) error
}

// MultiSink fans writes out to several event sinks, stopping at the first error.
type MultiSink []EventSink

func (m MultiSink) PutEvents(ctx context.Context, events []model.DecodedEvent) error {
	for _, sink := range m {
		if err := sink.PutEvents(ctx, events); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) PutDiagnostics(ctx context.Context, diags []model.Diagnostic) error {
	for _, sink := range m {
		if err := sink.PutDiagnostics(ctx, diags); err != nil {
			return err
		}
	}
	return nil
}
