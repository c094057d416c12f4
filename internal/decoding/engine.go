package decoding

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"txDecoder/internal/metrics"
	"txDecoder/internal/model"
)

// Result is the decoded view of one transaction.
type Result struct {
	TxHash      string               `json:"tx_hash"`
	Events      []model.DecodedEvent `json:"events"`
	Diagnostics []model.Diagnostic   `json:"diagnostics,omitempty"`
}

// Engine dispatches the logs of a transaction to the installed decoders.
type Engine struct {
	registry        *Registry
	tools           *Tools
	logger          *zap.Logger
	reportUndecoded bool
	seedNative      bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithUndecodedDiagnostics reports logs no decoder handled.
func WithUndecodedDiagnostics(enabled bool) Option {
	return func(e *Engine) {
		e.reportUndecoded = enabled
	}
}

// WithNativeTransfers controls whether the transaction value is decoded
// before its logs. Enabled by default.
func WithNativeTransfers(enabled bool) Option {
	return func(e *Engine) {
		e.seedNative = enabled
	}
}

// NewEngine builds an engine over a registry. tools may be nil.
func NewEngine(registry *Registry, tools *Tools, opts ...Option) *Engine {
	if tools == nil {
		tools = &Tools{}
	}
	e := &Engine{
		registry:   registry,
		tools:      tools,
		logger:     zap.NewNop(),
		seedNative: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DecodeTransaction decodes the logs of tx in log index order. A failing
// decoder never aborts the transaction; it is reported in the diagnostics.
func (e *Engine) DecodeTransaction(ctx context.Context, tx model.Transaction) Result {
	dc := newDecodeContext(ctx, &tx, e.tools, e.logger)
	var diags []model.Diagnostic

	if e.seedNative {
		if ev := e.tools.NativeTransfer(&tx); ev != nil {
			dc.emit(ev)
		}
	}

	logs := make([]model.LogRecord, len(tx.Logs))
	copy(logs, tx.Logs)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].LogIndex < logs[j].LogIndex
	})

	for _, log := range logs {
		if diag, ok := e.decodeLog(dc, log); ok {
			diags = append(diags, diag)
		}
	}

	for _, item := range dc.queue.items {
		metrics.ActionItems.WithLabelValues("unresolved").Inc()
		dc.Logger.Info("unresolved action item",
			zap.String("decoder", item.Decoder),
			zap.String("description", item.Description),
			zap.Uint64("pushed_at", item.pushedAt),
		)
		diags = append(diags, model.Diagnostic{
			Kind:     model.DiagnosticUnresolvedActionItem,
			TxHash:   dc.TxHash(),
			LogIndex: item.pushedAt,
			Decoder:  item.Decoder,
			Message:  item.Description,
		})
	}

	events := make([]model.DecodedEvent, 0, len(dc.events))
	for _, ev := range dc.events {
		events = append(events, *ev)
	}

	metrics.TransactionsDecoded.Inc()
	return Result{
		TxHash:      dc.TxHash(),
		Events:      events,
		Diagnostics: diags,
	}
}

func (e *Engine) decodeLog(dc *DecodeContext, log model.LogRecord) (model.Diagnostic, bool) {
	dc.logIdx = log.LogIndex

	if item := dc.queue.matchLog(dc, log); item != nil {
		metrics.ActionItems.WithLabelValues("resolved").Inc()
		dc.Logger.Debug("action item matched log",
			zap.String("decoder", item.Decoder),
			zap.Uint64("log_index", log.LogIndex),
		)
	}

	if owner, ok := e.registry.Lookup(log.Address); ok {
		out, err := e.invoke(dc, owner, log)
		if err != nil {
			return e.failure(dc, owner.Decoder, log, err), true
		}
		if out.Matched() {
			e.finish(dc, owner.Decoder, out)
			metrics.LogsProcessed.WithLabelValues(metrics.OutcomeOwned).Inc()
			return model.Diagnostic{}, false
		}
		// owned logs never fall through to the rules
		return e.undecoded(dc, owner.Decoder, log)
	}

	for _, rule := range e.registry.Rules() {
		out, err := e.invoke(dc, rule, log)
		if err != nil {
			return e.failure(dc, rule.Decoder, log, err), true
		}
		if out.Matched() {
			e.finish(dc, rule.Decoder, out)
			metrics.LogsProcessed.WithLabelValues(metrics.OutcomeRule).Inc()
			return model.Diagnostic{}, false
		}
	}

	return e.undecoded(dc, "", log)
}

func (e *Engine) undecoded(dc *DecodeContext, owner string, log model.LogRecord) (model.Diagnostic, bool) {
	metrics.LogsProcessed.WithLabelValues(metrics.OutcomeUndecoded).Inc()
	if !e.reportUndecoded {
		return model.Diagnostic{}, false
	}
	msg := "no decoder matched"
	if owner != "" {
		msg = "owner did not recognise the log"
	}
	return newDiagnostic(dc, model.DiagnosticUndecodedLog, owner, log, msg), true
}

func (e *Engine) invoke(dc *DecodeContext, b Binding, log model.LogRecord) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = Skip()
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	dc.decoder = b.Decoder
	return b.Func(dc, log)
}

func (e *Engine) finish(dc *DecodeContext, decoder string, out Outcome) {
	if out.Event == nil {
		return
	}
	metrics.EventsEmitted.WithLabelValues(decoder).Inc()
	if item := dc.emit(out.Event); item != nil {
		metrics.ActionItems.WithLabelValues("resolved").Inc()
		dc.Logger.Debug("action item matched event",
			zap.String("decoder", item.Decoder),
			zap.String("description", item.Description),
			zap.Uint64("sequence_index", out.Event.SequenceIndex),
		)
	}
}

func (e *Engine) failure(dc *DecodeContext, decoder string, log model.LogRecord, err error) model.Diagnostic {
	metrics.LogsProcessed.WithLabelValues(metrics.OutcomeFailed).Inc()
	metrics.DecodeFailures.WithLabelValues(decoder).Inc()
	dc.Logger.Warn("decode log failed",
		zap.String("decoder", decoder),
		zap.Uint64("log_index", log.LogIndex),
		zap.String("address", log.Address.Hex()),
		zap.Error(err),
	)
	return newDiagnostic(dc, model.DiagnosticDecodeFailure, decoder, log, err.Error())
}

func newDiagnostic(dc *DecodeContext, kind model.DiagnosticKind, decoder string, log model.LogRecord, msg string) model.Diagnostic {
	topic0 := ""
	if t, ok := log.Topic0(); ok {
		topic0 = t.Hex()
	}
	return model.Diagnostic{
		Kind:     kind,
		TxHash:   dc.TxHash(),
		LogIndex: log.LogIndex,
		Address:  log.Address.Hex(),
		Topic0:   topic0,
		Decoder:  decoder,
		Message:  msg,
	}
}
