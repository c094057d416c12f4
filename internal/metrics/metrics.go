package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Log outcomes used as the "outcome" label of LogsProcessed.
const (
	OutcomeOwned     = "owned"
	OutcomeRule      = "rule"
	OutcomeUndecoded = "undecoded"
	OutcomeFailed    = "failed"
)

var (
	// TransactionsDecoded counts transactions run through the engine.
	TransactionsDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "txdecoder_transactions_decoded_total",
			Help: "Total number of transactions decoded",
		},
	)

	// LogsProcessed counts logs by how they were dispatched.
	LogsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txdecoder_logs_processed_total",
			Help: "Total number of logs processed by dispatch outcome",
		},
		[]string{"outcome"},
	)

	// EventsEmitted counts new decoded events per decoder.
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txdecoder_events_emitted_total",
			Help: "Total number of decoded events produced",
		},
		[]string{"decoder"},
	)

	// DecodeFailures counts logs skipped because a decoder failed on them.
	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txdecoder_decode_failures_total",
			Help: "Total number of logs a decoder failed to decode",
		},
		[]string{"decoder"},
	)

	// ActionItems counts deferred matches by final state.
	ActionItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txdecoder_action_items_total",
			Help: "Total number of action items by resolution",
		},
		[]string{"state"},
	)
)
