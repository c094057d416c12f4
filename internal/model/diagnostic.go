package model

// DiagnosticKind classifies a non-fatal decoding diagnostic.
type DiagnosticKind string

const (
	DiagnosticDecodeFailure        DiagnosticKind = "decode_failure"
	DiagnosticUnresolvedActionItem DiagnosticKind = "unresolved_action_item"
	DiagnosticUndecodedLog         DiagnosticKind = "undecoded_log"
)

// Diagnostic records a data-quality signal produced while decoding a transaction.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	TxHash   string         `json:"tx_hash"`
	LogIndex uint64         `json:"log_index"`
	Address  string         `json:"address,omitempty"`
	Topic0   string         `json:"topic0,omitempty"`
	Decoder  string         `json:"decoder,omitempty"`
	Message  string         `json:"message"`
}
