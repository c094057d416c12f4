package model

// EventKind is the accounting category of a decoded event.
type EventKind string

const (
	KindSpend         EventKind = "spend"
	KindReceive       EventKind = "receive"
	KindTrade         EventKind = "trade"
	KindTransfer      EventKind = "transfer"
	KindDeposit       EventKind = "deposit"
	KindWithdrawal    EventKind = "withdrawal"
	KindInformational EventKind = "informational"
)

// EventSubkind refines an EventKind with the role the event played.
type EventSubkind string

const (
	SubkindNone           EventSubkind = "none"
	SubkindSpend          EventSubkind = "spend"
	SubkindReceive        EventSubkind = "receive"
	SubkindFee            EventSubkind = "fee"
	SubkindApprove        EventSubkind = "approve"
	SubkindDepositAsset   EventSubkind = "deposit_asset"
	SubkindRemoveAsset    EventSubkind = "remove_asset"
	SubkindReceiveWrapped EventSubkind = "receive_wrapped"
	SubkindReturnWrapped  EventSubkind = "return_wrapped"
)

// NativeAsset identifies the chain's native currency.
const NativeAsset = "ETH"

// DecodedEvent is an accounting event produced from one or more logs of a transaction.
// Later logs of the same transaction may reclassify it in place.
type DecodedEvent struct {
	TxHash        string       `json:"tx_hash"`
	SequenceIndex uint64       `json:"sequence_index"`
	Timestamp     uint64       `json:"timestamp"`
	Kind          EventKind    `json:"kind"`
	Subkind       EventSubkind `json:"subkind"`
	Asset         string       `json:"asset"`
	AssetSymbol   string       `json:"asset_symbol,omitempty"`
	Quantity      string       `json:"quantity"`
	Actor         string       `json:"actor"`
	Counterparty  string       `json:"counterparty,omitempty"`
	Note          string       `json:"note,omitempty"`
}

// AssetLabel is the asset symbol when known, the asset identifier otherwise.
func (e *DecodedEvent) AssetLabel() string {
	if e.AssetSymbol != "" {
		return e.AssetSymbol
	}
	return e.Asset
}
