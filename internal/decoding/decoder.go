package decoding

import (
	"github.com/ethereum/go-ethereum/common"

	"txDecoder/internal/model"
)

// DecodeFunc interprets one log of a transaction. Besides returning a new
// event it may reclassify events already in dc or push action items.
type DecodeFunc func(dc *DecodeContext, log model.LogRecord) (Outcome, error)

// Outcome is what a DecodeFunc did with a log.
type Outcome struct {
	Event   *model.DecodedEvent
	handled bool
}

// Skip reports that the log was not recognised. An owned log that is skipped
// is still never offered to the rules.
func Skip() Outcome { return Outcome{} }

// Consumed reports that the log was handled without producing a new event.
func Consumed() Outcome { return Outcome{handled: true} }

// Emit reports that the log produced ev.
func Emit(ev *model.DecodedEvent) Outcome { return Outcome{Event: ev, handled: true} }

// Matched is true when the log was handled, with or without a new event.
func (o Outcome) Matched() bool {
	return o.handled || o.Event != nil
}

// Decoder is a pluggable protocol decoder.
//
// AddressesToDecoders maps every contract address the decoder owns to the
// function decoding its logs; fixed extra arguments are bound by closure.
// DecodingRules are tried, in order, for logs whose emitter has no owner.
type Decoder interface {
	Name() string
	AddressesToDecoders() map[common.Address]DecodeFunc
	DecodingRules() []DecodeFunc
}

// BaseDecoder gives a decoder empty defaults for both capabilities.
type BaseDecoder struct{}

func (BaseDecoder) AddressesToDecoders() map[common.Address]DecodeFunc { return nil }

func (BaseDecoder) DecodingRules() []DecodeFunc { return nil }
