package decoding

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrDuplicateAddress is wrapped by the ConfigError raised when two decoders claim one address.
var ErrDuplicateAddress = errors.New("address already owned by another decoder")

// ConfigError reports an invalid decoder set. It is raised while building the
// registry, never while decoding.
type ConfigError struct {
	Address  common.Address
	Owner    string
	Claimant string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("decoder %q claims %s owned by %q: %v", e.Claimant, e.Address.Hex(), e.Owner, e.Err)
	}
	return fmt.Sprintf("decoder %q: %v", e.Claimant, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Binding ties a decode function to the decoder that declared it.
type Binding struct {
	Decoder string
	Func    DecodeFunc
}

// Registry indexes installed decoders by the addresses they own and keeps
// their generic rules in registration order. It is read-only once built and
// safe to share between goroutines.
type Registry struct {
	decoders []Decoder
	owners   map[common.Address]Binding
	rules    []Binding
}

// NewRegistry builds a registry from decoders in the given order.
func NewRegistry(decoders ...Decoder) (*Registry, error) {
	r := &Registry{
		decoders: make([]Decoder, 0, len(decoders)),
		owners:   make(map[common.Address]Binding),
	}

	for i, dec := range decoders {
		if dec == nil {
			return nil, &ConfigError{Err: fmt.Errorf("nil decoder at position %d", i)}
		}
		if err := r.install(dec); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// install indexes one decoder. A decoder that panics while describing itself,
// such as a typed nil pointer, is reported as a ConfigError.
func (r *Registry) install(dec Decoder) (err error) {
	name := ""
	defer func() {
		if p := recover(); p != nil {
			err = &ConfigError{Claimant: name, Err: fmt.Errorf("invalid decoder %T: %v", dec, p)}
		}
	}()
	name = dec.Name()

	mapping := dec.AddressesToDecoders()
	addresses := make([]common.Address, 0, len(mapping))
	for addr := range mapping {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return bytes.Compare(addresses[i].Bytes(), addresses[j].Bytes()) < 0
	})

	for _, addr := range addresses {
		fn := mapping[addr]
		if fn == nil {
			return &ConfigError{Address: addr, Claimant: name, Err: fmt.Errorf("nil decode function for %s", addr.Hex())}
		}
		if existing, ok := r.owners[addr]; ok {
			return &ConfigError{Address: addr, Owner: existing.Decoder, Claimant: name, Err: ErrDuplicateAddress}
		}
	}

	rules := dec.DecodingRules()
	for i, fn := range rules {
		if fn == nil {
			return &ConfigError{Claimant: name, Err: fmt.Errorf("nil decoding rule at position %d", i)}
		}
	}

	for _, addr := range addresses {
		r.owners[addr] = Binding{Decoder: name, Func: mapping[addr]}
	}
	for _, fn := range rules {
		r.rules = append(r.rules, Binding{Decoder: name, Func: fn})
	}
	r.decoders = append(r.decoders, dec)
	return nil
}

// Lookup returns the owner of address, if any.
func (r *Registry) Lookup(address common.Address) (Binding, bool) {
	b, ok := r.owners[address]
	return b, ok
}

// Rules returns the fallback rules in the order they are tried.
func (r *Registry) Rules() []Binding {
	return r.rules
}

// Decoders returns the installed decoders in registration order.
func (r *Registry) Decoders() []Decoder {
	return r.decoders
}

// OwnedAddresses is the number of addresses claimed by some decoder.
func (r *Registry) OwnedAddresses() int {
	return len(r.owners)
}
