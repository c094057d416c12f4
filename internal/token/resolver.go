package token

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"txDecoder/internal/model"
)

// DefaultDecimals is assumed for tokens whose metadata cannot be read.
const DefaultDecimals = 18

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Resolver looks token metadata up in memory, then redis, then on chain.
type Resolver struct {
	caller Caller
	memory *MemoryCache
	shared *RedisCache
	logger *zap.Logger
}

// NewResolver builds a resolver. caller and shared may be nil.
func NewResolver(caller Caller, shared *RedisCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		caller: caller,
		memory: NewMemoryCache(),
		shared: shared,
		logger: logger,
	}
}

// Seed stores known metadata, bypassing any lookup.
func (r *Resolver) Seed(meta model.TokenMeta) {
	r.memory.Set(common.HexToAddress(meta.Address), meta)
}

// Token returns metadata for address. On lookup failure it returns fallback
// metadata (address label, default decimals) together with the error; the
// fallback is memoized so the failing lookup is not retried.
func (r *Resolver) Token(ctx context.Context, address common.Address) (model.TokenMeta, error) {
	if meta, ok := r.memory.Get(address); ok {
		return meta, nil
	}

	if r.shared != nil {
		meta, ok, err := r.shared.Get(ctx, address)
		if err != nil {
			r.logger.Warn("redis token lookup failed", zap.String("token", address.Hex()), zap.Error(err))
		} else if ok {
			r.memory.Set(address, meta)
			return meta, nil
		}
	}

	fallback := model.TokenMeta{Address: address.Hex(), Decimals: DefaultDecimals}
	if r.caller == nil {
		r.memory.Set(address, fallback)
		return fallback, nil
	}

	meta, err := FetchTokenMeta(ctx, r.caller, address, r.logger)
	if err != nil {
		r.memory.Set(address, fallback)
		return fallback, err
	}

	r.memory.Set(address, meta)
	if r.shared != nil {
		if err := r.shared.Set(ctx, address, meta); err != nil {
			r.logger.Warn("redis token store failed", zap.String("token", address.Hex()), zap.Error(err))
		}
	}
	return meta, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}

	strABI, err := StringABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	b32ABI, err := Bytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		msg := ethereum.CallMsg{To: &token, Data: data}
		resp, err := caller.CallContract(ctx, msg, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		return values, nil
	}

	values, err := call("decimals", strABI)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := call("symbol", strABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", b32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name", strABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", b32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
