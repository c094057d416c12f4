package fetcher

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseHashes converts 32-byte hex strings (transaction hashes, topics) into common.Hash.
func ParseHashes(inputs []string) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid hash: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid hash length: %s", input)
		}
		hashes = append(hashes, common.BytesToHash(data))
	}
	return hashes, nil
}

// ParseExchangePairs parses exchange=token pairs.
func ParseExchangePairs(pairs map[string]string) (map[common.Address]common.Address, error) {
	out := make(map[common.Address]common.Address, len(pairs))
	for exchange, token := range pairs {
		exchange = strings.TrimSpace(exchange)
		token = strings.TrimSpace(token)
		if !common.IsHexAddress(exchange) {
			return nil, fmt.Errorf("invalid exchange address: %s", exchange)
		}
		if !common.IsHexAddress(token) {
			return nil, fmt.Errorf("invalid token address for exchange %s: %s", exchange, token)
		}
		out[common.HexToAddress(exchange)] = common.HexToAddress(token)
	}
	return out, nil
}
