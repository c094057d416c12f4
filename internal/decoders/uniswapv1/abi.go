package uniswapv1

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Exchange events from uniswap_exchange.vy. Every argument is indexed, so
// the data payload is empty.
const exchangeABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "buyer", "type": "address"},
      {"indexed": true, "name": "eth_sold", "type": "uint256"},
      {"indexed": true, "name": "tokens_bought", "type": "uint256"}
    ],
    "name": "TokenPurchase",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "buyer", "type": "address"},
      {"indexed": true, "name": "tokens_sold", "type": "uint256"},
      {"indexed": true, "name": "eth_bought", "type": "uint256"}
    ],
    "name": "EthPurchase",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": true, "name": "eth_amount", "type": "uint256"},
      {"indexed": true, "name": "token_amount", "type": "uint256"}
    ],
    "name": "AddLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "provider", "type": "address"},
      {"indexed": true, "name": "eth_amount", "type": "uint256"},
      {"indexed": true, "name": "token_amount", "type": "uint256"}
    ],
    "name": "RemoveLiquidity",
    "type": "event"
  }
]`

var (
	exchangeABI     abi.ABI
	exchangeABIOnce sync.Once
	exchangeABIErr  error
)

// ExchangeABI returns the parsed Uniswap v1 exchange event ABI.
func ExchangeABI() (abi.ABI, error) {
	exchangeABIOnce.Do(func() {
		exchangeABI, exchangeABIErr = abi.JSON(strings.NewReader(exchangeABIJSON))
	})
	return exchangeABI, exchangeABIErr
}
