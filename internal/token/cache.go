package token

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"txDecoder/internal/model"
)

// MemoryCache caches token metadata by address for the lifetime of the process.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *MemoryCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *MemoryCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}
