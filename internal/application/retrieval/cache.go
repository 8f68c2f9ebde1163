package retrieval

import (
	"sync"
	"time"
)

// Cache 进程内有界 KV 缓存：容量固定，超出时淘汰最老条目，条目带 TTL。
// 检索器在构造时注入两个实例（embedding / outcome），不依赖任何全局状态。
type Cache[V any] struct {
	mu      sync.RWMutex
	max     int
	ttl     time.Duration
	entries map[string]cacheEntry[V]
	// order 按插入顺序记录键，队首即最老条目
	order []string

	now func() time.Time
}

type cacheEntry[V any] struct {
	value   V
	addedAt time.Time
}

// NewCache 创建缓存。max <= 0 或 ttl <= 0 时缓存退化为全 miss。
func NewCache[V any](max int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		max:     max,
		ttl:     ttl,
		entries: make(map[string]cacheEntry[V]),
		now:     time.Now,
	}
}

// Get 读取缓存。过期条目视为 miss，留待后续 Put 清理。
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.max <= 0 || c.ttl <= 0 {
		return zero, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.addedAt) > c.ttl {
		return zero, false
	}
	return e.value, true
}

// Put 写入缓存。同键覆盖不改变插入顺序；容量满时先清过期条目，再淘汰最老条目。
func (c *Cache[V]) Put(key string, value V) {
	if c == nil || c.max <= 0 || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = cacheEntry[V]{value: value, addedAt: c.now()}
		return
	}

	c.pruneExpiredLocked()
	for len(c.entries) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = cacheEntry[V]{value: value, addedAt: c.now()}
	c.order = append(c.order, key)
}

// Len 当前条目数
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) pruneExpiredLocked() {
	now := c.now()
	kept := c.order[:0]
	for _, key := range c.order {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		if now.Sub(e.addedAt) > c.ttl {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}
