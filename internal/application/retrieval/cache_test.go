package retrieval

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetPut(t *testing.T) {
	c := NewCache[string](4, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("a", "one")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "one", got)
	assert.Equal(t, 1, c.Len())
}

func TestCacheFIFOEviction(t *testing.T) {
	c := NewCache[int](3, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Put("d", 4)

	// 容量 3：最老的 a 被淘汰，其余保留
	_, ok := c.Get("a")
	assert.False(t, ok)
	for i, key := range []string{"b", "c", "d"} {
		got, ok := c.Get(key)
		require.True(t, ok, "key %s", key)
		assert.Equal(t, i+2, got)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCacheOverwriteKeepsOrder(t *testing.T) {
	c := NewCache[int](2, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)
	// 覆盖不改变插入顺序：a 仍是最老条目
	c.Put("a", 10)
	c.Put("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache[string](4, 10*time.Minute)
	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	c.Put("a", "one")

	now = base.Add(5 * time.Minute)
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = base.Add(11 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCachePutPrunesExpiredBeforeEvicting(t *testing.T) {
	c := NewCache[string](2, 10*time.Minute)
	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	c.Put("old", "x")
	now = base.Add(11 * time.Minute)
	c.Put("b", "y")
	c.Put("c", "z")

	// old 已过期被清理，b 不应因容量被挤出
	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "y", got)
	got, ok = c.Get("c")
	require.True(t, ok)
	assert.Equal(t, "z", got)
	assert.Equal(t, 2, c.Len())
}

func TestCacheDisabled(t *testing.T) {
	t.Run("zero capacity", func(t *testing.T) {
		c := NewCache[string](0, time.Minute)
		c.Put("a", "one")
		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("zero ttl", func(t *testing.T) {
		c := NewCache[string](4, 0)
		c.Put("a", "one")
		_, ok := c.Get("a")
		assert.False(t, ok)
	})

	t.Run("nil cache", func(t *testing.T) {
		var c *Cache[string]
		c.Put("a", "one")
		_, ok := c.Get("a")
		assert.False(t, ok)
	})
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache[int](64, time.Minute)
	done := make(chan struct{})

	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", i%16)
				c.Put(key, g*1000+i)
				c.Get(key)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	assert.LessOrEqual(t, c.Len(), 64)
}
