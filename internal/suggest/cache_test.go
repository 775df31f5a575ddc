package suggest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suggestion(name string) []KpiSuggestion {
	return []KpiSuggestion{{Name: name, Description: name + " description"}}
}

func TestCacheHitAndMiss(t *testing.T) {
	c := NewMemoryCache(4, time.Minute)

	_, ok := c.Get("sales")
	assert.False(t, ok)

	c.Set("sales", suggestion("Total Revenue"))
	got, ok := c.Get("sales")
	require.True(t, ok)
	assert.Equal(t, "Total Revenue", got[0].Name)
}

func TestCacheExpiry(t *testing.T) {
	c := NewMemoryCache(4, time.Minute)
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("sales", suggestion("Total Revenue"))

	current = current.Add(59 * time.Second)
	_, ok := c.Get("sales")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = c.Get("sales")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)

	c.Set("a", suggestion("A"))
	c.Set("b", suggestion("B"))
	c.Set("c", suggestion("C"))

	_, ok := c.Get("a")
	assert.False(t, ok)

	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCacheSetExistingKeyDoesNotEvict(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)

	c.Set("a", suggestion("A"))
	c.Set("b", suggestion("B"))
	c.Set("a", suggestion("A2"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "A2", got[0].Name)

	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCacheEvict(t *testing.T) {
	c := NewMemoryCache(4, time.Minute)
	c.Set("a", suggestion("A"))
	c.Evict("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}
