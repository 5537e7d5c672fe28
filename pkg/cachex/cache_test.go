package cachex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	c := New()

	_, ok := c.Get("missing", time.Minute)
	require.False(t, ok)

	c.Set("balance:currency", "100.5")
	got, ok := c.Get("balance:currency", time.Minute)
	require.True(t, ok)
	require.Equal(t, "100.5", got)

	c.Set("balance:currency", "99")
	got, ok = c.Get("balance:currency", time.Minute)
	require.True(t, ok)
	require.Equal(t, "99", got)
}

func TestCacheTTL(t *testing.T) {
	now := time.Now()
	c := NewWithClock(func() time.Time { return now })

	c.Set("k", 1)

	now = now.Add(29 * time.Second)
	_, ok := c.Get("k", 30*time.Second)
	require.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("k", 30*time.Second)
	require.False(t, ok, "entry at exactly the TTL boundary is expired")

	// Lazy expiry: the entry is hidden, not removed.
	require.Equal(t, 1, c.Len())
}

func TestCacheDelete(t *testing.T) {
	c := New()
	c.Set("k", 1)
	c.Delete("k")
	c.Delete("k") // absent key is a no-op

	_, ok := c.Get("k", time.Minute)
	require.False(t, ok)
}

func TestCacheClearPrefix(t *testing.T) {
	c := New()
	c.Set("balance:currency", "1")
	c.Set("balance:currency:dex", "2")
	c.Set("wallet_info", "3")

	c.ClearPrefix("balance:")

	_, ok := c.Get("balance:currency", time.Minute)
	require.False(t, ok)
	_, ok = c.Get("balance:currency:dex", time.Minute)
	require.False(t, ok)
	_, ok = c.Get("wallet_info", time.Minute)
	require.True(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestCacheClear(t *testing.T) {
	c := New()
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	require.Equal(t, 0, c.Len())
}
