package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRistrettoCacheSetGetDelete(t *testing.T) {
	c, err := NewRistrettoCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetWithTTL("k1", []byte("value"), time.Minute))
	c.Wait()

	data, ok := c.Get("k1")
	require.True(t, ok)
	require.Equal(t, []byte("value"), data)

	require.NoError(t, c.Delete("k1"))
	c.Wait()

	_, ok = c.Get("k1")
	require.False(t, ok)
}

func TestRistrettoCacheTTLExpiry(t *testing.T) {
	c, err := NewRistrettoCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetWithTTL("short", []byte("x"), 50*time.Millisecond))
	c.Wait()

	_, ok := c.Get("short")
	require.True(t, ok)

	time.Sleep(150 * time.Millisecond)

	_, ok = c.Get("short")
	require.False(t, ok)
}

func TestKeyBuilders(t *testing.T) {
	require.Equal(t, "node:abc", NodeKey("abc"))
	require.Equal(t, "children:7:root", ChildrenKey(7, nil))

	folder := "f1"
	require.Equal(t, "children:7:f1", ChildrenKey(7, &folder))
	require.Equal(t, "trash:7", TrashKey(7))
	require.Equal(t, "list:7:name:true:false", ListKey(7, "name", true, false))

	// Root and folder listings must never collide.
	require.NotEqual(t, ChildrenKey(7, nil), ChildrenKey(7, &folder))
}
