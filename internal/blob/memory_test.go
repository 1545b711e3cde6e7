package blob

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	ref, err := c.Create(ctx, "a.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	require.True(t, c.Exists(ref))

	rc, err := c.Stream(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "hello", string(data))

	require.NoError(t, c.UpdateContent(ctx, ref, []byte("updated")))
	rc, err = c.Stream(ctx, ref)
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	rc.Close()
	require.Equal(t, "updated", string(data))

	require.NoError(t, c.Delete(ctx, ref))
	require.False(t, c.Exists(ref))

	// Delete is idempotent.
	require.NoError(t, c.Delete(ctx, ref))
}

func TestMemoryClientTrashUntrash(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	ref, err := c.Create(ctx, "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, c.Trash(ctx, ref))
	require.True(t, c.IsTrashed(ref))

	// Trashed objects can still be streamed; only updates are blocked.
	_, err = c.Stream(ctx, ref)
	require.NoError(t, err)
	err = c.UpdateContent(ctx, ref, []byte("y"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Untrash(ctx, ref))
	require.False(t, c.IsTrashed(ref))

	require.ErrorIs(t, c.Trash(ctx, "missing-ref"), ErrNotFound)
}

func TestMemoryClientListAndQuota(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient()

	ref1, err := c.Create(ctx, "a.txt", "text/plain", []byte("aaaa"))
	require.NoError(t, err)
	_, err = c.Create(ctx, "b.txt", "text/plain", []byte("bb"))
	require.NoError(t, err)
	require.NoError(t, c.Trash(ctx, ref1))

	active, err := c.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "b.txt", active[0].Name)

	trashed, err := c.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	require.Equal(t, "a.txt", trashed[0].Name)

	quota, err := c.Quota(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(6), quota.UsedBytes)
	require.Equal(t, int64(2), quota.ObjectCount)
}
