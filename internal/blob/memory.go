package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryObject struct {
	name     string
	mimeType string
	data     []byte
	modified time.Time
	trashed  bool
}

// MemoryClient is an in-process Client used by tests and the "memory"
// storage backend. It mirrors the S3 client's semantics, including
// idempotent delete and streamable trashed objects.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{objects: make(map[string]*memoryObject)}
}

func (c *MemoryClient) Create(_ context.Context, name, mimeType string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref := uuid.NewString()
	c.objects[ref] = &memoryObject{
		name:     name,
		mimeType: mimeType,
		data:     append([]byte(nil), data...),
		modified: time.Now(),
	}
	return ref, nil
}

func (c *MemoryClient) UpdateContent(_ context.Context, ref string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.objects[ref]
	if !ok || obj.trashed {
		return fmt.Errorf("object %s: %w", ref, ErrNotFound)
	}
	obj.data = append([]byte(nil), data...)
	obj.modified = time.Now()
	return nil
}

func (c *MemoryClient) Rename(_ context.Context, ref, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.objects[ref]
	if !ok {
		return fmt.Errorf("object %s: %w", ref, ErrNotFound)
	}
	obj.name = newName
	return nil
}

func (c *MemoryClient) Trash(_ context.Context, ref string) error {
	return c.setTrashed(ref, true)
}

func (c *MemoryClient) Untrash(_ context.Context, ref string) error {
	return c.setTrashed(ref, false)
}

func (c *MemoryClient) setTrashed(ref string, trashed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj, ok := c.objects[ref]
	if !ok {
		return fmt.Errorf("object %s: %w", ref, ErrNotFound)
	}
	obj.trashed = trashed
	return nil
}

func (c *MemoryClient) Delete(_ context.Context, ref string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.objects, ref)
	return nil
}

func (c *MemoryClient) Stream(_ context.Context, ref string) (io.ReadCloser, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	obj, ok := c.objects[ref]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", ref, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (c *MemoryClient) List(_ context.Context, trashed bool) ([]ObjectInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var infos []ObjectInfo
	for ref, obj := range c.objects {
		if obj.trashed != trashed {
			continue
		}
		infos = append(infos, ObjectInfo{
			Ref:          ref,
			Name:         obj.name,
			SizeBytes:    int64(len(obj.data)),
			LastModified: obj.modified,
			Trashed:      obj.trashed,
		})
	}
	return infos, nil
}

func (c *MemoryClient) Quota(_ context.Context) (*QuotaInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var quota QuotaInfo
	for _, obj := range c.objects {
		quota.UsedBytes += int64(len(obj.data))
		quota.ObjectCount++
	}
	return &quota, nil
}

// Exists reports whether a ref is present, used by tests to assert remote
// state after tree operations.
func (c *MemoryClient) Exists(ref string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[ref]
	return ok
}

// IsTrashed reports the remote trash flag for tests.
func (c *MemoryClient) IsTrashed(ref string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[ref]
	return ok && obj.trashed
}
