// Package blob abstracts the external object-storage provider that holds
// file content. The metadata tree never stores bytes itself; file nodes
// carry an opaque ref into this namespace.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("blob not found")

type ObjectInfo struct {
	Ref          string
	Name         string
	SizeBytes    int64
	LastModified time.Time
	Trashed      bool
}

type QuotaInfo struct {
	UsedBytes   int64
	ObjectCount int64
}

// Client is the minimal provider contract the tree manager needs. All calls
// are remote and must be treated as fallible; which failures abort the local
// operation is decided per call site, not here.
type Client interface {
	Create(ctx context.Context, name, mimeType string, data []byte) (string, error)
	UpdateContent(ctx context.Context, ref string, data []byte) error
	Rename(ctx context.Context, ref, newName string) error
	Trash(ctx context.Context, ref string) error
	Untrash(ctx context.Context, ref string) error
	Delete(ctx context.Context, ref string) error
	Stream(ctx context.Context, ref string) (io.ReadCloser, error)
	List(ctx context.Context, trashed bool) ([]ObjectInfo, error)
	Quota(ctx context.Context) (*QuotaInfo, error)
}
