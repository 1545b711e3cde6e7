// Package tree orchestrates structural operations over the metadata store,
// the blob-storage provider and the read cache. The metadata store is the
// source of truth for structure; remote calls mirror it with a per-operation
// consistency policy (see the trash and delete operations).
package tree

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"blobdrive/internal/blob"
	"blobdrive/internal/cache"
	"blobdrive/internal/database"
	"blobdrive/internal/models"

	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

const (
	// ScopeRoot lists nodes with a nil parent; ScopeTrash lists every
	// trashed node regardless of parent.
	ScopeRoot  = "root"
	ScopeTrash = "trash"

	nodeIDLength = 21

	defaultMaxTraversalNodes = 100_000
	defaultCacheTTL          = 30 * time.Second
)

// Store is the metadata access the manager needs. *database.Store satisfies
// it; tests substitute an in-memory implementation.
type Store interface {
	CreateNode(ctx context.Context, arg database.CreateNodeParams) (*models.Node, error)
	GetNodeByID(ctx context.Context, id string, ownerID int64) (*models.Node, error)
	NodeExists(ctx context.Context, id string) (bool, error)
	GetChildren(ctx context.Context, ownerID int64, parentID *string, includeTrashed bool) ([]models.Node, error)
	ListTrash(ctx context.Context, ownerID int64) ([]models.Node, error)
	RenameNode(ctx context.Context, id string, ownerID int64, newName string) (bool, error)
	SetParent(ctx context.Context, id string, ownerID int64, newParentID *string) (bool, error)
	SetTrashed(ctx context.Context, id string, ownerID int64, trashedAt *time.Time) (bool, error)
	SetBlobRef(ctx context.Context, id string, ownerID int64, blobRef string) (bool, error)
	SetFileSize(ctx context.Context, id string, ownerID int64, sizeBytes int64) (bool, error)
	DeleteNode(ctx context.Context, id string, ownerID int64) (bool, error)
	CountNodesByBlobRef(ctx context.Context, blobRef string) (int, error)
	SearchNodes(ctx context.Context, ownerID int64, namePattern string, includeTrashed bool) ([]models.Node, error)
	ListNodes(ctx context.Context, ownerID int64, sortBy string, descending bool, includeTrashed bool) ([]models.Node, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserStorage(ctx context.Context, userID int64, bytesChange int64) error
}

type Manager struct {
	store  Store
	blobs  blob.Client
	cache  cache.Cache
	logger *zap.Logger

	maxTraversalNodes int
	cacheTTL          time.Duration
	newID             func() string
}

type Option func(*Manager)

// WithMaxTraversalNodes caps how many nodes a single recursive operation
// may visit before failing instead of walking a pathological subtree.
func WithMaxTraversalNodes(n int) Option {
	return func(m *Manager) { m.maxTraversalNodes = n }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.cacheTTL = ttl }
}

// WithIDGenerator overrides node id generation, used by tests for
// deterministic ids.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

func NewManager(store Store, blobs blob.Client, c cache.Cache, logger *zap.Logger, opts ...Option) (*Manager, error) {
	generate, err := nanoid.Standard(nodeIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	m := &Manager{
		store:             store,
		blobs:             blobs,
		cache:             c,
		logger:            logger,
		maxTraversalNodes: defaultMaxTraversalNodes,
		cacheTTL:          defaultCacheTTL,
		newID:             generate,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *Manager) generateUniqueID(ctx context.Context) (string, error) {
	const maxRetries = 10

	for i := 0; i < maxRetries; i++ {
		id := m.newID()
		exists, err := m.store.NodeExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check for node existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

// getNode fetches a node and maps absence onto the typed error.
func (m *Manager) getNode(ctx context.Context, ownerID int64, id string) (*models.Node, error) {
	node, err := m.store.GetNodeByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, notFoundErr(id)
	}
	return node, nil
}

// validateParent checks that parentID (nil means root) points at an
// existing, non-trashed folder.
func (m *Manager) validateParent(ctx context.Context, ownerID int64, parentID *string) error {
	if parentID == nil {
		return nil
	}

	parent, err := m.store.GetNodeByID(ctx, *parentID, ownerID)
	if err != nil {
		return err
	}
	if parent == nil {
		return notFoundErr(*parentID)
	}
	if !parent.IsFolder() {
		return validationErr("target %s is not a folder", *parentID)
	}
	if parent.Trashed() {
		return validationErr("target folder %s is in the trash", *parentID)
	}

	return nil
}

// cachedNodes wraps a listing query with the read cache. Cache failures are
// logged and never surfaced; a corrupt entry is treated as a miss.
func (m *Manager) cachedNodes(ctx context.Context, key string, fetch func(context.Context) ([]models.Node, error)) ([]models.Node, error) {
	if data, ok := m.cache.Get(key); ok {
		var nodes []models.Node
		if err := json.Unmarshal(data, &nodes); err == nil {
			return nodes, nil
		}
		m.logger.Warn("dropping corrupt cache entry", zap.String("key", key))
		m.invalidate(key)
	}

	nodes, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(nodes); err == nil {
		if err := m.cache.SetWithTTL(key, data, m.cacheTTL); err != nil {
			m.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	return nodes, nil
}

func (m *Manager) invalidate(keys ...string) {
	for _, key := range keys {
		if err := m.cache.Delete(key); err != nil {
			m.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// invalidateListings drops every listing entry an owner could have cached.
// The sort key space is small enough to enumerate.
func (m *Manager) invalidateListings(ownerID int64) {
	m.invalidate(cache.TrashKey(ownerID))
	for _, by := range []string{"name", "kind", "size"} {
		for _, desc := range []bool{false, true} {
			for _, trashed := range []bool{false, true} {
				m.invalidate(cache.ListKey(ownerID, by, desc, trashed))
			}
		}
	}
}

// ListChildren serves one directory level. Scope is "root", "trash", or a
// folder id; trashed nodes only appear in the trash scope.
func (m *Manager) ListChildren(ctx context.Context, ownerID int64, scope string) ([]models.Node, error) {
	switch scope {
	case ScopeRoot:
		return m.cachedNodes(ctx, cache.ChildrenKey(ownerID, nil), func(ctx context.Context) ([]models.Node, error) {
			return m.store.GetChildren(ctx, ownerID, nil, false)
		})
	case ScopeTrash:
		return m.cachedNodes(ctx, cache.TrashKey(ownerID), func(ctx context.Context) ([]models.Node, error) {
			return m.store.ListTrash(ctx, ownerID)
		})
	default:
		node, err := m.getNode(ctx, ownerID, scope)
		if err != nil {
			return nil, err
		}
		if !node.IsFolder() {
			return nil, validationErr("node %s is not a folder", scope)
		}
		return m.cachedNodes(ctx, cache.ChildrenKey(ownerID, &node.ID), func(ctx context.Context) ([]models.Node, error) {
			return m.store.GetChildren(ctx, ownerID, &node.ID, false)
		})
	}
}

// Search matches node names case-insensitively by substring.
func (m *Manager) Search(ctx context.Context, ownerID int64, namePattern string, includeTrashed bool) ([]models.Node, error) {
	if namePattern == "" {
		return nil, validationErr("search pattern cannot be empty")
	}
	return m.store.SearchNodes(ctx, ownerID, namePattern, includeTrashed)
}

// Sort lists all of an owner's nodes ordered by name, kind or size. Kind
// ordering groups folders before files with name as the tie-break.
func (m *Manager) Sort(ctx context.Context, ownerID int64, sortBy string, descending bool, includeTrashed bool) ([]models.Node, error) {
	switch sortBy {
	case "name", "kind", "size":
	default:
		return nil, validationErr("unsupported sort key %q", sortBy)
	}

	return m.cachedNodes(ctx, cache.ListKey(ownerID, sortBy, descending, includeTrashed), func(ctx context.Context) ([]models.Node, error) {
		return m.store.ListNodes(ctx, ownerID, sortBy, descending, includeTrashed)
	})
}

// Stream opens the remote content of a file node.
func (m *Manager) Stream(ctx context.Context, ownerID int64, id string) (io.ReadCloser, *models.Node, error) {
	node, err := m.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	if node.IsFolder() {
		return nil, nil, validationErr("cannot stream a folder")
	}
	if node.BlobRef == nil {
		return nil, nil, notFoundErr(id)
	}

	rc, err := m.blobs.Stream(ctx, *node.BlobRef)
	if err != nil {
		return nil, nil, remoteErr(id, "blob.stream", err)
	}

	return rc, node, nil
}

// QuotaReport combines the locally accounted usage with what the provider
// reports for the whole bucket.
type QuotaReport struct {
	StorageUsedBytes  int64 `json:"storage_used_bytes"`
	StorageQuotaBytes int64 `json:"storage_quota_bytes"`
	RemoteUsedBytes   int64 `json:"remote_used_bytes"`
	RemoteObjectCount int64 `json:"remote_object_count"`
}

func (m *Manager) Quota(ctx context.Context, ownerID int64) (*QuotaReport, error) {
	user, err := m.store.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, validationErr("unknown user %d", ownerID)
	}

	report := &QuotaReport{
		StorageUsedBytes:  user.StorageUsedBytes,
		StorageQuotaBytes: user.StorageQuotaBytes,
	}

	quota, err := m.blobs.Quota(ctx)
	if err != nil {
		// Provider-side usage is informational; local accounting stands on
		// its own.
		m.logger.Warn("failed to query provider quota", zap.Error(err))
		return report, nil
	}
	report.RemoteUsedBytes = quota.UsedBytes
	report.RemoteObjectCount = quota.ObjectCount

	return report, nil
}
