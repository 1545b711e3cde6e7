package tree

import (
	"context"
	"time"

	"blobdrive/internal/cache"
	"blobdrive/internal/models"

	"go.uber.org/zap"
)

// RemoteFailure records one blob call that failed during a recursive
// operation that kept going.
type RemoteFailure struct {
	NodeID string `json:"node_id"`
	Phase  string `json:"phase"`
	Error  string `json:"error"`
}

// Result reports which nodes a recursive operation touched and which
// remote calls failed along the way. A non-empty RemoteFailures list with
// no error means the local state change completed (partial success).
type Result struct {
	NodeIDs        []string        `json:"node_ids"`
	RemoteFailures []RemoteFailure `json:"remote_failures,omitempty"`
}

// Partial reports whether some remote mirror calls failed.
func (r *Result) Partial() bool {
	return len(r.RemoteFailures) > 0
}

// Trash soft-deletes a node and, for folders, its whole subtree. Children
// are flagged before their parent so a reader never sees an active node
// under a trashed one. The remote trash call per file is best-effort: a
// provider failure is recorded and logged but never blocks the local flag,
// favoring availability (the permanent delete path retries the remote
// side). Trashing an already-trashed node is a no-op success.
func (m *Manager) Trash(ctx context.Context, ownerID int64, id string) (*Result, error) {
	node, err := m.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if node.Trashed() {
		return result, nil
	}

	subtree, err := m.collectSubtree(ctx, ownerID, node, true)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	// Reverse BFS order: deepest nodes first, the requested node last.
	for i := len(subtree) - 1; i >= 0; i-- {
		n := subtree[i]
		if n.Trashed() {
			continue
		}

		if !n.IsFolder() && n.BlobRef != nil {
			if err := m.blobs.Trash(ctx, *n.BlobRef); err != nil {
				result.RemoteFailures = append(result.RemoteFailures, RemoteFailure{
					NodeID: n.ID, Phase: "blob.trash", Error: err.Error(),
				})
				m.logger.Warn("remote trash failed, keeping local state authoritative",
					zap.String("node_id", n.ID),
					zap.String("blob_ref", *n.BlobRef),
					zap.Error(err))
			}
		}

		if _, err := m.store.SetTrashed(ctx, n.ID, ownerID, &now); err != nil {
			return result, err
		}
		result.NodeIDs = append(result.NodeIDs, n.ID)
		m.invalidate(cache.NodeKey(n.ID), cache.ChildrenKey(ownerID, n.ParentID))
		if n.IsFolder() {
			m.invalidate(cache.ChildrenKey(ownerID, &n.ID))
		}
	}

	m.invalidateListings(ownerID)

	return result, nil
}

// Restore is the inverse of Trash: it un-flags every trashed descendant
// and then the node itself, attempting a best-effort remote untrash per
// file. Restoring an active node is a no-op success.
func (m *Manager) Restore(ctx context.Context, ownerID int64, id string) (*Result, error) {
	node, err := m.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if !node.Trashed() {
		return result, nil
	}

	subtree, err := m.collectSubtree(ctx, ownerID, node, true)
	if err != nil {
		return nil, err
	}

	for i := len(subtree) - 1; i >= 0; i-- {
		n := subtree[i]
		if !n.Trashed() {
			continue
		}

		if !n.IsFolder() && n.BlobRef != nil {
			if err := m.blobs.Untrash(ctx, *n.BlobRef); err != nil {
				result.RemoteFailures = append(result.RemoteFailures, RemoteFailure{
					NodeID: n.ID, Phase: "blob.untrash", Error: err.Error(),
				})
				m.logger.Warn("remote untrash failed, keeping local state authoritative",
					zap.String("node_id", n.ID),
					zap.String("blob_ref", *n.BlobRef),
					zap.Error(err))
			}
		}

		if _, err := m.store.SetTrashed(ctx, n.ID, ownerID, nil); err != nil {
			return result, err
		}
		result.NodeIDs = append(result.NodeIDs, n.ID)
		m.invalidate(cache.NodeKey(n.ID), cache.ChildrenKey(ownerID, n.ParentID))
		if n.IsFolder() {
			m.invalidate(cache.ChildrenKey(ownerID, &n.ID))
		}
	}

	m.invalidateListings(ownerID)

	return result, nil
}

// DeletePermanent irreversibly removes a node. A file must already be in
// the trash; the remote delete is blocking, because silently orphaning an
// object the user can never delete again is worse than failing. Folders
// are deleted children-first so no row ever points at a deleted parent;
// the first remote failure aborts the remaining traversal with the partial
// result so the caller can retry.
func (m *Manager) DeletePermanent(ctx context.Context, ownerID int64, id string) (*Result, error) {
	node, err := m.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	if !node.IsFolder() {
		if !node.Trashed() {
			return nil, preconditionErr(id, "file must be trashed before permanent deletion")
		}
		if err := m.deleteFileNode(ctx, ownerID, node, result); err != nil {
			return result, err
		}
		m.invalidateListings(ownerID)
		return result, nil
	}

	subtree, err := m.collectSubtree(ctx, ownerID, node, true)
	if err != nil {
		return nil, err
	}

	for i := len(subtree) - 1; i >= 0; i-- {
		n := subtree[i]
		if n.IsFolder() {
			if _, err := m.store.DeleteNode(ctx, n.ID, ownerID); err != nil {
				return result, err
			}
			result.NodeIDs = append(result.NodeIDs, n.ID)
			m.invalidate(cache.NodeKey(n.ID),
				cache.ChildrenKey(ownerID, n.ParentID),
				cache.ChildrenKey(ownerID, &n.ID))
			continue
		}

		if err := m.deleteFileNode(ctx, ownerID, &n, result); err != nil {
			m.invalidateListings(ownerID)
			return result, err
		}
	}

	m.invalidateListings(ownerID)

	return result, nil
}

// deleteFileNode removes one file node. The remote object is only deleted
// when this node holds the last reference to it; copies alias blobs, so an
// eager delete would break the copy's content link.
func (m *Manager) deleteFileNode(ctx context.Context, ownerID int64, node *models.Node, result *Result) error {
	if node.BlobRef != nil {
		refs, err := m.store.CountNodesByBlobRef(ctx, *node.BlobRef)
		if err != nil {
			return err
		}
		if refs <= 1 {
			if err := m.blobs.Delete(ctx, *node.BlobRef); err != nil {
				return remoteErr(node.ID, "blob.delete", err)
			}
		}
	}

	if _, err := m.store.DeleteNode(ctx, node.ID, ownerID); err != nil {
		return err
	}
	result.NodeIDs = append(result.NodeIDs, node.ID)

	if node.SizeBytes != nil {
		if err := m.store.UpdateUserStorage(ctx, ownerID, -*node.SizeBytes); err != nil {
			m.logger.Warn("failed to update storage accounting", zap.Int64("owner", ownerID), zap.Error(err))
		}
	}

	m.invalidate(cache.NodeKey(node.ID), cache.ChildrenKey(ownerID, node.ParentID))
	return nil
}
