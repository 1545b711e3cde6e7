package tree

import (
	"context"
	"errors"
	"strings"

	"blobdrive/internal/cache"
	"blobdrive/internal/database"
	"blobdrive/internal/models"

	"go.uber.org/zap"
)

// CopyNamePrefix is prepended to the name of every node a copy creates.
const CopyNamePrefix = "copy_of_"

// CreateFolder creates an empty folder under parentID (nil means root).
// Folders have no remote mirror.
func (m *Manager) CreateFolder(ctx context.Context, ownerID int64, name string, parentID *string) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("folder name cannot be empty")
	}

	if err := m.validateParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	id, err := m.generateUniqueID(ctx)
	if err != nil {
		return nil, err
	}

	node, err := m.store.CreateNode(ctx, database.CreateNodeParams{
		ID:       id,
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     name,
		NodeType: models.NodeTypeFolder,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateNodeName) {
			return nil, validationErr("a node named %q already exists here", name)
		}
		return nil, err
	}

	m.invalidate(cache.ChildrenKey(ownerID, parentID))
	m.invalidateListings(ownerID)

	return node, nil
}

// CreateFile writes the content to the blob provider first, then records
// the metadata. If the metadata write fails the remote object is orphaned;
// that is logged and accepted, because the metadata store is authoritative
// for listings and a retry creates a fresh object.
func (m *Manager) CreateFile(ctx context.Context, ownerID int64, name, mimeType string, content []byte, parentID *string) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("file name cannot be empty")
	}

	if err := m.validateParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	if err := m.checkQuota(ctx, ownerID, int64(len(content))); err != nil {
		return nil, err
	}

	ref, err := m.blobs.Create(ctx, name, mimeType, content)
	if err != nil {
		return nil, remoteErr("", "blob.create", err)
	}

	id, err := m.generateUniqueID(ctx)
	if err != nil {
		return nil, err
	}

	size := int64(len(content))
	node, err := m.store.CreateNode(ctx, database.CreateNodeParams{
		ID:        id,
		OwnerID:   ownerID,
		ParentID:  parentID,
		Name:      name,
		NodeType:  models.NodeTypeFile,
		SizeBytes: &size,
		MimeType:  &mimeType,
		BlobRef:   &ref,
	})
	if err != nil {
		m.logger.Warn("orphaned remote object after metadata failure",
			zap.String("blob_ref", ref),
			zap.String("name", name),
			zap.Error(err))
		if errors.Is(err, database.ErrDuplicateNodeName) {
			return nil, validationErr("a node named %q already exists here", name)
		}
		return nil, err
	}

	if err := m.store.UpdateUserStorage(ctx, ownerID, size); err != nil {
		m.logger.Warn("failed to update storage accounting", zap.Int64("owner", ownerID), zap.Error(err))
	}

	m.invalidate(cache.ChildrenKey(ownerID, parentID))
	m.invalidateListings(ownerID)

	return node, nil
}

func (m *Manager) checkQuota(ctx context.Context, ownerID int64, addedBytes int64) error {
	user, err := m.store.GetUserByID(ctx, ownerID)
	if err != nil {
		return err
	}
	if user == nil {
		return validationErr("unknown user %d", ownerID)
	}
	if user.StorageQuotaBytes > 0 && user.StorageUsedBytes+addedBytes > user.StorageQuotaBytes {
		return validationErr("storage quota exceeded")
	}
	return nil
}

// UpdateFileContent replaces a file's remote content. The remote write is
// blocking: local size metadata is only touched after it succeeds.
func (m *Manager) UpdateFileContent(ctx context.Context, ownerID int64, id string, content []byte) (*models.Node, error) {
	node, err := m.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if node.IsFolder() {
		return nil, validationErr("cannot write content to a folder")
	}
	if node.Trashed() {
		return nil, validationErr("node %s is in the trash", id)
	}

	oldSize := int64(0)
	if node.SizeBytes != nil {
		oldSize = *node.SizeBytes
	}
	newSize := int64(len(content))
	if err := m.checkQuota(ctx, ownerID, newSize-oldSize); err != nil {
		return nil, err
	}

	if node.BlobRef == nil {
		// First write for a metadata-only file: create the remote object now.
		mimeType := "application/octet-stream"
		if node.MimeType != nil {
			mimeType = *node.MimeType
		}
		ref, err := m.blobs.Create(ctx, node.Name, mimeType, content)
		if err != nil {
			return nil, remoteErr(id, "blob.create", err)
		}
		if _, err := m.store.SetBlobRef(ctx, id, ownerID, ref); err != nil {
			m.logger.Warn("orphaned remote object after metadata failure",
				zap.String("blob_ref", ref), zap.Error(err))
			return nil, err
		}
		node.BlobRef = &ref
	} else {
		if err := m.blobs.UpdateContent(ctx, *node.BlobRef, content); err != nil {
			return nil, remoteErr(id, "blob.update", err)
		}
	}

	if _, err := m.store.SetFileSize(ctx, id, ownerID, newSize); err != nil {
		return nil, err
	}
	if err := m.store.UpdateUserStorage(ctx, ownerID, newSize-oldSize); err != nil {
		m.logger.Warn("failed to update storage accounting", zap.Int64("owner", ownerID), zap.Error(err))
	}

	node.SizeBytes = &newSize
	m.invalidate(cache.NodeKey(id), cache.ChildrenKey(ownerID, node.ParentID))
	m.invalidateListings(ownerID)

	return node, nil
}

// Rename changes a node's display name. For files the remote rename goes
// first; if it fails the local name is left untouched so the two sides
// never diverge.
func (m *Manager) Rename(ctx context.Context, ownerID int64, id, newName string) (*models.Node, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, validationErr("name cannot be empty")
	}

	node, err := m.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if node.Trashed() {
		return nil, validationErr("node %s is in the trash", id)
	}

	if !node.IsFolder() && node.BlobRef != nil {
		if err := m.blobs.Rename(ctx, *node.BlobRef, newName); err != nil {
			return nil, remoteErr(id, "blob.rename", err)
		}
	}

	ok, err := m.store.RenameNode(ctx, id, ownerID, newName)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateNodeName) {
			return nil, validationErr("a node named %q already exists here", newName)
		}
		return nil, err
	}
	if !ok {
		return nil, notFoundErr(id)
	}

	node.Name = newName
	m.invalidate(cache.NodeKey(id), cache.ChildrenKey(ownerID, node.ParentID))
	m.invalidateListings(ownerID)

	return node, nil
}

// Move reparents a node. Only the moved node's own parent pointer changes;
// its subtree follows for free because children reference the moved node's
// unchanged id. The descendant check walks the source subtree, which is the
// required correctness check against creating a cycle.
func (m *Manager) Move(ctx context.Context, ownerID int64, id string, newParentID *string) (*models.Node, error) {
	node, err := m.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if node.Trashed() {
		return nil, validationErr("node %s is in the trash", id)
	}

	if newParentID != nil {
		if err := m.validateParent(ctx, ownerID, newParentID); err != nil {
			return nil, err
		}
		if node.IsFolder() {
			inside, err := m.isDescendant(ctx, ownerID, node, *newParentID)
			if err != nil {
				return nil, err
			}
			if inside {
				return nil, validationErr("cannot move %s into its own subtree", id)
			}
		}
	}

	oldParentID := node.ParentID
	ok, err := m.store.SetParent(ctx, id, ownerID, newParentID)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateNodeName) {
			return nil, validationErr("a node named %q already exists in the target folder", node.Name)
		}
		return nil, err
	}
	if !ok {
		return nil, notFoundErr(id)
	}

	node.ParentID = newParentID
	m.invalidate(cache.NodeKey(id),
		cache.ChildrenKey(ownerID, oldParentID),
		cache.ChildrenKey(ownerID, newParentID))
	m.invalidateListings(ownerID)

	return node, nil
}

// Copy duplicates a node (recursively for folders) under the target folder.
// Every copy gets a fresh id; file copies deliberately alias the source's
// remote object instead of duplicating bytes, and permanent delete counts
// references before removing a shared blob. The source subtree is
// snapshotted before any copy is created so copying into a descendant of
// the source cannot recurse into its own output.
func (m *Manager) Copy(ctx context.Context, ownerID int64, sourceID string, targetFolderID *string) (*models.Node, error) {
	source, err := m.getNode(ctx, ownerID, sourceID)
	if err != nil {
		return nil, err
	}
	if source.Trashed() {
		return nil, validationErr("node %s is in the trash", sourceID)
	}

	if err := m.validateParent(ctx, ownerID, targetFolderID); err != nil {
		return nil, err
	}

	subtree, err := m.collectSubtree(ctx, ownerID, source, false)
	if err != nil {
		return nil, err
	}

	// BFS order guarantees a parent's copy exists before its children's.
	idMap := make(map[string]string, len(subtree))
	var topNode *models.Node

	for _, src := range subtree {
		newID, err := m.generateUniqueID(ctx)
		if err != nil {
			return nil, err
		}
		idMap[src.ID] = newID

		name := CopyNamePrefix + src.Name
		parentID := targetFolderID
		if src.ID != source.ID {
			mapped := idMap[*src.ParentID]
			parentID = &mapped
		}

		created, err := m.store.CreateNode(ctx, database.CreateNodeParams{
			ID:        newID,
			OwnerID:   ownerID,
			ParentID:  parentID,
			Name:      name,
			NodeType:  src.NodeType,
			SizeBytes: src.SizeBytes,
			MimeType:  src.MimeType,
			BlobRef:   src.BlobRef,
		})
		if err != nil {
			if errors.Is(err, database.ErrDuplicateNodeName) {
				return nil, validationErr("a node named %q already exists in the target folder", name)
			}
			return nil, err
		}

		if src.ID == source.ID {
			topNode = created
		}
	}

	m.invalidate(cache.ChildrenKey(ownerID, targetFolderID))
	m.invalidateListings(ownerID)

	return topNode, nil
}
