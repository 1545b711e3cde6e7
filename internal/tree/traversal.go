package tree

import (
	"context"

	"blobdrive/internal/models"
)

// collectSubtree gathers root and every node below it in breadth-first
// order using repeated child listings; the store has no native subtree
// query. The traversal is iterative so tree depth never grows the call
// stack, and it fails once maxTraversalNodes is exceeded rather than
// walking a pathological tree forever.
func (m *Manager) collectSubtree(ctx context.Context, ownerID int64, root *models.Node, includeTrashed bool) ([]models.Node, error) {
	nodes := []models.Node{*root}
	queue := []string{root.ID}

	for len(queue) > 0 {
		parentID := queue[0]
		queue = queue[1:]

		children, err := m.store.GetChildren(ctx, ownerID, &parentID, includeTrashed)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			nodes = append(nodes, child)
			if len(nodes) > m.maxTraversalNodes {
				return nil, validationErr("subtree of %s exceeds %d nodes", root.ID, m.maxTraversalNodes)
			}
			if child.IsFolder() {
				queue = append(queue, child.ID)
			}
		}
	}

	return nodes, nil
}

// isDescendant reports whether candidateID lies inside root's subtree
// (or is root itself). Trashed nodes are included: a trashed intermediate
// folder still anchors its children in the tree.
func (m *Manager) isDescendant(ctx context.Context, ownerID int64, root *models.Node, candidateID string) (bool, error) {
	if root.ID == candidateID {
		return true, nil
	}

	subtree, err := m.collectSubtree(ctx, ownerID, root, true)
	if err != nil {
		return false, err
	}

	for _, node := range subtree {
		if node.ID == candidateID {
			return true, nil
		}
	}

	return false, nil
}
