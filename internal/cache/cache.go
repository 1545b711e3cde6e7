// Package cache is a TTL key-value layer in front of metadata reads.
// Failures here must never fail the primary operation; callers log and
// move on.
package cache

import (
	"fmt"
	"time"
)

type Cache interface {
	Get(key string) ([]byte, bool)
	SetWithTTL(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// Key builders. Keys are deterministic so any mutation can compute exactly
// which entries it may have staled.

func NodeKey(nodeID string) string {
	return "node:" + nodeID
}

// ChildrenKey covers one listing; parentID nil means the root listing.
func ChildrenKey(ownerID int64, parentID *string) string {
	if parentID == nil {
		return fmt.Sprintf("children:%d:root", ownerID)
	}
	return fmt.Sprintf("children:%d:%s", ownerID, *parentID)
}

func TrashKey(ownerID int64) string {
	return fmt.Sprintf("trash:%d", ownerID)
}

func ListKey(ownerID int64, sortBy string, descending bool, includeTrashed bool) string {
	return fmt.Sprintf("list:%d:%s:%t:%t", ownerID, sortBy, descending, includeTrashed)
}
