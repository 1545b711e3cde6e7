package models

import "time"

const (
	NodeTypeFile   = "file"
	NodeTypeFolder = "folder"
)

// Node is a single entry in the metadata tree. Folders are purely local;
// files additionally point at a remote object through BlobRef.
type Node struct {
	ID        string     `json:"id"`
	OwnerID   int64      `json:"owner_id"`
	ParentID  *string    `json:"parent_id"`
	Name      string     `json:"name"`
	NodeType  string     `json:"node_type"`
	SizeBytes *int64     `json:"size_bytes,omitempty"`
	MimeType  *string    `json:"mime_type,omitempty"`
	BlobRef   *string    `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	TrashedAt *time.Time `json:"trashed_at,omitempty"`
}

func (n *Node) IsFolder() bool {
	return n.NodeType == NodeTypeFolder
}

// Trashed reports the soft-delete state.
func (n *Node) Trashed() bool {
	return n.TrashedAt != nil
}
