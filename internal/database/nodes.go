package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blobdrive/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateNodeName = errors.New("a node with the same name already exists in this folder")
	ErrNodeNotFound      = errors.New("node not found or user is not the owner")
)

const nodeColumns = "id, owner_id, parent_id, name, node_type, size_bytes, mime_type, blob_ref, created_at, updated_at, trashed_at"

func scanNode(row pgx.Row) (*models.Node, error) {
	var node models.Node
	err := row.Scan(
		&node.ID,
		&node.OwnerID,
		&node.ParentID,
		&node.Name,
		&node.NodeType,
		&node.SizeBytes,
		&node.MimeType,
		&node.BlobRef,
		&node.CreatedAt,
		&node.UpdatedAt,
		&node.TrashedAt,
	)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func collectNodes(rows pgx.Rows) ([]models.Node, error) {
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if nodes == nil {
		return []models.Node{}, nil
	}

	return nodes, nil
}

type CreateNodeParams struct {
	ID        string
	OwnerID   int64
	ParentID  *string
	Name      string
	NodeType  string
	SizeBytes *int64
	MimeType  *string
	BlobRef   *string
}

func (q *Queries) CreateNode(ctx context.Context, arg CreateNodeParams) (*models.Node, error) {
	query := `
		INSERT INTO nodes (id, owner_id, parent_id, name, node_type, size_bytes, mime_type, blob_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING ` + nodeColumns

	now := time.Now()
	row := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		arg.ParentID,
		arg.Name,
		arg.NodeType,
		arg.SizeBytes,
		arg.MimeType,
		arg.BlobRef,
		now,
	)

	node, err := scanNode(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateNodeName
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, fmt.Errorf("parent folder does not exist")
		}
		return nil, err
	}

	return node, nil
}

// GetNodeByID returns the node regardless of trash state. Callers decide
// whether a trashed node is acceptable for the operation at hand.
func (q *Queries) GetNodeByID(ctx context.Context, id string, ownerID int64) (*models.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = $1 AND owner_id = $2`

	node, err := scanNode(q.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return node, nil
}

func (q *Queries) NodeExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM nodes WHERE id = $1)"
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// GetChildren lists the direct children of parentID (nil means root).
// Trashed children are only included when includeTrashed is set; the
// tree manager needs them during restore and permanent delete traversal.
func (q *Queries) GetChildren(ctx context.Context, ownerID int64, parentID *string, includeTrashed bool) ([]models.Node, error) {
	var rows pgx.Rows
	var err error

	trashFilter := " AND trashed_at IS NULL"
	if includeTrashed {
		trashFilter = ""
	}

	if parentID == nil {
		query := `SELECT ` + nodeColumns + `
				 FROM nodes
				 WHERE owner_id = $1 AND parent_id IS NULL` + trashFilter + `
				 ORDER BY node_type DESC, name`
		rows, err = q.db.Query(ctx, query, ownerID)
	} else {
		query := `SELECT ` + nodeColumns + `
				 FROM nodes
				 WHERE owner_id = $1 AND parent_id = $2` + trashFilter + `
				 ORDER BY node_type DESC, name`
		rows, err = q.db.Query(ctx, query, ownerID, *parentID)
	}

	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}

func (q *Queries) ListTrash(ctx context.Context, ownerID int64) ([]models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE owner_id = $1 AND trashed_at IS NOT NULL
		ORDER BY trashed_at DESC`

	rows, err := q.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}

func (q *Queries) RenameNode(ctx context.Context, id string, ownerID int64, newName string) (bool, error) {
	query := `
		UPDATE nodes
		SET name = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND trashed_at IS NULL
	`
	res, err := q.db.Exec(ctx, query, newName, time.Now(), id, ownerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrDuplicateNodeName
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// SetParent moves the node to a new parent (nil means root). Only the moved
// node's own row changes; its subtree stays attached through unchanged ids.
func (q *Queries) SetParent(ctx context.Context, id string, ownerID int64, newParentID *string) (bool, error) {
	query := `
		UPDATE nodes
		SET parent_id = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND trashed_at IS NULL
	`
	res, err := q.db.Exec(ctx, query, newParentID, time.Now(), id, ownerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, fmt.Errorf("target folder does not exist")
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrDuplicateNodeName
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// SetTrashed flips the soft-delete flag for a single node. A nil timestamp
// restores the node. The parent pointer is left untouched, so the subtree
// shape survives a trash/restore round trip.
func (q *Queries) SetTrashed(ctx context.Context, id string, ownerID int64, trashedAt *time.Time) (bool, error) {
	query := `
		UPDATE nodes
		SET trashed_at = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4
	`
	res, err := q.db.Exec(ctx, query, trashedAt, time.Now(), id, ownerID)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) SetBlobRef(ctx context.Context, id string, ownerID int64, blobRef string) (bool, error) {
	query := `
		UPDATE nodes
		SET blob_ref = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND node_type = 'file'
	`
	res, err := q.db.Exec(ctx, query, blobRef, time.Now(), id, ownerID)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) SetFileSize(ctx context.Context, id string, ownerID int64, sizeBytes int64) (bool, error) {
	query := `
		UPDATE nodes
		SET size_bytes = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4 AND node_type = 'file'
	`
	res, err := q.db.Exec(ctx, query, sizeBytes, time.Now(), id, ownerID)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// DeleteNode removes a single row. Children must be deleted first; the
// parent_id foreign key rejects orphaning deletes.
func (q *Queries) DeleteNode(ctx context.Context, id string, ownerID int64) (bool, error) {
	query := `DELETE FROM nodes WHERE id = $1 AND owner_id = $2`
	res, err := q.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// CountNodesByBlobRef counts the nodes sharing one remote object. Copies
// alias the source blob, so the remote object may only be deleted when the
// last referencing node goes away.
func (q *Queries) CountNodesByBlobRef(ctx context.Context, blobRef string) (int, error) {
	var count int
	query := `SELECT count(*) FROM nodes WHERE blob_ref = $1`
	err := q.db.QueryRow(ctx, query, blobRef).Scan(&count)
	return count, err
}

func (q *Queries) SearchNodes(ctx context.Context, ownerID int64, namePattern string, includeTrashed bool) ([]models.Node, error) {
	trashFilter := " AND trashed_at IS NULL"
	if includeTrashed {
		trashFilter = ""
	}

	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%'` + trashFilter + `
		ORDER BY node_type DESC, name`

	rows, err := q.db.Query(ctx, query, ownerID, namePattern)
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}

// ListNodes returns all of an owner's nodes ordered by the requested key.
// Sorting by kind groups folders before files, with name as the secondary
// key; the column whitelist keeps the ORDER BY clause injection-safe.
func (q *Queries) ListNodes(ctx context.Context, ownerID int64, sortBy string, descending bool, includeTrashed bool) ([]models.Node, error) {
	direction := "ASC"
	if descending {
		direction = "DESC"
	}

	var orderClause string
	switch sortBy {
	case "name":
		orderClause = "name " + direction
	case "kind":
		// node_type DESC puts 'folder' before 'file'.
		kindDir := "DESC"
		if descending {
			kindDir = "ASC"
		}
		orderClause = "node_type " + kindDir + ", name ASC"
	case "size":
		orderClause = "size_bytes " + direction + " NULLS LAST, name ASC"
	default:
		return nil, fmt.Errorf("unsupported sort key %q", sortBy)
	}

	trashFilter := " AND trashed_at IS NULL"
	if includeTrashed {
		trashFilter = ""
	}

	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE owner_id = $1` + trashFilter + `
		ORDER BY ` + orderClause

	rows, err := q.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}
