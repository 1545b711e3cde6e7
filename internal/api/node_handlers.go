package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	node, err := s.tree.CreateFolder(r.Context(), claims.UserID, req.Name, req.ParentID)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	s.publishNodeEvent(r.Context(), claims.UserID, "node_created", node)
	respondJSON(w, http.StatusCreated, node)
}

type CreateFileRequest struct {
	Name          string  `json:"name"`
	ParentID      *string `json:"parent_id"`
	MimeType      string  `json:"mime_type"`
	Content       string  `json:"content"`
	ContentBase64 string  `json:"content_base64"`
}

// CreateFileHandler accepts inline content; binary payloads come in as
// base64. Multipart upload transport lives in front of this service.
func (s *Server) CreateFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	content := []byte(req.Content)
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			http.Error(w, "Invalid base64 content", http.StatusBadRequest)
			return
		}
		content = decoded
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "text/plain"
	}

	node, err := s.tree.CreateFile(r.Context(), claims.UserID, req.Name, mimeType, content, req.ParentID)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	s.publishNodeEvent(r.Context(), claims.UserID, "node_created", node)
	respondJSON(w, http.StatusCreated, node)
}

type UpdateContentRequest struct {
	Content       string `json:"content"`
	ContentBase64 string `json:"content_base64"`
}

func (s *Server) UpdateContentHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	content := []byte(req.Content)
	if req.ContentBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			http.Error(w, "Invalid base64 content", http.StatusBadRequest)
			return
		}
		content = decoded
	}

	node, err := s.tree.UpdateFileContent(r.Context(), claims.UserID, nodeID, content)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	s.publishNodeEvent(r.Context(), claims.UserID, "node_updated", node)
	respondJSON(w, http.StatusOK, node)
}

// ListNodesHandler lists one directory level. scope is "root" (default),
// "trash", or a folder id via parent_id.
func (s *Server) ListNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	scope := r.URL.Query().Get("scope")
	if parentID := r.URL.Query().Get("parent_id"); parentID != "" {
		scope = parentID
	}
	if scope == "" {
		scope = "root"
	}

	nodes, err := s.tree.ListChildren(r.Context(), claims.UserID, scope)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nodes)
}

func (s *Server) SearchNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	pattern := r.URL.Query().Get("q")
	includeTrashed := r.URL.Query().Get("include_trashed") == "true"

	nodes, err := s.tree.Search(r.Context(), claims.UserID, pattern, includeTrashed)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nodes)
}

func (s *Server) SortNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sortBy := r.URL.Query().Get("by")
	if sortBy == "" {
		sortBy = "name"
	}
	descending := r.URL.Query().Get("order") == "desc"
	includeTrashed := r.URL.Query().Get("include_trashed") == "true"

	nodes, err := s.tree.Sort(r.Context(), claims.UserID, sortBy, descending, includeTrashed)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nodes)
}

func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	stream, node, err := s.tree.Stream(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Disposition", "attachment; filename=\""+node.Name+"\"")
	if node.MimeType != nil && *node.MimeType != "" {
		w.Header().Set("Content-Type", *node.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if node.SizeBytes != nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", *node.SizeBytes))
	}

	io.Copy(w, stream)
}

type UpdateNodeRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
	// MoveToRoot distinguishes "move to root" from "no move requested",
	// which a nullable parent_id alone cannot express.
	MoveToRoot bool `json:"move_to_root"`
}

// UpdateNodeHandler renames and/or moves a node.
func (s *Server) UpdateNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var updated bool

	if req.Name != nil {
		newName := strings.TrimSpace(*req.Name)
		node, err := s.tree.Rename(r.Context(), claims.UserID, nodeID, newName)
		if err != nil {
			s.writeTreeError(w, err)
			return
		}
		s.publishNodeEvent(r.Context(), claims.UserID, "node_renamed", node)
		updated = true
	}

	if req.ParentID != nil || req.MoveToRoot {
		node, err := s.tree.Move(r.Context(), claims.UserID, nodeID, req.ParentID)
		if err != nil {
			s.writeTreeError(w, err)
			return
		}
		s.publishNodeEvent(r.Context(), claims.UserID, "node_moved", node)
		updated = true
	}

	if !updated {
		http.Error(w, "No update operation specified (provide 'name', 'parent_id' or 'move_to_root')", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type CopyNodeRequest struct {
	TargetFolderID *string `json:"target_folder_id"`
}

func (s *Server) CopyNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req CopyNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	node, err := s.tree.Copy(r.Context(), claims.UserID, nodeID, req.TargetFolderID)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	s.publishNodeEvent(r.Context(), claims.UserID, "node_copied", node)
	respondJSON(w, http.StatusCreated, node)
}

// DeleteNodeHandler moves the node (and, for folders, its subtree) to the
// trash. Remote mirror failures are reported in the body but do not fail
// the request.
func (s *Server) DeleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	result, err := s.tree.Trash(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	s.publishNodeEvent(r.Context(), claims.UserID, "node_trashed", map[string]interface{}{"node_id": nodeID, "result": result})
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) QuotaHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	report, err := s.tree.Quota(r.Context(), claims.UserID)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
