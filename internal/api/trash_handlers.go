package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// @Summary      List trash contents
// @Description  Retrieves all nodes currently in the user's trash.
// @Tags         trash
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Node
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /trash [get]
func (s *Server) ListTrashHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	nodes, err := s.tree.ListChildren(r.Context(), claims.UserID, "trash")
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nodes)
}

// @Summary      Restore a node from trash
// @Description  Restores a node (and, for folders, its trashed subtree) back to the live tree.
// @Tags         trash
// @Security     BearerAuth
// @Param        nodeId   path      string  true  "Node ID to restore"
// @Success      200      {object}  tree.Result
// @Failure      401      {string}  string "Unauthorized"
// @Failure      404      {string}  string "Not Found"
// @Failure      500      {string}  string "Internal Server Error"
// @Router       /nodes/{nodeId}/restore [post]
func (s *Server) RestoreNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	result, err := s.tree.Restore(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.writeTreeError(w, err)
		return
	}

	s.publishNodeEvent(r.Context(), claims.UserID, "node_restored", map[string]interface{}{"node_id": nodeID, "result": result})
	respondJSON(w, http.StatusOK, result)
}

// @Summary      Permanently delete a node
// @Description  Irreversibly deletes a node. Files must already be in the trash; folder deletion removes the whole subtree and its blobs.
// @Tags         trash
// @Security     BearerAuth
// @Param        nodeId   path      string  true  "Node ID to delete"
// @Success      200      {object}  tree.Result
// @Failure      401      {string}  string "Unauthorized"
// @Failure      404      {string}  string "Not Found"
// @Failure      409      {string}  string "Conflict - file is not in the trash"
// @Failure      502      {string}  string "Bad Gateway - blob store deletion failed"
// @Router       /nodes/{nodeId}/permanent [delete]
func (s *Server) DeletePermanentHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	result, err := s.tree.DeletePermanent(r.Context(), claims.UserID, nodeID)
	if err != nil {
		// Descendants removed before a blocking blob deletion failed are
		// gone for good even though the operation errored. Surface both.
		if result != nil && len(result.NodeIDs) > 0 {
			s.logger.Warn("permanent delete finished partially")
			s.publishNodeEvent(r.Context(), claims.UserID, "node_deleted", map[string]interface{}{"node_id": nodeID, "result": result})
		}
		s.writeTreeError(w, err)
		return
	}

	s.publishNodeEvent(r.Context(), claims.UserID, "node_deleted", map[string]interface{}{"node_id": nodeID, "result": result})
	respondJSON(w, http.StatusOK, result)
}
