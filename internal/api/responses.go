package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"blobdrive/internal/tree"

	"go.uber.org/zap"
)

// writeTreeError maps the tree error taxonomy onto HTTP status codes.
func (s *Server) writeTreeError(w http.ResponseWriter, err error) {
	var treeErr *tree.Error
	if !errors.As(err, &treeErr) {
		s.logger.Error("unexpected error", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var status int
	switch treeErr.Kind {
	case tree.KindValidation:
		status = http.StatusBadRequest
	case tree.KindNotFound:
		status = http.StatusNotFound
	case tree.KindPrecondition:
		status = http.StatusConflict
	case tree.KindRemote:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"kind":    treeErr.Kind.String(),
		"node_id": treeErr.NodeID,
		"error":   treeErr.Error(),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// publishNodeEvent appends to the event journal and pushes to connected
// websocket clients. Both are best-effort relative to the node mutation
// that already happened.
func (s *Server) publishNodeEvent(ctx context.Context, userID int64, eventType string, payload interface{}) {
	if err := s.store.LogEvent(ctx, userID, eventType, payload); err != nil {
		s.logger.Warn("failed to journal event", zap.String("event", eventType), zap.Error(err))
	}

	eventMsg := map[string]interface{}{"event_type": eventType, "payload": payload}
	eventBytes, err := json.Marshal(eventMsg)
	if err != nil {
		return
	}
	s.wsHub.PublishEvent(userID, eventBytes)
}
