package api

import (
	"blobdrive/internal/config"
	"blobdrive/internal/database"
	"blobdrive/internal/tree"
	"blobdrive/internal/websocket"

	"go.uber.org/zap"
)

type Server struct {
	config *config.Config
	store  *database.Store
	tree   *tree.Manager
	wsHub  *websocket.Hub
	logger *zap.Logger
}

func NewServer(cfg *config.Config, store *database.Store, treeManager *tree.Manager, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	return &Server{
		config: cfg,
		store:  store,
		tree:   treeManager,
		wsHub:  wsHub,
		logger: logger,
	}
}
