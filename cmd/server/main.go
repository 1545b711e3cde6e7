// @title           BlobDrive API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"blobdrive/internal/api"
	"blobdrive/internal/blob"
	"blobdrive/internal/cache"
	"blobdrive/internal/config"
	"blobdrive/internal/database"
	"blobdrive/internal/tree"
	"blobdrive/internal/websocket"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "blobdrive/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("cannot initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("cannot load configuration", zap.Error(err))
	}

	ctx := context.Background()

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		logger.Fatal("cannot connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		logger.Fatal("cannot ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	blobClient, err := newBlobClient(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("cannot initialize blob storage", zap.Error(err))
	}

	var nodeCache cache.Cache = cache.NewNoop()
	if cfg.Cache.Enabled {
		ristrettoCache, err := cache.NewRistrettoCache(cfg.Cache.MaxCost)
		if err != nil {
			logger.Fatal("cannot initialize cache", zap.Error(err))
		}
		defer ristrettoCache.Close()
		nodeCache = ristrettoCache
	}

	store := database.NewStore(dbpool)

	treeManager, err := tree.NewManager(store, blobClient, nodeCache, logger,
		tree.WithCacheTTL(cfg.Cache.TTL),
	)
	if err != nil {
		logger.Fatal("cannot initialize tree manager", zap.Error(err))
	}

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	server := api.NewServer(cfg, store, treeManager, wsHub, logger)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)
	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/auth/refresh", server.RefreshTokenHandler)
	r.Post("/api/v1/auth/logout", server.LogoutHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)
		r.Get("/me", server.GetCurrentUserHandler)
		r.Get("/quota", server.QuotaHandler)
		r.Get("/nodes", server.ListNodesHandler)
		r.Get("/nodes/search", server.SearchNodesHandler)
		r.Get("/nodes/sorted", server.SortNodesHandler)
		r.Post("/nodes/folder", server.CreateFolderHandler)
		r.Post("/nodes/file", server.CreateFileHandler)
		r.Put("/nodes/{nodeId}/content", server.UpdateContentHandler)
		r.Get("/nodes/{nodeId}/download", server.DownloadFileHandler)
		r.Patch("/nodes/{nodeId}", server.UpdateNodeHandler)
		r.Post("/nodes/{nodeId}/copy", server.CopyNodeHandler)
		r.Delete("/nodes/{nodeId}", server.DeleteNodeHandler)
		r.Post("/nodes/{nodeId}/restore", server.RestoreNodeHandler)
		r.Delete("/nodes/{nodeId}/permanent", server.DeletePermanentHandler)
		r.Get("/trash", server.ListTrashHandler)
		r.Get("/events", server.GetEventsHandler)
	})

	logger.Info("starting server", zap.String("host", cfg.AppHost))
	if err := http.ListenAndServe(cfg.AppHost, r); err != nil {
		logger.Fatal("cannot start server", zap.Error(err))
	}
}

func newBlobClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (blob.Client, error) {
	if cfg.Storage.Backend == "memory" {
		logger.Warn("using in-memory blob storage, contents will not survive a restart")
		return blob.NewMemoryClient(), nil
	}

	configOptions := []func(*awsconfig.LoadOptions) error{}
	if cfg.Storage.Region != "" {
		configOptions = append(configOptions, awsconfig.WithRegion(cfg.Storage.Region))
	}
	if cfg.Storage.AccessKey != "" {
		configOptions = append(configOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			// Path-style addressing for MinIO and other S3-compatible stores.
			o.UsePathStyle = true
		}
	})

	return blob.NewS3Client(ctx, blob.S3Config{
		Client:    client,
		Bucket:    cfg.Storage.Bucket,
		KeyPrefix: cfg.Storage.KeyPrefix,
	}, logger)
}
