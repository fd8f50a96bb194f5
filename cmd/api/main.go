package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jordanvela/cliphive-backend/api/routes"
	"github.com/jordanvela/cliphive-backend/internal/cleanup"
	"github.com/jordanvela/cliphive-backend/internal/engagement"
	"github.com/jordanvela/cliphive-backend/internal/streaming"
	videosvc "github.com/jordanvela/cliphive-backend/internal/videos"
	"github.com/jordanvela/cliphive-backend/pkg/accessgrant"
	"github.com/jordanvela/cliphive-backend/pkg/auth/session"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/db"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/metrics"
	"github.com/jordanvela/cliphive-backend/pkg/migrate"
	mongoclient "github.com/jordanvela/cliphive-backend/pkg/mongo"
	"github.com/jordanvela/cliphive-backend/pkg/pubsub"
	redisclient "github.com/jordanvela/cliphive-backend/pkg/redis"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	mongoClient, err := mongoclient.New(ctx, cfg.Mongo, logg)
	requireResource(ctx, logg, "mongo", err)
	defer func() {
		if err := mongoClient.Close(ctx); err != nil {
			logg.Error(ctx, "error closing mongo", err)
		}
	}()

	redisClient, err := redisclient.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	store, storePinger, err := newBlobStore(ctx, cfg, logg)
	requireResource(ctx, logg, "blob store", err)

	issuer, err := accessgrant.NewIssuer([]byte(cfg.Grant.SigningSecret), cfg.Grant.MaxTTL)
	requireResource(ctx, logg, "grant issuer", err)

	cleanupPublisher, err := cleanup.NewPublisher(pubsubClient.CleanupPublisher())
	requireResource(ctx, logg, "cleanup publisher", err)

	videoRepo := videosvc.NewRepository(dbClient.DB())

	videoService, err := videosvc.NewService(videoRepo, store, cleanupPublisher, logg)
	requireResource(ctx, logg, "video service", err)

	streamingService, err := streaming.NewService(
		videoRepo,
		store,
		issuer,
		logg,
		cfg.Media.MaxUploadBytes(),
		cfg.Grant.UploadTTL,
		cfg.Grant.DownloadTTL,
	)
	requireResource(ctx, logg, "streaming service", err)

	engagementService, err := engagement.NewService(engagement.NewRepository(mongoClient), videoService)
	requireResource(ctx, logg, "engagement service", err)

	streamMetrics := metrics.NewStreamingMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Mongo:      mongoClient,
			Redis:      redisClient,
			Store:      store,
			StoreP:     storePinger,
			Issuer:     issuer,
			Session:    sessionManager,
			Sessions:   sessionManager,
			Videos:     videoService,
			Streaming:  streamingService,
			Engagement: engagementService,
			Metrics:    streamMetrics,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (blob.Store, blob.Pinger, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Blob.Backend)) {
	case "fs":
		s, err := blob.NewFSStore(cfg.Blob.FSRoot)
		return s, s, err
	default:
		s, err := blob.NewGCSStore(ctx, cfg.GCS, cfg.GCP, logg)
		return s, s, err
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
