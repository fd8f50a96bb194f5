package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jordanvela/cliphive-backend/internal/cleanup"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/pubsub"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "blob-cleanup-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "blob-cleanup-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	store, err := newBlobStore(ctx, cfg, logg)
	requireResource(ctx, logg, "blob store", err)

	consumer, err := cleanup.NewConsumer(store, pubsubClient.CleanupSubscription(), logg)
	requireResource(ctx, logg, "cleanup consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.CleanupSubscription,
	})
	logg.Info(runCtx, "blob cleanup worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "blob cleanup worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func newBlobStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (blob.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Blob.Backend)) {
	case "fs":
		return blob.NewFSStore(cfg.Blob.FSRoot)
	default:
		return blob.NewGCSStore(ctx, cfg.GCS, cfg.GCP, logg)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
