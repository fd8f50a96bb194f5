package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

const (
	// CommentsCollection holds comment documents keyed by video.
	CommentsCollection = "comments"
	// RatingsCollection holds one rating document per (video, user) pair.
	RatingsCollection = "ratings"
)

// Client wraps the mongo connection for the engagement document store.
type Client struct {
	raw      *mongo.Client
	database string
}

// New bootstraps a mongo client, verifies connectivity, and ensures the
// indexes the engagement queries depend on.
func New(ctx context.Context, cfg config.MongoConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errors.New("mongo uri is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errors.New("mongo database name is required")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout+5*time.Second)
	defer cancel()

	raw, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := raw.Ping(connectCtx, nil); err != nil {
		_ = raw.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	c := &Client{raw: raw, database: cfg.Database}
	if err := c.ensureIndexes(ctx); err != nil {
		_ = raw.Disconnect(context.Background())
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "mongo connection established")
	}
	return c, nil
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	comments := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().
				SetName("video_created"),
		},
	}
	if _, err := c.Collection(CommentsCollection).Indexes().CreateMany(ctx, comments); err != nil {
		return fmt.Errorf("ensuring comment indexes: %w", err)
	}

	// The unique pair index makes rating writes race-safe: concurrent inserts
	// for the same (video, user) collapse into one winner and a duplicate-key
	// error the repo turns into an upsert retry.
	ratings := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().
				SetName("video_user_unique").
				SetUnique(true),
		},
	}
	if _, err := c.Collection(RatingsCollection).Indexes().CreateMany(ctx, ratings); err != nil {
		return fmt.Errorf("ensuring rating indexes: %w", err)
	}
	return nil
}

// Collection returns a handle on the named collection in the configured database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.raw.Database(c.database).Collection(name)
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return errors.New("mongo client not initialized")
	}
	return c.raw.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Disconnect(ctx)
}
