// Command mint-token issues a signed access token plus a live redis session
// for local development and smoke testing against a running stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/jordanvela/cliphive-backend/pkg/auth"
	"github.com/jordanvela/cliphive-backend/pkg/auth/session"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	redisclient "github.com/jordanvela/cliphive-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "mint-token"})

	_ = godotenv.Load()

	userID := flag.String("user", "", "user id (blank generates one)")
	role := flag.String("role", "creator", "role: consumer|creator|admin")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	parsedRole, err := enums.ParseRole(*role)
	requireResource(ctx, logg, "role", err)

	id := uuid.New()
	if *userID != "" {
		id, err = uuid.Parse(*userID)
		requireResource(ctx, logg, "user id", err)
	}

	redisClient, err := redisclient.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	manager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	accessID := session.NewAccessID()
	refreshToken, err := manager.Generate(ctx, accessID)
	requireResource(ctx, logg, "session", err)

	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: id,
		Role:   parsedRole,
		JTI:    accessID,
	})
	requireResource(ctx, logg, "access token", err)

	fmt.Println("user_id:      ", id)
	fmt.Println("role:         ", parsedRole)
	fmt.Println("access_token: ", token)
	fmt.Println("refresh_token:", refreshToken)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
