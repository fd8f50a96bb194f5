package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jordanvela/cliphive-backend/api/controllers"
	"github.com/jordanvela/cliphive-backend/api/middleware"
	"github.com/jordanvela/cliphive-backend/internal/engagement"
	"github.com/jordanvela/cliphive-backend/internal/streaming"
	videosvc "github.com/jordanvela/cliphive-backend/internal/videos"
	"github.com/jordanvela/cliphive-backend/pkg/accessgrant"
	"github.com/jordanvela/cliphive-backend/pkg/auth/session"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/metrics"
	redisclient "github.com/jordanvela/cliphive-backend/pkg/redis"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      pinger
	Mongo   pinger
	Redis   *redisclient.Client
	Store   blob.Store
	StoreP  pinger
	Issuer  *accessgrant.Issuer
	Session session.AccessSessionChecker
	// Sessions is the full manager behind Session; refresh and logout are
	// mounted only when it is wired.
	Sessions *session.Manager

	Videos     videosvc.Service
	Streaming  streaming.Service
	Engagement engagement.Service
	Metrics    *metrics.StreamingMetrics
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Mongo, d.Redis, d.StoreP))
	})

	r.Handle("/metrics", promhttp.Handler())

	optional := middleware.OptionalAuth(cfg.JWT, d.Session, logg)
	required := middleware.Auth(cfg.JWT, d.Session, logg)
	creator := middleware.RequireAtLeast(enums.RoleCreator, logg)

	maxUpload := cfg.Media.MaxUploadBytes()

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optional)

			r.Get("/videos", controllers.ListVideos(d.Videos, logg))
			r.Get("/videos/{videoId}", controllers.GetVideo(d.Videos, logg))
			r.Get("/videos/{videoId}/stream", controllers.StreamVideo(d.Streaming, d.Metrics, d.Redis, logg))
			r.Get("/videos/{videoId}/download", controllers.PresignDownload(d.Streaming, logg))
			r.Get("/videos/{videoId}/comments", controllers.ListComments(d.Engagement, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(required)

			r.With(creator).Post("/videos", controllers.UploadVideo(d.Streaming, maxUpload, logg))
			r.With(creator).Post("/videos/presign", controllers.PresignUpload(d.Streaming, logg))
			r.Patch("/videos/{videoId}", controllers.UpdateVideo(d.Videos, logg))
			r.Delete("/videos/{videoId}", controllers.DeleteVideo(d.Videos, logg))

			r.Post("/videos/{videoId}/comments", controllers.CreateComment(d.Engagement, logg))
			r.Patch("/comments/{commentId}", controllers.UpdateComment(d.Engagement, logg))
			r.Delete("/comments/{commentId}", controllers.DeleteComment(d.Engagement, logg))
			r.Put("/videos/{videoId}/rating", controllers.PutRating(d.Engagement, logg))
			r.Get("/videos/{videoId}/rating", controllers.GetRating(d.Engagement, logg))
			r.Delete("/videos/{videoId}/rating", controllers.DeleteRating(d.Engagement, logg))
		})

		if d.Sessions != nil {
			r.Post("/auth/refresh", controllers.RefreshToken(cfg.JWT, d.Sessions, logg))
			r.With(required).Post("/auth/logout", controllers.Logout(d.Sessions, logg))
		}

		// Grant-authenticated, no session required.
		r.Put("/blobs/*", controllers.BlobUpload(d.Store, d.Issuer, d.Streaming, maxUpload, logg))
		r.Get("/blobs/*", controllers.BlobDownload(d.Store, d.Issuer, logg))
	})

	return r
}
