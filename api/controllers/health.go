package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/jordanvela/cliphive-backend/api/responses"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

const readyProbeTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ClipHive-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every backing store. Any failing component flips the
// response to 503 and names the failures.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, mongoP, redisP, blobP pinger) http.HandlerFunc {
	probes := []struct {
		name string
		p    pinger
	}{
		{"postgres", dbP},
		{"mongo", mongoP},
		{"redis", redisP},
		{"blob_store", blobP},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ClipHive-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		components := make(map[string]string, len(probes))
		var failed []string
		for _, probe := range probes {
			if probe.p == nil {
				components[probe.name] = "unconfigured"
				continue
			}
			if err := probe.p.Ping(ctx); err != nil {
				components[probe.name] = "down"
				failed = append(failed, probe.name)
				logg.Error(logg.WithField(ctx, "component", probe.name), "readiness probe failed", err)
				continue
			}
			components[probe.name] = "up"
		}

		if len(failed) > 0 {
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status":     "degraded",
				"components": components,
			})
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "components": components})
	}
}
