package controllers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jordanvela/cliphive-backend/api/middleware"
	"github.com/jordanvela/cliphive-backend/api/responses"
	"github.com/jordanvela/cliphive-backend/api/validators"
	"github.com/jordanvela/cliphive-backend/internal/streaming"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/httprange"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/metrics"
	redisclient "github.com/jordanvela/cliphive-backend/pkg/redis"
)

const viewCounterTTL = 24 * time.Hour

// StreamVideo handles playback. Full requests answer 200, ranged requests
// 206 with Content-Range, unsatisfiable ranges 416 with the wildcard
// Content-Range carrying the object's total size.
func StreamVideo(svc streaming.Service, streamMetrics *metrics.StreamingMetrics, views *redisclient.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming service unavailable"))
			return
		}

		id, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		started := time.Now()
		out, err := svc.Stream(r.Context(), middleware.PrincipalFromContext(r.Context()), id, r.Header.Get("Range"))
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeRangeInvalid) {
				if total, ok := totalSizeFromDetails(err); ok {
					w.Header().Set("Content-Range", httprange.UnsatisfiableContentRange(total))
				}
			}
			streamMetrics.IncFailed(failureReason(err))
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer out.Body.Close()

		kind := "full"
		status := http.StatusOK
		if out.Spec.Partial {
			kind = "partial"
			status = http.StatusPartialContent
			w.Header().Set("Content-Range", out.Spec.ContentRange())
		}
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", out.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(out.Length, 10))
		w.WriteHeader(status)

		streamMetrics.IncStarted(kind)
		countView(r, views, id.String(), logg)

		sent, copyErr := io.Copy(w, out.Body)
		streamMetrics.AddBytesSent(kind, sent)
		streamMetrics.ObserveDuration(kind, time.Since(started))
		if copyErr != nil {
			// Headers are gone; a disconnect mid-stream is normal churn.
			logCtx := logg.WithVideoID(r.Context(), id.String())
			logg.Warn(logg.WithField(logCtx, "bytes_sent", sent), "stream interrupted")
			streamMetrics.IncFailed("interrupted")
		}
	}
}

// countView bumps the rolling view counter. Failures only log; playback
// never depends on redis.
func countView(r *http.Request, views *redisclient.Client, videoID string, logg *logger.Logger) {
	if views == nil {
		return
	}
	if _, err := views.IncrWithTTL(r.Context(), views.ViewCounterKey(videoID), viewCounterTTL); err != nil {
		logg.Warn(logg.WithVideoID(r.Context(), videoID), "view counter increment failed")
	}
}

func totalSizeFromDetails(err error) (int64, bool) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return 0, false
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return 0, false
	}
	total, ok := details["total_size_bytes"].(int64)
	return total, ok
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	switch typed.Code() {
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeRangeInvalid:
		return "range_unsatisfiable"
	case pkgerrors.CodeStoreUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}
