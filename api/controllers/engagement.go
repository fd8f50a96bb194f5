package controllers

import (
	"net/http"
	"strings"

	"github.com/jordanvela/cliphive-backend/api/middleware"
	"github.com/jordanvela/cliphive-backend/api/responses"
	"github.com/jordanvela/cliphive-backend/api/validators"
	"github.com/jordanvela/cliphive-backend/internal/engagement"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

type commentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=2000"`
}

// CreateComment handles attaching a comment to a video.
func CreateComment(svc engagement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "engagement service unavailable"))
			return
		}

		videoID, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload commentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		comment, err := svc.AddComment(r.Context(), middleware.PrincipalFromContext(r.Context()), videoID, payload.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, comment)
	}
}

// ListComments handles reading a video's comment thread. include_deleted is
// an admin-only audit switch.
func ListComments(svc engagement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "engagement service unavailable"))
			return
		}

		videoID, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		includeDeleted := strings.EqualFold(r.URL.Query().Get("include_deleted"), "true")
		comments, err := svc.ListComments(r.Context(), middleware.PrincipalFromContext(r.Context()), videoID, includeDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, comments)
	}
}

// UpdateComment handles an author editing their own comment.
func UpdateComment(svc engagement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "engagement service unavailable"))
			return
		}

		commentID, err := validators.ObjectIDParam(r, "commentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload commentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		comment, err := svc.UpdateComment(r.Context(), middleware.PrincipalFromContext(r.Context()), commentID, payload.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, comment)
	}
}

// DeleteComment handles soft-deleting a comment by its author or an admin.
func DeleteComment(svc engagement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "engagement service unavailable"))
			return
		}

		commentID, err := validators.ObjectIDParam(r, "commentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteComment(r.Context(), middleware.PrincipalFromContext(r.Context()), commentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type ratingRequest struct {
	Value int `json:"value" validate:"required,min=1,max=5"`
}

// PutRating handles setting or replacing the caller's rating for a video.
func PutRating(svc engagement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "engagement service unavailable"))
			return
		}

		videoID, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ratingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rating, err := svc.RateVideo(r.Context(), middleware.PrincipalFromContext(r.Context()), videoID, payload.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rating)
	}
}

// GetRating handles reading the caller's own rating for a video.
func GetRating(svc engagement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "engagement service unavailable"))
			return
		}

		videoID, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rating, err := svc.GetRating(r.Context(), middleware.PrincipalFromContext(r.Context()), videoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rating)
	}
}

// DeleteRating handles removing the caller's own rating.
func DeleteRating(svc engagement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "engagement service unavailable"))
			return
		}

		videoID, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteRating(r.Context(), middleware.PrincipalFromContext(r.Context()), videoID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
