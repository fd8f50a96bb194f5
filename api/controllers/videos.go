package controllers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jordanvela/cliphive-backend/api/middleware"
	"github.com/jordanvela/cliphive-backend/api/responses"
	"github.com/jordanvela/cliphive-backend/api/validators"
	"github.com/jordanvela/cliphive-backend/internal/streaming"
	videosvc "github.com/jordanvela/cliphive-backend/internal/videos"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

// ListVideos handles browsing the catalog with visibility filtering applied.
func ListVideos(svc videosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		input := videosvc.ListInput{
			Limit:  queryInt(r, "limit"),
			Offset: queryInt(r, "offset"),
		}
		if raw := r.URL.Query().Get("owner_id"); raw != "" {
			ownerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner_id"))
				return
			}
			input.OwnerID = &ownerID
		}

		videos, err := svc.List(r.Context(), middleware.PrincipalFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, videos)
	}
}

// GetVideo handles fetching a single video's metadata.
func GetVideo(svc videosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		id, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		video, err := svc.Get(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, video)
	}
}

type updateVideoRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
	Visibility  *string `json:"visibility,omitempty" validate:"omitempty,oneof=public private"`
}

func (req updateVideoRequest) toInput() videosvc.UpdateInput {
	input := videosvc.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Visibility != nil {
		visibility := enums.Visibility(*req.Visibility)
		input.Visibility = &visibility
	}
	return input
}

// UpdateVideo handles metadata edits by the owner or an admin.
func UpdateVideo(svc videosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		id, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateVideoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		video, err := svc.Update(r.Context(), middleware.PrincipalFromContext(r.Context()), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, video)
	}
}

// DeleteVideo handles removing a video and best-effort clearing its blob.
func DeleteVideo(svc videosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "video service unavailable"))
			return
		}

		id, err := validators.UUIDParam(r, "videoId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// UploadVideo handles a multipart direct upload. The multipart reader is
// bounded slightly above the payload ceiling so field overhead never trips
// the limit before the service's own cap does.
func UploadVideo(svc streaming.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	const multipartOverhead = 1 << 20

	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)

		reader, err := r.MultipartReader()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart body required"))
			return
		}

		input := streaming.UploadInput{Visibility: enums.VisibilityPrivate}
		for {
			part, err := reader.NextPart()
			if err != nil {
				// io.EOF means the payload part never arrived.
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file part is required"))
				return
			}

			switch part.FormName() {
			case "title":
				input.Title = formValue(part)
				continue
			case "description":
				input.Description = formValue(part)
				continue
			case "is_public":
				if strings.EqualFold(formValue(part), "true") {
					input.Visibility = enums.VisibilityPublic
				}
				continue
			case "file":
				input.FileName = part.FileName()
				input.ContentType = part.Header.Get("Content-Type")
				input.Payload = part
			default:
				_ = part.Close()
				continue
			}
			// The file part must come last; the payload streams straight to
			// the store without landing in memory.
			video, err := svc.Upload(r.Context(), middleware.PrincipalFromContext(r.Context()), input)
			_ = part.Close()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, video)
			return
		}
	}
}

type presignRequest struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public,omitempty"`
}

// PresignUpload handles issuing a write grant for a direct-to-store upload.
// The pending video record is created here; the blob PUT completes it.
func PresignUpload(svc streaming.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming service unavailable"))
			return
		}

		var payload presignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := streaming.PresignInput{
			FileName:    payload.FileName,
			ContentType: payload.ContentType,
			Title:       payload.Title,
			Description: payload.Description,
			Visibility:  enums.VisibilityPrivate,
		}
		if payload.IsPublic {
			input.Visibility = enums.VisibilityPublic
		}

		out, err := svc.Presign(r.Context(), middleware.PrincipalFromContext(r.Context()), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// PresignDownload handles issuing a read grant for fetching the raw object
// from the blob endpoint.
func PresignDownload(svc streaming.Service, logg *logger.Logger) http.HandlerFunc {
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

		out, err := svc.PresignDownload(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formValue(part *multipart.Part) string {
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, 4<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
