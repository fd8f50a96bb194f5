package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jordanvela/cliphive-backend/api/responses"
	"github.com/jordanvela/cliphive-backend/internal/streaming"
	"github.com/jordanvela/cliphive-backend/pkg/accessgrant"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/httprange"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

// verifyGrant authenticates a blob request by its signed query values and
// checks that the grant covers the key with the required permission.
func verifyGrant(r *http.Request, issuer *accessgrant.Issuer, key string, perm accessgrant.Permission) error {
	grant, err := accessgrant.ParseValues(r.URL.Query())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "malformed access grant")
	}
	switch issuer.Verify(grant) {
	case accessgrant.StatusValid:
	case accessgrant.StatusExpired:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "access grant expired")
	default:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access grant")
	}
	if grant.Permission != perm || grant.ObjectKey != key {
		return pkgerrors.New(pkgerrors.CodeForbidden, "grant does not authorize this object")
	}
	return nil
}

// BlobUpload handles the target of a presigned upload: the client PUTs the
// payload to the granted key, authenticating with the grant's signed query
// values instead of a session. A confirmed write flips the pending video
// record to ready and returns it.
func BlobUpload(store blob.Store, issuer *accessgrant.Issuer, svc streaming.Service, maxUploadBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || issuer == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blob store unavailable"))
			return
		}

		key := chi.URLParam(r, "*")
		if err := blob.ValidateKey(key); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid object key"))
			return
		}

		if err := verifyGrant(r, issuer, key, accessgrant.PermissionWrite); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "video/") {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "content type must be video/*"))
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
		object, err := store.PutKey(r.Context(), key, contentType, body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodePayloadTooLarge, "payload exceeds the upload ceiling"))
				return
			}
			if errors.Is(err, blob.ErrUnavailable) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "object store unavailable"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write object"))
			return
		}

		video, err := svc.CompleteUpload(r.Context(), key, object)
		if err != nil {
			// The blob is durable but the record flip failed; the client can
			// retry the PUT, which is idempotent on both sides.
			if logg != nil {
				logg.Error(logg.WithObjectKey(r.Context(), key), "finalizing presigned upload failed", err)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, video)
	}
}

// BlobDownload serves the target of a presigned download: a GET on the
// granted key authenticated by the grant's signed query values. Range is
// honored the same way the session-authenticated stream endpoint honors it.
func BlobDownload(store blob.Store, issuer *accessgrant.Issuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || issuer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blob store unavailable"))
			return
		}

		key := chi.URLParam(r, "*")
		if err := blob.ValidateKey(key); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid object key"))
			return
		}

		if err := verifyGrant(r, issuer, key, accessgrant.PermissionRead); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := store.Stat(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, blobReadError(err))
			return
		}

		spec, err := httprange.Resolve(r.Header.Get("Range"), info.SizeBytes)
		if err != nil {
			if errors.Is(err, httprange.ErrUnsatisfiable) {
				w.Header().Set("Content-Range", httprange.UnsatisfiableContentRange(info.SizeBytes))
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRangeInvalid, "requested range not satisfiable"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve range"))
			return
		}

		body, length, err := store.OpenRange(r.Context(), key, spec)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, blobReadError(err))
			return
		}
		defer body.Close()

		status := http.StatusOK
		if spec.Partial {
			status = http.StatusPartialContent
			w.Header().Set("Content-Range", spec.ContentRange())
		}
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", info.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.WriteHeader(status)
		_, _ = io.Copy(w, body)
	}
}

func blobReadError(err error) error {
	if errors.Is(err, blob.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "object not found")
	}
	if errors.Is(err, blob.ErrUnavailable) {
		return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "object store unavailable")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read object")
}
