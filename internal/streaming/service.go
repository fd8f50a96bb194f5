// Package streaming composes the range resolver, the access evaluator, the
// grant issuer, and the object store gateway into the playback and upload
// paths.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jordanvela/cliphive-backend/internal/access"
	"github.com/jordanvela/cliphive-backend/pkg/accessgrant"
	"github.com/jordanvela/cliphive-backend/pkg/db/models"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/httprange"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

// statRetryDelay is the pause before the single retry on a transient stat
// failure.
const statRetryDelay = 150 * time.Millisecond

type videoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	FindByObjectKey(ctx context.Context, key string) (*models.Video, error)
	Create(ctx context.Context, video *models.Video) (*models.Video, error)
	Update(ctx context.Context, video *models.Video) (*models.Video, error)
}

// Service orchestrates playback, upload, and presign flows.
type Service interface {
	Stream(ctx context.Context, p *access.Principal, videoID uuid.UUID, rangeHeader string) (*StreamOutput, error)
	Upload(ctx context.Context, p *access.Principal, input UploadInput) (*models.Video, error)
	Presign(ctx context.Context, p *access.Principal, input PresignInput) (*PresignOutput, error)
	CompleteUpload(ctx context.Context, objectKey string, object blob.Object) (*models.Video, error)
	PresignDownload(ctx context.Context, p *access.Principal, videoID uuid.UUID) (*DownloadOutput, error)
}

type service struct {
	repo        videoRepository
	store       blob.Store
	issuer      *accessgrant.Issuer
	logg        *logger.Logger
	maxUpload   int64
	uploadTTL   time.Duration
	downloadTTL time.Duration
	sleep       func(context.Context, time.Duration)
}

// NewService constructs the streaming orchestrator.
func NewService(repo videoRepository, store blob.Store, issuer *accessgrant.Issuer, logg *logger.Logger, maxUploadBytes int64, uploadTTL, downloadTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("video repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("grant issuer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	return &service{
		repo:        repo,
		store:       store,
		issuer:      issuer,
		logg:        logg,
		maxUpload:   maxUploadBytes,
		uploadTTL:   uploadTTL,
		downloadTTL: downloadTTL,
		sleep:       sleepCtx,
	}, nil
}

// StreamOutput carries everything the transport layer needs to answer a
// playback request. Body covers exactly Spec's span; the caller owns closing
// it.
type StreamOutput struct {
	Body        io.ReadCloser
	Spec        httprange.Spec
	Length      int64
	ContentType string
}

// UploadInput models a direct upload. Payload is consumed exactly once.
type UploadInput struct {
	Title       string
	Description string
	Visibility  enums.Visibility
	FileName    string
	ContentType string
	Payload     io.Reader
}

// PresignInput models a request for a direct-to-store transfer credential.
// Title falls back to the file name when empty.
type PresignInput struct {
	FileName    string
	ContentType string
	Title       string
	Description string
	Visibility  enums.Visibility
}

// PresignOutput carries the grant back to the client. UploadTarget embeds
// the grant's signed query values.
type PresignOutput struct {
	VideoID      uuid.UUID `json:"video_id"`
	ObjectKey    string    `json:"object_key"`
	UploadTarget string    `json:"upload_target"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// DownloadOutput carries a read-scoped grant for fetching the raw object
// directly from the blob endpoint.
type DownloadOutput struct {
	ObjectKey      string    `json:"object_key"`
	DownloadTarget string    `json:"download_target"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Stream answers a playback request. Unauthorized reads of private videos
// surface as not found; unsatisfiable ranges surface as a range error
// carrying the object's total size for the 416 Content-Range header.
func (s *service) Stream(ctx context.Context, p *access.Principal, videoID uuid.UUID, rangeHeader string) (*StreamOutput, error) {
	video, err := s.repo.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load video")
	}
	if !access.CanRead(p, video) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
	}

	info, err := s.statWithRetry(ctx, video.ObjectKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			// Metadata exists but the blob is gone; treat the resource as
			// missing rather than exposing the inconsistency.
			s.logg.Error(s.logg.WithObjectKey(ctx, video.ObjectKey), "blob missing for video record", err)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		if errors.Is(err, blob.ErrUnavailable) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "object store unavailable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stat object")
	}

	spec, err := httprange.Resolve(rangeHeader, info.SizeBytes)
	if err != nil {
		if errors.Is(err, httprange.ErrUnsatisfiable) {
			return nil, pkgerrors.New(pkgerrors.CodeRangeInvalid, "requested range not satisfiable").
				WithDetails(map[string]any{"total_size_bytes": info.SizeBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve range")
	}

	body, length, err := s.store.OpenRange(ctx, video.ObjectKey, spec)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		if errors.Is(err, blob.ErrUnavailable) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "object store unavailable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open object range")
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = video.ContentType
	}
	return &StreamOutput{
		Body:        body,
		Spec:        spec,
		Length:      length,
		ContentType: contentType,
	}, nil
}

// Upload ingests a video payload. The content type gate runs before any
// store I/O; the blob write completes before the metadata record exists, so
// a record never points at a missing blob. A failed record insert compensates
// by deleting the fresh blob.
func (s *service) Upload(ctx context.Context, p *access.Principal, input UploadInput) (*models.Video, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !access.HasAtLeast(p, enums.RoleCreator) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "uploading requires the creator role")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if !strings.HasPrefix(input.ContentType, "video/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content type must be video/*")
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = enums.VisibilityPrivate
	}
	if !visibility.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid visibility")
	}
	if input.Payload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload is required")
	}

	// Hard cap regardless of what the transport already enforced.
	limited := &cappedReader{r: input.Payload, remaining: s.maxUpload}

	object, err := s.store.Put(ctx, input.ContentType, input.FileName, limited)
	if err != nil {
		if limited.exceeded {
			return nil, pkgerrors.New(pkgerrors.CodePayloadTooLarge, "payload exceeds the upload ceiling")
		}
		if errors.Is(err, blob.ErrUnavailable) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "object store unavailable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write object")
	}

	video := &models.Video{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     p.ID,
		Visibility:  visibility,
		Status:      enums.VideoStatusReady,
		ObjectKey:   object.Key,
		SizeBytes:   object.SizeBytes,
		ContentType: object.ContentType,
	}
	if _, err := s.repo.Create(ctx, video); err != nil {
		logCtx := s.logg.WithObjectKey(ctx, object.Key)
		if delErr := s.store.Delete(ctx, object.Key); delErr != nil {
			s.logg.Error(logCtx, "compensating blob delete failed", delErr)
		} else {
			s.logg.Warn(logCtx, "record insert failed, blob compensated")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create video record")
	}
	return video, nil
}

// Presign issues a write-scoped grant for a direct client-to-store upload
// and creates the pending video record the blob write will later confirm.
// A pending record is invisible to everyone but its owner and admins until
// CompleteUpload flips it to ready.
func (s *service) Presign(ctx context.Context, p *access.Principal, input PresignInput) (*PresignOutput, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !access.HasAtLeast(p, enums.RoleCreator) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "uploading requires the creator role")
	}
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	if !strings.HasPrefix(input.ContentType, "video/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content type must be video/*")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = fileName
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = enums.VisibilityPrivate
	}
	if !visibility.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid visibility")
	}

	key := blob.NewKey(fileName)
	grant, err := s.issuer.Issue(key, accessgrant.PermissionWrite, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue upload grant")
	}

	video := &models.Video{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     p.ID,
		Visibility:  visibility,
		Status:      enums.VideoStatusPending,
		ObjectKey:   key,
		ContentType: input.ContentType,
	}
	if _, err := s.repo.Create(ctx, video); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create pending video record")
	}

	return &PresignOutput{
		VideoID:      video.ID,
		ObjectKey:    key,
		UploadTarget: "/api/v1/blobs/" + key + "?" + grant.Values().Encode(),
		ExpiresAt:    grant.ExpiresAt,
	}, nil
}

// CompleteUpload marks the pending record behind objectKey as ready once the
// blob write has been confirmed. Completing an already ready record is a
// no-op so a retried PUT stays idempotent.
func (s *service) CompleteUpload(ctx context.Context, objectKey string, object blob.Object) (*models.Video, error) {
	video, err := s.repo.FindByObjectKey(ctx, objectKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending upload for this object")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pending video record")
	}
	if video.Status == enums.VideoStatusReady {
		return video, nil
	}

	video.Status = enums.VideoStatusReady
	video.SizeBytes = object.SizeBytes
	if object.ContentType != "" {
		video.ContentType = object.ContentType
	}
	if _, err := s.repo.Update(ctx, video); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalize video record")
	}
	return video, nil
}

// PresignDownload issues a read-scoped grant for fetching the raw object.
// Unauthorized reads of private videos surface as not found, matching Stream.
func (s *service) PresignDownload(ctx context.Context, p *access.Principal, videoID uuid.UUID) (*DownloadOutput, error) {
	video, err := s.repo.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load video")
	}
	if !access.CanRead(p, video) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
	}

	grant, err := s.issuer.Issue(video.ObjectKey, accessgrant.PermissionRead, s.downloadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue download grant")
	}

	return &DownloadOutput{
		ObjectKey:      video.ObjectKey,
		DownloadTarget: "/api/v1/blobs/" + video.ObjectKey + "?" + grant.Values().Encode(),
		ExpiresAt:      grant.ExpiresAt,
	}, nil
}

func (s *service) statWithRetry(ctx context.Context, key string) (blob.Info, error) {
	info, err := s.store.Stat(ctx, key)
	if err == nil || !errors.Is(err, blob.ErrUnavailable) {
		return info, err
	}
	s.sleep(ctx, statRetryDelay)
	if ctx.Err() != nil {
		return blob.Info{}, ctx.Err()
	}
	return s.store.Stat(ctx, key)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// cappedReader fails the read once more than `remaining` bytes have passed
// through, so oversized uploads abort mid-store-write instead of truncating
// silently.
type cappedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

var errPayloadTooLarge = errors.New("payload too large")

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining < 0 {
		c.exceeded = true
		return 0, errPayloadTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		c.exceeded = true
		return n, errPayloadTooLarge
	}
	return n, err
}
