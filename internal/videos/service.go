package videos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jordanvela/cliphive-backend/internal/access"
	"github.com/jordanvela/cliphive-backend/pkg/db/models"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type videoRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	List(ctx context.Context, opts ListOptions) ([]models.Video, error)
	Update(ctx context.Context, video *models.Video) (*models.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type blobDeleter interface {
	Delete(ctx context.Context, key string) error
}

type cleanupPublisher interface {
	PublishBlobDeleted(ctx context.Context, videoID uuid.UUID, objectKey string) error
}

// Service exposes video metadata operations with access control applied.
type Service interface {
	Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Video, error)
	List(ctx context.Context, p *access.Principal, input ListInput) ([]models.Video, error)
	Update(ctx context.Context, p *access.Principal, id uuid.UUID, input UpdateInput) (*models.Video, error)
	Delete(ctx context.Context, p *access.Principal, id uuid.UUID) error
}

type service struct {
	repo    videoRepository
	store   blobDeleter
	cleanup cleanupPublisher
	logg    *logger.Logger
}

// NewService constructs the video metadata service.
func NewService(repo videoRepository, store blobDeleter, cleanup cleanupPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("video repository required")
	}
	if store == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, store: store, cleanup: cleanup, logg: logg}, nil
}

// ListInput models browse parameters.
type ListInput struct {
	OwnerID *uuid.UUID
	Limit   int
	Offset  int
}

// UpdateInput models the mutable video fields. Nil pointers leave the field
// untouched.
type UpdateInput struct {
	Title       *string
	Description *string
	Visibility  *enums.Visibility
}

// Get loads a single video. Private or pending videos the principal cannot
// read surface as not found so their existence is not leaked.
func (s *service) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Video, error) {
	video, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(p, video) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
	}
	return video, nil
}

// List browses videos visible to the principal: public ready videos plus the
// caller's own rows; admins see everything.
func (s *service) List(ctx context.Context, p *access.Principal, input ListInput) ([]models.Video, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	opts := ListOptions{
		OwnerID: input.OwnerID,
		Limit:   limit,
		Offset:  input.Offset,
	}
	if p != nil {
		if p.IsAdmin() {
			opts.Unrestricted = true
		} else {
			viewerID := p.ID
			opts.ViewerID = &viewerID
		}
	}

	rows, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list videos")
	}
	return rows, nil
}

// Update applies metadata changes. Mutation requires ownership or admin.
func (s *service) Update(ctx context.Context, p *access.Principal, id uuid.UUID, input UpdateInput) (*models.Video, error) {
	video, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(p, video) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
	}
	if !access.CanMutate(p, video) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to modify this video")
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
		}
		video.Title = title
	}
	if input.Description != nil {
		video.Description = strings.TrimSpace(*input.Description)
	}
	if input.Visibility != nil {
		if !input.Visibility.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid visibility")
		}
		video.Visibility = *input.Visibility
	}

	updated, err := s.repo.Update(ctx, video)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update video")
	}
	return updated, nil
}

// Delete removes the metadata record, then clears the blob best-effort: an
// inline delete attempt plus a cleanup event so the worker catches anything
// the inline attempt missed. Blob failures never fail the request once the
// record is gone.
func (s *service) Delete(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	video, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !access.CanRead(p, video) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
	}
	if !access.CanMutate(p, video) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to delete this video")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete video record")
	}

	logCtx := s.logg.WithVideoID(s.logg.WithObjectKey(ctx, video.ObjectKey), id.String())
	if err := s.store.Delete(ctx, video.ObjectKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.logg.Warn(logCtx, "inline blob delete failed, deferring to cleanup worker")
	}
	if s.cleanup != nil {
		if err := s.cleanup.PublishBlobDeleted(ctx, id, video.ObjectKey); err != nil {
			s.logg.Warn(logCtx, "publishing blob cleanup event failed")
		}
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	video, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load video")
	}
	return video, nil
}
