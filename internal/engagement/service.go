package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jordanvela/cliphive-backend/internal/access"
	"github.com/jordanvela/cliphive-backend/pkg/db/models"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
)

const (
	maxCommentBytes  = 2000
	defaultListLimit = 100
)

type engagementRepository interface {
	CreateComment(ctx context.Context, videoID, userID uuid.UUID, body string) (*Comment, error)
	FindComment(ctx context.Context, id primitive.ObjectID) (*Comment, error)
	ListComments(ctx context.Context, videoID uuid.UUID, includeDeleted bool, limit int64) ([]Comment, error)
	UpdateCommentBody(ctx context.Context, id primitive.ObjectID, body string) (*Comment, error)
	MarkCommentDeleted(ctx context.Context, id primitive.ObjectID) error
	UpsertRating(ctx context.Context, videoID, userID uuid.UUID, value int) (*Rating, error)
	FindRating(ctx context.Context, videoID, userID uuid.UUID) (*Rating, error)
	DeleteRating(ctx context.Context, videoID, userID uuid.UUID) error
}

type videoGetter interface {
	Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Video, error)
}

// Service exposes comment and rating operations with access control applied.
type Service interface {
	AddComment(ctx context.Context, p *access.Principal, videoID uuid.UUID, body string) (*Comment, error)
	ListComments(ctx context.Context, p *access.Principal, videoID uuid.UUID, includeDeleted bool) ([]Comment, error)
	UpdateComment(ctx context.Context, p *access.Principal, commentID primitive.ObjectID, body string) (*Comment, error)
	DeleteComment(ctx context.Context, p *access.Principal, commentID primitive.ObjectID) error
	RateVideo(ctx context.Context, p *access.Principal, videoID uuid.UUID, value int) (*Rating, error)
	GetRating(ctx context.Context, p *access.Principal, videoID uuid.UUID) (*Rating, error)
	DeleteRating(ctx context.Context, p *access.Principal, videoID uuid.UUID) error
}

type service struct {
	repo   engagementRepository
	videos videoGetter
}

// NewService constructs the engagement service.
func NewService(repo engagementRepository, videos videoGetter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("engagement repository required")
	}
	if videos == nil {
		return nil, fmt.Errorf("video service required")
	}
	return &service{repo: repo, videos: videos}, nil
}

// AddComment attaches a comment to a video the principal can read.
func (s *service) AddComment(ctx context.Context, p *access.Principal, videoID uuid.UUID, body string) (*Comment, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}
	// Readability check doubles as the existence check; an invisible private
	// video surfaces as not found here.
	if _, err := s.videos.Get(ctx, p, videoID); err != nil {
		return nil, err
	}

	comment, err := s.repo.CreateComment(ctx, videoID, p.ID, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create comment")
	}
	return comment, nil
}

// ListComments returns a video's comments. Deleted comments are admin-only.
func (s *service) ListComments(ctx context.Context, p *access.Principal, videoID uuid.UUID, includeDeleted bool) ([]Comment, error) {
	if includeDeleted && !p.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "deleted comments are admin-only")
	}
	if _, err := s.videos.Get(ctx, p, videoID); err != nil {
		return nil, err
	}

	comments, err := s.repo.ListComments(ctx, videoID, includeDeleted, defaultListLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list comments")
	}
	return comments, nil
}

// UpdateComment edits a comment's body. Edits are owner-only, even for
// admins.
func (s *service) UpdateComment(ctx context.Context, p *access.Principal, commentID primitive.ObjectID, body string) (*Comment, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	body, err := validateBody(body)
	if err != nil {
		return nil, err
	}

	comment, err := s.loadComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if !access.CanEditEngagement(p, mustParseUUID(comment.UserID)) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the author may edit a comment")
	}
	if comment.State == enums.CommentStateDeleted.String() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "comment has been deleted")
	}

	updated, err := s.repo.UpdateCommentBody(ctx, commentID, body)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "comment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update comment")
	}
	return updated, nil
}

// DeleteComment soft-deletes a comment. The author or an admin may delete;
// deleting an already-deleted comment succeeds.
func (s *service) DeleteComment(ctx context.Context, p *access.Principal, commentID primitive.ObjectID) error {
	if p == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	comment, err := s.loadComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !access.CanDeleteEngagement(p, mustParseUUID(comment.UserID)) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to delete this comment")
	}
	if comment.State == enums.CommentStateDeleted.String() {
		return nil
	}

	if err := s.repo.MarkCommentDeleted(ctx, commentID); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "comment not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete comment")
	}
	return nil
}

// RateVideo records the principal's 1-5 rating, replacing any prior value.
func (s *service) RateVideo(ctx context.Context, p *access.Principal, videoID uuid.UUID, value int) (*Rating, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if value < 1 || value > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating value must be between 1 and 5")
	}
	if _, err := s.videos.Get(ctx, p, videoID); err != nil {
		return nil, err
	}

	rating, err := s.repo.UpsertRating(ctx, videoID, p.ID, value)
	if err != nil {
		if pkgerrors.IsMongoDuplicateKey(err) {
			// Concurrent first-write race: the other writer won the insert,
			// retry resolves to an update on the winner's document.
			rating, err = s.repo.UpsertRating(ctx, videoID, p.ID, value)
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert rating")
		}
	}
	return rating, nil
}

// GetRating returns the principal's own rating for a video.
func (s *service) GetRating(ctx context.Context, p *access.Principal, videoID uuid.UUID) (*Rating, error) {
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	rating, err := s.repo.FindRating(ctx, videoID, p.ID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "rating not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load rating")
	}
	return rating, nil
}

// DeleteRating removes the principal's own rating for a video.
func (s *service) DeleteRating(ctx context.Context, p *access.Principal, videoID uuid.UUID) error {
	if p == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	err := s.repo.DeleteRating(ctx, videoID, p.ID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rating not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete rating")
	}
	return nil
}

func (s *service) loadComment(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	comment, err := s.repo.FindComment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "comment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load comment")
	}
	return comment, nil
}

func validateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "comment body must not be empty")
	}
	if len(body) > maxCommentBytes {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("comment body must be ≤ %d bytes", maxCommentBytes))
	}
	return body, nil
}

func mustParseUUID(value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}
