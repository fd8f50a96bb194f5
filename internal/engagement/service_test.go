package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jordanvela/cliphive-backend/internal/access"
	"github.com/jordanvela/cliphive-backend/pkg/db/models"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
)

type stubEngagementRepo struct {
	comments map[primitive.ObjectID]*Comment
	ratings  map[string]*Rating
	deleted  []primitive.ObjectID
}

func newStubEngagementRepo() *stubEngagementRepo {
	return &stubEngagementRepo{
		comments: make(map[primitive.ObjectID]*Comment),
		ratings:  make(map[string]*Rating),
	}
}

func (s *stubEngagementRepo) CreateComment(ctx context.Context, videoID, userID uuid.UUID, body string) (*Comment, error) {
	comment := &Comment{
		ID:        primitive.NewObjectID(),
		VideoID:   videoID.String(),
		UserID:    userID.String(),
		Body:      body,
		State:     enums.CommentStateActive.String(),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.comments[comment.ID] = comment
	return comment, nil
}

func (s *stubEngagementRepo) FindComment(ctx context.Context, id primitive.ObjectID) (*Comment, error) {
	c, ok := s.comments[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *stubEngagementRepo) ListComments(ctx context.Context, videoID uuid.UUID, includeDeleted bool, limit int64) ([]Comment, error) {
	out := []Comment{}
	for _, c := range s.comments {
		if c.VideoID != videoID.String() {
			continue
		}
		if !includeDeleted && c.State == enums.CommentStateDeleted.String() {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *stubEngagementRepo) UpdateCommentBody(ctx context.Context, id primitive.ObjectID, body string) (*Comment, error) {
	c, ok := s.comments[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	c.Body = body
	c.UpdatedAt = time.Now().UTC()
	copied := *c
	return &copied, nil
}

func (s *stubEngagementRepo) MarkCommentDeleted(ctx context.Context, id primitive.ObjectID) error {
	c, ok := s.comments[id]
	if !ok {
		return ErrDocumentNotFound
	}
	c.State = enums.CommentStateDeleted.String()
	s.deleted = append(s.deleted, id)
	return nil
}

func ratingKey(videoID, userID uuid.UUID) string {
	return videoID.String() + "/" + userID.String()
}

func (s *stubEngagementRepo) UpsertRating(ctx context.Context, videoID, userID uuid.UUID, value int) (*Rating, error) {
	rating := &Rating{
		VideoID:   videoID.String(),
		UserID:    userID.String(),
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	s.ratings[ratingKey(videoID, userID)] = rating
	copied := *rating
	return &copied, nil
}

func (s *stubEngagementRepo) FindRating(ctx context.Context, videoID, userID uuid.UUID) (*Rating, error) {
	r, ok := s.ratings[ratingKey(videoID, userID)]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *stubEngagementRepo) DeleteRating(ctx context.Context, videoID, userID uuid.UUID) error {
	key := ratingKey(videoID, userID)
	if _, ok := s.ratings[key]; !ok {
		return ErrDocumentNotFound
	}
	delete(s.ratings, key)
	return nil
}

type stubVideoGetter struct {
	videos map[uuid.UUID]*models.Video
}

func (s *stubVideoGetter) Get(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Video, error) {
	v, ok := s.videos[id]
	if !ok || !access.CanRead(p, v) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "video not found")
	}
	return v, nil
}

func newFixture(t *testing.T, videos ...*models.Video) (Service, *stubEngagementRepo) {
	t.Helper()
	repo := newStubEngagementRepo()
	getter := &stubVideoGetter{videos: make(map[uuid.UUID]*models.Video)}
	for _, v := range videos {
		getter.videos[v.ID] = v
	}
	svc, err := NewService(repo, getter)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func publicVideo() *models.Video {
	return &models.Video{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		Visibility: enums.VisibilityPublic,
		Status:     enums.VideoStatusReady,
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestAddCommentRequiresAuthAndVisibleVideo(t *testing.T) {
	t.Parallel()

	video := publicVideo()
	svc, _ := newFixture(t, video)

	_, err := svc.AddComment(context.Background(), nil, video.ID, "nice clip")
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	user := &access.Principal{ID: uuid.New(), Role: enums.RoleConsumer}
	_, err = svc.AddComment(context.Background(), user, uuid.New(), "nice clip")
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.AddComment(context.Background(), user, video.ID, "  ")
	requireCode(t, err, pkgerrors.CodeValidation)

	comment, err := svc.AddComment(context.Background(), user, video.ID, "  nice clip  ")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if comment.Body != "nice clip" {
		t.Fatalf("body not trimmed: %q", comment.Body)
	}
	if comment.State != enums.CommentStateActive.String() {
		t.Fatalf("expected active comment, got %q", comment.State)
	}
}

func TestCommentEditIsOwnerOnly(t *testing.T) {
	t.Parallel()

	video := publicVideo()
	svc, _ := newFixture(t, video)

	author := &access.Principal{ID: uuid.New(), Role: enums.RoleConsumer}
	comment, err := svc.AddComment(context.Background(), author, video.ID, "first")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	// Admins cannot edit someone else's comment.
	admin := &access.Principal{ID: uuid.New(), Role: enums.RoleAdmin}
	_, err = svc.UpdateComment(context.Background(), admin, comment.ID, "edited")
	requireCode(t, err, pkgerrors.CodeForbidden)

	updated, err := svc.UpdateComment(context.Background(), author, comment.ID, "edited")
	if err != nil {
		t.Fatalf("author edit: %v", err)
	}
	if updated.Body != "edited" {
		t.Fatalf("body not updated: %q", updated.Body)
	}
}

func TestCommentDeleteAllowsOwnerOrAdmin(t *testing.T) {
	t.Parallel()

	video := publicVideo()
	svc, repo := newFixture(t, video)

	author := &access.Principal{ID: uuid.New(), Role: enums.RoleConsumer}
	comment, err := svc.AddComment(context.Background(), author, video.ID, "to be removed")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	stranger := &access.Principal{ID: uuid.New(), Role: enums.RoleCreator}
	err = svc.DeleteComment(context.Background(), stranger, comment.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	admin := &access.Principal{ID: uuid.New(), Role: enums.RoleAdmin}
	if err := svc.DeleteComment(context.Background(), admin, comment.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if len(repo.deleted) != 1 {
		t.Fatal("comment not soft-deleted")
	}

	// Deleting again is a no-op.
	if err := svc.DeleteComment(context.Background(), admin, comment.ID); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}

	// The document survives; editing it is now a conflict.
	_, err = svc.UpdateComment(context.Background(), author, comment.ID, "too late")
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestDeletedCommentsVisibleToAdminOnly(t *testing.T) {
	t.Parallel()

	video := publicVideo()
	svc, _ := newFixture(t, video)

	author := &access.Principal{ID: uuid.New(), Role: enums.RoleConsumer}
	comment, err := svc.AddComment(context.Background(), author, video.ID, "soon gone")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if err := svc.DeleteComment(context.Background(), author, comment.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = svc.ListComments(context.Background(), author, video.ID, true)
	requireCode(t, err, pkgerrors.CodeForbidden)

	visible, err := svc.ListComments(context.Background(), author, video.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("deleted comment leaked into default listing: %v", visible)
	}

	admin := &access.Principal{ID: uuid.New(), Role: enums.RoleAdmin}
	audit, err := svc.ListComments(context.Background(), admin, video.ID, true)
	if err != nil {
		t.Fatalf("admin audit list: %v", err)
	}
	if len(audit) != 1 {
		t.Fatalf("expected deleted comment in audit listing, got %d", len(audit))
	}
}

func TestRatingUpsertAndBounds(t *testing.T) {
	t.Parallel()

	video := publicVideo()
	svc, repo := newFixture(t, video)
	user := &access.Principal{ID: uuid.New(), Role: enums.RoleConsumer}

	for _, bad := range []int{0, 6, -1} {
		_, err := svc.RateVideo(context.Background(), user, video.ID, bad)
		requireCode(t, err, pkgerrors.CodeValidation)
	}

	rating, err := svc.RateVideo(context.Background(), user, video.ID, 4)
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rating.Value != 4 {
		t.Fatalf("unexpected value %d", rating.Value)
	}

	// Re-rating replaces, never duplicates.
	rating, err = svc.RateVideo(context.Background(), user, video.ID, 2)
	if err != nil {
		t.Fatalf("re-rate: %v", err)
	}
	if rating.Value != 2 {
		t.Fatalf("expected replacement value 2, got %d", rating.Value)
	}
	if len(repo.ratings) != 1 {
		t.Fatalf("expected a single rating document, got %d", len(repo.ratings))
	}

	if err := svc.DeleteRating(context.Background(), user, video.ID); err != nil {
		t.Fatalf("delete rating: %v", err)
	}
	err = svc.DeleteRating(context.Background(), user, video.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetRating(t *testing.T) {
	t.Parallel()

	video := publicVideo()
	svc, _ := newFixture(t, video)
	user := &access.Principal{ID: uuid.New(), Role: enums.RoleConsumer}

	_, err := svc.GetRating(context.Background(), user, video.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	if _, err := svc.RateVideo(context.Background(), user, video.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}

	rating, err := svc.GetRating(context.Background(), user, video.ID)
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if rating.Value != 5 {
		t.Fatalf("unexpected value %d", rating.Value)
	}

	// Another user sees only their own absence, not the first user's rating.
	other := &access.Principal{ID: uuid.New(), Role: enums.RoleConsumer}
	_, err = svc.GetRating(context.Background(), other, video.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = svc.GetRating(context.Background(), nil, video.ID)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}
