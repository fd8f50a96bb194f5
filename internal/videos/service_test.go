package videos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jordanvela/cliphive-backend/internal/access"
	"github.com/jordanvela/cliphive-backend/pkg/db/models"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

type stubRepo struct {
	videos     map[uuid.UUID]*models.Video
	listCalls  []ListOptions
	deleted    []uuid.UUID
	findErr    error
	deleteErr  error
	updateErr  error
	lastUpdate *models.Video
}

func newStubRepo(videos ...*models.Video) *stubRepo {
	m := make(map[uuid.UUID]*models.Video, len(videos))
	for _, v := range videos {
		m[v.ID] = v
	}
	return &stubRepo{videos: m}
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	v, ok := s.videos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *stubRepo) List(ctx context.Context, opts ListOptions) ([]models.Video, error) {
	s.listCalls = append(s.listCalls, opts)
	return nil, nil
}

func (s *stubRepo) Update(ctx context.Context, video *models.Video) (*models.Video, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.lastUpdate = video
	return video, nil
}

func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	delete(s.videos, id)
	return nil
}

type stubDeleter struct {
	keys []string
	err  error
}

func (s *stubDeleter) Delete(ctx context.Context, key string) error {
	s.keys = append(s.keys, key)
	return s.err
}

type stubPublisher struct {
	events []string
	err    error
}

func (s *stubPublisher) PublishBlobDeleted(ctx context.Context, videoID uuid.UUID, objectKey string) error {
	s.events = append(s.events, objectKey)
	return s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "videos-test"})
}

func readyVideo(owner uuid.UUID, vis enums.Visibility) *models.Video {
	return &models.Video{
		ID:         uuid.New(),
		Title:      "clip",
		OwnerID:    owner,
		Visibility: vis,
		Status:     enums.VideoStatusReady,
		ObjectKey:  "videos/" + uuid.NewString() + ".mp4",
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

func TestGetConflatesInvisibleWithMissing(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	private := readyVideo(owner, enums.VisibilityPrivate)
	repo := newStubRepo(private)
	svc, err := NewService(repo, &stubDeleter{}, &stubPublisher{}, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	// Anonymous caller on a private video: not found, not forbidden.
	_, err = svc.Get(context.Background(), nil, private.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	// Genuinely missing video gives the identical code.
	_, err = svc.Get(context.Background(), nil, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	// The owner still sees it.
	got, err := svc.Get(context.Background(), &access.Principal{ID: owner, Role: enums.RoleConsumer}, private.ID)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if got.ID != private.ID {
		t.Fatalf("unexpected video %s", got.ID)
	}
}

func TestListVisibilityScoping(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	svc, err := NewService(repo, &stubDeleter{}, &stubPublisher{}, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.List(context.Background(), nil, ListInput{}); err != nil {
		t.Fatalf("anonymous list: %v", err)
	}
	userID := uuid.New()
	if _, err := svc.List(context.Background(), &access.Principal{ID: userID, Role: enums.RoleConsumer}, ListInput{}); err != nil {
		t.Fatalf("user list: %v", err)
	}
	if _, err := svc.List(context.Background(), &access.Principal{ID: uuid.New(), Role: enums.RoleAdmin}, ListInput{}); err != nil {
		t.Fatalf("admin list: %v", err)
	}

	if len(repo.listCalls) != 3 {
		t.Fatalf("expected 3 list calls, got %d", len(repo.listCalls))
	}
	if repo.listCalls[0].ViewerID != nil || repo.listCalls[0].Unrestricted {
		t.Fatal("anonymous list must filter to public ready only")
	}
	if repo.listCalls[1].ViewerID == nil || *repo.listCalls[1].ViewerID != userID {
		t.Fatal("authenticated list must widen to the viewer's own rows")
	}
	if !repo.listCalls[2].Unrestricted {
		t.Fatal("admin list must be unrestricted")
	}
}

func TestUpdateAuthorization(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	video := readyVideo(owner, enums.VisibilityPublic)
	repo := newStubRepo(video)
	svc, err := NewService(repo, &stubDeleter{}, &stubPublisher{}, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	title := "renamed"

	// Non-owner creator on a public video can see it but not touch it.
	_, err = svc.Update(context.Background(), &access.Principal{ID: uuid.New(), Role: enums.RoleCreator}, video.ID, UpdateInput{Title: &title})
	requireCode(t, err, pkgerrors.CodeForbidden)

	updated, err := svc.Update(context.Background(), &access.Principal{ID: owner, Role: enums.RoleConsumer}, video.ID, UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "renamed" {
		t.Fatalf("title not applied: %q", updated.Title)
	}

	empty := "   "
	_, err = svc.Update(context.Background(), &access.Principal{ID: owner, Role: enums.RoleConsumer}, video.ID, UpdateInput{Title: &empty})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestUpdateInvisiblePrivateIsNotFound(t *testing.T) {
	t.Parallel()

	video := readyVideo(uuid.New(), enums.VisibilityPrivate)
	repo := newStubRepo(video)
	svc, err := NewService(repo, &stubDeleter{}, &stubPublisher{}, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	title := "x"
	_, err = svc.Update(context.Background(), &access.Principal{ID: uuid.New(), Role: enums.RoleCreator}, video.ID, UpdateInput{Title: &title})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeleteRemovesRecordAndBlobBestEffort(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	video := readyVideo(owner, enums.VisibilityPublic)
	repo := newStubRepo(video)
	deleter := &stubDeleter{}
	publisher := &stubPublisher{}
	svc, err := NewService(repo, deleter, publisher, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	p := &access.Principal{ID: owner, Role: enums.RoleCreator}
	if err := svc.Delete(context.Background(), p, video.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != video.ID {
		t.Fatal("record not deleted")
	}
	if len(deleter.keys) != 1 || deleter.keys[0] != video.ObjectKey {
		t.Fatal("blob delete not attempted")
	}
	if len(publisher.events) != 1 || publisher.events[0] != video.ObjectKey {
		t.Fatal("cleanup event not published")
	}
}

func TestDeleteSucceedsWhenBlobRemovalFails(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	video := readyVideo(owner, enums.VisibilityPublic)
	repo := newStubRepo(video)
	deleter := &stubDeleter{err: errors.New("store down")}
	publisher := &stubPublisher{}
	svc, err := NewService(repo, deleter, publisher, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	p := &access.Principal{ID: owner, Role: enums.RoleCreator}
	if err := svc.Delete(context.Background(), p, video.ID); err != nil {
		t.Fatalf("delete should succeed despite blob failure: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatal("cleanup event must still be published")
	}
}

func TestDeleteAuthorization(t *testing.T) {
	t.Parallel()

	video := readyVideo(uuid.New(), enums.VisibilityPublic)
	repo := newStubRepo(video)
	svc, err := NewService(repo, &stubDeleter{}, &stubPublisher{}, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Delete(context.Background(), &access.Principal{ID: uuid.New(), Role: enums.RoleCreator}, video.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	err = svc.Delete(context.Background(), &access.Principal{ID: uuid.New(), Role: enums.RoleAdmin}, video.ID)
	if err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}
