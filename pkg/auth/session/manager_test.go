package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type mockKeyer struct{}

func (mockKeyer) AccessSessionKey(accessID string) string {
	return "session:access:" + accessID
}

func newTestManager(store sessionStore) *Manager {
	return &Manager{store: store, keyer: mockKeyer{}, ttl: time.Hour}
}

func TestGenerateAndRotate(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	mgr := newTestManager(store)

	accessID := NewAccessID()
	token, err := mgr.Generate(ctx, accessID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty refresh token")
	}

	newID, newToken, err := mgr.Rotate(ctx, accessID, token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newID == accessID {
		t.Fatal("expected a fresh access id")
	}
	if newToken == token {
		t.Fatal("expected a fresh refresh token")
	}

	// The old session must be gone.
	if _, _, err := mgr.Rotate(ctx, accessID, token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRotateRejectsMismatchedToken(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(newMockStore())

	accessID := NewAccessID()
	if _, err := mgr.Generate(ctx, accessID); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, _, err := mgr.Rotate(ctx, accessID, "forged"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestHasSession(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(newMockStore())

	accessID := NewAccessID()
	ok, err := mgr.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if ok {
		t.Fatal("expected no session before generate")
	}

	if _, err := mgr.Generate(ctx, accessID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	ok, err = mgr.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if !ok {
		t.Fatal("expected session after generate")
	}

	if err := mgr.Revoke(ctx, accessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = mgr.HasSession(ctx, accessID)
	if err != nil {
		t.Fatalf("has session: %v", err)
	}
	if ok {
		t.Fatal("expected no session after revoke")
	}
}
