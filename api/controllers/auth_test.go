package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jordanvela/cliphive-backend/api/middleware"
	pkgAuth "github.com/jordanvela/cliphive-backend/pkg/auth"
	"github.com/jordanvela/cliphive-backend/pkg/auth/session"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
)

var authTestJWT = config.JWTConfig{
	Secret:            "auth-controller-test-secret",
	Issuer:            "cliphive-test",
	ExpirationMinutes: 60,
	RefreshTokenDays:  7,
}

type stubSessionManager struct {
	rotatedFrom []string
	rotateErr   error
	revoked     []string
	revokeErr   error
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	s.rotatedFrom = append(s.rotatedFrom, oldAccessID)
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	return "rotated-access-id", "rotated-refresh-token", nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return s.revokeErr
}

func refreshRequestBody(t *testing.T, accessToken, refreshToken string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRefreshTokenRotatesExpiredToken(t *testing.T) {
	// Minted two hours in the past with a one hour TTL, so the token is
	// expired but its signature and jti still check out.
	expired, err := pkgAuth.MintAccessToken(authTestJWT, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleCreator,
		JTI:    "old-access-id",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	manager := &stubSessionManager{}
	handler := RefreshToken(authTestJWT, manager, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, refreshRequestBody(t, expired, "stored-refresh-token"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(manager.rotatedFrom) != 1 || manager.rotatedFrom[0] != "old-access-id" {
		t.Fatalf("expected rotation keyed by the old jti, got %v", manager.rotatedFrom)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["refresh_token"] != "rotated-refresh-token" {
		t.Fatalf("unexpected refresh token %q", envelope.Data["refresh_token"])
	}

	claims, err := pkgAuth.ParseAccessToken(authTestJWT, envelope.Data["access_token"])
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.ID != "rotated-access-id" {
		t.Fatalf("expected rotated jti, got %q", claims.ID)
	}
}

func TestRefreshTokenRejectsBadRefreshToken(t *testing.T) {
	expired, err := pkgAuth.MintAccessToken(authTestJWT, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleConsumer,
		JTI:    "old-access-id",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	manager := &stubSessionManager{rotateErr: session.ErrInvalidRefreshToken}
	handler := RefreshToken(authTestJWT, manager, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, refreshRequestBody(t, expired, "wrong-token"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestRefreshTokenRejectsForgedToken(t *testing.T) {
	forgedCfg := authTestJWT
	forgedCfg.Secret = "some-other-secret"
	forged, err := pkgAuth.MintAccessToken(forgedCfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleConsumer,
		JTI:    "forged-id",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	manager := &stubSessionManager{}
	handler := RefreshToken(authTestJWT, manager, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, refreshRequestBody(t, forged, "stored-refresh-token"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if len(manager.rotatedFrom) != 0 {
		t.Fatal("forged token must never reach the session store")
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	manager := &stubSessionManager{}
	handler := Logout(manager, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), "active-session-id"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(manager.revoked) != 1 || manager.revoked[0] != "active-session-id" {
		t.Fatalf("expected the session to be revoked, got %v", manager.revoked)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	handler := Logout(&stubSessionManager{}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
