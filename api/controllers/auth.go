package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jordanvela/cliphive-backend/api/middleware"
	"github.com/jordanvela/cliphive-backend/api/responses"
	"github.com/jordanvela/cliphive-backend/api/validators"
	pkgAuth "github.com/jordanvela/cliphive-backend/pkg/auth"
	"github.com/jordanvela/cliphive-backend/pkg/auth/session"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

// sessionRotator is the Manager surface the refresh endpoint needs.
type sessionRotator interface {
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
}

// sessionRevoker is the Manager surface the logout endpoint needs.
type sessionRevoker interface {
	Revoke(ctx context.Context, accessID string) error
}

type refreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshToken handles rotating an expired access token. The old token is
// parsed without expiry validation to recover its jti, the refresh token is
// verified against the stored session, and a fresh pair is issued.
func RefreshToken(cfg config.JWTConfig, manager sessionRotator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable"))
			return
		}

		var payload refreshRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, payload.AccessToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
			return
		}
		if claims.ID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}

		newAccessID, newRefresh, err := manager.Rotate(r.Context(), claims.ID, payload.RefreshToken)
		if err != nil {
			if errors.Is(err, session.ErrInvalidRefreshToken) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "rotate session"))
			return
		}

		accessToken, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
			UserID: claims.UserID,
			Role:   claims.Role,
			JTI:    newAccessID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token"))
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"access_token":  accessToken,
			"refresh_token": newRefresh,
		})
	}
}

// Logout handles revoking the caller's session so the token stops
// validating at the middleware's session check.
func Logout(manager sessionRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable"))
			return
		}

		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := manager.Revoke(r.Context(), sessionID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "revoke session"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
