package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jordanvela/cliphive-backend/api/responses"
	pkgAuth "github.com/jordanvela/cliphive-backend/pkg/auth"
	"github.com/jordanvela/cliphive-backend/pkg/auth/session"
	"github.com/jordanvela/cliphive-backend/pkg/config"
	pkgerrors "github.com/jordanvela/cliphive-backend/pkg/errors"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			ctx, err := seedAuthContext(r, token, cfg, verifier, logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth seeds the context with claims when a bearer token is present
// and valid, and lets anonymous requests through untouched. Routes behind it
// answer public and private callers differently (browse, stream).
func OptionalAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			// A presented-but-invalid token is rejected rather than silently
			// downgraded to anonymous.
			ctx, err := seedAuthContext(r, token, cfg, verifier, logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

func seedAuthContext(r *http.Request, token string, cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) (ctx context.Context, err error) {
	claims, parseErr := pkgAuth.ParseAccessToken(cfg, token)
	if parseErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, parseErr, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if verifier != nil {
		ok, sessErr := verifier.HasSession(r.Context(), claims.ID)
		if sessErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, sessErr, "validate session")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}

	ctx = WithUserID(r.Context(), claims.UserID.String())
	ctx = WithRole(ctx, string(claims.Role))
	ctx = WithSessionID(ctx, claims.ID)

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"user_id":    claims.UserID.String(),
			"actor_role": string(claims.Role),
		})
	}
	return ctx, nil
}
