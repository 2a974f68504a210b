package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/exclusivemerch/store-backend/api/responses"
	pkgAuth "github.com/exclusivemerch/store-backend/pkg/auth"
	"github.com/exclusivemerch/store-backend/pkg/config"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
)

// Auth requires a bearer access token and stores its user id and role on the
// request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(ctx, logg, w, `Bearer`, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, pkgAuth.ErrTokenExpired) {
					msg = "token expired"
				}
				unauthorized(ctx, logg, w, `Bearer error="invalid_token"`, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			userID, role := claims.UserID.String(), string(claims.Role)
			ctx = WithRole(WithUserID(ctx, userID), role)
			if logg != nil {
				ctx = logg.WithRole(logg.WithUserID(ctx, userID), role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, challenge string, err error) {
	w.Header().Set("WWW-Authenticate", challenge)
	responses.WriteError(ctx, logg, w, err)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
