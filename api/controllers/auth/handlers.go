package auth

import (
	"context"
	"net/http"

	"github.com/exclusivemerch/store-backend/api/responses"
	"github.com/exclusivemerch/store-backend/api/validators"
	"github.com/exclusivemerch/store-backend/internal/auth"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
)

// AuthLogin exchanges email and password for an access token.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("auth service unavailable", logg)
	}
	return tokenEndpoint(logg, http.StatusOK, svc.Login)
}

// AuthRegister opens a customer account and returns a token for it.
func AuthRegister(svc auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("register service unavailable", logg)
	}
	return tokenEndpoint(logg, http.StatusCreated, svc.Register)
}

// tokenEndpoint decodes a Req body, runs issue and writes the token response.
// Tokens are never cached by intermediaries.
func tokenEndpoint[Req any](logg *logger.Logger, status int, issue func(context.Context, Req) (*auth.AuthResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := issue(ctx, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccessStatus(w, status, result)
	}
}

func unavailable(msg string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}
