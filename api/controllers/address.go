package controllers

import (
	"net/http"

	"github.com/exclusivemerch/store-backend/api/middleware"
	"github.com/exclusivemerch/store-backend/api/responses"
	"github.com/exclusivemerch/store-backend/api/validators"
	"github.com/exclusivemerch/store-backend/internal/address"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
)

// AddressGet returns the caller's saved delivery address.
func AddressGet(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}

		userID, err := middleware.UserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		addr, err := svc.Get(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, addr)
	}
}

// AddressSave creates or replaces the caller's delivery address.
func AddressSave(svc address.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}

		userID, err := middleware.UserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload address.SaveInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		addr, err := svc.Save(ctx, userID, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, addr)
	}
}
