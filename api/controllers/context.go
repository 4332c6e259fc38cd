package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/api/middleware"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
)

// actorUserID pulls the authenticated user id out of the request context.
func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

// actorFarmID requires the caller to be attached to a farm.
func actorFarmID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.FarmIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "farm context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farm id")
	}
	return id, nil
}

// optionalFarmID returns the caller's farm id when one is attached.
func optionalFarmID(r *http.Request) *uuid.UUID {
	raw := middleware.FarmIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func isAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin)
}
