package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harvestfield/farmlink-backend/api/responses"
	"github.com/harvestfield/farmlink-backend/api/validators"
	availabilitysvc "github.com/harvestfield/farmlink-backend/internal/availability"
	checkoutsvc "github.com/harvestfield/farmlink-backend/internal/checkout"
	schedulesvc "github.com/harvestfield/farmlink-backend/internal/schedule"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/logger"
)

type scheduleResponse struct {
	Month string               `json:"month"`
	Days  []schedulesvc.DayDTO `json:"days"`
}

// GetDeliverySchedule lists the platform open days for one month.
func GetDeliverySchedule(svc schedulesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedule service unavailable"))
			return
		}

		month := strings.TrimSpace(r.URL.Query().Get("month"))
		if month == "" {
			month = time.Now().UTC().Format("2006-01")
		}

		days, err := svc.ListMonth(r.Context(), month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, scheduleResponse{Month: month, Days: days})
	}
}

// UpsertDeliverySchedule is the admin bulk write for open days.
func UpsertDeliverySchedule(svc schedulesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "schedule service unavailable"))
			return
		}

		var payload schedulesvc.UpsertScheduleInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		days, err := svc.UpsertDays(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"days": days})
	}
}

type bulkAvailabilityRequest struct {
	FarmIDs []uuid.UUID `json:"farm_ids" validate:"required,min=1,max=200"`
	From    string      `json:"from" validate:"required,datetime=2006-01-02"`
	To      string      `json:"to" validate:"required,datetime=2006-01-02"`
}

// BulkAvailability answers, per date in range, which of the requested
// farms can ship.
func BulkAvailability(svc availabilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}

		var payload bulkAvailabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, err := time.Parse("2006-01-02", payload.From)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from must be YYYY-MM-DD"))
			return
		}
		to, err := time.Parse("2006-01-02", payload.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "to must be YYYY-MM-DD"))
			return
		}

		result, err := svc.Bulk(r.Context(), payload.FarmIDs, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// UpsertOwnAvailability records ship dates for the caller's farm.
func UpsertOwnAvailability(svc availabilitysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "availability service unavailable"))
			return
		}

		farmID, err := actorFarmID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload availabilitysvc.UpsertInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpsertOwn(r.Context(), farmID, payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// ResolveDelivery is the storefront dry run: evaluates one date against
// the buyer's cart without touching anything.
func ResolveDelivery(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.ResolveInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resolution, err := svc.Resolve(r.Context(), buyerID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resolution)
	}
}

// DeliveryCalendar renders one month of selectable day states for the
// buyer's current cart.
func DeliveryCalendar(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		month := strings.TrimSpace(r.URL.Query().Get("month"))
		if month == "" {
			month = time.Now().UTC().Format("2006-01")
		}

		view, err := svc.Calendar(r.Context(), buyerID, month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}
