package controllers

import (
	"net/http"

	"github.com/harvestfield/farmlink-backend/api/responses"
	"github.com/harvestfield/farmlink-backend/api/validators"
	checkoutsvc "github.com/harvestfield/farmlink-backend/internal/checkout"
	pkgerrors "github.com/harvestfield/farmlink-backend/pkg/errors"
	"github.com/harvestfield/farmlink-backend/pkg/logger"
)

// SubmitCheckout converts the active cart into an order on the chosen
// date. A partially fulfillable date comes back as 422 with the blocked
// lines and the next full date, the client re-submits with a decision.
func SubmitCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload checkoutsvc.SubmitInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Submit(r.Context(), buyerID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
