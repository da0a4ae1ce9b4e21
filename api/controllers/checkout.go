package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jodise/jodise-backend/api/responses"
	"github.com/jodise/jodise-backend/internal/payments"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
)

// CheckoutInit prices the buyer's pending order and opens a charge with the
// active gateway. Calling it again within the reuse window returns the same
// session.
func CheckoutInit(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.InitializeCharge(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// CheckoutVerify consults the gateway for the charge's terminal state and,
// on success, settles the order through fulfillment.
func CheckoutVerify(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		reference := strings.TrimSpace(pathParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference required"))
			return
		}

		outcome, err := svc.VerifyCharge(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

func pathParam(r *http.Request, param string) string {
	return chi.URLParam(r, param)
}
