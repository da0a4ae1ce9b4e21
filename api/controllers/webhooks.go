package controllers

import (
	"io"
	"net/http"

	"github.com/jodise/jodise-backend/api/responses"
	"github.com/jodise/jodise-backend/internal/payments"
	"github.com/jodise/jodise-backend/internal/webhooks"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
)

// maxWebhookBody caps gateway payloads well above anything the providers send.
const maxWebhookBody = 1 << 20

// PaymentWebhook receives gateway callbacks. The raw body is handed to the
// ingress service untouched so the signature check runs over the exact bytes
// the provider signed.
func PaymentWebhook(svc *webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		gateway, err := enums.ParseGateway(pathParam(r, "gateway"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown gateway"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		if err := svc.Handle(r.Context(), gateway, body, signatureHeader(r, gateway)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}

func signatureHeader(r *http.Request, gateway enums.Gateway) string {
	switch gateway {
	case enums.GatewayStripe:
		return r.Header.Get(payments.StripeSignatureHeader)
	default:
		return r.Header.Get(payments.PaystackSignatureHeader)
	}
}
