package webhooks

import (
	"context"
	"encoding/json"

	"github.com/jodise/jodise-backend/internal/fulfillment"
	"github.com/jodise/jodise-backend/internal/payments"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/metrics"
)

// Provider event types that settle a charge. Everything else is
// acknowledged and ignored.
const (
	paystackChargeSuccess  = "charge.success"
	stripeSessionCompleted = "checkout.session.completed"
)

type ServiceParams struct {
	Registry    *payments.Registry
	Fulfillment fulfillment.Service
	Metrics     *metrics.PaymentMetrics
	Logger      *logger.Logger
}

// Service is the ingress for gateway webhooks. The signature over the
// raw body is verified before the payload is parsed; an unverified body
// is never decoded.
type Service struct {
	registry    *payments.Registry
	fulfillment fulfillment.Service
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway registry required")
	}
	if params.Fulfillment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		registry:    params.Registry,
		fulfillment: params.Fulfillment,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentStatus string `json:"payment_status"`
			AmountTotal   int64  `json:"amount_total"`
		} `json:"object"`
	} `json:"data"`
}

// Handle processes one webhook delivery. It returns Unauthorized when the
// signature does not match, nil for events that were settled or that carry
// nothing actionable, and a retryable error only for transient failures so
// the provider redelivers.
func (s *Service) Handle(ctx context.Context, gatewayName enums.Gateway, body []byte, signature string) error {
	gateway, err := s.registry.Get(gatewayName)
	if err != nil {
		return err
	}

	if !gateway.VerifyWebhookSignature(body, signature) {
		s.metrics.IncWebhook(string(gatewayName), "invalid_signature")
		s.logg.Warn(ctx, "webhook signature mismatch")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch").WithDetails(map[string]any{
			"gateway": gatewayName,
		})
	}

	input, ok, err := s.decode(ctx, gatewayName, body)
	if err != nil {
		// A verified but undecodable body will not improve on redelivery.
		s.metrics.IncWebhook(string(gatewayName), "malformed")
		s.logg.Error(ctx, "webhook payload malformed", err)
		return nil
	}
	if !ok {
		s.metrics.IncWebhook(string(gatewayName), "ignored")
		return nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"gateway":   gatewayName,
		"reference": input.Reference,
	})

	result, err := s.fulfillment.Fulfill(ctx, input)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			switch typed.Code() {
			case pkgerrors.CodeNotFound, pkgerrors.CodeAmountMismatch,
				pkgerrors.CodeInsufficientStock, pkgerrors.CodeStateConflict:
				// Terminal for this delivery; redelivery cannot change the outcome.
				s.metrics.IncWebhook(string(gatewayName), "rejected")
				s.logg.Error(ctx, "webhook settlement rejected", err)
				return nil
			}
		}
		s.metrics.IncWebhook(string(gatewayName), "error")
		return err
	}

	if result.AlreadySettled {
		s.metrics.IncWebhook(string(gatewayName), "duplicate")
	} else {
		s.metrics.IncWebhook(string(gatewayName), "settled")
		s.logg.Info(ctx, "webhook settled order")
	}
	return nil
}

// decode maps a provider payload onto a fulfillment input. ok is false for
// event types that do not settle a charge.
func (s *Service) decode(ctx context.Context, gatewayName enums.Gateway, body []byte) (fulfillment.Input, bool, error) {
	switch gatewayName {
	case enums.GatewayPaystack:
		var event paystackEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fulfillment.Input{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paystack event")
		}
		if event.Event != paystackChargeSuccess {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{"event": event.Event}), "webhook event ignored")
			return fulfillment.Input{}, false, nil
		}
		if event.Data.Reference == "" {
			return fulfillment.Input{}, false, pkgerrors.New(pkgerrors.CodeValidation, "paystack event missing reference")
		}
		return fulfillment.Input{
			Reference:   event.Data.Reference,
			AmountMinor: event.Data.Amount,
			Raw:         json.RawMessage(body),
		}, true, nil
	case enums.GatewayStripe:
		var event stripeEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fulfillment.Input{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stripe event")
		}
		if event.Type != stripeSessionCompleted || event.Data.Object.PaymentStatus != "paid" {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{"event": event.Type}), "webhook event ignored")
			return fulfillment.Input{}, false, nil
		}
		if event.Data.Object.ID == "" {
			return fulfillment.Input{}, false, pkgerrors.New(pkgerrors.CodeValidation, "stripe event missing session id")
		}
		return fulfillment.Input{
			Reference:   event.Data.Object.ID,
			AmountMinor: event.Data.Object.AmountTotal,
			Raw:         json.RawMessage(body),
		}, true, nil
	default:
		return fulfillment.Input{}, false, pkgerrors.New(pkgerrors.CodeValidation, "unsupported gateway").WithDetails(map[string]any{
			"gateway": gatewayName,
		})
	}
}
