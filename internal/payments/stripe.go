package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jodise/jodise-backend/pkg/config"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

// StripeSignatureHeader carries the timestamped HMAC-SHA256 signature scheme
// (t=...,v1=...) over "timestamp.rawbody".
const StripeSignatureHeader = "Stripe-Signature"

// stripeSignatureTolerance bounds how stale a signed webhook may be.
const stripeSignatureTolerance = 5 * time.Minute

type stripeGateway struct {
	http          *resty.Client
	webhookSecret string
	successURL    string
	cancelURL     string
	now           func() time.Time
}

// NewStripeGateway returns the Stripe Checkout adapter.
func NewStripeGateway(cfg config.StripeConfig) (Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe secret key required")
	}
	if cfg.WebhookSecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe webhook secret required")
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded")
	return &stripeGateway{
		http:          client,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		now:           time.Now,
	}, nil
}

func (g *stripeGateway) Name() enums.Gateway {
	return enums.GatewayStripe
}

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}

// Initialize creates a Checkout Session. The session id becomes the stored
// transaction reference; our own reference travels as client_reference_id.
func (g *stripeGateway) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	form := map[string]string{
		"mode":                "payment",
		"success_url":         g.successURL,
		"cancel_url":          g.cancelURL,
		"client_reference_id": params.Reference,
		"customer_email":      params.Email,

		"line_items[0][quantity]":                       "1",
		"line_items[0][price_data][currency]":           strings.ToLower(params.Currency),
		"line_items[0][price_data][unit_amount]":        strconv.FormatInt(params.AmountMinor, 10),
		"line_items[0][price_data][product_data][name]": "Order " + params.Reference,
	}

	var session stripeSession
	resp, err := g.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&session).
		Post("/v1/checkout/sessions")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "stripe create session")
	}
	if !resp.IsSuccess() {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable,
			fmt.Sprintf("stripe create session returned %d", resp.StatusCode()))
	}

	return &InitializeResult{
		AuthorizationURL: session.URL,
		AccessCode:       session.ID,
		Reference:        session.ID,
		Raw:              json.RawMessage(resp.Body()),
	}, nil
}

func (g *stripeGateway) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	var session stripeSession
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&session).
		Get("/v1/checkout/sessions/" + reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "stripe verify session")
	}
	if !resp.IsSuccess() {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable,
			fmt.Sprintf("stripe verify session returned %d", resp.StatusCode()))
	}

	return &VerifyResult{
		Reference:   session.ID,
		Paid:        session.PaymentStatus == "paid",
		Failed:      session.Status == "expired",
		AmountMinor: session.AmountTotal,
		Currency:    strings.ToUpper(session.Currency),
		Raw:         json.RawMessage(resp.Body()),
	}, nil
}

func (g *stripeGateway) VerifyWebhookSignature(body []byte, header string) bool {
	timestamp, signatures := parseStripeSignature(header)
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := g.now().Sub(time.Unix(ts, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return false
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, signature := range signatures {
		provided, err := hex.DecodeString(signature)
		if err != nil {
			continue
		}
		if hmac.Equal(provided, expected) {
			return true
		}
	}
	return false
}

func parseStripeSignature(header string) (timestamp string, signatures []string) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	return timestamp, signatures
}
