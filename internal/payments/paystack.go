package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/jodise/jodise-backend/pkg/config"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const PaystackSignatureHeader = "x-paystack-signature"

type paystackGateway struct {
	http      *resty.Client
	secretKey string
}

// NewPaystackGateway returns the Paystack adapter.
func NewPaystackGateway(cfg config.PaystackConfig) (Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack secret key required")
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/json")
	return &paystackGateway{http: client, secretKey: cfg.SecretKey}, nil
}

func (g *paystackGateway) Name() enums.Gateway {
	return enums.GatewayPaystack
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (g *paystackGateway) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	body := map[string]any{
		"email":     params.Email,
		"amount":    params.AmountMinor,
		"currency":  params.Currency,
		"reference": params.Reference,
	}
	if params.CallbackURL != "" {
		body["callback_url"] = params.CallbackURL
	}
	if len(params.Metadata) > 0 {
		body["metadata"] = params.Metadata
	}

	var envelope paystackEnvelope
	resp, err := g.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&envelope).
		Post("/transaction/initialize")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "paystack initialize")
	}
	if !resp.IsSuccess() || !envelope.Status {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable,
			fmt.Sprintf("paystack initialize returned %d: %s", resp.StatusCode(), envelope.Message))
	}

	var data paystackInitData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "paystack initialize payload")
	}

	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
		Raw:              json.RawMessage(resp.Body()),
	}, nil
}

func (g *paystackGateway) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	var envelope paystackEnvelope
	resp, err := g.http.R().
		SetContext(ctx).
		SetResult(&envelope).
		Get("/transaction/verify/" + reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "paystack verify")
	}
	if !resp.IsSuccess() || !envelope.Status {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable,
			fmt.Sprintf("paystack verify returned %d: %s", resp.StatusCode(), envelope.Message))
	}

	var data paystackVerifyData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "paystack verify payload")
	}

	return &VerifyResult{
		Reference:   data.Reference,
		Paid:        data.Status == "success",
		Failed:      data.Status == "failed" || data.Status == "abandoned",
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		Raw:         json.RawMessage(resp.Body()),
	}, nil
}

func (g *paystackGateway) VerifyWebhookSignature(body []byte, header string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(g.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(expected)
	return hmac.Equal(provided, want)
}
