package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jodise/jodise-backend/pkg/config"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

func newPaystackServer(t *testing.T, handler http.HandlerFunc) (Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gateway, err := NewPaystackGateway(config.PaystackConfig{
		SecretKey: "sk_test_secret",
		BaseURL:   server.URL,
		Timeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("new paystack gateway: %v", err)
	}
	return gateway, server
}

func TestPaystackInitialize(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	gateway, _ := newPaystackServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Fatalf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "JOD-ref-1"
			}
		}`))
	})

	result, err := gateway.Initialize(context.Background(), InitializeParams{
		Email:       "buyer@example.com",
		AmountMinor: 250000,
		Currency:    "NGN",
		Reference:   "JOD-ref-1",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if result.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Fatalf("authorization url = %q", result.AuthorizationURL)
	}
	if result.AccessCode != "abc123" || result.Reference != "JOD-ref-1" {
		t.Fatalf("result = %+v", result)
	}

	// Amount crosses the wire as integer minor units.
	if amount, ok := gotBody["amount"].(float64); !ok || amount != 250000 {
		t.Fatalf("amount sent = %v", gotBody["amount"])
	}
	if gotBody["email"] != "buyer@example.com" {
		t.Fatalf("email sent = %v", gotBody["email"])
	}
}

func TestPaystackInitializeRejected(t *testing.T) {
	t.Parallel()

	gateway, _ := newPaystackServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status": false, "message": "Invalid amount"}`))
	})

	_, err := gateway.Initialize(context.Background(), InitializeParams{
		Email:       "buyer@example.com",
		AmountMinor: 0,
		Currency:    "NGN",
		Reference:   "JOD-ref-2",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGatewayUnavailable {
		t.Fatalf("expected GatewayUnavailable, got %v", err)
	}
}

func TestPaystackVerify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		status     string
		wantPaid   bool
		wantFailed bool
	}{
		{name: "success", status: "success", wantPaid: true},
		{name: "failed", status: "failed", wantFailed: true},
		{name: "abandoned", status: "abandoned", wantFailed: true},
		{name: "pending", status: "pending"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gateway, _ := newPaystackServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/transaction/verify/JOD-ref-3" {
					t.Fatalf("unexpected path %s", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"status": true,
					"message": "Verification successful",
					"data": {
						"status": "` + tc.status + `",
						"reference": "JOD-ref-3",
						"amount": 250000,
						"currency": "NGN"
					}
				}`))
			})

			result, err := gateway.Verify(context.Background(), "JOD-ref-3")
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if result.Paid != tc.wantPaid || result.Failed != tc.wantFailed {
				t.Fatalf("paid=%v failed=%v, want paid=%v failed=%v", result.Paid, result.Failed, tc.wantPaid, tc.wantFailed)
			}
			if result.AmountMinor != 250000 {
				t.Fatalf("amount = %d, want 250000", result.AmountMinor)
			}
		})
	}
}

func TestPaystackWebhookSignature(t *testing.T) {
	t.Parallel()

	gateway, _ := newPaystackServer(t, func(w http.ResponseWriter, r *http.Request) {})
	body := []byte(`{"event":"charge.success","data":{"reference":"JOD-ref-4"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !gateway.VerifyWebhookSignature(body, valid) {
		t.Fatal("expected valid signature to verify")
	}
	if gateway.VerifyWebhookSignature(body, "") {
		t.Fatal("expected empty signature to fail")
	}
	if gateway.VerifyWebhookSignature(body, "deadbeef") {
		t.Fatal("expected wrong signature to fail")
	}
	if gateway.VerifyWebhookSignature(append(body, ' '), valid) {
		t.Fatal("expected tampered body to fail")
	}
}
