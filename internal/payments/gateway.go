package payments

import (
	"context"
	"encoding/json"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// InitializeParams describes a charge to start at the provider.
// Amounts cross this boundary as integer minor units only.
type InitializeParams struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

// InitializeResult is the provider's checkout handle. Reference is the
// identifier the provider will echo back in verification and webhooks; it is
// what gets persisted on the transaction.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Raw              json.RawMessage
}

// VerifyResult is the provider's authoritative view of a charge.
type VerifyResult struct {
	Reference   string
	Paid        bool
	Failed      bool
	AmountMinor int64
	Currency    string
	Raw         json.RawMessage
}

// Gateway abstracts one payment provider. Implementations must treat the
// provider as the source of truth for charge outcomes and must never report
// Paid on transport errors.
type Gateway interface {
	Name() enums.Gateway
	Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	// VerifyWebhookSignature checks the provider's HMAC over the raw body.
	// It must run before any parsing of the payload and must compare in
	// constant time.
	VerifyWebhookSignature(body []byte, header string) bool
}
