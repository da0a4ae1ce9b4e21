package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jodise/jodise-backend/internal/fulfillment"
	"github.com/jodise/jodise-backend/internal/orders"
	"github.com/jodise/jodise-backend/internal/pricing"
	"github.com/jodise/jodise-backend/internal/users"
	"github.com/jodise/jodise-backend/pkg/config"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/metrics"
)

// reuseWindow bounds how long an initialized charge stays reusable. Within
// the window a re-init for the same order and amount returns the in-flight
// session instead of minting a new provider charge.
const reuseWindow = 30 * time.Minute

const referencePrefix = "JOD"

// ChargeSession is the checkout handle returned to the buyer.
type ChargeSession struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	Amount           decimal.Decimal `json:"amount"`
	AmountMinor      int64           `json:"amount_minor"`
	Currency         string          `json:"currency"`
	Gateway          enums.Gateway   `json:"gateway"`
	Reused           bool            `json:"reused"`
}

// VerifyOutcome reports where a charge landed after consulting the provider.
type VerifyOutcome struct {
	Reference string              `json:"reference"`
	Status    enums.PaymentStatus `json:"status"`
	Order     *fulfillment.Result `json:"order,omitempty"`
}

// Service owns charge initialization and verification against the active
// gateway.
type Service interface {
	InitializeCharge(ctx context.Context, buyerID uuid.UUID) (*ChargeSession, error)
	VerifyCharge(ctx context.Context, reference string) (*VerifyOutcome, error)
}

type service struct {
	repo     Repository
	registry *Registry
	orders   orders.Repository
	pricer   orders.Service
	users    users.Repository
	fulfill  fulfillment.Service
	rates    pricing.Rates
	active   enums.Gateway
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires payment dependencies.
func NewService(
	repo Repository,
	registry *Registry,
	ordersRepo orders.Repository,
	ordersSvc orders.Service,
	usersRepo users.Repository,
	fulfillSvc fulfillment.Service,
	marketplace config.MarketplaceConfig,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway registry required")
	}
	if ordersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if ordersSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service required")
	}
	if usersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if fulfillSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	rates, err := pricing.RatesFromConfig(marketplace)
	if err != nil {
		return nil, err
	}
	active, err := enums.ParseGateway(marketplace.ActiveGateway)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "active gateway")
	}
	return &service{
		repo:     repo,
		registry: registry,
		orders:   ordersRepo,
		pricer:   ordersSvc,
		users:    usersRepo,
		fulfill:  fulfillSvc,
		rates:    rates,
		active:   active,
		metrics:  paymentMetrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) InitializeCharge(ctx context.Context, buyerID uuid.UUID) (*ChargeSession, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}

	order, err := s.orders.FindPendingByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	// Price the cart and persist the totals so the amount charged always
	// matches what fulfillment will recompute.
	if _, err := s.pricer.Price(ctx, order, s.rates); err != nil {
		return nil, err
	}
	if err := s.orders.SaveTotals(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order totals")
	}

	gateway, err := s.registry.Get(s.active)
	if err != nil {
		return nil, err
	}
	amountMinor := pricing.MinorUnits(order.Total)

	existing, err := s.repo.FindLatestPendingByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending transaction")
	}
	if existing != nil {
		if s.reusable(existing, order.Total, gateway.Name()) {
			return &ChargeSession{
				Reference:        existing.Reference,
				AuthorizationURL: deref(existing.AuthorizationURL),
				AccessCode:       deref(existing.AccessCode),
				Amount:           existing.Amount,
				AmountMinor:      amountMinor,
				Currency:         existing.Currency,
				Gateway:          existing.Gateway,
				Reused:           true,
			}, nil
		}
		// Stale or mismatched; retire it so the reference can never settle.
		if err := s.repo.MarkFailed(ctx, existing.ID, json.RawMessage(`{"reason":"superseded"}`)); err != nil {
			return nil, err
		}
	}

	buyer, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	txn := &models.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   order.ID,
		BuyerID:   buyerID,
		Reference: newReference(order.ID),
		Gateway:   gateway.Name(),
		Amount:    order.Total,
		Currency:  s.rates.Currency,
		Status:    enums.PaymentStatusPending,
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		return nil, err
	}

	start := s.now()
	result, err := gateway.Initialize(ctx, InitializeParams{
		Email:       buyer.Email,
		AmountMinor: amountMinor,
		Currency:    s.rates.Currency,
		Reference:   txn.Reference,
		Metadata: map[string]any{
			"order_id": order.ID.String(),
		},
	})
	s.metrics.ObserveGateway(gateway.Name().String(), "initialize", s.now().Sub(start))
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, txn.ID, json.RawMessage(`{"reason":"initialize_failed"}`)); markErr != nil {
			s.logg.Error(ctx, "failed to retire unopened transaction", markErr)
		}
		return nil, err
	}

	reference := txn.Reference
	if result.Reference != "" {
		reference = result.Reference
	}
	if err := s.repo.SaveInitialization(ctx, txn.ID, reference, result.AccessCode, result.AuthorizationURL, result.Raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout handle")
	}

	return &ChargeSession{
		Reference:        reference,
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		Amount:           order.Total,
		AmountMinor:      amountMinor,
		Currency:         s.rates.Currency,
		Gateway:          gateway.Name(),
	}, nil
}

// reusable reports whether an in-flight transaction can serve a re-init:
// same gateway, same amount, already holds a provider handle, and younger
// than the reuse window.
func (s *service) reusable(txn *models.PaymentTransaction, amount decimal.Decimal, gateway enums.Gateway) bool {
	if txn.Gateway != gateway {
		return false
	}
	if txn.AccessCode == nil || *txn.AccessCode == "" {
		return false
	}
	if !txn.Amount.Equal(amount) {
		return false
	}
	return s.now().Sub(txn.CreatedAt) < reuseWindow
}

func (s *service) VerifyCharge(ctx context.Context, reference string) (*VerifyOutcome, error) {
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	txn, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.Status == enums.PaymentStatusSuccess {
		// Already settled by a webhook or an earlier verify; fulfillment
		// replays as a no-op and reports the order state.
		result, err := s.fulfill.Fulfill(ctx, fulfillment.Input{
			Reference:   txn.Reference,
			AmountMinor: pricing.MinorUnits(txn.Amount),
		})
		if err != nil {
			return nil, err
		}
		return &VerifyOutcome{Reference: txn.Reference, Status: txn.Status, Order: result}, nil
	}

	gateway, err := s.registry.Get(txn.Gateway)
	if err != nil {
		return nil, err
	}

	start := s.now()
	verified, err := gateway.Verify(ctx, txn.Reference)
	s.metrics.ObserveGateway(gateway.Name().String(), "verify", s.now().Sub(start))
	if err != nil {
		return nil, err
	}

	switch {
	case verified.Paid:
		result, err := s.fulfill.Fulfill(ctx, fulfillment.Input{
			Reference:   txn.Reference,
			AmountMinor: verified.AmountMinor,
			Raw:         verified.Raw,
		})
		if err != nil {
			return nil, err
		}
		return &VerifyOutcome{Reference: txn.Reference, Status: enums.PaymentStatusSuccess, Order: result}, nil
	case verified.Failed:
		if err := s.repo.MarkFailed(ctx, txn.ID, verified.Raw); err != nil {
			return nil, err
		}
		return &VerifyOutcome{Reference: txn.Reference, Status: enums.PaymentStatusFailed}, nil
	default:
		return &VerifyOutcome{Reference: txn.Reference, Status: enums.PaymentStatusPending}, nil
	}
}

func newReference(orderID uuid.UUID) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return referencePrefix + "-" + uuid.NewString()
	}
	return referencePrefix + "-" + orderID.String()[:8] + "-" + hex.EncodeToString(buf)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
