package fulfillment

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/internal/inventory"
	"github.com/jodise/jodise-backend/internal/orders"
	"github.com/jodise/jodise-backend/internal/pricing"
	"github.com/jodise/jodise-backend/internal/wallet"
	"github.com/jodise/jodise-backend/pkg/config"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/metrics"
	"github.com/jodise/jodise-backend/pkg/outbox"
	"github.com/jodise/jodise-backend/pkg/outbox/payloads"
)

// PaymentStore is the slice of the payment transaction store the
// orchestrator needs. Satisfied by the payments repository.
type PaymentStore interface {
	FindByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	MarkSuccess(ctx context.Context, id uuid.UUID, raw json.RawMessage) error
	MarkFailed(ctx context.Context, id uuid.UUID, raw json.RawMessage) error
}

// Notifier writes the in-app notifications for a paid order.
type Notifier interface {
	OrderPaid(ctx context.Context, order *models.Order) error
}

// DeliveryTasks creates the delivery task for a paid order.
type DeliveryTasks interface {
	EnsureTask(ctx context.Context, order *models.Order) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input is one confirmed charge to settle, from either the verify endpoint
// or a webhook. AmountMinor is the provider-confirmed amount in minor units.
type Input struct {
	Reference   string
	AmountMinor int64
	Raw         json.RawMessage
}

// Result reports what fulfillment did for the charge.
type Result struct {
	OrderID        uuid.UUID         `json:"order_id"`
	Status         enums.OrderStatus `json:"status"`
	AlreadySettled bool              `json:"already_settled"`
}

// Service settles confirmed charges. Fulfill is idempotent per reference:
// verify and webhook paths can both land for the same charge in any order.
type Service interface {
	Fulfill(ctx context.Context, in Input) (*Result, error)
}

type service struct {
	payments  PaymentStore
	orders    orders.Repository
	ordersSvc orders.Service
	inventory inventory.Service
	wallet    wallet.Service
	delivery  DeliveryTasks
	notifier  Notifier
	tx        TxRunner
	outbox    *outbox.Service
	rates     pricing.Rates
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
}

// NewService wires the fulfillment orchestrator.
func NewService(
	payments PaymentStore,
	ordersRepo orders.Repository,
	ordersSvc orders.Service,
	inventorySvc inventory.Service,
	walletSvc wallet.Service,
	deliverySvc DeliveryTasks,
	notifier Notifier,
	tx TxRunner,
	outboxSvc *outbox.Service,
	marketplace config.MarketplaceConfig,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment store required")
	}
	if ordersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if ordersSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service required")
	}
	if inventorySvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory service required")
	}
	if walletSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet service required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	rates, err := pricing.RatesFromConfig(marketplace)
	if err != nil {
		return nil, err
	}
	return &service{
		payments:  payments,
		orders:    ordersRepo,
		ordersSvc: ordersSvc,
		inventory: inventorySvc,
		wallet:    walletSvc,
		delivery:  deliverySvc,
		notifier:  notifier,
		tx:        tx,
		outbox:    outboxSvc,
		rates:     rates,
		metrics:   paymentMetrics,
		logg:      logg,
	}, nil
}

func (s *service) Fulfill(ctx context.Context, in Input) (*Result, error) {
	if in.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	txn, err := s.payments.FindByReference(ctx, in.Reference)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, txn.OrderID)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reference": in.Reference,
		"order_id":  order.ID.String(),
	})

	if order.Status.IsSettled() {
		s.logg.Info(logCtx, "order already settled, skipping fulfillment")
		s.metrics.IncFulfillment("already_settled")
		return &Result{OrderID: order.ID, Status: order.Status, AlreadySettled: true}, nil
	}

	// Recompute the ledger from current rates and the snapshotted lines.
	// The stored totals are never trusted for the amount check.
	priced, err := s.ordersSvc.Price(ctx, order, s.rates)
	if err != nil {
		return nil, err
	}

	expected := pricing.MinorUnits(order.Total)
	if in.AmountMinor != expected {
		if err := s.payments.MarkFailed(ctx, txn.ID, in.Raw); err != nil {
			s.logg.Error(logCtx, "failed to mark short payment failed", err)
		}
		if s.outbox != nil {
			if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
				return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventPaymentFailed,
					AggregateType: enums.AggregatePayment,
					AggregateID:   txn.ID,
					Data: payloads.PaymentFailedEvent{
						TransactionID: txn.ID,
						OrderID:       order.ID,
						Reference:     in.Reference,
						Reason:        "amount_mismatch",
					},
				})
			}); err != nil {
				s.logg.Error(logCtx, "failed to emit payment failed event", err)
			}
		}
		s.metrics.IncFulfillment("amount_mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "confirmed amount does not match order total").WithDetails(map[string]any{
			"expected_minor": expected,
			"received_minor": in.AmountMinor,
		})
	}

	// The charge is captured at the provider, so the transaction is settled
	// before touching stock. A reservation failure below must not unwind it.
	if err := s.payments.MarkSuccess(ctx, txn.ID, in.Raw); err != nil {
		return nil, err
	}

	alreadySettled := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		won, err := repo.MarkPaid(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !won {
			// A concurrent fulfillment won the transition; everything past
			// this point already happened there.
			alreadySettled = true
			return nil
		}

		// The item snapshot was read before this transaction. Re-read and
		// re-price now that the paid transition is won so the settled totals,
		// reservations and accruals cover exactly the lines locked in.
		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order for settlement")
		}
		freshPriced, err := s.ordersSvc.Price(ctx, fresh, s.rates)
		if err != nil {
			return err
		}
		if pricing.MinorUnits(fresh.Total) != in.AmountMinor {
			return pkgerrors.New(pkgerrors.CodeAmountMismatch, "order changed while settling").WithDetails(map[string]any{
				"expected_minor": pricing.MinorUnits(fresh.Total),
				"received_minor": in.AmountMinor,
			})
		}
		order = fresh
		priced = freshPriced

		if err := repo.SaveTotals(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order totals")
		}

		reservations := make([]inventory.Reservation, 0, len(order.Items))
		for _, item := range order.Items {
			reservations = append(reservations, inventory.Reservation{ProductID: item.ProductID, Qty: item.Qty})
		}
		if err := s.inventory.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		if err := s.wallet.AccruePayouts(ctx, tx, order.ID, priced.BySeller); err != nil {
			return err
		}

		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderPaidEvent{
					OrderID:   order.ID,
					BuyerID:   order.BuyerID,
					Reference: in.Reference,
					Total:     order.Total,
				},
			})
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			switch typed.Code() {
			case pkgerrors.CodeInsufficientStock:
				// The money is captured but the shelf is short. The order stays
				// pending for manual resolution; never fail the payment here.
				s.logg.Error(logCtx, "payment captured but stock reservation failed, order held pending", err)
				s.metrics.IncFulfillment("stock_shortfall")
			case pkgerrors.CodeAmountMismatch:
				s.logg.Error(logCtx, "order changed while settling, settlement rolled back", err)
				s.metrics.IncFulfillment("amount_mismatch")
			}
		}
		return nil, err
	}

	if alreadySettled {
		s.metrics.IncFulfillment("already_settled")
		return &Result{OrderID: order.ID, Status: enums.OrderStatusPaid, AlreadySettled: true}, nil
	}
	s.metrics.IncFulfillment("paid")
	order.Status = enums.OrderStatusPaid

	// Side effects after the commit are best effort: a courier or
	// notification hiccup never unwinds a settled order.
	var sideEffects error
	if s.delivery != nil {
		sideEffects = multierr.Append(sideEffects, s.delivery.EnsureTask(ctx, order))
	}
	if s.notifier != nil {
		sideEffects = multierr.Append(sideEffects, s.notifier.OrderPaid(ctx, order))
	}
	if sideEffects != nil {
		s.logg.Warn(logCtx, "post-fulfillment side effects failed: "+sideEffects.Error())
	}

	return &Result{OrderID: order.ID, Status: enums.OrderStatusPaid}, nil
}
