package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/internal/inventory"
	"github.com/jodise/jodise-backend/internal/pricing"
	"github.com/jodise/jodise-backend/internal/products"
	"github.com/jodise/jodise-backend/internal/sellers"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/outbox"
	"github.com/jodise/jodise-backend/pkg/outbox/payloads"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PricedOrder is an order with its ledger arithmetic applied.
type PricedOrder struct {
	Lines    []pricing.LineInput
	Totals   pricing.Totals
	BySeller []pricing.SellerBreakdown
}

// Service manages the buyer's pending order (the cart) and order reads.
type Service interface {
	Cart(ctx context.Context, buyerID uuid.UUID) (*models.Order, error)
	AddItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*models.Order, error)
	UpdateItemQty(ctx context.Context, buyerID, itemID uuid.UUID, qty int) (*models.Order, error)
	RemoveItem(ctx context.Context, buyerID, itemID uuid.UUID) (*models.Order, error)
	Get(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	TrackByCode(ctx context.Context, code string) (*models.Order, error)
	// Price runs the ledger arithmetic over the order's current lines and
	// writes the results onto the order and item structs in memory. The
	// caller decides whether and when to persist them.
	Price(ctx context.Context, order *models.Order, rates pricing.Rates) (*PricedOrder, error)
	// Cancel voids an order. Cancelling a paid order releases its reserved
	// stock; a pending order never reserved any.
	Cancel(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	repo      Repository
	products  products.Repository
	sellers   sellers.Repository
	inventory inventory.Service
	tx        TxRunner
	outbox    *outbox.Service
	logg      *logger.Logger
}

// NewService wires order dependencies.
func NewService(
	repo Repository,
	productsRepo products.Repository,
	sellersRepo sellers.Repository,
	inventorySvc inventory.Service,
	tx TxRunner,
	outboxSvc *outbox.Service,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if productsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products repository required")
	}
	if sellersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sellers repository required")
	}
	if inventorySvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory service required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:      repo,
		products:  productsRepo,
		sellers:   sellersRepo,
		inventory: inventorySvc,
		tx:        tx,
		outbox:    outboxSvc,
		logg:      logg,
	}, nil
}

func (s *service) Cart(ctx context.Context, buyerID uuid.UUID) (*models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	order, err := s.repo.FindPendingByBuyer(ctx, buyerID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return s.createPending(ctx, buyerID)
		}
		return nil, err
	}
	return order, nil
}

func (s *service) AddItem(ctx context.Context, buyerID, productID uuid.UUID, qty int) (*models.Order, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	product, err := s.products.FindActiveByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "product is out of stock").WithDetails(map[string]any{
			"product_id": product.ID,
		})
	}

	order, err := s.Cart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItemByProduct(ctx, order.ID, productID)
	if err != nil {
		return nil, err
	}

	// Requested quantity is capped at what is currently on the shelf; the
	// authoritative check still happens at reservation time.
	if existing != nil {
		newQty := capQty(existing.Qty+qty, product.Stock)
		if err := s.repo.UpdateItemQty(ctx, existing.ID, newQty); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
	} else {
		item := &models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: product.ID,
			SellerID:  product.SellerID,
			Qty:       capQty(qty, product.Stock),
			UnitPrice: product.Price,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart line")
		}
	}

	return s.repo.FindByID(ctx, order.ID)
}

func (s *service) UpdateItemQty(ctx context.Context, buyerID, itemID uuid.UUID, qty int) (*models.Order, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	order, err := s.repo.FindPendingByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, order.ID, itemID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.FindByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateItemQty(ctx, item.ID, capQty(qty, product.Stock)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return s.repo.FindByID(ctx, order.ID)
}

func (s *service) RemoveItem(ctx context.Context, buyerID, itemID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindPendingByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, order.ID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}
	return s.repo.FindByID(ctx, order.ID)
}

func (s *service) Get(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) TrackByCode(ctx context.Context, code string) (*models.Order, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking code required")
	}
	return s.repo.FindByTrackingCode(ctx, code)
}

func (s *service) Price(ctx context.Context, order *models.Order, rates pricing.Rates) (*PricedOrder, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	sellerIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		sellerIDs = append(sellerIDs, item.SellerID)
	}
	overrides, err := s.sellers.CommissionOverrides(ctx, sellerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission overrides")
	}

	lines := make([]pricing.LineInput, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		line := pricing.LineInput{
			SellerID:           item.SellerID,
			UnitPrice:          item.UnitPrice,
			Qty:                item.Qty,
			CommissionOverride: overrides[item.SellerID],
		}
		lines = append(lines, line)

		amounts := pricing.ComputeLine(line, rates)
		item.Subtotal = amounts.Subtotal
		item.VATAmount = amounts.VAT
		item.Commission = amounts.Commission
		item.SellerEarnings = amounts.Earnings
	}

	totals := pricing.OrderTotals(lines, rates)
	order.Subtotal = totals.Subtotal
	order.VATAmount = totals.VAT
	order.DeliveryFee = totals.DeliveryFee
	order.Total = totals.Total

	return &PricedOrder{
		Lines:    lines,
		Totals:   totals,
		BySeller: pricing.BySeller(lines, rates),
	}, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	switch order.Status {
	case enums.OrderStatusPending:
		won, err := s.repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer pending")
		}
		return nil
	case enums.OrderStatusPaid:
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			won, err := repo.AdvanceStatus(ctx, order.ID, enums.OrderStatusPaid, enums.OrderStatusCancelled)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
			}
			if !won {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer cancellable")
			}

			reservations := make([]inventory.Reservation, 0, len(order.Items))
			for _, item := range order.Items {
				reservations = append(reservations, inventory.Reservation{ProductID: item.ProductID, Qty: item.Qty})
			}
			if err := s.inventory.Release(ctx, tx, reservations); err != nil {
				return err
			}

			if s.outbox != nil {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventStockReleased,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Data: payloads.StockReleasedEvent{
						OrderID: order.ID,
						Reason:  "order_cancelled",
					},
				}); err != nil {
					return err
				}
				return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventOrderCancelled,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Data: payloads.OrderCancelledEvent{
						OrderID:     order.ID,
						BuyerID:     order.BuyerID,
						CancelledAt: time.Now().UTC(),
					},
				})
			}
			return nil
		})
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled").WithDetails(map[string]any{
			"status": order.Status,
		})
	}
}

func (s *service) createPending(ctx context.Context, buyerID uuid.UUID) (*models.Order, error) {
	order := &models.Order{
		ID:           uuid.New(),
		BuyerID:      buyerID,
		Status:       enums.OrderStatusPending,
		TrackingCode: newTrackingCode(),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return s.repo.FindByID(ctx, order.ID)
}

func capQty(requested, stock int) int {
	if requested > stock {
		return stock
	}
	return requested
}

// newTrackingCode returns a short uppercase code buyers can quote on the
// phone. Uniqueness is enforced by the database index; collisions at this
// length are rare enough to surface as a create error.
func newTrackingCode() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}
