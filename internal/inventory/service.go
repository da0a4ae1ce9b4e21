package inventory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/pkg/db/models"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

// Reservation is one product/qty pair to reserve or release.
type Reservation struct {
	ProductID uuid.UUID
	Qty       int
}

// ShortageDetail is returned to callers when a reservation cannot be filled.
type ShortageDetail struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// Service reserves and releases product stock.
type Service interface {
	// Reserve decrements stock for every item or none. It must run inside
	// the caller's transaction; a shortfall returns an error so the caller
	// rolls back any lines already decremented.
	Reserve(ctx context.Context, tx *gorm.DB, items []Reservation) error
	// Release returns stock after a cancellation. Safe outside a
	// transaction; increments are atomic per row.
	Release(ctx context.Context, tx *gorm.DB, items []Reservation) error
}

type service struct{}

// NewService returns the stock reservation engine.
func NewService() Service {
	return service{}
}

func (service) Reserve(ctx context.Context, tx *gorm.DB, items []Reservation) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}

	merged := normalize(items)
	for _, item := range merged {
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive").WithDetails(map[string]any{
				"product_id": item.ProductID,
				"qty":        item.Qty,
			})
		}
	}

	for _, item := range merged {
		// Guarded decrement: touches the row only when enough stock
		// remains, so concurrent reservations can never oversell.
		res := tx.WithContext(ctx).Exec(`
			UPDATE products
			SET stock = stock - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND stock >= ?
		`, item.Qty, item.ProductID, item.Qty)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			return insufficientStock(ctx, tx, item)
		}
		if err := mirrorReservation(ctx, tx, item); err != nil {
			return err
		}
	}
	return nil
}

// mirrorReservation maintains the inventory_items counters ops dashboards
// read: available_qty snapshots the post-decrement stock, reserved_qty
// accumulates what fulfillment is holding.
func mirrorReservation(ctx context.Context, tx *gorm.DB, item Reservation) error {
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO inventory_items (product_id, available_qty, reserved_qty, updated_at)
		SELECT id, stock, ?, CURRENT_TIMESTAMP FROM products WHERE id = ?
		ON CONFLICT (product_id) DO UPDATE SET
			available_qty = excluded.available_qty,
			reserved_qty = inventory_items.reserved_qty + excluded.reserved_qty,
			updated_at = CURRENT_TIMESTAMP
	`, item.Qty, item.ProductID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "record reservation")
	}
	return nil
}

func (service) Release(ctx context.Context, tx *gorm.DB, items []Reservation) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "database handle required for stock release")
	}

	for _, item := range normalize(items) {
		if item.Qty <= 0 {
			continue
		}
		res := tx.WithContext(ctx).Exec(`
			UPDATE products
			SET stock = stock + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, item.Qty, item.ProductID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
		}
		res = tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET reserved_qty = CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END,
				available_qty = available_qty + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ?
		`, item.Qty, item.Qty, item.Qty, item.ProductID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "record stock release")
		}
	}
	return nil
}

// normalize merges duplicate product lines and orders them by product id so
// every caller touches rows in the same sequence.
func normalize(items []Reservation) []Reservation {
	totals := map[uuid.UUID]int{}
	for _, item := range items {
		totals[item.ProductID] += item.Qty
	}

	merged := make([]Reservation, 0, len(totals))
	for productID, qty := range totals {
		merged = append(merged, Reservation{ProductID: productID, Qty: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged
}

func insufficientStock(ctx context.Context, tx *gorm.DB, item Reservation) error {
	detail := ShortageDetail{
		ProductID: item.ProductID,
		Requested: item.Qty,
	}

	var product models.Product
	if err := tx.WithContext(ctx).
		Select("name", "stock").
		Where("id = ?", item.ProductID).
		First(&product).Error; err == nil {
		detail.ProductName = product.Name
		detail.Available = product.Stock
	}

	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock to fulfill order").WithDetails(map[string]any{
		"shortages": []ShortageDetail{detail},
	})
}
