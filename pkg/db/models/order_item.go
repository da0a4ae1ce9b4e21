package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is one product line inside an order. Unit price is snapshotted
// when the line is added; the derived money columns are recomputed from the
// platform rates during fulfillment.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	SellerID       uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	Qty            int             `gorm:"column:qty;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	VATAmount      decimal.Decimal `gorm:"column:vat_amount;type:numeric(12,2);not null;default:0"`
	Commission     decimal.Decimal `gorm:"column:commission;type:numeric(12,2);not null;default:0"`
	SellerEarnings decimal.Decimal `gorm:"column:seller_earnings;type:numeric(12,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
