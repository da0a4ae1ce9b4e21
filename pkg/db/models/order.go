package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// Order is a buyer order. While status is pending it acts as the buyer's
// cart; each buyer has at most one pending order at a time.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	VATAmount       decimal.Decimal   `gorm:"column:vat_amount;type:numeric(12,2);not null;default:0"`
	DeliveryFee     decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	TrackingCode    string            `gorm:"column:tracking_code;type:text;not null;uniqueIndex"`
	DeliveryAddress string            `gorm:"column:delivery_address;type:text;not null;default:''"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
