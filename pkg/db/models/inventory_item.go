package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem mirrors per-product stock counters: available_qty snapshots
// products.stock, reserved_qty counts units held by in-flight fulfillments.
type InventoryItem struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
