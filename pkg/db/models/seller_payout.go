package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SellerPayout accrues what one seller earned from one paid order. There is
// exactly one row per (order, seller); fulfillment adds into it rather than
// inserting duplicates. PayableAmount feeds the derived wallet balance.
type SellerPayout struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID           uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index;uniqueIndex:idx_seller_payouts_order_seller"`
	OrderID            uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_seller_payouts_order_seller"`
	TotalEarned        decimal.Decimal `gorm:"column:total_earned;type:numeric(12,2);not null;default:0"`
	VATDeducted        decimal.Decimal `gorm:"column:vat_deducted;type:numeric(12,2);not null;default:0"`
	CommissionDeducted decimal.Decimal `gorm:"column:commission_deducted;type:numeric(12,2);not null;default:0"`
	PayableAmount      decimal.Decimal `gorm:"column:payable_amount;type:numeric(12,2);not null;default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
