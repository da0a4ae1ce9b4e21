package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seller is a vendor storefront. CommissionPercent, when set, overrides the
// platform commission rate for this seller's lines. Bank fields are the
// payout destination snapshotted onto each payout request.
type Seller struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StoreName         string           `gorm:"column:store_name;type:text;not null"`
	CommissionPercent *decimal.Decimal `gorm:"column:commission_percent;type:numeric(5,2)"`
	BankName          string           `gorm:"column:bank_name;type:text;not null;default:''"`
	AccountNumber     string           `gorm:"column:account_number;type:text;not null;default:''"`
	AccountName       string           `gorm:"column:account_name;type:text;not null;default:''"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
