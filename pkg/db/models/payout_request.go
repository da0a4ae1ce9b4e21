package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// PayoutRequest is a seller withdrawal. Bank fields are copied from the
// seller record at request time so a later detail change cannot redirect an
// in-flight payout.
type PayoutRequest struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID                 `gorm:"column:seller_id;type:uuid;not null;index"`
	Amount        decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	Status        enums.PayoutRequestStatus `gorm:"column:status;type:payout_request_status;not null;default:'pending'"`
	BankName      string                    `gorm:"column:bank_name;type:text;not null;default:''"`
	AccountNumber string                    `gorm:"column:account_number;type:text;not null;default:''"`
	AccountName   string                    `gorm:"column:account_name;type:text;not null;default:''"`
	AdminNote     *string                   `gorm:"column:admin_note;type:text"`
	ProcessedAt   *time.Time                `gorm:"column:processed_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
