package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// PaymentTransaction records one charge attempt against an order. Reference
// is the provider-facing identifier and is unique across all gateways.
type PaymentTransaction struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	BuyerID          uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	Reference        string              `gorm:"column:reference;type:text;not null;uniqueIndex"`
	Gateway          enums.Gateway       `gorm:"column:gateway;type:text;not null"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency         string              `gorm:"column:currency;type:text;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	AccessCode       *string             `gorm:"column:access_code;type:text"`
	AuthorizationURL *string             `gorm:"column:authorization_url;type:text"`
	GatewayResponse  json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	VerifiedAt       *time.Time          `gorm:"column:verified_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
