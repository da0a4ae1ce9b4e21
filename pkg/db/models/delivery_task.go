package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// DeliveryTask is the handoff record created when an order is paid. One task
// per order; creation is best-effort and never blocks fulfillment.
type DeliveryTask struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID                `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TrackingCode string                   `gorm:"column:tracking_code;type:text;not null"`
	Address      string                   `gorm:"column:address;type:text;not null;default:''"`
	Status       enums.DeliveryTaskStatus `gorm:"column:status;type:delivery_task_status;not null;default:'unassigned'"`
	PartnerID    *uuid.UUID               `gorm:"column:partner_id;type:uuid"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// DeliveryPartner is a courier that can be assigned open tasks.
type DeliveryPartner struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;type:text;not null"`
	Phone       string    `gorm:"column:phone;type:text;not null;default:''"`
	IsAvailable bool      `gorm:"column:is_available;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
