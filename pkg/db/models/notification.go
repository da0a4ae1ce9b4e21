package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// Notification stores in-app notification payloads per recipient user.
type Notification struct {
	ID          uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID uuid.UUID              `gorm:"type:uuid;not null;index"`
	Kind        enums.NotificationKind `gorm:"type:notification_kind;not null"`
	Title       string                 `gorm:"type:text;not null"`
	Message     string                 `gorm:"type:text;not null"`
	Link        *string                `gorm:"type:text"`
	ReadAt      *time.Time             `gorm:"type:timestamptz"`
	CreatedAt   time.Time              `gorm:"type:timestamptz;default:now()"`
}
