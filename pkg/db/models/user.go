package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// User is the minimal identity record the engine needs. Registration and
// credential management live in a separate service; tokens arrive already
// issued.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName  string     `gorm:"column:full_name;type:text;not null;default:''"`
	Role      enums.Role `gorm:"column:role;type:text;not null;default:'buyer'"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
