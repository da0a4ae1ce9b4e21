package cron

import (
	"context"

	"gorm.io/gorm"
)

// txRunner runs a function inside a database transaction. Satisfied by
// pkg/db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
