package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/pkg/db/models"
)

// Repository manages delivery tasks and partner lookup.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryTask, error)
	Create(ctx context.Context, task *models.DeliveryTask) error
	// FirstAvailablePartner returns nil when no courier is free.
	FirstAvailablePartner(ctx context.Context) (*models.DeliveryPartner, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a delivery repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryTask, error) {
	var task models.DeliveryTask
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *repository) Create(ctx context.Context, task *models.DeliveryTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *repository) FirstAvailablePartner(ctx context.Context) (*models.DeliveryPartner, error) {
	var partner models.DeliveryPartner
	if err := r.db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("created_at ASC").
		First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}
