package sellers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/pkg/db/models"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

// Repository reads seller records for pricing and payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
	// CommissionOverrides returns the per-seller commission percent for the
	// sellers that have one configured.
	CommissionOverrides(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]*decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a seller repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, err
	}
	return &seller, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, err
	}
	return &seller, nil
}

func (r *repository) CommissionOverrides(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]*decimal.Decimal, error) {
	if len(sellerIDs) == 0 {
		return map[uuid.UUID]*decimal.Decimal{}, nil
	}

	var rows []models.Seller
	if err := r.db.WithContext(ctx).
		Select("id", "commission_percent").
		Where("id IN ?", sellerIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	overrides := make(map[uuid.UUID]*decimal.Decimal, len(rows))
	for _, row := range rows {
		if row.CommissionPercent != nil {
			value := *row.CommissionPercent
			overrides[row.ID] = &value
		}
	}
	return overrides, nil
}
