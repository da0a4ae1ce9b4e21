package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/jodise/jodise-backend/pkg/db"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

// Repository manages persistence for payment transactions and enforces the
// pending -> success | failed state machine at the storage layer.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	FindByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	FindLatestPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error)
	// SaveInitialization stores the provider's checkout handle. Reference is
	// updated too: some providers mint their own identifier at session
	// creation and echo that one back on webhooks.
	SaveInitialization(ctx context.Context, id uuid.UUID, reference, accessCode, authorizationURL string, raw json.RawMessage) error
	MarkSuccess(ctx context.Context, id uuid.UUID, raw json.RawMessage) error
	MarkFailed(ctx context.Context, id uuid.UUID, raw json.RawMessage) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment transaction repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment reference already exists")
		}
		return err
	}
	return nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindLatestPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Order("created_at DESC").
		First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) SaveInitialization(ctx context.Context, id uuid.UUID, reference, accessCode, authorizationURL string, raw json.RawMessage) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reference":         reference,
			"access_code":       accessCode,
			"authorization_url": authorizationURL,
			"gateway_response":  raw,
		}).Error
}

func (r *repository) MarkSuccess(ctx context.Context, id uuid.UUID, raw json.RawMessage) error {
	return r.transition(ctx, id, enums.PaymentStatusSuccess, map[string]any{
		"status":           enums.PaymentStatusSuccess,
		"gateway_response": raw,
		"verified_at":      time.Now().UTC(),
	})
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, raw json.RawMessage) error {
	return r.transition(ctx, id, enums.PaymentStatusFailed, map[string]any{
		"status":           enums.PaymentStatusFailed,
		"gateway_response": raw,
	})
}

// transition applies a guarded terminal update. Re-applying the same
// terminal state is a no-op; crossing terminal states is a conflict.
func (r *repository) transition(ctx context.Context, id uuid.UUID, target enums.PaymentStatus, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var current models.PaymentTransaction
	if err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
		}
		return err
	}
	if current.Status == target {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "payment transaction already finalized").WithDetails(map[string]any{
		"status": current.Status,
		"target": target,
	})
}
