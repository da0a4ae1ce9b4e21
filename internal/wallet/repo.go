package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

// Repository manages seller payout accrual rows and payout requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindPayout(ctx context.Context, orderID, sellerID uuid.UUID) (*models.SellerPayout, error)
	CreatePayout(ctx context.Context, payout *models.SellerPayout) error
	// AccumulatePayout adds amounts into an existing (order, seller) row.
	AccumulatePayout(ctx context.Context, id uuid.UUID, earned, vat, commission, payable decimal.Decimal) error
	SumPayable(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error)
	ListPayouts(ctx context.Context, sellerID uuid.UUID) ([]models.SellerPayout, error)

	CreateRequest(ctx context.Context, request *models.PayoutRequest) error
	FindRequest(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	// SumHeldRequests totals pending and paid requests; rejected requests
	// release their hold implicitly.
	SumHeldRequests(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error)
	ListRequests(ctx context.Context, sellerID uuid.UUID) ([]models.PayoutRequest, error)
	// DecideRequest finalizes a pending request and reports whether this
	// caller performed the transition.
	DecideRequest(ctx context.Context, id uuid.UUID, status enums.PayoutRequestStatus, note *string) (bool, error)
	// TouchSeller takes the seller row write lock so concurrent wallet
	// operations for one seller serialize.
	TouchSeller(ctx context.Context, sellerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPayout(ctx context.Context, orderID, sellerID uuid.UUID) (*models.SellerPayout, error) {
	var payout models.SellerPayout
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND seller_id = ?", orderID, sellerID).
		First(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.SellerPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) AccumulatePayout(ctx context.Context, id uuid.UUID, earned, vat, commission, payable decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerPayout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_earned":        gorm.Expr("total_earned + ?", earned),
			"vat_deducted":        gorm.Expr("vat_deducted + ?", vat),
			"commission_deducted": gorm.Expr("commission_deducted + ?", commission),
			"payable_amount":      gorm.Expr("payable_amount + ?", payable),
		}).Error
}

type sumRow struct {
	Total decimal.Decimal
}

func (r *repository) SumPayable(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	var row sumRow
	if err := r.db.WithContext(ctx).
		Model(&models.SellerPayout{}).
		Select("COALESCE(SUM(payable_amount), 0) AS total").
		Where("seller_id = ?", sellerID).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *repository) ListPayouts(ctx context.Context, sellerID uuid.UUID) ([]models.SellerPayout, error) {
	var payouts []models.SellerPayout
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) CreateRequest(ctx context.Context, request *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) SumHeldRequests(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	var row sumRow
	if err := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("seller_id = ? AND status IN ?", sellerID, []enums.PayoutRequestStatus{
			enums.PayoutRequestStatusPending,
			enums.PayoutRequestStatusPaid,
		}).
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *repository) ListRequests(ctx context.Context, sellerID uuid.UUID) ([]models.PayoutRequest, error) {
	var requests []models.PayoutRequest
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) DecideRequest(ctx context.Context, id uuid.UUID, status enums.PayoutRequestStatus, note *string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, enums.PayoutRequestStatusPending).
		Updates(map[string]any{
			"status":       status,
			"admin_note":   note,
			"processed_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) TouchSeller(ctx context.Context, sellerID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE sellers
		SET updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, sellerID).Error
}
