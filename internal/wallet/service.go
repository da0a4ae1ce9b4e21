package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jodise/jodise-backend/internal/pricing"
	"github.com/jodise/jodise-backend/internal/sellers"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/outbox"
	"github.com/jodise/jodise-backend/pkg/outbox/payloads"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Statement is the seller-facing wallet view.
type Statement struct {
	Balance  decimal.Decimal        `json:"balance"`
	Payouts  []models.SellerPayout  `json:"payouts"`
	Requests []models.PayoutRequest `json:"requests"`
}

// Service owns the payout ledger and the derived wallet balance. The balance
// is never stored; it is always recomputed as accrued payables minus held
// withdrawal requests.
type Service interface {
	// AccruePayouts folds per-seller order earnings into the payout ledger
	// inside the caller's fulfillment transaction.
	AccruePayouts(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, breakdowns []pricing.SellerBreakdown) error
	Balance(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error)
	Statement(ctx context.Context, sellerID uuid.UUID) (*Statement, error)
	RequestPayout(ctx context.Context, sellerID uuid.UUID, amount decimal.Decimal) (*models.PayoutRequest, error)
	Decide(ctx context.Context, requestID uuid.UUID, status enums.PayoutRequestStatus, note *string) (*models.PayoutRequest, error)
}

type service struct {
	repo    Repository
	sellers sellers.Repository
	tx      TxRunner
	outbox  *outbox.Service
	logg    *logger.Logger
}

// NewService wires wallet dependencies.
func NewService(repo Repository, sellersRepo sellers.Repository, tx TxRunner, outboxSvc *outbox.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "wallet repository required")
	}
	if sellersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sellers repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:    repo,
		sellers: sellersRepo,
		tx:      tx,
		outbox:  outboxSvc,
		logg:    logg,
	}, nil
}

func (s *service) AccruePayouts(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, breakdowns []pricing.SellerBreakdown) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for payout accrual")
	}
	repo := s.repo.WithTx(tx)

	for _, breakdown := range breakdowns {
		existing, err := repo.FindPayout(ctx, orderID, breakdown.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout row")
		}
		if existing == nil {
			payout := &models.SellerPayout{
				ID:                 uuid.New(),
				SellerID:           breakdown.SellerID,
				OrderID:            orderID,
				TotalEarned:        breakdown.Earned,
				VATDeducted:        breakdown.VAT,
				CommissionDeducted: breakdown.Commission,
				PayableAmount:      breakdown.Payable,
			}
			if err := repo.CreatePayout(ctx, payout); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout row")
			}
			continue
		}
		if err := repo.AccumulatePayout(ctx, existing.ID,
			breakdown.Earned, breakdown.VAT, breakdown.Commission, breakdown.Payable); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accumulate payout row")
		}
	}
	return nil
}

func (s *service) Balance(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, error) {
	return s.balance(ctx, s.repo, sellerID)
}

func (s *service) balance(ctx context.Context, repo Repository, sellerID uuid.UUID) (decimal.Decimal, error) {
	if sellerID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	payable, err := repo.SumPayable(ctx, sellerID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payable")
	}
	held, err := repo.SumHeldRequests(ctx, sellerID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum held requests")
	}
	return payable.Sub(held), nil
}

func (s *service) Statement(ctx context.Context, sellerID uuid.UUID) (*Statement, error) {
	balance, err := s.Balance(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	payouts, err := s.repo.ListPayouts(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	requests, err := s.repo.ListRequests(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout requests")
	}
	return &Statement{Balance: balance, Payouts: payouts, Requests: requests}, nil
}

func (s *service) RequestPayout(ctx context.Context, sellerID uuid.UUID, amount decimal.Decimal) (*models.PayoutRequest, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "payout amount must be positive").WithDetails(map[string]any{
			"amount": amount,
		})
	}

	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	var request *models.PayoutRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Serialize concurrent requests for the same seller, then compute
		// the balance inside the transaction so the check and the insert
		// see the same ledger.
		if err := repo.TouchSeller(ctx, sellerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock seller")
		}

		balance, err := s.balance(ctx, repo, sellerID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance) {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "payout exceeds wallet balance").WithDetails(map[string]any{
				"requested": amount,
				"balance":   balance,
			})
		}

		request = &models.PayoutRequest{
			ID:            uuid.New(),
			SellerID:      sellerID,
			Amount:        amount,
			Status:        enums.PayoutRequestStatusPending,
			BankName:      seller.BankName,
			AccountNumber: seller.AccountNumber,
			AccountName:   seller.AccountName,
		}
		if err := repo.CreateRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout request")
		}

		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutRequested,
				AggregateType: enums.AggregatePayoutRequest,
				AggregateID:   request.ID,
				Data: payloads.PayoutRequestedEvent{
					RequestID: request.ID,
					SellerID:  sellerID,
					Amount:    amount,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Decide(ctx context.Context, requestID uuid.UUID, status enums.PayoutRequestStatus, note *string) (*models.PayoutRequest, error) {
	if !status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be paid or rejected")
	}

	var decided *models.PayoutRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.DecideRequest(ctx, requestID, status, note)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide payout request")
		}
		if !won {
			current, err := repo.FindRequest(ctx, requestID)
			if err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout request already decided").WithDetails(map[string]any{
				"status": current.Status,
			})
		}

		decided, err = repo.FindRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutDecided,
				AggregateType: enums.AggregatePayoutRequest,
				AggregateID:   requestID,
				Data: payloads.PayoutDecidedEvent{
					RequestID: requestID,
					SellerID:  decided.SellerID,
					Status:    status,
					Amount:    decided.Amount,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}
