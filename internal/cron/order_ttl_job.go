package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/logger"
)

// Abandoned carts stay reopenable for a month before they are voided.
const orderExpirationDays = 30

// OrderTTLJobParams configure the stale pending order sweeper.
type OrderTTLJobParams struct {
	Logger         *logger.Logger
	Orders         staleOrderReader
	Canceller      orderCanceller
	ExpirationDays int
}

type staleOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, orderID uuid.UUID) error
}

// NewOrderTTLJob builds the job that expires pending orders nobody paid for.
// Pending orders never reserved stock, so cancelling them is purely a status
// transition plus the cancellation event.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("order canceller required")
	}
	expiration := params.ExpirationDays
	if expiration <= 0 {
		expiration = orderExpirationDays
	}
	return &orderTTLJob{
		logg:       params.Logger,
		orders:     params.Orders,
		canceller:  params.Canceller,
		expiration: expiration,
		now:        time.Now,
	}, nil
}

type orderTTLJob struct {
	logg       *logger.Logger
	orders     staleOrderReader
	canceller  orderCanceller
	expiration int
	now        func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.expiration) * 24 * time.Hour)
	stale, err := j.orders.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	cancelled := 0
	for _, order := range stale {
		if err := j.canceller.Cancel(ctx, order.ID); err != nil {
			errs = append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		cancelled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"expiration_days": j.expiration,
		"orders_found":    len(stale),
		"orders_expired":  cancelled,
	})
	j.logg.Info(logCtx, "pending order expiry sweep complete")
	return multierr.Combine(errs...)
}
