package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/logger"
)

type fakeStaleOrderReader struct {
	orders     []models.Order
	lastCutoff time.Time
	err        error
}

func (f *fakeStaleOrderReader) FindPendingBefore(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	f.lastCutoff = cutoff
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

type fakeOrderCanceller struct {
	cancelled []uuid.UUID
	failOn    uuid.UUID
}

func (f *fakeOrderCanceller) Cancel(_ context.Context, orderID uuid.UUID) error {
	if orderID == f.failOn {
		return errors.New("cancel failed")
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func newOrderTTLJob(t *testing.T, reader *fakeStaleOrderReader, canceller *fakeOrderCanceller) *orderTTLJob {
	t.Helper()
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Orders:    reader,
		Canceller: canceller,
	})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	job, ok := jobIface.(*orderTTLJob)
	if !ok {
		t.Fatalf("expected orderTTLJob, got %T", jobIface)
	}
	return job
}

func TestOrderTTLJobCancelsStalePendingOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stale := []models.Order{{ID: uuid.New()}, {ID: uuid.New()}}
	reader := &fakeStaleOrderReader{orders: stale}
	canceller := &fakeOrderCanceller{}

	job := newOrderTTLJob(t, reader, canceller)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.UTC().Add(-orderExpirationDays * 24 * time.Hour)
	if !reader.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, reader.lastCutoff)
	}
	if len(canceller.cancelled) != 2 {
		t.Fatalf("expected 2 cancellations, got %d", len(canceller.cancelled))
	}
}

func TestOrderTTLJobContinuesPastCancelFailures(t *testing.T) {
	broken := uuid.New()
	healthy := uuid.New()
	reader := &fakeStaleOrderReader{orders: []models.Order{{ID: broken}, {ID: healthy}}}
	canceller := &fakeOrderCanceller{failOn: broken}

	job := newOrderTTLJob(t, reader, canceller)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected combined error")
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != healthy {
		t.Fatalf("expected healthy order cancelled, got %v", canceller.cancelled)
	}
}

func TestOrderTTLJobPropagatesReaderError(t *testing.T) {
	reader := &fakeStaleOrderReader{err: errors.New("boom")}
	job := newOrderTTLJob(t, reader, &fakeOrderCanceller{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
