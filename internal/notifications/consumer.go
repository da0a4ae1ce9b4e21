package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/jodise/jodise-backend/internal/sellers"
	"github.com/jodise/jodise-backend/pkg/db/models"
	"github.com/jodise/jodise-backend/pkg/enums"
	"github.com/jodise/jodise-backend/pkg/logger"
	"github.com/jodise/jodise-backend/pkg/outbox"
	"github.com/jodise/jodise-backend/pkg/outbox/idempotency"
	"github.com/jodise/jodise-backend/pkg/outbox/payloads"
	"github.com/jodise/jodise-backend/pkg/outbox/registry"
)

const orderEventsConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns payout decisions into seller
// notifications. Order-paid notifications are written synchronously by the
// fulfillment flow; the consumer only logs them as a hook for external
// channels.
type Consumer struct {
	repo         repository
	sellers      sellers.Repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds an order events consumer.
func NewConsumer(repo repository, sellersRepo sellers.Repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if sellersRepo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventPayoutDecided, 0, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.PayoutDecidedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})
	return &Consumer{
		repo:         repo,
		sellers:      sellersRepo,
		subscription: subscription,
		idempotency:  manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	switch enums.OutboxEventType(eventType) {
	case enums.EventPayoutDecided:
	case enums.EventOrderPaid:
		c.logg.Info(logCtx, "order paid event observed")
		return processResult{ack: true}
	default:
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderEventsConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(enums.EventPayoutDecided, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderEventsConsumer, eventID)
		return processResult{nack: true}
	}
	payload, ok := decoded.(payloads.PayoutDecidedEvent)
	if !ok {
		c.logg.Error(logCtx, "unexpected payload type", fmt.Errorf("%T", decoded))
		_ = c.idempotency.Delete(ctx, orderEventsConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"seller_id": payload.SellerID.String(),
		"status":    payload.Status,
	})

	if err := c.notifySeller(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "payout notification failed", err)
		_ = c.idempotency.Delete(ctx, orderEventsConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) notifySeller(ctx context.Context, payload payloads.PayoutDecidedEvent, logCtx context.Context) error {
	if payload.SellerID == uuid.Nil {
		return fmt.Errorf("seller id missing")
	}
	seller, err := c.sellers.FindByID(ctx, payload.SellerID)
	if err != nil {
		return err
	}

	title := "Payout processed"
	message := fmt.Sprintf("Your payout request for %s has been paid.", payload.Amount.StringFixed(2))
	if payload.Status == enums.PayoutRequestStatusRejected {
		title = "Payout rejected"
		message = fmt.Sprintf("Your payout request for %s was rejected.", payload.Amount.StringFixed(2))
	}

	notification := &models.Notification{
		ID:          uuid.New(),
		RecipientID: seller.UserID,
		Kind:        enums.NotificationPayoutDecided,
		Title:       title,
		Message:     message,
		Link:        stringPtr("/seller/wallet"),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "seller notified of payout decision")
	return nil
}
