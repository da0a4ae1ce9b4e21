package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jodise/jodise-backend/pkg/enums"
)

// OrderPaidEvent is emitted when a verified charge settles an order.
type OrderPaidEvent struct {
	OrderID   uuid.UUID       `json:"order_id"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	Reference string          `json:"reference"`
	Total     decimal.Decimal `json:"total"`
}

// OrderCancelledEvent is emitted when a buyer cancels a paid order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// StockReleasedEvent reports reserved stock returned to the shelf.
type StockReleasedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

// PaymentFailedEvent is emitted when a charge lands in the failed state.
type PaymentFailedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	OrderID       uuid.UUID `json:"order_id"`
	Reference     string    `json:"reference"`
	Reason        string    `json:"reason,omitempty"`
}

// PayoutRequestedEvent is emitted when a seller asks for a withdrawal.
type PayoutRequestedEvent struct {
	RequestID uuid.UUID       `json:"request_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// PayoutDecidedEvent is emitted when an admin approves or rejects a
// payout request. Consumers use it to notify the seller.
type PayoutDecidedEvent struct {
	RequestID uuid.UUID                 `json:"request_id"`
	SellerID  uuid.UUID                 `json:"seller_id"`
	Status    enums.PayoutRequestStatus `json:"status"`
	Amount    decimal.Decimal           `json:"amount"`
}
