package models

import "time"

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderCancelled   = "ORDER_CANCELLED"
	EventTypeOrderExpired     = "ORDER_EXPIRED"
	EventTypeOrderRefunded    = "ORDER_REFUNDED"
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is created with stock reserved
type OrderCreatedEvent struct {
	BaseEvent
	OrderID          string          `json:"order_id"`
	CustomerID       string          `json:"customer_id"`
	MerchantID       string          `json:"merchant_id"`
	TotalAmountCents int64           `json:"total_amount_cents"`
	Currency         string          `json:"currency"`
	Items            []OrderItemData `json:"items"`
}

// OrderCancelledEvent published when an order is cancelled and its stock released
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderRefundedEvent published when a paid order is refunded
type OrderRefundedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

// PaymentCompletedEvent published when a verified provider callback marks
// an order paid
type PaymentCompletedEvent struct {
	BaseEvent
	OrderID           string `json:"order_id"`
	PaymentID         string `json:"payment_id"`
	MerchantID        string `json:"merchant_id"`
	AmountCents       int64  `json:"amount_cents"`
	ProviderReference string `json:"provider_reference"`
}

// PaymentFailedEvent published when the provider reports a failed or
// cancelled payment attempt
type PaymentFailedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	TicketTypeID   string `json:"ticket_type_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}
