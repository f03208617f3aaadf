package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"tickify/internal/broker"
	"tickify/internal/models"
	"tickify/internal/store"
	"tickify/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TicketIssuer consumes payment events and stamps issued ticket QR
// payloads onto the paid order's items
type TicketIssuer struct {
	consumer *broker.Consumer
	store    *store.Store
	logger   *zap.Logger
}

// NewTicketIssuer creates a new ticket issuance worker
func NewTicketIssuer(consumer *broker.Consumer, store *store.Store) *TicketIssuer {
	return &TicketIssuer{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *TicketIssuer) Start(ctx context.Context) error {
	w.logger.Info("Starting ticket issuer worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *TicketIssuer) Stop() error {
	w.logger.Info("Stopping ticket issuer worker")
	return w.consumer.Close()
}

func (w *TicketIssuer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	if baseEvent.EventType != models.EventTypePaymentCompleted {
		return nil
	}

	var event models.PaymentCompletedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal PaymentCompleted event: %w", err)
	}

	return w.issueTickets(ctx, event.OrderID)
}

// issueTickets assigns a QR payload to every item that has none yet, so
// replayed events do not reissue tickets
func (w *TicketIssuer) issueTickets(ctx context.Context, orderID string) error {
	items, err := w.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	issued := 0
	for _, item := range items {
		if item.QRCodeData != "" {
			continue
		}
		payload := fmt.Sprintf("tickify:%s:%s", orderID, uuid.New().String())
		if err := w.store.SetOrderItemTicket(ctx, item.ID, payload); err != nil {
			return fmt.Errorf("failed to stamp ticket on item %s: %w", item.ID, err)
		}
		issued++
	}

	if issued > 0 {
		w.logger.Info("Tickets issued",
			zap.String("order_id", orderID),
			zap.Int("count", issued))
	}
	return nil
}
