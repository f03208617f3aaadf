package service

import (
	"context"
	"fmt"
	"time"

	"tickify/internal/broker"
	"tickify/internal/models"
	"tickify/internal/redisclient"
	"tickify/internal/store"
	"tickify/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	orderTTL       time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	orderTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		orderTTL:       orderTTL,
		logger:         util.GetLogger(),
	}
}

// OrderItemRequest represents a requested line item
type OrderItemRequest struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required,min=1"`
}

// CreateOrder reserves stock and creates a pending order atomically.
// Every line reserves or the whole order aborts with nothing persisted.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, req *CreateOrderRequest) (*models.Order, []models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(req.Items) == 0 {
		util.OrdersFailedTotal.WithLabelValues("empty_order").Inc()
		return nil, nil, fmt.Errorf("%w: no order items provided", models.ErrValidation)
	}

	lines := make([]store.OrderLine, 0, len(req.Items))
	seen := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			util.OrdersFailedTotal.WithLabelValues("invalid_quantity").Inc()
			return nil, nil, fmt.Errorf("%w: quantity must be positive", models.ErrValidation)
		}
		if seen[item.TicketTypeID] {
			util.OrdersFailedTotal.WithLabelValues("duplicate_item").Inc()
			return nil, nil, fmt.Errorf("%w: duplicate ticket type %s", models.ErrValidation, item.TicketTypeID)
		}
		seen[item.TicketTypeID] = true
		lines = append(lines, store.OrderLine{TicketTypeID: item.TicketTypeID, Quantity: item.Quantity})
	}

	start := time.Now()
	order, items, err := s.store.CreateOrder(ctx, customerID, lines, s.orderTTL)
	util.StockReserveLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("reservation_failed").Inc()
		return nil, nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.Int64("total_cents", order.TotalAmountCents))

	s.invalidateAvailability(ctx, items)

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			TicketTypeID:   item.TicketTypeID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:          order.ID,
		CustomerID:       order.CustomerID,
		MerchantID:       order.MerchantID,
		TotalAmountCents: order.TotalAmountCents,
		Currency:         order.Currency,
		Items:            eventItems,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return order, items, nil
}

// GetOrder retrieves an order with its items, enforcing ownership
func (s *OrderService) GetOrder(ctx context.Context, orderID string, actor models.Identity) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	if err := authorizeOrderAccess(order, actor); err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// ListOrders lists orders scoped by the caller's role: customers see
// their own, merchants their storefront's, admins everything
func (s *OrderService) ListOrders(ctx context.Context, actor models.Identity) ([]models.Order, error) {
	switch actor.Role {
	case models.RoleCustomer:
		return s.store.ListOrdersByCustomer(ctx, actor.ID)
	case models.RoleMerchant:
		return s.store.ListOrdersByMerchant(ctx, actor.ID)
	case models.RoleAdmin:
		return s.store.ListOrders(ctx)
	default:
		return nil, models.ErrForbidden
	}
}

// CancelOrder releases a pending order's stock and cancels it. Only the
// owning customer, the owning merchant or an admin may cancel.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, actor models.Identity) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := authorizeOrderAccess(order, actor); err != nil {
		return err
	}

	if err := s.store.CancelOrder(ctx, orderID); err != nil {
		return err
	}

	util.OrdersCancelledTotal.WithLabelValues("requested").Inc()
	s.logger.Info("Order cancelled",
		zap.String("order_id", orderID),
		zap.String("actor_id", actor.ID),
		zap.String("actor_role", actor.Role))

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err == nil {
		s.invalidateAvailability(ctx, items)
	}

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: orderID,
		Reason:  "cancelled by " + actor.Role,
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return nil
}

// OverrideStatus is the admin-only emergency status editor. It honors
// the order state machine and never sets paid; that is reserved for the
// verified payment callback. Every use is audit-logged.
func (s *OrderService) OverrideStatus(ctx context.Context, orderID, newStatus string, actor models.Identity) error {
	if actor.Role != models.RoleAdmin {
		return models.ErrForbidden
	}
	if !models.ValidOrderStatus(newStatus) {
		return fmt.Errorf("%w: unknown status %q", models.ErrValidation, newStatus)
	}
	if newStatus == models.OrderStatusPaid {
		return fmt.Errorf("%w: paid is set only by the payment callback", models.ErrForbidden)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !models.CanTransitionOrder(order.Status, newStatus) {
		return models.ErrInvalidTransition
	}

	s.logger.Warn("Admin status override",
		zap.String("order_id", orderID),
		zap.String("admin_id", actor.ID),
		zap.String("from", order.Status),
		zap.String("to", newStatus))

	switch newStatus {
	case models.OrderStatusCancelled:
		if err := s.store.CancelOrder(ctx, orderID); err != nil {
			return err
		}
		util.OrdersCancelledTotal.WithLabelValues("admin_override").Inc()

		items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
		if err == nil {
			s.invalidateAvailability(ctx, items)
		}

		event := &models.OrderCancelledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCancelled,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			Reason:  "admin override",
		}
		if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
		}
		return nil

	case models.OrderStatusRefunded:
		if err := s.store.RefundOrder(ctx, orderID); err != nil {
			return err
		}

		event := &models.OrderRefundedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderRefunded,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
		}
		if err := s.eventPublisher.PublishOrderRefunded(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderRefunded event", zap.Error(err))
		}
		return nil
	}

	return models.ErrInvalidTransition
}

// invalidateAvailability drops cached counts for the ticket types an
// order touched
func (s *OrderService) invalidateAvailability(ctx context.Context, items []models.OrderItem) {
	if s.redis == nil {
		return
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.TicketTypeID)
	}
	if err := s.redis.InvalidateAvailability(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate availability cache", zap.Error(err))
	}
}

// authorizeOrderAccess enforces that only the owning customer, the
// owning merchant or an admin may act on an order
func authorizeOrderAccess(order *models.Order, actor models.Identity) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleCustomer:
		if order.CustomerID == actor.ID {
			return nil
		}
	case models.RoleMerchant:
		if order.MerchantID == actor.ID {
			return nil
		}
	}
	return models.ErrForbidden
}
