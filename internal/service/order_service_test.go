package service

import (
	"context"
	"testing"
	"time"

	"tickify/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	s := NewOrderService(nil, nil, nil, 15*time.Minute)

	_, _, err := s.CreateOrder(context.Background(), "customer-1", &CreateOrderRequest{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateOrderRejectsNonPositiveQuantity(t *testing.T) {
	s := NewOrderService(nil, nil, nil, 15*time.Minute)

	req := &CreateOrderRequest{Items: []OrderItemRequest{
		{TicketTypeID: "tt-1", Quantity: 0},
	}}
	_, _, err := s.CreateOrder(context.Background(), "customer-1", req)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateOrderRejectsDuplicateTicketTypes(t *testing.T) {
	s := NewOrderService(nil, nil, nil, 15*time.Minute)

	req := &CreateOrderRequest{Items: []OrderItemRequest{
		{TicketTypeID: "tt-1", Quantity: 1},
		{TicketTypeID: "tt-1", Quantity: 2},
	}}
	_, _, err := s.CreateOrder(context.Background(), "customer-1", req)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAuthorizeOrderAccess(t *testing.T) {
	order := &models.Order{CustomerID: "cust-1", MerchantID: "merch-1"}

	assert.NoError(t, authorizeOrderAccess(order, models.Identity{ID: "cust-1", Role: models.RoleCustomer}))
	assert.NoError(t, authorizeOrderAccess(order, models.Identity{ID: "merch-1", Role: models.RoleMerchant}))
	assert.NoError(t, authorizeOrderAccess(order, models.Identity{ID: "anyone", Role: models.RoleAdmin}))

	assert.ErrorIs(t, authorizeOrderAccess(order, models.Identity{ID: "cust-2", Role: models.RoleCustomer}), models.ErrForbidden)
	assert.ErrorIs(t, authorizeOrderAccess(order, models.Identity{ID: "merch-2", Role: models.RoleMerchant}), models.ErrForbidden)
	assert.ErrorIs(t, authorizeOrderAccess(order, models.Identity{ID: "cust-1", Role: "ghost"}), models.ErrForbidden)
}

func TestOverrideStatusRejectsNonAdmin(t *testing.T) {
	s := NewOrderService(nil, nil, nil, 15*time.Minute)

	err := s.OverrideStatus(context.Background(), "order-1", models.OrderStatusCancelled,
		models.Identity{ID: "merch-1", Role: models.RoleMerchant})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestOverrideStatusNeverSetsPaid(t *testing.T) {
	s := NewOrderService(nil, nil, nil, 15*time.Minute)

	// paid is reserved for the verified payment callback path
	err := s.OverrideStatus(context.Background(), "order-1", models.OrderStatusPaid,
		models.Identity{ID: "admin-1", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestOverrideStatusRejectsUnknownStatus(t *testing.T) {
	s := NewOrderService(nil, nil, nil, 15*time.Minute)

	err := s.OverrideStatus(context.Background(), "order-1", "shipped",
		models.Identity{ID: "admin-1", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, models.ErrValidation)
}
