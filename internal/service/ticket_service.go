package service

import (
	"context"
	"fmt"
	"time"

	"tickify/internal/models"
	"tickify/internal/redisclient"
	"tickify/internal/store"
	"tickify/internal/util"

	"go.uber.org/zap"
)

const availabilityCacheTTL = 30 * time.Second

// TicketService handles merchant ticket inventory definitions. Stock
// counters themselves are only ever touched by the order paths.
type TicketService struct {
	store    *store.Store
	redis    *redisclient.Client
	currency string
	logger   *zap.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(store *store.Store, redis *redisclient.Client, currency string) *TicketService {
	return &TicketService{
		store:    store,
		redis:    redis,
		currency: currency,
		logger:   util.GetLogger(),
	}
}

// CreateTicketTypeRequest represents a request to create a ticket type
type CreateTicketTypeRequest struct {
	Name          string     `json:"name" binding:"required"`
	PriceCents    int64      `json:"price_cents" binding:"required,min=1"`
	Currency      string     `json:"currency"`
	TotalQuantity int        `json:"total_quantity" binding:"required,min=1"`
	SalesStart    *time.Time `json:"sales_start"`
	SalesEnd      *time.Time `json:"sales_end"`
}

// CreateTicketType creates a ticket type for an event the caller owns.
// All tickets start available.
func (ts *TicketService) CreateTicketType(ctx context.Context, eventID string, actor models.Identity, req *CreateTicketTypeRequest) (*models.TicketType, error) {
	event, err := ts.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.MerchantID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, models.ErrForbidden
	}
	if req.SalesStart != nil && req.SalesEnd != nil && !req.SalesEnd.After(*req.SalesStart) {
		return nil, fmt.Errorf("%w: sales_end must be after sales_start", models.ErrValidation)
	}

	currency := req.Currency
	if currency == "" {
		currency = ts.currency
	}

	tt := &models.TicketType{
		EventID:       eventID,
		Name:          req.Name,
		PriceCents:    req.PriceCents,
		Currency:      currency,
		TotalQuantity: req.TotalQuantity,
		SalesStart:    req.SalesStart,
		SalesEnd:      req.SalesEnd,
	}
	if err := ts.store.CreateTicketType(ctx, tt); err != nil {
		return nil, err
	}

	ts.logger.Info("Ticket type created",
		zap.String("ticket_type_id", tt.ID),
		zap.String("event_id", eventID))
	return tt, nil
}

// ListTicketTypes lists an event's ticket types
func (ts *TicketService) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	return ts.store.ListTicketTypesByEvent(ctx, eventID)
}

// GetAvailability reads a ticket type's available quantity through the
// redis cache; the database row stays authoritative
func (ts *TicketService) GetAvailability(ctx context.Context, ticketTypeID string) (int, error) {
	if ts.redis != nil {
		available, hit, err := ts.redis.GetAvailability(ctx, ticketTypeID)
		if err != nil {
			ts.logger.Warn("Availability cache read failed", zap.Error(err))
		} else if hit {
			return available, nil
		}
	}

	tt, err := ts.store.GetTicketTypeByID(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}

	if ts.redis != nil {
		if err := ts.redis.CacheAvailability(ctx, ticketTypeID, tt.AvailableQuantity, availabilityCacheTTL); err != nil {
			ts.logger.Warn("Availability cache write failed", zap.Error(err))
		}
	}
	return tt.AvailableQuantity, nil
}

// UpdateTicketType applies an allow-listed partial update to a ticket
// type the caller owns
func (ts *TicketService) UpdateTicketType(ctx context.Context, ticketTypeID string, actor models.Identity, upd store.TicketTypeUpdate) (*models.TicketType, error) {
	if err := ts.authorizeTicketType(ctx, ticketTypeID, actor); err != nil {
		return nil, err
	}
	if upd.PriceCents != nil && *upd.PriceCents <= 0 {
		return nil, fmt.Errorf("%w: price_cents must be positive", models.ErrValidation)
	}

	return ts.store.UpdateTicketType(ctx, ticketTypeID, upd)
}

// DeleteTicketType removes an unsold ticket type the caller owns
func (ts *TicketService) DeleteTicketType(ctx context.Context, ticketTypeID string, actor models.Identity) error {
	if err := ts.authorizeTicketType(ctx, ticketTypeID, actor); err != nil {
		return err
	}

	if err := ts.store.DeleteTicketType(ctx, ticketTypeID); err != nil {
		return err
	}

	if ts.redis != nil {
		if err := ts.redis.InvalidateAvailability(ctx, ticketTypeID); err != nil {
			ts.logger.Warn("Failed to invalidate availability cache", zap.Error(err))
		}
	}
	return nil
}

func (ts *TicketService) authorizeTicketType(ctx context.Context, ticketTypeID string, actor models.Identity) error {
	tt, err := ts.store.GetTicketTypeByID(ctx, ticketTypeID)
	if err != nil {
		return err
	}
	event, err := ts.store.GetEventByID(ctx, tt.EventID)
	if err != nil {
		return err
	}
	if event.MerchantID != actor.ID && actor.Role != models.RoleAdmin {
		return models.ErrForbidden
	}
	return nil
}
