package service

import (
	"context"
	"fmt"
	"time"

	"tickify/internal/models"
	"tickify/internal/store"
	"tickify/internal/util"

	"go.uber.org/zap"
)

// EventService handles the merchant event catalog
type EventService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(store *store.Store) *EventService {
	return &EventService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// CreateEventRequest represents a request to create an event
type CreateEventRequest struct {
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	Category      string    `json:"category" binding:"required"`
	VenueName     string    `json:"venue_name"`
	VenueAddress  string    `json:"venue_address"`
	StartDatetime time.Time `json:"start_datetime" binding:"required"`
	EndDatetime   time.Time `json:"end_datetime" binding:"required"`
}

// CreateEvent creates a draft event owned by the calling merchant
func (es *EventService) CreateEvent(ctx context.Context, merchantID string, req *CreateEventRequest) (*models.Event, error) {
	if !req.EndDatetime.After(req.StartDatetime) {
		return nil, fmt.Errorf("%w: end_datetime must be after start_datetime", models.ErrValidation)
	}

	event := &models.Event{
		MerchantID:    merchantID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		VenueName:     req.VenueName,
		VenueAddress:  req.VenueAddress,
		StartDatetime: req.StartDatetime,
		EndDatetime:   req.EndDatetime,
	}
	if err := es.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	es.logger.Info("Event created",
		zap.String("event_id", event.ID),
		zap.String("merchant_id", merchantID))
	return event, nil
}

// PublishEvent moves a draft event on sale. Only verified merchants may
// publish.
func (es *EventService) PublishEvent(ctx context.Context, eventID string, actor models.Identity) (*models.Event, error) {
	event, err := es.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.MerchantID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, models.ErrForbidden
	}
	if event.Status != models.EventStatusDraft {
		return nil, fmt.Errorf("%w: only draft events can be published", models.ErrValidation)
	}

	merchant, err := es.store.GetMerchantByID(ctx, event.MerchantID)
	if err != nil {
		return nil, err
	}
	if !merchant.Verified {
		return nil, fmt.Errorf("%w: merchant is not verified", models.ErrForbidden)
	}

	if err := es.store.UpdateEventStatus(ctx, eventID, models.EventStatusPublished); err != nil {
		return nil, err
	}

	es.logger.Info("Event published", zap.String("event_id", eventID))
	event.Status = models.EventStatusPublished
	return event, nil
}

// UpdateEvent applies allow-listed edits to an event the caller owns.
// Only draft events are editable; a live listing is immutable apart
// from cancellation.
func (es *EventService) UpdateEvent(ctx context.Context, eventID string, actor models.Identity, upd store.EventUpdate) (*models.Event, error) {
	if upd.StartDatetime != nil && upd.EndDatetime != nil && !upd.EndDatetime.After(*upd.StartDatetime) {
		return nil, fmt.Errorf("%w: end_datetime must be after start_datetime", models.ErrValidation)
	}

	event, err := es.store.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.MerchantID != actor.ID && actor.Role != models.RoleAdmin {
		return nil, models.ErrForbidden
	}
	if event.Status != models.EventStatusDraft {
		return nil, fmt.Errorf("%w: only draft events can be updated", models.ErrValidation)
	}

	// the merged window must stay sane when only one bound changes
	start, end := event.StartDatetime, event.EndDatetime
	if upd.StartDatetime != nil {
		start = *upd.StartDatetime
	}
	if upd.EndDatetime != nil {
		end = *upd.EndDatetime
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end_datetime must be after start_datetime", models.ErrValidation)
	}

	updated, err := es.store.UpdateEvent(ctx, eventID, upd)
	if err != nil {
		return nil, err
	}

	es.logger.Info("Event updated", zap.String("event_id", eventID))
	return updated, nil
}

// CancelEvent takes an event off sale permanently. New reservations
// against its ticket types fail from the moment the status flips.
func (es *EventService) CancelEvent(ctx context.Context, eventID string, actor models.Identity) error {
	event, err := es.store.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.MerchantID != actor.ID && actor.Role != models.RoleAdmin {
		return models.ErrForbidden
	}
	if event.Status == models.EventStatusCancelled {
		return nil
	}

	if err := es.store.UpdateEventStatus(ctx, eventID, models.EventStatusCancelled); err != nil {
		return err
	}

	es.logger.Info("Event cancelled",
		zap.String("event_id", eventID),
		zap.String("actor_id", actor.ID))
	return nil
}

// GetEvent retrieves one event
func (es *EventService) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return es.store.GetEventByID(ctx, eventID)
}

// ListPublishedEvents lists the public catalog
func (es *EventService) ListPublishedEvents(ctx context.Context) ([]models.Event, error) {
	return es.store.ListPublishedEvents(ctx)
}

// ListMerchantEvents lists a merchant's own events, drafts included
func (es *EventService) ListMerchantEvents(ctx context.Context, merchantID string) ([]models.Event, error) {
	return es.store.ListEventsByMerchant(ctx, merchantID)
}
