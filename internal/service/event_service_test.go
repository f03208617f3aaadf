package service

import (
	"context"
	"testing"
	"time"

	"tickify/internal/models"
	"tickify/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestCreateEventRejectsInvalidWindow(t *testing.T) {
	es := NewEventService(nil)

	start := time.Now().Add(48 * time.Hour)
	req := &CreateEventRequest{
		Title:         "Launch Party",
		Category:      "music",
		StartDatetime: start,
		EndDatetime:   start.Add(-time.Hour),
	}
	_, err := es.CreateEvent(context.Background(), "merch-1", req)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateEventRejectsInvalidWindow(t *testing.T) {
	es := NewEventService(nil)

	start := time.Now().Add(48 * time.Hour)
	end := start.Add(-time.Hour)
	upd := store.EventUpdate{StartDatetime: &start, EndDatetime: &end}

	_, err := es.UpdateEvent(context.Background(), "event-1",
		models.Identity{ID: "merch-1", Role: models.RoleMerchant}, upd)
	assert.ErrorIs(t, err, models.ErrValidation)
}
