package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tickify/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// CreateEvent creates a new event in draft status
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	event.ID = uuid.New().String()
	event.Status = models.EventStatusDraft

	query := `
		INSERT INTO events (id, merchant_id, title, description, category, venue_name, venue_address, start_datetime, end_datetime, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		event.ID, event.MerchantID, event.Title, event.Description, event.Category,
		event.VenueName, event.VenueAddress, event.StartDatetime, event.EndDatetime, event.Status,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
}

// GetEventByID retrieves an event by ID
func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := s.db.GetContext(ctx, &event, "SELECT * FROM events WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListPublishedEvents retrieves all published events
func (s *Store) ListPublishedEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM events WHERE status = $1 ORDER BY start_datetime", models.EventStatusPublished)
	return events, err
}

// ListEventsByMerchant retrieves all events owned by a merchant
func (s *Store) ListEventsByMerchant(ctx context.Context, merchantID string) ([]models.Event, error) {
	var events []models.Event
	err := s.db.SelectContext(ctx, &events,
		"SELECT * FROM events WHERE merchant_id = $1 ORDER BY created_at DESC", merchantID)
	return events, err
}

// UpdateEventStatus updates an event's status
func (s *Store) UpdateEventStatus(ctx context.Context, eventID, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2", status, eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrEventNotFound
	}
	return nil
}

// EventUpdate is the allow-listed set of mutable event fields
type EventUpdate struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Category      *string    `json:"category"`
	VenueName     *string    `json:"venue_name"`
	VenueAddress  *string    `json:"venue_address"`
	StartDatetime *time.Time `json:"start_datetime"`
	EndDatetime   *time.Time `json:"end_datetime"`
}

// UpdateEvent applies an allow-listed partial update
func (s *Store) UpdateEvent(ctx context.Context, id string, upd EventUpdate) (*models.Event, error) {
	query := `
		UPDATE events
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    category = COALESCE($4, category),
		    venue_name = COALESCE($5, venue_name),
		    venue_address = COALESCE($6, venue_address),
		    start_datetime = COALESCE($7, start_datetime),
		    end_datetime = COALESCE($8, end_datetime),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING *`

	var event models.Event
	err := s.db.GetContext(ctx, &event, query, id,
		upd.Title, upd.Description, upd.Category,
		upd.VenueName, upd.VenueAddress, upd.StartDatetime, upd.EndDatetime)
	if err == sql.ErrNoRows {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetMerchantByID retrieves a merchant by ID
func (s *Store) GetMerchantByID(ctx context.Context, id string) (*models.Merchant, error) {
	var merchant models.Merchant
	err := s.db.GetContext(ctx, &merchant, "SELECT * FROM merchants WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrMerchantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

// SetMerchantVerified marks a merchant as verified
func (s *Store) SetMerchantVerified(ctx context.Context, merchantID string, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE merchants SET verified = $1, updated_at = NOW() WHERE id = $2", verified, merchantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrMerchantNotFound
	}
	return nil
}

// CreateTicketType creates a new ticket type with all tickets available
func (s *Store) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	tt.ID = uuid.New().String()
	tt.AvailableQuantity = tt.TotalQuantity

	query := `
		INSERT INTO ticket_types (id, event_id, name, price_cents, currency, total_quantity, available_quantity, sales_start, sales_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		tt.ID, tt.EventID, tt.Name, tt.PriceCents, tt.Currency,
		tt.TotalQuantity, tt.AvailableQuantity, tt.SalesStart, tt.SalesEnd,
	).Scan(&tt.CreatedAt, &tt.UpdatedAt)
}

// GetTicketTypeByID retrieves a ticket type by ID
func (s *Store) GetTicketTypeByID(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := s.db.GetContext(ctx, &tt, "SELECT * FROM ticket_types WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

// ListTicketTypesByEvent retrieves all ticket types for an event
func (s *Store) ListTicketTypesByEvent(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var tts []models.TicketType
	err := s.db.SelectContext(ctx, &tts,
		"SELECT * FROM ticket_types WHERE event_id = $1 ORDER BY created_at", eventID)
	return tts, err
}

// TicketTypeUpdate is the allow-listed set of mutable ticket type
// fields. Stock counters are never updated through this path.
type TicketTypeUpdate struct {
	Name       *string    `json:"name"`
	PriceCents *int64     `json:"price_cents"`
	SalesStart *time.Time `json:"sales_start"`
	SalesEnd   *time.Time `json:"sales_end"`
}

// UpdateTicketType applies an allow-listed partial update
func (s *Store) UpdateTicketType(ctx context.Context, id string, upd TicketTypeUpdate) (*models.TicketType, error) {
	query := `
		UPDATE ticket_types
		SET name = COALESCE($2, name),
		    price_cents = COALESCE($3, price_cents),
		    sales_start = COALESCE($4, sales_start),
		    sales_end = COALESCE($5, sales_end),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING *`

	var tt models.TicketType
	err := s.db.GetContext(ctx, &tt, query, id, upd.Name, upd.PriceCents, upd.SalesStart, upd.SalesEnd)
	if err == sql.ErrNoRows {
		return nil, models.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

// DeleteTicketType removes a ticket type that has no tickets on
// non-cancelled orders
func (s *Store) DeleteTicketType(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sold bool
	err = tx.GetContext(ctx, &sold, `
		SELECT EXISTS(
			SELECT 1 FROM order_items oi
			JOIN orders o ON oi.order_id = o.id
			WHERE oi.ticket_type_id = $1 AND o.status <> $2
		)`, id, models.OrderStatusCancelled)
	if err != nil {
		return err
	}
	if sold {
		return models.ErrTicketsSold
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM ticket_types WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrTicketTypeNotFound
	}

	return tx.Commit()
}
