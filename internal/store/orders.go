package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"tickify/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// OrderLine is a requested line item for order creation
type OrderLine struct {
	TicketTypeID string
	Quantity     int
}

// lockedTicket is the row image read under the reservation lock
type lockedTicket struct {
	PriceCents        int64      `db:"price_cents"`
	Currency          string     `db:"currency"`
	AvailableQuantity int        `db:"available_quantity"`
	SalesStart        *time.Time `db:"sales_start"`
	SalesEnd          *time.Time `db:"sales_end"`
	MerchantID        string     `db:"merchant_id"`
	EventStatus       string     `db:"event_status"`
	StartDatetime     time.Time  `db:"start_datetime"`
}

const lockTicketQuery = `
	SELECT tt.price_cents, tt.currency, tt.available_quantity, tt.sales_start, tt.sales_end,
	       e.merchant_id, e.status AS event_status, e.start_datetime
	FROM ticket_types tt
	JOIN events e ON tt.event_id = e.id
	WHERE tt.id = $1
	FOR UPDATE OF tt`

// reserveTicket locks one ticket type row, validates it is sellable and
// decrements its stock. Runs inside the order creation transaction so a
// failure on any line rolls back every earlier decrement.
func reserveTicket(ctx context.Context, tx *sqlx.Tx, ticketTypeID string, quantity int, now time.Time) (*lockedTicket, error) {
	var lt lockedTicket
	err := tx.GetContext(ctx, &lt, lockTicketQuery, ticketTypeID)
	if err == sql.ErrNoRows {
		return nil, models.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ticket type %s: %w", ticketTypeID, err)
	}

	if lt.EventStatus != models.EventStatusPublished || !now.Before(lt.StartDatetime) {
		return nil, models.ErrEventNotOnSale
	}
	if lt.SalesStart != nil && now.Before(*lt.SalesStart) {
		return nil, models.ErrSalesWindowClosed
	}
	if lt.SalesEnd != nil && now.After(*lt.SalesEnd) {
		return nil, models.ErrSalesWindowClosed
	}
	if lt.AvailableQuantity < quantity {
		return nil, models.ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE ticket_types SET available_quantity = available_quantity - $1, updated_at = NOW() WHERE id = $2",
		quantity, ticketTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	return &lt, nil
}

// CreateOrder reserves stock for every line and persists the order with
// its items in a single transaction. All lines must resolve to the same
// merchant and currency; the total is derived from the locked prices.
func (s *Store) CreateOrder(ctx context.Context, customerID string, lines []OrderLine, ttl time.Duration) (*models.Order, []models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	// lock rows in a stable order so concurrent multi-item orders
	// cannot deadlock
	sorted := make([]OrderLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TicketTypeID < sorted[j].TicketTypeID })

	now := time.Now()
	var (
		merchantID string
		currency   string
		totalCents int64
	)
	prices := make(map[string]int64, len(sorted))

	for _, line := range sorted {
		lt, err := reserveTicket(ctx, tx, line.TicketTypeID, line.Quantity, now)
		if err != nil {
			return nil, nil, err
		}

		if merchantID == "" {
			merchantID = lt.MerchantID
			currency = lt.Currency
		} else if lt.MerchantID != merchantID {
			return nil, nil, fmt.Errorf("%w: order spans multiple merchants", models.ErrValidation)
		} else if lt.Currency != currency {
			return nil, nil, fmt.Errorf("%w: order mixes currencies", models.ErrValidation)
		}

		prices[line.TicketTypeID] = lt.PriceCents
		totalCents += lt.PriceCents * int64(line.Quantity)
	}

	expiresAt := now.Add(ttl)
	order := &models.Order{
		ID:               uuid.New().String(),
		CustomerID:       customerID,
		MerchantID:       merchantID,
		TotalAmountCents: totalCents,
		Currency:         currency,
		Status:           models.OrderStatusPending,
		ExpiresAt:        &expiresAt,
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO orders (id, customer_id, merchant_id, total_amount_cents, currency, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		order.ID, order.CustomerID, order.MerchantID, order.TotalAmountCents,
		order.Currency, order.Status, order.ExpiresAt,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		item := models.OrderItem{
			ID:             uuid.New().String(),
			OrderID:        order.ID,
			TicketTypeID:   line.TicketTypeID,
			Quantity:       line.Quantity,
			UnitPriceCents: prices[line.TicketTypeID],
			TicketStatus:   models.TicketStatusValid,
		}
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_items (id, order_id, ticket_type_id, quantity, unit_price_cents, ticket_status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			item.ID, item.OrderID, item.TicketTypeID, item.Quantity, item.UnitPriceCents, item.TicketStatus,
		).Scan(&item.CreatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// releaseOrderItems returns every line-item quantity of an order to
// stock. Must run inside the transaction that also moves the order to a
// terminal status, so stock is released exactly once.
func releaseOrderItems(ctx context.Context, tx *sqlx.Tx, orderID string) error {
	var items []models.OrderItem
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			"UPDATE ticket_types SET available_quantity = available_quantity + $1, updated_at = NOW() WHERE id = $2",
			item.Quantity, item.TicketTypeID)
		if err != nil {
			return fmt.Errorf("failed to release stock for ticket type %s: %w", item.TicketTypeID, err)
		}
	}
	return nil
}

// lockOrder reads an order row under an exclusive lock
func lockOrder(ctx context.Context, tx *sqlx.Tx, orderID string) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder releases the order's stock and transitions it to
// cancelled, atomically. Only pending orders can be cancelled.
func (s *Store) CancelOrder(ctx context.Context, orderID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return models.ErrOrderNotPending
	}

	if err := releaseOrderItems(ctx, tx, orderID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		models.OrderStatusCancelled, orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// RefundOrder transitions a paid order to refunded and marks its
// tickets refunded. Stock is not restored; the tickets were sold.
func (s *Store) RefundOrder(ctx context.Context, orderID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !models.CanTransitionOrder(order.Status, models.OrderStatusRefunded) {
		return models.ErrInvalidTransition
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		models.OrderStatusRefunded, orderID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE order_items SET ticket_status = $1 WHERE order_id = $2",
		models.TicketStatusRefunded, orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CancelExpiredOrders cancels every pending order whose reservation
// window has lapsed and restores its stock, in one transaction. Rows
// are locked so overlapping reconciler passes cannot double-release.
func (s *Store) CancelExpiredOrders(ctx context.Context) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var expired []string
	err = tx.SelectContext(ctx, &expired, `
		SELECT id FROM orders
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < NOW()
		FOR UPDATE`, models.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to select expired orders: %w", err)
	}

	if len(expired) == 0 {
		return nil, tx.Commit()
	}

	for _, orderID := range expired {
		if err := releaseOrderItems(ctx, tx, orderID); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
			models.OrderStatusCancelled, orderID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at", orderID)
	return items, err
}

// ListOrders retrieves all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC")
	return orders, err
}

// ListOrdersByCustomer retrieves a customer's orders
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// ListOrdersByMerchant retrieves a merchant's orders
func (s *Store) ListOrdersByMerchant(ctx context.Context, merchantID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE merchant_id = $1 ORDER BY created_at DESC", merchantID)
	return orders, err
}

// CreatePayment records a new payment attempt
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	payment.ID = uuid.New().String()

	query := `
		INSERT INTO payments (id, order_id, customer_id, provider, merchant_reference, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		payment.ID, payment.OrderID, payment.CustomerID, payment.Provider,
		payment.MerchantReference, payment.AmountCents, payment.Currency, payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
}

// GetPaymentByReference retrieves the latest payment attempt for a
// merchant reference and provider
func (s *Store) GetPaymentByReference(ctx context.Context, merchantRef, provider string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `
		SELECT * FROM payments
		WHERE merchant_reference = $1 AND provider = $2
		ORDER BY created_at DESC LIMIT 1`, merchantRef, provider)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// PlatformFee computes the platform's cut of a gross amount in integer
// cents, rounding down
func PlatformFee(grossCents int64, percent int) int64 {
	return grossCents * int64(percent) / 100
}

// CompletePayment marks the payment and its order paid and writes the
// merchant earnings record, all in one transaction. Duplicate success
// callbacks serialize on the payment row lock and return
// ErrPaymentAlreadyPaid so callers treat them as no-ops.
func (s *Store) CompletePayment(ctx context.Context, paymentID, providerRef string, rawPayload []byte, feePercent int) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var payment models.Payment
	err = tx.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1 FOR UPDATE", paymentID)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentStatusPaid {
		return nil, models.ErrPaymentAlreadyPaid
	}

	order, err := lockOrder(ctx, tx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusPaid {
		// another attempt already paid this order
		return nil, models.ErrPaymentAlreadyPaid
	}
	if order.Status != models.OrderStatusPending {
		return nil, models.ErrOrderNotPending
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, provider_reference = $3, raw_notify_payload = $4, updated_at = NOW()
		WHERE id = $1`,
		paymentID, models.PaymentStatusPaid, providerRef, rawPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_provider = $3, payment_reference = $4, updated_at = NOW()
		WHERE id = $1`,
		order.ID, models.OrderStatusPaid, payment.Provider, providerRef)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	fee := PlatformFee(order.TotalAmountCents, feePercent)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO merchant_earnings (id, merchant_id, order_id, gross_amount_cents, platform_fee_cents, net_amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), order.MerchantID, order.ID,
		order.TotalAmountCents, fee, order.TotalAmountCents-fee, models.EarningsStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to insert earnings record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	order.Status = models.OrderStatusPaid
	order.PaymentProvider = payment.Provider
	order.PaymentReference = providerRef
	return order, nil
}

// FailPayment records a failed or cancelled payment attempt. Only
// initiated attempts transition; a paid payment is never downgraded.
// The order is untouched; abandoned orders are released by the expiry
// reconciler.
func (s *Store) FailPayment(ctx context.Context, paymentID, status string, rawPayload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, raw_notify_payload = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		paymentID, status, rawPayload, models.PaymentStatusInitiated)
	return err
}

// ListEarningsByMerchant retrieves a merchant's earnings records
func (s *Store) ListEarningsByMerchant(ctx context.Context, merchantID string) ([]models.EarningsRecord, error) {
	var records []models.EarningsRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM merchant_earnings WHERE merchant_id = $1 ORDER BY created_at DESC", merchantID)
	return records, err
}

// SetOrderItemTicket stamps the issued ticket payload on an order item
func (s *Store) SetOrderItemTicket(ctx context.Context, itemID, qrCodeData string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE order_items SET qr_code_data = $1 WHERE id = $2", qrCodeData, itemID)
	return err
}
