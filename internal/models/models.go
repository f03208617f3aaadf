package models

import "time"

// Event represents a merchant's event listing
type Event struct {
	ID            string    `db:"id" json:"id"`
	MerchantID    string    `db:"merchant_id" json:"merchant_id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description,omitempty"`
	Category      string    `db:"category" json:"category"`
	VenueName     string    `db:"venue_name" json:"venue_name,omitempty"`
	VenueAddress  string    `db:"venue_address" json:"venue_address,omitempty"`
	StartDatetime time.Time `db:"start_datetime" json:"start_datetime"`
	EndDatetime   time.Time `db:"end_datetime" json:"end_datetime"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// TicketType represents a purchasable ticket SKU for an event.
// AvailableQuantity is mutated only by the reserve/release paths in the store.
type TicketType struct {
	ID                string     `db:"id" json:"id"`
	EventID           string     `db:"event_id" json:"event_id"`
	Name              string     `db:"name" json:"name"`
	PriceCents        int64      `db:"price_cents" json:"price_cents"`
	Currency          string     `db:"currency" json:"currency"`
	TotalQuantity     int        `db:"total_quantity" json:"total_quantity"`
	AvailableQuantity int        `db:"available_quantity" json:"available_quantity"`
	SalesStart        *time.Time `db:"sales_start" json:"sales_start,omitempty"`
	SalesEnd          *time.Time `db:"sales_end" json:"sales_end,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order. All items in one order belong to a
// single merchant; the total is always derived server-side from the
// prices captured at reservation time.
type Order struct {
	ID               string     `db:"id" json:"id"`
	CustomerID       string     `db:"customer_id" json:"customer_id"`
	MerchantID       string     `db:"merchant_id" json:"merchant_id"`
	TotalAmountCents int64      `db:"total_amount_cents" json:"total_amount_cents"`
	Currency         string     `db:"currency" json:"currency"`
	Status           string     `db:"status" json:"status"`
	PaymentProvider  string     `db:"payment_provider" json:"payment_provider,omitempty"`
	PaymentReference string     `db:"payment_reference" json:"payment_reference,omitempty"`
	ExpiresAt        *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// OrderItem represents a line item in an order. UnitPriceCents is a
// snapshot of the ticket price at purchase time.
type OrderItem struct {
	ID             string    `db:"id" json:"id"`
	OrderID        string    `db:"order_id" json:"order_id"`
	TicketTypeID   string    `db:"ticket_type_id" json:"ticket_type_id"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents" json:"unit_price_cents"`
	TicketStatus   string    `db:"ticket_status" json:"ticket_status"`
	QRCodeData     string    `db:"qr_code_data" json:"qr_code_data,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Payment represents one payment attempt against an order. At most one
// payment per order ever reaches status paid.
type Payment struct {
	ID                string    `db:"id" json:"id"`
	OrderID           string    `db:"order_id" json:"order_id"`
	CustomerID        string    `db:"customer_id" json:"customer_id"`
	Provider          string    `db:"provider" json:"provider"`
	MerchantReference string    `db:"merchant_reference" json:"merchant_reference"`
	AmountCents       int64     `db:"amount_cents" json:"amount_cents"`
	Currency          string    `db:"currency" json:"currency"`
	Status            string    `db:"status" json:"status"`
	ProviderReference string    `db:"provider_reference" json:"provider_reference,omitempty"`
	RawNotifyPayload  []byte    `db:"raw_notify_payload" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// EarningsRecord is the merchant payout bookkeeping entry written once
// per paid order
type EarningsRecord struct {
	ID               string    `db:"id" json:"id"`
	MerchantID       string    `db:"merchant_id" json:"merchant_id"`
	OrderID          string    `db:"order_id" json:"order_id"`
	GrossAmountCents int64     `db:"gross_amount_cents" json:"gross_amount_cents"`
	PlatformFeeCents int64     `db:"platform_fee_cents" json:"platform_fee_cents"`
	NetAmountCents   int64     `db:"net_amount_cents" json:"net_amount_cents"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Merchant represents a seller account
type Merchant struct {
	ID          string    `db:"id" json:"id"`
	CompanyName string    `db:"company_name" json:"company_name"`
	Verified    bool      `db:"verified" json:"verified"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

// Payment statuses
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// Ticket (order item) statuses
const (
	TicketStatusValid    = "valid"
	TicketStatusUsed     = "used"
	TicketStatusRefunded = "refunded"
)

// Event statuses
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCancelled = "cancelled"
)

// Earnings statuses
const (
	EarningsStatusPending = "pending"
	EarningsStatusPaidOut = "paid_out"
)

// User roles
const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
	RoleAdmin    = "admin"
)

// Identity is the authenticated caller as resolved by the identity
// capability in front of this service
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// orderTransitions enumerates the legal order status transitions.
// Setting paid is reserved for the verified payment callback path.
var orderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// CanTransitionOrder reports whether an order may move from one status
// to another
func CanTransitionOrder(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}
