package models

import "errors"

// Not-found errors
var (
	ErrEventNotFound      = errors.New("event not found")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrMerchantNotFound   = errors.New("merchant not found")
)

// Conflict errors
var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrSalesWindowClosed  = errors.New("sales window closed")
	ErrEventNotOnSale     = errors.New("event not published or already started")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrOrderNotPending    = errors.New("order is not pending")
	ErrPaymentAlreadyPaid = errors.New("payment already processed")
	ErrTicketsSold        = errors.New("ticket type has sold tickets")
)

// Caller errors
var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
)

// Integrity errors rejected with no state mutation and logged as
// security events
var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrAmountMismatch   = errors.New("payment amount mismatch")
	ErrMerchantMismatch = errors.New("payment merchant mismatch")
)
