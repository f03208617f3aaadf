package service

import (
	"context"
	"encoding/json"
	"time"

	"tickify/internal/broker"
	"tickify/internal/models"
	"tickify/internal/payfast"
	"tickify/internal/store"
	"tickify/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService owns the gateway trust boundary: it builds signed
// outbound payment requests and processes verified inbound callbacks.
type PaymentService struct {
	store          *store.Store
	gateway        *payfast.Client
	eventPublisher *broker.EventPublisher
	feePercent     int
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	store *store.Store,
	gateway *payfast.Client,
	eventPublisher *broker.EventPublisher,
	feePercent int,
) *PaymentService {
	return &PaymentService{
		store:          store,
		gateway:        gateway,
		eventPublisher: eventPublisher,
		feePercent:     feePercent,
		logger:         util.GetLogger(),
	}
}

// InitiatePaymentResponse carries the redirect for the customer
type InitiatePaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
}

// InitiatePayment records a payment attempt and returns the signed
// gateway redirect. Only the owning customer may pay, and only while
// the order is pending.
func (ps *PaymentService) InitiatePayment(ctx context.Context, orderID, customerID string) (*InitiatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitiatePayment")
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, models.ErrForbidden
	}
	if order.Status != models.OrderStatusPending {
		return nil, models.ErrOrderNotPending
	}

	payment := &models.Payment{
		OrderID:           order.ID,
		CustomerID:        customerID,
		Provider:          payfast.Provider,
		MerchantReference: order.ID,
		AmountCents:       order.TotalAmountCents,
		Currency:          order.Currency,
		Status:            models.PaymentStatusInitiated,
	}
	if err := ps.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	redirect := ps.gateway.BuildRedirect(order.ID, order.TotalAmountCents)

	util.PaymentInitiatedTotal.Inc()
	ps.logger.Info("Payment initiated",
		zap.String("order_id", order.ID),
		zap.String("payment_id", payment.ID))

	return &InitiatePaymentResponse{
		PaymentID:   payment.ID,
		RedirectURL: redirect.URL,
	}, nil
}

// HandleCallback processes an asynchronous gateway notification. The
// signature, merchant identity and amount are verified before any state
// mutates; duplicate success callbacks are no-ops.
func (ps *PaymentService) HandleCallback(ctx context.Context, fields map[string]string) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleCallback")
	defer span.End()

	n, err := payfast.ParseNotification(fields)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("malformed").Inc()
		return err
	}

	if err := ps.gateway.Verify(n); err != nil {
		util.PaymentIntegrityFailures.WithLabelValues("signature").Inc()
		ps.logger.Error("Payment callback signature mismatch",
			zap.String("merchant_reference", n.MerchantReference))
		return err
	}

	order, err := ps.store.GetOrderByID(ctx, n.MerchantReference)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("unknown_order").Inc()
		return err
	}

	if n.MerchantID != ps.gateway.MerchantID() {
		util.PaymentIntegrityFailures.WithLabelValues("merchant").Inc()
		ps.logger.Error("Payment callback merchant mismatch",
			zap.String("order_id", order.ID),
			zap.String("callback_merchant_id", n.MerchantID))
		return models.ErrMerchantMismatch
	}

	// string-exact comparison at minor-unit precision
	if n.AmountGross != payfast.Amount(order.TotalAmountCents) {
		util.PaymentIntegrityFailures.WithLabelValues("amount").Inc()
		ps.logger.Error("Payment callback amount mismatch",
			zap.String("order_id", order.ID),
			zap.String("declared", n.AmountGross),
			zap.String("expected", payfast.Amount(order.TotalAmountCents)))
		return models.ErrAmountMismatch
	}

	payment, err := ps.store.GetPaymentByReference(ctx, n.MerchantReference, payfast.Provider)
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("unknown_payment").Inc()
		return err
	}

	if payment.Status == models.PaymentStatusPaid {
		util.PaymentCallbacksTotal.WithLabelValues("duplicate").Inc()
		ps.logger.Info("Duplicate payment callback ignored",
			zap.String("order_id", order.ID),
			zap.String("payment_id", payment.ID))
		return nil
	}

	rawPayload, err := json.Marshal(n.Raw)
	if err != nil {
		return err
	}

	switch n.PaymentStatus {
	case payfast.StatusComplete:
		return ps.completePayment(ctx, order, payment, n, rawPayload)

	case payfast.StatusFailed, payfast.StatusCancelled:
		return ps.failPayment(ctx, order, payment, n, rawPayload)

	default:
		util.PaymentCallbacksTotal.WithLabelValues("malformed").Inc()
		return models.ErrValidation
	}
}

func (ps *PaymentService) completePayment(ctx context.Context, order *models.Order, payment *models.Payment, n *payfast.Notification, rawPayload []byte) error {
	updated, err := ps.store.CompletePayment(ctx, payment.ID, n.ProviderReference, rawPayload, ps.feePercent)
	if err == models.ErrPaymentAlreadyPaid {
		// a concurrent callback won the payment row lock
		util.PaymentCallbacksTotal.WithLabelValues("duplicate").Inc()
		return nil
	}
	if err == models.ErrOrderNotPending {
		// the reservation expired before the gateway confirmed; the
		// order is terminal and must stay that way. Acknowledge so
		// the gateway stops retrying.
		// TODO: feed these into a refund queue once one exists
		util.PaymentCallbacksTotal.WithLabelValues("stale_order").Inc()
		ps.logger.Error("Payment confirmed for a non-pending order",
			zap.String("order_id", order.ID),
			zap.String("order_status", order.Status),
			zap.String("payment_id", payment.ID),
			zap.String("provider_reference", n.ProviderReference))
		return nil
	}
	if err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("error").Inc()
		return err
	}

	util.PaymentCallbacksTotal.WithLabelValues("complete").Inc()
	util.OrdersPaidTotal.Inc()
	ps.logger.Info("Payment completed and earnings recorded",
		zap.String("order_id", updated.ID),
		zap.String("provider_reference", n.ProviderReference))

	event := &models.PaymentCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentCompleted,
			Timestamp: time.Now(),
		},
		OrderID:           updated.ID,
		PaymentID:         payment.ID,
		MerchantID:        updated.MerchantID,
		AmountCents:       updated.TotalAmountCents,
		ProviderReference: n.ProviderReference,
	}
	if err := ps.eventPublisher.PublishPaymentCompleted(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentCompleted event", zap.Error(err))
	}
	return nil
}

func (ps *PaymentService) failPayment(ctx context.Context, order *models.Order, payment *models.Payment, n *payfast.Notification, rawPayload []byte) error {
	status := models.PaymentStatusFailed
	if n.PaymentStatus == payfast.StatusCancelled {
		status = models.PaymentStatusCancelled
	}

	// no order mutation and no stock release here; the expiry
	// reconciler releases abandoned orders
	if err := ps.store.FailPayment(ctx, payment.ID, status, rawPayload); err != nil {
		util.PaymentCallbacksTotal.WithLabelValues("error").Inc()
		return err
	}

	util.PaymentCallbacksTotal.WithLabelValues("failed").Inc()
	ps.logger.Warn("Payment attempt failed",
		zap.String("order_id", order.ID),
		zap.String("payment_id", payment.ID),
		zap.String("status", status))

	event := &models.PaymentFailedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePaymentFailed,
			Timestamp: time.Now(),
		},
		OrderID:   order.ID,
		PaymentID: payment.ID,
		Status:    status,
	}
	if err := ps.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
	return nil
}

// ListMerchantEarnings lists the caller merchant's payout records
func (ps *PaymentService) ListMerchantEarnings(ctx context.Context, actor models.Identity) ([]models.EarningsRecord, error) {
	if actor.Role != models.RoleMerchant {
		return nil, models.ErrForbidden
	}
	return ps.store.ListEarningsByMerchant(ctx, actor.ID)
}
