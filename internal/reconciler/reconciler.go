package reconciler

import (
	"context"
	"time"

	"tickify/internal/models"
	"tickify/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const lockKey = "expiry-reconciler"

// orderSweeper cancels expired pending orders and restores their stock
type orderSweeper interface {
	CancelExpiredOrders(ctx context.Context) ([]string, error)
}

// passLocker claims a reconciler pass so overlapping instances skip it
type passLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// expiryPublisher announces orders cancelled by expiry
type expiryPublisher interface {
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// Reconciler periodically releases the stock of orders whose
// reservation window lapsed. A failed pass is logged and retried on the
// next tick; cancelled orders no longer match the expired predicate so
// retries are safe.
type Reconciler struct {
	store     orderSweeper
	locks     passLocker
	publisher expiryPublisher
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new expiry reconciler
func New(store orderSweeper, locks passLocker, publisher expiryPublisher, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:     store,
		locks:     locks,
		publisher: publisher,
		interval:  interval,
		logger:    util.GetLogger(),
	}
}

// Start runs the reconciler loop until the context is cancelled
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Expiry reconciler started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Expiry reconciler stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass
func (r *Reconciler) Tick(ctx context.Context) {
	if r.locks != nil {
		acquired, err := r.locks.AcquireLock(ctx, lockKey, r.interval)
		if err != nil {
			r.logger.Warn("Failed to acquire reconciler lock", zap.Error(err))
			util.ReconcilerRunsTotal.WithLabelValues("lock_error").Inc()
			return
		}
		if !acquired {
			util.ReconcilerRunsTotal.WithLabelValues("skipped").Inc()
			return
		}
		defer func() {
			if err := r.locks.ReleaseLock(ctx, lockKey); err != nil {
				r.logger.Warn("Failed to release reconciler lock", zap.Error(err))
			}
		}()
	}

	cancelled, err := r.store.CancelExpiredOrders(ctx)
	if err != nil {
		r.logger.Error("Expired order sweep failed", zap.Error(err))
		util.ReconcilerRunsTotal.WithLabelValues("error").Inc()
		return
	}
	util.ReconcilerRunsTotal.WithLabelValues("ok").Inc()

	for _, orderID := range cancelled {
		util.OrdersExpiredTotal.Inc()
		util.OrdersCancelledTotal.WithLabelValues("expired").Inc()
		r.logger.Info("Order expired and cancelled", zap.String("order_id", orderID))

		if r.publisher == nil {
			continue
		}
		event := &models.OrderCancelledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderExpired,
				Timestamp: time.Now(),
			},
			OrderID: orderID,
			Reason:  "reservation expired",
		}
		if err := r.publisher.PublishOrderCancelled(ctx, event); err != nil {
			r.logger.Error("Failed to publish order expiry event",
				zap.String("order_id", orderID), zap.Error(err))
		}
	}
}
