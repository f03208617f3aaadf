package service

import (
	"context"

	"tickify/internal/models"
	"tickify/internal/store"
	"tickify/internal/util"

	"go.uber.org/zap"
)

// MerchantService handles merchant account administration
type MerchantService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewMerchantService creates a new merchant service
func NewMerchantService(store *store.Store) *MerchantService {
	return &MerchantService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// VerifyMerchant marks a merchant as verified. Admin only, audit-logged.
func (ms *MerchantService) VerifyMerchant(ctx context.Context, merchantID string, actor models.Identity) error {
	if actor.Role != models.RoleAdmin {
		return models.ErrForbidden
	}

	if err := ms.store.SetMerchantVerified(ctx, merchantID, true); err != nil {
		return err
	}

	ms.logger.Info("Merchant verified",
		zap.String("merchant_id", merchantID),
		zap.String("admin_id", actor.ID))
	return nil
}

// GetMerchant retrieves a merchant account
func (ms *MerchantService) GetMerchant(ctx context.Context, merchantID string) (*models.Merchant, error) {
	return ms.store.GetMerchantByID(ctx, merchantID)
}
