package wallets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
)

// Repository handles seller wallet persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to wallet operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates or replaces the seller's single wallet row.
func (r *Repository) Upsert(ctx context.Context, wallet *models.SellerWallet) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"circle_wallet_id",
				"address",
				"chain",
				"updated_at",
			}),
		}).
		Create(wallet).Error
}

// FindBySellerID loads the seller's registered wallet.
func (r *Repository) FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error) {
	var wallet models.SellerWallet
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
