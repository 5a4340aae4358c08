package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
)

// Repository runs the reporting aggregates. Read-only.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to analytics queries.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type statusCount struct {
	Status string
	Count  int64
}

type revenueRow struct {
	TotalUSD  decimal.Decimal
	TotalUSDC int64
}

// PaymentCountsByStatus groups the seller's payments by status.
func (r *Repository) PaymentCountsByStatus(ctx context.Context, sellerID uuid.UUID) (map[enums.PaymentStatus]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("status, COUNT(*) AS count").
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.PaymentStatus]int64, len(rows))
	for _, row := range rows {
		counts[enums.PaymentStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// PayoutCountsByStatus groups the seller's payouts by payout status.
func (r *Repository) PayoutCountsByStatus(ctx context.Context, sellerID uuid.UUID) (map[enums.PayoutStatus]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("payout_status AS status, COUNT(*) AS count").
		Where("seller_id = ?", sellerID).
		Group("payout_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.PayoutStatus]int64, len(rows))
	for _, row := range rows {
		counts[enums.PayoutStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// CompletedRevenue sums fiat and USDC amounts over completed payments.
func (r *Repository) CompletedRevenue(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, int64, error) {
	var row revenueRow
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COALESCE(SUM(amount_usd), 0) AS total_usd, COALESCE(SUM(amount_usdc), 0) AS total_usdc").
		Where("seller_id = ? AND status = ?", sellerID, enums.PaymentStatusCompleted).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	return row.TotalUSD, row.TotalUSDC, nil
}
