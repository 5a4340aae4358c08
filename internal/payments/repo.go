package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByStripePaymentIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", intentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByPayoutTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("payout_transaction_id = ?", transactionID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.SellerID != uuid.Nil {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PayoutStatus != "" {
		query = query.Where("payout_status = ?", filter.PayoutStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows []models.Payment
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MarkCompleted moves a payment into completed exactly once. The status
// guard makes duplicate webhook deliveries a no-op at the database level.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status <> ?", id, enums.PaymentStatusCompleted).
		Updates(map[string]any{
			"status":       enums.PaymentStatusCompleted,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason *string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Update("status", enums.PaymentStatusCancelled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPayoutInitiated claims the first payout attempt. The payout_status
// guard excludes initiated and completed, so two racing initiators cannot
// both win.
func (r *repository) MarkPayoutInitiated(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND payout_status IN ?", id, []enums.PayoutStatus{
			enums.PayoutStatusUnset,
			enums.PayoutStatusRetrying,
			enums.PayoutStatusFailed,
		}).
		Updates(map[string]any{
			"payout_status":         enums.PayoutStatusInitiated,
			"payout_transaction_id": transactionID,
			"payout_initiated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPayoutRetried records one retry attempt: replaces the transaction id
// and bumps the counter by exactly one. The guard closes the race against a
// payout completing concurrently.
func (r *repository) MarkPayoutRetried(ctx context.Context, id uuid.UUID, transactionID string, reason *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND payout_status <> ?", id, enums.PayoutStatusCompleted).
		Updates(map[string]any{
			"payout_status":         enums.PayoutStatusRetrying,
			"payout_transaction_id": transactionID,
			"payout_retry_count":    gorm.Expr("payout_retry_count + 1"),
			"payout_retry_reason":   reason,
			"payout_retried_at":     at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetPayoutStatus applies a provider-reported transition from a known prior
// state. The WHERE clause re-checks the prior state so stale notifications
// cannot clobber newer ones.
func (r *repository) SetPayoutStatus(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND payout_status = ?", id, from).
		Update("payout_status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, amountCents int64, reason *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND refund_id IS NULL", id).
		Updates(map[string]any{
			"refund_id":           refundID,
			"refund_amount_cents": amountCents,
			"refund_reason":       reason,
			"refunded_at":         at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
