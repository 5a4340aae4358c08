package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
)

// Repository defines payment persistence. Every Mark* method is a conditional
// update and reports whether a row actually transitioned, so callers can
// detect lost races without a second read.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByStripePaymentIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	FindByPayoutTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	List(ctx context.Context, filter ListFilter) ([]models.Payment, int64, error)

	MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason *string) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)

	MarkPayoutInitiated(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) (bool, error)
	MarkPayoutRetried(ctx context.Context, id uuid.UUID, transactionID string, reason *string, at time.Time) (bool, error)
	SetPayoutStatus(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus) (bool, error)

	MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, amountCents int64, reason *string, at time.Time) (bool, error)
}

// ListFilter narrows payment listings. Zero values mean "no filter".
type ListFilter struct {
	SellerID     uuid.UUID
	Status       enums.PaymentStatus
	PayoutStatus enums.PayoutStatus
	Limit        int
	Offset       int
}
