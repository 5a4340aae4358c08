package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumapay/lumapay-backend/pkg/enums"
)

// Payment records one buyer→seller money movement: the Stripe charge on the
// fiat side and the USDC payout on the stablecoin side. The unique index on
// stripe_payment_intent_id is the idempotency boundary for webhook delivery.
type Payment struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id;unique"`
	ProductID             *uuid.UUID          `gorm:"column:product_id;type:uuid;index"`
	SellerID              uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	BuyerID               *string             `gorm:"column:buyer_id;index"`
	AmountUSD             decimal.Decimal     `gorm:"column:amount_usd;type:numeric(12,2);not null"`
	AmountUSDC            int64               `gorm:"column:amount_usdc;not null"`
	Currency              string              `gorm:"column:currency;not null;default:'usd'"`
	Status                enums.PaymentStatus `gorm:"column:status;not null;default:'pending';index"`
	FailureReason         *string             `gorm:"column:failure_reason"`
	PayoutStatus          enums.PayoutStatus  `gorm:"column:payout_status;not null;default:'unset';index"`
	PayoutTransactionID   *string             `gorm:"column:payout_transaction_id"`
	PayoutRetryCount      int                 `gorm:"column:payout_retry_count;not null;default:0"`
	PayoutRetryReason     *string             `gorm:"column:payout_retry_reason"`
	CompletedAt           *time.Time          `gorm:"column:completed_at"`
	PayoutInitiatedAt     *time.Time          `gorm:"column:payout_initiated_at"`
	PayoutRetriedAt       *time.Time          `gorm:"column:payout_retried_at"`
	RefundID              *string             `gorm:"column:refund_id"`
	RefundAmountCents     *int64              `gorm:"column:refund_amount_cents"`
	RefundReason          *string             `gorm:"column:refund_reason"`
	RefundedAt            *time.Time          `gorm:"column:refunded_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
