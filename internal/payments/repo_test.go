package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  stripe_payment_intent_id TEXT UNIQUE,
  product_id TEXT,
  seller_id TEXT NOT NULL,
  buyer_id TEXT,
  amount_usd NUMERIC NOT NULL,
  amount_usdc INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  status TEXT NOT NULL DEFAULT 'pending',
  failure_reason TEXT,
  payout_status TEXT NOT NULL DEFAULT 'unset',
  payout_transaction_id TEXT,
  payout_retry_count INTEGER NOT NULL DEFAULT 0,
  payout_retry_reason TEXT,
  completed_at DATETIME,
  payout_initiated_at DATETIME,
  payout_retried_at DATETIME,
  refund_id TEXT,
  refund_amount_cents INTEGER,
  refund_reason TEXT,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, gdb.Exec(payments).Error)
	return gdb
}

func seedPayment(t *testing.T, repo Repository, intentID string) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		ID:                    uuid.New(),
		StripePaymentIntentID: &intentID,
		SellerID:              uuid.New(),
		AmountUSD:             decimal.RequireFromString("29.99"),
		AmountUSDC:            29990000,
		Currency:              "usd",
		Status:                enums.PaymentStatusPending,
		PayoutStatus:          enums.PayoutStatusUnset,
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	return payment
}

func TestRepoUniqueIntentIndex(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	payment := seedPayment(t, repo, "pi_dup")

	clone := &models.Payment{
		ID:                    uuid.New(),
		StripePaymentIntentID: payment.StripePaymentIntentID,
		SellerID:              payment.SellerID,
		AmountUSD:             payment.AmountUSD,
		AmountUSDC:            payment.AmountUSDC,
		Status:                enums.PaymentStatusPending,
		PayoutStatus:          enums.PayoutStatusUnset,
	}
	err := repo.Create(context.Background(), clone)
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKey(err), "expected duplicate key, got %v", err)

	found, err := repo.FindByStripePaymentIntentID(context.Background(), "pi_dup")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, found.ID)
}

func TestRepoMarkCompletedIsOneShot(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	payment := seedPayment(t, repo, "pi_complete")

	now := time.Now().UTC()
	transitioned, err := repo.MarkCompleted(context.Background(), payment.ID, now)
	require.NoError(t, err)
	assert.True(t, transitioned)

	// Duplicate delivery: the guard swallows the second update.
	transitioned, err = repo.MarkCompleted(context.Background(), payment.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, transitioned)

	found, err := repo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, found.Status)
	require.NotNil(t, found.CompletedAt)
	assert.WithinDuration(t, now, *found.CompletedAt, time.Second)
}

func TestRepoMarkFailedOnlyFromPending(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	payment := seedPayment(t, repo, "pi_fail")

	_, err := repo.MarkCompleted(context.Background(), payment.ID, time.Now().UTC())
	require.NoError(t, err)

	reason := "card_declined"
	transitioned, err := repo.MarkFailed(context.Background(), payment.ID, &reason)
	require.NoError(t, err)
	assert.False(t, transitioned, "completed payment must not regress to failed")

	found, err := repo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, found.Status)
	assert.Nil(t, found.FailureReason)
}

func TestRepoMarkPayoutInitiatedClaimsOnce(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	payment := seedPayment(t, repo, "pi_payout")

	now := time.Now().UTC()
	claimed, err := repo.MarkPayoutInitiated(context.Background(), payment.ID, "transfer-1", now)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.MarkPayoutInitiated(context.Background(), payment.ID, "transfer-2", now)
	require.NoError(t, err)
	assert.False(t, claimed, "second initiator must lose the claim")

	found, err := repo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	require.NotNil(t, found.PayoutTransactionID)
	assert.Equal(t, "transfer-1", *found.PayoutTransactionID)
	assert.Equal(t, enums.PayoutStatusInitiated, found.PayoutStatus)
}

func TestRepoMarkPayoutRetriedIncrementsByOne(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	payment := seedPayment(t, repo, "pi_retry")

	now := time.Now().UTC()
	_, err := repo.MarkPayoutInitiated(context.Background(), payment.ID, "transfer-old", now)
	require.NoError(t, err)

	reason := "transfer stuck"
	retried, err := repo.MarkPayoutRetried(context.Background(), payment.ID, "transfer-new", &reason, now)
	require.NoError(t, err)
	assert.True(t, retried)

	retried, err = repo.MarkPayoutRetried(context.Background(), payment.ID, "transfer-newer", &reason, now)
	require.NoError(t, err)
	assert.True(t, retried)

	found, err := repo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.PayoutRetryCount)
	require.NotNil(t, found.PayoutTransactionID)
	assert.Equal(t, "transfer-newer", *found.PayoutTransactionID)
	assert.Equal(t, enums.PayoutStatusRetrying, found.PayoutStatus)

	// Completed payouts are frozen.
	ok, err := repo.SetPayoutStatus(context.Background(), payment.ID, enums.PayoutStatusRetrying, enums.PayoutStatusCompleted)
	require.NoError(t, err)
	require.True(t, ok)

	retried, err = repo.MarkPayoutRetried(context.Background(), payment.ID, "transfer-after", &reason, now)
	require.NoError(t, err)
	assert.False(t, retried)
}

func TestRepoSetPayoutStatusChecksPriorState(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	payment := seedPayment(t, repo, "pi_transition")

	now := time.Now().UTC()
	_, err := repo.MarkPayoutInitiated(context.Background(), payment.ID, "transfer-1", now)
	require.NoError(t, err)

	ok, err := repo.SetPayoutStatus(context.Background(), payment.ID, enums.PayoutStatusInitiated, enums.PayoutStatusFailed)
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale notification: prior state no longer matches.
	ok, err = repo.SetPayoutStatus(context.Background(), payment.ID, enums.PayoutStatusInitiated, enums.PayoutStatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusFailed, found.PayoutStatus)
}

func TestRepoListFiltersAndCounts(t *testing.T) {
	repo := NewRepository(setupPaymentsTestDB(t))
	first := seedPayment(t, repo, "pi_list_1")

	second := seedPayment(t, repo, "pi_list_2")
	_, err := repo.MarkCompleted(context.Background(), second.ID, time.Now().UTC())
	require.NoError(t, err)

	// Listing is seller-scoped; the second payment belongs to another seller.
	rows, total, err := repo.List(context.Background(), ListFilter{SellerID: first.SellerID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, first.ID, rows[0].ID)

	rows, total, err = repo.List(context.Background(), ListFilter{
		SellerID: second.SellerID,
		Status:   enums.PaymentStatusCompleted,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)
}
