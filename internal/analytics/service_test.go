package analytics

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
)

func seedPayment(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, status enums.PaymentStatus, payoutStatus enums.PayoutStatus, usd float64, usdc int64) {
	t.Helper()
	payment := &models.Payment{
		ID:           uuid.New(),
		SellerID:     sellerID,
		AmountUSD:    decimal.NewFromFloat(usd),
		AmountUSDC:   usdc,
		Currency:     "usd",
		Status:       status,
		PayoutStatus: payoutStatus,
	}
	if err := conn.Create(payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func TestSellerSummaryAggregates(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sellerID := uuid.New()
	otherSeller := uuid.New()
	seedPayment(t, conn, sellerID, enums.PaymentStatusCompleted, enums.PayoutStatusCompleted, 29.99, 29990000)
	seedPayment(t, conn, sellerID, enums.PaymentStatusCompleted, enums.PayoutStatusInitiated, 10.00, 10000000)
	seedPayment(t, conn, sellerID, enums.PaymentStatusFailed, enums.PayoutStatusUnset, 5.00, 5000000)
	seedPayment(t, conn, sellerID, enums.PaymentStatusPending, enums.PayoutStatusUnset, 1.00, 1000000)
	seedPayment(t, conn, otherSeller, enums.PaymentStatusCompleted, enums.PayoutStatusCompleted, 99.00, 99000000)

	svc, err := NewService(ServiceParams{Repo: NewRepository(conn)})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	summary, err := svc.SellerSummary(context.Background(), sellerID)
	if err != nil {
		t.Fatalf("SellerSummary: %v", err)
	}
	if summary.TotalPayments != 4 {
		t.Fatalf("expected 4 payments, got %d", summary.TotalPayments)
	}
	if summary.CompletedCount != 2 || summary.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary.PaymentCounts)
	}
	if summary.CompletedUSDC != 39990000 {
		t.Fatalf("expected 39990000 usdc, got %d", summary.CompletedUSDC)
	}
	if !summary.CompletedUSD.Equal(decimal.NewFromFloat(39.99)) {
		t.Fatalf("expected 39.99 usd, got %s", summary.CompletedUSD)
	}
	if summary.PendingPayouts != 1 || summary.FinishedPayouts != 1 {
		t.Fatalf("unexpected payout counts: %+v", summary.PayoutCounts)
	}
}
