package refunds

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
)

type fakePaymentRepo struct {
	rows map[uuid.UUID]*models.Payment
}

func newFakePaymentRepo(seed ...*models.Payment) *fakePaymentRepo {
	repo := &fakePaymentRepo{rows: map[uuid.UUID]*models.Payment{}}
	for _, payment := range seed {
		if payment.ID == uuid.Nil {
			payment.ID = uuid.New()
		}
		repo.rows[payment.ID] = payment
	}
	return repo
}

func (f *fakePaymentRepo) WithTx(tx *gorm.DB) payments.Repository { return f }

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error { return nil }

func (f *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if payment, ok := f.rows[id]; ok {
		return payment, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) FindByStripePaymentIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) FindByPayoutTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) List(ctx context.Context, filter payments.ListFilter) ([]models.Payment, int64, error) {
	return nil, 0, nil
}

func (f *fakePaymentRepo) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason *string) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) MarkPayoutInitiated(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) MarkPayoutRetried(ctx context.Context, id uuid.UUID, transactionID string, reason *string, at time.Time) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) SetPayoutStatus(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, amountCents int64, reason *string, at time.Time) (bool, error) {
	payment, ok := f.rows[id]
	if !ok || payment.RefundID != nil {
		return false, nil
	}
	payment.RefundID = &refundID
	payment.RefundAmountCents = &amountCents
	payment.RefundReason = reason
	payment.RefundedAt = &at
	return true, nil
}

type stubRefunder struct {
	calls  int
	params *stripe.RefundParams
	refund *stripe.Refund
	err    error
}

func (s *stubRefunder) CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	s.calls++
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.refund, nil
}

func refundablePayment(sellerID uuid.UUID) *models.Payment {
	intentID := "pi_refund"
	return &models.Payment{
		ID:                    uuid.New(),
		StripePaymentIntentID: &intentID,
		SellerID:              sellerID,
		AmountUSD:             decimal.NewFromFloat(29.99),
		AmountUSDC:            29990000,
		Status:                enums.PaymentStatusCompleted,
	}
}

func newTestRefundService(t *testing.T, repo payments.Repository, refunder stripeRefunder) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Payments: repo, Stripe: refunder})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRefundFullAmountStampsMetadata(t *testing.T) {
	sellerID := uuid.New()
	payment := refundablePayment(sellerID)
	repo := newFakePaymentRepo(payment)
	refunder := &stubRefunder{refund: &stripe.Refund{ID: "re_1"}}
	svc := newTestRefundService(t, repo, refunder)

	reason := "buyer request"
	updated, err := svc.Refund(context.Background(), sellerID, payment.ID, RefundInput{Reason: &reason})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if updated.RefundID == nil || *updated.RefundID != "re_1" {
		t.Fatalf("refund id not stamped: %v", updated.RefundID)
	}
	if updated.RefundAmountCents == nil || *updated.RefundAmountCents != 2999 {
		t.Fatalf("expected full 2999 cent refund, got %v", updated.RefundAmountCents)
	}
	if updated.RefundedAt == nil {
		t.Fatal("refunded_at not stamped")
	}
	if refunder.params == nil || *refunder.params.PaymentIntent != "pi_refund" {
		t.Fatal("refund not issued against the payment intent")
	}
	if *refunder.params.Amount != 2999 {
		t.Fatalf("expected amount 2999, got %d", *refunder.params.Amount)
	}
}

func TestRefundRejectsNonCompletedPayment(t *testing.T) {
	sellerID := uuid.New()
	payment := refundablePayment(sellerID)
	payment.Status = enums.PaymentStatusPending
	repo := newFakePaymentRepo(payment)
	refunder := &stubRefunder{refund: &stripe.Refund{ID: "re_1"}}
	svc := newTestRefundService(t, repo, refunder)

	_, err := svc.Refund(context.Background(), sellerID, payment.ID, RefundInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state-conflict, got %v", err)
	}
	if refunder.calls != 0 {
		t.Fatalf("processor called %d times", refunder.calls)
	}
}

func TestRefundRequiresProcessorIntent(t *testing.T) {
	sellerID := uuid.New()
	payment := refundablePayment(sellerID)
	payment.StripePaymentIntentID = nil
	repo := newFakePaymentRepo(payment)
	refunder := &stubRefunder{refund: &stripe.Refund{ID: "re_1"}}
	svc := newTestRefundService(t, repo, refunder)

	_, err := svc.Refund(context.Background(), sellerID, payment.ID, RefundInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state-conflict, got %v", err)
	}
	if refunder.calls != 0 {
		t.Fatalf("processor called %d times", refunder.calls)
	}
}

func TestRefundRejectsDoubleRefund(t *testing.T) {
	sellerID := uuid.New()
	payment := refundablePayment(sellerID)
	refundID := "re_existing"
	payment.RefundID = &refundID
	repo := newFakePaymentRepo(payment)
	refunder := &stubRefunder{refund: &stripe.Refund{ID: "re_2"}}
	svc := newTestRefundService(t, repo, refunder)

	_, err := svc.Refund(context.Background(), sellerID, payment.ID, RefundInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if refunder.calls != 0 {
		t.Fatalf("processor called %d times", refunder.calls)
	}
}

func TestRefundValidatesPartialAmount(t *testing.T) {
	sellerID := uuid.New()
	payment := refundablePayment(sellerID)
	repo := newFakePaymentRepo(payment)
	refunder := &stubRefunder{refund: &stripe.Refund{ID: "re_1"}}
	svc := newTestRefundService(t, repo, refunder)

	tooMuch := int64(5000)
	_, err := svc.Refund(context.Background(), sellerID, payment.ID, RefundInput{AmountCents: &tooMuch})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	partial := int64(1000)
	updated, err := svc.Refund(context.Background(), sellerID, payment.ID, RefundInput{AmountCents: &partial})
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if *updated.RefundAmountCents != 1000 {
		t.Fatalf("expected 1000, got %d", *updated.RefundAmountCents)
	}
}

func TestRefundEnforcesSellerScope(t *testing.T) {
	payment := refundablePayment(uuid.New())
	repo := newFakePaymentRepo(payment)
	refunder := &stubRefunder{refund: &stripe.Refund{ID: "re_1"}}
	svc := newTestRefundService(t, repo, refunder)

	_, err := svc.Refund(context.Background(), uuid.New(), payment.ID, RefundInput{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if refunder.calls != 0 {
		t.Fatalf("processor called %d times", refunder.calls)
	}
}
