package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/pkg/circle"
	"github.com/lumapay/lumapay-backend/pkg/config"
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

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	f.rows[payment.ID] = payment
	return nil
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if payment, ok := f.rows[id]; ok {
		return payment, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) FindByStripePaymentIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	for _, payment := range f.rows {
		if payment.StripePaymentIntentID != nil && *payment.StripePaymentIntentID == intentID {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) FindByPayoutTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	for _, payment := range f.rows {
		if payment.PayoutTransactionID != nil && *payment.PayoutTransactionID == transactionID {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) List(ctx context.Context, filter payments.ListFilter) ([]models.Payment, int64, error) {
	return nil, 0, nil
}

func (f *fakePaymentRepo) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	payment, ok := f.rows[id]
	if !ok || payment.Status == enums.PaymentStatusCompleted {
		return false, nil
	}
	payment.Status = enums.PaymentStatusCompleted
	payment.CompletedAt = &completedAt
	return true, nil
}

func (f *fakePaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason *string) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakePaymentRepo) MarkPayoutInitiated(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) (bool, error) {
	payment, ok := f.rows[id]
	if !ok {
		return false, nil
	}
	switch payment.PayoutStatus {
	case enums.PayoutStatusUnset, enums.PayoutStatusRetrying, enums.PayoutStatusFailed:
	default:
		return false, nil
	}
	payment.PayoutStatus = enums.PayoutStatusInitiated
	payment.PayoutTransactionID = &transactionID
	payment.PayoutInitiatedAt = &at
	return true, nil
}

func (f *fakePaymentRepo) MarkPayoutRetried(ctx context.Context, id uuid.UUID, transactionID string, reason *string, at time.Time) (bool, error) {
	payment, ok := f.rows[id]
	if !ok || payment.PayoutStatus == enums.PayoutStatusCompleted {
		return false, nil
	}
	payment.PayoutStatus = enums.PayoutStatusRetrying
	payment.PayoutTransactionID = &transactionID
	payment.PayoutRetryCount++
	payment.PayoutRetryReason = reason
	payment.PayoutRetriedAt = &at
	return true, nil
}

func (f *fakePaymentRepo) SetPayoutStatus(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus) (bool, error) {
	payment, ok := f.rows[id]
	if !ok || payment.PayoutStatus != from {
		return false, nil
	}
	payment.PayoutStatus = to
	return true, nil
}

func (f *fakePaymentRepo) MarkRefunded(ctx context.Context, id uuid.UUID, refundID string, amountCents int64, reason *string, at time.Time) (bool, error) {
	return false, nil
}

type stubWallets struct {
	bySeller map[uuid.UUID]*models.SellerWallet
}

func (s *stubWallets) FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error) {
	if wallet, ok := s.bySeller[sellerID]; ok {
		return wallet, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubProvider struct {
	calls    int
	lastReq  circle.TransferRequest
	transfer *circle.Transfer
	err      error
}

func (s *stubProvider) CreateTransfer(ctx context.Context, req circle.TransferRequest) (*circle.Transfer, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.transfer, nil
}

func completedPayment(sellerID uuid.UUID, payoutStatus enums.PayoutStatus) *models.Payment {
	return &models.Payment{
		ID:           uuid.New(),
		SellerID:     sellerID,
		AmountUSDC:   29990000,
		Status:       enums.PaymentStatusCompleted,
		PayoutStatus: payoutStatus,
	}
}

func walletFor(sellerID uuid.UUID) *stubWallets {
	return &stubWallets{bySeller: map[uuid.UUID]*models.SellerWallet{
		sellerID: {
			SellerID:       sellerID,
			CircleWalletID: "wallet-1",
			Address:        "0xabc",
			Chain:          "ETH",
		},
	}}
}

func newTestService(t *testing.T, repo payments.Repository, wallets walletFinder, provider transferClient) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Payments: repo,
		Wallets:  wallets,
		Provider: provider,
		Config:   config.PayoutsConfig{Currency: "USD", Chain: "ETH"},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestInitiatePersistsTransferAndStatus(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusUnset)
	repo := newFakePaymentRepo(payment)
	provider := &stubProvider{transfer: &circle.Transfer{ID: "transfer-42", Status: circle.TransferStatusPending}}
	svc := newTestService(t, repo, walletFor(sellerID), provider)

	updated, err := svc.Initiate(context.Background(), payment.ID)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if updated.PayoutStatus != enums.PayoutStatusInitiated {
		t.Fatalf("expected initiated, got %s", updated.PayoutStatus)
	}
	if updated.PayoutTransactionID == nil || *updated.PayoutTransactionID != "transfer-42" {
		t.Fatalf("transaction id not persisted: %v", updated.PayoutTransactionID)
	}
	if updated.PayoutInitiatedAt == nil {
		t.Fatal("payout_initiated_at not stamped")
	}
	if provider.lastReq.DestinationAddress != "0xabc" || provider.lastReq.AmountUSDC != 29990000 {
		t.Fatalf("unexpected transfer request: %+v", provider.lastReq)
	}
}

func TestInitiateRejectsNonCompletedPayment(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusUnset)
	payment.Status = enums.PaymentStatusPending
	repo := newFakePaymentRepo(payment)
	provider := &stubProvider{transfer: &circle.Transfer{ID: "t"}}
	svc := newTestService(t, repo, walletFor(sellerID), provider)

	_, err := svc.Initiate(context.Background(), payment.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state-conflict, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called %d times for non-completed payment", provider.calls)
	}
}

func TestInitiateRejectsInFlightAndCompletedPayouts(t *testing.T) {
	for _, status := range []enums.PayoutStatus{enums.PayoutStatusInitiated, enums.PayoutStatusCompleted} {
		sellerID := uuid.New()
		payment := completedPayment(sellerID, status)
		repo := newFakePaymentRepo(payment)
		provider := &stubProvider{transfer: &circle.Transfer{ID: "t"}}
		svc := newTestService(t, repo, walletFor(sellerID), provider)

		_, err := svc.Initiate(context.Background(), payment.ID)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("%s: expected state-conflict, got %v", status, err)
		}
		if provider.calls != 0 {
			t.Fatalf("%s: provider called %d times", status, provider.calls)
		}
	}
}

func TestInitiateRequiresRegisteredWallet(t *testing.T) {
	payment := completedPayment(uuid.New(), enums.PayoutStatusUnset)
	repo := newFakePaymentRepo(payment)
	provider := &stubProvider{transfer: &circle.Transfer{ID: "t"}}
	svc := newTestService(t, repo, &stubWallets{bySeller: map[uuid.UUID]*models.SellerWallet{}}, provider)

	_, err := svc.Initiate(context.Background(), payment.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state-conflict, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called %d times without wallet", provider.calls)
	}
}

func TestProviderErrorLeavesPayoutFieldsUntouched(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusUnset)
	repo := newFakePaymentRepo(payment)
	provider := &stubProvider{err: pkgerrors.New(pkgerrors.CodeDependency, "provider down")}
	svc := newTestService(t, repo, walletFor(sellerID), provider)

	_, err := svc.Initiate(context.Background(), payment.ID)
	if err == nil {
		t.Fatal("expected error")
	}
	stored := repo.rows[payment.ID]
	if stored.PayoutStatus != enums.PayoutStatusUnset {
		t.Fatalf("payout status mutated to %s", stored.PayoutStatus)
	}
	if stored.PayoutTransactionID != nil || stored.PayoutInitiatedAt != nil {
		t.Fatal("payout fields mutated on provider error")
	}
}

func TestRetryIncrementsCountAndReplacesTransaction(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusInitiated)
	oldTransaction := "transfer-old"
	payment.PayoutTransactionID = &oldTransaction
	payment.PayoutRetryCount = 2
	repo := newFakePaymentRepo(payment)
	provider := &stubProvider{transfer: &circle.Transfer{ID: "transfer-new"}}
	svc := newTestService(t, repo, walletFor(sellerID), provider)

	updated, err := svc.Retry(context.Background(), payment.ID, "stuck on chain")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if updated.PayoutStatus != enums.PayoutStatusRetrying {
		t.Fatalf("expected retrying, got %s", updated.PayoutStatus)
	}
	if updated.PayoutRetryCount != 3 {
		t.Fatalf("expected retry count 3, got %d", updated.PayoutRetryCount)
	}
	if updated.PayoutTransactionID == nil || *updated.PayoutTransactionID != "transfer-new" {
		t.Fatalf("transaction id not replaced: %v", updated.PayoutTransactionID)
	}
	if updated.PayoutRetriedAt == nil {
		t.Fatal("payout_retried_at not stamped")
	}
	if updated.PayoutRetryReason == nil || *updated.PayoutRetryReason != "stuck on chain" {
		t.Fatalf("retry reason not stored: %v", updated.PayoutRetryReason)
	}
}

func TestRetryRejectsCompletedPayout(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusCompleted)
	repo := newFakePaymentRepo(payment)
	provider := &stubProvider{transfer: &circle.Transfer{ID: "t"}}
	svc := newTestService(t, repo, walletFor(sellerID), provider)

	_, err := svc.Retry(context.Background(), payment.ID, "reason")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state-conflict, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider called %d times for completed payout", provider.calls)
	}
}

func TestApplyProviderStatusMovesInitiatedToFailed(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusInitiated)
	transactionID := "transfer-9"
	payment.PayoutTransactionID = &transactionID
	repo := newFakePaymentRepo(payment)
	svc := newTestService(t, repo, walletFor(sellerID), &stubProvider{transfer: &circle.Transfer{ID: "t"}})

	updated, err := svc.ApplyProviderStatus(context.Background(), transactionID, circle.TransferStatusFailed, "insufficient_funds")
	if err != nil {
		t.Fatalf("ApplyProviderStatus: %v", err)
	}
	if updated.PayoutStatus != enums.PayoutStatusFailed {
		t.Fatalf("expected failed, got %s", updated.PayoutStatus)
	}
}

func TestApplyProviderStatusIsIdempotent(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusCompleted)
	transactionID := "transfer-10"
	payment.PayoutTransactionID = &transactionID
	repo := newFakePaymentRepo(payment)
	svc := newTestService(t, repo, walletFor(sellerID), &stubProvider{transfer: &circle.Transfer{ID: "t"}})

	updated, err := svc.ApplyProviderStatus(context.Background(), transactionID, circle.TransferStatusComplete, "")
	if err != nil {
		t.Fatalf("ApplyProviderStatus: %v", err)
	}
	if updated.PayoutStatus != enums.PayoutStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.PayoutStatus)
	}
}

func TestApplyProviderStatusPendingIsNoOp(t *testing.T) {
	sellerID := uuid.New()
	payment := completedPayment(sellerID, enums.PayoutStatusInitiated)
	transactionID := "transfer-11"
	payment.PayoutTransactionID = &transactionID
	repo := newFakePaymentRepo(payment)
	svc := newTestService(t, repo, walletFor(sellerID), &stubProvider{transfer: &circle.Transfer{ID: "t"}})

	updated, err := svc.ApplyProviderStatus(context.Background(), transactionID, circle.TransferStatusPending, "")
	if err != nil {
		t.Fatalf("ApplyProviderStatus: %v", err)
	}
	if updated.PayoutStatus != enums.PayoutStatusInitiated {
		t.Fatalf("pending notification changed status to %s", updated.PayoutStatus)
	}
}
