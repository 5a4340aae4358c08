package payouts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/pkg/circle"
	"github.com/lumapay/lumapay-backend/pkg/config"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
	"github.com/lumapay/lumapay-backend/pkg/metrics"
)

type walletFinder interface {
	FindBySellerID(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error)
}

type transferClient interface {
	CreateTransfer(ctx context.Context, req circle.TransferRequest) (*circle.Transfer, error)
}

type ServiceParams struct {
	Payments payments.Repository
	Wallets  walletFinder
	Provider transferClient
	Config   config.PayoutsConfig
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
}

// Service moves USDC to seller wallets. The provider call happens strictly
// before any payment mutation: a provider failure leaves the payout fields
// exactly as they were.
type Service struct {
	payments payments.Repository
	wallets  walletFinder
	provider transferClient
	cfg      config.PayoutsConfig
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.Wallets == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet finder required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transfer provider required")
	}
	return &Service{
		payments: params.Payments,
		wallets:  params.Wallets,
		provider: params.Provider,
		cfg:      params.Config,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Initiate starts the payout for a completed payment. Allowed only from
// payout status unset, retrying, or failed; an in-flight (initiated) or
// finished payout is rejected before any provider call.
func (s *Service) Initiate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, wallet, err := s.loadForPayout(ctx, paymentID)
	if err != nil {
		s.observe("initiate", "precondition")
		return nil, err
	}

	switch payment.PayoutStatus {
	case enums.PayoutStatusUnset, enums.PayoutStatusRetrying, enums.PayoutStatusFailed:
	case enums.PayoutStatusInitiated:
		s.observe("initiate", "precondition")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout already in flight")
	default:
		s.observe("initiate", "precondition")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout already completed")
	}

	transfer, err := s.createTransfer(ctx, payment, wallet)
	if err != nil {
		s.observe("initiate", "provider_error")
		return nil, err
	}

	now := time.Now().UTC()
	transitioned, err := s.payments.MarkPayoutInitiated(ctx, payment.ID, transfer.ID, now)
	if err != nil {
		s.observe("initiate", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payout initiation")
	}
	if !transitioned {
		s.observe("initiate", "lost_race")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout state changed concurrently")
	}

	s.observe("initiate", "success")
	if s.logg != nil {
		ctx = s.logg.WithPaymentID(ctx, payment.ID.String())
		s.logg.Info(s.logg.WithField(ctx, "transfer_id", transfer.ID), "payout initiated")
	}

	payment.PayoutStatus = enums.PayoutStatusInitiated
	payment.PayoutTransactionID = &transfer.ID
	payment.PayoutInitiatedAt = &now
	return payment, nil
}

// Retry re-attempts a payout that is not yet completed. Each successful
// retry replaces the transaction id and bumps the retry count by exactly one.
func (s *Service) Retry(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	payment, wallet, err := s.loadForPayout(ctx, paymentID)
	if err != nil {
		s.observe("retry", "precondition")
		return nil, err
	}

	if payment.PayoutStatus == enums.PayoutStatusCompleted {
		s.observe("retry", "precondition")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout already completed")
	}

	transfer, err := s.createTransfer(ctx, payment, wallet)
	if err != nil {
		s.observe("retry", "provider_error")
		return nil, err
	}

	var reasonPtr *string
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		reasonPtr = &trimmed
	}

	now := time.Now().UTC()
	transitioned, err := s.payments.MarkPayoutRetried(ctx, payment.ID, transfer.ID, reasonPtr, now)
	if err != nil {
		s.observe("retry", "error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payout retry")
	}
	if !transitioned {
		s.observe("retry", "lost_race")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payout completed concurrently")
	}

	s.observe("retry", "success")
	if s.logg != nil {
		ctx = s.logg.WithPaymentID(ctx, payment.ID.String())
		s.logg.Info(s.logg.WithField(ctx, "transfer_id", transfer.ID), "payout retried")
	}

	// Reload so the incremented retry count comes back from the database.
	updated, err := s.payments.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment after retry")
	}
	return updated, nil
}

// ApplyProviderStatus folds a provider transfer notification into the payout
// state machine. Stale or out-of-order notifications are dropped.
func (s *Service) ApplyProviderStatus(ctx context.Context, transactionID string, status circle.TransferStatus, errorCode string) (*models.Payment, error) {
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer id required")
	}

	payment, err := s.payments.FindByPayoutTransactionID(ctx, transactionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for transfer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by transfer")
	}

	var target enums.PayoutStatus
	switch status {
	case circle.TransferStatusComplete:
		target = enums.PayoutStatusCompleted
	case circle.TransferStatusFailed:
		target = enums.PayoutStatusFailed
	case circle.TransferStatusPending:
		return payment, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transfer status")
	}

	if payment.PayoutStatus == target {
		return payment, nil
	}
	if !payment.PayoutStatus.CanTransition(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout transition disallowed")
	}

	transitioned, err := s.payments.SetPayoutStatus(ctx, payment.ID, payment.PayoutStatus, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payout status")
	}
	if !transitioned {
		// Another notification got there first.
		updated, reloadErr := s.payments.FindByID(ctx, payment.ID)
		if reloadErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, reloadErr, "reload payment")
		}
		return updated, nil
	}

	if s.logg != nil {
		ctx = s.logg.WithPaymentID(ctx, payment.ID.String())
		if errorCode != "" {
			ctx = s.logg.WithField(ctx, "provider_error_code", errorCode)
		}
		s.logg.Info(s.logg.WithField(ctx, "payout_status", target.String()), "payout status updated")
	}

	payment.PayoutStatus = target
	return payment, nil
}

// loadForPayout enforces the shared payout preconditions: the payment exists
// and is completed, the amount is positive, and the seller has a wallet.
func (s *Service) loadForPayout(ctx context.Context, paymentID uuid.UUID) (*models.Payment, *models.SellerWallet, error) {
	if paymentID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	if payment.Status != enums.PaymentStatusCompleted {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not completed")
	}
	if payment.AmountUSDC <= 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "payment has no payout amount")
	}

	wallet, err := s.wallets.FindBySellerID(ctx, payment.SellerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "seller has no registered wallet")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller wallet")
	}

	return payment, wallet, nil
}

func (s *Service) createTransfer(ctx context.Context, payment *models.Payment, wallet *models.SellerWallet) (*circle.Transfer, error) {
	chain := wallet.Chain
	if chain == "" {
		chain = s.cfg.Chain
	}

	transfer, err := s.provider.CreateTransfer(ctx, circle.TransferRequest{
		DestinationAddress: wallet.Address,
		Chain:              chain,
		AmountUSDC:         payment.AmountUSDC,
		Currency:           s.cfg.Currency,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create provider transfer")
	}
	if transfer == nil || transfer.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider returned no transfer id")
	}
	return transfer, nil
}

func (s *Service) observe(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.ObservePayoutAttempt(kind, outcome)
	}
}
