package circlewebhook

import (
	"context"

	"github.com/lumapay/lumapay-backend/pkg/circle"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
	"github.com/lumapay/lumapay-backend/pkg/metrics"
)

// NotificationTypeTransfers is the provider notification kind we consume.
const NotificationTypeTransfers = "transfers"

// Notification is the wallet provider's webhook envelope.
type Notification struct {
	ID               string           `json:"id"`
	NotificationType string           `json:"notificationType"`
	Transfer         *circle.Transfer `json:"transfer"`
}

type payoutUpdater interface {
	ApplyProviderStatus(ctx context.Context, transactionID string, status circle.TransferStatus, errorCode string) (*models.Payment, error)
}

type ServiceParams struct {
	Payouts payoutUpdater
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics
}

// Service folds provider transfer notifications into payout state. Without
// it a failed on-chain transfer would sit initiated forever.
type Service struct {
	payouts payoutUpdater
	logg    *logger.Logger
	metrics *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payouts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts service required")
	}
	return &Service{
		payouts: params.Payouts,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *Service) HandleNotification(ctx context.Context, notification *Notification) error {
	if notification == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification required")
	}
	if notification.NotificationType != NotificationTypeTransfers {
		s.observe(notification.NotificationType, "skipped")
		return nil
	}
	if notification.Transfer == nil || notification.Transfer.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer payload missing")
	}

	if s.logg != nil {
		ctx = s.logg.WithEventID(ctx, notification.ID)
	}

	transfer := notification.Transfer
	_, err := s.payouts.ApplyProviderStatus(ctx, transfer.ID, transfer.Status, transfer.ErrorCode)
	if err != nil {
		s.observe(notification.NotificationType, "error")
		return err
	}
	s.observe(notification.NotificationType, "processed")
	return nil
}

func (s *Service) observe(notificationType, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveWebhookEvent("circle."+notificationType, outcome)
	}
}
