package circlewebhook

import (
	"context"
	"testing"

	"github.com/lumapay/lumapay-backend/pkg/circle"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
)

type stubPayouts struct {
	calls  int
	lastID string
	status circle.TransferStatus
	err    error
}

func (s *stubPayouts) ApplyProviderStatus(ctx context.Context, transactionID string, status circle.TransferStatus, errorCode string) (*models.Payment, error) {
	s.calls++
	s.lastID = transactionID
	s.status = status
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payment{}, nil
}

func TestHandleNotificationAppliesTransferStatus(t *testing.T) {
	payouts := &stubPayouts{}
	svc, err := NewService(ServiceParams{Payouts: payouts})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.HandleNotification(context.Background(), &Notification{
		ID:               "notif-1",
		NotificationType: NotificationTypeTransfers,
		Transfer: &circle.Transfer{
			ID:        "transfer-9",
			Status:    circle.TransferStatusFailed,
			ErrorCode: "insufficient_funds",
		},
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if payouts.calls != 1 || payouts.lastID != "transfer-9" || payouts.status != circle.TransferStatusFailed {
		t.Fatalf("unexpected dispatch: %+v", payouts)
	}
}

func TestHandleNotificationSkipsOtherTypes(t *testing.T) {
	payouts := &stubPayouts{}
	svc, err := NewService(ServiceParams{Payouts: payouts})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.HandleNotification(context.Background(), &Notification{
		ID:               "notif-2",
		NotificationType: "wallets",
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if payouts.calls != 0 {
		t.Fatalf("non-transfer notification dispatched %d times", payouts.calls)
	}
}

func TestHandleNotificationRequiresTransferPayload(t *testing.T) {
	payouts := &stubPayouts{}
	svc, err := NewService(ServiceParams{Payouts: payouts})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.HandleNotification(context.Background(), &Notification{
		ID:               "notif-3",
		NotificationType: NotificationTypeTransfers,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
