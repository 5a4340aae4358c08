package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lumapay/lumapay-backend/api/responses"
	circlewebhook "github.com/lumapay/lumapay-backend/internal/webhooks/circle"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

type CircleWebhookService interface {
	HandleNotification(ctx context.Context, notification *circlewebhook.Notification) error
}

type circleWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// CircleWebhook handles wallet provider transfer notifications. Same ack
// policy as the Stripe hook: only retryable failures surface as 5xx.
func CircleWebhook(svc CircleWebhookService, secret string, guard circleWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Circle-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "circle signature missing"))
			return
		}
		if !validateCircleSignature(payload, secret, sigHeader) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid circle signature"))
			return
		}

		var notification circlewebhook.Notification
		if err := json.Unmarshal(payload, &notification); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode notification"))
			return
		}

		eventID := strings.TrimSpace(notification.ID)
		if eventID == "" && notification.Transfer != nil {
			eventID = notification.Transfer.ID
		}
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "notification id missing"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleNotification(ctx, &notification); err != nil {
			if pkgerrors.Retryable(err) {
				_ = guard.Delete(ctx, eventID)
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, fmt.Sprintf("circle notification %s dropped", eventID), err)
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("circle notification %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

func validateCircleSignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
