package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
	"github.com/lumapay/lumapay-backend/pkg/metrics"
)

type reconciler interface {
	HandlePaymentSucceeded(ctx context.Context, input payments.ProcessorSuccess) (*models.Payment, error)
	HandlePaymentFailed(ctx context.Context, input payments.ProcessorFailure) (*models.Payment, error)
	HandlePaymentCanceled(ctx context.Context, intentID string) (*models.Payment, error)
}

type ServiceParams struct {
	Payments reconciler
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
}

// Service translates verified Stripe events into reconciler calls. Event
// types outside the payment lifecycle are acked and dropped.
type Service struct {
	payments reconciler
	logg     *logger.Logger
	metrics  *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	return &Service{
		payments: params.Payments,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	if s.logg != nil {
		ctx = s.logg.WithEventID(ctx, event.ID)
	}

	var err error
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		err = s.handleIntentSucceeded(ctx, event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		err = s.handleIntentFailed(ctx, event)
	case stripe.EventTypePaymentIntentCanceled:
		err = s.handleIntentCanceled(ctx, event)
	case stripe.EventTypeCheckoutSessionCompleted:
		err = s.handleCheckoutCompleted(ctx, event)
	default:
		s.observe(string(event.Type), "skipped")
		return nil
	}

	if err != nil {
		s.observe(string(event.Type), "error")
		return err
	}
	s.observe(string(event.Type), "processed")
	return nil
}

func (s *Service) handleIntentSucceeded(ctx context.Context, event *stripe.Event) error {
	intent, err := decodeIntent(event)
	if err != nil {
		return err
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	_, err = s.payments.HandlePaymentSucceeded(ctx, payments.ProcessorSuccess{
		PaymentIntentID: intent.ID,
		AmountCents:     amount,
		Currency:        string(intent.Currency),
		LinkSlug:        intent.Metadata[payments.MetadataLinkSlug],
		BuyerID:         metadataPtr(intent.Metadata, "buyerId"),
	})
	return err
}

func (s *Service) handleIntentFailed(ctx context.Context, event *stripe.Event) error {
	intent, err := decodeIntent(event)
	if err != nil {
		return err
	}

	var reason *string
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		msg := intent.LastPaymentError.Msg
		reason = &msg
	}

	_, err = s.payments.HandlePaymentFailed(ctx, payments.ProcessorFailure{
		PaymentIntentID: intent.ID,
		Reason:          reason,
	})
	return err
}

func (s *Service) handleIntentCanceled(ctx context.Context, event *stripe.Event) error {
	intent, err := decodeIntent(event)
	if err != nil {
		return err
	}
	_, err = s.payments.HandlePaymentCanceled(ctx, intent.ID)
	return err
}

// handleCheckoutCompleted covers hosted checkout flows where the succeeded
// intent event may race or be missing metadata; the session carries both the
// intent reference and the link slug.
func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no payment intent")
	}

	_, err := s.payments.HandlePaymentSucceeded(ctx, payments.ProcessorSuccess{
		PaymentIntentID: session.PaymentIntent.ID,
		AmountCents:     session.AmountTotal,
		Currency:        string(session.Currency),
		LinkSlug:        session.Metadata[payments.MetadataLinkSlug],
		BuyerID:         metadataPtr(session.Metadata, "buyerId"),
	})
	return err
}

func (s *Service) observe(eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveWebhookEvent(eventType, outcome)
	}
}

func decodeIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return &intent, nil
}

func metadataPtr(metadata map[string]string, key string) *string {
	if value, ok := metadata[key]; ok && value != "" {
		return &value
	}
	return nil
}
