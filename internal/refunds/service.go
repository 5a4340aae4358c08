package refunds

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

type stripeRefunder interface {
	CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

type ServiceParams struct {
	Payments payments.Repository
	Stripe   stripeRefunder
	Logger   *logger.Logger
}

// Service pushes refunds back through the processor and stamps the refund
// metadata on the payment. USDC already paid out is not clawed back here.
type Service struct {
	payments payments.Repository
	stripe   stripeRefunder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		payments: params.Payments,
		stripe:   params.Stripe,
		logg:     params.Logger,
	}, nil
}

// RefundInput narrows a refund request. A nil amount refunds the full
// charge.
type RefundInput struct {
	AmountCents *int64
	Reason      *string
}

// Refund issues a processor refund for a completed payment. SellerID scopes
// the operation; uuid.Nil skips the ownership check for operator calls.
func (s *Service) Refund(ctx context.Context, sellerID, paymentID uuid.UUID, input RefundInput) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	if sellerID != uuid.Nil && payment.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to seller")
	}
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded")
	}
	if payment.StripePaymentIntentID == nil || *payment.StripePaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no processor intent")
	}
	if payment.RefundID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already refunded")
	}

	chargedCents := payment.AmountUSD.Shift(2).IntPart()
	amountCents := chargedCents
	if input.AmountCents != nil {
		amountCents = *input.AmountCents
	}
	if amountCents <= 0 || amountCents > chargedCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount out of range")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(*payment.StripePaymentIntentID),
		Amount:        stripe.Int64(amountCents),
	}
	var reasonPtr *string
	if input.Reason != nil {
		if trimmed := strings.TrimSpace(*input.Reason); trimmed != "" {
			reasonPtr = &trimmed
			params.AddMetadata("reason", trimmed)
		}
	}

	processorRefund, err := s.stripe.CreateRefund(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create processor refund")
	}

	now := time.Now().UTC()
	stamped, err := s.payments.MarkRefunded(ctx, payment.ID, processorRefund.ID, amountCents, reasonPtr, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp refund metadata")
	}
	if !stamped {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment refunded concurrently")
	}

	if s.logg != nil {
		ctx = s.logg.WithPaymentID(ctx, payment.ID.String())
		s.logg.Info(s.logg.WithField(ctx, "refund_id", processorRefund.ID), "payment refunded")
	}

	payment.RefundID = &processorRefund.ID
	payment.RefundAmountCents = &amountCents
	payment.RefundReason = reasonPtr
	payment.RefundedAt = &now
	return payment, nil
}
