package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

// MetadataLinkSlug is the Stripe metadata key carrying the product's payment
// link slug. It is the only way an orphan charge can be tied back to a product.
const MetadataLinkSlug = "linkSlug"

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByPaymentLink(ctx context.Context, slug string) (*models.Product, error)
}

type payoutInitiator interface {
	Initiate(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
}

type intentCreator interface {
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type ServiceParams struct {
	Repo     Repository
	Products productFinder
	Payouts  payoutInitiator
	Stripe   intentCreator
	Logger   *logger.Logger
}

// Service reconciles processor events against payment rows and serves the
// payment read/create API.
type Service struct {
	repo     Repository
	products productFinder
	payouts  payoutInitiator
	stripe   intentCreator
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product finder required")
	}
	return &Service{
		repo:     params.Repo,
		products: params.Products,
		payouts:  params.Payouts,
		stripe:   params.Stripe,
		logg:     params.Logger,
	}, nil
}

// ProcessorSuccess carries the fields of a payment_intent.succeeded event
// the reconciler needs.
type ProcessorSuccess struct {
	PaymentIntentID string
	AmountCents     int64
	Currency        string
	LinkSlug        string
	BuyerID         *string
}

// ProcessorFailure carries a failed/canceled intent and the processor's
// last payment error, if any.
type ProcessorFailure struct {
	PaymentIntentID string
	Reason          *string
}

// CreateInput starts a buyer checkout against a product's payment link.
type CreateInput struct {
	LinkSlug string
	BuyerID  *string
}

// CreateResult pairs the pending payment with the processor client secret
// the buyer-facing page needs to confirm the charge.
type CreateResult struct {
	Payment      *models.Payment
	ClientSecret string
}

// HandlePaymentSucceeded reconciles a succeeded charge. The unique index on
// stripe_payment_intent_id plus the conditional completed update make this
// safe under duplicate and concurrent deliveries; payout initiation happens
// exactly on the first transition into completed.
func (s *Service) HandlePaymentSucceeded(ctx context.Context, input ProcessorSuccess) (*models.Payment, error) {
	if input.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}

	payment, err := s.repo.FindByStripePaymentIntentID(ctx, input.PaymentIntentID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by intent")
	}

	if payment == nil {
		created, createErr := s.createCompletedFromCharge(ctx, input)
		if createErr == nil {
			s.initiatePayout(ctx, created)
			return created, nil
		}
		if !db.IsDuplicateKey(createErr) {
			return nil, createErr
		}
		// Lost the insert race to a concurrent delivery; fall through to
		// the update path.
		payment, err = s.repo.FindByStripePaymentIntentID(ctx, input.PaymentIntentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment after duplicate insert")
		}
	}

	if payment.Status.IsTerminal() {
		return payment, nil
	}

	now := time.Now().UTC()
	transitioned, err := s.repo.MarkCompleted(ctx, payment.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment completed")
	}
	if !transitioned {
		return s.reload(ctx, payment.ID)
	}

	payment.Status = enums.PaymentStatusCompleted
	payment.CompletedAt = &now

	if s.logg != nil {
		s.logg.Info(s.logg.WithPaymentID(ctx, payment.ID.String()), "payment completed")
	}

	s.initiatePayout(ctx, payment)
	return payment, nil
}

// HandlePaymentFailed records a declined charge. Completed payments are
// never regressed.
func (s *Service) HandlePaymentFailed(ctx context.Context, input ProcessorFailure) (*models.Payment, error) {
	payment, err := s.findByIntent(ctx, input.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return payment, nil
	}

	transitioned, err := s.repo.MarkFailed(ctx, payment.ID, input.Reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	if !transitioned {
		return s.reload(ctx, payment.ID)
	}

	payment.Status = enums.PaymentStatusFailed
	payment.FailureReason = input.Reason
	return payment, nil
}

// HandlePaymentCanceled records an abandoned or voided intent.
func (s *Service) HandlePaymentCanceled(ctx context.Context, intentID string) (*models.Payment, error) {
	payment, err := s.findByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return payment, nil
	}

	transitioned, err := s.repo.MarkCancelled(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment cancelled")
	}
	if !transitioned {
		return s.reload(ctx, payment.ID)
	}

	payment.Status = enums.PaymentStatusCancelled
	return payment, nil
}

// Create opens a pending payment for a product link and the matching
// processor intent.
func (s *Service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	slug := strings.TrimSpace(input.LinkSlug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link required")
	}
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable")
	}

	product, err := s.products.FindByPaymentLink(ctx, slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product by link")
	}
	if product.Status(time.Now().UTC()) != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is not purchasable")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(product.PriceCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
	}
	params.AddMetadata(MetadataLinkSlug, product.PaymentLink)
	if input.BuyerID != nil {
		params.AddMetadata("buyerId", *input.BuyerID)
	}

	intent, err := s.stripe.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	payment := &models.Payment{
		StripePaymentIntentID: &intent.ID,
		ProductID:             &product.ID,
		SellerID:              product.SellerID,
		BuyerID:               input.BuyerID,
		AmountUSD:             centsToUSD(product.PriceCents),
		AmountUSDC:            product.PriceUSDC,
		Currency:              "usd",
		Status:                enums.PaymentStatusPending,
		PayoutStatus:          enums.PayoutStatusUnset,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already exists for intent")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}

	return &CreateResult{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// Get loads a payment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// List returns a page of payments matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Payment, int64, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, total, nil
}

// createCompletedFromCharge handles an orphan charge: a succeeded intent
// with no prior payment row. The product slug in the charge metadata is
// authoritative; an unknown slug means nothing is persisted.
func (s *Service) createCompletedFromCharge(ctx context.Context, input ProcessorSuccess) (*models.Payment, error) {
	slug := strings.TrimSpace(input.LinkSlug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "charge carries no product link metadata")
	}

	product, err := s.products.FindByPaymentLink(ctx, slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found for charge")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product by link")
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "usd"
	}

	now := time.Now().UTC()
	payment := &models.Payment{
		StripePaymentIntentID: &input.PaymentIntentID,
		ProductID:             &product.ID,
		SellerID:              product.SellerID,
		BuyerID:               input.BuyerID,
		AmountUSD:             centsToUSD(input.AmountCents),
		AmountUSDC:            product.PriceUSDC,
		Currency:              currency,
		Status:                enums.PaymentStatusCompleted,
		PayoutStatus:          enums.PayoutStatusUnset,
		CompletedAt:           &now,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// initiatePayout kicks off the stablecoin transfer after completion. A
// payout failure never rolls back the completed payment; the payout stays
// retryable through the operator endpoint.
func (s *Service) initiatePayout(ctx context.Context, payment *models.Payment) {
	if s.payouts == nil || payment == nil {
		return
	}
	updated, err := s.payouts.Initiate(ctx, payment.ID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithPaymentID(ctx, payment.ID.String()), "payout initiation failed", err)
		}
		return
	}
	payment.PayoutStatus = updated.PayoutStatus
	payment.PayoutTransactionID = updated.PayoutTransactionID
	payment.PayoutInitiatedAt = updated.PayoutInitiatedAt
}

func (s *Service) findByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	payment, err := s.repo.FindByStripePaymentIntentID(ctx, intentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for intent")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by intent")
	}
	return payment, nil
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return payment, nil
}

func centsToUSD(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}
