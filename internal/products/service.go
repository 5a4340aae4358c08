package products

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
}

// Service owns seller product management and the public payment-link read.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "products repo required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// CreateInput carries the seller-supplied product fields. An empty
// PaymentLink is generated from the name.
type CreateInput struct {
	SellerID    uuid.UUID
	Name        string
	Description *string
	PriceCents  int64
	PriceUSDC   int64
	PaymentLink string
	ExpiresAt   *time.Time
}

// UpdateInput carries the mutable product fields; nil pointers leave the
// stored value alone.
type UpdateInput struct {
	Name        *string
	Description *string
	PriceCents  *int64
	PriceUSDC   *int64
	ExpiresAt   *time.Time
	IsActive    *bool
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.PriceUSDC <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usdc price must be positive")
	}

	slug := strings.TrimSpace(input.PaymentLink)
	if slug == "" {
		slug = generateSlug(name)
	} else {
		slug = slugify(slug)
		if slug == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link must contain letters or digits")
		}
	}

	product := &models.Product{
		SellerID:    input.SellerID,
		Name:        name,
		Description: input.Description,
		PriceCents:  input.PriceCents,
		PriceUSDC:   input.PriceUSDC,
		PaymentLink: slug,
		IsActive:    true,
		ExpiresAt:   input.ExpiresAt,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment link already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// GetByPaymentLink serves the public buyer-facing payment page lookup.
func (s *Service) GetByPaymentLink(ctx context.Context, slug string) (*models.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link required")
	}
	product, err := s.repo.FindByPaymentLink(ctx, slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product by link")
	}
	return product, nil
}

func (s *Service) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	rows, err := s.repo.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, nil
}

// Update applies the provided fields to a product the seller owns.
func (s *Service) Update(ctx context.Context, sellerID, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
		}
		product.Name = name
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.PriceCents != nil {
		if *input.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		product.PriceCents = *input.PriceCents
	}
	if input.PriceUSDC != nil {
		if *input.PriceUSDC <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "usdc price must be positive")
		}
		product.PriceUSDC = *input.PriceUSDC
	}
	if input.ExpiresAt != nil {
		product.ExpiresAt = input.ExpiresAt
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

// Deactivate takes a product off sale without deleting its payment history.
func (s *Service) Deactivate(ctx context.Context, sellerID, id uuid.UUID) error {
	product, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if product.SellerID != sellerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}

func slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = slugPattern.ReplaceAllString(value, "-")
	return strings.Trim(value, "-")
}

func generateSlug(name string) string {
	base := slugify(name)
	suffix := strings.Split(uuid.NewString(), "-")[0]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
