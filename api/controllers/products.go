package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumapay/lumapay-backend/api/middleware"
	"github.com/lumapay/lumapay-backend/api/responses"
	"github.com/lumapay/lumapay-backend/api/validators"
	"github.com/lumapay/lumapay-backend/internal/products"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

type productCreateRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	PriceCents  int64      `json:"price_cents" validate:"required,gt=0"`
	PriceUSDC   int64      `json:"price_usdc" validate:"required,gt=0"`
	PaymentLink string     `json:"payment_link,omitempty" validate:"omitempty,max=120"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type productUpdateRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	PriceCents  *int64     `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	PriceUSDC   *int64     `json:"price_usdc,omitempty" validate:"omitempty,gt=0"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type productResponse struct {
	ID          string     `json:"id"`
	SellerID    string     `json:"seller_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	PriceCents  int64      `json:"price_cents"`
	PriceUSDC   int64      `json:"price_usdc"`
	PaymentLink string     `json:"payment_link"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:          product.ID.String(),
		SellerID:    product.SellerID.String(),
		Name:        product.Name,
		Description: product.Description,
		PriceCents:  product.PriceCents,
		PriceUSDC:   product.PriceUSDC,
		PaymentLink: product.PaymentLink,
		Status:      product.Status(time.Now().UTC()).String(),
		ExpiresAt:   product.ExpiresAt,
		CreatedAt:   product.CreatedAt,
	}
}

// ProductCreate registers a sellable item for the authenticated seller.
func ProductCreate(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req productCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), products.CreateInput{
			SellerID:    sellerID,
			Name:        req.Name,
			Description: req.Description,
			PriceCents:  req.PriceCents,
			PriceUSDC:   req.PriceUSDC,
			PaymentLink: req.PaymentLink,
			ExpiresAt:   req.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toProductResponse(product))
	}
}

// ProductByLink serves the public payment-page lookup by slug.
func ProductByLink(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		product, err := svc.GetByPaymentLink(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toProductResponse(product))
	}
}

// SellerProducts lists the authenticated seller's products.
func SellerProducts(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListBySeller(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, 0, len(rows))
		for i := range rows {
			out = append(out, toProductResponse(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ProductUpdate adjusts the mutable fields of a product the seller owns.
func ProductUpdate(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var req productUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), sellerID, id, products.UpdateInput{
			Name:        req.Name,
			Description: req.Description,
			PriceCents:  req.PriceCents,
			PriceUSDC:   req.PriceUSDC,
			ExpiresAt:   req.ExpiresAt,
			IsActive:    req.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toProductResponse(product))
	}
}

// ProductDeactivate takes a product off sale.
func ProductDeactivate(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		if err := svc.Deactivate(r.Context(), sellerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
