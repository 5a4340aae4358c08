package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lumapay/lumapay-backend/api/middleware"
	"github.com/lumapay/lumapay-backend/api/responses"
	"github.com/lumapay/lumapay-backend/api/validators"
	"github.com/lumapay/lumapay-backend/internal/payments"
	"github.com/lumapay/lumapay-backend/internal/payouts"
	"github.com/lumapay/lumapay-backend/internal/refunds"
	"github.com/lumapay/lumapay-backend/pkg/enums"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

type paymentCreateRequest struct {
	PaymentLink string  `json:"payment_link" validate:"required,min=1"`
	BuyerID     *string `json:"buyer_id,omitempty"`
}

// PaymentCreate opens a pending payment plus processor intent for a product
// link. Public: the buyer-facing payment page calls it before card entry.
func PaymentCreate(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var req paymentCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), payments.CreateInput{
			LinkSlug: req.PaymentLink,
			BuyerID:  req.BuyerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"payment":       payments.ToResponse(result.Payment),
			"client_secret": result.ClientSecret,
		})
	}
}

// PaymentGet returns one payment scoped to the authenticated seller.
func PaymentGet(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		payment, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if middleware.RoleFromContext(r.Context()) == "seller" {
			sellerID, err := middleware.SellerIDFromContext(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if payment.SellerID != sellerID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
				return
			}
		}

		responses.WriteSuccess(w, payments.ToResponse(payment))
	}
}

// SellerPayments lists the authenticated seller's payments, filterable by
// status and payout status.
func SellerPayments(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := payments.ListFilter{SellerID: sellerID}
		query := r.URL.Query()
		if raw := query.Get("status"); raw != "" {
			status, parseErr := enums.ParsePaymentStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid status filter"))
				return
			}
			filter.Status = status
		}
		if raw := query.Get("payout_status"); raw != "" {
			status, parseErr := enums.ParsePayoutStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid payout status filter"))
				return
			}
			filter.PayoutStatus = status
		}
		if raw := query.Get("limit"); raw != "" {
			if limit, parseErr := strconv.Atoi(raw); parseErr == nil {
				filter.Limit = limit
			}
		}
		if raw := query.Get("offset"); raw != "" {
			if offset, parseErr := strconv.Atoi(raw); parseErr == nil {
				filter.Offset = offset
			}
		}

		rows, total, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"payments": payments.ToResponses(rows),
			"total":    total,
		})
	}
}

type payoutRetryRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// PayoutRetry re-attempts a stuck payout. Operator/support only; the
// response carries the fields an operator needs to follow up on chain.
func PayoutRetry(svc *payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		var req payoutRetryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Retry(r.Context(), id, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"transaction_id": payment.PayoutTransactionID,
			"payout_status":  payment.PayoutStatus,
			"retry_count":    payment.PayoutRetryCount,
		})
	}
}

type refundRequest struct {
	AmountCents *int64  `json:"amount_cents,omitempty" validate:"omitempty,gt=0"`
	Reason      *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// PaymentRefund pushes a refund through the processor for a completed
// payment the seller owns.
func PaymentRefund(svc *refunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "paymentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID := uuid.Nil
		if middleware.RoleFromContext(r.Context()) == "seller" {
			sellerID, err = middleware.SellerIDFromContext(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payment, err := svc.Refund(r.Context(), sellerID, id, refunds.RefundInput{
			AmountCents: req.AmountCents,
			Reason:      req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payments.ToResponse(payment))
	}
}
