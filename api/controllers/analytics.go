package controllers

import (
	"net/http"

	"github.com/lumapay/lumapay-backend/api/middleware"
	"github.com/lumapay/lumapay-backend/api/responses"
	"github.com/lumapay/lumapay-backend/internal/analytics"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

// SellerAnalytics returns the authenticated seller's revenue summary.
func SellerAnalytics(svc *analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "analytics service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.SellerSummary(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, summary)
	}
}
