package controllers

import (
	"net/http"
	"time"

	"github.com/lumapay/lumapay-backend/api/middleware"
	"github.com/lumapay/lumapay-backend/api/responses"
	"github.com/lumapay/lumapay-backend/api/validators"
	"github.com/lumapay/lumapay-backend/internal/wallets"
	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

type walletRegisterRequest struct {
	CircleWalletID string `json:"circle_wallet_id" validate:"required,min=1,max=120"`
	Address        string `json:"address" validate:"required"`
	Chain          string `json:"chain,omitempty" validate:"omitempty,max=10"`
}

type walletResponse struct {
	SellerID       string    `json:"seller_id"`
	CircleWalletID string    `json:"circle_wallet_id"`
	Address        string    `json:"address"`
	Chain          string    `json:"chain"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toWalletResponse(wallet *models.SellerWallet) walletResponse {
	return walletResponse{
		SellerID:       wallet.SellerID.String(),
		CircleWalletID: wallet.CircleWalletID,
		Address:        wallet.Address,
		Chain:          wallet.Chain,
		UpdatedAt:      wallet.UpdatedAt,
	}
}

// WalletRegister stores or replaces the authenticated seller's payout wallet.
func WalletRegister(svc *wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req walletRegisterRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.Register(r.Context(), wallets.RegisterInput{
			SellerID:       sellerID,
			CircleWalletID: req.CircleWalletID,
			Address:        req.Address,
			Chain:          req.Chain,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toWalletResponse(wallet))
	}
}

// WalletGet returns the authenticated seller's registered wallet.
func WalletGet(svc *wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		sellerID, err := middleware.SellerIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.Get(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toWalletResponse(wallet))
	}
}
