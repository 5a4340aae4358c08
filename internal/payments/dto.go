package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
	"github.com/lumapay/lumapay-backend/pkg/enums"
)

// PaymentResponse is the API projection of a payment row.
type PaymentResponse struct {
	ID                    string              `json:"id"`
	StripePaymentIntentID *string             `json:"stripe_payment_intent_id,omitempty"`
	ProductID             *string             `json:"product_id,omitempty"`
	SellerID              string              `json:"seller_id"`
	BuyerID               *string             `json:"buyer_id,omitempty"`
	AmountUSD             decimal.Decimal     `json:"amount_usd"`
	AmountUSDC            int64               `json:"amount_usdc"`
	Currency              string              `json:"currency"`
	Status                enums.PaymentStatus `json:"status"`
	FailureReason         *string             `json:"failure_reason,omitempty"`
	PayoutStatus          enums.PayoutStatus  `json:"payout_status"`
	PayoutTransactionID   *string             `json:"payout_transaction_id,omitempty"`
	PayoutRetryCount      int                 `json:"payout_retry_count"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	RefundID              *string             `json:"refund_id,omitempty"`
	RefundedAt            *time.Time          `json:"refunded_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
}

// ToResponse converts a payment model into its API shape.
func ToResponse(payment *models.Payment) PaymentResponse {
	if payment == nil {
		return PaymentResponse{}
	}
	resp := PaymentResponse{
		ID:                    payment.ID.String(),
		StripePaymentIntentID: payment.StripePaymentIntentID,
		SellerID:              payment.SellerID.String(),
		BuyerID:               payment.BuyerID,
		AmountUSD:             payment.AmountUSD,
		AmountUSDC:            payment.AmountUSDC,
		Currency:              payment.Currency,
		Status:                payment.Status,
		FailureReason:         payment.FailureReason,
		PayoutStatus:          payment.PayoutStatus,
		PayoutTransactionID:   payment.PayoutTransactionID,
		PayoutRetryCount:      payment.PayoutRetryCount,
		CompletedAt:           payment.CompletedAt,
		RefundID:              payment.RefundID,
		RefundedAt:            payment.RefundedAt,
		CreatedAt:             payment.CreatedAt,
	}
	if payment.ProductID != nil {
		id := payment.ProductID.String()
		resp.ProductID = &id
	}
	return resp
}

// ToResponses converts a page of payment models.
func ToResponses(rows []models.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToResponse(&rows[i]))
	}
	return out
}
