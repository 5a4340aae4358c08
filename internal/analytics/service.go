package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumapay/lumapay-backend/pkg/enums"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
)

// SellerSummary is the per-seller revenue dashboard payload.
type SellerSummary struct {
	SellerID        string                        `json:"seller_id"`
	PaymentCounts   map[enums.PaymentStatus]int64 `json:"payment_counts"`
	PayoutCounts    map[enums.PayoutStatus]int64  `json:"payout_counts"`
	CompletedUSD    decimal.Decimal               `json:"completed_usd"`
	CompletedUSDC   int64                         `json:"completed_usdc"`
	TotalPayments   int64                         `json:"total_payments"`
	CompletedCount  int64                         `json:"completed_count"`
	FailedCount     int64                         `json:"failed_count"`
	PendingPayouts  int64                         `json:"pending_payouts"`
	FinishedPayouts int64                         `json:"finished_payouts"`
}

type ServiceParams struct {
	Repo *Repository
}

// Service assembles seller reporting summaries. Reads only; nothing here
// touches payment or payout state.
type Service struct {
	repo *Repository
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "analytics repo required")
	}
	return &Service{repo: params.Repo}, nil
}

// SellerSummary aggregates the seller's payment and payout counts plus
// completed revenue.
func (s *Service) SellerSummary(ctx context.Context, sellerID uuid.UUID) (*SellerSummary, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}

	paymentCounts, err := s.repo.PaymentCountsByStatus(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payments")
	}
	payoutCounts, err := s.repo.PayoutCountsByStatus(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payouts")
	}
	totalUSD, totalUSDC, err := s.repo.CompletedRevenue(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue")
	}

	summary := &SellerSummary{
		SellerID:      sellerID.String(),
		PaymentCounts: paymentCounts,
		PayoutCounts:  payoutCounts,
		CompletedUSD:  totalUSD,
		CompletedUSDC: totalUSDC,
	}
	for _, count := range paymentCounts {
		summary.TotalPayments += count
	}
	summary.CompletedCount = paymentCounts[enums.PaymentStatusCompleted]
	summary.FailedCount = paymentCounts[enums.PaymentStatusFailed]
	summary.PendingPayouts = payoutCounts[enums.PayoutStatusInitiated] + payoutCounts[enums.PayoutStatusRetrying]
	summary.FinishedPayouts = payoutCounts[enums.PayoutStatusCompleted]
	return summary, nil
}
