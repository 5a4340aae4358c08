package wallets

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
	"github.com/lumapay/lumapay-backend/pkg/logger"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var supportedChains = map[string]struct{}{
	"ETH":   {},
	"MATIC": {},
	"AVAX":  {},
}

type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
}

// Service manages the payout destination each seller registers.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallets repo required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// RegisterInput carries the provider wallet id plus on-chain destination.
type RegisterInput struct {
	SellerID       uuid.UUID
	CircleWalletID string
	Address        string
	Chain          string
}

// Register stores or replaces the seller's wallet. Registration is an
// upsert: a seller has exactly one payout destination at a time.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.SellerWallet, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	walletID := strings.TrimSpace(input.CircleWalletID)
	if walletID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id required")
	}
	address := strings.TrimSpace(input.Address)
	if !evmAddressPattern.MatchString(address) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address must be a 0x-prefixed 40-hex-char string")
	}
	chain := strings.ToUpper(strings.TrimSpace(input.Chain))
	if chain == "" {
		chain = "ETH"
	}
	if _, ok := supportedChains[chain]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported chain")
	}

	wallet := &models.SellerWallet{
		SellerID:       input.SellerID,
		CircleWalletID: walletID,
		Address:        address,
		Chain:          chain,
	}
	if err := s.repo.Upsert(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store seller wallet")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithSellerID(ctx, input.SellerID.String()), "seller wallet registered")
	}
	return wallet, nil
}

// Get returns the seller's registered wallet.
func (s *Service) Get(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	wallet, err := s.repo.FindBySellerID(ctx, sellerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller wallet")
	}
	return wallet, nil
}
