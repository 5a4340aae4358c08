package wallets

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumapay/lumapay-backend/pkg/db/models"
	pkgerrors "github.com/lumapay/lumapay-backend/pkg/errors"
)

func newTestWalletService(t *testing.T) *Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.SellerWallet{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(ServiceParams{Repo: NewRepository(conn)})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterAndLookup(t *testing.T) {
	svc := newTestWalletService(t)
	sellerID := uuid.New()

	wallet, err := svc.Register(context.Background(), RegisterInput{
		SellerID:       sellerID,
		CircleWalletID: "wallet-1",
		Address:        "0x52908400098527886E0F7030069857D2E4169EE7",
		Chain:          "eth",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if wallet.Chain != "ETH" {
		t.Fatalf("chain not normalized: %q", wallet.Chain)
	}

	loaded, err := svc.Get(context.Background(), sellerID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Address != wallet.Address {
		t.Fatal("loaded wrong wallet")
	}
}

func TestRegisterReplacesExistingWallet(t *testing.T) {
	svc := newTestWalletService(t)
	sellerID := uuid.New()

	first := RegisterInput{
		SellerID:       sellerID,
		CircleWalletID: "wallet-1",
		Address:        "0x52908400098527886E0F7030069857D2E4169EE7",
	}
	if _, err := svc.Register(context.Background(), first); err != nil {
		t.Fatalf("first register: %v", err)
	}

	second := first
	second.CircleWalletID = "wallet-2"
	second.Address = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	if _, err := svc.Register(context.Background(), second); err != nil {
		t.Fatalf("second register: %v", err)
	}

	loaded, err := svc.Get(context.Background(), sellerID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.CircleWalletID != "wallet-2" {
		t.Fatalf("wallet not replaced: %q", loaded.CircleWalletID)
	}
}

func TestRegisterValidatesAddressAndChain(t *testing.T) {
	svc := newTestWalletService(t)

	cases := []RegisterInput{
		{SellerID: uuid.New(), CircleWalletID: "w", Address: "not-an-address"},
		{SellerID: uuid.New(), CircleWalletID: "w", Address: "0x123"},
		{SellerID: uuid.New(), CircleWalletID: "w", Address: "0x52908400098527886E0F7030069857D2E4169EE7", Chain: "DOGE"},
		{SellerID: uuid.New(), CircleWalletID: "", Address: "0x52908400098527886E0F7030069857D2E4169EE7"},
	}
	for _, input := range cases {
		_, err := svc.Register(context.Background(), input)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestGetUnregisteredWalletIsNotFound(t *testing.T) {
	svc := newTestWalletService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}
