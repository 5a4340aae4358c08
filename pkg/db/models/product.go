package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumapay/lumapay-backend/pkg/enums"
)

// Product is a sellable item reachable through its payment link slug. The
// USDC price is authoritative for payouts; it is never re-derived from the
// fiat amount a processor reports.
type Product struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID  `gorm:"column:seller_id;type:uuid;not null;index"`
	Name        string     `gorm:"column:name;not null"`
	Description *string    `gorm:"column:description"`
	PriceCents  int64      `gorm:"column:price_cents;not null"`
	PriceUSDC   int64      `gorm:"column:price_usdc;not null"`
	PaymentLink string     `gorm:"column:payment_link;not null;unique"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Status derives the product state from the active flag and expiry.
func (p Product) Status(now time.Time) enums.ProductStatus {
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return enums.ProductStatusExpired
	}
	if !p.IsActive {
		return enums.ProductStatusInactive
	}
	return enums.ProductStatusActive
}
