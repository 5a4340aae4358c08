package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerWallet is the seller's registered payout destination. A missing row
// is a hard precondition failure for payout initiation.
type SellerWallet struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID       uuid.UUID `gorm:"column:seller_id;type:uuid;not null;unique"`
	CircleWalletID string    `gorm:"column:circle_wallet_id;not null"`
	Address        string    `gorm:"column:address;not null"`
	Chain          string    `gorm:"column:chain;not null;default:'ETH'"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
