package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleMode determines how a product can change hands
type SaleMode string

const (
	SaleModeDirectBuy SaleMode = "direct_buy"
	SaleModeAuction   SaleMode = "auction"
	SaleModeShowcase  SaleMode = "showcase" // display only, never purchasable
)

// Valid reports whether m is one of the known sale modes
func (m SaleMode) Valid() bool {
	switch m {
	case SaleModeDirectBuy, SaleModeAuction, SaleModeShowcase:
		return true
	}
	return false
}

type ProductStatus string

const (
	ProductAvailable ProductStatus = "available"
	ProductSold      ProductStatus = "sold"
)

// Product is the single source of truth for current price and available stock.
// Status is advisory; Stock is authoritative.
type Product struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Title          string          `gorm:"size:255;not null" json:"title"`
	Description    string          `json:"description,omitempty"`
	Category       string          `gorm:"size:64;index" json:"category,omitempty"`
	BasePrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	CurrentPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"current_price"`
	ShippingCost   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"shipping_cost"`
	Stock          int             `gorm:"not null" json:"stock"`
	MaxPerUser     *int            `json:"max_per_user,omitempty"`
	SaleMode       SaleMode        `gorm:"size:16;not null;default:direct_buy;index" json:"sale_mode"`
	AuctionEndTime *time.Time      `json:"auction_end_time,omitempty"`
	Status         ProductStatus   `gorm:"size:16;not null;default:available" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Price returns what a buyer currently owes for one unit.
// CurrentPrice tracks the highest valid bid for auctions; when it has never
// been set the immutable asking price applies.
func (p *Product) Price() decimal.Decimal {
	if p.CurrentPrice.IsZero() {
		return p.BasePrice
	}
	return p.CurrentPrice
}

// IsAuction reports whether the product is sold by bidding
func (p *Product) IsAuction() bool {
	return p.SaleMode == SaleModeAuction
}

// AuctionEnded reports whether bidding is closed at now. A missing deadline
// counts as closed; an auction ends at its deadline, not after it.
func (p *Product) AuctionEnded(now time.Time) bool {
	if p.AuctionEndTime == nil {
		return true
	}
	return !now.Before(*p.AuctionEndTime)
}

type BidStatus string

const (
	BidValid        BidStatus = "valid"
	BidDisqualified BidStatus = "disqualified"
)

// Valid reports whether s is an assignable bid status
func (s BidStatus) Valid() bool {
	return s == BidValid || s == BidDisqualified
}

// Bid is an append-only ledger entry; only Status ever changes after insert.
type Bid struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status    BidStatus       `gorm:"size:16;not null;default:valid" json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
