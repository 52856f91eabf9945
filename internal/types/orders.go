package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// DefaultPaymentMethod is used when checkout does not name one
const DefaultPaymentMethod = "COD"

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status          OrderStatus     `gorm:"size:16;not null;default:pending;index" json:"status"`
	ShippingAddress string          `gorm:"not null" json:"shipping_address"`
	PaymentMethod   string          `gorm:"size:32;not null" json:"payment_method"`
	TrackingID      *string         `gorm:"size:128" json:"tracking_id,omitempty"`
	IdempotencyKey  *string         `gorm:"size:128" json:"-"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem freezes the unit price and shipping charged at purchase time so
// later price changes never rewrite history.
type OrderItem struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	OrderID      uint            `gorm:"not null;index" json:"order_id"`
	ProductID    uint            `gorm:"not null;index" json:"product_id"`
	Title        string          `gorm:"size:255" json:"title"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	ShippingCost decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"shipping_cost"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LineTotal is unit price times quantity plus the line's shipping
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Add(i.ShippingCost)
}

type IdempotencyRecord struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	IdempotencyKey string    `gorm:"size:128;uniqueIndex;not null" json:"idempotency_key"`
	UserID         uint      `gorm:"not null" json:"user_id"`
	ResourceID     uint      `json:"resource_id"`
	ResourceType   string    `gorm:"size:32" json:"resource_type"`
	ExpiresAt      time.Time `gorm:"index" json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}
