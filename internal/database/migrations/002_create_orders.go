package migrations

import (
	"github.com/ksred/curio-api/internal/types"
	"gorm.io/gorm"
)

// CreateOrders creates orders, their frozen line items and the checkout
// idempotency records
func CreateOrders(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Order{},
		&types.OrderItem{},
		&types.IdempotencyRecord{},
	)
}
