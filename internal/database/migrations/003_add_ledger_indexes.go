package migrations

import (
	"gorm.io/gorm"
)

// AddLedgerIndexes adds the composite indexes the hot transactional queries rely on
func AddLedgerIndexes(db *gorm.DB) error {
	indexes := []string{
		// Highest valid bid per product
		`CREATE INDEX IF NOT EXISTS idx_bids_product_status_amount
		 ON bids(product_id, status, amount)`,

		// Quantity already bought by a user for a product
		`CREATE INDEX IF NOT EXISTS idx_order_items_product_order
		 ON order_items(product_id, order_id)`,

		// Buyer order history
		`CREATE INDEX IF NOT EXISTS idx_orders_user_created_at
		 ON orders(user_id, created_at)`,

		// Auction listing by deadline
		`CREATE INDEX IF NOT EXISTS idx_products_mode_end_time
		 ON products(sale_mode, auction_end_time)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
