package migrations

import (
	"github.com/ksred/curio-api/internal/types"
	"gorm.io/gorm"
)

// CreateCatalog creates the products table and the bid ledger
func CreateCatalog(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Product{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&types.Bid{}); err != nil {
		return err
	}

	return nil
}
