package database

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/curio-api/internal/types"
)

// SeedDemoCatalog inserts a small demo catalog into an empty products table
func SeedDemoCatalog(db *gorm.DB) error {
	var count int64
	if err := db.Model(&types.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	auctionEnd := time.Now().UTC().Add(72 * time.Hour)
	limit := 2
	products := []types.Product{
		{
			Title:          "Ancient Roman Coin",
			Description:    "Silver denarius from the 2nd century AD.",
			Category:       "Coins",
			BasePrice:      decimal.NewFromInt(150),
			ShippingCost:   decimal.NewFromInt(5),
			Stock:          1,
			SaleMode:       types.SaleModeAuction,
			AuctionEndTime: &auctionEnd,
		},
		{
			Title:        "Penny Black Stamp",
			Description:  "The first adhesive postage stamp used in a public postal system.",
			Category:     "Stamps",
			BasePrice:    decimal.NewFromInt(1200),
			ShippingCost: decimal.NewFromInt(10),
			Stock:        1,
			SaleMode:     types.SaleModeDirectBuy,
		},
		{
			Title:        "Mughal Mohur Replica Set",
			Category:     "Coins",
			BasePrice:    decimal.NewFromInt(45),
			ShippingCost: decimal.RequireFromString("2.50"),
			Stock:        20,
			MaxPerUser:   &limit,
			SaleMode:     types.SaleModeDirectBuy,
		},
		{
			Title:     "Victorian Pocket Watch",
			Category:  "Antiques",
			BasePrice: decimal.NewFromInt(800),
			Stock:     1,
			SaleMode:  types.SaleModeShowcase,
		},
	}

	for i := range products {
		products[i].CurrentPrice = products[i].BasePrice
		products[i].Status = types.ProductAvailable
	}

	if err := db.Create(&products).Error; err != nil {
		return err
	}

	log.Info().Int("products", len(products)).Msg("seeded demo catalog")
	return nil
}
