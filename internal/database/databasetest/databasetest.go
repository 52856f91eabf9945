// Package databasetest provides migrated in-memory stores and fixtures for tests.
package databasetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ksred/curio-api/internal/config"
	"github.com/ksred/curio-api/internal/database"
	"github.com/ksred/curio-api/internal/types"
)

// New returns a migrated, isolated in-memory sqlite database
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := database.NewDatabase(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewStore wraps New in a database.Store
func NewStore(t testing.TB) *database.Store {
	t.Helper()
	return database.NewStore(New(t))
}

// Product inserts a direct-buy product priced at 100 with one unit in
// stock, after applying mutators
func Product(t testing.TB, db *gorm.DB, mutators ...func(*types.Product)) *types.Product {
	t.Helper()

	p := &types.Product{
		Title:     "Test Item",
		BasePrice: decimal.NewFromInt(100),
		Stock:     1,
		SaleMode:  types.SaleModeDirectBuy,
		Status:    types.ProductAvailable,
	}
	for _, m := range mutators {
		m(p)
	}
	if p.CurrentPrice.IsZero() {
		p.CurrentPrice = p.BasePrice
	}

	require.NoError(t, db.Create(p).Error)
	return p
}

// Auction turns a product fixture into an auction ending at end
func Auction(end time.Time) func(*types.Product) {
	return func(p *types.Product) {
		p.SaleMode = types.SaleModeAuction
		e := end
		p.AuctionEndTime = &e
	}
}

// Bid inserts a ledger entry directly, bypassing the auction engine
func Bid(t testing.TB, db *gorm.DB, productID, userID uint, amount float64, status types.BidStatus) *types.Bid {
	t.Helper()

	b := &types.Bid{
		ProductID: productID,
		UserID:    userID,
		Amount:    decimal.NewFromFloat(amount),
		Status:    status,
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

// Reload fetches the current product row
func Reload(t testing.TB, db *gorm.DB, id uint) *types.Product {
	t.Helper()

	var p types.Product
	require.NoError(t, db.First(&p, id).Error)
	return &p
}
