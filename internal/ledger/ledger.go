// Package ledger is the transaction-scoped view of inventory, pricing and
// the bid ledger. A Ledger wraps the tx handed out by database.Store and is
// never used outside that transaction.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ksred/curio-api/internal/types"
)

type Ledger struct {
	tx *gorm.DB
}

func New(tx *gorm.DB) *Ledger {
	return &Ledger{tx: tx}
}

// ProductForUpdate reads a product and holds its row lock until the
// transaction ends. On sqlite the lock clause is dropped and the
// single-connection pool provides the serialization.
func (l *Ledger) ProductForUpdate(id uint) (*types.Product, error) {
	var p types.Product
	err := l.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrProductNotFound.Withf("product %d not found", id)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
	}
	return &p, nil
}

// Product reads a product without locking it
func (l *Ledger) Product(id uint) (*types.Product, error) {
	var p types.Product
	if err := l.tx.Where("id = ?", id).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrProductNotFound.Withf("product %d not found", id)
		}
		return nil, fmt.Errorf("failed to read product %d: %w", id, err)
	}
	return &p, nil
}

// Bid reads a single ledger entry
func (l *Ledger) Bid(id uint) (*types.Bid, error) {
	var b types.Bid
	if err := l.tx.Where("id = ?", id).Take(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to read bid %d: %w", id, err)
	}
	return &b, nil
}

// HighestValidBid returns the winning bid for a product, or nil when no
// valid bid exists. Equal amounts go to the earliest bid.
func (l *Ledger) HighestValidBid(productID uint) (*types.Bid, error) {
	var b types.Bid
	err := l.tx.Where("product_id = ? AND status = ?", productID, types.BidValid).
		Order("amount DESC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(1).
		Take(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read highest bid for product %d: %w", productID, err)
	}
	return &b, nil
}

// Bids lists a product's ledger, newest first
func (l *Ledger) Bids(productID uint) ([]types.Bid, error) {
	var bids []types.Bid
	err := l.tx.Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bids for product %d: %w", productID, err)
	}
	return bids, nil
}

func (l *Ledger) RecordBid(b *types.Bid) error {
	if err := l.tx.Create(b).Error; err != nil {
		return fmt.Errorf("failed to record bid: %w", err)
	}
	return nil
}

func (l *Ledger) SetBidStatus(id uint, status types.BidStatus) error {
	res := l.tx.Model(&types.Bid{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update bid %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return types.ErrBidNotFound
	}
	return nil
}

func (l *Ledger) SetCurrentPrice(productID uint, price decimal.Decimal) error {
	err := l.tx.Model(&types.Product{}).
		Where("id = ?", productID).
		Update("current_price", price).Error
	if err != nil {
		return fmt.Errorf("failed to set price of product %d: %w", productID, err)
	}
	return nil
}

// RepriceFromBids re-derives the current price of p from the bid ledger:
// the highest valid bid, or the asking price once no valid bid remains.
func (l *Ledger) RepriceFromBids(p *types.Product) (decimal.Decimal, error) {
	top, err := l.HighestValidBid(p.ID)
	if err != nil {
		return decimal.Zero, err
	}

	price := p.BasePrice
	if top != nil {
		price = top.Amount
	}
	if err := l.SetCurrentPrice(p.ID, price); err != nil {
		return decimal.Zero, err
	}
	p.CurrentPrice = price
	return price, nil
}

// DecrementStock takes qty units from a locked product and marks it sold
// once nothing is left
func (l *Ledger) DecrementStock(p *types.Product, qty int) error {
	remaining := p.Stock - qty
	updates := map[string]interface{}{"stock": remaining}
	if remaining <= 0 {
		updates["status"] = types.ProductSold
	}

	if err := l.tx.Model(&types.Product{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to decrement stock of product %d: %w", p.ID, err)
	}

	p.Stock = remaining
	if remaining <= 0 {
		p.Status = types.ProductSold
	}
	return nil
}

// Release makes a product available again, crediting qty units back to
// stock when qty is positive
func (l *Ledger) Release(productID uint, qty int) error {
	updates := map[string]interface{}{"status": types.ProductAvailable}
	if qty > 0 {
		updates["stock"] = gorm.Expr("stock + ?", qty)
	}

	if err := l.tx.Model(&types.Product{}).Where("id = ?", productID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to release product %d: %w", productID, err)
	}
	return nil
}

// PurchasedQuantity sums what a user has already bought of a product
// across orders that were not cancelled
func (l *Ledger) PurchasedQuantity(userID, productID uint) (int, error) {
	var total int64
	err := l.tx.Model(&types.OrderItem{}).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND order_items.product_id = ? AND orders.status <> ?",
			userID, productID, types.OrderCancelled).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum purchases of product %d: %w", productID, err)
	}
	return int(total), nil
}
