// Package adjudication holds the administrator operations that revise
// committed state: bid disqualification and order fulfilment.
package adjudication

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ksred/curio-api/internal/database"
	"github.com/ksred/curio-api/internal/events"
	"github.com/ksred/curio-api/internal/ledger"
	"github.com/ksred/curio-api/internal/types"
)

type Options struct {
	// RestockOnCancel credits cancelled quantities back to stock
	RestockOnCancel bool
}

// BidStatusResult reports the price a product settled on after a bid
// status change
type BidStatusResult struct {
	BidID        uint            `json:"bid_id"`
	ProductID    uint            `json:"product_id"`
	Status       types.BidStatus `json:"status"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

type Service struct {
	store   *database.Store
	events  events.Publisher
	restock bool
	logger  zerolog.Logger
}

func NewService(store *database.Store, publisher events.Publisher, opts Options) *Service {
	return &Service{
		store:   store,
		events:  publisher,
		restock: opts.RestockOnCancel,
		logger:  log.With().Str("service", "adjudication").Logger(),
	}
}

// SetBidStatus flips a bid between valid and disqualified and re-derives
// the product price from the remaining valid bids. With no valid bid left
// the price returns to the asking price.
func (s *Service) SetBidStatus(ctx context.Context, principal types.Principal, bidID uint, status types.BidStatus) (*BidStatusResult, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, types.ErrInvalidStatus.Withf("invalid bid status %q", status)
	}

	var result *BidStatusResult
	err := s.store.InTransaction(ctx, func(tx *gorm.DB) error {
		l := ledger.New(tx)

		bid, err := l.Bid(bidID)
		if err != nil {
			return err
		}
		product, err := l.ProductForUpdate(bid.ProductID)
		if err != nil {
			return err
		}
		if err := l.SetBidStatus(bid.ID, status); err != nil {
			return err
		}

		price, err := l.RepriceFromBids(product)
		if err != nil {
			return err
		}

		result = &BidStatusResult{BidID: bid.ID, ProductID: product.ID, Status: status, CurrentPrice: price}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("bid_id", bidID).
		Uint("product_id", result.ProductID).
		Str("status", string(status)).
		Str("current_price", result.CurrentPrice.StringFixed(2)).
		Uint("admin_id", principal.UserID).
		Msg("bid status changed")

	events.Emit(ctx, s.events, events.New(events.BidStatusChanged, result))
	return result, nil
}

// CancelOrder cancels an order and makes its products available again.
// Stock is credited back only when the restock policy is on.
func (s *Service) CancelOrder(ctx context.Context, principal types.Principal, orderID uint) (*types.Order, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}

	var order *types.Order
	err := s.store.InTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = orderForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == types.OrderCancelled {
			return types.ErrOrderAlreadyClosed.Withf("order %d is already cancelled", order.ID)
		}

		if err := setOrderFields(tx, order, map[string]interface{}{"status": types.OrderCancelled}); err != nil {
			return err
		}

		items := append([]types.OrderItem(nil), order.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		l := ledger.New(tx)
		for _, item := range items {
			if _, err := l.ProductForUpdate(item.ProductID); err != nil {
				if errors.Is(err, types.ErrProductNotFound) {
					s.logger.Warn().Uint("order_id", order.ID).Uint("product_id", item.ProductID).Msg("cancelled order references missing product")
					continue
				}
				return err
			}

			restock := 0
			if s.restock {
				restock = item.Quantity
			}
			if err := l.Release(item.ProductID, restock); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("order_id", order.ID).
		Bool("restocked", s.restock).
		Uint("admin_id", principal.UserID).
		Msg("order cancelled")

	events.Emit(ctx, s.events, events.New(events.OrderCancelled, order))
	return order, nil
}

// ShipOrder marks an order shipped with an optional tracking id. It has no
// inventory effects.
func (s *Service) ShipOrder(ctx context.Context, principal types.Principal, orderID uint, trackingID *string) (*types.Order, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}
	trackingID = normalizeTracking(trackingID)

	var order *types.Order
	err := s.store.InTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = orderForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == types.OrderCancelled {
			return types.ErrOrderCancelled.Withf("order %d is cancelled and cannot ship", order.ID)
		}

		return setOrderFields(tx, order, map[string]interface{}{
			"status":      types.OrderShipped,
			"tracking_id": trackingID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("order_id", order.ID).
		Uint("admin_id", principal.UserID).
		Msg("order shipped")

	events.Emit(ctx, s.events, events.New(events.OrderShipped, order))
	return order, nil
}

// SetOrderStatus routes a generic status change to the operation that
// owns its side effects
func (s *Service) SetOrderStatus(ctx context.Context, principal types.Principal, orderID uint, status types.OrderStatus, trackingID *string) (*types.Order, error) {
	if err := principal.RequireAdmin(); err != nil {
		return nil, err
	}

	switch status {
	case types.OrderCancelled:
		return s.CancelOrder(ctx, principal, orderID)
	case types.OrderShipped:
		return s.ShipOrder(ctx, principal, orderID, trackingID)
	case types.OrderPending, types.OrderDelivered:
	default:
		return nil, types.ErrInvalidStatus.Withf("invalid order status %q", status)
	}

	var order *types.Order
	err := s.store.InTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = orderForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == types.OrderCancelled {
			return types.ErrOrderCancelled.Withf("order %d is cancelled", order.ID)
		}
		return setOrderFields(tx, order, map[string]interface{}{"status": status})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("order_id", order.ID).
		Str("status", string(status)).
		Uint("admin_id", principal.UserID).
		Msg("order status changed")

	events.Emit(ctx, s.events, events.New(events.OrderStatusSet, order))
	return order, nil
}

func orderForUpdate(tx *gorm.DB, id uint) (*types.Order, error) {
	var order types.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order %d: %w", id, err)
	}

	if err := tx.Where("order_id = ?", order.ID).Order("id ASC").Find(&order.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items of order %d: %w", id, err)
	}
	return &order, nil
}

// setOrderFields writes updates and mirrors them onto order
func setOrderFields(tx *gorm.DB, order *types.Order, updates map[string]interface{}) error {
	if err := tx.Model(&types.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update order %d: %w", order.ID, err)
	}
	if status, ok := updates["status"].(types.OrderStatus); ok {
		order.Status = status
	}
	if tracking, ok := updates["tracking_id"]; ok {
		order.TrackingID, _ = tracking.(*string)
	}
	return nil
}

func normalizeTracking(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
