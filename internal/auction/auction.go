package auction

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/curio-api/internal/database"
	"github.com/ksred/curio-api/internal/events"
	"github.com/ksred/curio-api/internal/ledger"
	"github.com/ksred/curio-api/internal/types"
)

// BidResult is an accepted bid together with the price it set
type BidResult struct {
	Bid          types.Bid       `json:"bid"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// Service accepts bids against auction products
type Service struct {
	store  *database.Store
	events events.Publisher
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(store *database.Store, publisher events.Publisher) *Service {
	return &Service{
		store:  store,
		events: publisher,
		now:    time.Now,
		logger: log.With().Str("service", "auction").Logger(),
	}
}

// WithClock replaces the time source used for deadline checks
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PlaceBid records a bid that strictly beats the current price of an open
// auction and makes it the new current price. Nothing is written on failure.
func (s *Service) PlaceBid(ctx context.Context, principal types.Principal, productID uint, amount decimal.Decimal) (*BidResult, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, types.ErrInvalidAmount
	}

	var result *BidResult
	err := s.store.InTransaction(ctx, func(tx *gorm.DB) error {
		l := ledger.New(tx)

		product, err := l.ProductForUpdate(productID)
		if err != nil {
			return err
		}
		if !product.IsAuction() {
			return types.ErrNotAuction.Withf("%s is not up for auction", product.Title)
		}
		if product.AuctionEnded(s.now()) {
			return types.ErrAuctionEnded.Withf("auction for %s has ended", product.Title)
		}

		current := product.Price()
		if !amount.GreaterThan(current) {
			return types.ErrBidTooLow.Withf("bid must be higher than the current price of %s for %s",
				current.StringFixed(2), product.Title)
		}

		bid := &types.Bid{
			ProductID: product.ID,
			UserID:    principal.UserID,
			Amount:    amount,
			Status:    types.BidValid,
		}
		if err := l.RecordBid(bid); err != nil {
			return err
		}
		if err := l.SetCurrentPrice(product.ID, amount); err != nil {
			return err
		}

		result = &BidResult{Bid: *bid, CurrentPrice: amount}
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Uint("product_id", productID).Uint("user_id", principal.UserID).Msg("bid rejected")
		return nil, err
	}

	s.logger.Info().
		Uint("bid_id", result.Bid.ID).
		Uint("product_id", productID).
		Uint("user_id", principal.UserID).
		Str("amount", amount.StringFixed(2)).
		Msg("bid accepted")

	events.Emit(ctx, s.events, events.New(events.BidPlaced, result))
	return result, nil
}

// ListBids returns a product's bid history, newest first
func (s *Service) ListBids(ctx context.Context, productID uint) ([]types.Bid, error) {
	l := ledger.New(s.store.DB().WithContext(ctx))

	if _, err := l.Product(productID); err != nil {
		return nil, err
	}
	return l.Bids(productID)
}
