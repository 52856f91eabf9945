package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
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

const maxIdempotencyKeyLen = 128

// MaxLineQuantity bounds the units of one product bought in a single checkout
const MaxLineQuantity = 10000

// LineItem is one cart entry. Price is what the buyer saw and is checked
// against the live price.
type LineItem struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	// Title is the name the cart showed; it identifies the item when the
	// product no longer exists
	Title string `json:"title,omitempty"`
}

// productLines groups the cart lines that buy the same product. Quantity
// is their sum and is what stock and limits are checked against.
type productLines struct {
	ProductID uint
	Quantity  int
	Lines     []LineItem
}

type Request struct {
	Items           []LineItem `json:"items"`
	ShippingAddress string     `json:"shipping_address"`
	PaymentMethod   string     `json:"payment_method"`
	IdempotencyKey  string     `json:"-"`
}

type Result struct {
	OrderID     uint            `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Order       *types.Order    `json:"order"`
	// Replayed is set when the order was created by an earlier request
	// carrying the same idempotency key
	Replayed bool `json:"replayed"`
}

type Options struct {
	PriceTolerance decimal.Decimal
	IdempotencyTTL time.Duration
}

// Service turns carts into orders
type Service struct {
	store     *database.Store
	events    events.Publisher
	tolerance decimal.Decimal
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(store *database.Store, publisher events.Publisher, opts Options) *Service {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &Service{
		store:     store,
		events:    publisher,
		tolerance: opts.PriceTolerance,
		ttl:       opts.IdempotencyTTL,
		now:       time.Now,
		logger:    log.With().Str("service", "checkout").Logger(),
	}
}

// WithClock replaces the time source used for deadline and expiry checks
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Checkout validates every line against live state and commits the order
// together with the stock decrements. Either all lines are bought or none.
func (s *Service) Checkout(ctx context.Context, principal types.Principal, req Request) (*Result, error) {
	groups, err := normalize(req)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, types.ErrInvalidIdemKey
	}
	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = types.DefaultPaymentMethod
	}

	var result *Result
	err = s.store.InTransaction(ctx, func(tx *gorm.DB) error {
		if key != "" {
			existing, err := s.replay(tx, principal, key)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &Result{OrderID: existing.ID, TotalAmount: existing.TotalAmount, Order: existing, Replayed: true}
				return nil
			}
		}

		l := ledger.New(tx)
		order := &types.Order{
			UserID:          principal.UserID,
			Status:          types.OrderPending,
			ShippingAddress: strings.TrimSpace(req.ShippingAddress),
			PaymentMethod:   paymentMethod,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		total := decimal.Zero
		for _, group := range groups {
			product, err := l.ProductForUpdate(group.ProductID)
			if err != nil {
				return missingProduct(err, group)
			}
			if err := s.checkLine(l, principal, product, group); err != nil {
				return err
			}

			// one frozen item, and one shipping charge, per submitted line
			for _, line := range group.Lines {
				item := types.OrderItem{
					ProductID:    product.ID,
					Title:        product.Title,
					Quantity:     line.Quantity,
					Price:        product.Price(),
					ShippingCost: product.ShippingCost,
				}
				total = total.Add(item.LineTotal())
				order.Items = append(order.Items, item)
			}

			if err := l.DecrementStock(product, group.Quantity); err != nil {
				return err
			}
		}
		order.TotalAmount = total

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if key != "" {
			record := types.IdempotencyRecord{
				IdempotencyKey: key,
				UserID:         principal.UserID,
				ResourceID:     order.ID,
				ResourceType:   "order",
				ExpiresAt:      s.now().UTC().Add(s.ttl),
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to record idempotency key: %w", err)
			}
		}

		result = &Result{OrderID: order.ID, TotalAmount: order.TotalAmount, Order: order}
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Uint("user_id", principal.UserID).Msg("checkout rejected")
		return nil, err
	}

	if result.Replayed {
		s.logger.Info().Uint("order_id", result.OrderID).Str("idempotency_key", key).Msg("checkout replayed")
		return result, nil
	}

	s.logger.Info().
		Uint("order_id", result.OrderID).
		Uint("user_id", principal.UserID).
		Int("items", len(result.Order.Items)).
		Str("total", result.TotalAmount.StringFixed(2)).
		Msg("order created")

	events.Emit(ctx, s.events, events.New(events.OrderCreated, result.Order))
	return result, nil
}

// missingProduct names a vanished product by the title the cart carried
func missingProduct(err error, group productLines) error {
	if !errors.Is(err, types.ErrProductNotFound) {
		return err
	}
	for _, line := range group.Lines {
		if title := strings.TrimSpace(line.Title); title != "" {
			return types.ErrProductNotFound.Withf("%s is no longer available", title)
		}
	}
	return err
}

// checkLine applies the purchase rules to one locked product, in order
func (s *Service) checkLine(l *ledger.Ledger, principal types.Principal, p *types.Product, group productLines) error {
	if p.SaleMode == types.SaleModeShowcase {
		return types.ErrNotPurchasable.Withf("%s is not for sale", p.Title)
	}

	// Status alone is not trusted: stock decides whether a sold item is
	// really gone
	if p.Status == types.ProductSold && p.Stock <= 0 {
		return types.ErrAlreadySold.Withf("%s is already sold", p.Title)
	}

	if p.Stock < group.Quantity {
		return types.ErrInsufficientStock.Withf("insufficient stock for %s: %d available", p.Title, p.Stock)
	}

	if p.MaxPerUser != nil {
		bought, err := l.PurchasedQuantity(principal.UserID, p.ID)
		if err != nil {
			return err
		}
		if bought+group.Quantity > *p.MaxPerUser {
			return types.ErrPurchaseLimit.Withf("purchase limit for %s is %d per customer", p.Title, *p.MaxPerUser)
		}
	}

	for _, line := range group.Lines {
		if p.Price().Sub(line.Price).Abs().GreaterThan(s.tolerance) {
			return types.ErrPriceMismatch.Withf("price mismatch for %s: now %s, please refresh cart",
				p.Title, p.Price().StringFixed(2))
		}
	}

	if p.IsAuction() {
		if !p.AuctionEnded(s.now()) {
			return types.ErrAuctionNotEnded.Withf("auction for %s has not ended yet", p.Title)
		}
		top, err := l.HighestValidBid(p.ID)
		if err != nil {
			return err
		}
		if top == nil || top.UserID != principal.UserID {
			return types.ErrNotAuctionWinner.Withf("you are not the winner of the auction for %s", p.Title)
		}
	}

	return nil
}

// replay returns the order recorded under key, or nil when the key is
// unused or expired
func (s *Service) replay(tx *gorm.DB, principal types.Principal, key string) (*types.Order, error) {
	var record types.IdempotencyRecord
	err := tx.Where("idempotency_key = ?", key).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}

	if !record.ExpiresAt.After(s.now()) {
		if err := tx.Delete(&record).Error; err != nil {
			return nil, fmt.Errorf("failed to drop expired idempotency record: %w", err)
		}
		return nil, nil
	}
	if record.UserID != principal.UserID {
		return nil, types.ErrIdempotencyKeyReuse
	}

	var order types.Order
	if err := tx.Preload("Items").Where("id = ?", record.ResourceID).Take(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to load order %d for idempotency key: %w", record.ResourceID, err)
	}
	return &order, nil
}

// normalize validates the request shape and groups lines by product.
// Groups come back in product id order so concurrent checkouts lock rows in
// the same sequence.
func normalize(req Request) ([]productLines, error) {
	if len(req.Items) == 0 {
		return nil, types.ErrEmptyCart
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, types.ErrMissingAddress
	}

	grouped := make(map[uint]*productLines, len(req.Items))
	var groups []*productLines
	for _, item := range req.Items {
		if item.Quantity < 1 || item.Quantity > MaxLineQuantity {
			return nil, types.ErrInvalidQuantity
		}
		g, ok := grouped[item.ProductID]
		if !ok {
			g = &productLines{ProductID: item.ProductID}
			grouped[item.ProductID] = g
			groups = append(groups, g)
		}
		// both operands are bounded, so the sum cannot wrap
		g.Quantity += item.Quantity
		if g.Quantity > MaxLineQuantity {
			return nil, types.ErrInvalidQuantity.Withf("at most %d units of product %d per order", MaxLineQuantity, item.ProductID)
		}
		g.Lines = append(g.Lines, item)
	}

	out := make([]productLines, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// GetOrder returns an order visible to principal. Other buyers' orders
// are reported as not found.
func (s *Service) GetOrder(ctx context.Context, principal types.Principal, orderID uint) (*types.Order, error) {
	var order types.Order
	err := s.store.DB().WithContext(ctx).Preload("Items").Where("id = ?", orderID).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, types.ErrStorage.Wrap(err)
	}

	if order.UserID != principal.UserID && !principal.IsAdmin() {
		return nil, types.ErrOrderNotFound
	}
	return &order, nil
}

// ListOrders returns the caller's orders, newest first
func (s *Service) ListOrders(ctx context.Context, principal types.Principal) ([]types.Order, error) {
	var orders []types.Order
	err := s.store.DB().WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", principal.UserID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, types.ErrStorage.Wrap(err)
	}
	return orders, nil
}
