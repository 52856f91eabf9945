package checkout

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ksred/curio-api/internal/database"
	"github.com/ksred/curio-api/internal/database/databasetest"
	"github.com/ksred/curio-api/internal/events"
	"github.com/ksred/curio-api/internal/types"
)

var (
	alice = types.Principal{UserID: 1, Role: types.RoleUser}
	bob   = types.Principal{UserID: 2, Role: types.RoleUser}
	admin = types.Principal{UserID: 99, Role: types.RoleAdmin}
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *events.Recorder) {
	t.Helper()
	db := databasetest.New(t)
	rec := &events.Recorder{}
	svc := NewService(database.NewStore(db), rec, Options{
		PriceTolerance: decimal.RequireFromString("0.1"),
		IdempotencyTTL: time.Hour,
	})
	return svc, db, rec
}

func cart(lines ...LineItem) Request {
	return Request{Items: lines, ShippingAddress: "12 Numismatist Lane"}
}

func line(p *types.Product, qty int) LineItem {
	return LineItem{ProductID: p.ID, Quantity: qty, Price: p.Price()}
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&types.Order{}).Count(&n).Error)
	return n
}

func TestCheckout_DirectBuy(t *testing.T) {
	svc, db, rec := newTestService(t)
	p := databasetest.Product(t, db, func(p *types.Product) {
		p.ShippingCost = decimal.NewFromInt(10)
	})

	res, err := svc.Checkout(context.Background(), alice, cart(line(p, 1)))
	require.NoError(t, err)
	require.NotZero(t, res.OrderID)
	require.False(t, res.Replayed)
	require.True(t, res.TotalAmount.Equal(decimal.NewFromInt(110)), "total %s", res.TotalAmount)

	got := databasetest.Reload(t, db, p.ID)
	require.Equal(t, 0, got.Stock)
	require.Equal(t, types.ProductSold, got.Status)

	order, err := svc.GetOrder(context.Background(), alice, res.OrderID)
	require.NoError(t, err)
	require.Equal(t, types.OrderPending, order.Status)
	require.Equal(t, types.DefaultPaymentMethod, order.PaymentMethod)
	require.Len(t, order.Items, 1)
	require.Equal(t, p.Title, order.Items[0].Title)

	require.Equal(t, []string{events.OrderCreated}, rec.Types())
}

func TestCheckout_TotalIsSumOfFrozenItems(t *testing.T) {
	svc, db, _ := newTestService(t)
	replica := databasetest.Product(t, db, func(p *types.Product) {
		p.Title = "Replica Set"
		p.BasePrice = decimal.NewFromInt(45)
		p.ShippingCost = decimal.RequireFromString("2.50")
		p.Stock = 10
	})
	stamp := databasetest.Product(t, db, func(p *types.Product) {
		p.Title = "Penny Black"
		p.BasePrice = decimal.NewFromInt(1200)
		p.ShippingCost = decimal.NewFromInt(10)
	})

	res, err := svc.Checkout(context.Background(), alice, cart(line(replica, 2), line(stamp, 1)))
	require.NoError(t, err)
	require.True(t, res.TotalAmount.Equal(decimal.RequireFromString("1302.50")), "total %s", res.TotalAmount)

	// Later price changes must not rewrite the order
	require.NoError(t, db.Model(&types.Product{}).Where("id = ?", replica.ID).
		Update("current_price", decimal.NewFromInt(60)).Error)

	order, err := svc.GetOrder(context.Background(), alice, res.OrderID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.LineTotal())
	}
	require.True(t, sum.Equal(order.TotalAmount), "items %s, order %s", sum, order.TotalAmount)
	require.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(45)))
	require.Equal(t, 8, databasetest.Reload(t, db, replica.ID).Stock)
}

func TestCheckout_Validation(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db)

	tests := []struct {
		name    string
		req     Request
		wantErr *types.Error
	}{
		{name: "empty cart", req: Request{ShippingAddress: "x"}, wantErr: types.ErrEmptyCart},
		{name: "blank address", req: Request{Items: []LineItem{line(p, 1)}, ShippingAddress: "   "}, wantErr: types.ErrMissingAddress},
		{name: "zero quantity", req: cart(line(p, 0)), wantErr: types.ErrInvalidQuantity},
		{name: "negative quantity", req: cart(line(p, -2)), wantErr: types.ErrInvalidQuantity},
		{name: "quantity above line cap", req: cart(line(p, MaxLineQuantity+1)), wantErr: types.ErrInvalidQuantity},
		{name: "repeated lines above cap", req: cart(line(p, MaxLineQuantity), line(p, 1)), wantErr: types.ErrInvalidQuantity},
		{name: "repeated lines that would wrap", req: cart(line(p, math.MaxInt), line(p, math.MaxInt)), wantErr: types.ErrInvalidQuantity},
		{
			name:    "oversized idempotency key",
			req:     Request{Items: []LineItem{line(p, 1)}, ShippingAddress: "x", IdempotencyKey: strings.Repeat("k", 129)},
			wantErr: types.ErrInvalidIdemKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Checkout(context.Background(), alice, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, types.KindValidation, types.KindOf(err))
		})
	}
	require.Zero(t, countOrders(t, db))
}

func TestCheckout_Conflicts(t *testing.T) {
	limit := 2

	tests := []struct {
		name    string
		product func(*types.Product)
		qty     int
		price   *decimal.Decimal
		wantErr *types.Error
	}{
		{
			name:    "showcase",
			product: func(p *types.Product) { p.SaleMode = types.SaleModeShowcase },
			qty:     1,
			wantErr: types.ErrNotPurchasable,
		},
		{
			name:    "sold with no stock",
			product: func(p *types.Product) { p.Status = types.ProductSold; p.Stock = 0 },
			qty:     1,
			wantErr: types.ErrAlreadySold,
		},
		{
			name:    "available with no stock",
			product: func(p *types.Product) { p.Stock = 0 },
			qty:     1,
			wantErr: types.ErrInsufficientStock,
		},
		{
			name:    "more than stock",
			product: func(p *types.Product) { p.Stock = 2 },
			qty:     3,
			wantErr: types.ErrInsufficientStock,
		},
		{
			name:    "over purchase limit",
			product: func(p *types.Product) { p.Stock = 5; p.MaxPerUser = &limit },
			qty:     3,
			wantErr: types.ErrPurchaseLimit,
		},
		{
			name:    "stale price",
			product: func(p *types.Product) {},
			qty:     1,
			price:   decimalPtr("100.20"),
			wantErr: types.ErrPriceMismatch,
		},
		{
			name:    "auction still running",
			product: databasetest.Auction(time.Now().Add(time.Hour)),
			qty:     1,
			wantErr: types.ErrAuctionNotEnded,
		},
		{
			name:    "ended auction without bids",
			product: databasetest.Auction(time.Now().Add(-time.Hour)),
			qty:     1,
			wantErr: types.ErrNotAuctionWinner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, rec := newTestService(t)
			p := databasetest.Product(t, db, func(p *types.Product) { p.Title = "Silver Denarius" }, tt.product)

			l := line(p, tt.qty)
			if tt.price != nil {
				l.Price = *tt.price
			}

			_, err := svc.Checkout(context.Background(), alice, cart(l))
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, types.KindConflict, types.KindOf(err))
			require.Contains(t, err.Error(), "Silver Denarius")

			require.Zero(t, countOrders(t, db))
			require.Equal(t, p.Stock, databasetest.Reload(t, db, p.ID).Stock)
			require.Empty(t, rec.Types())
		})
	}
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCheckout_PriceTolerance(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db, func(p *types.Product) { p.Stock = 3 })

	for _, price := range []string{"100.05", "99.90", "100.10"} {
		_, err := svc.Checkout(context.Background(), alice, cart(LineItem{ProductID: p.ID, Quantity: 1, Price: decimal.RequireFromString(price)}))
		require.NoError(t, err, "cart price %s", price)
	}
}

func TestCheckout_SelfHealingSoldStatus(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db, func(p *types.Product) {
		p.Status = types.ProductSold
		p.Stock = 2
	})

	_, err := svc.Checkout(context.Background(), alice, cart(line(p, 1)))
	require.NoError(t, err)
	require.Equal(t, 1, databasetest.Reload(t, db, p.ID).Stock)
}

func TestCheckout_FailureOnLaterLineRollsBackEverything(t *testing.T) {
	svc, db, _ := newTestService(t)
	first := databasetest.Product(t, db, func(p *types.Product) { p.Stock = 5 })
	second := databasetest.Product(t, db, func(p *types.Product) { p.Title = "Penny Black"; p.Stock = 1 })

	_, err := svc.Checkout(context.Background(), alice, cart(line(first, 2), line(second, 2)))
	require.ErrorIs(t, err, types.ErrInsufficientStock)
	require.Contains(t, err.Error(), "Penny Black")

	require.Equal(t, 5, databasetest.Reload(t, db, first.ID).Stock)
	require.Equal(t, 1, databasetest.Reload(t, db, second.ID).Stock)
	require.Zero(t, countOrders(t, db))

	_, err = svc.Checkout(context.Background(), alice, cart(line(first, 1), LineItem{ProductID: 4040, Quantity: 1}))
	require.ErrorIs(t, err, types.ErrProductNotFound)
	require.Equal(t, 5, databasetest.Reload(t, db, first.ID).Stock)
}

func TestCheckout_DuplicateLinesShareStock(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db, func(p *types.Product) {
		p.Stock = 2
		p.ShippingCost = decimal.NewFromInt(5)
	})

	res, err := svc.Checkout(context.Background(), alice, cart(line(p, 1), line(p, 1)))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 2, "one frozen item per submitted line")
	for _, item := range res.Order.Items {
		require.Equal(t, 1, item.Quantity)
		require.True(t, item.ShippingCost.Equal(decimal.NewFromInt(5)))
	}
	require.True(t, res.TotalAmount.Equal(decimal.NewFromInt(210)), "total %s", res.TotalAmount)
	require.Equal(t, 0, databasetest.Reload(t, db, p.ID).Stock)

	// stock is checked against the combined quantity
	p2 := databasetest.Product(t, db, func(p *types.Product) { p.Stock = 2 })
	_, err = svc.Checkout(context.Background(), alice, cart(line(p2, 2), line(p2, 1)))
	require.ErrorIs(t, err, types.ErrInsufficientStock)
	require.Equal(t, 2, databasetest.Reload(t, db, p2.ID).Stock)
}

func TestCheckout_OverflowingQuantityNeverTouchesStock(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db)

	_, err := svc.Checkout(context.Background(), alice, cart(line(p, math.MaxInt), line(p, math.MaxInt)))
	require.ErrorIs(t, err, types.ErrInvalidQuantity)

	got := databasetest.Reload(t, db, p.ID)
	require.Equal(t, 1, got.Stock)
	require.Equal(t, types.ProductAvailable, got.Status)
	require.Zero(t, countOrders(t, db))
}

func TestCheckout_MissingProductNamedByCartTitle(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Checkout(context.Background(), alice, cart(LineItem{ProductID: 4040, Quantity: 1, Title: "Gold Sovereign"}))
	require.ErrorIs(t, err, types.ErrProductNotFound)
	require.Contains(t, err.Error(), "Gold Sovereign")

	_, err = svc.Checkout(context.Background(), alice, cart(LineItem{ProductID: 4040, Quantity: 1}))
	require.ErrorIs(t, err, types.ErrProductNotFound)
	require.Contains(t, err.Error(), "4040")
}

func TestCheckout_PurchaseLimitSpansOrders(t *testing.T) {
	svc, db, _ := newTestService(t)
	limit := 2
	p := databasetest.Product(t, db, func(p *types.Product) { p.Stock = 10; p.MaxPerUser = &limit })
	ctx := context.Background()

	first, err := svc.Checkout(ctx, alice, cart(line(p, 2)))
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, alice, cart(line(p, 1)))
	require.ErrorIs(t, err, types.ErrPurchaseLimit)

	// Other buyers have their own allowance
	_, err = svc.Checkout(ctx, bob, cart(line(p, 2)))
	require.NoError(t, err)

	// Cancelled orders no longer count
	require.NoError(t, db.Model(&types.Order{}).Where("id = ?", first.OrderID).
		Update("status", types.OrderCancelled).Error)
	_, err = svc.Checkout(ctx, alice, cart(line(p, 1)))
	require.NoError(t, err)
}

func TestCheckout_ConcurrentBuyersOfLastUnit(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db)

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := types.Principal{UserID: uint(i + 1), Role: types.RoleUser}
			_, err := svc.Checkout(context.Background(), buyer, cart(line(p, 1)))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Len(t, failures, buyers-1)
	for _, err := range failures {
		require.ErrorIs(t, err, types.ErrInsufficientStock)
	}

	got := databasetest.Reload(t, db, p.ID)
	require.Equal(t, 0, got.Stock)
	require.Equal(t, types.ProductSold, got.Status)
	require.Equal(t, int64(1), countOrders(t, db))
}

func TestCheckout_AuctionWinner(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db,
		databasetest.Auction(time.Now().Add(-time.Minute)),
		func(p *types.Product) {
			p.BasePrice = decimal.NewFromInt(50)
			p.CurrentPrice = decimal.NewFromInt(200)
		},
	)
	databasetest.Bid(t, db, p.ID, bob.UserID, 120, types.BidValid)
	databasetest.Bid(t, db, p.ID, alice.UserID, 200, types.BidValid)

	_, err := svc.Checkout(context.Background(), bob, cart(line(p, 1)))
	require.ErrorIs(t, err, types.ErrNotAuctionWinner)

	res, err := svc.Checkout(context.Background(), alice, cart(line(p, 1)))
	require.NoError(t, err)
	require.True(t, res.Order.Items[0].Price.Equal(decimal.NewFromInt(200)))
}

func TestCheckout_AuctionDeadlineIsExclusive(t *testing.T) {
	svc, db, _ := newTestService(t)
	end := time.Date(2030, 6, 1, 18, 0, 0, 0, time.UTC)
	p := databasetest.Product(t, db, databasetest.Auction(end))
	databasetest.Bid(t, db, p.ID, alice.UserID, 100, types.BidValid)

	svc.WithClock(func() time.Time { return end.Add(-time.Nanosecond) })
	_, err := svc.Checkout(context.Background(), alice, cart(line(p, 1)))
	require.ErrorIs(t, err, types.ErrAuctionNotEnded)

	svc.WithClock(func() time.Time { return end })
	_, err = svc.Checkout(context.Background(), alice, cart(line(p, 1)))
	require.NoError(t, err)
}

func TestCheckout_Idempotency(t *testing.T) {
	svc, db, rec := newTestService(t)
	p := databasetest.Product(t, db, func(p *types.Product) { p.Stock = 5 })
	ctx := context.Background()

	now := time.Now()
	svc.WithClock(func() time.Time { return now })

	req := cart(line(p, 1))
	req.IdempotencyKey = "cart-7f3a"

	first, err := svc.Checkout(ctx, alice, req)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	again, err := svc.Checkout(ctx, alice, req)
	require.NoError(t, err)
	require.True(t, again.Replayed)
	require.Equal(t, first.OrderID, again.OrderID)
	require.True(t, first.TotalAmount.Equal(again.TotalAmount))
	require.Len(t, again.Order.Items, 1)

	require.Equal(t, 4, databasetest.Reload(t, db, p.ID).Stock)
	require.Equal(t, int64(1), countOrders(t, db))
	require.Equal(t, []string{events.OrderCreated}, rec.Types())

	_, err = svc.Checkout(ctx, bob, req)
	require.ErrorIs(t, err, types.ErrIdempotencyKeyReuse)

	// Once expired the key starts a fresh order
	now = now.Add(2 * time.Hour)
	fresh, err := svc.Checkout(ctx, alice, req)
	require.NoError(t, err)
	require.False(t, fresh.Replayed)
	require.NotEqual(t, first.OrderID, fresh.OrderID)
	require.Equal(t, 3, databasetest.Reload(t, db, p.ID).Stock)
}

func TestCheckout_FailedAttemptDoesNotConsumeKey(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db)

	req := cart(LineItem{ProductID: p.ID, Quantity: 1, Price: decimal.NewFromInt(5)})
	req.IdempotencyKey = "retry-me"

	_, err := svc.Checkout(context.Background(), alice, req)
	require.ErrorIs(t, err, types.ErrPriceMismatch)

	req.Items[0].Price = p.Price()
	res, err := svc.Checkout(context.Background(), alice, req)
	require.NoError(t, err)
	require.False(t, res.Replayed)
}

func TestGetOrder_Visibility(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db)
	ctx := context.Background()

	res, err := svc.Checkout(ctx, alice, cart(line(p, 1)))
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, bob, res.OrderID)
	require.ErrorIs(t, err, types.ErrOrderNotFound)

	order, err := svc.GetOrder(ctx, admin, res.OrderID)
	require.NoError(t, err)
	require.Equal(t, alice.UserID, order.UserID)

	_, err = svc.GetOrder(ctx, alice, 12345)
	require.ErrorIs(t, err, types.ErrOrderNotFound)
}

func TestListOrders(t *testing.T) {
	svc, db, _ := newTestService(t)
	p := databasetest.Product(t, db, func(p *types.Product) { p.Stock = 5 })
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		res, err := svc.Checkout(ctx, alice, cart(line(p, 1)))
		require.NoError(t, err)
		ids = append(ids, res.OrderID)
	}
	_, err := svc.Checkout(ctx, bob, cart(line(p, 1)))
	require.NoError(t, err)

	orders, err := svc.ListOrders(ctx, alice)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.Equal(t, ids[2], orders[0].ID)
	for _, o := range orders {
		require.Equal(t, alice.UserID, o.UserID)
		require.NotEmpty(t, o.Items)
	}
}

func TestJanitor_PurgeExpired(t *testing.T) {
	db := databasetest.New(t)
	store := database.NewStore(db)
	now := time.Now().UTC()

	records := []types.IdempotencyRecord{
		{IdempotencyKey: "old", UserID: 1, ResourceID: 1, ResourceType: "order", ExpiresAt: now.Add(-time.Hour)},
		{IdempotencyKey: "live", UserID: 1, ResourceID: 2, ResourceType: "order", ExpiresAt: now.Add(time.Hour)},
	}
	require.NoError(t, db.Create(&records).Error)

	j := NewJanitor(store, time.Minute)
	purged, err := j.PurgeExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	var left []types.IdempotencyRecord
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	require.Equal(t, "live", left[0].IdempotencyKey)
}

func TestJanitor_StopsOnCancel(t *testing.T) {
	j := NewJanitor(databasetest.NewStore(t), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
