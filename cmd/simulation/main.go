package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/curio-api/internal/adjudication"
	"github.com/ksred/curio-api/internal/auction"
	"github.com/ksred/curio-api/internal/auth"
	"github.com/ksred/curio-api/internal/checkout"
	"github.com/ksred/curio-api/internal/config"
	"github.com/ksred/curio-api/internal/database"
	"github.com/ksred/curio-api/internal/events"
	"github.com/ksred/curio-api/internal/server"
	"github.com/ksred/curio-api/internal/types"
)

const (
	numBidders     = 8
	bidsPerBidder  = 8
	numBuyers      = 20
	flashSaleStock = 5
	biddingWindow  = 4 * time.Second
	serverPort     = "8089"
	serverAddress  = "http://localhost:" + serverPort
)

var adminPrincipal = types.Principal{UserID: 1, Role: types.RoleAdmin}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration, failed bool) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
	if failed {
		rs.failures++
	}
}

// calculate computes min, max, mean, median, 95th and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// statsBook is shared by every simulated client
type statsBook struct {
	mu     sync.Mutex
	routes map[string]*routeStats
}

func newStatsBook() *statsBook {
	return &statsBook{routes: map[string]*routeStats{
		"auth":     {name: "Authentication"},
		"bid":      {name: "Place Bid"},
		"bids":     {name: "List Bids"},
		"checkout": {name: "Checkout"},
		"order":    {name: "Get Order"},
		"admin":    {name: "Admin"},
	}}
}

func (b *statsBook) record(route string, d time.Duration, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route].addDuration(d, failed)
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (b *statsBook) printPerformanceStats() {
	b.mu.Lock()
	defer b.mu.Unlock()

	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Rejected", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	names := make([]string, 0, len(b.routes))
	for k := range b.routes {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		stats := b.routes[k]
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Microsecond),
			max.Round(time.Microsecond),
			mean.Round(time.Microsecond),
			median.Round(time.Microsecond),
			p95.Round(time.Microsecond),
			p99.Round(time.Microsecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// simulationClient is one authenticated caller of the storefront API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     *statsBook
}

func newSimulationClient(stats *statsBook, apiKey, apiSecret string) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats:   stats,
	}

	var tok auth.TokenResponse
	env, err := sc.call("auth", http.MethodPost, "/api/v1/auth/token", auth.Credentials{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := json.Unmarshal(env.Data, &tok); err != nil {
		return nil, err
	}
	sc.authToken = tok.Token

	return sc, nil
}

// call sends one request and decodes the response envelope. A non-2xx
// response is returned as an error carrying the domain code.
func (sc *simulationClient) call(route, method, path string, body interface{}, idemKey string) (*envelope, error) {
	start := time.Now()
	failed := true
	defer func() {
		sc.stats.record(route, time.Since(start), failed)
	}()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(method, sc.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	}
	if idemKey != "" {
		req.Header.Set(checkout.IdempotencyKeyHeader, idemKey)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("route", route).Str("response", string(respBody)).Msg("API response")

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if env.Error != nil {
			return &env, fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return &env, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	failed = false
	return &env, nil
}

func (sc *simulationClient) placeBid(productID uint, amount decimal.Decimal) (*auction.BidResult, error) {
	env, err := sc.call("bid", http.MethodPost, fmt.Sprintf("/api/v1/products/%d/bids", productID),
		auction.PlaceBidRequest{Amount: amount}, "")
	if err != nil {
		return nil, err
	}
	var result auction.BidResult
	return &result, json.Unmarshal(env.Data, &result)
}

func (sc *simulationClient) listBids(productID uint) ([]types.Bid, error) {
	env, err := sc.call("bids", http.MethodGet, fmt.Sprintf("/api/v1/products/%d/bids", productID), nil, "")
	if err != nil {
		return nil, err
	}
	var bids []types.Bid
	return bids, json.Unmarshal(env.Data, &bids)
}

func (sc *simulationClient) checkout(req checkout.Request, idemKey string) (*checkout.Result, error) {
	env, err := sc.call("checkout", http.MethodPost, "/api/v1/orders", req, idemKey)
	if err != nil {
		return nil, err
	}
	var result checkout.Result
	return &result, json.Unmarshal(env.Data, &result)
}

func (sc *simulationClient) getOrder(orderID uint) (*types.Order, error) {
	env, err := sc.call("order", http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", orderID), nil, "")
	if err != nil {
		return nil, err
	}
	var order types.Order
	return &order, json.Unmarshal(env.Data, &order)
}

func (sc *simulationClient) disqualify(bidID uint) (*adjudication.BidStatusResult, error) {
	env, err := sc.call("admin", http.MethodPut, fmt.Sprintf("/api/v1/admin/bids/%d/status", bidID),
		adjudication.BidStatusRequest{Status: types.BidDisqualified}, "")
	if err != nil {
		return nil, err
	}
	var result adjudication.BidStatusResult
	return &result, json.Unmarshal(env.Data, &result)
}

// simulation holds the in-process server and the products it races on
type simulation struct {
	db        *gorm.DB
	auth      *auth.Service
	stats     *statsBook
	publisher *events.Recorder
	srv       *http.Server

	auctionID   uint
	flashSaleID uint
}

// startServer opens a throwaway sqlite store, seeds the contested products
// and serves the full API on serverPort
func startServer(dir string) (*simulation, error) {
	db, err := database.NewDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(dir, "simulation.db") + "?_busy_timeout=5000",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := database.SeedDemoCatalog(db); err != nil {
		return nil, err
	}
	store := database.NewStore(db)

	sim := &simulation{
		db:        db,
		auth:      auth.NewService("simulation-secret", time.Hour),
		stats:     newStatsBook(),
		publisher: &events.Recorder{},
	}

	auctionEnd := time.Now().UTC().Add(biddingWindow)
	contested := []types.Product{
		{
			Title:          "1933 Double Eagle",
			BasePrice:      decimal.NewFromInt(500),
			Stock:          1,
			SaleMode:       types.SaleModeAuction,
			AuctionEndTime: &auctionEnd,
		},
		{
			Title:     "Limited Proof Set",
			BasePrice: decimal.NewFromInt(75),
			Stock:     flashSaleStock,
			SaleMode:  types.SaleModeDirectBuy,
		},
	}
	for i := range contested {
		contested[i].CurrentPrice = contested[i].BasePrice
		contested[i].Status = types.ProductAvailable
	}
	if err := db.Create(&contested).Error; err != nil {
		return nil, err
	}
	sim.auctionID = contested[0].ID
	sim.flashSaleID = contested[1].ID

	if err := sim.auth.RegisterAPICredentials(auth.DemoAdminKey, auth.DemoAdminSecret, adminPrincipal); err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.SetupRouter(server.Deps{
		Auth:    sim.auth,
		Auction: auction.NewService(store, sim.publisher),
		Checkout: checkout.NewService(store, sim.publisher, checkout.Options{
			PriceTolerance: decimal.RequireFromString("0.1"),
		}),
		Adjudication: adjudication.NewService(store, sim.publisher, adjudication.Options{}),
		Store:        store,
	})

	sim.srv = &http.Server{Addr: ":" + serverPort, Handler: router}
	go func() {
		if err := sim.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	return sim, nil
}

// client signs a token for userID directly so the auth rate limit only
// sees the admin login
func (sim *simulation) client(userID uint) (*simulationClient, error) {
	tok, err := sim.auth.IssueToken(types.Principal{UserID: userID, Role: types.RoleUser})
	if err != nil {
		return nil, err
	}
	return &simulationClient{
		baseURL:   serverAddress,
		authToken: tok.Token,
		client:    &http.Client{Timeout: 10 * time.Second},
		stats:     sim.stats,
	}, nil
}

// runAuction has every bidder raise on the same lot until the window closes
func (sim *simulation) runAuction() (accepted, rejected int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := 0; i < numBidders; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()

			sc, err := sim.client(userID)
			if err != nil {
				log.Error().Err(err).Uint("user_id", userID).Msg("bidder could not authenticate")
				return
			}

			price := decimal.NewFromInt(500)
			for n := 0; n < bidsPerBidder; n++ {
				amount := price.Add(decimal.NewFromInt(int64(rand.Intn(40) + 1)))
				result, err := sc.placeBid(sim.auctionID, amount)

				mu.Lock()
				if err != nil {
					rejected++
				} else {
					accepted++
					price = result.CurrentPrice
				}
				mu.Unlock()

				if err != nil {
					// someone outbid us; jump ahead and go again
					price = price.Add(decimal.NewFromInt(int64(rand.Intn(60) + 10)))
				}
				time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
			}
		}(uint(2 + i))
	}

	wg.Wait()
	return accepted, rejected
}

// runFlashSale races numBuyers single-unit checkouts for flashSaleStock units
func (sim *simulation) runFlashSale() (sold, soldOut int) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		start = make(chan struct{})
	)

	for i := 0; i < numBuyers; i++ {
		sc, err := sim.client(uint(2 + i))
		if err != nil {
			log.Error().Err(err).Msg("buyer could not authenticate")
			continue
		}

		wg.Add(1)
		go func(sc *simulationClient) {
			defer wg.Done()
			<-start

			key := uuid.NewString()
			req := checkout.Request{
				Items:           []checkout.LineItem{{ProductID: sim.flashSaleID, Quantity: 1, Price: decimal.NewFromInt(75)}},
				ShippingAddress: "221B Baker Street",
			}
			result, err := sc.checkout(req, key)
			if err != nil {
				mu.Lock()
				soldOut++
				mu.Unlock()
				return
			}

			// a retried submission must land on the same order
			replay, err := sc.checkout(req, key)
			if err != nil || replay.OrderID != result.OrderID || !replay.Replayed {
				log.Error().Err(err).Uint("order_id", result.OrderID).Msg("idempotent replay diverged")
			}
			if _, err := sc.getOrder(result.OrderID); err != nil {
				log.Error().Err(err).Uint("order_id", result.OrderID).Msg("failed to read back order")
			}

			mu.Lock()
			sold++
			mu.Unlock()
		}(sc)
	}

	close(start)
	wg.Wait()
	return sold, soldOut
}

// settleAuction disqualifies the top bid, then lets the new winner check out
// once the deadline has passed
func (sim *simulation) settleAuction(admin *simulationClient) (*checkout.Result, error) {
	bids, err := admin.listBids(sim.auctionID)
	if err != nil {
		return nil, err
	}

	var top *types.Bid
	for i := range bids {
		b := &bids[i]
		if b.Status != types.BidValid {
			continue
		}
		if top == nil || b.Amount.GreaterThan(top.Amount) {
			top = b
		}
	}
	if top == nil {
		return nil, fmt.Errorf("auction %d closed without bids", sim.auctionID)
	}

	result, err := admin.disqualify(top.ID)
	if err != nil {
		return nil, err
	}
	log.Info().
		Uint("bid_id", top.ID).
		Uint("user_id", top.UserID).
		Str("current_price", result.CurrentPrice.StringFixed(2)).
		Msg("Disqualified top bid")

	var product types.Product
	if err := sim.db.First(&product, sim.auctionID).Error; err != nil {
		return nil, err
	}
	if wait := time.Until(*product.AuctionEndTime); wait > 0 {
		time.Sleep(wait + 100*time.Millisecond)
	}

	var winner *types.Bid
	for i := range bids {
		b := &bids[i]
		if b.ID == top.ID || b.Status != types.BidValid {
			continue
		}
		if winner == nil || b.Amount.GreaterThan(winner.Amount) {
			winner = b
		}
	}
	if winner == nil {
		return nil, fmt.Errorf("no runner-up for auction %d", sim.auctionID)
	}

	sc, err := sim.client(winner.UserID)
	if err != nil {
		return nil, err
	}
	return sc.checkout(checkout.Request{
		Items:           []checkout.LineItem{{ProductID: sim.auctionID, Quantity: 1, Price: product.CurrentPrice}},
		ShippingAddress: "1 Mint Lane",
	}, uuid.NewString())
}

// main runs the storefront simulation against an in-process server
func main() {
	dir, err := os.MkdirTemp("", "curio-simulation")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create work dir")
	}
	defer os.RemoveAll(dir)

	sim, err := startServer(dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sim.srv.Shutdown(ctx)
	}()

	// Wait for server to start
	time.Sleep(500 * time.Millisecond)
	startTime := time.Now()

	log.Info().Int("bidders", numBidders).Uint("product_id", sim.auctionID).Msg("Starting auction")
	accepted, rejected := sim.runAuction()

	log.Info().Int("buyers", numBuyers).Int("stock", flashSaleStock).Msg("Starting flash sale")
	sold, soldOut := sim.runFlashSale()

	admin, err := newSimulationClient(sim.stats, auth.DemoAdminKey, auth.DemoAdminSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate admin")
	}
	winning, err := sim.settleAuction(admin)
	if err != nil {
		log.Error().Err(err).Msg("Auction settlement failed")
	}

	var flash types.Product
	if err := sim.db.First(&flash, sim.flashSaleID).Error; err != nil {
		log.Fatal().Err(err).Msg("Failed to reload flash sale product")
	}

	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("STOREFRONT SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Auction
-------
Bids accepted:    %d
Bids rejected:    %d

Flash sale
----------
Units offered:    %d
Orders placed:    %d
Turned away:      %d
Stock remaining:  %d
Product status:   %s

Events published: %d
Duration:         %v
`, accepted, rejected, flashSaleStock, sold, soldOut, flash.Stock, flash.Status,
		len(sim.publisher.Events()), duration.Round(time.Millisecond))

	if winning != nil {
		fmt.Printf("\nAuction won for $%s (order %d)\n", winning.TotalAmount.StringFixed(2), winning.OrderID)
	}
	fmt.Println("\n" + strings.Repeat("=", 80))

	if sold != flashSaleStock || flash.Stock != 0 {
		log.Error().
			Int("sold", sold).
			Int("stock", flash.Stock).
			Msg("Flash sale oversold or undersold")
	}

	sim.stats.printPerformanceStats()
}
